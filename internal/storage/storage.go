package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/velikandr/analyst-bot/internal/models"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrPresetNotFound = errors.New("preset not found")
)

type Storage interface {
	// RegisterUser inserts the user if absent; re-registration is a no-op.
	RegisterUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID int64) (*models.User, error)

	// LogQuery always inserts a new row and returns its identifier.
	LogQuery(ctx context.Context, userID int64, text, source string, params map[string]string) (int64, error)
	// ListHistory returns up to limit queries, most recent first.
	ListHistory(ctx context.Context, userID int64, limit int) ([]models.Query, error)

	AddPreset(ctx context.Context, userID int64, name, content string) error
	ListPresets(ctx context.Context, userID int64) ([]models.Preset, error)
	// GetPreset returns the content of one matching preset, or
	// ErrPresetNotFound.
	GetPreset(ctx context.Context, userID int64, name string) (string, error)
	// DeletePreset removes every preset with that name for the user.
	DeletePreset(ctx context.Context, userID int64, name string) error

	Close() error
}

const timeLayout = "2006-01-02 15:04:05"

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

// encodeParams serializes the optional parameter map; the stored blob is
// opaque and an empty map becomes "{}".
func encodeParams(params map[string]string) string {
	if len(params) == 0 {
		return "{}"
	}
	b, err := json.Marshal(params)
	if err != nil {
		return "{}"
	}
	return string(b)
}
