package storage

import (
	"context"
	"sync"

	"github.com/velikandr/analyst-bot/internal/models"
)

// MemoryStorage keeps everything in process memory. Used in tests and for
// running the bot without a database.
type MemoryStorage struct {
	mu           sync.RWMutex
	users        map[int64]*models.User
	queries      []models.Query
	presets      []models.Preset
	nextQueryID  int64
	nextPresetID int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:        make(map[int64]*models.User),
		nextQueryID:  1,
		nextPresetID: 1,
	}
}

func (s *MemoryStorage) RegisterUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.UserID]; exists {
		return nil
	}
	u := *user
	u.RegDate = now()
	s.users[user.UserID] = &u
	return nil
}

func (s *MemoryStorage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[userID]
	if !exists {
		return nil, ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (s *MemoryStorage) LogQuery(ctx context.Context, userID int64, text, source string, params map[string]string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := models.Query{
		ID:     s.nextQueryID,
		UserID: userID,
		Text:   text,
		Source: source,
		Params: encodeParams(params),
		TS:     now(),
	}
	s.nextQueryID++
	s.queries = append(s.queries, q)
	return q.ID, nil
}

func (s *MemoryStorage) ListHistory(ctx context.Context, userID int64, limit int) ([]models.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var history []models.Query
	for i := len(s.queries) - 1; i >= 0 && len(history) < limit; i-- {
		if s.queries[i].UserID == userID {
			history = append(history, s.queries[i])
		}
	}
	return history, nil
}

func (s *MemoryStorage) AddPreset(ctx context.Context, userID int64, name, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.presets = append(s.presets, models.Preset{
		ID:        s.nextPresetID,
		UserID:    userID,
		Name:      name,
		Content:   content,
		CreatedAt: now(),
	})
	s.nextPresetID++
	return nil
}

func (s *MemoryStorage) ListPresets(ctx context.Context, userID int64) ([]models.Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var presets []models.Preset
	for _, p := range s.presets {
		if p.UserID == userID {
			presets = append(presets, p)
		}
	}
	return presets, nil
}

func (s *MemoryStorage) GetPreset(ctx context.Context, userID int64, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.presets {
		if p.UserID == userID && p.Name == name {
			return p.Content, nil
		}
	}
	return "", ErrPresetNotFound
}

func (s *MemoryStorage) DeletePreset(ctx context.Context, userID int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.presets[:0]
	for _, p := range s.presets {
		if p.UserID == userID && p.Name == name {
			continue
		}
		kept = append(kept, p)
	}
	s.presets = kept
	return nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
