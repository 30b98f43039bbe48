package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/velikandr/analyst-bot/internal/errs"
	"github.com/velikandr/analyst-bot/internal/models"
)

// tableSpec describes the target shape of one table. Schema evolution is
// additive-only: columns may be appended to an existing table, never dropped
// or renamed.
type tableSpec struct {
	name    string
	create  string
	columns [][2]string // column name, type for ALTER TABLE ADD COLUMN
}

var sqliteTables = []tableSpec{
	{
		name: "users",
		create: `CREATE TABLE users (
			user_id INTEGER PRIMARY KEY,
			username TEXT,
			fullname TEXT,
			reg_date TEXT
		)`,
		columns: [][2]string{
			{"username", "TEXT"},
			{"fullname", "TEXT"},
			{"reg_date", "TEXT"},
		},
	},
	{
		name: "queries",
		create: `CREATE TABLE queries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER,
			text TEXT,
			source TEXT,
			params TEXT,
			ts TEXT
		)`,
		columns: [][2]string{
			{"user_id", "INTEGER"},
			{"text", "TEXT"},
			{"source", "TEXT"},
			{"params", "TEXT"},
			{"ts", "TEXT"},
		},
	},
	{
		name: "presets",
		create: `CREATE TABLE presets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER,
			name TEXT,
			content TEXT,
			created_at TEXT
		)`,
		columns: [][2]string{
			{"user_id", "INTEGER"},
			{"name", "TEXT"},
			{"content", "TEXT"},
			{"created_at", "TEXT"},
		},
	},
}

type SQLiteStorage struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewSQLiteStorage(path string, logger *zap.Logger) (*SQLiteStorage, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, &errs.StorageError{Op: "open database", Err: err}
	}
	// Single writer keeps sqlite happy under concurrent handlers and keeps
	// in-memory databases on one connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStorage{db: db, logger: logger}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, &errs.StorageError{Op: "ensure schema", Err: err}
	}
	return s, nil
}

// ensureSchema creates missing tables and appends missing columns. It is
// idempotent and never rewrites existing rows.
func (s *SQLiteStorage) ensureSchema() error {
	for _, t := range sqliteTables {
		exists, err := s.tableExists(t.name)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := s.db.Exec(t.create); err != nil {
				return fmt.Errorf("create table %s: %w", t.name, err)
			}
			s.logger.Info("Created table", zap.String("table", t.name))
			continue
		}
		for _, col := range t.columns {
			present, err := s.columnExists(t.name, col[0])
			if err != nil {
				return err
			}
			if present {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", t.name, col[0], col[1])
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("add column %s.%s: %w", t.name, col[0], err)
			}
			s.logger.Info("Added column",
				zap.String("table", t.name),
				zap.String("column", col[0]))
		}
	}
	return nil
}

func (s *SQLiteStorage) tableExists(name string) (bool, error) {
	var found string
	err := s.db.Get(&found, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return true, nil
}

func (s *SQLiteStorage) columnExists(table, column string) (bool, error) {
	// PRAGMA does not take bind parameters; table names come from the
	// static schema above.
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("check column %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid, notNull, pk int
			name, ctype      string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func (s *SQLiteStorage) RegisterUser(ctx context.Context, user *models.User) error {
	var existing int64
	err := s.db.GetContext(ctx, &existing, "SELECT user_id FROM users WHERE user_id = ?", user.UserID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return &errs.StorageError{Op: "register user", Err: err}
	}

	user.RegDate = now()
	_, err = s.db.NamedExecContext(ctx,
		"INSERT INTO users (user_id, username, fullname, reg_date) VALUES (:user_id, :username, :fullname, :reg_date)",
		user)
	if err != nil {
		return &errs.StorageError{Op: "register user", Err: err}
	}
	s.logger.Info("Registered user",
		zap.Int64("user_id", user.UserID),
		zap.String("username", user.Username))
	return nil
}

func (s *SQLiteStorage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		"SELECT user_id, username, fullname, reg_date FROM users WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, &errs.StorageError{Op: "get user", Err: err}
	}
	return &user, nil
}

func (s *SQLiteStorage) LogQuery(ctx context.Context, userID int64, text, source string, params map[string]string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO queries (user_id, text, source, params, ts) VALUES (?, ?, ?, ?, ?)",
		userID, text, source, encodeParams(params), now())
	if err != nil {
		return 0, &errs.StorageError{Op: "log query", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &errs.StorageError{Op: "log query", Err: err}
	}
	return id, nil
}

func (s *SQLiteStorage) ListHistory(ctx context.Context, userID int64, limit int) ([]models.Query, error) {
	var queries []models.Query
	err := s.db.SelectContext(ctx, &queries,
		"SELECT id, user_id, text, source, params, ts FROM queries WHERE user_id = ? ORDER BY id DESC LIMIT ?",
		userID, limit)
	if err != nil {
		return nil, &errs.StorageError{Op: "list history", Err: err}
	}
	return queries, nil
}

func (s *SQLiteStorage) AddPreset(ctx context.Context, userID int64, name, content string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO presets (user_id, name, content, created_at) VALUES (?, ?, ?, ?)",
		userID, name, content, now())
	if err != nil {
		return &errs.StorageError{Op: "add preset", Err: err}
	}
	return nil
}

func (s *SQLiteStorage) ListPresets(ctx context.Context, userID int64) ([]models.Preset, error) {
	var presets []models.Preset
	err := s.db.SelectContext(ctx, &presets,
		"SELECT id, user_id, name, content, created_at FROM presets WHERE user_id = ?", userID)
	if err != nil {
		return nil, &errs.StorageError{Op: "list presets", Err: err}
	}
	return presets, nil
}

func (s *SQLiteStorage) GetPreset(ctx context.Context, userID int64, name string) (string, error) {
	var content string
	err := s.db.GetContext(ctx, &content,
		"SELECT content FROM presets WHERE user_id = ? AND name = ? LIMIT 1", userID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrPresetNotFound
	}
	if err != nil {
		return "", &errs.StorageError{Op: "get preset", Err: err}
	}
	return content, nil
}

func (s *SQLiteStorage) DeletePreset(ctx context.Context, userID int64, name string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM presets WHERE user_id = ? AND name = ?", userID, name)
	if err != nil {
		return &errs.StorageError{Op: "delete preset", Err: err}
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
