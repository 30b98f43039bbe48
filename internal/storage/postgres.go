package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/velikandr/analyst-bot/internal/errs"
	"github.com/velikandr/analyst-bot/internal/models"
)

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

var postgresTables = []tableSpec{
	{
		name: "users",
		create: `CREATE TABLE users (
			user_id BIGINT PRIMARY KEY,
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
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT,
			text TEXT,
			source TEXT,
			params TEXT,
			ts TEXT
		)`,
		columns: [][2]string{
			{"user_id", "BIGINT"},
			{"text", "TEXT"},
			{"source", "TEXT"},
			{"params", "TEXT"},
			{"ts", "TEXT"},
		},
	},
	{
		name: "presets",
		create: `CREATE TABLE presets (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT,
			name TEXT,
			content TEXT,
			created_at TEXT
		)`,
		columns: [][2]string{
			{"user_id", "BIGINT"},
			{"name", "TEXT"},
			{"content", "TEXT"},
			{"created_at", "TEXT"},
		},
	},
}

type PostgresStorage struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		return nil, &errs.StorageError{Op: "open database", Err: err}
	}

	s := &PostgresStorage{db: db, logger: logger}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, &errs.StorageError{Op: "ensure schema", Err: err}
	}
	return s, nil
}

func (s *PostgresStorage) ensureSchema() error {
	for _, t := range postgresTables {
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

func (s *PostgresStorage) tableExists(name string) (bool, error) {
	var exists bool
	err := s.db.Get(&exists,
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)",
		name)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return exists, nil
}

func (s *PostgresStorage) columnExists(table, column string) (bool, error) {
	var exists bool
	err := s.db.Get(&exists,
		"SELECT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2)",
		table, column)
	if err != nil {
		return false, fmt.Errorf("check column %s.%s: %w", table, column, err)
	}
	return exists, nil
}

func (s *PostgresStorage) RegisterUser(ctx context.Context, user *models.User) error {
	var existing int64
	err := s.db.GetContext(ctx, &existing, "SELECT user_id FROM users WHERE user_id = $1", user.UserID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return &errs.StorageError{Op: "register user", Err: err}
	}

	user.RegDate = now()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (user_id, username, fullname, reg_date) VALUES ($1, $2, $3, $4)",
		user.UserID, user.Username, user.FullName, user.RegDate)
	if err != nil {
		return &errs.StorageError{Op: "register user", Err: err}
	}
	s.logger.Info("Registered user",
		zap.Int64("user_id", user.UserID),
		zap.String("username", user.Username))
	return nil
}

func (s *PostgresStorage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		"SELECT user_id, username, fullname, reg_date FROM users WHERE user_id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, &errs.StorageError{Op: "get user", Err: err}
	}
	return &user, nil
}

func (s *PostgresStorage) LogQuery(ctx context.Context, userID int64, text, source string, params map[string]string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO queries (user_id, text, source, params, ts) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		userID, text, source, encodeParams(params), now()).Scan(&id)
	if err != nil {
		return 0, &errs.StorageError{Op: "log query", Err: err}
	}
	return id, nil
}

func (s *PostgresStorage) ListHistory(ctx context.Context, userID int64, limit int) ([]models.Query, error) {
	var queries []models.Query
	err := s.db.SelectContext(ctx, &queries,
		"SELECT id, user_id, text, source, params, ts FROM queries WHERE user_id = $1 ORDER BY id DESC LIMIT $2",
		userID, limit)
	if err != nil {
		return nil, &errs.StorageError{Op: "list history", Err: err}
	}
	return queries, nil
}

func (s *PostgresStorage) AddPreset(ctx context.Context, userID int64, name, content string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO presets (user_id, name, content, created_at) VALUES ($1, $2, $3, $4)",
		userID, name, content, now())
	if err != nil {
		return &errs.StorageError{Op: "add preset", Err: err}
	}
	return nil
}

func (s *PostgresStorage) ListPresets(ctx context.Context, userID int64) ([]models.Preset, error) {
	var presets []models.Preset
	err := s.db.SelectContext(ctx, &presets,
		"SELECT id, user_id, name, content, created_at FROM presets WHERE user_id = $1", userID)
	if err != nil {
		return nil, &errs.StorageError{Op: "list presets", Err: err}
	}
	return presets, nil
}

func (s *PostgresStorage) GetPreset(ctx context.Context, userID int64, name string) (string, error) {
	var content string
	err := s.db.GetContext(ctx, &content,
		"SELECT content FROM presets WHERE user_id = $1 AND name = $2 LIMIT 1", userID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrPresetNotFound
	}
	if err != nil {
		return "", &errs.StorageError{Op: "get preset", Err: err}
	}
	return content, nil
}

func (s *PostgresStorage) DeletePreset(ctx context.Context, userID int64, name string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM presets WHERE user_id = $1 AND name = $2", userID, name)
	if err != nil {
		return &errs.StorageError{Op: "delete preset", Err: err}
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
