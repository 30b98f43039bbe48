package storage

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/velikandr/analyst-bot/internal/models"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testBackends(t *testing.T) map[string]Storage {
	t.Helper()
	return map[string]Storage{
		"sqlite": newTestSQLite(t),
		"memory": NewMemoryStorage(),
	}
}

func tableColumnNames(t *testing.T, s *SQLiteStorage, table string) []string {
	t.Helper()
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	require.NoError(t, err)
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, ctype      string
			dflt             sql.NullString
		)
		require.NoError(t, rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk))
		cols = append(cols, name)
	}
	require.NoError(t, rows.Err())
	return cols
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	s := newTestSQLite(t)

	before := make(map[string][]string)
	for _, tbl := range sqliteTables {
		before[tbl.name] = tableColumnNames(t, s, tbl.name)
	}

	require.NoError(t, s.ensureSchema())

	for _, tbl := range sqliteTables {
		require.Equal(t, before[tbl.name], tableColumnNames(t, s, tbl.name))
	}
}

func TestEnsureSchemaAddsMissingColumns(t *testing.T) {
	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("CREATE TABLE users (user_id INTEGER PRIMARY KEY, username TEXT)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO users (user_id, username) VALUES (1, 'dana')")
	require.NoError(t, err)

	s := &SQLiteStorage{db: db, logger: zap.NewNop()}
	require.NoError(t, s.ensureSchema())

	cols := tableColumnNames(t, s, "users")
	require.Contains(t, cols, "fullname")
	require.Contains(t, cols, "reg_date")

	// Existing data survives the migration.
	var username string
	require.NoError(t, db.Get(&username, "SELECT username FROM users WHERE user_id = 1"))
	require.Equal(t, "dana", username)
}

func TestRegisterUserIdempotent(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.RegisterUser(ctx, &models.User{UserID: 7, Username: "dana", FullName: "Dana D"}))
			require.NoError(t, s.RegisterUser(ctx, &models.User{UserID: 7, Username: "other", FullName: "Other"}))

			got, err := s.GetUser(ctx, 7)
			require.NoError(t, err)
			require.Equal(t, "dana", got.Username)
			require.Equal(t, "Dana D", got.FullName)
			require.NotEmpty(t, got.RegDate)
		})
	}
}

func TestRegisterUserSingleRow(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.RegisterUser(ctx, &models.User{UserID: 7, Username: "dana"}))
	require.NoError(t, s.RegisterUser(ctx, &models.User{UserID: 7, Username: "dana"}))

	var count int
	require.NoError(t, s.db.Get(&count, "SELECT COUNT(*) FROM users WHERE user_id = 7"))
	require.Equal(t, 1, count)
}

func TestGetUserNotFound(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetUser(context.Background(), 404)
			require.ErrorIs(t, err, ErrUserNotFound)
		})
	}
}

func TestLogQueryHistoryOrder(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			const n = 12
			for i := 1; i <= n; i++ {
				id, err := s.LogQuery(ctx, 1, fmt.Sprintf("q%d", i), models.SourceMessage, nil)
				require.NoError(t, err)
				require.NotZero(t, id)
			}
			// One query from someone else must not leak in.
			_, err := s.LogQuery(ctx, 2, "other", models.SourceMessage, nil)
			require.NoError(t, err)

			history, err := s.ListHistory(ctx, 1, n)
			require.NoError(t, err)
			require.Len(t, history, n)
			for i, q := range history {
				require.Equal(t, fmt.Sprintf("q%d", n-i), q.Text)
				require.Equal(t, int64(1), q.UserID)
			}

			limited, err := s.ListHistory(ctx, 1, 10)
			require.NoError(t, err)
			require.Len(t, limited, 10)
			require.Equal(t, "q12", limited[0].Text)
			require.Equal(t, "q3", limited[9].Text)
		})
	}
}

func TestPresetDuplicatesDeletedTogether(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.AddPreset(ctx, 1, "x", "first"))
			require.NoError(t, s.AddPreset(ctx, 1, "x", "second"))
			require.NoError(t, s.AddPreset(ctx, 1, "y", "keep"))

			presets, err := s.ListPresets(ctx, 1)
			require.NoError(t, err)
			require.Len(t, presets, 3)

			require.NoError(t, s.DeletePreset(ctx, 1, "x"))

			presets, err = s.ListPresets(ctx, 1)
			require.NoError(t, err)
			require.Len(t, presets, 1)
			require.Equal(t, "y", presets[0].Name)

			_, err = s.GetPreset(ctx, 1, "x")
			require.ErrorIs(t, err, ErrPresetNotFound)
		})
	}
}

func TestGetPresetNotFound(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetPreset(context.Background(), 1, "missing")
			require.ErrorIs(t, err, ErrPresetNotFound)
		})
	}
}

func TestEncodeParams(t *testing.T) {
	require.Equal(t, "{}", encodeParams(nil))
	require.Equal(t, "{}", encodeParams(map[string]string{}))
	require.Equal(t, `{"topic":"go"}`, encodeParams(map[string]string{"topic": "go"}))
}
