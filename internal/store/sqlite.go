package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	constants "github.com/anuragn091/memory-game-cautio/internal/constants"
	models "github.com/anuragn091/memory-game-cautio/internal/models"
	util "github.com/anuragn091/memory-game-cautio/internal/util"
)

// SQLite persists records in a single key-value table, one row per storage
// key, each value a JSON document. This mirrors the two-entry layout of the
// original local-storage design while surviving process restarts.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and creates if missing) the database file, configures a
// busy timeout and WAL journaling, and ensures the kv table exists.
func NewSQLite(dsn string) (*SQLite, error) {
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" && !util.DirExists(dir) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value TEXT NOT NULL);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}

	util.LogInfo("Opened SQLite store at %s", dsn)
	return &SQLite{db: db}, nil
}

func (s *SQLite) get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (s *SQLite) set(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO kv (key, value) VALUES (?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, string(data),
	)
	return err
}

func (s *SQLite) delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

func (s *SQLite) SaveProfile(ctx context.Context, user *models.UserData) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.set(ctx, constants.UserDataKey, data)
}

func (s *SQLite) GetProfile(ctx context.Context) (*models.UserData, error) {
	data, ok, err := s.get(ctx, constants.UserDataKey)
	if err != nil || !ok {
		return nil, err
	}
	var user models.UserData
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SQLite) GetProfileByEmail(ctx context.Context, email string) (*models.UserData, error) {
	return profileByEmail(ctx, s, email)
}

func (s *SQLite) NextGameNumber(ctx context.Context, email string) (int, error) {
	return nextGameNumber(ctx, s, email)
}

func (s *SQLite) SetCurrentSession(ctx context.Context, session *models.GameSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.set(ctx, constants.CurrentSessionKey, data)
}

func (s *SQLite) GetCurrentSession(ctx context.Context) (*models.GameSession, error) {
	data, ok, err := s.get(ctx, constants.CurrentSessionKey)
	if err != nil || !ok {
		return nil, err
	}
	var session models.GameSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SQLite) ClearCurrentSession(ctx context.Context) error {
	return s.delete(ctx, constants.CurrentSessionKey)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
