// Package tokenstore persists captured session credentials in SQLite.
package tokenstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dawnkeeper/dawnkeeper/internal/errors"
	"github.com/dawnkeeper/dawnkeeper/internal/logging"
	"github.com/dawnkeeper/dawnkeeper/internal/models"
)

// Store is an append-only SQLite log of captured credential bundles.
// It is thread-safe and supports concurrent access.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	logger *logging.Logger
}

// Record is one persisted credential capture.
type Record struct {
	ID         string
	Username   string
	UserID     string
	CapturedAt time.Time
	Bundle     models.CredentialBundle
}

// Open opens or creates the store at path. A database that cannot be
// opened or migrated is moved aside to <path>.backup.<unix> and a fresh
// one is created in its place, so a corrupt file never blocks startup.
func Open(path string, logger *logging.Logger) (*Store, error) {
	db, err := open(path)
	if err == nil {
		return &Store{db: db, path: path, logger: logger}, nil
	}

	backup := fmt.Sprintf("%s.backup.%d", path, time.Now().Unix())
	if renameErr := os.Rename(path, backup); renameErr != nil {
		return nil, &errors.ErrStoreOpen{Path: path, Err: err}
	}
	logger.Warn("credential store unreadable, starting fresh",
		"path", path, "backup", backup, "error", err.Error())

	db, err = open(path)
	if err != nil {
		return nil, &errors.ErrStoreOpen{Path: path, Err: err}
	}
	return &Store{db: db, path: path, logger: logger}, nil
}

func open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			user_id TEXT NOT NULL,
			captured_at DATETIME NOT NULL,
			bundle TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_credentials_username ON credentials(username);
		CREATE INDEX IF NOT EXISTS idx_credentials_captured_at ON credentials(captured_at);
	`)
	return err
}

// Append stores one captured bundle. Every successful login appends a
// new row; history is never overwritten.
func (s *Store) Append(bundle *models.CredentialBundle) error {
	if bundle == nil {
		return nil
	}

	payload, err := json.Marshal(bundle)
	if err != nil {
		return &errors.ErrPersistence{Op: "marshal bundle", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT INTO credentials (id, username, user_id, captured_at, bundle) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), bundle.Username, bundle.UserID, bundle.CapturedAt.UTC(), string(payload),
	)
	if err != nil {
		return &errors.ErrPersistence{Op: "insert credential", Err: err}
	}
	return nil
}

// Count returns the number of stored captures.
func (s *Store) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM credentials`).Scan(&n); err != nil {
		return 0, &errors.ErrPersistence{Op: "count credentials", Err: err}
	}
	return n, nil
}

// Latest returns the most recent capture per username, newest first.
func (s *Store) Latest() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id, username, user_id, captured_at, bundle FROM credentials
		WHERE id IN (
			SELECT id FROM credentials c
			WHERE captured_at = (SELECT MAX(captured_at) FROM credentials WHERE username = c.username)
		)
		ORDER BY captured_at DESC
	`)
	if err != nil {
		return nil, &errors.ErrPersistence{Op: "query credentials", Err: err}
	}
	defer rows.Close()

	return scanRecords(rows)
}

// History returns every capture for username, newest first.
func (s *Store) History(username string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, username, user_id, captured_at, bundle FROM credentials WHERE username = ? ORDER BY captured_at DESC`,
		username,
	)
	if err != nil {
		return nil, &errors.ErrPersistence{Op: "query credentials", Err: err}
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var rec Record
		var payload string
		if err := rows.Scan(&rec.ID, &rec.Username, &rec.UserID, &rec.CapturedAt, &payload); err != nil {
			return nil, &errors.ErrPersistence{Op: "scan credential", Err: err}
		}
		if err := json.Unmarshal([]byte(payload), &rec.Bundle); err != nil {
			return nil, &errors.ErrPersistence{Op: "unmarshal bundle", Err: err}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &errors.ErrPersistence{Op: "iterate credentials", Err: err}
	}
	return out, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
