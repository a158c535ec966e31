// Package persist stores serialized cache snapshots so a process can start
// with the cache a previous run left behind.
package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/ambiyansyah-risyal/fetchagent/cache"
)

// Snapshot is one saved cache.
type Snapshot struct {
	Name    string
	SavedAt time.Time
	Data    string
}

// SQLite keeps named snapshots in a single table.
type SQLite struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// OpenSQLite opens (and if needed creates) the snapshot database at filename.
// An empty filename opens a private in-memory database.
func OpenSQLite(filename string) (*SQLite, error) {
	if filename == "" {
		filename = ":memory:"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	if filename == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		name TEXT PRIMARY KEY,
		saved_at INTEGER,
		data TEXT
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	if filename != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}

	return &SQLite{db: db, writeMutex: &sync.Mutex{}}, nil
}

// Save stores data under name, replacing an earlier snapshot.
func (s *SQLite) Save(ctx context.Context, name, data string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO snapshots (name, saved_at, data) VALUES (?, ?, ?)",
		name, time.Now().UnixMilli(), data)
	return err
}

// Load returns the snapshot saved under name. ok is false when there is none.
func (s *SQLite) Load(ctx context.Context, name string) (Snapshot, bool, error) {
	snapshot := Snapshot{Name: name}
	var savedAt int64
	err := s.db.QueryRowContext(ctx, "SELECT saved_at, data FROM snapshots WHERE name = ?", name).
		Scan(&savedAt, &snapshot.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	snapshot.SavedAt = time.UnixMilli(savedAt)
	return snapshot, true, nil
}

// Names lists the saved snapshots, most recent first.
func (s *SQLite) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM snapshots ORDER BY saved_at DESC, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete removes the snapshot saved under name.
func (s *SQLite) Delete(ctx context.Context, name string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE name = ?", name)
	return err
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SaveStore serializes store and saves it under name.
func (s *SQLite) SaveStore(ctx context.Context, name string, store *cache.Store) error {
	data, err := store.Serialize()
	if err != nil {
		return fmt.Errorf("serialize cache: %w", err)
	}
	return s.Save(ctx, name, data)
}

// LoadStore restores the snapshot saved under name into store. It reports
// false when no snapshot exists.
func (s *SQLite) LoadStore(ctx context.Context, name string, store *cache.Store) (bool, error) {
	snapshot, ok, err := s.Load(ctx, name)
	if err != nil || !ok {
		return false, err
	}
	if err := store.Deserialize(snapshot.Data); err != nil {
		return false, fmt.Errorf("restore cache %q: %w", name, err)
	}
	return true, nil
}
