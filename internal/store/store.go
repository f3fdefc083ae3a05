package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "modernc.org/sqlite"
)

const currentVersion = 1

// WriteHook observes committed local writes. It runs after the commit, on
// the writer's goroutine, and must not call back into Update.
type WriteHook func(changes map[string]string)

type Store struct {
	db *sql.DB

	notify *Notifier

	mu    sync.RWMutex
	hooks []WriteHook
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes every read-modify-write in the process.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, notify: NewNotifier()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Subscribe registers for change notifications. The returned channel
// receives a value after any committed write or remote overwrite; bursts
// coalesce into one pending signal. Call cancel to unsubscribe.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	return s.notify.Subscribe()
}

// OnWrite registers a hook for committed local writes. Remote overwrites
// applied with Overwrite do not reach hooks.
func (s *Store) OnWrite(h WriteHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, h)
}

// Update runs fn inside one transaction. Every Set made through tx commits
// together or not at all. fn must only touch the store through tx; calling
// Store methods from inside fn deadlocks on the single connection.
func (s *Store) Update(fn func(tx *Tx) error) error {
	changes, err := s.update(fn)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}
	s.notify.Broadcast()

	s.mu.RLock()
	hooks := append([]WriteHook(nil), s.hooks...)
	s.mu.RUnlock()
	for _, h := range hooks {
		h(changes)
	}
	return nil
}

// Overwrite replaces records with values received from the remote copy.
// It notifies subscribers but skips write hooks so the values are not
// pushed straight back.
func (s *Store) Overwrite(values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	changes, err := s.update(func(tx *Tx) error {
		for k, v := range values {
			if err := tx.Set(k, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("overwrite: %w", err)
	}
	if len(changes) > 0 {
		s.notify.Broadcast()
	}
	return nil
}

// OverwriteUnchanged is Overwrite for keys whose stored value still equals
// base[k] (absent counts as ""). Keys written locally since base was read
// keep the local value. It returns the keys it replaced.
func (s *Store) OverwriteUnchanged(base, values map[string]string) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	var applied []string
	changes, err := s.update(func(tx *Tx) error {
		applied = applied[:0]
		for k, v := range values {
			cur, _, err := tx.Get(k)
			if err != nil {
				return err
			}
			if cur != base[k] {
				continue
			}
			if err := tx.Set(k, v); err != nil {
				return err
			}
			applied = append(applied, k)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("overwrite: %w", err)
	}
	if len(changes) > 0 {
		s.notify.Broadcast()
	}
	sort.Strings(applied)
	return applied, nil
}

func (s *Store) update(fn func(tx *Tx) error) (map[string]string, error) {
	sqlTx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	tx := &Tx{tx: sqlTx, writes: make(map[string]string)}
	if err := fn(tx); err != nil {
		sqlTx.Rollback()
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return tx.writes, nil
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS records (
		key         TEXT PRIMARY KEY,
		value       TEXT NOT NULL,
		updated_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
	);
	`
	_, err := s.db.Exec(ddl)
	return err
}

// DefaultDBPath returns ~/.config/chorechart/chorechart.db
func DefaultDBPath() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "chorechart", "chorechart.db"), nil
}
