package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Records is the key/value surface shared by Store and Tx. Values are
// opaque strings; the typed helpers in catalog.go encode JSON on top.
type Records interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Tx is a read-write view of the records inside Store.Update.
type Tx struct {
	tx     *sql.Tx
	writes map[string]string
}

func (t *Tx) Get(key string) (string, bool, error) {
	return getRecord(t.tx.QueryRow(`SELECT value FROM records WHERE key = ?`, key), key)
}

func (t *Tx) Set(key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := t.tx.Exec(
		`INSERT INTO records (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now,
	)
	if err != nil {
		return fmt.Errorf("set record %q: %w", key, err)
	}
	t.writes[key] = value
	return nil
}

func (s *Store) Get(key string) (string, bool, error) {
	return getRecord(s.db.QueryRow(`SELECT value FROM records WHERE key = ?`, key), key)
}

// Set writes a single record as its own transaction.
func (s *Store) Set(key, value string) error {
	return s.Update(func(tx *Tx) error {
		return tx.Set(key, value)
	})
}

// SetMany writes several records in one transaction.
func (s *Store) SetMany(values map[string]string) error {
	return s.Update(func(tx *Tx) error {
		for k, v := range values {
			if err := tx.Set(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Snapshot returns every record currently stored.
func (s *Store) Snapshot() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM records ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func getRecord(row *sql.Row, key string) (string, bool, error) {
	var value string
	err := row.Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get record %q: %w", key, err)
	}
	return value, true, nil
}
