package storage

import (
	"database/sql"
	"fmt"
)

// SettingsStore is a key-value table for application preferences.
type SettingsStore struct {
	db *DB
}

func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the stored value of key. ok is false when it was never set.
func (s *SettingsStore) Get(key string) (value string, ok bool, err error) {
	err = s.db.queryRow(s.db.conn, `SELECT value FROM app_settings WHERE name = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *SettingsStore) Set(key, value string) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := s.db.exec(tx, `DELETE FROM app_settings WHERE name = ?`, key); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	if _, err := s.db.exec(tx, `INSERT INTO app_settings (name, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return tx.Commit()
}
