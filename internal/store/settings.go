package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// GetSetting reads a setting
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM settings WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("setting %q: %w", key, ErrNotFound)
	}
	return value, err
}

// GetSettingInt reads an integer setting
func (s *Store) GetSettingInt(ctx context.Context, key string) (int, error) {
	value, err := s.GetSetting(ctx, key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

// SetSetting creates or replaces a setting
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// AllSettings every setting as key -> value
func (s *Store) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT key, value FROM settings ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, rows.Err()
}
