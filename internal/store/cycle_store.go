package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const lastCheckedKey = "last_checked"

// LastChecked returns the persisted last-checked instant, or the zero
// time if no cycle has recorded one yet.
func (s *SQLiteStore) LastChecked(ctx context.Context) (time.Time, error) {
	var value string
	err := s.db.GetContext(ctx, &value,
		"SELECT value FROM cycle_state WHERE name = ?", lastCheckedKey)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading last checked: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing last checked %q: %w", value, err)
	}
	return t, nil
}

// SetLastChecked persists the last-checked instant. It is written before
// any network I/O so a crashed cycle still counts against the rate guard.
func (s *SQLiteStore) SetLastChecked(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycle_state (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		lastCheckedKey, t.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("writing last checked: %w", err)
	}
	return nil
}
