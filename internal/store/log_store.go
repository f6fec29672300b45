package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mailpost/internal/model"
)

// maxLogEntries bounds the run log; older entries are dropped as new
// ones arrive.
const maxLogEntries = 200

// AppendLog records an activity log message. Entries are read back most
// recent first, and the log is trimmed to maxLogEntries on every append.
func (s *SQLiteStore) AppendLog(ctx context.Context, message string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_log (id, message, created_at) VALUES (?, ?, ?)`,
		uuid.New().String(), message, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("appending log entry: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM run_log WHERE rowid NOT IN (
			SELECT rowid FROM run_log ORDER BY rowid DESC LIMIT ?
		)`, maxLogEntries,
	)
	if err != nil {
		return fmt.Errorf("trimming log: %w", err)
	}
	return nil
}

// RecentLog returns up to limit log entries, most recent first.
func (s *SQLiteStore) RecentLog(
	ctx context.Context, limit int,
) ([]model.LogEntry, error) {
	if limit < 1 {
		limit = maxLogEntries
	}

	var entries []model.LogEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, message, created_at FROM run_log
		ORDER BY rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}
	return entries, nil
}
