package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/k3a/html2text"

	"mailpost/internal/model"
)

// excerptLen bounds the plain-text excerpt stored beside each record.
const excerptLen = 280

// CreateContent stores an ingested content record and returns its id.
// A plain-text excerpt is derived from the HTML body for listings.
func (s *SQLiteStore) CreateContent(
	ctx context.Context, rec model.ContentRecord,
) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO contents (
			title, body, excerpt,
			authored_at, authored_at_utc,
			owner_id, category, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Title, rec.Body, excerptOf(rec.Body),
		rec.AuthoredAt.UTC(), rec.AuthoredAtUTC.UTC(),
		rec.OwnerID, rec.Category, string(rec.Status),
	)
	if err != nil {
		return 0, fmt.Errorf("creating content %q: %w", rec.Title, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading content id: %w", err)
	}
	return id, nil
}

// ListContents returns up to limit records, most recent first.
func (s *SQLiteStore) ListContents(
	ctx context.Context, limit int,
) ([]model.ContentRecord, error) {
	if limit < 1 {
		limit = 50
	}

	var recs []model.ContentRecord
	err := s.db.SelectContext(ctx, &recs, `
		SELECT title, body, authored_at, authored_at_utc,
		       owner_id, category, status
		FROM contents ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing contents: %w", err)
	}
	return recs, nil
}

// excerptOf renders the body to plain text and truncates it.
func excerptOf(body string) string {
	text := strings.TrimSpace(html2text.HTML2Text(body))
	runes := []rune(text)
	if len(runes) <= excerptLen {
		return text
	}
	return string(runes[:excerptLen])
}
