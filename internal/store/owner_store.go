package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"mailpost/internal/model"
)

// AddOwner registers a known author identity and returns its id.
func (s *SQLiteStore) AddOwner(
	ctx context.Context, email string, canPublish bool,
) (int64, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return 0, fmt.Errorf("owner email must not be empty")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO owners (email, can_publish) VALUES (?, ?)`,
		email, canPublish,
	)
	if err != nil {
		return 0, fmt.Errorf("adding owner %s: %w", email, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading owner id: %w", err)
	}
	return id, nil
}

// ListOwners returns all known owners ordered by id.
func (s *SQLiteStore) ListOwners(ctx context.Context) ([]model.Owner, error) {
	var owners []model.Owner
	err := s.db.SelectContext(ctx, &owners,
		"SELECT id, email, can_publish FROM owners ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing owners: %w", err)
	}
	return owners, nil
}

// ResolveOwnerByEmail looks up an owner by address, case-insensitively.
// A missing owner is not an error; it returns nil.
func (s *SQLiteStore) ResolveOwnerByEmail(
	ctx context.Context, email string,
) (*model.Owner, error) {
	var owner model.Owner
	err := s.db.GetContext(ctx, &owner, `
		SELECT id, email, can_publish FROM owners
		WHERE lower(email) = lower(?)`, email,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving owner %s: %w", email, err)
	}
	return &owner, nil
}

// OwnerCanPublish reports the owner's publish capability. Unknown owners
// may not publish.
func (s *SQLiteStore) OwnerCanPublish(
	ctx context.Context, id int64,
) (bool, error) {
	var canPublish bool
	err := s.db.GetContext(ctx, &canPublish,
		"SELECT can_publish FROM owners WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking publish capability: %w", err)
	}
	return canPublish, nil
}
