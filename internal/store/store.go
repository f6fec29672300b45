package store

import (
	"context"
	"time"

	"mailpost/internal/model"
)

// Store defines the persistence interface for cycle state, the run log,
// known owners, and ingested content records.
type Store interface {
	// === Cycle state ===

	// LastChecked returns the time of the last cycle that performed
	// network I/O, or the zero time if no cycle has run yet.
	LastChecked(ctx context.Context) (time.Time, error)
	SetLastChecked(ctx context.Context, t time.Time) error

	// === Run log ===

	AppendLog(ctx context.Context, message string) error
	RecentLog(ctx context.Context, limit int) ([]model.LogEntry, error)

	// === Owners ===

	AddOwner(ctx context.Context, email string, canPublish bool) (int64, error)
	ListOwners(ctx context.Context) ([]model.Owner, error)

	// ResolveOwnerByEmail returns the owner with the given address
	// (case-insensitive), or nil when no owner matches.
	ResolveOwnerByEmail(ctx context.Context, email string) (*model.Owner, error)

	// OwnerCanPublish reports whether the owner may publish directly.
	// Unknown owners may not.
	OwnerCanPublish(ctx context.Context, id int64) (bool, error)

	// === Content records ===

	CreateContent(ctx context.Context, rec model.ContentRecord) (int64, error)
	ListContents(ctx context.Context, limit int) ([]model.ContentRecord, error)

	Close() error
}
