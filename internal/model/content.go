package model

import "time"

// ContentStatus is the publication state assigned to an ingested record.
type ContentStatus string

const (
	// StatusPublish is assigned when the resolved owner may publish.
	StatusPublish ContentStatus = "publish"

	// StatusPending is assigned when the owner is unknown or may not publish.
	StatusPending ContentStatus = "pending"
)

// ContentRecord is the normalized unit emitted for each processed message.
type ContentRecord struct {
	// Title is the post title, taken from an embedded <title> marker in the
	// body when present, otherwise from the message subject.
	Title string `db:"title"`

	// Body is the sanitized HTML body after delimiter splitting.
	Body string `db:"body"`

	// AuthoredAt is the message date in site-local time.
	AuthoredAt time.Time `db:"authored_at"`

	// AuthoredAtUTC is the same instant in UTC.
	AuthoredAtUTC time.Time `db:"authored_at_utc"`

	// OwnerID references the resolved owner, or the configured fallback.
	OwnerID int64 `db:"owner_id"`

	// Category is the configured default category.
	Category string `db:"category"`

	// Status is publish or pending depending on the owner's capability.
	Status ContentStatus `db:"status"`
}

// Owner is a known author identity resolvable by email address.
type Owner struct {
	ID         int64  `db:"id"`
	Email      string `db:"email"`
	CanPublish bool   `db:"can_publish"`
}

// LogEntry is one line of the ingestion activity log, most recent first.
type LogEntry struct {
	ID        string    `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	Message   string    `db:"message"`
}
