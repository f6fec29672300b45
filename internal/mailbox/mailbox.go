package mailbox

import (
	"context"
	"errors"
	"fmt"
)

// Credentials identifies a single mailbox account. Immutable per cycle.
type Credentials struct {
	Host   string
	Port   int
	Login  string
	Secret string
	TLS    bool
}

// MessageID is a server-assigned message identifier, opaque to callers.
type MessageID uint32

// Client dials a mail server and opens a session on the inbox.
type Client interface {
	Connect(ctx context.Context, creds Credentials) (Session, error)
}

// Session is an open, authenticated connection to a single inbox.
//
// All operations may fail with a *ProtocolError, which callers treat as
// fatal for the current cycle. Close commits pending deletions before
// tearing down the connection.
type Session interface {
	// ListUnseen returns the ids of messages not yet seen, in the order
	// the server reports them.
	ListUnseen(ctx context.Context) ([]MessageID, error)

	// FetchHeaders returns the raw header block of a message.
	FetchHeaders(ctx context.Context, id MessageID) (string, error)

	// FetchBody returns the decoded textual body of a message. Transfer
	// decoding (quoted-printable, base64) is performed by the adapter.
	FetchBody(ctx context.Context, id MessageID) ([]byte, error)

	// MarkDeleted flags the given messages for deletion. The deletion is
	// committed on Close.
	MarkDeleted(ctx context.Context, ids []MessageID) error

	// Close commits pending deletions and ends the session.
	Close() error
}

// ConnError indicates the mail server could not be reached or refused
// authentication. The cycle aborts before any message is touched.
type ConnError struct {
	Addr string
	Err  error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Addr, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// IsConnError reports whether err (or any error in its chain) is a ConnError.
func IsConnError(err error) bool {
	var connErr *ConnError
	return errors.As(err, &connErr)
}

// ProtocolError indicates a failed mailbox operation on an established
// session.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsProtocolError reports whether err (or any error in its chain) is a
// ProtocolError.
func IsProtocolError(err error) bool {
	var protoErr *ProtocolError
	return errors.As(err, &protoErr)
}
