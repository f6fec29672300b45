// Package ingest coordinates one mail-check cycle: rate guard, mailbox
// connection, per-message parsing and record emission, and cleanup of
// processed messages.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mailpost/internal/config"
	"mailpost/internal/mailbox"
	"mailpost/internal/model"
	"mailpost/internal/parse"
)

// StateStore persists the cycle rate-guard timestamp.
type StateStore interface {
	LastChecked(ctx context.Context) (time.Time, error)
	SetLastChecked(ctx context.Context, t time.Time) error
}

// RunLog records activity lines for the operator-facing log.
type RunLog interface {
	AppendLog(ctx context.Context, message string) error
}

// Resolver maps sender addresses to owner identities and capabilities.
type Resolver interface {
	ResolveOwnerByEmail(ctx context.Context, email string) (*model.Owner, error)
	OwnerCanPublish(ctx context.Context, id int64) (bool, error)
}

// Sink receives the content record emitted for each processed message.
type Sink interface {
	CreateContent(ctx context.Context, rec model.ContentRecord) (int64, error)
}

// Deps bundles the collaborators an Orchestrator needs.
type Deps struct {
	Client   mailbox.Client
	State    StateStore
	Log      RunLog
	Resolver Resolver
	Sink     Sink

	// Normalizer is optional; a default one is used when nil.
	Normalizer *parse.Normalizer

	// Logger is optional; slog.Default() is used when nil.
	Logger *slog.Logger
}

// Orchestrator runs the ingestion cycle. Construct one per process and
// invoke CheckMail from a single scheduler; overlapping cycles are
// prevented by the rate guard together with the caller's
// one-cycle-in-flight contract, not by internal locking.
type Orchestrator struct {
	cfg      config.Config
	client   mailbox.Client
	state    StateStore
	runlog   RunLog
	resolver Resolver
	sink     Sink
	norm     *parse.Normalizer
	logger   *slog.Logger

	now func() time.Time
}

// New creates an Orchestrator for the given configuration.
func New(cfg config.Config, deps Deps) *Orchestrator {
	norm := deps.Normalizer
	if norm == nil {
		norm = parse.NewNormalizer()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		cfg:      cfg,
		client:   deps.Client,
		state:    deps.State,
		runlog:   deps.Log,
		resolver: deps.Resolver,
		sink:     deps.Sink,
		norm:     norm,
		logger:   logger,
		now:      time.Now,
	}
}

// CheckMail runs one full cycle. All failure modes degrade to a logged
// no-op for this cycle; the returned error reports cycle-fatal mailbox
// failures for callers that want them, and is nil for skipped cycles.
func (o *Orchestrator) CheckMail(ctx context.Context) error {
	now := o.now()

	// Rate guard: only one network-touching cycle per minimum interval.
	last, err := o.state.LastChecked(ctx)
	if err != nil {
		o.logger.Warn("reading last-checked state", "err", err)
	}
	if !last.IsZero() && now.Sub(last) < o.cfg.MinCheckInterval && !o.cfg.Debug {
		o.log(ctx, "Slow down cowboy, no need to check for new mails so often!")
		return nil
	}

	// Persist the timestamp before connecting so a crashed cycle still
	// counts against the guard.
	if err := o.state.SetLastChecked(ctx, now); err != nil {
		o.logger.Warn("persisting last-checked state", "err", err)
	}

	if opt, incomplete := o.cfg.Incomplete(); incomplete {
		o.log(ctx, "Options not set; skipping.")
		o.logger.Debug("mail options incomplete", "option", opt)
		return nil
	}

	creds := mailbox.Credentials{
		Host:   o.cfg.MailserverURL,
		Port:   o.cfg.MailserverPort,
		Login:  o.cfg.MailserverLogin,
		Secret: o.cfg.MailserverPass,
		TLS:    o.cfg.MailserverTLS,
	}

	sess, err := o.client.Connect(ctx, creds)
	if err != nil {
		o.log(ctx, "An error occurred: "+err.Error())
		return err
	}

	ids, err := sess.ListUnseen(ctx)
	if err != nil {
		o.log(ctx, "An error occurred: "+err.Error())
		// Listing never succeeded, so nothing is deleted this cycle.
		o.closeSession(sess)
		return err
	}

	if len(ids) == 0 {
		o.closeSession(sess)
		o.log(ctx, "There doesn't seem to be any new mail.")
		return nil
	}

	o.logger.Info("processing messages", "count", len(ids))

	for _, id := range ids {
		if err := o.processMessage(ctx, sess, id); err != nil {
			// One bad message never aborts the batch.
			o.log(ctx, "An error occurred: "+err.Error())
			o.logger.Warn("message failed", "id", uint32(id), "err", err)
		}
	}

	// Every originally listed message is deleted, processed or not;
	// re-fetching a malformed message each cycle would make no progress.
	if err := sess.MarkDeleted(ctx, ids); err != nil {
		o.log(ctx, "An error occurred: "+err.Error())
	}

	o.closeSession(sess)
	return nil
}

// processMessage runs the parse pipeline for a single message and
// submits the resulting record to the sink.
func (o *Orchestrator) processMessage(
	ctx context.Context, sess mailbox.Session, id mailbox.MessageID,
) error {
	rawHeaders, err := sess.FetchHeaders(ctx, id)
	if err != nil {
		return err
	}

	headers, err := parse.ReadHeaders(rawHeaders)
	if err != nil {
		return fmt.Errorf("message %d: %w", id, err)
	}

	var logLine strings.Builder

	ownerID, authorFound := o.resolveAuthor(ctx, headers, &logLine)

	local, utc, err := parse.ParseDate(headers.Date, o.cfg.SiteOffsetSeconds())
	if err != nil {
		// Best effort: a missing or malformed date never drops the
		// message; fall back to the current instant.
		o.logger.Debug("date parse failed", "id", uint32(id), "err", err)
		utc = o.now().UTC()
		local = utc.Add(time.Duration(o.cfg.SiteOffsetSeconds()) * time.Second)
	}

	body, err := sess.FetchBody(ctx, id)
	if err != nil {
		return err
	}

	content, title := o.norm.Normalize(string(body))
	if title == "" {
		title = headers.ParsedSubject()
	}

	status := model.StatusPending
	if authorFound {
		canPublish, err := o.resolver.OwnerCanPublish(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("checking publish capability: %w", err)
		}
		if canPublish {
			status = model.StatusPublish
		}
	}

	rec := model.ContentRecord{
		Title:         title,
		Body:          content,
		AuthoredAt:    local,
		AuthoredAtUTC: utc,
		OwnerID:       ownerID,
		Category:      o.cfg.DefaultEmailCategory,
		Status:        status,
	}

	if _, err := o.sink.CreateContent(ctx, rec); err != nil {
		return fmt.Errorf("posting %q: %w", rec.Title, err)
	}

	fmt.Fprintf(&logLine, "Author: %d\n", ownerID)
	fmt.Fprintf(&logLine, "Posted title: %s", rec.Title)
	o.log(ctx, logLine.String())

	return nil
}

// resolveAuthor extracts and validates the sender address and maps it to
// a known owner, falling back to the configured default owner.
func (o *Orchestrator) resolveAuthor(
	ctx context.Context, headers parse.Headers, logLine *strings.Builder,
) (ownerID int64, found bool) {
	ownerID = o.cfg.DefaultOwnerID

	addr := parse.ExtractAddress(headers.AuthorCandidate())
	if !parse.ValidAddress(addr) {
		return ownerID, false
	}

	fmt.Fprintf(logLine, "Author is %s\n", addr)

	owner, err := o.resolver.ResolveOwnerByEmail(ctx, addr)
	if err != nil {
		o.logger.Warn("resolving owner", "email", addr, "err", err)
		return ownerID, false
	}
	if owner == nil {
		return ownerID, false
	}
	return owner.ID, true
}

// closeSession closes the session, logging rather than propagating the
// error; a close failure never affects cycle outcome.
func (o *Orchestrator) closeSession(sess mailbox.Session) {
	if err := sess.Close(); err != nil {
		o.logger.Warn("closing mailbox session", "err", err)
	}
}

// log writes one run-log entry, falling back to the diagnostic logger if
// the store is unavailable.
func (o *Orchestrator) log(ctx context.Context, message string) {
	if err := o.runlog.AppendLog(ctx, message); err != nil {
		o.logger.Warn("appending run log", "message", message, "err", err)
	}
}
