package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"mailpost/internal/config"
	"mailpost/internal/mailbox"
	"mailpost/internal/model"
	"mailpost/internal/store"
	"mailpost/tests/testutil"
)

// fakeSession is an in-memory mailbox session.
type fakeSession struct {
	ids     []mailbox.MessageID
	headers map[mailbox.MessageID]string
	bodies  map[mailbox.MessageID]string

	listErr error

	deleted []mailbox.MessageID
	closed  bool
}

func (s *fakeSession) ListUnseen(context.Context) ([]mailbox.MessageID, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.ids, nil
}

func (s *fakeSession) FetchHeaders(_ context.Context, id mailbox.MessageID) (string, error) {
	return s.headers[id], nil
}

func (s *fakeSession) FetchBody(_ context.Context, id mailbox.MessageID) ([]byte, error) {
	return []byte(s.bodies[id]), nil
}

func (s *fakeSession) MarkDeleted(_ context.Context, ids []mailbox.MessageID) error {
	s.deleted = append(s.deleted, ids...)
	return nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

// fakeClient hands out a fixed session and counts connections.
type fakeClient struct {
	session  *fakeSession
	connects int
	err      error
}

func (c *fakeClient) Connect(context.Context, mailbox.Credentials) (mailbox.Session, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.connects++
	return c.session, nil
}

// rejectingSink fails for one specific title and delegates the rest.
type rejectingSink struct {
	inner      Sink
	rejectWith string
}

func (s *rejectingSink) CreateContent(
	ctx context.Context, rec model.ContentRecord,
) (int64, error) {
	if rec.Title == s.rejectWith {
		return 0, fmt.Errorf("sink rejected %q", rec.Title)
	}
	return s.inner.CreateContent(ctx, rec)
}

func testConfig() config.Config {
	return config.Config{
		MailserverURL:    "mail.test.invalid",
		MailserverLogin:  "user@test.invalid",
		MailserverPass:   "secret",
		MailserverPort:   143,
		DefaultOwnerID:   1,
		MinCheckInterval: 5 * time.Minute,
	}
}

func newTestOrchestrator(
	t *testing.T, cfg config.Config, client mailbox.Client,
) (*Orchestrator, *store.SQLiteStore) {
	t.Helper()

	st := testutil.NewTestStore(t)
	orch := New(cfg, Deps{
		Client:   client,
		State:    st,
		Log:      st,
		Resolver: st,
		Sink:     st,
	})
	return orch, st
}

func lastLogMessage(t *testing.T, st *store.SQLiteStore) string {
	t.Helper()

	entries, err := st.RecentLog(context.Background(), 1)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("run log is empty")
	}
	return entries[0].Message
}

func TestCheckMailRateLimited(t *testing.T) {
	session := &fakeSession{}
	client := &fakeClient{session: session}
	orch, st := newTestOrchestrator(t, testConfig(), client)

	ctx := context.Background()

	if err := orch.CheckMail(ctx); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if client.connects != 1 {
		t.Fatalf("connects = %d, want 1", client.connects)
	}

	// Second cycle within the minimum interval performs no network I/O.
	if err := orch.CheckMail(ctx); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if client.connects != 1 {
		t.Errorf("connects = %d after rate-limited cycle, want 1", client.connects)
	}
	if got := lastLogMessage(t, st); got != "Slow down cowboy, no need to check for new mails so often!" {
		t.Errorf("log = %q", got)
	}
}

func TestCheckMailDebugBypassesRateLimit(t *testing.T) {
	session := &fakeSession{}
	client := &fakeClient{session: session}
	cfg := testConfig()
	cfg.Debug = true
	orch, _ := newTestOrchestrator(t, cfg, client)

	ctx := context.Background()
	if err := orch.CheckMail(ctx); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if err := orch.CheckMail(ctx); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if client.connects != 2 {
		t.Errorf("connects = %d, want 2", client.connects)
	}
}

func TestCheckMailOptionsNotSet(t *testing.T) {
	client := &fakeClient{session: &fakeSession{}}
	cfg := testConfig()
	cfg.MailserverPass = config.DefaultMailserverPass
	orch, st := newTestOrchestrator(t, cfg, client)

	if err := orch.CheckMail(context.Background()); err != nil {
		t.Fatalf("CheckMail: %v", err)
	}
	if client.connects != 0 {
		t.Errorf("connects = %d, want 0", client.connects)
	}
	if got := lastLogMessage(t, st); got != "Options not set; skipping." {
		t.Errorf("log = %q", got)
	}
}

func TestCheckMailNoMessages(t *testing.T) {
	session := &fakeSession{}
	client := &fakeClient{session: session}
	orch, st := newTestOrchestrator(t, testConfig(), client)

	if err := orch.CheckMail(context.Background()); err != nil {
		t.Fatalf("CheckMail: %v", err)
	}
	if !session.closed {
		t.Error("session not closed")
	}
	if len(session.deleted) != 0 {
		t.Errorf("deleted = %v, want none", session.deleted)
	}
	if got := lastLogMessage(t, st); got != "There doesn't seem to be any new mail." {
		t.Errorf("log = %q", got)
	}
}

func TestCheckMailConnectError(t *testing.T) {
	client := &fakeClient{err: &mailbox.ConnError{Addr: "mail.test.invalid:143", Err: errors.New("refused")}}
	orch, st := newTestOrchestrator(t, testConfig(), client)

	if err := orch.CheckMail(context.Background()); err == nil {
		t.Fatal("CheckMail: expected error")
	}
	if got := lastLogMessage(t, st); got != "An error occurred: connecting to mail.test.invalid:143: refused" {
		t.Errorf("log = %q", got)
	}
}

func TestCheckMailListingErrorSkipsDeletion(t *testing.T) {
	session := &fakeSession{
		listErr: &mailbox.ProtocolError{Op: "searching messages", Err: errors.New("boom")},
	}
	client := &fakeClient{session: session}
	orch, _ := newTestOrchestrator(t, testConfig(), client)

	if err := orch.CheckMail(context.Background()); err == nil {
		t.Fatal("CheckMail: expected error")
	}
	if len(session.deleted) != 0 {
		t.Errorf("deleted = %v, want none when listing failed", session.deleted)
	}
	if !session.closed {
		t.Error("session not closed")
	}
}

func TestCheckMailEndToEnd(t *testing.T) {
	session := &fakeSession{
		ids: []mailbox.MessageID{7},
		headers: map[mailbox.MessageID]string{
			7: "From: a@b.com\r\n" +
				"Subject: Hi::Vacation notice\r\n" +
				"Date: Mon, 1 Jan 2024 10:00:00 +0000\r\n",
		},
		bodies: map[mailbox.MessageID]string{
			7: "Out of office::Back on Monday",
		},
	}
	client := &fakeClient{session: session}
	orch, st := newTestOrchestrator(t, testConfig(), client)

	ctx := context.Background()
	if _, err := st.AddOwner(ctx, "a@b.com", true); err != nil {
		t.Fatalf("adding owner: %v", err)
	}

	if err := orch.CheckMail(ctx); err != nil {
		t.Fatalf("CheckMail: %v", err)
	}

	recs, err := st.ListContents(ctx, 10)
	if err != nil {
		t.Fatalf("listing contents: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}

	rec := recs[0]
	// Subject keeps the segment before the phone delimiter.
	if rec.Title != "Hi" {
		t.Errorf("title = %q, want %q", rec.Title, "Hi")
	}
	if rec.Body != "Back on Monday" {
		t.Errorf("body = %q, want %q", rec.Body, "Back on Monday")
	}
	if rec.Status != model.StatusPublish {
		t.Errorf("status = %q, want publish", rec.Status)
	}
	wantUTC := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if !rec.AuthoredAtUTC.Equal(wantUTC) {
		t.Errorf("authored at utc = %v, want %v", rec.AuthoredAtUTC, wantUTC)
	}

	if len(session.deleted) != 1 || session.deleted[0] != 7 {
		t.Errorf("deleted = %v, want [7]", session.deleted)
	}
	if !session.closed {
		t.Error("session not closed")
	}
}

func TestCheckMailUnknownAuthorPending(t *testing.T) {
	session := &fakeSession{
		ids: []mailbox.MessageID{1},
		headers: map[mailbox.MessageID]string{
			1: "From: not an email\r\n" +
				"Subject: Anonymous tip\r\n" +
				"Date: Mon, 1 Jan 2024 10:00:00 +0000\r\n",
		},
		bodies: map[mailbox.MessageID]string{1: "something happened"},
	}
	client := &fakeClient{session: session}
	orch, st := newTestOrchestrator(t, testConfig(), client)

	ctx := context.Background()
	if err := orch.CheckMail(ctx); err != nil {
		t.Fatalf("CheckMail: %v", err)
	}

	recs, err := st.ListContents(ctx, 10)
	if err != nil {
		t.Fatalf("listing contents: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	if recs[0].Status != model.StatusPending {
		t.Errorf("status = %q, want pending", recs[0].Status)
	}
	if recs[0].OwnerID != 1 {
		t.Errorf("owner = %d, want default owner 1", recs[0].OwnerID)
	}
}

func TestCheckMailPerMessageFailureIsolated(t *testing.T) {
	session := &fakeSession{
		ids: []mailbox.MessageID{1, 2},
		headers: map[mailbox.MessageID]string{
			1: "From: a@b.com\r\nSubject: bad one\r\nDate: Mon, 1 Jan 2024 10:00:00 +0000\r\n",
			2: "From: a@b.com\r\nSubject: good one\r\nDate: Mon, 1 Jan 2024 10:00:00 +0000\r\n",
		},
		bodies: map[mailbox.MessageID]string{
			1: "first body",
			2: "second body",
		},
	}
	client := &fakeClient{session: session}

	st := testutil.NewTestStore(t)
	orch := New(testConfig(), Deps{
		Client:   client,
		State:    st,
		Log:      st,
		Resolver: st,
		Sink:     &rejectingSink{inner: st, rejectWith: "bad one"},
	})

	ctx := context.Background()
	if err := orch.CheckMail(ctx); err != nil {
		t.Fatalf("CheckMail: %v", err)
	}

	recs, err := st.ListContents(ctx, 10)
	if err != nil {
		t.Fatalf("listing contents: %v", err)
	}
	if len(recs) != 1 || recs[0].Title != "good one" {
		t.Fatalf("records = %+v, want only %q", recs, "good one")
	}

	// Failed messages are still removed so they are never reprocessed.
	if len(session.deleted) != 2 {
		t.Errorf("deleted = %v, want both ids", session.deleted)
	}
}

func TestCheckMailMalformedDateFallsBack(t *testing.T) {
	session := &fakeSession{
		ids: []mailbox.MessageID{1},
		headers: map[mailbox.MessageID]string{
			1: "From: a@b.com\r\nSubject: undated\r\nDate: garbage\r\n",
		},
		bodies: map[mailbox.MessageID]string{1: "text"},
	}
	client := &fakeClient{session: session}
	orch, st := newTestOrchestrator(t, testConfig(), client)

	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	orch.now = func() time.Time { return fixed }

	ctx := context.Background()
	if err := orch.CheckMail(ctx); err != nil {
		t.Fatalf("CheckMail: %v", err)
	}

	recs, err := st.ListContents(ctx, 10)
	if err != nil {
		t.Fatalf("listing contents: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	if !recs[0].AuthoredAtUTC.Equal(fixed) {
		t.Errorf("authored at = %v, want fallback %v", recs[0].AuthoredAtUTC, fixed)
	}
}
