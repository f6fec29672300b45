package mailbox

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
)

// IMAPClient implements Client over IMAP using go-imap v2.
type IMAPClient struct{}

// NewIMAPClient creates an IMAP-backed mailbox client.
func NewIMAPClient() *IMAPClient {
	return &IMAPClient{}
}

// Connect dials the server, authenticates, and selects INBOX.
func (c *IMAPClient) Connect(
	_ context.Context, creds Credentials,
) (Session, error) {
	addr := net.JoinHostPort(creds.Host, strconv.Itoa(creds.Port))

	var client *imapclient.Client
	var err error

	if creds.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, &ConnError{Addr: addr, Err: err}
	}

	if err := client.Login(creds.Login, creds.Secret).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &ConnError{Addr: addr, Err: err}
	}

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &ProtocolError{Op: "selecting INBOX", Err: err}
	}

	return &imapSession{client: client}, nil
}

// imapSession wraps a connected imapclient.Client as a Session.
type imapSession struct {
	client *imapclient.Client
}

// ListUnseen searches for messages without the \Seen flag.
func (s *imapSession) ListUnseen(
	_ context.Context,
) ([]MessageID, error) {
	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}

	searchData, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, &ProtocolError{Op: "searching messages", Err: err}
	}

	uids := searchData.AllUIDs()
	ids := make([]MessageID, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, MessageID(uid))
	}
	return ids, nil
}

// FetchHeaders fetches the raw header block of a single message without
// marking it seen.
func (s *imapSession) FetchHeaders(
	_ context.Context, id MessageID,
) (string, error) {
	section := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierHeader,
		Peek:      true,
	}

	buf, err := s.fetchOne(id, section)
	if err != nil {
		return "", err
	}

	raw := buf.FindBodySection(section)
	return string(raw), nil
}

// FetchBody fetches the full message and returns its decoded textual
// body, preferring text/plain over text/html.
func (s *imapSession) FetchBody(
	_ context.Context, id MessageID,
) ([]byte, error) {
	section := &imap.FetchItemBodySection{
		Peek: true,
	}

	buf, err := s.fetchOne(id, section)
	if err != nil {
		return nil, err
	}

	raw := buf.FindBodySection(section)
	return decodeTextBody(raw), nil
}

// fetchOne fetches a single message with the given body section.
func (s *imapSession) fetchOne(
	id MessageID, section *imap.FetchItemBodySection,
) (*imapclient.FetchMessageBuffer, error) {
	uidSet := imap.UIDSetNum(imap.UID(id))

	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}

	fetchCmd := s.client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, &ProtocolError{
			Op:  "fetching message " + strconv.FormatUint(uint64(id), 10),
			Err: io.EOF,
		}
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, &ProtocolError{Op: "collecting message data", Err: err}
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, &ProtocolError{Op: "closing fetch", Err: err}
	}

	return buf, nil
}

// MarkDeleted flags the given messages for deletion. Committing happens
// on Close.
func (s *imapSession) MarkDeleted(
	_ context.Context, ids []MessageID,
) error {
	if len(ids) == 0 {
		return nil
	}

	uids := make([]imap.UID, 0, len(ids))
	for _, id := range ids {
		uids = append(uids, imap.UID(id))
	}

	storeCmd := s.client.Store(imap.UIDSetNum(uids...), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil)

	if err := storeCmd.Close(); err != nil {
		return &ProtocolError{Op: "marking messages deleted", Err: err}
	}
	return nil
}

// Close expunges flagged messages and logs out. The logout is attempted
// even if the expunge fails.
func (s *imapSession) Close() error {
	expungeErr := s.client.Expunge().Close()

	if err := s.client.Logout().Wait(); err != nil {
		return &ProtocolError{Op: "logging out", Err: err}
	}
	if expungeErr != nil {
		return &ProtocolError{Op: "expunging messages", Err: expungeErr}
	}
	return nil
}

// decodeTextBody parses a raw RFC 5322 message and returns its first
// text/plain part, falling back to text/html, with transfer encoding
// already decoded by go-message.
func decodeTextBody(raw []byte) []byte {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return rawBodyFallback(raw)
	}
	defer mr.Close()

	var html []byte
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			return body
		case strings.HasPrefix(contentType, "text/html"):
			if html == nil {
				html = body
			}
		}
	}

	if html != nil {
		return html
	}
	return rawBodyFallback(raw)
}

// rawBodyFallback strips the header block from an unparseable message
// and returns the remainder undecoded.
func rawBodyFallback(raw []byte) []byte {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return raw[i+4:]
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		return raw[i+2:]
	}
	return raw
}
