package parse

import (
	"bufio"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/textproto"
)

// PhoneDelim separates a short typed prefix from the intended content,
// in both subjects and bodies. A convention for constrained input
// devices: everything a phone keyboard appends after the marker is not
// part of the post.
const PhoneDelim = "::"

// Headers holds the raw header fields the pipeline consumes.
type Headers struct {
	Subject string
	From    string
	ReplyTo string
	Date    string
}

// ReadHeaders parses a raw header block into its relevant fields.
func ReadHeaders(raw string) (Headers, error) {
	if !strings.HasSuffix(raw, "\n") {
		raw += "\r\n"
	}
	// Guarantee the blank-line terminator the reader expects.
	raw += "\r\n"

	hdr, err := textproto.ReadHeader(bufio.NewReader(strings.NewReader(raw)))
	if err != nil {
		return Headers{}, fmt.Errorf("reading headers: %w", err)
	}

	return Headers{
		Subject: hdr.Get("Subject"),
		From:    hdr.Get("From"),
		ReplyTo: hdr.Get("Reply-To"),
		Date:    hdr.Get("Date"),
	}, nil
}

// ParsedSubject returns the trimmed text before the first phone
// delimiter. With no delimiter present the whole trimmed value is the
// subject.
func (h Headers) ParsedSubject() string {
	before, _, _ := strings.Cut(h.Subject, PhoneDelim)
	return strings.TrimSpace(before)
}

// AuthorCandidate returns the raw header value to resolve the author
// from. Reply-To wins over From when present and non-empty.
func (h Headers) AuthorCandidate() string {
	if strings.TrimSpace(h.ReplyTo) != "" {
		return h.ReplyTo
	}
	return h.From
}

var addrPattern = regexp.MustCompile(`(?i)[a-z0-9_.-]+@[a-z0-9_.-]+`)

// ExtractAddress pulls a bare email address out of a header value such
// as "Jane Doe <jane@example.com>". Among all address-shaped substrings
// it picks the first one not followed by a later "<", so a display name
// that itself looks like an address does not shadow the real one in
// angle brackets. With no match the trimmed input is returned as-is.
func ExtractAddress(candidate string) string {
	for _, loc := range addrPattern.FindAllStringIndex(candidate, -1) {
		if !strings.Contains(candidate[loc[1]:], "<") {
			return candidate[loc[0]:loc[1]]
		}
	}
	return strings.TrimSpace(candidate)
}

// ValidAddress reports whether s is a syntactically well-formed email
// address.
func ValidAddress(s string) bool {
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

var monthNums = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// ParseDate parses an SMTP-style Date header of the form
// "[Weekday,] D Mon YYYY HH:MM:SS +ZZZZ" and returns the instant as
// site-local and UTC times, both derived from the same instant.
//
// The zone arithmetic deliberately multiplies the integer-parsed offset
// field by 36 to obtain seconds ("+0530" -> 530*36 = 19080s, which is
// 5h18m rather than 5h30m). This mirrors the legacy ingestion behavior;
// do not "fix" it without migrating stored timestamps.
func ParseDate(
	raw string, siteOffsetSeconds int,
) (local, utc time.Time, err error) {
	ddate := strings.TrimSpace(raw)
	if ddate == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("empty date header")
	}

	// Discard the optional weekday name up to the first comma.
	if i := strings.Index(ddate, ","); i > 0 {
		ddate = strings.TrimSpace(ddate[i+1:])
	}

	fields := strings.Fields(ddate)
	if len(fields) < 5 {
		return time.Time{}, time.Time{}, fmt.Errorf(
			"malformed date %q: want day, month, year, time, zone", raw,
		)
	}

	day, err := strconv.Atoi(fields[0])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf(
			"malformed day in date %q", raw,
		)
	}
	year, err := strconv.Atoi(fields[2])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf(
			"malformed year in date %q", raw,
		)
	}

	month, ok := monthNums[fields[1]]
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf(
			"unknown month %q in date %q", fields[1], raw,
		)
	}

	clock := strings.Split(fields[3], ":")
	if len(clock) != 3 {
		return time.Time{}, time.Time{}, fmt.Errorf(
			"malformed time in date %q", raw,
		)
	}
	hour, err1 := strconv.Atoi(clock[0])
	minute, err2 := strconv.Atoi(clock[1])
	second, err3 := strconv.Atoi(clock[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, time.Time{}, fmt.Errorf(
			"malformed time in date %q", raw,
		)
	}

	// Non-numeric zone fields degrade to zero rather than failing the
	// whole parse, matching intval() semantics.
	offset := leadingInt(fields[4])

	utc = time.Date(year, month, day, hour, minute, second, 0, time.UTC).
		Add(-time.Duration(offset*36) * time.Second)
	local = utc.Add(time.Duration(siteOffsetSeconds) * time.Second)

	return local, utc, nil
}

// leadingInt parses the leading signed integer prefix of s, returning 0
// when no digits are present.
func leadingInt(s string) int {
	i := 0
	sign := 1
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		if s[i] == '-' {
			sign = -1
		}
		i++
	}
	n := 0
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		n = n*10 + int(s[i]-'0')
		i++
	}
	if i == start {
		return 0
	}
	return sign * n
}
