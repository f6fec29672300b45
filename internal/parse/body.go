package parse

import (
	"regexp"
	"strings"
)

// Filter is an extension hook applied to body content during
// normalization. The default is a pass-through; an external integration
// can substitute, for example, only the first quoted section of a
// multi-part reply.
type Filter func(content string) string

// AllowedTags is the markup allow-list applied to message bodies.
// Stripped tags lose their markup but keep their text content; allowed
// tags pass through with their attributes unchanged.
var AllowedTags = map[string]bool{
	"img": true, "p": true, "br": true,
	"i": true, "b": true, "u": true,
	"em": true, "strong": true, "strike": true,
	"font": true, "span": true, "div": true,
}

var (
	tagPattern     = regexp.MustCompile(`(?s)</?([a-zA-Z][a-zA-Z0-9]*)\b[^>]*>`)
	commentPattern = regexp.MustCompile(`(?s)<!--.*?-->`)
	titlePattern   = regexp.MustCompile(`(?is)<title>(.+?)</title>`)
)

// Normalizer turns a decoded message body into post content and an
// optional embedded title.
type Normalizer struct {
	// Allowed is the tag allow-list; defaults to AllowedTags.
	Allowed map[string]bool

	// PreSplit runs after tag stripping, before delimiter splitting.
	PreSplit Filter

	// PostSplit runs on the final content after delimiter splitting.
	PostSplit Filter
}

// NewNormalizer returns a Normalizer with the default allow-list and
// pass-through filters.
func NewNormalizer() *Normalizer {
	return &Normalizer{Allowed: AllowedTags}
}

// Normalize applies the body conventions in order: strip disallowed
// markup, trim, pre-split hook, phone-delimiter split, trim, post-split
// hook, embedded title extraction. The returned title is empty when the
// body carries no <title> marker; callers then fall back to the subject.
func (n *Normalizer) Normalize(body string) (content, title string) {
	allowed := n.Allowed
	if allowed == nil {
		allowed = AllowedTags
	}

	// The title marker must survive stripping so it can be extracted
	// below; it is removed from the final body instead.
	content = StripTags(body, withTitleTag(allowed))
	content = strings.TrimSpace(content)

	if n.PreSplit != nil {
		content = n.PreSplit(content)
	}

	// Everything after the delimiter is the post; an empty tail falls
	// back to the text before it.
	parts := strings.SplitN(content, PhoneDelim, 2)
	if len(parts) == 2 && parts[1] != "" {
		content = parts[1]
	} else {
		content = parts[0]
	}
	content = strings.TrimSpace(content)

	if n.PostSplit != nil {
		content = n.PostSplit(content)
	}

	title = EmbeddedTitle(content)
	if title != "" {
		content = strings.TrimSpace(titlePattern.ReplaceAllString(content, ""))
	}

	return content, title
}

// withTitleTag extends an allow-list with the title marker tag.
func withTitleTag(allowed map[string]bool) map[string]bool {
	if allowed["title"] {
		return allowed
	}
	extended := make(map[string]bool, len(allowed)+1)
	for tag := range allowed {
		extended[tag] = true
	}
	extended["title"] = true
	return extended
}

// StripTags removes markup tags whose name is not in the allow-list,
// keeping their text content. Allowed tags and their attributes pass
// through unchanged. HTML comments are always removed.
func StripTags(s string, allowed map[string]bool) string {
	s = commentPattern.ReplaceAllString(s, "")
	return tagPattern.ReplaceAllStringFunc(s, func(tag string) string {
		m := tagPattern.FindStringSubmatch(tag)
		if m == nil {
			return ""
		}
		if allowed[strings.ToLower(m[1])] {
			return tag
		}
		return ""
	})
}

// EmbeddedTitle extracts a post title designated inline in the content
// via a leading <title>...</title> marker, or "" when absent.
func EmbeddedTitle(content string) string {
	m := titlePattern.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
