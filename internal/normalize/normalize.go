// Package normalize reduces raw feed entries to canonical identities and
// extraction inputs. Every function here is pure and total: malformed input
// yields a degenerate but well-defined result, never an error, so the dedup
// step downstream is always well-defined.
package normalize

import (
	"net/url"
	"strings"
	"unicode"

	"AnalystIntel/internal/domain"
)

// Query parameters appended by aggregators and social shares that carry no
// identity. "utm" appears bare on some providers, "utm_*" on the rest.
var trackingParams = map[string]bool{
	"utm":    true,
	"ved":    true,
	"usg":    true,
	"gclid":  true,
	"fbclid": true,
	"ref":    true,
}

// Corporate suffixes dropped from titles before similarity comparison, so
// "Tata Steel Ltd" and "Tata Steel" compare as the same name.
var suffixTokens = map[string]bool{
	"ltd":        true,
	"limited":    true,
	"inc":        true,
	"inds":       true,
	"industries": true,
	"india":      true,
}

// Key derives the dedup identity of a candidate.
func Key(c domain.Candidate) domain.IdentityKey {
	return domain.IdentityKey{
		Symbol:          strings.ToUpper(strings.TrimSpace(c.Symbol)),
		NormalizedURL:   URL(c.RawURL),
		NormalizedTitle: Title(c.RawTitle),
	}
}

// URL canonicalizes a feed link: resolves aggregator redirect wrappers,
// strips tracking parameters and fragments, lowercases scheme and host and
// drops a trailing slash. An unparseable input comes back trimmed as-is.
func URL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	raw = resolveRedirect(raw)

	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for name := range q {
		if trackingParams[name] || strings.HasPrefix(name, "utm_") {
			q.Del(name)
		}
	}
	u.RawQuery = q.Encode()
	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String()
}

// resolveRedirect unwraps one level of Google News style redirect links,
// where the real article URL rides in a query parameter.
func resolveRedirect(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	host := strings.ToLower(u.Host)
	if !strings.HasSuffix(host, "news.google.com") && !strings.HasPrefix(u.Path, "/url") {
		return raw
	}

	q := u.Query()
	for _, param := range []string{"url", "q"} {
		if target := q.Get(param); target != "" && strings.Contains(target, "://") {
			return target
		}
	}
	return raw
}

// Title lowercases, strips punctuation, collapses whitespace and drops
// corporate suffix tokens. Used only for similarity comparison; the record
// keeps the raw title.
func Title(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToLower(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	kept := fields[:0]
	for _, f := range fields {
		if suffixTokens[f] {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// ExtractionInput builds the text handed to the extractor: title plus
// snippet, which is all the feed reliably provides.
func ExtractionInput(c domain.Candidate) string {
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(strings.TrimSpace(c.RawTitle))
	if snippet := strings.TrimSpace(c.Snippet); snippet != "" {
		b.WriteString("\nSnippet: ")
		b.WriteString(snippet)
	}
	return b.String()
}

// SimilarityRatio is a normalized Levenshtein ratio in [0,1]: 1 for equal
// strings, 0 for entirely different ones. Two empty strings count as equal.
func SimilarityRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}

	dist := levenshtein(ra, rb)
	return 1 - float64(dist)/float64(longest)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
