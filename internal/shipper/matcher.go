// Package shipper tails a host log source and forwards lines that contain a
// suspicious keyword to the dashboard ingest endpoint.
package shipper

import "strings"

// DefaultKeywords is used when no keywords are configured.
var DefaultKeywords = []string{
	"Failed password",
	"authentication failure",
	"error",
	"unauthorized",
	"brute",
	"invalid user",
}

// Matcher does case-insensitive substring matching against a keyword list.
type Matcher struct {
	keywords []string
	lowered  []string
}

func NewMatcher(keywords []string) *Matcher {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	m := &Matcher{}
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		m.keywords = append(m.keywords, k)
		m.lowered = append(m.lowered, strings.ToLower(k))
	}
	return m
}

// Match returns the first keyword found in line.
func (m *Matcher) Match(line string) (string, bool) {
	l := strings.ToLower(line)
	for i, k := range m.lowered {
		if strings.Contains(l, k) {
			return m.keywords[i], true
		}
	}
	return "", false
}
