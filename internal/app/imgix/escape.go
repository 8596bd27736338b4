package imgix

import (
	"sort"
	"strings"
)

const upperhex = "0123456789ABCDEF"

// unreserved reports whether c is in the RFC 3986 unreserved set.
func unreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}

// escapePath percent-encodes s but keeps '/' so multi-segment paths stay structured.
func escapePath(s string) string {
	return escape(s, true)
}

// escapeSegment percent-encodes everything outside the unreserved set, '/' included.
// Used for opaque path segments and for query keys and values.
func escapeSegment(s string) string {
	return escape(s, false)
}

func escape(s string, keepSlash bool) string {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !unreserved(c) && !(keepSlash && c == '/') {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) || (keepSlash && c == '/') {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

// isAbsoluteURL reports whether the path is a full http(s) URL that has to be
// embedded as a single opaque segment.
func isAbsoluteURL(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// encodePath returns the encoded path without its leading slash.
func encodePath(p string) string {
	if isAbsoluteURL(p) {
		return escapeSegment(p)
	}
	return escapePath(strings.TrimPrefix(p, "/"))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
