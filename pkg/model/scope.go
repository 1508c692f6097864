package model

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const (
	redactedSegment = "*"
	redactedValue   = "redacted"

	minHexSegmentLen = 16
)

// NormalizeScope turns a request path into the scope its profiles are grouped
// by. The query string and fragment are dropped, repeated slashes are
// collapsed, and segments that look like identifiers are replaced with "*".
func NormalizeScope(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	kept := segments[:0]
	for i, s := range segments {
		if s == "" && i > 0 && i < len(segments)-1 {
			continue
		}
		if isIdentifier(s) {
			s = redactedSegment
		}
		kept = append(kept, s)
	}
	path = strings.Join(kept, "/")
	if path == "" {
		return "/"
	}
	return path
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	if isDigits(s) {
		return true
	}
	if len(s) >= minHexSegmentLen && isHex(s) {
		return true
	}
	return len(s) == 36 && uuid.Validate(s) == nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// RedactParameters replaces the values of sensitive query parameters.
// Keys are matched case-insensitively and the result is sorted by key.
// Unparsable input is dropped entirely.
func RedactParameters(raw string, sensitive []string) string {
	raw = strings.TrimPrefix(raw, "?")
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	for key, v := range values {
		for _, s := range sensitive {
			if strings.EqualFold(key, s) {
				for i := range v {
					v[i] = redactedValue
				}
				break
			}
		}
	}
	return values.Encode()
}
