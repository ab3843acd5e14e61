package paths

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	namespaceSep = ':'
	segmentSep   = '/'
	escapeChar   = '\\'
	maxSegLen    = 255
)

// ValidateSegment checks that a space or item name can be stored and addressed.
// Rules:
// - Not empty
// - No control characters
// - Max length: 255 bytes
func ValidateSegment(s string) error {
	if s == "" {
		return fmt.Errorf("segment cannot be empty")
	}

	if len(s) > maxSegLen {
		return fmt.Errorf("segment exceeds maximum length of %d bytes", maxSegLen)
	}

	for _, r := range s {
		if unicode.IsControl(r) {
			return fmt.Errorf("segment %q contains a control character", s)
		}
	}

	return nil
}

// ValidateNamespace checks a namespace identifier. Namespaces are plain
// identifiers and may not contain separators.
func ValidateNamespace(ns string) error {
	if ns == "" {
		return fmt.Errorf("namespace cannot be empty")
	}
	if strings.ContainsAny(ns, ":/\\") {
		return fmt.Errorf("invalid namespace %q: must not contain ':', '/' or '\\'", ns)
	}
	return nil
}

// EscapeSegment escapes separator characters inside a single segment
func EscapeSegment(s string) string {
	if !strings.ContainsAny(s, ":/\\") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2)
	for _, r := range s {
		if r == escapeChar || r == segmentSep || r == namespaceSep {
			b.WriteRune(escapeChar)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SplitPath splits an escaped path into unescaped segments
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}

	var (
		segments []string
		cur      strings.Builder
		escaped  bool
	)
	for _, r := range path {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == escapeChar:
			escaped = true
		case r == segmentSep:
			segments = append(segments, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	segments = append(segments, cur.String())
	return segments
}

// JoinPath joins segments, escaping each one
func JoinPath(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = EscapeSegment(s)
	}
	return strings.Join(escaped, string(segmentSep))
}

// splitNamespace returns the part before the first unescaped ':' and the rest.
// ok is false when the string carries no namespace.
func splitNamespace(s string) (ns, rest string, ok bool) {
	escaped := false
	for i := 0; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == escapeChar:
			escaped = true
		case s[i] == namespaceSep:
			return s[:i], s[i+1:], true
		}
	}
	return "", s, false
}
