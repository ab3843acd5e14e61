package paths

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchGlob checks if a local path (no namespace) matches a glob pattern.
// Supports *, ?, [...], {a,b} and ** patterns
func MatchGlob(pattern, path string) bool {
	matched, err := doublestar.Match(pattern, path)
	if err != nil {
		return false
	}
	return matched
}

// MatchPath checks a Path against a pattern. Patterns carrying a namespace
// prefix ("wiki:Sandbox/**") only match paths in that namespace.
func MatchPath(pattern string, p Path) bool {
	if ns, rest, ok := splitNamespace(pattern); ok {
		if ns != p.Space.Namespace {
			return false
		}
		pattern = rest
	}
	return MatchGlob(pattern, p.Local())
}

// ValidatePattern reports whether a glob pattern is well formed
func ValidatePattern(pattern string) error {
	if _, rest, ok := splitNamespace(pattern); ok {
		pattern = rest
	}
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid glob pattern: %s", pattern)
	}
	return nil
}

// IsGlobPattern checks if a string contains glob characters
func IsGlobPattern(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}
