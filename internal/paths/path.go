// Package paths models hierarchical item addresses: a namespace, a chain of
// spaces (containers) and an item name. The reserved name INDEX denotes a
// space's own home item.
package paths

import (
	"fmt"
	"strings"
)

// IndexName is the reserved item name of a space's home item.
const IndexName = "INDEX"

// Space is a container address: a namespace plus a non-empty chain of names.
type Space struct {
	Namespace string
	Names     []string
}

// NewSpace builds a space, copying names
func NewSpace(ns string, names ...string) Space {
	return Space{Namespace: ns, Names: append([]string(nil), names...)}
}

// IsZero reports whether the space is unset
func (s Space) IsZero() bool {
	return len(s.Names) == 0
}

// Name returns the last space name
func (s Space) Name() string {
	if len(s.Names) == 0 {
		return ""
	}
	return s.Names[len(s.Names)-1]
}

// Root returns the top-level space name
func (s Space) Root() string {
	if len(s.Names) == 0 {
		return ""
	}
	return s.Names[0]
}

// Depth returns the number of names in the chain
func (s Space) Depth() int {
	return len(s.Names)
}

// Parent returns the enclosing space. ok is false for a top-level space.
func (s Space) Parent() (Space, bool) {
	if len(s.Names) < 2 {
		return Space{}, false
	}
	return NewSpace(s.Namespace, s.Names[:len(s.Names)-1]...), true
}

// Child returns the nested space with the given name
func (s Space) Child(name string) Space {
	names := make([]string, 0, len(s.Names)+1)
	names = append(names, s.Names...)
	return Space{Namespace: s.Namespace, Names: append(names, name)}
}

// Rename returns the space with its last name replaced
func (s Space) Rename(name string) Space {
	if len(s.Names) == 0 {
		return s
	}
	out := NewSpace(s.Namespace, s.Names...)
	out.Names[len(out.Names)-1] = name
	return out
}

// Index returns the space's home item
func (s Space) Index() Path {
	return s.Item(IndexName)
}

// Item returns the item with the given name in this space
func (s Space) Item(name string) Path {
	return Path{Space: NewSpace(s.Namespace, s.Names...), Name: name}
}

// Equal reports whether both spaces have the same namespace and names
func (s Space) Equal(o Space) bool {
	if s.Namespace != o.Namespace || len(s.Names) != len(o.Names) {
		return false
	}
	for i := range s.Names {
		if s.Names[i] != o.Names[i] {
			return false
		}
	}
	return true
}

// Local returns the escaped space path without namespace ("A/B")
func (s Space) Local() string {
	return JoinPath(s.Names...)
}

// String returns the escaped qualified form ("ns:A/B")
func (s Space) String() string {
	return s.Namespace + string(namespaceSep) + s.Local()
}

// Path addresses a single item.
type Path struct {
	Space Space
	Name  string
}

// New builds a path from a namespace and at least two segments; the last
// segment is the item name.
func New(ns string, segments ...string) (Path, error) {
	if len(segments) < 2 {
		return Path{}, fmt.Errorf("path needs a space and a name, got %d segment(s)", len(segments))
	}
	for _, seg := range segments {
		if err := ValidateSegment(seg); err != nil {
			return Path{}, err
		}
	}
	n := len(segments)
	return Path{Space: NewSpace(ns, segments[:n-1]...), Name: segments[n-1]}, nil
}

// Parse parses "ns:A/B/Name" or "A/B/Name". defaultNamespace applies when the
// string carries no namespace.
func Parse(s, defaultNamespace string) (Path, error) {
	ns, rest, ok := splitNamespace(strings.TrimSpace(s))
	if !ok {
		ns = defaultNamespace
	}
	if err := ValidateNamespace(ns); err != nil {
		return Path{}, fmt.Errorf("invalid path %q: %w", s, err)
	}
	p, err := New(ns, SplitPath(rest)...)
	if err != nil {
		return Path{}, fmt.Errorf("invalid path %q: %w", s, err)
	}
	return p, nil
}

// ParseSpace parses "ns:A/B" or "A/B" into a space
func ParseSpace(s, defaultNamespace string) (Space, error) {
	ns, rest, ok := splitNamespace(strings.TrimSpace(s))
	if !ok {
		ns = defaultNamespace
	}
	if err := ValidateNamespace(ns); err != nil {
		return Space{}, fmt.Errorf("invalid space %q: %w", s, err)
	}
	names := SplitPath(rest)
	if len(names) == 0 {
		return Space{}, fmt.Errorf("invalid space %q: no names", s)
	}
	for _, n := range names {
		if err := ValidateSegment(n); err != nil {
			return Space{}, fmt.Errorf("invalid space %q: %w", s, err)
		}
	}
	return Space{Namespace: ns, Names: names}, nil
}

// MustParse is Parse without a default namespace, panicking on error.
// Intended for tests and fixtures.
func MustParse(s string) Path {
	p, err := Parse(s, "")
	if err != nil {
		panic(err)
	}
	return p
}

// IsZero reports whether the path is unset
func (p Path) IsZero() bool {
	return p.Name == "" && p.Space.IsZero()
}

// Namespace returns the path's namespace
func (p Path) Namespace() string {
	return p.Space.Namespace
}

// IsIndex reports whether the path is a space's home item
func (p Path) IsIndex() bool {
	return p.Name == IndexName
}

// IsTerminal reports whether the path is a plain (non-index) item
func (p Path) IsTerminal() bool {
	return !p.IsIndex()
}

// Segments returns space names followed by the item name
func (p Path) Segments() []string {
	segs := make([]string, 0, len(p.Space.Names)+1)
	segs = append(segs, p.Space.Names...)
	return append(segs, p.Name)
}

// Equal reports whether namespace and all segments match
func (p Path) Equal(q Path) bool {
	return p.Name == q.Name && p.Space.Equal(q.Space)
}

// Local returns the escaped path without namespace ("A/B/INDEX")
func (p Path) Local() string {
	return JoinPath(p.Segments()...)
}

// String returns the escaped qualified form ("ns:A/B/INDEX")
func (p Path) String() string {
	if p.IsZero() {
		return ""
	}
	return p.Space.Namespace + string(namespaceSep) + p.Local()
}

// Key returns the string used to index paths in maps
func (p Path) Key() string {
	return p.String()
}

// MarshalText implements encoding.TextMarshaler
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty string yields
// the zero path.
func (p *Path) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*p = Path{}
		return nil
	}
	parsed, err := Parse(string(text), "")
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
