package testutil

import (
	"context"
	"fmt"
	"sort"

	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/paths"
)

// Namespace is an in-memory item namespace with preferences and rights.
// It satisfies the planner, diff engine and executor collaborator interfaces
// and mirrors the SQLite store's move semantics.
type Namespace struct {
	Name string

	items      map[string]*domain.Item
	properties []string
	prefs      map[string]map[string]string // space key -> name -> value
	globals    map[string]string
	rules      map[string][]domain.Right // space key -> rules
	global     []domain.Right

	// ReadErrors makes ReadItem fail for the given path keys.
	ReadErrors map[string]error
	// MoveErrors makes Move fail for the given source keys.
	MoveErrors map[string]error

	// Applied records every ApplyOverrides call.
	Applied []AppliedOverrides
	// Moves records every successful move as "src -> dst".
	Moves []string
}

// AppliedOverrides is one recorded ApplyOverrides call
type AppliedOverrides struct {
	Space       paths.Space
	Preferences []domain.Preference
	Rights      []domain.Right
}

// NewNamespace creates an empty namespace
func NewNamespace(name string) *Namespace {
	return &Namespace{
		Name:       name,
		items:      make(map[string]*domain.Item),
		prefs:      make(map[string]map[string]string),
		globals:    make(map[string]string),
		rules:      make(map[string][]domain.Right),
		ReadErrors: make(map[string]error),
		MoveErrors: make(map[string]error),
	}
}

// Path parses a local path in this namespace, panicking on error
func (n *Namespace) Path(local string) paths.Path {
	p, err := paths.Parse(local, n.Name)
	if err != nil {
		panic(err)
	}
	return p
}

// Space parses a local space in this namespace, panicking on error
func (n *Namespace) Space(local string) paths.Space {
	s, err := paths.ParseSpace(local, n.Name)
	if err != nil {
		panic(err)
	}
	return s
}

// Put stores an item. Fields of meta other than Path are kept as given.
func (n *Namespace) Put(local string, meta domain.Item) *domain.Item {
	meta.Path = n.Path(local)
	item := meta
	n.items[item.Path.Key()] = &item
	return &item
}

// PutWithParent stores an item declaring parent as its parent
func (n *Namespace) PutWithParent(local, parent string) *domain.Item {
	pp := n.Path(parent)
	return n.Put(local, domain.Item{Parent: &pp})
}

// Item returns the stored item or nil
func (n *Namespace) Item(local string) *domain.Item {
	return n.items[n.Path(local).Key()]
}

// Has reports whether an item exists
func (n *Namespace) Has(local string) bool {
	return n.Item(local) != nil
}

// Paths returns every stored path in key order
func (n *Namespace) Paths() []paths.Path {
	keys := make([]string, 0, len(n.items))
	for k := range n.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]paths.Path, len(keys))
	for i, k := range keys {
		out[i] = n.items[k].Path
	}
	return out
}

// DefineProperty declares an inheritable preference property
func (n *Namespace) DefineProperty(name string) {
	n.properties = append(n.properties, name)
}

// SetPreference declares a preference value on a space
func (n *Namespace) SetPreference(space, name, value string) {
	key := n.Space(space).String()
	if n.prefs[key] == nil {
		n.prefs[key] = make(map[string]string)
	}
	n.prefs[key][name] = value
}

// SetGlobal sets a namespace-wide default
func (n *Namespace) SetGlobal(name, value string) {
	n.globals[name] = value
}

// AddRule declares an access rule on a space
func (n *Namespace) AddRule(space string, r domain.Right) {
	key := n.Space(space).String()
	n.rules[key] = append(n.rules[key], r)
}

// AddGlobalRule declares a namespace-wide access rule
func (n *Namespace) AddGlobalRule(r domain.Right) {
	n.global = append(n.global, r)
}

// Exists implements the store contract
func (n *Namespace) Exists(_ context.Context, p paths.Path) (bool, error) {
	_, ok := n.items[p.Key()]
	return ok, nil
}

// ReadItem implements the store contract: nil, nil when p is absent
func (n *Namespace) ReadItem(_ context.Context, p paths.Path) (*domain.Item, error) {
	if err, ok := n.ReadErrors[p.Key()]; ok {
		return nil, err
	}
	item, ok := n.items[p.Key()]
	if !ok {
		return nil, nil
	}
	out := *item
	return &out, nil
}

// Move renames src to dst, marking dst as migrated from src
func (n *Namespace) Move(_ context.Context, src, dst paths.Path, opts domain.MoveOptions) error {
	if err, ok := n.MoveErrors[src.Key()]; ok {
		return err
	}
	item, ok := n.items[src.Key()]
	if !ok {
		return fmt.Errorf("%s: %w", src, domain.ErrNotFound)
	}
	if _, taken := n.items[dst.Key()]; taken {
		return fmt.Errorf("target %s already exists", dst)
	}

	delete(n.items, src.Key())
	from := src
	item.Path = dst
	item.MigratedFrom = &from
	n.items[dst.Key()] = item

	for _, other := range n.items {
		if other.Parent != nil && other.Parent.Equal(src) {
			moved := dst
			other.Parent = &moved
		}
	}

	if opts.AutoRedirect {
		to := dst
		n.items[src.Key()] = &domain.Item{Path: src, Hidden: true, RedirectTo: &to}
	}
	n.Moves = append(n.Moves, src.String()+" -> "+dst.String())
	return nil
}

// Delete removes an item
func (n *Namespace) Delete(_ context.Context, p paths.Path) error {
	if _, ok := n.items[p.Key()]; !ok {
		return fmt.Errorf("%s: %w", p, domain.ErrNotFound)
	}
	delete(n.items, p.Key())
	return nil
}

// SetParent updates an item's declared parent
func (n *Namespace) SetParent(_ context.Context, p, parent paths.Path) error {
	item, ok := n.items[p.Key()]
	if !ok {
		return fmt.Errorf("%s: %w", p, domain.ErrNotFound)
	}
	pp := parent
	item.Parent = &pp
	return nil
}

// ApplyOverrides writes preference values and rules to a space
func (n *Namespace) ApplyOverrides(_ context.Context, space paths.Space, prefs []domain.Preference, rights []domain.Right) error {
	key := space.String()
	for _, p := range prefs {
		if n.prefs[key] == nil {
			n.prefs[key] = make(map[string]string)
		}
		n.prefs[key][p.Name] = p.Value
	}
	for _, r := range rights {
		kept := n.rules[key][:0]
		for _, existing := range n.rules[key] {
			if !existing.SameConcern(r) {
				kept = append(kept, existing)
			}
		}
		r.Origin = ""
		n.rules[key] = append(kept, r)
	}
	n.Applied = append(n.Applied, AppliedOverrides{
		Space:       space,
		Preferences: append([]domain.Preference(nil), prefs...),
		Rights:      append([]domain.Right(nil), rights...),
	})
	return nil
}

// Properties implements the preference source contract
func (n *Namespace) Properties(_ context.Context, _ string) ([]string, error) {
	return append([]string(nil), n.properties...), nil
}

// DeclaredValue implements the preference source contract
func (n *Namespace) DeclaredValue(_ context.Context, space paths.Space, name string) (string, error) {
	return n.prefs[space.String()][name], nil
}

// GlobalValue implements the preference source contract
func (n *Namespace) GlobalValue(_ context.Context, _ string, name string) (string, error) {
	return n.globals[name], nil
}

// SpaceRules implements the rights source contract
func (n *Namespace) SpaceRules(_ context.Context, space paths.Space) ([]domain.Right, error) {
	return append([]domain.Right(nil), n.rules[space.String()]...), nil
}

// GlobalRules implements the rights source contract
func (n *Namespace) GlobalRules(_ context.Context, _ string) ([]domain.Right, error) {
	return append([]domain.Right(nil), n.global...), nil
}
