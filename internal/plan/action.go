// Package plan holds the migration plan: a tree of actions with two
// synchronized lookup indexes, by source and by target.
package plan

import (
	"fmt"

	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/paths"
)

// Handle is the stable arena index of a registered action
type Handle int

// RootHandle is the handle of the synthetic root action
const RootHandle Handle = -1

// Action moves one item from Source to Target and carries the overrides
// needed to keep its effective preferences and rights.
type Action struct {
	handle Handle
	source paths.Path
	target paths.Path

	// Enabled is true unless the user opts the action out before execution.
	Enabled bool
	// DeletePrevious is set when Target holds a stale duplicate of Source.
	DeletePrevious bool

	preferences []domain.Preference
	rights      []domain.Right
	children    []*Action
}

func newAction(h Handle, source, target paths.Path) *Action {
	return &Action{handle: h, source: source, target: target, Enabled: true}
}

// Handle returns the arena handle
func (a *Action) Handle() Handle { return a.handle }

// Source returns the path of the item being migrated
func (a *Action) Source() paths.Path { return a.source }

// Target returns the path the item is moved to
func (a *Action) Target() paths.Path { return a.target }

// IsRoot reports whether this is the tree's synthetic root
func (a *Action) IsRoot() bool { return a.handle == RootHandle }

// IsIdentity reports whether the action leaves the item in place
func (a *Action) IsIdentity() bool {
	return !a.IsRoot() && a.source.Equal(a.target)
}

// Children returns the structural children in the target hierarchy.
// The slice must not be modified.
func (a *Action) Children() []*Action { return a.children }

// AddChild appends a child action
func (a *Action) AddChild(child *Action) {
	a.children = append(a.children, child)
}

// Preferences returns the ordered preference overrides
func (a *Action) Preferences() []domain.Preference { return a.preferences }

// Rights returns the ordered right overrides
func (a *Action) Rights() []domain.Right { return a.rights }

// HasPreferences reports whether any preference override is recorded
func (a *Action) HasPreferences() bool { return len(a.preferences) > 0 }

// HasRights reports whether any right override is recorded
func (a *Action) HasRights() bool { return len(a.rights) > 0 }

// Preference returns the override recorded for name
func (a *Action) Preference(name string) (domain.Preference, bool) {
	for _, p := range a.preferences {
		if p.Name == name {
			return p, true
		}
	}
	return domain.Preference{}, false
}

// AddPreference records an override, replacing any entry with the same name.
// The new entry goes to the end of the list.
func (a *Action) AddPreference(p domain.Preference) {
	kept := a.preferences[:0]
	for _, existing := range a.preferences {
		if existing.Name != p.Name {
			kept = append(kept, existing)
		}
	}
	a.preferences = append(kept, p)
}

// AddRight records a rule, replacing any rule with the same concern.
// The new entry goes to the end of the list.
func (a *Action) AddRight(r domain.Right) {
	kept := a.rights[:0]
	for _, existing := range a.rights {
		if !existing.SameConcern(r) {
			kept = append(kept, existing)
		}
	}
	a.rights = append(kept, r)
}

// ClearPreferences drops all preference overrides
func (a *Action) ClearPreferences() { a.preferences = nil }

// ClearRights drops all right overrides
func (a *Action) ClearRights() { a.rights = nil }

func (a *Action) String() string {
	if a.IsRoot() {
		return "[root]"
	}
	return fmt.Sprintf("[%s] -> [%s]", a.source, a.target)
}
