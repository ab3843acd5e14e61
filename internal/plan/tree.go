package plan

import (
	"sort"

	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/paths"
)

// Listener is notified after each action registration
type Listener interface {
	ActionAdded(t *Tree, a *Action)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(t *Tree, a *Action)

// ActionAdded implements Listener
func (f ListenerFunc) ActionAdded(t *Tree, a *Action) { f(t, a) }

// Tree owns every action of a plan. Actions live in an arena addressed by
// Handle; bySource and byTarget map path keys to handles and are always
// updated together.
type Tree struct {
	root      *Action
	arena     []*Action
	bySource  map[string]Handle
	byTarget  map[string]Handle
	listeners []Listener
}

// NewTree creates an empty plan
func NewTree() *Tree {
	return &Tree{
		root:     &Action{handle: RootHandle, Enabled: true},
		bySource: make(map[string]Handle),
		byTarget: make(map[string]Handle),
	}
}

// Root returns the synthetic root whose children are the top-level actions
func (t *Tree) Root() *Action { return t.root }

// Len returns the number of registered actions, root excluded
func (t *Tree) Len() int { return len(t.arena) }

// Action returns the action with handle h, or nil
func (t *Tree) Action(h Handle) *Action {
	if h == RootHandle {
		return t.root
	}
	if h < 0 || int(h) >= len(t.arena) {
		return nil
	}
	return t.arena[h]
}

// Actions returns all actions in registration order
func (t *Tree) Actions() []*Action {
	out := make([]*Action, len(t.arena))
	copy(out, t.arena)
	return out
}

// AddListener registers a listener for future registrations
func (t *Tree) AddListener(l Listener) {
	t.listeners = append(t.listeners, l)
}

// Add creates and registers an action. Both indexes are updated, or neither:
// a source or target already present yields a *domain.StructuralError and
// leaves the tree untouched. When parent is non-nil the action is attached
// to it.
func (t *Tree) Add(source, target paths.Path, parent *Action) (*Action, error) {
	sk, tk := source.Key(), target.Key()
	if _, ok := t.bySource[sk]; ok {
		return nil, &domain.StructuralError{Index: "source", Path: source}
	}
	if _, ok := t.byTarget[tk]; ok {
		return nil, &domain.StructuralError{Index: "target", Path: target}
	}

	a := newAction(Handle(len(t.arena)), source, target)
	t.arena = append(t.arena, a)
	t.bySource[sk] = a.handle
	t.byTarget[tk] = a.handle

	if parent != nil {
		parent.AddChild(a)
	}
	for _, l := range t.listeners {
		l.ActionAdded(t, a)
	}
	return a, nil
}

// AddIdentity registers an action that keeps p in place
func (t *Tree) AddIdentity(p paths.Path, parent *Action) (*Action, error) {
	return t.Add(p, p, parent)
}

// BySource returns the action moving p, or nil
func (t *Tree) BySource(p paths.Path) *Action {
	if h, ok := t.bySource[p.Key()]; ok {
		return t.arena[h]
	}
	return nil
}

// ByTarget returns the action moving an item to p, or nil
func (t *Tree) ByTarget(p paths.Path) *Action {
	if h, ok := t.byTarget[p.Key()]; ok {
		return t.arena[h]
	}
	return nil
}

// About returns the action with p as source, falling back to the one with
// p as target.
func (t *Tree) About(p paths.Path) *Action {
	if a := t.BySource(p); a != nil {
		return a
	}
	return t.ByTarget(p)
}

// Walk visits every action below the root in pre-order. Returning a non-nil
// error from fn stops the walk.
func (t *Tree) Walk(fn func(a *Action, depth int) error) error {
	type frame struct {
		action *Action
		depth  int
	}
	stack := make([]frame, 0, len(t.root.children))
	for i := len(t.root.children) - 1; i >= 0; i-- {
		stack = append(stack, frame{t.root.children[i], 0})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := fn(f.action, f.depth); err != nil {
			return err
		}
		children := f.action.children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{children[i], f.depth + 1})
		}
	}
	return nil
}

// Sort orders every node's children by the last space name of their target.
// Presentation only; it does not change what is executed.
func (t *Tree) Sort() {
	sortChildren(t.root)
}

func sortChildren(a *Action) {
	sort.SliceStable(a.children, func(i, j int) bool {
		ti, tj := a.children[i].target, a.children[j].target
		if ti.Space.Name() != tj.Space.Name() {
			return ti.Space.Name() < tj.Space.Name()
		}
		return ti.String() < tj.String()
	})
	for _, c := range a.children {
		sortChildren(c)
	}
}

// ClearPreferences drops the preference overrides of every action
func (t *Tree) ClearPreferences() {
	for _, a := range t.arena {
		a.ClearPreferences()
	}
}

// ClearRights drops the right overrides of every action
func (t *Tree) ClearRights() {
	for _, a := range t.arena {
		a.ClearRights()
	}
}

// Stats summarizes a plan
type Stats struct {
	Actions        int `json:"actions"`
	Moves          int `json:"moves"`
	Identity       int `json:"identity"`
	Disabled       int `json:"disabled"`
	DeletePrevious int `json:"delete_previous"`
	Preferences    int `json:"preferences"`
	Rights         int `json:"rights"`
}

// Stats counts actions and overrides
func (t *Tree) Stats() Stats {
	var s Stats
	for _, a := range t.arena {
		s.Actions++
		if a.IsIdentity() {
			s.Identity++
		} else {
			s.Moves++
		}
		if !a.Enabled {
			s.Disabled++
		}
		if a.DeletePrevious {
			s.DeletePrevious++
		}
		s.Preferences += len(a.preferences)
		s.Rights += len(a.rights)
	}
	return s
}
