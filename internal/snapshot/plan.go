package snapshot

import (
	"fmt"
	"time"

	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/paths"
	"github.com/lherron/nestmig/internal/plan"
)

// FromTree builds the document of a plan and stamps its revision.
func FromTree(t *plan.Tree, namespace string, now time.Time) (*Document, error) {
	d := &Document{
		Meta: Meta{
			SchemaVersion: SchemaVersion,
			GeneratedAt:   FormatTimestamp(now),
			Namespace:     namespace,
		},
		Actions: entries(t.Root().Children()),
	}
	if err := Stamp(d); err != nil {
		return nil, err
	}
	return d, nil
}

func entries(actions []*plan.Action) []ActionEntry {
	out := make([]ActionEntry, 0, len(actions))
	for _, a := range actions {
		e := ActionEntry{
			Source:         a.Source().String(),
			Target:         a.Target().String(),
			Enabled:        a.Enabled,
			DeletePrevious: a.DeletePrevious,
			Children:       entries(a.Children()),
		}
		for _, p := range a.Preferences() {
			e.Preferences = append(e.Preferences, PreferenceEntry{Name: p.Name, Value: p.Value, Origin: p.Origin})
		}
		for _, r := range a.Rights() {
			e.Rights = append(e.Rights, rightEntry(r))
		}
		out = append(out, e)
	}
	return out
}

func rightEntry(r domain.Right) RightEntry {
	e := RightEntry{Level: r.Level, Allow: r.Allow, Origin: r.Origin}
	if r.Group {
		e.Group = r.Subject
	} else {
		e.User = r.Subject
	}
	return e
}

// ToTree rebuilds a plan from a document. Paths without a namespace take the
// document's namespace, then defaultNamespace. Duplicate sources or targets
// yield a *domain.StructuralError.
func ToTree(d *Document, defaultNamespace string) (*plan.Tree, error) {
	ns := d.Meta.Namespace
	if ns == "" {
		ns = defaultNamespace
	}

	t := plan.NewTree()
	if err := addEntries(t, t.Root(), d.Actions, ns); err != nil {
		return nil, err
	}
	return t, nil
}

func addEntries(t *plan.Tree, parent *plan.Action, list []ActionEntry, ns string) error {
	for i := range list {
		e := &list[i]
		source, err := paths.Parse(e.Source, ns)
		if err != nil {
			return fmt.Errorf("invalid action source: %w", err)
		}
		target, err := paths.Parse(e.Target, ns)
		if err != nil {
			return fmt.Errorf("invalid action target: %w", err)
		}

		a, err := t.Add(source, target, parent)
		if err != nil {
			return err
		}
		a.Enabled = e.Enabled
		a.DeletePrevious = e.DeletePrevious

		for _, p := range e.Preferences {
			if p.Name == "" {
				return fmt.Errorf("action %s: preference without name", source)
			}
			a.AddPreference(domain.Preference{Name: p.Name, Value: p.Value, Origin: p.Origin})
		}
		for _, r := range e.Rights {
			right, err := r.toRight()
			if err != nil {
				return fmt.Errorf("action %s: %w", source, err)
			}
			a.AddRight(right)
		}

		if err := addEntries(t, a, e.Children, ns); err != nil {
			return err
		}
	}
	return nil
}

func (r RightEntry) toRight() (domain.Right, error) {
	if (r.User == "") == (r.Group == "") {
		return domain.Right{}, fmt.Errorf("right must name exactly one of user or group")
	}
	right := domain.Right{Subject: r.User, Level: r.Level, Allow: r.Allow, Origin: r.Origin}
	if r.Group != "" {
		right.Subject = r.Group
		right.Group = true
	}
	if err := domain.ValidateRight(right); err != nil {
		return domain.Right{}, err
	}
	return right, nil
}

// Count returns the number of actions in a document
func Count(list []ActionEntry) int {
	n := len(list)
	for i := range list {
		n += Count(list[i].Children)
	}
	return n
}
