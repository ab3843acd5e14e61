// Package prefs computes the preference overrides each action must carry so
// a moved item keeps its effective preferences under its new ancestors.
package prefs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/metrics"
	"github.com/lherron/nestmig/internal/paths"
	"github.com/lherron/nestmig/internal/plan"
)

// Source reads declared preference values
type Source interface {
	// Properties lists the inheritable property names of a namespace.
	Properties(ctx context.Context, namespace string) ([]string, error)
	// DeclaredValue returns the value declared on space itself, or "".
	DeclaredValue(ctx context.Context, space paths.Space, name string) (string, error)
	// GlobalValue returns the namespace-wide default, or "".
	GlobalValue(ctx context.Context, namespace, name string) (string, error)
}

// GlobalOrigin is the origin recorded for values coming from namespace defaults
func GlobalOrigin(namespace string) string {
	return namespace + ":*"
}

// Converter adds preference overrides to a plan
type Converter struct {
	src    Source
	logger *slog.Logger
}

// NewConverter creates a converter
func NewConverter(src Source, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{src: src, logger: logger}
}

// Convert walks the plan in pre-order and records, on each action, the
// preferences whose effective value would change after the move or that are
// declared on the source's own space. Parents are processed before children,
// so overrides recorded on an ancestor are visible to its descendants.
func (c *Converter) Convert(ctx context.Context, tree *plan.Tree, namespace string) error {
	props, err := c.src.Properties(ctx, namespace)
	if err != nil {
		return fmt.Errorf("failed to list preference properties: %w", err)
	}
	if len(props) == 0 {
		return nil
	}

	added := 0
	err = tree.Walk(func(a *plan.Action, _ int) error {
		n, err := c.convertAction(ctx, tree, a, props)
		added += n
		return err
	})
	if err != nil {
		return err
	}

	metrics.Overrides.WithLabelValues("preference").Add(float64(added))
	c.logger.Debug("preference overrides computed", "overrides", added)
	return nil
}

func (c *Converter) convertAction(ctx context.Context, tree *plan.Tree, a *plan.Action, props []string) (int, error) {
	source := a.Source()
	added := 0
	for _, name := range props {
		before, err := c.valueBefore(ctx, source.Space, name)
		if err != nil {
			return added, err
		}
		if before.Value == "" {
			continue
		}

		after, err := c.valueAfter(ctx, tree, a.Target().Space, a, name)
		if err != nil {
			return added, err
		}

		declared := false
		if source.IsIndex() {
			own, err := c.declared(ctx, source.Space, name)
			if err != nil {
				return added, err
			}
			declared = own != ""
		}

		if before.Value != after || declared {
			a.AddPreference(before)
			added++
		}
	}
	return added, nil
}

// valueBefore walks up from space in the current hierarchy.
func (c *Converter) valueBefore(ctx context.Context, space paths.Space, name string) (domain.Preference, error) {
	for {
		v, err := c.declared(ctx, space, name)
		if err != nil {
			return domain.Preference{}, err
		}
		if v != "" {
			return domain.Preference{Name: name, Value: v, Origin: space.String()}, nil
		}
		up, ok := space.Parent()
		if !ok {
			break
		}
		space = up
	}

	v, err := c.global(ctx, space.Namespace, name)
	if err != nil {
		return domain.Preference{}, err
	}
	return domain.Preference{Name: name, Value: v, Origin: GlobalOrigin(space.Namespace)}, nil
}

// valueAfter walks up from space in the planned hierarchy. At each level an
// override already recorded on the action targeting that level wins over
// what the store declares there.
func (c *Converter) valueAfter(ctx context.Context, tree *plan.Tree, space paths.Space, a *plan.Action, name string) (string, error) {
	for {
		if a != nil {
			if p, ok := a.Preference(name); ok {
				return p.Value, nil
			}
		}
		v, err := c.declared(ctx, space, name)
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
		up, ok := space.Parent()
		if !ok {
			break
		}
		space = up
		a = tree.ByTarget(space.Index())
	}
	return c.global(ctx, space.Namespace, name)
}

func (c *Converter) declared(ctx context.Context, space paths.Space, name string) (string, error) {
	v, err := c.src.DeclaredValue(ctx, space, name)
	if err != nil {
		return "", fmt.Errorf("failed to read preference %s on %s: %w", name, space, err)
	}
	return normalize(v), nil
}

func (c *Converter) global(ctx context.Context, namespace, name string) (string, error) {
	v, err := c.src.GlobalValue(ctx, namespace, name)
	if err != nil {
		return "", fmt.Errorf("failed to read global preference %s: %w", name, err)
	}
	return normalize(v), nil
}

// normalize maps unset markers to "": blank values and "--" mean inherit.
func normalize(v string) string {
	if strings.TrimSpace(v) == "" || v == "--" {
		return ""
	}
	return v
}
