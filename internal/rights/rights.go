// Package rights computes the access rule overrides each action must carry
// so a moved item keeps its effective rights under its new ancestors.
package rights

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/metrics"
	"github.com/lherron/nestmig/internal/paths"
	"github.com/lherron/nestmig/internal/plan"
)

// Source reads declared access rules
type Source interface {
	// SpaceRules returns the rules declared on space itself.
	SpaceRules(ctx context.Context, space paths.Space) ([]domain.Right, error)
	// GlobalRules returns the namespace-wide rules.
	GlobalRules(ctx context.Context, namespace string) ([]domain.Right, error)
}

// GlobalOrigin is the origin recorded for namespace-wide rules
func GlobalOrigin(namespace string) string {
	return namespace + ":*"
}

// Converter adds right overrides to a plan
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

// Convert walks the plan in pre-order. For each action, rules visible at the
// source but lost at the target are re-declared, and rules newly inherited at
// the target are cancelled with their inverse.
func (c *Converter) Convert(ctx context.Context, tree *plan.Tree) error {
	added := 0
	err := tree.Walk(func(a *plan.Action, _ int) error {
		n, err := c.convertAction(ctx, tree, a)
		added += n
		return err
	})
	if err != nil {
		return err
	}

	metrics.Overrides.WithLabelValues("right").Add(float64(added))
	c.logger.Debug("right overrides computed", "overrides", added)
	return nil
}

func (c *Converter) convertAction(ctx context.Context, tree *plan.Tree, a *plan.Action) (int, error) {
	before, err := c.effective(ctx, a.Source().Space, nil)
	if err != nil {
		return 0, err
	}
	after, err := c.effective(ctx, a.Target().Space, tree)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, old := range before {
		if containsEffect(after, old) {
			continue
		}
		a.AddRight(old)
		added++
		after = append(removeConcern(after, old), old)
	}
	for _, gained := range after {
		if containsEffect(before, gained) {
			continue
		}
		a.AddRight(gained.Inverse())
		added++
	}
	return added, nil
}

// effective collects the rules visible at space, closest declarations first.
// A rule is ignored when a closer level already declared its concern. With a
// plan, overrides recorded on the action targeting each level come before the
// store's own rules for that level.
func (c *Converter) effective(ctx context.Context, space paths.Space, tree *plan.Tree) ([]domain.Right, error) {
	var rules []domain.Right
	for {
		if tree != nil {
			if a := tree.ByTarget(space.Index()); a != nil {
				rules = addIfNewConcern(rules, a.Rights())
			}
		}
		declared, err := c.src.SpaceRules(ctx, space)
		if err != nil {
			return nil, fmt.Errorf("failed to read rights of %s: %w", space, err)
		}
		for i := range declared {
			declared[i].Origin = space.String()
		}
		rules = addIfNewConcern(rules, declared)

		up, ok := space.Parent()
		if !ok {
			break
		}
		space = up
	}

	global, err := c.src.GlobalRules(ctx, space.Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to read global rights: %w", err)
	}
	for i := range global {
		global[i].Origin = GlobalOrigin(space.Namespace)
	}
	return addIfNewConcern(rules, global), nil
}

// addIfNewConcern appends the rules whose concern is not yet covered.
func addIfNewConcern(rules, add []domain.Right) []domain.Right {
	for _, r := range add {
		shadowed := false
		for _, existing := range rules {
			if existing.SameConcern(r) {
				shadowed = true
				break
			}
		}
		if !shadowed {
			rules = append(rules, r)
		}
	}
	return rules
}

func containsEffect(rules []domain.Right, r domain.Right) bool {
	for _, existing := range rules {
		if existing.SameEffect(r) {
			return true
		}
	}
	return false
}

func removeConcern(rules []domain.Right, r domain.Right) []domain.Right {
	out := rules[:0:0]
	for _, existing := range rules {
		if !existing.SameConcern(r) {
			out = append(out, existing)
		}
	}
	return out
}
