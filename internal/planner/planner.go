// Package planner builds migration plans: it resolves every selected item's
// logical parent, plans parents before children and nests each item under
// its parent's target.
package planner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring"

	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/metrics"
	"github.com/lherron/nestmig/internal/paths"
	"github.com/lherron/nestmig/internal/plan"
	"github.com/lherron/nestmig/internal/progress"
)

// Store is the read side of the item store used while planning
type Store interface {
	Exists(ctx context.Context, p paths.Path) (bool, error)
	// ReadItem returns nil, nil when the item does not exist.
	ReadItem(ctx context.Context, p paths.Path) (*domain.Item, error)
}

// Options tunes planning
type Options struct {
	// DontMoveChildren converts terminal items in place under their own
	// space instead of nesting them under their logical parent.
	DontMoveChildren bool
	Progress         progress.Reporter
}

// Planner builds one plan per Plan call. It is not safe for concurrent use.
type Planner struct {
	store  Store
	opts   Options
	logger *slog.Logger

	tree      *plan.Tree
	resolver  *Resolver
	ids       *interner
	concerned *roaring.Bitmap
	visited   *roaring.Bitmap
	fallbacks []*domain.ResolutionFallback
}

// New creates a planner
func New(store Store, opts Options, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Progress == nil {
		opts.Progress = progress.Nop{}
	}
	return &Planner{store: store, opts: opts, logger: logger}
}

// Fallbacks returns the items of the last Plan call that could not be read
// and were kept in place.
func (p *Planner) Fallbacks() []*domain.ResolutionFallback {
	return p.fallbacks
}

// Plan computes the plan for the selected items. Only structural errors and
// context cancellation abort planning.
func (p *Planner) Plan(ctx context.Context, selected []paths.Path) (*plan.Tree, error) {
	p.tree = plan.NewTree()
	p.resolver = NewResolver(p.tree, p.store, p.logger)
	p.resolver.selected = p.isConcerned
	p.ids = newInterner()
	p.concerned = roaring.New()
	p.visited = roaring.New()
	p.fallbacks = nil

	for _, item := range selected {
		p.concerned.Add(p.ids.intern(item))
	}

	p.opts.Progress.Start("Planning", int(p.concerned.GetCardinality()))
	defer p.opts.Progress.Done()
	p.tree.AddListener(plan.ListenerFunc(func(_ *plan.Tree, a *plan.Action) {
		if id, ok := p.ids.lookup(a.Source()); ok && p.concerned.Contains(id) {
			p.opts.Progress.Step()
		}
	}))

	var err error
	if p.opts.DontMoveChildren {
		err = p.planInPlace(ctx, selected)
	} else {
		err = p.planNested(ctx, selected)
	}
	if err != nil {
		return nil, err
	}

	if !p.opts.DontMoveChildren {
		p.checkCoverage()
	}

	p.tree.Sort()
	stats := p.tree.Stats()
	metrics.PlannedActions.WithLabelValues("move").Add(float64(stats.Moves))
	metrics.PlannedActions.WithLabelValues("identity").Add(float64(stats.Identity))
	metrics.LastPlanSize.Set(float64(stats.Actions))
	p.logger.Info("plan computed", "selected", len(selected), "actions", stats.Actions, "moves", stats.Moves, "fallbacks", len(p.fallbacks))

	return p.tree, nil
}

func (p *Planner) isConcerned(item paths.Path) bool {
	id, ok := p.ids.lookup(item)
	return ok && p.concerned.Contains(id)
}

func (p *Planner) planNested(ctx context.Context, selected []paths.Path) error {
	for _, item := range selected {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := p.resolve(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// planInPlace turns each terminal item into the index of a new space named
// after it, under the item's own space.
func (p *Planner) planInPlace(ctx context.Context, selected []paths.Path) error {
	root := p.tree.Root()
	for _, item := range selected {
		if err := ctx.Err(); err != nil {
			return err
		}
		if item.IsIndex() || p.tree.About(item) != nil {
			continue
		}

		parentIndex := item.Space.Index()
		parentAction := p.tree.About(parentIndex)
		if parentAction == nil {
			var err error
			parentAction, err = p.tree.AddIdentity(parentIndex, root)
			if err != nil {
				return err
			}
		}
		if _, err := p.convertInPlace(ctx, item, parentAction); err != nil {
			return err
		}
	}
	return nil
}

// resolve returns the action for item, planning it and its ancestors first
// when needed.
func (p *Planner) resolve(ctx context.Context, item paths.Path) (*plan.Action, error) {
	if a := p.tree.About(item); a != nil {
		return a, nil
	}

	id := p.ids.intern(item)
	root := p.tree.Root()

	if !p.concerned.Contains(id) {
		exists, err := p.store.Exists(ctx, item)
		if err != nil {
			return p.fallback(item, err)
		}
		if exists {
			return p.tree.AddIdentity(item, root)
		}
	}

	// Already on the current resolution path: drop the edge closing the cycle.
	if p.visited.Contains(id) {
		return root, nil
	}
	p.visited.Add(id)

	parent, err := p.parentOf(ctx, item)
	if err != nil {
		return p.fallback(item, err)
	}

	parentAction := root
	if parent != nil {
		parentAction, err = p.resolve(ctx, *parent)
		if err != nil {
			return nil, err
		}
	}

	return p.createAction(ctx, item, parentAction)
}

// parentOf returns the logical parent of item, or nil for a top-level item.
func (p *Planner) parentOf(ctx context.Context, item paths.Path) (*paths.Path, error) {
	meta, err := p.store.ReadItem(ctx, item)
	if err != nil {
		return nil, err
	}

	if meta != nil && meta.Parent != nil && !meta.Parent.IsZero() {
		if meta.Parent.Namespace() != item.Namespace() {
			return nil, nil
		}
		parent := *meta.Parent
		return &parent, nil
	}

	if item.IsTerminal() {
		index := item.Space.Index()
		return &index, nil
	}
	if up, ok := item.Space.Parent(); ok {
		index := up.Index()
		return &index, nil
	}
	return nil, nil
}

func (p *Planner) createAction(ctx context.Context, item paths.Path, parentAction *plan.Action) (*plan.Action, error) {
	if parentAction.IsRoot() {
		if item.IsTerminal() {
			return p.convertInPlace(ctx, item, parentAction)
		}
		return p.tree.AddIdentity(item, parentAction)
	}

	if item.IsTerminal() {
		return p.createTerminal(ctx, item, parentAction)
	}

	space := parentAction.Target().Space.Child(item.Space.Name())
	target := p.resolver.FreeTarget(ctx, item, space, nil)
	return p.register(item, target, parentAction)
}

// createTerminal nests a terminal item as the index of a new space under
// its parent's target. When conflict resolution pushes the target deeper,
// the intermediate index is planned too so the tree has no gaps.
func (p *Planner) createTerminal(ctx context.Context, item paths.Path, parentAction *plan.Action) (*plan.Action, error) {
	space := parentAction.Target().Space.Child(item.Name)
	target := p.resolver.FreeTarget(ctx, item, space, parentAction)

	if up, ok := target.Path.Space.Parent(); ok && !up.Equal(parentAction.Target().Space) {
		intermediate, err := p.resolve(ctx, up.Index())
		if err != nil {
			return nil, err
		}
		parentAction = intermediate
	}

	return p.register(item, target, parentAction)
}

// convertInPlace makes item the index of a new space named after it,
// inside its current space.
func (p *Planner) convertInPlace(ctx context.Context, item paths.Path, parent *plan.Action) (*plan.Action, error) {
	target := p.resolver.FreeTarget(ctx, item, item.Space.Child(item.Name), nil)
	return p.register(item, target, parent)
}

func (p *Planner) register(item paths.Path, target plan.Target, parent *plan.Action) (*plan.Action, error) {
	a, err := p.tree.Add(item, target.Path, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to register action for %s: %w", item, err)
	}
	a.DeletePrevious = target.State == plan.StateDuplicate
	return a, nil
}

// checkCoverage logs selected items that ended up without their own action.
func (p *Planner) checkCoverage() {
	it := p.concerned.Iterator()
	for it.HasNext() {
		item := p.ids.path(it.Next())
		if p.tree.BySource(item) == nil {
			p.logger.Warn("selected item has no action of its own", "path", item.String())
		}
	}
}

// fallback keeps an unreadable item in place under the root.
func (p *Planner) fallback(item paths.Path, cause error) (*plan.Action, error) {
	fb := &domain.ResolutionFallback{Path: item, Err: cause}
	p.fallbacks = append(p.fallbacks, fb)
	metrics.ResolutionFallbacks.Inc()
	p.logger.Warn("failed to resolve item, keeping it in place", "path", item.String(), "error", cause)
	return p.tree.AddIdentity(item, p.tree.Root())
}
