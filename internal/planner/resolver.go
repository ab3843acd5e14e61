package planner

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/lherron/nestmig/internal/metrics"
	"github.com/lherron/nestmig/internal/paths"
	"github.com/lherron/nestmig/internal/plan"
)

// Resolver finds free target paths, avoiding both planned actions and items
// already in the store.
type Resolver struct {
	tree   *plan.Tree
	store  Store
	logger *slog.Logger

	// selected reports whether a path is itself being planned. Such an item
	// must keep its own action and is never absorbed as a duplicate.
	selected func(paths.Path) bool
}

// NewResolver creates a resolver over a plan under construction
func NewResolver(tree *plan.Tree, store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{tree: tree, store: store, logger: logger}
}

// Classify reports whether candidate can receive source.
func (r *Resolver) Classify(ctx context.Context, source, candidate paths.Path) plan.TargetState {
	if r.tree.ByTarget(candidate) != nil {
		return plan.StateUsed
	}

	exists, err := r.store.Exists(ctx, candidate)
	if err != nil {
		r.logger.Warn("failed to check target, treating it as used", "path", candidate.String(), "error", err)
		return plan.StateUsed
	}
	if !exists || source.Equal(candidate) {
		return plan.StateFree
	}

	// A stored item that is planned, or about to be, is live data.
	if r.tree.BySource(candidate) != nil || (r.selected != nil && r.selected(candidate)) {
		return plan.StateUsed
	}
	if r.isDuplicate(ctx, source, candidate) {
		return plan.StateDuplicate
	}
	return plan.StateUsed
}

// isDuplicate compares creator, last editor and content of both items.
func (r *Resolver) isDuplicate(ctx context.Context, source, candidate paths.Path) bool {
	src, err := r.store.ReadItem(ctx, source)
	if err != nil {
		r.logger.Warn("failed to read source for duplicate check", "path", source.String(), "error", err)
		return false
	}
	dst, err := r.store.ReadItem(ctx, candidate)
	if err != nil {
		r.logger.Warn("failed to read target for duplicate check", "path", candidate.String(), "error", err)
		return false
	}
	return src.SameOrigin(dst)
}

// FreeTarget returns a FREE or DUPLICATE target for source, starting from
// the index of parentSpace. parentAction is the already planned logical
// parent, or nil when nesting by origin name must not be attempted.
//
// While the candidate is used, the source's own space name is inserted
// below the parent target when it differs from both the parent target's
// last space and the source root, then a numeric suffix (_2, _3, ...)
// is appended to the container name.
func (r *Resolver) FreeTarget(ctx context.Context, source paths.Path, parentSpace paths.Space, parentAction *plan.Action) plan.Target {
	candidate := parentSpace.Index()
	state := r.Classify(ctx, source, candidate)

	for iteration := 0; state == plan.StateUsed; iteration++ {
		metrics.ConflictRetries.Inc()

		space := parentSpace
		if parentAction != nil && !parentAction.IsRoot() {
			parentTarget := parentAction.Target().Space
			if source.Space.Name() != parentTarget.Name() && parentTarget.Root() != source.Space.Root() {
				space = parentTarget.Child(source.Space.Name()).Child(source.Name)
			}
		}
		if iteration > 0 {
			space = space.Rename(space.Name() + "_" + strconv.Itoa(iteration+1))
		}

		candidate = space.Index()
		state = r.Classify(ctx, source, candidate)
		r.logger.Debug("target conflict, trying another", "path", source.String(), "candidate", candidate.String(), "state", state.String())
	}

	return plan.Target{Path: candidate, State: state}
}
