// Package executor applies a migration plan to the item store, one action at
// a time, parents before children.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/metrics"
	"github.com/lherron/nestmig/internal/paths"
	"github.com/lherron/nestmig/internal/plan"
)

// Items is the write side of the item store
type Items interface {
	Exists(ctx context.Context, p paths.Path) (bool, error)
	ReadItem(ctx context.Context, p paths.Path) (*domain.Item, error)
	Move(ctx context.Context, src, dst paths.Path, opts domain.MoveOptions) error
	Delete(ctx context.Context, p paths.Path) error
	SetParent(ctx context.Context, p, parent paths.Path) error
}

// Overrides persists preference and right overrides on a space
type Overrides interface {
	// ApplyOverrides stores all overrides of one action at once.
	ApplyOverrides(ctx context.Context, space paths.Space, prefs []domain.Preference, rights []domain.Right) error
}

// Options controls execution
type Options struct {
	AutoRedirect bool
	Actor        string
	DryRun       bool
	// Enabled reports whether a per-action key ("<source>_page",
	// "<source>_preference_<i>", "<source>_right_<i>") is enabled.
	// Nil enables everything.
	Enabled func(key string) bool
}

// Outcome is the result of visiting one action
type Outcome string

const (
	OutcomeMoved    Outcome = "moved"
	OutcomeResumed  Outcome = "resumed"  // already moved by an earlier run
	OutcomeIdentity Outcome = "identity" // nothing to move
	OutcomeDisabled Outcome = "disabled"
	OutcomeFailed   Outcome = "failed"
)

// ActionResult records what happened to one action
type ActionResult struct {
	Source    paths.Path `json:"source"`
	Target    paths.Path `json:"target"`
	Outcome   Outcome    `json:"outcome"`
	Overrides int        `json:"overrides"`
	Error     string     `json:"error,omitempty"`
}

// Report summarizes an execution
type Report struct {
	DryRun   bool           `json:"dry_run"`
	Results  []ActionResult `json:"results"`
	Moved    int            `json:"moved"`
	Resumed  int            `json:"resumed"`
	Skipped  int            `json:"skipped"`
	Failed   int            `json:"failed"`
	Duration time.Duration  `json:"duration"`
}

// Failures returns the failed actions
func (r *Report) Failures() []ActionResult {
	var out []ActionResult
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			out = append(out, res)
		}
	}
	return out
}

// Executor walks a plan and applies it
type Executor struct {
	items     Items
	overrides Overrides
	opts      Options
	logger    *slog.Logger
}

// New creates an executor
func New(items Items, overrides Overrides, opts Options, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Enabled == nil {
		opts.Enabled = func(string) bool { return true }
	}
	return &Executor{items: items, overrides: overrides, opts: opts, logger: logger}
}

// Execute applies every action in pre-order. A failed action never stops its
// siblings or children; failures are reported in the returned Report. The
// only error returned is the context's, checked between actions.
func (e *Executor) Execute(ctx context.Context, tree *plan.Tree) (*Report, error) {
	start := time.Now()
	report := &Report{DryRun: e.opts.DryRun}

	err := tree.Walk(func(a *plan.Action, _ int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := e.apply(ctx, a)
		report.add(res)
		metrics.ExecutedActions.WithLabelValues(string(res.Outcome)).Inc()
		return nil
	})
	report.Duration = time.Since(start)

	e.logger.Info("plan executed", "moved", report.Moved, "resumed", report.Resumed,
		"skipped", report.Skipped, "failed", report.Failed, "dry_run", e.opts.DryRun)
	return report, err
}

func (r *Report) add(res ActionResult) {
	r.Results = append(r.Results, res)
	switch res.Outcome {
	case OutcomeMoved:
		r.Moved++
	case OutcomeResumed:
		r.Resumed++
	case OutcomeFailed:
		r.Failed++
	default:
		r.Skipped++
	}
}

// apply runs the move then the overrides of a single action.
func (e *Executor) apply(ctx context.Context, a *plan.Action) ActionResult {
	timer := time.Now()
	defer func() { metrics.ExecuteDuration.Observe(time.Since(timer).Seconds()) }()

	res := ActionResult{Source: a.Source(), Target: a.Target(), Outcome: OutcomeIdentity}
	if !a.Enabled {
		res.Outcome = OutcomeDisabled
		return res
	}

	if !a.IsIdentity() {
		if !e.opts.Enabled(PageKey(a.Source())) {
			res.Outcome = OutcomeDisabled
		} else {
			outcome, err := e.move(ctx, a)
			if err != nil {
				return e.fail(res, err)
			}
			res.Outcome = outcome
		}
	}

	n, err := e.applyOverrides(ctx, a)
	res.Overrides = n
	if err != nil {
		return e.fail(res, err)
	}
	return res
}

func (e *Executor) fail(res ActionResult, err error) ActionResult {
	res.Outcome = OutcomeFailed
	res.Error = err.Error()
	e.logger.Error("action failed", "path", res.Source.String(), "target", res.Target.String(), "error", err)
	return res
}

// move relocates the source unless an earlier run already did.
func (e *Executor) move(ctx context.Context, a *plan.Action) (Outcome, error) {
	src, dst := a.Source(), a.Target()

	done, err := e.alreadyMoved(ctx, src, dst)
	if err != nil {
		return "", err
	}
	if done {
		e.logger.Info("already migrated, skipping move", "path", src.String(), "target", dst.String())
		return OutcomeResumed, nil
	}

	item, err := e.items.ReadItem(ctx, src)
	if err != nil {
		return "", &domain.ExecutionFailure{Source: src, Step: "read", Err: err}
	}
	if item == nil {
		return "", &domain.ExecutionFailure{Source: src, Step: "move", Err: domain.ErrNotFound}
	}

	if e.opts.DryRun {
		e.logger.Info("would move", "path", src.String(), "target", dst.String(), "delete_previous", a.DeletePrevious)
		return OutcomeMoved, nil
	}

	if a.DeletePrevious {
		exists, err := e.items.Exists(ctx, dst)
		if err != nil {
			return "", &domain.ExecutionFailure{Source: src, Step: "delete", Err: err}
		}
		if exists {
			if err := e.items.Delete(ctx, dst); err != nil {
				return "", &domain.ExecutionFailure{Source: src, Step: "delete", Err: err}
			}
		}
	}

	opts := domain.MoveOptions{AutoRedirect: e.opts.AutoRedirect, Actor: e.opts.Actor}
	if err := e.items.Move(ctx, src, dst, opts); err != nil {
		return "", &domain.ExecutionFailure{Source: src, Step: "move", Err: err}
	}

	if up, ok := dst.Space.Parent(); ok {
		parent := up.Index()
		if item.Parent == nil || !item.Parent.Equal(parent) {
			if err := e.items.SetParent(ctx, dst, parent); err != nil {
				return "", &domain.ExecutionFailure{Source: src, Step: "parent", Err: err}
			}
		}
	}

	e.logger.Debug("moved", "path", src.String(), "target", dst.String())
	return OutcomeMoved, nil
}

// alreadyMoved reports whether dst already holds src from an earlier run.
func (e *Executor) alreadyMoved(ctx context.Context, src, dst paths.Path) (bool, error) {
	target, err := e.items.ReadItem(ctx, dst)
	if err != nil {
		return false, &domain.ExecutionFailure{Source: src, Step: "read", Err: err}
	}
	return target != nil && target.MigratedFrom != nil && target.MigratedFrom.Equal(src), nil
}

// applyOverrides stores the enabled overrides of a on its target space in a
// single write.
func (e *Executor) applyOverrides(ctx context.Context, a *plan.Action) (int, error) {
	if !a.HasPreferences() && !a.HasRights() {
		return 0, nil
	}

	var prefs []domain.Preference
	for i, p := range a.Preferences() {
		if e.opts.Enabled(PreferenceKey(a.Source(), i)) {
			prefs = append(prefs, p)
		}
	}
	var rules []domain.Right
	for i, r := range a.Rights() {
		if e.opts.Enabled(RightKey(a.Source(), i)) {
			rules = append(rules, r)
		}
	}
	n := len(prefs) + len(rules)
	if n == 0 || e.opts.DryRun {
		return n, nil
	}

	if err := e.overrides.ApplyOverrides(ctx, a.Target().Space, prefs, rules); err != nil {
		var failure *domain.ExecutionFailure
		if errors.As(err, &failure) {
			return 0, err
		}
		return 0, &domain.ExecutionFailure{Source: a.Source(), Step: "overrides", Err: err}
	}
	return n, nil
}

// PageKey is the disable key of an action's move
func PageKey(source paths.Path) string {
	return source.String() + "_page"
}

// PreferenceKey is the disable key of an action's i-th preference override
func PreferenceKey(source paths.Path, i int) string {
	return source.String() + "_preference_" + strconv.Itoa(i)
}

// RightKey is the disable key of an action's i-th right override
func RightKey(source paths.Path, i int) string {
	return fmt.Sprintf("%s_right_%d", source, i)
}
