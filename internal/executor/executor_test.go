package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/paths"
	"github.com/lherron/nestmig/internal/plan"
	"github.com/lherron/nestmig/internal/planner"
	"github.com/lherron/nestmig/internal/prefs"
	"github.com/lherron/nestmig/internal/rights"
	"github.com/lherron/nestmig/internal/testutil"
)

func fixture() *testutil.Namespace {
	ns := testutil.NewNamespace("wiki")
	ns.DefineProperty("skin")
	ns.SetPreference("P", "skin", "blue")
	ns.SetPreference("X", "skin", "red")
	ns.AddRule("P", domain.Right{Subject: "XWiki.XWikiGuest", Level: "view", Allow: false})

	ns.Put("P/INDEX", domain.Item{})
	ns.PutWithParent("A/B", "P/INDEX")
	ns.PutWithParent("C/B", "P/INDEX")
	ns.PutWithParent("X/INDEX", "P/INDEX")
	ns.Put("X/Child", domain.Item{})
	return ns
}

func fullPlan(t *testing.T, ns *testutil.Namespace, selected []paths.Path) *plan.Tree {
	t.Helper()
	ctx := context.Background()
	tree, err := planner.New(ns, planner.Options{}, nil).Plan(ctx, selected)
	require.NoError(t, err)
	require.NoError(t, prefs.NewConverter(ns, nil).Convert(ctx, tree, ns.Name))
	require.NoError(t, rights.NewConverter(ns, nil).Convert(ctx, tree))
	return tree
}

func selectAll(ns *testutil.Namespace, locals ...string) []paths.Path {
	out := make([]paths.Path, len(locals))
	for i, l := range locals {
		out[i] = ns.Path(l)
	}
	return out
}

func TestExecuteMovesAndRelinks(t *testing.T) {
	ns := fixture()
	tree := fullPlan(t, ns, selectAll(ns, "A/B", "C/B", "X/INDEX", "X/Child"))

	report, err := New(ns, ns, Options{AutoRedirect: true}, nil).Execute(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 4, report.Moved)

	for _, local := range []string{"P/B/INDEX", "P/C/B/INDEX", "P/X/INDEX", "P/X/Child/INDEX"} {
		assert.True(t, ns.Has(local), "missing %s", local)
	}

	child := ns.Item("P/X/Child/INDEX")
	require.NotNil(t, child.Parent)
	assert.Equal(t, "P/X/INDEX", child.Parent.Local())
	require.NotNil(t, child.MigratedFrom)
	assert.Equal(t, "X/Child", child.MigratedFrom.Local())

	nested := ns.Item("P/C/B/INDEX")
	assert.Equal(t, "P/C/INDEX", nested.Parent.Local())

	stub := ns.Item("A/B")
	require.NotNil(t, stub)
	require.NotNil(t, stub.RedirectTo)
	assert.Equal(t, "P/B/INDEX", stub.RedirectTo.Local())
}

func TestOverridesAppliedOncePerAction(t *testing.T) {
	ns := fixture()
	tree := fullPlan(t, ns, selectAll(ns, "X/INDEX"))

	moved := tree.BySource(ns.Path("X/INDEX"))
	require.True(t, moved.HasPreferences())
	require.True(t, moved.HasRights())

	_, err := New(ns, ns, Options{}, nil).Execute(context.Background(), tree)
	require.NoError(t, err)

	var forX []testutil.AppliedOverrides
	for _, applied := range ns.Applied {
		if applied.Space.Local() == "P/X" {
			forX = append(forX, applied)
		}
	}
	require.Len(t, forX, 1)
	assert.Equal(t, moved.Preferences(), forX[0].Preferences)
	assert.Equal(t, moved.Rights(), forX[0].Rights)
}

func TestFailureDoesNotBlockChildren(t *testing.T) {
	ns := fixture()
	tree := fullPlan(t, ns, selectAll(ns, "X/INDEX", "X/Child"))
	ns.MoveErrors[ns.Path("X/INDEX").Key()] = errors.New("storage offline")

	report, err := New(ns, ns, Options{}, nil).Execute(context.Background(), tree)
	require.NoError(t, err)

	require.Equal(t, 1, report.Failed)
	failure := report.Failures()[0]
	assert.Equal(t, "X/INDEX", failure.Source.Local())
	assert.Contains(t, failure.Error, "storage offline")

	assert.True(t, ns.Has("X/INDEX"))
	assert.True(t, ns.Has("P/X/Child/INDEX"), "child must be moved even though its parent failed")
}

func TestResumeSkipsMovedItems(t *testing.T) {
	ns := fixture()
	tree := fullPlan(t, ns, selectAll(ns, "A/B", "X/INDEX"))
	ex := New(ns, ns, Options{}, nil)

	first, err := ex.Execute(context.Background(), tree)
	require.NoError(t, err)
	require.Equal(t, 2, first.Moved)
	applied := len(ns.Applied)

	second, err := ex.Execute(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Moved)
	assert.Equal(t, 2, second.Resumed)
	assert.Equal(t, 0, second.Failed)
	assert.Len(t, ns.Moves, 2)
	// Overrides are re-applied on resume.
	assert.Equal(t, 2*applied, len(ns.Applied))
}

func TestDisabledKeys(t *testing.T) {
	ns := fixture()
	tree := fullPlan(t, ns, selectAll(ns, "A/B", "X/INDEX"))
	x := tree.BySource(ns.Path("X/INDEX"))
	require.Len(t, x.Preferences(), 1)

	disabled := map[string]bool{
		PageKey(ns.Path("A/B")):             true,
		PreferenceKey(ns.Path("X/INDEX"), 0): true,
	}
	opts := Options{Enabled: func(key string) bool { return !disabled[key] }}

	report, err := New(ns, ns, opts, nil).Execute(context.Background(), tree)
	require.NoError(t, err)

	assert.True(t, ns.Has("A/B"))
	assert.False(t, ns.Has("P/B/INDEX"))
	assert.True(t, ns.Has("P/X/INDEX"))
	for _, applied := range ns.Applied {
		if applied.Space.Local() == "P/X" {
			assert.Empty(t, applied.Preferences)
			assert.NotEmpty(t, applied.Rights)
		}
	}
	assert.Equal(t, 1, report.Moved)
}

func TestDisabledActionIsSkipped(t *testing.T) {
	ns := fixture()
	tree := fullPlan(t, ns, selectAll(ns, "A/B"))
	tree.BySource(ns.Path("A/B")).Enabled = false

	report, err := New(ns, ns, Options{}, nil).Execute(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Moved)
	assert.True(t, ns.Has("A/B"))
}

func TestDeletePreviousPurgesDuplicate(t *testing.T) {
	ns := testutil.NewNamespace("wiki")
	meta := domain.Item{Creator: "alice", LastEditor: "alice", ContentHash: "h"}
	ns.Put("P/INDEX", domain.Item{})
	ns.Put("P/Page", meta)
	ns.Put("P/Page/INDEX", meta)

	tree := fullPlan(t, ns, selectAll(ns, "P/Page"))
	a := tree.BySource(ns.Path("P/Page"))
	require.True(t, a.DeletePrevious)

	report, err := New(ns, ns, Options{}, nil).Execute(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Moved)
	moved := ns.Item("P/Page/INDEX")
	require.NotNil(t, moved.MigratedFrom)
	assert.Equal(t, "P/Page", moved.MigratedFrom.Local())
}

func TestDryRunLeavesStoreUntouched(t *testing.T) {
	ns := fixture()
	tree := fullPlan(t, ns, selectAll(ns, "A/B", "X/INDEX"))

	report, err := New(ns, ns, Options{DryRun: true}, nil).Execute(context.Background(), tree)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Moved)
	assert.Empty(t, ns.Moves)
	assert.Empty(t, ns.Applied)
}

func TestCancellationStopsBetweenActions(t *testing.T) {
	ns := fixture()
	tree := fullPlan(t, ns, selectAll(ns, "A/B", "X/INDEX"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := New(ns, ns, Options{}, nil).Execute(ctx, tree)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Results)
	assert.Empty(t, ns.Moves)
}

func TestReplanAfterExecutionIsIdentity(t *testing.T) {
	ns := fixture()
	tree := fullPlan(t, ns, selectAll(ns, "A/B", "C/B", "X/INDEX", "X/Child"))
	_, err := New(ns, ns, Options{AutoRedirect: true}, nil).Execute(context.Background(), tree)
	require.NoError(t, err)

	var remaining []paths.Path
	for _, p := range ns.Paths() {
		if item := ns.Item(p.Local()); item.RedirectTo == nil {
			remaining = append(remaining, p)
		}
	}
	require.NotEmpty(t, remaining)

	again := fullPlan(t, ns, remaining)
	for _, a := range again.Actions() {
		assert.True(t, a.IsIdentity(), "expected identity, got %s", a)
	}
}
