package rights

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/paths"
	"github.com/lherron/nestmig/internal/plan"
	"github.com/lherron/nestmig/internal/planner"
	"github.com/lherron/nestmig/internal/testutil"
)

var (
	guestViewDeny  = domain.Right{Subject: "XWiki.XWikiGuest", Level: "view", Allow: false}
	aliceEditAllow = domain.Right{Subject: "XWiki.Alice", Level: "edit", Allow: true}
	aliceEditDeny  = domain.Right{Subject: "XWiki.Alice", Level: "edit", Allow: false}
)

func buildPlan(t *testing.T, ns *testutil.Namespace, selected ...string) *plan.Tree {
	t.Helper()
	items := make([]paths.Path, len(selected))
	for i, s := range selected {
		items[i] = ns.Path(s)
	}
	tree, err := planner.New(ns, planner.Options{}, nil).Plan(context.Background(), items)
	require.NoError(t, err)
	require.NoError(t, NewConverter(ns, nil).Convert(context.Background(), tree))
	return tree
}

func effects(rules []domain.Right) []domain.Right {
	out := make([]domain.Right, len(rules))
	for i, r := range rules {
		r.Origin = ""
		out[i] = r
	}
	return out
}

func TestNewlyInheritedRuleIsCancelled(t *testing.T) {
	ns := testutil.NewNamespace("wiki")
	ns.AddRule("P", guestViewDeny)
	ns.Put("P/INDEX", domain.Item{})
	ns.PutWithParent("A/Page", "P/INDEX")

	tree := buildPlan(t, ns, "A/Page")

	a := tree.BySource(ns.Path("A/Page"))
	require.NotNil(t, a)
	assert.Equal(t, []domain.Right{guestViewDeny.Inverse()}, effects(a.Rights()))
	assert.Equal(t, "wiki:P", a.Rights()[0].Origin)
}

func TestLostRuleIsRedeclared(t *testing.T) {
	ns := testutil.NewNamespace("wiki")
	ns.AddRule("A", aliceEditAllow)
	ns.Put("P/INDEX", domain.Item{})
	ns.PutWithParent("A/Page", "P/INDEX")

	tree := buildPlan(t, ns, "A/Page")

	a := tree.BySource(ns.Path("A/Page"))
	assert.Equal(t, []domain.Right{aliceEditAllow}, effects(a.Rights()))
	assert.Equal(t, "wiki:A", a.Rights()[0].Origin)
}

func TestCloserDeclarationWins(t *testing.T) {
	ns := testutil.NewNamespace("wiki")
	ns.AddGlobalRule(aliceEditAllow)
	ns.AddRule("A", aliceEditDeny)
	ns.Put("P/INDEX", domain.Item{})
	ns.PutWithParent("A/Page", "P/INDEX")

	tree := buildPlan(t, ns, "A/Page")

	// Before: deny from A shadows the global allow. After: only the global
	// allow. The deny is carried over and nothing else is needed.
	a := tree.BySource(ns.Path("A/Page"))
	assert.Equal(t, []domain.Right{aliceEditDeny}, effects(a.Rights()))
}

func TestUnchangedRulesNeedNothing(t *testing.T) {
	ns := testutil.NewNamespace("wiki")
	ns.AddGlobalRule(guestViewDeny)
	ns.AddRule("A", aliceEditAllow)
	ns.AddRule("P", aliceEditAllow)
	ns.Put("P/INDEX", domain.Item{})
	ns.PutWithParent("A/Page", "P/INDEX")

	tree := buildPlan(t, ns, "A/Page")

	assert.False(t, tree.BySource(ns.Path("A/Page")).HasRights())
}

func TestChildrenSeeAncestorOverrides(t *testing.T) {
	ns := testutil.NewNamespace("wiki")
	ns.AddRule("X", aliceEditAllow)
	ns.Put("P/INDEX", domain.Item{})
	ns.PutWithParent("X/INDEX", "P/INDEX")
	ns.Put("X/Child", domain.Item{})

	tree := buildPlan(t, ns, "X/INDEX", "X/Child")

	parent := tree.BySource(ns.Path("X/INDEX"))
	assert.Equal(t, []domain.Right{aliceEditAllow}, effects(parent.Rights()))

	child := tree.BySource(ns.Path("X/Child"))
	require.Equal(t, "P/X/Child/INDEX", child.Target().Local())
	assert.False(t, child.HasRights())
}

func TestAddIfNewConcern(t *testing.T) {
	rules := addIfNewConcern(nil, []domain.Right{aliceEditDeny})
	rules = addIfNewConcern(rules, []domain.Right{aliceEditAllow, guestViewDeny})
	assert.Equal(t, []domain.Right{aliceEditDeny, guestViewDeny}, rules)
}
