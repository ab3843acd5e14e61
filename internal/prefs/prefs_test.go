package prefs

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

func buildPlan(t *testing.T, ns *testutil.Namespace, selected ...string) *plan.Tree {
	t.Helper()
	items := make([]paths.Path, len(selected))
	for i, s := range selected {
		items[i] = ns.Path(s)
	}
	tree, err := planner.New(ns, planner.Options{}, nil).Plan(context.Background(), items)
	require.NoError(t, err)
	return tree
}

func convert(t *testing.T, ns *testutil.Namespace, tree *plan.Tree) {
	t.Helper()
	require.NoError(t, NewConverter(ns, nil).Convert(context.Background(), tree, ns.Name))
}

func TestNoOverrideWhenNeverDeclared(t *testing.T) {
	ns := testutil.NewNamespace("wiki")
	ns.DefineProperty("skin")
	ns.SetGlobal("skin", "flamingo")
	ns.Put("P/INDEX", domain.Item{})
	ns.PutWithParent("A/Page", "P/INDEX")

	tree := buildPlan(t, ns, "A/Page")
	convert(t, ns, tree)

	for _, a := range tree.Actions() {
		assert.False(t, a.HasPreferences(), "unexpected overrides on %s", a)
	}
}

func TestOverrideKeepsOldValue(t *testing.T) {
	ns := testutil.NewNamespace("wiki")
	ns.DefineProperty("skin")
	ns.SetPreference("A", "skin", "red")
	ns.SetPreference("P", "skin", "blue")
	ns.Put("P/INDEX", domain.Item{})
	ns.PutWithParent("A/Page", "P/INDEX")

	tree := buildPlan(t, ns, "A/Page")
	convert(t, ns, tree)

	a := tree.BySource(ns.Path("A/Page"))
	require.NotNil(t, a)
	got, ok := a.Preference("skin")
	require.True(t, ok)
	assert.Equal(t, domain.Preference{Name: "skin", Value: "red", Origin: "wiki:A"}, got)
}

func TestOverrideFromGlobalDefault(t *testing.T) {
	ns := testutil.NewNamespace("wiki")
	ns.DefineProperty("lang")
	ns.SetGlobal("lang", "en")
	ns.SetPreference("P", "lang", "fr")
	ns.Put("P/INDEX", domain.Item{})
	ns.PutWithParent("A/Page", "P/INDEX")

	tree := buildPlan(t, ns, "A/Page")
	convert(t, ns, tree)

	got, ok := tree.BySource(ns.Path("A/Page")).Preference("lang")
	require.True(t, ok)
	assert.Equal(t, "en", got.Value)
	assert.Equal(t, GlobalOrigin("wiki"), got.Origin)
}

func TestNoOverrideWhenStayingInSpace(t *testing.T) {
	ns := testutil.NewNamespace("wiki")
	ns.DefineProperty("skin")
	ns.SetPreference("A", "skin", "red")
	ns.Put("A/INDEX", domain.Item{})
	ns.Put("A/Page", domain.Item{})

	tree := buildPlan(t, ns, "A/Page")
	convert(t, ns, tree)

	assert.False(t, tree.BySource(ns.Path("A/Page")).HasPreferences())
}

func TestChildrenSeeAncestorOverrides(t *testing.T) {
	ns := testutil.NewNamespace("wiki")
	ns.DefineProperty("skin")
	ns.SetPreference("P", "skin", "blue")
	ns.SetPreference("X", "skin", "red")
	ns.Put("P/INDEX", domain.Item{})
	ns.PutWithParent("X/INDEX", "P/INDEX")
	ns.Put("X/Child", domain.Item{})

	tree := buildPlan(t, ns, "X/INDEX", "X/Child")
	convert(t, ns, tree)

	parent := tree.BySource(ns.Path("X/INDEX"))
	require.Equal(t, "P/X/INDEX", parent.Target().Local())
	got, ok := parent.Preference("skin")
	require.True(t, ok)
	assert.Equal(t, "red", got.Value)

	child := tree.BySource(ns.Path("X/Child"))
	require.Equal(t, "P/X/Child/INDEX", child.Target().Local())
	assert.False(t, child.HasPreferences())
}

func TestExplicitDeclarationSurvives(t *testing.T) {
	ns := testutil.NewNamespace("wiki")
	ns.DefineProperty("skin")
	ns.SetPreference("P", "skin", "blue")
	ns.SetPreference("Y", "skin", "blue")
	ns.Put("P/INDEX", domain.Item{})
	ns.PutWithParent("Y/INDEX", "P/INDEX")

	tree := buildPlan(t, ns, "Y/INDEX")
	convert(t, ns, tree)

	got, ok := tree.BySource(ns.Path("Y/INDEX")).Preference("skin")
	require.True(t, ok)
	assert.Equal(t, "blue", got.Value)
	assert.Equal(t, "wiki:Y", got.Origin)
}

func TestUnsetMarkerMeansInherit(t *testing.T) {
	ns := testutil.NewNamespace("wiki")
	ns.DefineProperty("skin")
	ns.SetGlobal("skin", "flamingo")
	ns.SetPreference("A", "skin", "--")
	ns.SetPreference("P", "skin", "  ")
	ns.Put("P/INDEX", domain.Item{})
	ns.PutWithParent("A/Page", "P/INDEX")

	tree := buildPlan(t, ns, "A/Page")
	convert(t, ns, tree)

	assert.False(t, tree.BySource(ns.Path("A/Page")).HasPreferences())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "", normalize(""))
	assert.Equal(t, "", normalize(" \t"))
	assert.Equal(t, "", normalize("--"))
	assert.Equal(t, "0", normalize("0"))
}
