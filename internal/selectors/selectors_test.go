package selectors

import (
	"context"
	"errors"
	"testing"

	"github.com/lherron/nestmig/internal/config"
	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/paths"
	"github.com/lherron/nestmig/internal/store"
	"github.com/lherron/nestmig/internal/testutil"
)

type seedItem struct {
	path    string
	parent  string
	hidden  bool
	schema  bool
	classes []string
}

func seed(t *testing.T, items []seedItem) *store.Store {
	t.Helper()
	database, _ := testutil.TempDB(t)
	s := store.New(database, "tester")
	for _, it := range items {
		p, err := paths.Parse(it.path, "wiki")
		if err != nil {
			t.Fatal(err)
		}
		params := store.ItemCreateParams{Path: p, Creator: "alice", Hidden: it.hidden, HasSchema: it.schema, Classes: it.classes}
		if it.parent != "" {
			pp, err := paths.Parse(it.parent, "wiki")
			if err != nil {
				t.Fatal(err)
			}
			params.Parent = &pp
		}
		if err := s.Items.Create(context.Background(), params); err != nil {
			t.Fatalf("failed to seed %s: %v", it.path, err)
		}
	}
	return s
}

func locals(ps []paths.Path) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Local()
	}
	return out
}

func assertPaths(t *testing.T, got []paths.Path, want ...string) {
	t.Helper()
	g := locals(got)
	if len(g) != len(want) {
		t.Fatalf("expected %v, got %v", want, g)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], g[i])
		}
	}
}

func TestCandidates_Defaults(t *testing.T) {
	s := seed(t, []seedItem{
		{path: "Blog/Post"},
		{path: "Blog/INDEX"},
		{path: "Blog/WebPreferences"},
		{path: "Blog/Hidden", hidden: true},
		{path: "Blog/Schema", schema: true},
		{path: "A/B/INDEX", parent: "A/INDEX"},
		{path: "A/C/INDEX", parent: "Main/INDEX"},
		{path: "Other/Page", classes: []string{"Tmp.Class"}},
	})

	got, err := Candidates(context.Background(), s.DB(), config.DefaultMigration("wiki"))
	if err != nil {
		t.Fatalf("Candidates failed: %v", err)
	}
	assertPaths(t, got, "A/C/INDEX", "Blog/INDEX", "Blog/Post", "Other/Page")
}

func TestCandidates_Exclusions(t *testing.T) {
	s := seed(t, []seedItem{
		{path: "Blog/Post"},
		{path: "Blog/Draft1"},
		{path: "Sandbox/Test"},
		{path: "Sandbox/Deep/Test"},
		{path: "Other/Page", classes: []string{"Tmp.Class"}},
		{path: "Other/Keep"},
		{path: "Blog/Hidden", hidden: true},
	})

	m := config.DefaultMigration("wiki")
	m.ExcludeHidden = false
	m.ExcludedSpaces = []string{"Sandbox"}
	m.ExcludedItems = []string{"Other/Keep"}
	m.ExcludedClasses = []string{"Tmp.Class"}
	m.ExcludePatterns = []string{"**/Draft*"}

	got, err := Candidates(context.Background(), s.DB(), m)
	if err != nil {
		t.Fatalf("Candidates failed: %v", err)
	}
	assertPaths(t, got, "Blog/Hidden", "Blog/Post")
}

func TestCandidates_IncludedSpaces(t *testing.T) {
	s := seed(t, []seedItem{
		{path: "Blog/Post"},
		{path: "Blog/Sub/Post"},
		{path: "News/Post"},
	})

	m := config.DefaultMigration("wiki")
	m.IncludedSpaces = []string{"Blog"}

	got, err := Candidates(context.Background(), s.DB(), m)
	if err != nil {
		t.Fatalf("Candidates failed: %v", err)
	}
	assertPaths(t, got, "Blog/Post", "Blog/Sub/Post")
}

func TestCandidates_SkipsRedirects(t *testing.T) {
	s := seed(t, []seedItem{{path: "A/B"}})
	ctx := context.Background()
	src, _ := paths.Parse("A/B", "wiki")
	dst, _ := paths.Parse("A/B/INDEX", "wiki")
	if err := s.Items.Move(ctx, src, dst, domain.MoveOptions{AutoRedirect: true}); err != nil {
		t.Fatal(err)
	}

	m := config.DefaultMigration("wiki")
	m.ExcludeHidden = false
	got, err := Candidates(ctx, s.DB(), m)
	if err != nil {
		t.Fatalf("Candidates failed: %v", err)
	}
	assertPaths(t, got, "A/B/INDEX")
}

func TestCandidates_SelectionError(t *testing.T) {
	database, _ := testutil.TempDB(t)
	database.Close()

	_, err := Candidates(context.Background(), database, config.DefaultMigration("wiki"))
	var selErr *domain.SelectionError
	if !errors.As(err, &selErr) {
		t.Fatalf("expected SelectionError, got %v", err)
	}
}

func TestParseItems(t *testing.T) {
	got, err := ParseItems([]string{"A/B", "wiki:A/B", "other:C/D"}, "wiki")
	if err != nil {
		t.Fatalf("ParseItems failed: %v", err)
	}
	if len(got) != 2 || got[1].Namespace() != "other" {
		t.Errorf("unexpected items %v", got)
	}

	if _, err := ParseItems([]string{"Lonely"}, "wiki"); err == nil {
		t.Error("expected single segment to be rejected")
	}
}
