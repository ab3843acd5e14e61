package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/paths"
	"github.com/lherron/nestmig/internal/testutil"
)

// setupTestStore creates a store over a temporary migrated database.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	database, _ := testutil.TempDB(t)
	return New(database, "tester")
}

func mustPath(t *testing.T, s string) paths.Path {
	t.Helper()
	p, err := paths.Parse(s, "wiki")
	if err != nil {
		t.Fatalf("failed to parse %q: %v", s, err)
	}
	return p
}

func createItem(t *testing.T, s *Store, params ItemCreateParams) {
	t.Helper()
	if params.Creator == "" {
		params.Creator = "alice"
	}
	if err := s.Items.Create(context.Background(), params); err != nil {
		t.Fatalf("Create %s failed: %v", params.Path, err)
	}
}

func countEvents(t *testing.T, s *Store, eventType string) int {
	t.Helper()
	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM event_log WHERE event_type = ?", eventType).Scan(&n); err != nil {
		t.Fatalf("failed to count events: %v", err)
	}
	return n
}

func TestItemStore_CreateAndRead(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	parent := mustPath(t, "Main/INDEX")

	createItem(t, s, ItemCreateParams{
		Path:    mustPath(t, "Blog/Post"),
		Parent:  &parent,
		Content: "hello",
		Classes: []string{"Blog.Class", "Tag.Class"},
	})

	item, err := s.Items.ReadItem(ctx, mustPath(t, "Blog/Post"))
	if err != nil {
		t.Fatalf("ReadItem failed: %v", err)
	}
	if item == nil {
		t.Fatal("expected item")
	}
	if item.Parent == nil || !item.Parent.Equal(parent) {
		t.Errorf("expected parent %s, got %v", parent, item.Parent)
	}
	if item.Creator != "alice" || item.LastEditor != "alice" {
		t.Errorf("expected creator and last editor alice, got %q / %q", item.Creator, item.LastEditor)
	}
	if item.ContentHash != ContentHash("hello") {
		t.Errorf("unexpected content hash %q", item.ContentHash)
	}
	if len(item.Classes) != 2 || item.Classes[0] != "Blog.Class" {
		t.Errorf("unexpected classes %v", item.Classes)
	}
	if item.CreatedAt.IsZero() {
		t.Error("expected created_at to be parsed")
	}
	if countEvents(t, s, "item.created") != 1 {
		t.Error("expected one item.created event")
	}
}

func TestItemStore_ReadMissing(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	item, err := s.Items.ReadItem(ctx, mustPath(t, "No/Such"))
	if err != nil || item != nil {
		t.Fatalf("expected nil, nil; got %v, %v", item, err)
	}

	exists, err := s.Items.Exists(ctx, mustPath(t, "No/Such"))
	if err != nil || exists {
		t.Fatalf("expected false, nil; got %v, %v", exists, err)
	}

	if _, err := s.Items.Get(ctx, mustPath(t, "No/Such")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestItemStore_MoveRelinksAndRedirects(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	src := mustPath(t, "A/B")
	dst := mustPath(t, "P/B/INDEX")

	createItem(t, s, ItemCreateParams{Path: src, Content: "x", Classes: []string{"Some.Class"}})
	createItem(t, s, ItemCreateParams{Path: mustPath(t, "A/Child"), Parent: &src})

	if err := s.Items.Move(ctx, src, dst, domain.MoveOptions{AutoRedirect: true, Actor: "bob"}); err != nil {
		t.Fatalf("Move failed: %v", err)
	}

	moved, err := s.Items.Get(ctx, dst)
	if err != nil {
		t.Fatalf("Get target failed: %v", err)
	}
	if moved.MigratedFrom == nil || !moved.MigratedFrom.Equal(src) {
		t.Errorf("expected migrated_from %s, got %v", src, moved.MigratedFrom)
	}
	if moved.LastEditor != "bob" {
		t.Errorf("expected last editor bob, got %q", moved.LastEditor)
	}
	if len(moved.Classes) != 1 {
		t.Errorf("expected classes to follow the move, got %v", moved.Classes)
	}

	child, _ := s.Items.Get(ctx, mustPath(t, "A/Child"))
	if child.Parent == nil || !child.Parent.Equal(dst) {
		t.Errorf("expected child relinked to %s, got %v", dst, child.Parent)
	}

	stub, _ := s.Items.ReadItem(ctx, src)
	if stub == nil || !stub.Hidden || stub.RedirectTo == nil || !stub.RedirectTo.Equal(dst) {
		t.Errorf("expected hidden redirect stub at %s, got %+v", src, stub)
	}
	if countEvents(t, s, "item.moved") != 1 {
		t.Error("expected one item.moved event")
	}
}

func TestItemStore_MoveRefusesExistingTarget(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createItem(t, s, ItemCreateParams{Path: mustPath(t, "A/B")})
	createItem(t, s, ItemCreateParams{Path: mustPath(t, "P/B")})

	if err := s.Items.Move(ctx, mustPath(t, "A/B"), mustPath(t, "P/B"), domain.MoveOptions{}); err == nil {
		t.Fatal("expected error moving onto an existing item")
	}
	if exists, _ := s.Items.Exists(ctx, mustPath(t, "A/B")); !exists {
		t.Error("source must be untouched after a refused move")
	}

	err := s.Items.Move(ctx, mustPath(t, "Gone/X"), mustPath(t, "P/X"), domain.MoveOptions{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing source, got %v", err)
	}
}

func TestItemStore_DeleteAndSetParent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := mustPath(t, "A/B")
	createItem(t, s, ItemCreateParams{Path: p})

	parent := mustPath(t, "A/INDEX")
	if err := s.Items.SetParent(ctx, p, parent); err != nil {
		t.Fatalf("SetParent failed: %v", err)
	}
	item, _ := s.Items.Get(ctx, p)
	if item.Parent == nil || !item.Parent.Equal(parent) {
		t.Errorf("expected parent %s, got %v", parent, item.Parent)
	}

	if err := s.Items.Delete(ctx, p); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Items.Delete(ctx, p); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	if countEvents(t, s, "item.deleted") != 1 {
		t.Error("expected one item.deleted event")
	}
}

func TestItemStore_ListOrdersByPath(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	for _, local := range []string{"B/X", "A/Y", "A/INDEX"} {
		createItem(t, s, ItemCreateParams{Path: mustPath(t, local)})
	}

	items, err := s.Items.List(ctx, "wiki")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var got []string
	for _, item := range items {
		got = append(got, item.Path.Local())
	}
	want := []string{"A/INDEX", "A/Y", "B/X"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestPreferenceStore(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	space := paths.NewSpace("wiki", "A")

	if err := s.Preferences.DefineProperty(ctx, "wiki", "skin"); err != nil {
		t.Fatalf("DefineProperty failed: %v", err)
	}
	if err := s.Preferences.DefineProperty(ctx, "wiki", "skin"); err != nil {
		t.Fatalf("DefineProperty must be idempotent: %v", err)
	}
	if err := s.Preferences.Set(ctx, "wiki", space, "skin", "dark"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Preferences.Set(ctx, "wiki", paths.Space{}, "skin", "light"); err != nil {
		t.Fatalf("Set global failed: %v", err)
	}

	props, _ := s.Preferences.Properties(ctx, "wiki")
	if len(props) != 1 || props[0] != "skin" {
		t.Errorf("unexpected properties %v", props)
	}
	if v, _ := s.Preferences.DeclaredValue(ctx, space, "skin"); v != "dark" {
		t.Errorf("expected dark, got %q", v)
	}
	if v, _ := s.Preferences.GlobalValue(ctx, "wiki", "skin"); v != "light" {
		t.Errorf("expected light, got %q", v)
	}
	if v, _ := s.Preferences.DeclaredValue(ctx, paths.NewSpace("wiki", "B"), "skin"); v != "" {
		t.Errorf("expected no declared value, got %q", v)
	}
}

func TestApplyOverrides(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	space := paths.NewSpace("wiki", "P", "B")

	if err := s.Rights.Add(ctx, "wiki", space, domain.Right{Subject: "bob", Level: "edit", Allow: true}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	err := s.ApplyOverrides(ctx, space,
		[]domain.Preference{{Name: "skin", Value: "dark"}},
		[]domain.Right{
			{Subject: "bob", Level: "edit", Allow: false},
			{Subject: "devs", Group: true, Level: "view", Allow: true},
		})
	if err != nil {
		t.Fatalf("ApplyOverrides failed: %v", err)
	}

	if v, _ := s.Preferences.DeclaredValue(ctx, space, "skin"); v != "dark" {
		t.Errorf("expected dark, got %q", v)
	}
	rules, _ := s.Rights.SpaceRules(ctx, space)
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %v", rules)
	}
	if rules[0].Subject != "bob" || rules[0].Allow {
		t.Errorf("expected bob's rule replaced by a deny, got %+v", rules[0])
	}
	if !rules[1].Group {
		t.Errorf("expected group rule, got %+v", rules[1])
	}
	if countEvents(t, s, "overrides.applied") != 1 {
		t.Error("expected one overrides.applied event")
	}

	if err := s.Rights.Add(ctx, "wiki", space, domain.Right{Subject: "bob", Level: "fly"}); err == nil {
		t.Error("expected invalid level to be rejected")
	}
}

func TestPlanStore_Lifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first, err := s.Plans.Save(ctx, "alice", PlanSaveParams{Namespace: "wiki", PlanRev: "sha256:1", Document: "{}", Actions: 2})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := domain.ValidateUUID(first.UUID); err != nil {
		t.Errorf("expected a UUID, got %q", first.UUID)
	}
	if first.Status != domain.PlanStatusPlanned {
		t.Errorf("expected planned status, got %s", first.Status)
	}

	second, err := s.Plans.Save(ctx, "alice", PlanSaveParams{Namespace: "wiki", PlanRev: "sha256:2", Document: "{}", Actions: 3})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	latest, err := s.Plans.Latest(ctx, "wiki")
	if err != nil || latest.UUID != second.UUID {
		t.Fatalf("expected latest %s, got %v (%v)", second.UUID, latest, err)
	}

	got, err := s.Plans.Get(ctx, first.UUID[:8])
	if err != nil || got.UUID != first.UUID {
		t.Fatalf("expected prefix lookup to find %s, got %v (%v)", first.UUID, got, err)
	}

	if err := s.Plans.UpdateDocument(ctx, "alice", first.UUID, "sha256:3", `{"meta":{}}`, 4); err != nil {
		t.Fatalf("UpdateDocument failed: %v", err)
	}

	run := PlanRun{Moved: 2, StartedAt: time.Now()}
	if err := s.Plans.RecordRun(ctx, "alice", first.UUID, PlanRun{DryRun: true, StartedAt: time.Now()}); err != nil {
		t.Fatalf("RecordRun dry failed: %v", err)
	}
	got, _ = s.Plans.Get(ctx, first.UUID)
	if got.Status != domain.PlanStatusPlanned {
		t.Error("a dry run must not mark the plan executed")
	}

	partial := PlanRun{Moved: 1, Failed: 1, StartedAt: time.Now()}
	if err := s.Plans.RecordRun(ctx, "alice", first.UUID, partial); err != nil {
		t.Fatalf("RecordRun partial failed: %v", err)
	}
	got, _ = s.Plans.Get(ctx, first.UUID)
	if got.Status != domain.PlanStatusPlanned {
		t.Error("a run with failures must leave the plan open")
	}

	if err := s.Plans.RecordRun(ctx, "alice", first.UUID, run); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	got, _ = s.Plans.Get(ctx, first.UUID)
	if got.Status != domain.PlanStatusExecuted || got.ExecutedAt == nil {
		t.Errorf("expected executed plan, got %+v", got)
	}
	if got.PlanRev != "sha256:3" || got.Actions != 4 {
		t.Errorf("expected updated document, got rev %s actions %d", got.PlanRev, got.Actions)
	}
	if n, _ := s.Plans.Runs(ctx, first.UUID); n != 3 {
		t.Errorf("expected 3 runs, got %d", n)
	}

	if err := s.Plans.UpdateDocument(ctx, "alice", first.UUID, "sha256:4", "{}", 1); err == nil {
		t.Error("expected executed plan to reject document updates")
	}

	if _, err := s.Plans.Get(ctx, "ffffffff-0000"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	list, _ := s.Plans.List(ctx, "wiki", 0)
	if len(list) != 2 {
		t.Errorf("expected 2 plans, got %d", len(list))
	}
}

func TestPlanStore_Page(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var saved []string
	for i := 0; i < 5; i++ {
		rec, err := s.Plans.Save(ctx, "alice", PlanSaveParams{
			Namespace: "wiki", PlanRev: fmt.Sprintf("sha256:%d", i), Document: "{}", Actions: i,
		})
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		saved = append(saved, rec.UUID)
	}

	var seen []string
	token := ""
	pages := 0
	for {
		page, next, err := s.Plans.Page(ctx, "wiki", 2, token)
		if err != nil {
			t.Fatalf("Page failed: %v", err)
		}
		pages++
		for _, rec := range page {
			seen = append(seen, rec.UUID)
		}
		if next == "" {
			break
		}
		token = next
	}

	if pages != 3 {
		t.Errorf("expected 3 pages, got %d", pages)
	}
	if len(seen) != len(saved) {
		t.Fatalf("expected %d plans, got %d", len(saved), len(seen))
	}
	for i := range seen {
		if seen[i] != saved[len(saved)-1-i] {
			t.Errorf("position %d: got %s, want %s", i, seen[i], saved[len(saved)-1-i])
		}
	}

	if _, _, err := s.Plans.Page(ctx, "wiki", 2, "garbage!"); err == nil {
		t.Error("expected invalid cursor error")
	}
}
