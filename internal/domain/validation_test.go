package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lherron/nestmig/internal/paths"
)

func TestValidateLevel(t *testing.T) {
	tests := []struct {
		level   string
		wantErr bool
	}{
		{"view", false},
		{"edit", false},
		{"admin", false},
		{"programming", false},
		{"", true},
		{"write", true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			err := ValidateLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRight(t *testing.T) {
	if err := ValidateRight(Right{Level: "view"}); err == nil {
		t.Error("expected error for empty subject")
	}
	if err := ValidateRight(Right{Subject: "XWiki.Admins", Group: true, Level: "admin", Allow: true}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateUUID(t *testing.T) {
	if err := ValidateUUID("550e8400-e29b-41d4-a716-446655440000"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateUUID("550E8400-E29B-41D4-A716-446655440000"); err == nil {
		t.Error("uppercase UUID should be rejected")
	}
}

func TestRightConcern(t *testing.T) {
	allow := Right{Subject: "XWiki.Alice", Level: "edit", Allow: true, Origin: "wiki:A"}
	deny := Right{Subject: "XWiki.Alice", Level: "edit", Allow: false, Origin: "wiki:B"}
	group := Right{Subject: "XWiki.Alice", Group: true, Level: "edit", Allow: true}
	view := Right{Subject: "XWiki.Alice", Level: "view", Allow: true}

	if !allow.SameConcern(deny) {
		t.Error("allow and deny on the same subject and level share a concern")
	}
	if allow.SameEffect(deny) {
		t.Error("allow and deny must not have the same effect")
	}
	if allow.SameConcern(group) {
		t.Error("a group and a user with the same name are different subjects")
	}
	if allow.SameConcern(view) {
		t.Error("different levels are different concerns")
	}
	if !allow.Inverse().SameEffect(deny) {
		t.Error("inverse of allow should match deny")
	}
	if !allow.SameEffect(Right{Subject: "XWiki.Alice", Level: "edit", Allow: true}) {
		t.Error("origin must not affect rule equality")
	}
}

func TestItemSameOrigin(t *testing.T) {
	a := &Item{Creator: "alice", LastEditor: "bob", ContentHash: "h1"}
	b := &Item{Creator: "alice", LastEditor: "bob", ContentHash: "h1"}
	c := &Item{Creator: "alice", LastEditor: "carol", ContentHash: "h1"}

	if !a.SameOrigin(b) {
		t.Error("identical metadata should be same origin")
	}
	if a.SameOrigin(c) {
		t.Error("different last editor should not be same origin")
	}
	if a.SameOrigin(nil) {
		t.Error("nil item is never same origin")
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("disk gone")
	p := paths.MustParse("wiki:A/B")

	var fallback *ResolutionFallback
	err := fmt.Errorf("planning: %w", &ResolutionFallback{Path: p, Err: cause})
	if !errors.As(err, &fallback) {
		t.Fatalf("errors.As failed for %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("ResolutionFallback should unwrap to its cause")
	}

	var exec *ExecutionFailure
	err = &ExecutionFailure{Source: p, Step: "move", Err: ErrNotFound}
	if !errors.As(err, &exec) || exec.Step != "move" {
		t.Errorf("unexpected ExecutionFailure: %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("ExecutionFailure should unwrap to ErrNotFound")
	}

	var sel *SelectionError
	if !errors.As(&SelectionError{Err: cause}, &sel) {
		t.Error("errors.As failed for SelectionError")
	}
}
