package paths

import "testing"

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{name: "exact match", pattern: "Main/Page", path: "Main/Page", want: true},
		{name: "no match", pattern: "Main/Page", path: "Main/Other", want: false},
		{name: "star in segment", pattern: "Main/*", path: "Main/Page", want: true},
		{name: "star does not cross segments", pattern: "Main/*", path: "Main/Sub/Page", want: false},
		{name: "double star", pattern: "Sandbox/**", path: "Sandbox/A/B/INDEX", want: true},
		{name: "double star middle", pattern: "**/WebPreferences", path: "A/B/WebPreferences", want: true},
		{name: "alternatives", pattern: "{Main,Sandbox}/*", path: "Sandbox/Test", want: true},
		{name: "question mark", pattern: "Main/Pag?", path: "Main/Page", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchGlob(tt.pattern, tt.path); got != tt.want {
				t.Errorf("MatchGlob(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

func TestMatchPathNamespace(t *testing.T) {
	p := MustParse("wiki:Sandbox/Page")
	if !MatchPath("wiki:Sandbox/*", p) {
		t.Error("expected namespaced pattern to match")
	}
	if MatchPath("other:Sandbox/*", p) {
		t.Error("pattern for another namespace should not match")
	}
	if !MatchPath("Sandbox/*", p) {
		t.Error("unqualified pattern should match any namespace")
	}
}

func TestValidatePattern(t *testing.T) {
	if err := ValidatePattern("Main/[abc"); err == nil {
		t.Error("expected error for unterminated class")
	}
	if err := ValidatePattern("wiki:Main/**"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSplitJoinPath(t *testing.T) {
	segs := []string{"A/B", "C", `D\E`}
	joined := JoinPath(segs...)
	got := SplitPath(joined)
	if len(got) != len(segs) {
		t.Fatalf("SplitPath(%q) = %v", joined, got)
	}
	for i := range segs {
		if got[i] != segs[i] {
			t.Errorf("segment %d = %q, want %q", i, got[i], segs[i])
		}
	}
}
