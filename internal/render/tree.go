package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/lherron/nestmig/internal/plan"
)

// RenderTree writes a plan as an indented tree, one action per line.
// Disabled actions, duplicate replacement and override counts are flagged.
func RenderTree(w io.Writer, t *plan.Tree) error {
	return t.Walk(func(a *plan.Action, depth int) error {
		_, err := fmt.Fprintf(w, "%s%s%s\n", strings.Repeat("  ", depth), a, actionFlags(a))
		return err
	})
}

func actionFlags(a *plan.Action) string {
	var flags []string
	if a.IsIdentity() {
		flags = append(flags, "keep")
	}
	if !a.Enabled {
		flags = append(flags, "disabled")
	}
	if a.DeletePrevious {
		flags = append(flags, "replaces duplicate")
	}
	if n := len(a.Preferences()); n > 0 {
		flags = append(flags, fmt.Sprintf("%d pref", n))
	}
	if n := len(a.Rights()); n > 0 {
		flags = append(flags, fmt.Sprintf("%d right", n))
	}
	if len(flags) == 0 {
		return ""
	}
	return "  (" + strings.Join(flags, ", ") + ")"
}

// PlanRows flattens a plan into table rows in walk order
func PlanRows(t *plan.Tree) ([]string, [][]string) {
	headers := []string{"DEPTH", "SOURCE", "TARGET", "ENABLED", "PREFS", "RIGHTS"}
	var rows [][]string
	_ = t.Walk(func(a *plan.Action, depth int) error {
		rows = append(rows, []string{
			fmt.Sprint(depth),
			a.Source().String(),
			a.Target().String(),
			fmt.Sprint(a.Enabled),
			fmt.Sprint(len(a.Preferences())),
			fmt.Sprint(len(a.Rights())),
		})
		return nil
	})
	return headers, rows
}
