package snapshot

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// Diff returns a unified diff of the pretty renderings of two documents.
// Revision and generation time are left out so only plan content differs.
// The result is empty when the plans are identical.
func Diff(a, b *Document, fromName, toName string) (string, error) {
	left, err := PrettyJSON(withoutStamp(a))
	if err != nil {
		return "", err
	}
	right, err := PrettyJSON(withoutStamp(b))
	if err != nil {
		return "", err
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(left)),
		B:        difflib.SplitLines(string(right)),
		FromFile: fromName,
		ToFile:   toName,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("failed to diff plans: %w", err)
	}
	return text, nil
}

func withoutStamp(d *Document) *Document {
	c := *d
	c.Meta.PlanRev = ""
	c.Meta.GeneratedAt = ""
	return &c
}
