package snapshot

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Query evaluates a JSONPath expression over the canonical form of d
func Query(d *Document, expr string) ([]any, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", expr, err)
	}

	data, err := CanonicalJSON(d)
	if err != nil {
		return nil, err
	}
	root, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}

	return x.Get(root), nil
}

// QueryJSON renders query results, one JSON value per line
func QueryJSON(results []any) string {
	var out string
	for _, r := range results {
		out += oj.JSON(r, &oj.Options{Sort: true}) + "\n"
	}
	return out
}
