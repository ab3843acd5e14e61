// Package selectors enumerates the items a migration run is concerned with.
package selectors

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/lherron/nestmig/internal/config"
	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/paths"
)

// Querier is the read side of a database handle
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Candidates returns the items of m.Namespace to migrate, ordered by full
// path. Redirect stubs, the preference holder, index items already located
// under their declared parent and everything m excludes are skipped.
// Failures are reported as *domain.SelectionError.
func Candidates(ctx context.Context, q Querier, m config.Migration) ([]paths.Path, error) {
	out, err := candidates(ctx, q, m)
	if err != nil {
		return nil, &domain.SelectionError{Err: err}
	}
	return out, nil
}

func candidates(ctx context.Context, q Querier, m config.Migration) ([]paths.Path, error) {
	excluded, err := excludedByClass(ctx, q, m)
	if err != nil {
		return nil, err
	}

	included, err := parseSpaces(m.IncludedSpaces, m.Namespace)
	if err != nil {
		return nil, err
	}
	excludedSpaces, err := parseSpaces(m.ExcludedSpaces, m.Namespace)
	if err != nil {
		return nil, err
	}
	excludedItems := make(map[string]struct{}, len(m.ExcludedItems))
	for _, s := range m.ExcludedItems {
		p, err := paths.Parse(s, m.Namespace)
		if err != nil {
			return nil, err
		}
		excludedItems[p.Key()] = struct{}{}
	}

	query := `
		SELECT rowid, full_path, parent FROM items
		WHERE namespace = ? AND redirect_to IS NULL AND name != ?`
	args := []interface{}{m.Namespace, m.PreferenceHolder}
	if m.ExcludeHidden {
		query += ` AND hidden = 0`
	}
	if m.ExcludeSchemaItems {
		query += ` AND has_schema = 0`
	}
	query += ` ORDER BY full_path`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var out []paths.Path
	for rows.Next() {
		var rowID int64
		var fullPath string
		var parent *string
		if err := rows.Scan(&rowID, &fullPath, &parent); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		if excluded.Contains(uint32(rowID)) {
			continue
		}

		p, err := paths.Parse(fullPath, m.Namespace)
		if err != nil {
			return nil, fmt.Errorf("corrupt item path %q: %w", fullPath, err)
		}

		if _, skip := excludedItems[p.Key()]; skip {
			continue
		}
		if len(included) > 0 && !inAnySpace(p, included) {
			continue
		}
		if inAnySpace(p, excludedSpaces) || matchesAny(p, m.ExcludePatterns) {
			continue
		}
		if parent != nil && alreadyNested(p, *parent) {
			continue
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseItems parses explicitly named items, dropping repeats while keeping
// first-seen order.
func ParseItems(args []string, namespace string) ([]paths.Path, error) {
	seen := make(map[string]struct{}, len(args))
	out := make([]paths.Path, 0, len(args))
	for _, arg := range args {
		p, err := paths.Parse(arg, namespace)
		if err != nil {
			return nil, &domain.SelectionError{Err: err}
		}
		if _, dup := seen[p.Key()]; dup {
			continue
		}
		seen[p.Key()] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// excludedByClass returns the rowids of items carrying an excluded class
func excludedByClass(ctx context.Context, q Querier, m config.Migration) (*roaring.Bitmap, error) {
	set := roaring.New()
	if len(m.ExcludedClasses) == 0 {
		return set, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(m.ExcludedClasses)), ",")
	args := []interface{}{m.Namespace}
	for _, c := range m.ExcludedClasses {
		args = append(args, c)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT i.rowid FROM items i
		JOIN item_classes c ON c.namespace = i.namespace AND c.full_path = i.full_path
		WHERE i.namespace = ? AND c.class IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query excluded classes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			return nil, fmt.Errorf("failed to scan excluded item: %w", err)
		}
		set.Add(uint32(rowID))
	}
	return set, rows.Err()
}

// alreadyNested reports whether p is an index item whose declared parent is
// the index of the space right above it.
func alreadyNested(p paths.Path, parent string) bool {
	if !p.IsIndex() || parent == "" {
		return false
	}
	up, ok := p.Space.Parent()
	if !ok {
		return false
	}
	declared, err := paths.Parse(parent, p.Namespace())
	if err != nil {
		return false
	}
	return declared.Equal(up.Index())
}

func parseSpaces(names []string, namespace string) ([]paths.Space, error) {
	out := make([]paths.Space, 0, len(names))
	for _, n := range names {
		s, err := paths.ParseSpace(n, namespace)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// inAnySpace reports whether p lives in one of spaces or below it
func inAnySpace(p paths.Path, spaces []paths.Space) bool {
	for _, s := range spaces {
		if within(p.Space, s) {
			return true
		}
	}
	return false
}

func within(s, ancestor paths.Space) bool {
	if s.Namespace != ancestor.Namespace || len(s.Names) < len(ancestor.Names) {
		return false
	}
	for i, n := range ancestor.Names {
		if s.Names[i] != n {
			return false
		}
	}
	return true
}

func matchesAny(p paths.Path, patterns []string) bool {
	for _, pattern := range patterns {
		if paths.MatchPath(pattern, p) {
			return true
		}
	}
	return false
}
