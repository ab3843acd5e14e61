package store

import (
	"context"
	"fmt"
)

// Stats counts the content of one namespace
type Stats struct {
	Namespace     string `json:"namespace"`
	Items         int    `json:"items"`
	Redirects     int    `json:"redirects"`
	Migrated      int    `json:"migrated"`
	Properties    int    `json:"properties"`
	Preferences   int    `json:"preferences"`
	Rights        int    `json:"rights"`
	PlansPlanned  int    `json:"plans_planned"`
	PlansExecuted int    `json:"plans_executed"`
	Events        int    `json:"events"`
}

// Stats returns counts for namespace. Events are counted across namespaces.
func (s *Store) Stats(ctx context.Context, namespace string) (*Stats, error) {
	st := &Stats{Namespace: namespace}

	queries := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&st.Items, `SELECT COUNT(*) FROM items WHERE namespace = ? AND redirect_to IS NULL`, []any{namespace}},
		{&st.Redirects, `SELECT COUNT(*) FROM items WHERE namespace = ? AND redirect_to IS NOT NULL`, []any{namespace}},
		{&st.Migrated, `SELECT COUNT(*) FROM items WHERE namespace = ? AND migrated_from IS NOT NULL`, []any{namespace}},
		{&st.Properties, `SELECT COUNT(*) FROM preference_properties WHERE namespace = ?`, []any{namespace}},
		{&st.Preferences, `SELECT COUNT(*) FROM preferences WHERE namespace = ?`, []any{namespace}},
		{&st.Rights, `SELECT COUNT(*) FROM rights WHERE namespace = ?`, []any{namespace}},
		{&st.PlansPlanned, `SELECT COUNT(*) FROM plans WHERE namespace = ? AND status = 'planned'`, []any{namespace}},
		{&st.PlansExecuted, `SELECT COUNT(*) FROM plans WHERE namespace = ? AND status = 'executed'`, []any{namespace}},
		{&st.Events, `SELECT COUNT(*) FROM event_log`, nil},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query, q.args...).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("failed to count: %w", err)
		}
	}
	return st, nil
}
