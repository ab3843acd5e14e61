package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/events"
	"github.com/lherron/nestmig/internal/paths"
)

// RightStore handles access rule persistence operations. Rules declared on
// space '' apply namespace-wide.
type RightStore struct {
	store *Store
}

// SpaceRules returns the rules declared on space itself in declaration order
func (rs *RightStore) SpaceRules(ctx context.Context, space paths.Space) ([]domain.Right, error) {
	return rs.rules(ctx, space.Namespace, space.Local())
}

// GlobalRules returns the namespace-wide rules in declaration order
func (rs *RightStore) GlobalRules(ctx context.Context, namespace string) ([]domain.Right, error) {
	return rs.rules(ctx, namespace, "")
}

func (rs *RightStore) rules(ctx context.Context, namespace, space string) ([]domain.Right, error) {
	rows, err := rs.store.db.QueryContext(ctx, `
		SELECT subject, is_group, level, allow FROM rights
		WHERE namespace = ? AND space = ?
		ORDER BY id
	`, namespace, space)
	if err != nil {
		return nil, fmt.Errorf("failed to list rights: %w", err)
	}
	defer rows.Close()

	var out []domain.Right
	for rows.Next() {
		var r domain.Right
		var group, allow int
		if err := rows.Scan(&r.Subject, &group, &r.Level, &allow); err != nil {
			return nil, fmt.Errorf("failed to scan right: %w", err)
		}
		r.Group = group != 0
		r.Allow = allow != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Add declares a rule on a space; a zero space declares it namespace-wide.
// An existing rule of the same concern is replaced.
func (rs *RightStore) Add(ctx context.Context, namespace string, space paths.Space, r domain.Right) error {
	if err := domain.ValidateRight(r); err != nil {
		return err
	}
	local := ""
	if !space.IsZero() {
		local = space.Local()
	}
	return rs.store.withTx(ctx, func(tx *sql.Tx, _ *events.Writer) error {
		return replaceRight(tx, namespace, local, r)
	})
}

func replaceRight(tx *sql.Tx, namespace, space string, r domain.Right) error {
	_, err := tx.Exec(`
		DELETE FROM rights
		WHERE namespace = ? AND space = ? AND subject = ? AND is_group = ? AND level = ?
	`, namespace, space, r.Subject, boolToInt(r.Group), r.Level)
	if err != nil {
		return fmt.Errorf("failed to replace right: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO rights (namespace, space, subject, is_group, level, allow)
		VALUES (?, ?, ?, ?, ?, ?)
	`, namespace, space, r.Subject, boolToInt(r.Group), r.Level, boolToInt(r.Allow))
	if err != nil {
		return fmt.Errorf("failed to add right: %w", err)
	}
	return nil
}
