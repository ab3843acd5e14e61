package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lherron/nestmig/internal/events"
	"github.com/lherron/nestmig/internal/paths"
)

// PreferenceStore handles preference persistence operations. Values declared
// on space '' are the namespace-wide defaults.
type PreferenceStore struct {
	store *Store
}

// Properties returns the inheritable property names of a namespace
func (ps *PreferenceStore) Properties(ctx context.Context, namespace string) ([]string, error) {
	rows, err := ps.store.db.QueryContext(ctx, `
		SELECT name FROM preference_properties WHERE namespace = ? ORDER BY name
	`, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to list preference properties: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DefineProperty declares an inheritable property
func (ps *PreferenceStore) DefineProperty(ctx context.Context, namespace, name string) error {
	_, err := ps.store.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO preference_properties (namespace, name) VALUES (?, ?)
	`, namespace, name)
	if err != nil {
		return fmt.Errorf("failed to define property %s: %w", name, err)
	}
	return nil
}

// DeclaredValue returns the value declared on space itself, "" when none
func (ps *PreferenceStore) DeclaredValue(ctx context.Context, space paths.Space, name string) (string, error) {
	return ps.value(ctx, space.Namespace, space.Local(), name)
}

// GlobalValue returns the namespace-wide default, "" when none
func (ps *PreferenceStore) GlobalValue(ctx context.Context, namespace, name string) (string, error) {
	return ps.value(ctx, namespace, "", name)
}

func (ps *PreferenceStore) value(ctx context.Context, namespace, space, name string) (string, error) {
	var value string
	err := ps.store.db.QueryRowContext(ctx, `
		SELECT value FROM preferences WHERE namespace = ? AND space = ? AND name = ?
	`, namespace, space, name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read preference %s: %w", name, err)
	}
	return value, nil
}

// Set declares a value on a space; a zero space sets the namespace default.
func (ps *PreferenceStore) Set(ctx context.Context, namespace string, space paths.Space, name, value string) error {
	local := ""
	if !space.IsZero() {
		local = space.Local()
	}
	return ps.store.withTx(ctx, func(tx *sql.Tx, _ *events.Writer) error {
		return setPreference(tx, namespace, local, name, value)
	})
}

func setPreference(tx *sql.Tx, namespace, space, name, value string) error {
	_, err := tx.Exec(`
		INSERT INTO preferences (namespace, space, name, value) VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, space, name) DO UPDATE SET value = excluded.value
	`, namespace, space, name, value)
	if err != nil {
		return fmt.Errorf("failed to set preference %s: %w", name, err)
	}
	return nil
}
