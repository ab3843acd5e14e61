// Package store provides a persistence layer over the item namespace,
// preferences, rights and plans, handling timestamps and event logging.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lherron/nestmig/internal/db"
	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/events"
	"github.com/lherron/nestmig/internal/paths"
)

// Store is the root store that provides access to domain-specific stores.
type Store struct {
	db    *db.DB
	actor string

	// Domain-specific stores
	Items       *ItemStore
	Preferences *PreferenceStore
	Rights      *RightStore
	Plans       *PlanStore
}

// New creates a new Store wrapping the given database connection. actor is
// recorded on events whose operation does not name one.
func New(database *db.DB, actor string) *Store {
	s := &Store{db: database, actor: actor}
	s.Items = &ItemStore{store: s}
	s.Preferences = &PreferenceStore{store: s}
	s.Rights = &RightStore{store: s}
	s.Plans = &PlanStore{store: s}
	return s
}

// DB returns the underlying database connection (for read-only queries).
func (s *Store) DB() *db.DB {
	return s.db
}

// Actor returns the default actor
func (s *Store) Actor() string {
	return s.actor
}

// withTx executes fn within a transaction. If fn returns nil, the transaction
// is committed; otherwise it is rolled back.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx, ew *events.Writer) error) error {
	tx, err := s.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ew := events.NewWriter(s.db.DB)
	if err := fn(tx, ew); err != nil {
		return err
	}

	return tx.Commit()
}

// ApplyOverrides writes preference values and access rules to space in one
// transaction. Preferences are upserted by name; a rule replaces any rule of
// the same concern already declared on space.
func (s *Store) ApplyOverrides(ctx context.Context, space paths.Space, prefs []domain.Preference, rights []domain.Right) error {
	if len(prefs) == 0 && len(rights) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		for _, p := range prefs {
			if err := setPreference(tx, space.Namespace, space.Local(), p.Name, p.Value); err != nil {
				return err
			}
		}
		for _, r := range rights {
			if err := replaceRight(tx, space.Namespace, space.Local(), r); err != nil {
				return err
			}
		}
		if err := ew.LogOverridesApplied(tx, s.actor, space.String(), prefs, rights); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

// parseTime parses the timestamp formats SQLite defaults produce
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
