package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lherron/nestmig/internal/cursor"
	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/events"
)

// PlanStore handles plan persistence operations.
type PlanStore struct {
	store *Store
}

// PlanSaveParams contains parameters for saving a plan document.
type PlanSaveParams struct {
	Namespace string
	PlanRev   string
	Document  string
	Actions   int
}

// PlanRun summarizes one executor run over a plan.
type PlanRun struct {
	DryRun    bool
	Moved     int
	Resumed   int
	Skipped   int
	Failed    int
	StartedAt time.Time
}

const planColumns = `uuid, namespace, plan_rev, document, status, actions, created_at, executed_at`

// Save stores a new plan under a fresh UUID and logs a plan.saved event.
func (ps *PlanStore) Save(ctx context.Context, actor string, params PlanSaveParams) (*domain.PlanRecord, error) {
	var rec *domain.PlanRecord

	err := ps.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		id := uuid.NewString()
		_, err := tx.Exec(`
			INSERT INTO plans (uuid, namespace, plan_rev, document, actions)
			VALUES (?, ?, ?, ?, ?)
		`, id, params.Namespace, params.PlanRev, params.Document, params.Actions)
		if err != nil {
			return fmt.Errorf("failed to save plan: %w", err)
		}

		rec, err = getPlan(tx.QueryRow(`SELECT `+planColumns+` FROM plans WHERE uuid = ?`, id))
		if err != nil {
			return fmt.Errorf("failed to read saved plan: %w", err)
		}

		if err := ew.LogPlanSaved(tx, actor, rec); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})

	return rec, err
}

// Get returns a plan by UUID or unique UUID prefix.
func (ps *PlanStore) Get(ctx context.Context, id string) (*domain.PlanRecord, error) {
	rows, err := ps.store.db.QueryContext(ctx, `
		SELECT `+planColumns+` FROM plans WHERE uuid = ? OR uuid LIKE ? ORDER BY uuid = ? DESC LIMIT 2
	`, id, id+"%", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	defer rows.Close()

	var found []*domain.PlanRecord
	for rows.Next() {
		rec, err := getPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		found = append(found, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(found) == 0:
		return nil, fmt.Errorf("plan %s: %w", id, domain.ErrNotFound)
	case len(found) > 1 && found[0].UUID != id:
		return nil, fmt.Errorf("plan id %q is ambiguous", id)
	}
	return found[0], nil
}

// Latest returns the most recently saved plan of a namespace
func (ps *PlanStore) Latest(ctx context.Context, namespace string) (*domain.PlanRecord, error) {
	rec, err := getPlan(ps.store.db.QueryRowContext(ctx, `
		SELECT `+planColumns+` FROM plans WHERE namespace = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, namespace))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no plan for namespace %s: %w", namespace, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest plan: %w", err)
	}
	return rec, nil
}

// List returns the plans of a namespace, newest first. limit <= 0 means all.
func (ps *PlanStore) List(ctx context.Context, namespace string, limit int) ([]*domain.PlanRecord, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE namespace = ? ORDER BY created_at DESC, rowid DESC`
	args := []interface{}{namespace}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := ps.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var out []*domain.PlanRecord
	for rows.Next() {
		rec, err := getPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Page returns up to limit plans of a namespace after the position encoded
// in token, newest first, along with the token of the next page. The next
// token is empty when no further plans exist.
func (ps *PlanStore) Page(ctx context.Context, namespace string, limit int, token string) ([]*domain.PlanRecord, string, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT rowid, created_at, ` + planColumns + ` FROM plans WHERE namespace = ?`
	args := []interface{}{namespace}
	if token != "" {
		c, err := cursor.Decode(token)
		if err != nil {
			return nil, "", err
		}
		where, params := c.Where("rowid", true)
		query += ` AND ` + where
		args = append(args, params...)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := ps.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to page plans: %w", err)
	}
	defer rows.Close()

	var out []*domain.PlanRecord
	var lastRowID int64
	var lastCreated string
	for rows.Next() {
		var rowid int64
		var created string
		rec, err := getPlan(prefixScanner{row: rows, prefix: []any{&rowid, &created}})
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan plan: %w", err)
		}
		if len(out) == limit {
			next, err := cursor.New([]string{"created_at"}, []any{lastCreated}, lastRowID)
			if err != nil {
				return nil, "", err
			}
			token, err := next.Encode()
			if err != nil {
				return nil, "", err
			}
			return out, token, rows.Err()
		}
		out = append(out, rec)
		lastRowID, lastCreated = rowid, created
	}
	return out, "", rows.Err()
}

// prefixScanner scans leading extra columns ahead of the plan columns.
type prefixScanner struct {
	row    rowScanner
	prefix []any
}

func (p prefixScanner) Scan(dest ...any) error {
	return p.row.Scan(append(append([]any{}, p.prefix...), dest...)...)
}

// UpdateDocument replaces the document of a plan that has not been executed.
func (ps *PlanStore) UpdateDocument(ctx context.Context, actor, id, rev, document string, actions int) error {
	return ps.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		var status string
		err := tx.QueryRow(`SELECT status FROM plans WHERE uuid = ?`, id).Scan(&status)
		if err == sql.ErrNoRows {
			return fmt.Errorf("plan %s: %w", id, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read plan status: %w", err)
		}
		if domain.PlanStatus(status) == domain.PlanStatusExecuted {
			return fmt.Errorf("plan %s was already executed", id)
		}

		_, err = tx.Exec(`UPDATE plans SET plan_rev = ?, document = ?, actions = ? WHERE uuid = ?`,
			rev, document, actions, id)
		if err != nil {
			return fmt.Errorf("failed to update plan: %w", err)
		}

		if err := ew.LogEvent(tx, &domain.Event{
			Actor:        actor,
			ResourceType: "plan",
			Resource:     id,
			EventType:    "plan.updated",
		}); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

// RecordRun stores a run summary. A run that is not a dry run marks the plan
// executed. Logs a plan.executed event.
func (ps *PlanStore) RecordRun(ctx context.Context, actor, id string, run PlanRun) error {
	return ps.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		_, err := tx.Exec(`
			INSERT INTO plan_runs (plan_uuid, actor, dry_run, moved, resumed, skipped, failed, started_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, actor, boolToInt(run.DryRun), run.Moved, run.Resumed, run.Skipped, run.Failed, formatTime(run.StartedAt))
		if err != nil {
			return fmt.Errorf("failed to record plan run: %w", err)
		}

		// A run with failures leaves the plan open so it can be resumed.
		if !run.DryRun && run.Failed == 0 {
			res, err := tx.Exec(`
				UPDATE plans SET status = ?, executed_at = strftime('%Y-%m-%dT%H:%M:%SZ','now')
				WHERE uuid = ?
			`, string(domain.PlanStatusExecuted), id)
			if err != nil {
				return fmt.Errorf("failed to mark plan executed: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("plan %s: %w", id, domain.ErrNotFound)
			}
		}

		if err := ew.LogPlanExecuted(tx, actor, id, map[string]interface{}{
			"dry_run": run.DryRun,
			"moved":   run.Moved,
			"resumed": run.Resumed,
			"skipped": run.Skipped,
			"failed":  run.Failed,
		}); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

// Runs returns the number of recorded runs of a plan
func (ps *PlanStore) Runs(ctx context.Context, id string) (int, error) {
	var n int
	err := ps.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plan_runs WHERE plan_uuid = ?`, id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count plan runs: %w", err)
	}
	return n, nil
}

func getPlan(row rowScanner) (*domain.PlanRecord, error) {
	rec := &domain.PlanRecord{}
	var status, createdAt string
	var executedAt *string

	err := row.Scan(&rec.UUID, &rec.Namespace, &rec.PlanRev, &rec.Document, &status,
		&rec.Actions, &createdAt, &executedAt)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.PlanStatus(status)
	rec.CreatedAt = parseTime(createdAt)
	if executedAt != nil {
		t := parseTime(*executedAt)
		rec.ExecutedAt = &t
	}
	return rec, nil
}
