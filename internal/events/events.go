// Package events writes the audit trail of store mutations to event_log.
package events

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lherron/nestmig/internal/domain"
)

// Writer handles writing events to the event log
type Writer struct {
	db *sql.DB
}

// NewWriter creates a new event writer
func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// LogEvent writes an event to the event log
func (w *Writer) LogEvent(tx *sql.Tx, event *domain.Event) error {
	query := `
		INSERT INTO event_log (actor, resource_type, resource, event_type, payload)
		VALUES (?, ?, ?, ?, ?)
	`

	executor := w.getExecutor(tx)
	_, err := executor.Exec(query, event.Actor, event.ResourceType, event.Resource, event.EventType, event.Payload)
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// log marshals payload and writes one event
func (w *Writer) log(tx *sql.Tx, actor, resourceType, resource, eventType string, payload map[string]interface{}) error {
	event := &domain.Event{
		Actor:        actor,
		ResourceType: resourceType,
		Resource:     resource,
		EventType:    eventType,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}
		s := string(data)
		event.Payload = &s
	}
	return w.LogEvent(tx, event)
}

// LogItemCreated logs an item creation event
func (w *Writer) LogItemCreated(tx *sql.Tx, actor, path string) error {
	return w.log(tx, actor, "item", path, "item.created", nil)
}

// LogItemMoved logs an item move event
func (w *Writer) LogItemMoved(tx *sql.Tx, actor, from, to string, redirect bool) error {
	return w.log(tx, actor, "item", to, "item.moved", map[string]interface{}{
		"from":     from,
		"to":       to,
		"redirect": redirect,
	})
}

// LogItemDeleted logs an item deletion event
func (w *Writer) LogItemDeleted(tx *sql.Tx, actor, path string) error {
	return w.log(tx, actor, "item", path, "item.deleted", nil)
}

// LogParentChanged logs a change of an item's declared parent
func (w *Writer) LogParentChanged(tx *sql.Tx, actor, path string, oldParent *string, newParent string) error {
	payload := map[string]interface{}{"parent": newParent}
	if oldParent != nil {
		payload["previous"] = *oldParent
	}
	return w.log(tx, actor, "item", path, "item.parent_changed", payload)
}

// LogOverridesApplied logs the preference and right overrides written to a space
func (w *Writer) LogOverridesApplied(tx *sql.Tx, actor, space string, prefs []domain.Preference, rights []domain.Right) error {
	return w.log(tx, actor, "preference", space, "overrides.applied", map[string]interface{}{
		"preferences": prefs,
		"rights":      rights,
	})
}

// LogPlanSaved logs a persisted plan
func (w *Writer) LogPlanSaved(tx *sql.Tx, actor string, plan *domain.PlanRecord) error {
	return w.log(tx, actor, "plan", plan.UUID, "plan.saved", map[string]interface{}{
		"namespace": plan.Namespace,
		"plan_rev":  plan.PlanRev,
		"actions":   plan.Actions,
	})
}

// LogPlanExecuted logs an executor run over a plan
func (w *Writer) LogPlanExecuted(tx *sql.Tx, actor, planUUID string, summary map[string]interface{}) error {
	return w.log(tx, actor, "plan", planUUID, "plan.executed", summary)
}

// getExecutor returns the transaction if provided, otherwise the database
func (w *Writer) getExecutor(tx *sql.Tx) interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
} {
	if tx != nil {
		return tx
	}
	return w.db
}
