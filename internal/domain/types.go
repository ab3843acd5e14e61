package domain

import (
	"time"

	"github.com/lherron/nestmig/internal/paths"
)

// Item is the metadata of a stored item as seen by planning and execution
type Item struct {
	Path         paths.Path  `json:"path"`
	Parent       *paths.Path `json:"parent,omitempty"` // declared parent, nil when none
	Creator      string      `json:"creator"`
	LastEditor   string      `json:"last_editor"`
	ContentHash  string      `json:"content_hash"`
	Hidden       bool        `json:"hidden"`
	HasSchema    bool        `json:"has_schema"`
	Classes      []string    `json:"classes,omitempty"`
	MigratedFrom *paths.Path `json:"migrated_from,omitempty"`
	RedirectTo   *paths.Path `json:"redirect_to,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// SameOrigin reports whether two items look like copies of one another:
// same creator, same last editor and same content.
func (i *Item) SameOrigin(o *Item) bool {
	if i == nil || o == nil {
		return false
	}
	return i.Creator == o.Creator &&
		i.LastEditor == o.LastEditor &&
		i.ContentHash == o.ContentHash
}

// MoveOptions controls a single item move
type MoveOptions struct {
	AutoRedirect bool
	Actor        string
}

// Preference is an inheritable configuration value together with the
// location it was read from.
type Preference struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Origin string `json:"origin,omitempty"`
}

// Right is a single access rule. Subject is a user, or a group when Group is set.
type Right struct {
	Subject string `json:"subject"`
	Group   bool   `json:"group"`
	Level   string `json:"level"`
	Allow   bool   `json:"allow"`
	Origin  string `json:"origin,omitempty"`
}

// SameConcern reports whether both rules target the same subject and level,
// meaning one would replace the other.
func (r Right) SameConcern(o Right) bool {
	return r.Subject == o.Subject && r.Group == o.Group && r.Level == o.Level
}

// SameEffect reports whether both rules have the same concern and outcome.
// Origins are ignored.
func (r Right) SameEffect(o Right) bool {
	return r.SameConcern(o) && r.Allow == o.Allow
}

// Inverse returns the rule with the opposite outcome for the same concern
func (r Right) Inverse() Right {
	inv := r
	inv.Allow = !r.Allow
	return inv
}

// PlanStatus is the lifecycle state of a persisted plan
type PlanStatus string

const (
	PlanStatusPlanned  PlanStatus = "planned"
	PlanStatusExecuted PlanStatus = "executed"
)

// PlanRecord is a persisted migration plan
type PlanRecord struct {
	UUID       string     `json:"uuid" db:"uuid"`
	Namespace  string     `json:"namespace" db:"namespace"`
	PlanRev    string     `json:"plan_rev" db:"plan_rev"`
	Document   string     `json:"-" db:"document"`
	Status     PlanStatus `json:"status" db:"status"`
	Actions    int        `json:"actions" db:"actions"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ExecutedAt *time.Time `json:"executed_at,omitempty" db:"executed_at"`
}

// Event represents an event in the event log
type Event struct {
	ID           int64     `json:"id" db:"id"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
	Actor        string    `json:"actor" db:"actor"`
	ResourceType string    `json:"resource_type" db:"resource_type"`
	Resource     string    `json:"resource" db:"resource"`
	EventType    string    `json:"event_type" db:"event_type"`
	Payload      *string   `json:"payload,omitempty" db:"payload"` // JSON
}
