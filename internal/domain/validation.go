package domain

import (
	"fmt"
	"regexp"
	"time"
)

// UUIDv4Regex validates lowercase UUID format
var UUIDv4Regex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// ValidateUUID validates a UUID v4 format (lowercase with hyphens)
func ValidateUUID(uuid string) error {
	if !UUIDv4Regex.MatchString(uuid) {
		return fmt.Errorf("invalid UUID: must be lowercase UUIDv4 format (e.g., 550e8400-e29b-41d4-a716-446655440000)")
	}
	return nil
}

// ValidateLevel validates an access right level
func ValidateLevel(level string) error {
	switch level {
	case "view", "comment", "edit", "script", "delete", "admin", "programming", "register", "createwiki", "login":
		return nil
	default:
		return fmt.Errorf("invalid right level %q: must be one of: view, comment, edit, script, delete, admin, programming, register, createwiki, login", level)
	}
}

// ValidateRight validates a rule before it is stored or planned
func ValidateRight(r Right) error {
	if r.Subject == "" {
		return fmt.Errorf("right subject cannot be empty")
	}
	return ValidateLevel(r.Level)
}

// ValidatePlanStatus validates a plan status
func ValidatePlanStatus(status string) error {
	switch PlanStatus(status) {
	case PlanStatusPlanned, PlanStatusExecuted:
		return nil
	default:
		return fmt.Errorf("invalid plan status: must be one of: planned, executed")
	}
}

// ValidateResourceType validates an event resource type
func ValidateResourceType(resourceType string) error {
	switch resourceType {
	case "item", "preference", "right", "plan", "system":
		return nil
	default:
		return fmt.Errorf("invalid resource type: must be one of: item, preference, right, plan, system")
	}
}

// ValidateTimestamp validates and parses an ISO8601 timestamp
func ValidateTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp format: expected ISO8601/RFC3339")
	}
	return t, nil
}
