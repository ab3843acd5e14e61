// Package snapshot converts migration plans to and from their persisted
// document form.
//
// Documents are deterministic JSON: keys sorted lexicographically, no
// insignificant whitespace, children in plan order. The revision of a plan
// is the sha256 of its canonical encoding with the revision and generation
// time left out, so identical plans share a revision.
package snapshot

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"
)

// SchemaVersion is the document version written by this package
const SchemaVersion = 1

// Document is the persisted form of a plan
type Document struct {
	Meta    Meta          `json:"meta" yaml:"meta"`
	Actions []ActionEntry `json:"actions" yaml:"actions"`
}

// Meta contains document metadata.
type Meta struct {
	SchemaVersion int    `json:"schema_version" yaml:"schema_version"`
	PlanRev       string `json:"plan_rev,omitempty" yaml:"plan_rev,omitempty"`
	GeneratedAt   string `json:"generated_at,omitempty" yaml:"generated_at,omitempty"`
	Namespace     string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// ActionEntry is one action with its subtree
type ActionEntry struct {
	Source         string            `json:"source" yaml:"source"`
	Target         string            `json:"target" yaml:"target"`
	Enabled        bool              `json:"enabled" yaml:"enabled"`
	DeletePrevious bool              `json:"deletePrevious,omitempty" yaml:"deletePrevious,omitempty"`
	Preferences    []PreferenceEntry `json:"preferences,omitempty" yaml:"preferences,omitempty"`
	Rights         []RightEntry      `json:"rights,omitempty" yaml:"rights,omitempty"`
	Children       []ActionEntry     `json:"children,omitempty" yaml:"children,omitempty"`
}

// UnmarshalJSON defaults Enabled to true when the field is absent
func (e *ActionEntry) UnmarshalJSON(data []byte) error {
	type plain ActionEntry
	v := plain{Enabled: true}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*e = ActionEntry(v)
	return nil
}

// UnmarshalYAML defaults Enabled to true when the field is absent
func (e *ActionEntry) UnmarshalYAML(value *yaml.Node) error {
	type plain ActionEntry
	v := plain{Enabled: true}
	if err := value.Decode(&v); err != nil {
		return err
	}
	*e = ActionEntry(v)
	return nil
}

// PreferenceEntry is a preference override
type PreferenceEntry struct {
	Name   string `json:"name" yaml:"name"`
	Value  string `json:"value" yaml:"value"`
	Origin string `json:"origin,omitempty" yaml:"origin,omitempty"`
}

// RightEntry is an access rule override. Exactly one of User and Group is set.
type RightEntry struct {
	User   string `json:"user,omitempty" yaml:"user,omitempty"`
	Group  string `json:"group,omitempty" yaml:"group,omitempty"`
	Level  string `json:"level" yaml:"level"`
	Allow  bool   `json:"allow" yaml:"allow"`
	Origin string `json:"origin,omitempty" yaml:"origin,omitempty"`
}

// ExportResult contains the result of an export operation.
type ExportResult struct {
	OutputPath string `json:"out"`
	PlanRev    string `json:"plan_rev"`
	Actions    int    `json:"actions"`
}

// VerifyResult contains the result of a verify operation.
type VerifyResult struct {
	Valid   bool   `json:"valid"`
	PlanRev string `json:"plan_rev"`
	Message string `json:"message,omitempty"`
}

// FormatTimestamp formats a time.Time as ISO-8601 with Z suffix.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
