package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/lherron/nestmig/internal/paths"
)

// DefaultPreferenceHolder is the name of the item carrying a space's
// preferences; it is never migrated on its own.
const DefaultPreferenceHolder = "WebPreferences"

// Migration holds the options of one migration run
type Migration struct {
	Namespace          string   `yaml:"namespace"`
	ExcludeHidden      bool     `yaml:"excludeHidden"`
	ExcludeSchemaItems bool     `yaml:"excludeSchemaItems"`
	DontMoveChildren   bool     `yaml:"dontMoveChildren"`
	AutoRedirect       bool     `yaml:"autoRedirect"`
	PreferenceHolder   string   `yaml:"preferenceHolder"`
	IncludedSpaces     []string `yaml:"includedSpaces,omitempty"`
	ExcludedSpaces     []string `yaml:"excludedSpaces,omitempty"`
	ExcludedItems      []string `yaml:"excludedItems,omitempty"`
	ExcludedClasses    []string `yaml:"excludedClasses,omitempty"`
	ExcludePatterns    []string `yaml:"excludePatterns,omitempty"`
	DisabledActions    []string `yaml:"disabledActions,omitempty"`
}

// DefaultMigration returns the options used when no file is given
func DefaultMigration(namespace string) Migration {
	return Migration{
		Namespace:          namespace,
		ExcludeHidden:      true,
		ExcludeSchemaItems: true,
		AutoRedirect:       true,
		PreferenceHolder:   DefaultPreferenceHolder,
	}
}

// LoadMigration reads a YAML migration file over the defaults. An empty path
// yields the defaults. A namespace in the file wins over namespace.
func LoadMigration(path, namespace string) (Migration, error) {
	m := DefaultMigration(namespace)
	if path == "" {
		return m, m.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Migration{}, fmt.Errorf("failed to read migration config: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Migration{}, fmt.Errorf("failed to parse migration config %s: %w", path, err)
	}
	if m.PreferenceHolder == "" {
		m.PreferenceHolder = DefaultPreferenceHolder
	}
	return m, m.Validate()
}

// Validate checks the namespace, space names and patterns
func (m *Migration) Validate() error {
	if err := paths.ValidateNamespace(m.Namespace); err != nil {
		return fmt.Errorf("invalid namespace: %w", err)
	}
	for _, s := range append(append([]string(nil), m.IncludedSpaces...), m.ExcludedSpaces...) {
		if _, err := paths.ParseSpace(s, m.Namespace); err != nil {
			return err
		}
	}
	for _, item := range m.ExcludedItems {
		if _, err := paths.Parse(item, m.Namespace); err != nil {
			return err
		}
	}
	for _, pattern := range m.ExcludePatterns {
		if err := paths.ValidatePattern(pattern); err != nil {
			return err
		}
	}
	return nil
}

// IsActionEnabled reports whether key is not listed in disabledActions
func (m *Migration) IsActionEnabled(key string) bool {
	for _, k := range m.DisabledActions {
		if k == key {
			return false
		}
	}
	return true
}

// DisableAction adds key to disabledActions
func (m *Migration) DisableAction(key string) {
	if !m.IsActionEnabled(key) {
		return
	}
	m.DisabledActions = append(m.DisabledActions, key)
	sort.Strings(m.DisabledActions)
}
