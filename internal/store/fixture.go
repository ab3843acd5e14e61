package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/paths"
)

// Fixture describes the content of a namespace to load into the store.
// Paths and spaces are relative to Namespace unless qualified.
type Fixture struct {
	Namespace   string              `yaml:"namespace"`
	Properties  []string            `yaml:"properties"`
	Globals     map[string]string   `yaml:"globals"`
	Preferences []FixturePreference `yaml:"preferences"`
	Rights      []FixtureRight      `yaml:"rights"`
	Items       []FixtureItem       `yaml:"items"`
}

// FixturePreference is a value declared on a space
type FixturePreference struct {
	Space string `yaml:"space"`
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// FixtureRight is a rule declared on a space; an empty space declares it
// namespace-wide.
type FixtureRight struct {
	Space string `yaml:"space"`
	User  string `yaml:"user"`
	Group string `yaml:"group"`
	Level string `yaml:"level"`
	Allow *bool  `yaml:"allow"` // defaults to true
}

// FixtureItem is one stored item
type FixtureItem struct {
	Path       string   `yaml:"path"`
	Parent     string   `yaml:"parent"`
	Creator    string   `yaml:"creator"`
	LastEditor string   `yaml:"lastEditor"`
	Content    string   `yaml:"content"`
	Hidden     bool     `yaml:"hidden"`
	Schema     bool     `yaml:"schema"`
	Classes    []string `yaml:"classes"`
}

// FixtureResult counts what a fixture load stored
type FixtureResult struct {
	Items       int `json:"items"`
	Properties  int `json:"properties"`
	Preferences int `json:"preferences"`
	Rights      int `json:"rights"`
}

// ReadFixture parses a YAML fixture file
func ReadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture parses a YAML fixture
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return &f, nil
}

// LoadFixture stores the content of f. defaultNamespace applies when the
// fixture names none.
func (s *Store) LoadFixture(ctx context.Context, f *Fixture, defaultNamespace string) (*FixtureResult, error) {
	ns := f.Namespace
	if ns == "" {
		ns = defaultNamespace
	}
	if err := paths.ValidateNamespace(ns); err != nil {
		return nil, err
	}

	res := &FixtureResult{}

	for _, name := range f.Properties {
		if err := s.Preferences.DefineProperty(ctx, ns, name); err != nil {
			return nil, err
		}
		res.Properties++
	}
	for name, value := range f.Globals {
		if err := s.Preferences.Set(ctx, ns, paths.Space{}, name, value); err != nil {
			return nil, err
		}
		res.Preferences++
	}
	for _, p := range f.Preferences {
		space, err := paths.ParseSpace(p.Space, ns)
		if err != nil {
			return nil, fmt.Errorf("preference %s: %w", p.Name, err)
		}
		if err := s.Preferences.Set(ctx, ns, space, p.Name, p.Value); err != nil {
			return nil, err
		}
		res.Preferences++
	}

	for _, r := range f.Rights {
		right, space, err := r.resolve(ns)
		if err != nil {
			return nil, err
		}
		if err := s.Rights.Add(ctx, ns, space, right); err != nil {
			return nil, err
		}
		res.Rights++
	}

	for _, it := range f.Items {
		params, err := it.params(ns)
		if err != nil {
			return nil, err
		}
		if params.Creator == "" {
			params.Creator = s.actor
		}
		if err := s.Items.Create(ctx, params); err != nil {
			return nil, err
		}
		res.Items++
	}

	return res, nil
}

func (r FixtureRight) resolve(ns string) (domain.Right, paths.Space, error) {
	if (r.User == "") == (r.Group == "") {
		return domain.Right{}, paths.Space{}, fmt.Errorf("right on %q must name exactly one of user or group", r.Space)
	}
	right := domain.Right{Subject: r.User, Level: r.Level, Allow: r.Allow == nil || *r.Allow}
	if r.Group != "" {
		right.Subject, right.Group = r.Group, true
	}

	var space paths.Space
	if r.Space != "" {
		s, err := paths.ParseSpace(r.Space, ns)
		if err != nil {
			return domain.Right{}, paths.Space{}, fmt.Errorf("right on %q: %w", r.Space, err)
		}
		space = s
	}
	return right, space, nil
}

func (it FixtureItem) params(ns string) (ItemCreateParams, error) {
	p, err := paths.Parse(it.Path, ns)
	if err != nil {
		return ItemCreateParams{}, fmt.Errorf("item %q: %w", it.Path, err)
	}
	params := ItemCreateParams{
		Path:       p,
		Creator:    it.Creator,
		LastEditor: it.LastEditor,
		Content:    it.Content,
		Hidden:     it.Hidden,
		HasSchema:  it.Schema,
		Classes:    it.Classes,
	}
	if it.Parent != "" {
		parent, err := paths.Parse(it.Parent, ns)
		if err != nil {
			return ItemCreateParams{}, fmt.Errorf("item %q parent: %w", it.Path, err)
		}
		params.Parent = &parent
	}
	return params, nil
}
