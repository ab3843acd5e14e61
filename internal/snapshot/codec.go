package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Format selects a document encoding
type Format string

const (
	FormatJSON      Format = "json"
	FormatCanonical Format = "canonical"
	FormatYAML      Format = "yaml"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatCanonical, FormatYAML:
		return Format(s), nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown plan format %q (valid: json, canonical, yaml)", s)
	}
}

// Encode writes d to w in the given format
func Encode(w io.Writer, d *Document, format Format) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCanonical:
		data, err = CanonicalJSON(d)
		if err == nil {
			data = append(data, '\n')
		}
	case FormatYAML:
		data, err = yaml.Marshal(d)
	default:
		data, err = PrettyJSON(d)
	}
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// WriteFile encodes d to path, creating parent directories
func WriteFile(path string, d *Document, format Format) (*ExportResult, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, d, format); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("failed to write plan: %w", err)
	}
	return &ExportResult{OutputPath: path, PlanRev: d.Meta.PlanRev, Actions: Count(d.Actions)}, nil
}

// Decode parses a plan document. Accepted forms are the wrapped
// {"meta", "actions"} object, a bare JSON array of top-level actions, and
// the YAML rendering of the wrapped form.
func Decode(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty plan document")
	}

	d := &Document{}
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &d.Actions); err != nil {
			return nil, fmt.Errorf("failed to parse plan: %w", err)
		}
		d.Meta.SchemaVersion = SchemaVersion
	case '{':
		if err := json.Unmarshal(trimmed, d); err != nil {
			return nil, fmt.Errorf("failed to parse plan: %w", err)
		}
	default:
		if err := decodeYAML(trimmed, d); err != nil {
			return nil, err
		}
	}

	if err := validateDocument(d); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return d, nil
}

// ReadFile decodes the document at path
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	return Decode(data)
}

func decodeYAML(data []byte, d *Document) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse plan: %w", err)
	}
	if len(root.Content) == 0 {
		return fmt.Errorf("empty plan document")
	}

	node := root.Content[0]
	if node.Kind == yaml.SequenceNode {
		d.Meta.SchemaVersion = SchemaVersion
		if err := node.Decode(&d.Actions); err != nil {
			return fmt.Errorf("failed to parse plan: %w", err)
		}
		return nil
	}
	if err := node.Decode(d); err != nil {
		return fmt.Errorf("failed to parse plan: %w", err)
	}
	return nil
}

func validateDocument(d *Document) error {
	if d.Meta.SchemaVersion == 0 {
		d.Meta.SchemaVersion = SchemaVersion
	}
	if d.Meta.SchemaVersion > SchemaVersion {
		return fmt.Errorf("unsupported schema_version %d (max %d)", d.Meta.SchemaVersion, SchemaVersion)
	}
	return validateEntries(d.Actions)
}

func validateEntries(list []ActionEntry) error {
	for i := range list {
		if list[i].Source == "" || list[i].Target == "" {
			return fmt.Errorf("action %d: source and target are required", i)
		}
		if err := validateEntries(list[i].Children); err != nil {
			return err
		}
	}
	return nil
}
