package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CanonicalJSON produces a deterministic JSON encoding following JCS-like rules:
// - Keys sorted lexicographically
// - No insignificant whitespace
// - UTF-8 encoding
// - Empty optional fields omitted
func CanonicalJSON(d *Document) ([]byte, error) {
	ordered := buildOrderedDocument(d)

	// Use a custom encoder that doesn't escape HTML and uses no indentation
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(ordered); err != nil {
		return nil, fmt.Errorf("failed to encode plan: %w", err)
	}

	// Remove trailing newline added by Encode
	result := buf.Bytes()
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}

	return result, nil
}

// ComputePlanRev computes the sha256 hash of canonical JSON bytes.
// Returns "sha256:<hex>" format.
func ComputePlanRev(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// Rev returns the revision of d: the hash of its canonical form without
// plan_rev and generated_at.
func Rev(d *Document) (string, error) {
	stripped := *d
	stripped.Meta.PlanRev = ""
	stripped.Meta.GeneratedAt = ""
	data, err := CanonicalJSON(&stripped)
	if err != nil {
		return "", err
	}
	return ComputePlanRev(data), nil
}

// Stamp sets d's plan_rev to its current revision
func Stamp(d *Document) error {
	rev, err := Rev(d)
	if err != nil {
		return err
	}
	d.Meta.PlanRev = rev
	return nil
}

// Verify recomputes the revision and compares it with the recorded one.
func Verify(d *Document) (*VerifyResult, error) {
	rev, err := Rev(d)
	if err != nil {
		return nil, err
	}
	res := &VerifyResult{Valid: true, PlanRev: rev}
	switch {
	case d.Meta.PlanRev == "":
		res.Message = "document carries no plan_rev"
	case d.Meta.PlanRev != rev:
		res.Valid = false
		res.Message = fmt.Sprintf("plan_rev mismatch: recorded %s, computed %s", d.Meta.PlanRev, rev)
	}
	return res, nil
}

func buildOrderedDocument(d *Document) orderedMap {
	actions := make([]orderedMap, 0, len(d.Actions))
	for i := range d.Actions {
		actions = append(actions, buildOrderedAction(&d.Actions[i]))
	}
	return orderedMap{
		{"actions", actions},
		{"meta", buildOrderedMeta(&d.Meta)},
	}
}

// orderedMap is a slice of key-value pairs that marshals as a JSON object
// with keys in the order they appear in the slice.
type orderedMap []keyValue

type keyValue struct {
	Key   string
	Value interface{}
}

func (om orderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, kv := range om {
		if i > 0 {
			buf.WriteByte(',')
		}

		// Write key
		keyJSON, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')

		// Write value
		valJSON, err := marshalNoEscape(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(valJSON)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalNoEscape(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func buildOrderedMeta(m *Meta) orderedMap {
	result := make(orderedMap, 0, 4)

	// Fields in lexicographic order
	if m.GeneratedAt != "" {
		result = append(result, keyValue{"generated_at", m.GeneratedAt})
	}
	if m.Namespace != "" {
		result = append(result, keyValue{"namespace", m.Namespace})
	}
	if m.PlanRev != "" {
		result = append(result, keyValue{"plan_rev", m.PlanRev})
	}
	result = append(result, keyValue{"schema_version", m.SchemaVersion})

	return result
}

func buildOrderedAction(a *ActionEntry) orderedMap {
	result := make(orderedMap, 0, 7)

	// Fields in lexicographic order
	if len(a.Children) > 0 {
		children := make([]orderedMap, 0, len(a.Children))
		for i := range a.Children {
			children = append(children, buildOrderedAction(&a.Children[i]))
		}
		result = append(result, keyValue{"children", children})
	}
	if a.DeletePrevious {
		result = append(result, keyValue{"deletePrevious", true})
	}
	result = append(result, keyValue{"enabled", a.Enabled})
	if len(a.Preferences) > 0 {
		prefs := make([]orderedMap, 0, len(a.Preferences))
		for _, p := range a.Preferences {
			prefs = append(prefs, buildOrderedPreference(p))
		}
		result = append(result, keyValue{"preferences", prefs})
	}
	if len(a.Rights) > 0 {
		rights := make([]orderedMap, 0, len(a.Rights))
		for _, r := range a.Rights {
			rights = append(rights, buildOrderedRight(r))
		}
		result = append(result, keyValue{"rights", rights})
	}
	result = append(result, keyValue{"source", a.Source})
	result = append(result, keyValue{"target", a.Target})

	return result
}

func buildOrderedPreference(p PreferenceEntry) orderedMap {
	result := make(orderedMap, 0, 3)
	result = append(result, keyValue{"name", p.Name})
	if p.Origin != "" {
		result = append(result, keyValue{"origin", p.Origin})
	}
	result = append(result, keyValue{"value", p.Value})
	return result
}

func buildOrderedRight(r RightEntry) orderedMap {
	result := make(orderedMap, 0, 5)
	result = append(result, keyValue{"allow", r.Allow})
	if r.Group != "" {
		result = append(result, keyValue{"group", r.Group})
	}
	result = append(result, keyValue{"level", r.Level})
	if r.Origin != "" {
		result = append(result, keyValue{"origin", r.Origin})
	}
	if r.User != "" {
		result = append(result, keyValue{"user", r.User})
	}
	return result
}

// PrettyJSON produces human-readable indented JSON (non-canonical).
// Useful for reading and diffing but not for deterministic comparison.
func PrettyJSON(d *Document) ([]byte, error) {
	data, err := CanonicalJSON(d)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
