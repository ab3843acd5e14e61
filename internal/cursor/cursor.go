// Package cursor encodes keyset pagination positions as opaque tokens.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Cursor is the position after the last row of a page: the values of the
// sort columns and the tie-breaking id of that row.
type Cursor struct {
	SortFields []string `json:"sort_fields"`
	LastValues []any    `json:"last_values"`
	LastID     any      `json:"last_id"`
}

// New creates a cursor from the last row of a page
func New(sortFields []string, lastValues []any, lastID any) (*Cursor, error) {
	if len(sortFields) != len(lastValues) {
		return nil, fmt.Errorf("sort fields and last values length mismatch")
	}
	if lastID == nil || lastID == "" {
		return nil, fmt.Errorf("last ID required")
	}
	return &Cursor{SortFields: sortFields, LastValues: lastValues, LastID: lastID}, nil
}

// Encode serializes the cursor to an opaque base64 string
func (c *Cursor) Encode() (string, error) {
	if len(c.SortFields) != len(c.LastValues) {
		return "", fmt.Errorf("sort fields and last values length mismatch")
	}

	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode deserializes a cursor produced by Encode. Integral numbers come
// back as int64 so they bind against INTEGER columns.
func Decode(encoded string) (*Cursor, error) {
	if encoded == "" {
		return nil, fmt.Errorf("empty cursor string")
	}

	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid cursor format: %w", err)
	}

	if len(c.SortFields) == 0 {
		return nil, fmt.Errorf("cursor missing sort fields")
	}
	if len(c.SortFields) != len(c.LastValues) {
		return nil, fmt.Errorf("cursor sort fields and values length mismatch")
	}
	if c.LastID == nil || c.LastID == "" {
		return nil, fmt.Errorf("cursor missing last ID")
	}
	for _, f := range c.SortFields {
		if !validColumn(f) {
			return nil, fmt.Errorf("invalid cursor sort field %q", f)
		}
	}

	for i, v := range c.LastValues {
		c.LastValues[i] = integral(v)
	}
	c.LastID = integral(c.LastID)
	return &c, nil
}

// Where builds the predicate selecting rows after the cursor, for
// ORDER BY f1, f2, ..., idColumn where every column sorts in the same
// direction. For descending order with one sort field it yields
//
//	(f1 < ? OR (f1 = ? AND id < ?))
func (c *Cursor) Where(idColumn string, descending bool) (string, []any) {
	op := ">"
	if descending {
		op = "<"
	}

	fields := append(append([]string{}, c.SortFields...), idColumn)
	values := append(append([]any{}, c.LastValues...), c.LastID)

	var params []any
	var ors []string
	for i := range fields {
		var ands []string
		for j := 0; j < i; j++ {
			ands = append(ands, fields[j]+" = ?")
			params = append(params, values[j])
		}
		ands = append(ands, fmt.Sprintf("%s %s ?", fields[i], op))
		params = append(params, values[i])

		if len(ands) == 1 {
			ors = append(ors, ands[0])
		} else {
			ors = append(ors, "("+strings.Join(ands, " AND ")+")")
		}
	}
	return "(" + strings.Join(ors, " OR ") + ")", params
}

func integral(v any) any {
	if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return v
}

func validColumn(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r != '_' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
