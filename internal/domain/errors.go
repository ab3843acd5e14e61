package domain

import (
	"errors"
	"fmt"

	"github.com/lherron/nestmig/internal/paths"
)

// ErrNotFound is returned when an item or plan does not exist
var ErrNotFound = errors.New("not found")

// SelectionError is returned when candidate enumeration fails. It aborts planning.
type SelectionError struct {
	Err error
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("selection failed: %v", e.Err)
}

func (e *SelectionError) Unwrap() error { return e.Err }

// StructuralError reports a broken plan invariant: two actions claiming the
// same source or the same target.
type StructuralError struct {
	Index string // "source" or "target"
	Path  paths.Path
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("plan already has an action with %s %s", e.Index, e.Path)
}

// ResolutionFallback records that an item could not be read while planning
// and was anchored with an identity action instead.
type ResolutionFallback struct {
	Path paths.Path
	Err  error
}

func (e *ResolutionFallback) Error() string {
	return fmt.Sprintf("could not resolve %s, keeping it in place: %v", e.Path, e.Err)
}

func (e *ResolutionFallback) Unwrap() error { return e.Err }

// ExecutionFailure is the failure of one step of one action
type ExecutionFailure struct {
	Source paths.Path
	Step   string // "move", "delete", "parent", "overrides"
	Err    error
}

func (e *ExecutionFailure) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Step, e.Source, e.Err)
}

func (e *ExecutionFailure) Unwrap() error { return e.Err }
