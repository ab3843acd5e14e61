package plan

import "github.com/lherron/nestmig/internal/paths"

// TargetState classifies a candidate target path
type TargetState int

const (
	// StateFree means nothing occupies the target.
	StateFree TargetState = iota
	// StateUsed means another action or an unrelated stored item holds the target.
	StateUsed
	// StateDuplicate means the target holds a remnant of an interrupted
	// migration of the same source.
	StateDuplicate
)

func (s TargetState) String() string {
	switch s {
	case StateFree:
		return "FREE"
	case StateUsed:
		return "USED"
	case StateDuplicate:
		return "DUPLICATE"
	default:
		return "UNKNOWN"
	}
}

// Target is a resolved target path with its state
type Target struct {
	Path  paths.Path
	State TargetState
}
