package deploy

import (
	"fmt"
	"time"
)

// State is a deployment lifecycle phase.
type State int

const (
	// StateIdle means no deployment is in progress (or none got far enough
	// to change anything).
	StateIdle State = iota
	// StateSnapshotting means the pre-deployment state is being captured.
	StateSnapshotting
	// StateApplying means compiled commands are being sent to the device.
	StateApplying
	// StateVerifying means the device state is being compared to the plan.
	StateVerifying
	// StateCommitted is the terminal success state.
	StateCommitted
	// StateRollingBack means the touched resources are being restored.
	StateRollingBack
	// StateRolledBack is the terminal state after a successful restore.
	StateRolledBack
	// StateRollbackFailed is the terminal state when restore itself failed;
	// the device requires operator attention.
	StateRollbackFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSnapshotting:
		return "snapshotting"
	case StateApplying:
		return "applying"
	case StateVerifying:
		return "verifying"
	case StateCommitted:
		return "committed"
	case StateRollingBack:
		return "rolling-back"
	case StateRolledBack:
		return "rolled-back"
	case StateRollbackFailed:
		return "rollback-failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether a deployment in this state is finished.
func (s State) Terminal() bool {
	switch s {
	case StateCommitted, StateRolledBack, StateRollbackFailed:
		return true
	default:
		return false
	}
}

// Transition records one state machine step with its wall-clock time.
type Transition struct {
	From State
	To   State
	At   time.Time
}

func (t Transition) String() string {
	return fmt.Sprintf("%s -> %s", t.From, t.To)
}
