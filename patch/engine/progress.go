// Package engine implements the transactional apply engine: single-entry
// apply-and-verify, the apply_entries driver with automatic rollback on
// first failure, and the progress/error event model both phases emit.
package engine

// Action is the fine-grained operation a Progress event reports.
type Action int

const (
	ActionValidating Action = iota
	ActionCheckingNotExists
	ActionBackingUp
	ActionSkipping
	ActionPatching
	ActionAdding
	ActionDeleting
	ActionRestoring
	ActionRemoving
)

func (a Action) String() string {
	switch a {
	case ActionValidating:
		return "Validating"
	case ActionCheckingNotExists:
		return "CheckingNotExists"
	case ActionBackingUp:
		return "BackingUp"
	case ActionSkipping:
		return "Skipping"
	case ActionPatching:
		return "Patching"
	case ActionAdding:
		return "Adding"
	case ActionDeleting:
		return "Deleting"
	case ActionRestoring:
		return "Restoring"
	case ActionRemoving:
		return "Removing"
	default:
		return "Unknown"
	}
}

// Phase is a top-level stage of an apply invocation, per the state machine
// in spec.md §4.9.
type Phase int

const (
	PhaseValidating Phase = iota
	PhaseBackingUp
	PhaseApplying
)

func (p Phase) String() string {
	switch p {
	case PhaseValidating:
		return "Validating"
	case PhaseBackingUp:
		return "BackingUp"
	case PhaseApplying:
		return "Applying"
	default:
		return "Unknown"
	}
}

// Progress describes one unit of work within a phase.
type Progress struct {
	File  string
	Index int
	Total int
	Action Action
}

// ProgressEventKind selects which field set of a ProgressEvent is populated.
type ProgressEventKind int

const (
	ProgressPhaseStarted ProgressEventKind = iota
	ProgressOperation
	ProgressDone
	ProgressError
)

// ProgressEvent is emitted during apply. Exactly the fields relevant to Kind
// are meaningful.
type ProgressEvent struct {
	Kind ProgressEventKind

	Phase Phase // PhaseStarted

	Progress Progress // Operation

	FilesPatched int // Done

	Message string // Error
	Details string // Error, optional
}

// RollbackEventKind selects which field set of a RollbackEvent is populated.
type RollbackEventKind int

const (
	RollbackValidatingTarget RollbackEventKind = iota
	RollbackValidatingBackup
	RollbackTargetModified
	RollbackRolling
	RollbackDone
	RollbackError
)

// RollbackEvent is emitted during rollback.
type RollbackEvent struct {
	Kind RollbackEventKind

	Reason string // TargetModified, Error

	Progress Progress // Rolling

	FilesRestored int // Done
}

// ProgressObserver receives ProgressEvent notifications during apply.
type ProgressObserver func(ProgressEvent)

// RollbackObserver receives RollbackEvent notifications during rollback.
type RollbackObserver func(RollbackEvent)

func emitProgress(obs ProgressObserver, e ProgressEvent) {
	if obs != nil {
		obs(e)
	}
}

func emitRollback(obs RollbackObserver, e RollbackEvent) {
	if obs != nil {
		obs(e)
	}
}

// EmitPhase notifies obs that a new top-level phase has started.
func EmitPhase(obs ProgressObserver, phase Phase) {
	emitProgress(obs, ProgressEvent{Kind: ProgressPhaseStarted, Phase: phase})
}

// EmitOperation notifies obs of progress on a single file within a phase.
func EmitOperation(obs ProgressObserver, file string, index, total int, action Action) {
	emitProgress(obs, ProgressEvent{Kind: ProgressOperation, Progress: Progress{File: file, Index: index, Total: total, Action: action}})
}

// EmitRollbackValidatingTarget notifies robs that target-state validation
// has begun, before any restoration happens.
func EmitRollbackValidatingTarget(robs RollbackObserver) {
	emitRollback(robs, RollbackEvent{Kind: RollbackValidatingTarget})
}

// EmitRollbackValidatingBackup notifies robs that backup-completeness
// validation has begun.
func EmitRollbackValidatingBackup(robs RollbackObserver) {
	emitRollback(robs, RollbackEvent{Kind: RollbackValidatingBackup})
}

// EmitRolling notifies robs of progress restoring a single file.
func EmitRolling(robs RollbackObserver, file string, index, total int, action Action) {
	emitRollback(robs, RollbackEvent{Kind: RollbackRolling, Progress: Progress{File: file, Index: index, Total: total, Action: action}})
}

// EmitRollbackDone notifies robs that rollback completed successfully.
func EmitRollbackDone(robs RollbackObserver, filesRestored int) {
	emitRollback(robs, RollbackEvent{Kind: RollbackDone, FilesRestored: filesRestored})
}
