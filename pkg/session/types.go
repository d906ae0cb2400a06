// Package session implements the per-connection state machine described in
// spec.md §4.5: it demultiplexes inbound frames, submits executions to the
// execution manager, and fans out queue-position and progress/output
// streams back onto the connection.
package session

// ExecutionState is the per-execution state machine spec.md §4.5 names.
// Idle never appears as a stored state (an execution only exists in this
// package from the moment ExecutionRequest is handled, i.e. already Queued).
type ExecutionState string

const (
	StateQueued     ExecutionState = "queued"
	StateRunning    ExecutionState = "running"
	StateCancelling ExecutionState = "cancelling"
	StateSucceeded  ExecutionState = "succeeded"
	StateFailed     ExecutionState = "failed"
	StateCancelled  ExecutionState = "cancelled"
)
