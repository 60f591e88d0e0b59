package pipeline

import "errors"

// Error taxonomy for pipeline failures. Stage-level failures never propagate
// past the executor; they are converted to a failed commit with a
// descriptive error. The checkpoint sentinels are returned synchronously to
// approval callers and leave task state unchanged.
var (
	// ErrScopeRejected marks a request the gatekeeper classified out of
	// scope. Terminal, never retried.
	ErrScopeRejected = errors.New("request rejected by scope classification")

	// ErrRetryBudgetExhausted marks a validation failure that survived the
	// full retry budget.
	ErrRetryBudgetExhausted = errors.New("validation retry budget exhausted")

	// ErrNoPendingCheckpoint is returned by Resolve when the task has no
	// open checkpoint.
	ErrNoPendingCheckpoint = errors.New("no pending checkpoint")

	// ErrCheckpointMismatch is returned by Resolve when the submitted stage
	// does not match the currently open checkpoint.
	ErrCheckpointMismatch = errors.New("checkpoint stage mismatch")

	// ErrUpstreamFailure marks an error from an opaque collaborator itself
	// (unreachable service, malformed output). Not a content-quality issue,
	// so it is immediately terminal.
	ErrUpstreamFailure = errors.New("upstream collaborator failure")
)
