package pipeline

import (
	"context"
	"fmt"

	"github.com/sitesmith/sitesmith/internal/models"
	"github.com/sitesmith/sitesmith/internal/store"
)

// ResultKind discriminates the possible outcomes of a stage function.
type ResultKind int

const (
	// KindAdvance commits the patch and moves to the successor stage.
	KindAdvance ResultKind = iota
	// KindNeedsApproval parks the task at a checkpoint with a proposed patch.
	KindNeedsApproval
	// KindRetryable reports validation issues the retry controller may
	// address by targeted regeneration.
	KindRetryable
	// KindFatal terminates the task with a descriptive reason.
	KindFatal
)

// StageResult is the outcome of one stage invocation.
type StageResult struct {
	Kind   ResultKind
	Patch  store.Patch
	Gate   models.Stage
	Issues []models.ValidationIssue
	Reason string
}

// StageFunc is the contract every pipeline stage implements. The task is a
// private copy; stages communicate changes exclusively through the returned
// patch, never by mutating the argument.
type StageFunc func(ctx context.Context, task *models.Task) StageResult

// Advance moves the task forward, committing the given patch.
func Advance(patch store.Patch) StageResult {
	return StageResult{Kind: KindAdvance, Patch: patch}
}

// NeedsApproval suspends the task at the named checkpoint. The proposal is
// committed with the pause so readers can inspect it, and stays editable in
// the checkpoint until the approval call resolves it.
func NeedsApproval(gate models.Stage, proposal store.Patch) StageResult {
	return StageResult{Kind: KindNeedsApproval, Gate: gate, Patch: proposal}
}

// Retryable reports file-level validation issues.
func Retryable(issues []models.ValidationIssue) StageResult {
	return StageResult{Kind: KindRetryable, Issues: issues}
}

// Fatal terminates the task.
func Fatal(reason string) StageResult {
	return StageResult{Kind: KindFatal, Reason: reason}
}

// FatalWith terminates the task and commits the patch alongside the failure,
// so a stage can persist findings (the gatekeeper's verdict) with its
// rejection.
func FatalWith(reason string, patch store.Patch) StageResult {
	return StageResult{Kind: KindFatal, Reason: reason, Patch: patch}
}

// Upstream converts a collaborator error into a fatal result, per the
// taxonomy: collaborator faults are not content-quality issues and are never
// retried.
func Upstream(stage models.Stage, err error) StageResult {
	return Fatal(fmt.Sprintf("%s: %v: %v", stage, ErrUpstreamFailure, err))
}
