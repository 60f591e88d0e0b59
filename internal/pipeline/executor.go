package pipeline

import (
	"context"
	"log/slog"

	"github.com/sitesmith/sitesmith/internal/models"
	"github.com/sitesmith/sitesmith/internal/store"
	"github.com/sitesmith/sitesmith/internal/utils"
)

// Executor drives a task through the stage graph. Each task is advanced by
// at most one executor goroutine at a time: one is scheduled at creation and
// one per checkpoint resolution, and a run always ends parked, terminal, or
// at a commit from which the next run re-derives its position. The executor
// never holds a store lock while a stage function runs — it reads state,
// releases, invokes the stage, then commits the result.
type Executor struct {
	store    *store.Store
	registry *Registry
	retry    *RetryController
	gate     *Gate

	// baseCtx outlives individual HTTP requests: a client disconnect must
	// not cancel an in-flight build.
	baseCtx context.Context
}

// NewExecutor wires the executor. The gate's resume callback must be set to
// this executor's Schedule by the caller (the two reference each other).
func NewExecutor(ctx context.Context, st *store.Store, reg *Registry, rc *RetryController) *Executor {
	return &Executor{
		store:    st,
		registry: reg,
		retry:    rc,
		baseCtx:  ctx,
	}
}

// SetGate attaches the checkpoint gate after construction.
func (e *Executor) SetGate(g *Gate) {
	e.gate = g
}

// Schedule runs the task's pipeline on a new goroutine.
func (e *Executor) Schedule(id string) {
	go e.Run(e.baseCtx, id)
}

// Run advances the task until it parks at a checkpoint, reaches a terminal
// state, or runs out of stages. It is restart-safe: position is re-derived
// from the last committed status/current_stage, never from memory.
func (e *Executor) Run(ctx context.Context, id string) {
	task, err := e.store.Get(id)
	if err != nil {
		slog.Warn("executor scheduled for unknown task", "task_id", id)
		return
	}

	stage := e.nextStage(task)

	for stage != "" {
		fn, ok := e.registry.Func(stage)
		if !ok {
			e.fail(id, stage, "no stage function registered for "+string(stage), store.Patch{})
			return
		}

		slog.Info("stage start", "task_id", id, "stage", stage)
		result := fn(ctx, task)

		switch result.Kind {
		case KindAdvance:
			next := e.registry.Next(stage)
			patch := result.Patch
			patch.CurrentStage = utils.Ptr(stage)
			if next == "" {
				patch.Status = utils.Ptr(models.StatusCompleted)
			} else {
				patch.Status = utils.Ptr(models.StatusRunning)
			}
			task, err = e.store.Commit(id, patch)
			if err != nil {
				slog.Error("commit failed", "task_id", id, "stage", stage, "error", err)
				return
			}
			slog.Info("stage complete", "task_id", id, "stage", stage)
			stage = next

		case KindNeedsApproval:
			if err := e.gate.Open(id, result.Gate, result.Patch); err != nil {
				slog.Error("checkpoint open failed", "task_id", id, "stage", result.Gate, "error", err)
			}
			return

		case KindRetryable:
			target, ok := e.registry.RetryTarget(stage)
			if !ok {
				e.fail(id, stage, "stage "+string(stage)+" reported retryable issues but has no retry target", store.Patch{})
				return
			}
			decision := e.retry.Decide(task, stage)
			if !decision.Retry {
				patch := store.Patch{
					Status:           utils.Ptr(models.StatusFailed),
					CurrentStage:     utils.Ptr(stage),
					ValidationReport: result.Issues,
					Error:            utils.Ptr(decision.Reason),
				}
				if _, err := e.store.Commit(id, patch); err != nil {
					slog.Error("commit failed", "task_id", id, "stage", stage, "error", err)
				}
				slog.Warn("retry budget exhausted", "task_id", id, "stage", stage)
				return
			}
			patch := store.Patch{
				Status:           utils.Ptr(models.StatusRunning),
				CurrentStage:     utils.Ptr(stage),
				RetryCounts:      decision.RetryCounts,
				ValidationReport: result.Issues,
			}
			task, err = e.store.Commit(id, patch)
			if err != nil {
				slog.Error("commit failed", "task_id", id, "stage", stage, "error", err)
				return
			}
			slog.Info("retrying generation",
				"task_id", id,
				"validator", stage,
				"files", TargetFiles(result.Issues),
				"attempt", task.TotalRetries())
			stage = target

		case KindFatal:
			e.fail(id, stage, result.Reason, result.Patch)
			return
		}
	}
}

// nextStage derives the stage to enter from the last committed state alone,
// so a task can resume after a process restart with nothing but its record.
func (e *Executor) nextStage(t *models.Task) models.Stage {
	switch t.Status {
	case models.StatusQueued:
		return e.registry.First()
	case models.StatusRunning:
		if t.CurrentStage == "" {
			return e.registry.First()
		}
		// A pending validation report means we stopped mid-retry: route back
		// to the regeneration target instead of the validator's successor.
		if len(t.ValidationReport) > 0 {
			if target, ok := e.registry.RetryTarget(t.CurrentStage); ok {
				return target
			}
		}
		return e.registry.Next(t.CurrentStage)
	default:
		// waiting_approval resumes via the gate; terminal states never run.
		return ""
	}
}

func (e *Executor) fail(id string, stage models.Stage, reason string, patch store.Patch) {
	patch.Status = utils.Ptr(models.StatusFailed)
	patch.CurrentStage = utils.Ptr(stage)
	patch.Error = utils.Ptr(reason)
	if _, err := e.store.Commit(id, patch); err != nil {
		slog.Error("failure commit failed", "task_id", id, "stage", stage, "error", err)
		return
	}
	slog.Warn("task failed", "task_id", id, "stage", stage, "reason", reason)
}
