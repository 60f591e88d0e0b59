package pipeline

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/sitesmith/sitesmith/internal/models"
	"github.com/sitesmith/sitesmith/internal/store"
	"github.com/sitesmith/sitesmith/internal/utils"
)

// Checkpoint is a pending-approval marker attached to a task. At most one
// checkpoint is open per task at any time.
type Checkpoint struct {
	Stage models.Stage
	// Proposed is the stage's suggested patch. Resume edits override it
	// field-by-field when the checkpoint resolves.
	Proposed store.Patch
}

// Gate is the suspension/resumption primitive for human approval. Parking a
// task costs only its stored state — no goroutine blocks while an approval
// is pending, so an approval arriving hours later is fine.
type Gate struct {
	store  *store.Store
	resume func(id string)

	mu      sync.Mutex
	pending map[string]*Checkpoint
}

// NewGate creates a Gate over the given store. resume is invoked (on the
// caller's goroutine budget) after a successful resolution to re-schedule
// the executor for the task.
func NewGate(st *store.Store, resume func(id string)) *Gate {
	return &Gate{
		store:   st,
		resume:  resume,
		pending: make(map[string]*Checkpoint),
	}
}

// Open registers the checkpoint and commits the proposal fields together
// with the waiting_approval transition as one commit, in one critical
// section. Committing the proposal lets status and stream readers see the
// blueprint while the task is parked, and the single critical section means
// a racing Resolve can never observe the checkpoint before the pause commit
// lands.
func (g *Gate) Open(id string, stage models.Stage, proposal store.Patch) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pending[id] = &Checkpoint{Stage: stage, Proposed: proposal}

	patch := proposal
	patch.Status = utils.Ptr(models.StatusWaitingApproval)
	patch.CurrentStage = utils.Ptr(stage)

	_, err := g.store.Commit(id, patch)
	if err != nil {
		delete(g.pending, id)
		return err
	}

	slog.Info("checkpoint opened", "task_id", id, "stage", stage)
	return nil
}

// Pending returns the open checkpoint for the task, if any.
func (g *Gate) Pending(id string) (Checkpoint, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp, ok := g.pending[id]
	if !ok {
		return Checkpoint{}, false
	}
	return *cp, true
}

// UpdateProposal swaps fields of the still-open checkpoint's proposed patch
// without advancing the task. Safe to call repeatedly before resolution;
// committed task state is never touched.
func (g *Gate) UpdateProposal(id string, stage models.Stage, update store.Patch) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cp, ok := g.pending[id]
	if !ok {
		return ErrNoPendingCheckpoint
	}
	if cp.Stage != stage {
		return fmt.Errorf("%w: open checkpoint is %q, not %q", ErrCheckpointMismatch, cp.Stage, stage)
	}

	cp.Proposed = store.Merge(cp.Proposed, update)
	return nil
}

// Resolve clears the checkpoint, commits the proposal overlaid with the
// user's resume edits plus the running transition as one atomic commit, and
// re-schedules the executor. A stage mismatch or missing checkpoint is
// rejected synchronously with task state unchanged.
func (g *Gate) Resolve(id string, stage models.Stage, resumePayload store.Patch) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cp, ok := g.pending[id]
	if !ok {
		return ErrNoPendingCheckpoint
	}
	if cp.Stage != stage {
		return fmt.Errorf("%w: open checkpoint is %q, not %q", ErrCheckpointMismatch, cp.Stage, stage)
	}

	patch := store.Merge(cp.Proposed, resumePayload)
	patch.Status = utils.Ptr(models.StatusRunning)
	patch.CurrentStage = utils.Ptr(stage)

	if _, err := g.store.Commit(id, patch); err != nil {
		return err
	}
	delete(g.pending, id)

	slog.Info("checkpoint resolved", "task_id", id, "stage", stage)
	g.resume(id)
	return nil
}

// Drop discards any open checkpoint for the task, used when a task is
// deleted out from under a pending approval.
func (g *Gate) Drop(id string) {
	g.mu.Lock()
	delete(g.pending, id)
	g.mu.Unlock()
}
