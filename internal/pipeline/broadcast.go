package pipeline

import (
	"log/slog"
	"sync"

	"github.com/sitesmith/sitesmith/internal/models"
	"github.com/sitesmith/sitesmith/internal/store"
)

// subscriberBuffer bounds the per-subscriber channel. A consumer that falls
// this far behind is evicted (its channel closed) rather than allowed to
// stall commits or receive reordered snapshots.
const subscriberBuffer = 256

// Broadcaster publishes task snapshots to live subscribers. Snapshots for a
// task are delivered in commit order; delivery is at-least-once from the
// point of subscription forward. When a task pauses for approval or reaches
// a terminal state the broadcaster closes its subscriptions after delivering
// that final snapshot — observers must re-subscribe or poll afterwards.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[string][]chan models.Snapshot
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string][]chan models.Snapshot)}
}

// Subscribe returns a channel of snapshots for the task, starting from the
// next published commit. The channel is closed after a pause or terminal
// snapshot, or when the subscriber is evicted for falling behind.
func (b *Broadcaster) Subscribe(id string) <-chan models.Snapshot {
	ch := make(chan models.Snapshot, subscriberBuffer)
	b.mu.Lock()
	b.subs[id] = append(b.subs[id], ch)
	b.mu.Unlock()
	return ch
}

// Unsubscribe detaches the channel without closing the others. Safe to call
// after the broadcaster has already closed the channel.
func (b *Broadcaster) Unsubscribe(id string, ch <-chan models.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[id]
	for i, s := range subs {
		if s == ch {
			b.subs[id] = append(subs[:i], subs[i+1:]...)
			close(s)
			return
		}
	}
}

// Publish delivers the snapshot to every subscriber of the task, in the
// order Publish is called. It is invoked from the store's commit hook, under
// the task's commit lock, which is what guarantees delivery order equals
// commit order.
func (b *Broadcaster) Publish(id string, snap models.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[id]
	kept := subs[:0]
	for _, ch := range subs {
		select {
		case ch <- snap:
			kept = append(kept, ch)
		default:
			// Slow consumer: evict rather than block the commit path.
			slog.Warn("evicting slow progress subscriber", "task_id", id)
			close(ch)
		}
	}
	b.subs[id] = kept

	if snap.Final() {
		for _, ch := range b.subs[id] {
			close(ch)
		}
		delete(b.subs, id)
	}
}

// SnapshotFromCommit projects a committed transition into the partial-field
// snapshot published to subscribers. Blueprint fields appear only when the
// commit's patch changed them; node and status are always present.
func SnapshotFromCommit(task *models.Task, patch store.Patch, seq int64) models.Snapshot {
	snap := models.Snapshot{
		Seq:    seq,
		Node:   task.CurrentStage,
		Status: task.Status,
	}

	if patch.Classification != nil {
		snap.Classification = *patch.Classification
	}
	if patch.Reasoning != nil {
		snap.Reasoning = *patch.Reasoning
	}
	if patch.ProjectFeatures != nil {
		snap.ProjectFeatures = patch.ProjectFeatures
	}
	if patch.DesignSpecs != nil {
		snap.DesignSpecs = patch.DesignSpecs
	}
	if patch.TechStack != nil {
		snap.TechStack = *patch.TechStack
	}
	if patch.FileStructure != nil {
		snap.FileStructure = patch.FileStructure
	}
	if patch.AssetManifest != nil {
		snap.AssetManifest = patch.AssetManifest
	}

	switch task.Status {
	case models.StatusWaitingApproval:
		snap.WaitingForApproval = true
		snap.ApprovalStage = task.CurrentStage
	case models.StatusCompleted:
		snap.IsComplete = true
	case models.StatusFailed:
		snap.IsComplete = true
		snap.Error = task.Error
		snap.ErrorMessage = task.Error
	}

	return snap
}
