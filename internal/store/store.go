// Package store implements the task state store: the single mutation point
// for build task state. Commits for a given task id are serialized and
// applied in submission order; a read after a returned commit observes that
// commit. There is no global lock — tasks are independent.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sitesmith/sitesmith/internal/models"
)

// ErrTaskNotFound is returned when a task id does not match any stored task.
var ErrTaskNotFound = errors.New("task not found")

// Patch describes a structural merge against a task: scalar fields are
// overwritten when their pointer is non-nil, list and map fields are fully
// replaced when non-nil. Partial list edits are the caller's responsibility
// before committing.
type Patch struct {
	Status       *models.Status
	CurrentStage *models.Stage

	Classification  *models.Classification
	Reasoning       *string
	ProjectFeatures []models.Feature
	DesignSpecs     *models.DesignSpecs
	TechStack       *string
	FileStructure   []models.FileSpec
	AssetManifest   []models.Asset

	UserRequirements *string
	FileContents     map[string]string
	RetryCounts      map[models.Stage]int
	ValidationReport []models.ValidationIssue
	ArtifactLocation *string
	Error            *string
}

// CommitHook observes every applied commit. It is invoked while the task's
// commit lock is held, so invocation order equals commit order and the hook
// must not call back into the store for the same task.
type CommitHook func(task *models.Task, patch Patch, seq int64)

type entry struct {
	mu   sync.Mutex
	task *models.Task
	seq  int64
}

// Store holds all active tasks in memory, keyed by task id.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	hook    CommitHook
}

// New creates an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// OnCommit registers the commit hook. Must be called before the store is
// shared between goroutines.
func (s *Store) OnCommit(hook CommitHook) {
	s.hook = hook
}

// Create allocates a new queued task and returns a copy of it.
func (s *Store) Create(userQuery, referenceURL string) *models.Task {
	t := &models.Task{
		ID:           uuid.NewString(),
		UserQuery:    userQuery,
		ReferenceURL: referenceURL,
		CreatedAt:    time.Now().UTC(),
		Status:       models.StatusQueued,
	}

	s.mu.Lock()
	s.entries[t.ID] = &entry{task: t}
	s.mu.Unlock()

	return t.Clone()
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id string) (*models.Task, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.task.Clone(), nil
}

// Commit applies the patch to the task under its commit lock and returns the
// resulting state. Status and CurrentStage always travel in the same patch
// for stage transitions, so they are observed atomically.
func (s *Store) Commit(id string, patch Patch) (*models.Task, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	apply(e.task, patch)
	e.seq++

	out := e.task.Clone()
	if s.hook != nil {
		s.hook(out, patch, e.seq)
	}
	return out, nil
}

// Delete removes the task. Deleting an unknown id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrTaskNotFound
	}
	return e, nil
}

func apply(t *models.Task, p Patch) {
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.CurrentStage != nil {
		t.CurrentStage = *p.CurrentStage
	}
	if p.Classification != nil {
		t.Blueprint.Classification = *p.Classification
	}
	if p.Reasoning != nil {
		t.Blueprint.Reasoning = *p.Reasoning
	}
	if p.ProjectFeatures != nil {
		t.Blueprint.ProjectFeatures = p.ProjectFeatures
	}
	if p.DesignSpecs != nil {
		ds := *p.DesignSpecs
		t.Blueprint.DesignSpecs = &ds
	}
	if p.TechStack != nil {
		t.Blueprint.TechStack = *p.TechStack
	}
	if p.FileStructure != nil {
		t.Blueprint.FileStructure = p.FileStructure
	}
	if p.AssetManifest != nil {
		t.Blueprint.AssetManifest = p.AssetManifest
	}
	if p.UserRequirements != nil {
		t.UserRequirements = *p.UserRequirements
	}
	if p.FileContents != nil {
		t.FileContents = p.FileContents
	}
	if p.RetryCounts != nil {
		t.RetryCounts = p.RetryCounts
	}
	if p.ValidationReport != nil {
		t.ValidationReport = p.ValidationReport
	}
	if p.ArtifactLocation != nil {
		t.ArtifactLocation = *p.ArtifactLocation
	}
	if p.Error != nil {
		t.Error = *p.Error
	}
}
