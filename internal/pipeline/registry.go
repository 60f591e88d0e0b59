package pipeline

import "github.com/sitesmith/sitesmith/internal/models"

// Registry maps stage identifiers to stage functions and declares the static
// successor map the executor walks. Adding a stage means registering a
// function and one routing rule; no other component changes.
type Registry struct {
	first       models.Stage
	funcs       map[models.Stage]StageFunc
	next        map[models.Stage]models.Stage
	retryTarget map[models.Stage]models.Stage
}

// NewRegistry creates an empty registry whose pipeline begins at first.
func NewRegistry(first models.Stage) *Registry {
	return &Registry{
		first:       first,
		funcs:       make(map[models.Stage]StageFunc),
		next:        make(map[models.Stage]models.Stage),
		retryTarget: make(map[models.Stage]models.Stage),
	}
}

// Register associates a stage function with its successor. An empty
// successor marks the final stage.
func (r *Registry) Register(stage models.Stage, fn StageFunc, next models.Stage) {
	r.funcs[stage] = fn
	r.next[stage] = next
}

// RegisterPause declares a checkpoint stage: it has no function of its own,
// only a successor the executor continues from after the checkpoint
// resolves.
func (r *Registry) RegisterPause(stage, next models.Stage) {
	r.next[stage] = next
}

// SetRetryTarget routes a validator stage's Retryable results back to the
// given regeneration stage.
func (r *Registry) SetRetryTarget(validator, target models.Stage) {
	r.retryTarget[validator] = target
}

// First returns the entry stage.
func (r *Registry) First() models.Stage {
	return r.first
}

// Func returns the stage function, if the stage has one.
func (r *Registry) Func(stage models.Stage) (StageFunc, bool) {
	fn, ok := r.funcs[stage]
	return fn, ok
}

// Next returns the successor of stage; empty when the stage is final or
// unknown.
func (r *Registry) Next(stage models.Stage) models.Stage {
	return r.next[stage]
}

// RetryTarget returns the regeneration stage for a validator, if declared.
func (r *Registry) RetryTarget(validator models.Stage) (models.Stage, bool) {
	t, ok := r.retryTarget[validator]
	return t, ok
}
