package stages

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sitesmith/sitesmith/internal/llm"
	"github.com/sitesmith/sitesmith/internal/models"
	"github.com/sitesmith/sitesmith/internal/pipeline"
	"github.com/sitesmith/sitesmith/internal/store"
)

// Builder generates content for every file in the approved structure. On a
// retry round (the task carries a validation report) it regenerates only the
// files the report names; everything that passed is kept as-is. Validators
// downstream always re-check the full set.
func (s *Stages) Builder(ctx context.Context, task *models.Task) pipeline.StageResult {
	specs := task.Blueprint.FileStructure
	retrying := len(task.ValidationReport) > 0

	if retrying {
		targets := make(map[string]bool)
		for _, f := range pipeline.TargetFiles(task.ValidationReport) {
			targets[f] = true
		}
		narrowed := make([]models.FileSpec, 0, len(targets))
		for _, spec := range specs {
			if targets[spec.Name] {
				narrowed = append(narrowed, spec)
			}
		}
		slog.Info("targeted regeneration",
			"task_id", task.ID,
			"files", len(narrowed),
			"skipped", len(specs)-len(narrowed))
		specs = narrowed
	}

	// Start from the previous round's contents so untouched files survive.
	contents := make(map[string]string, len(task.FileContents)+len(specs))
	for name, body := range task.FileContents {
		contents[name] = body
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BuilderConcurrency)

	for _, spec := range specs {
		g.Go(func() error {
			out, err := s.client.Complete(gctx, llm.Request{
				Model:       s.cfg.BuilderModel,
				System:      builderSystemPrompt,
				Prompt:      builderPrompt(task, spec, task.ValidationReport),
				Temperature: s.cfg.BuilderTemperature,
			})
			if err != nil {
				return err
			}

			code := llm.StripCodeFences(out)
			mu.Lock()
			contents[spec.Name] = code
			mu.Unlock()

			slog.Info("file generated", "task_id", task.ID, "file", spec.Name, "bytes", len(code))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return pipeline.Upstream(models.StageBuilder, err)
	}

	// The cleared report marks this retry round as consumed; a restart after
	// this commit proceeds to validation instead of regenerating again.
	return pipeline.Advance(store.Patch{
		FileContents:     contents,
		ValidationReport: []models.ValidationIssue{},
	})
}
