package stages

import (
	"context"
	"log/slog"

	"github.com/sitesmith/sitesmith/internal/llm"
	"github.com/sitesmith/sitesmith/internal/models"
	"github.com/sitesmith/sitesmith/internal/pipeline"
	"github.com/sitesmith/sitesmith/internal/store"
)

// Auditor reviews the full file set against the approved features: every
// core feature must be implemented and the files must be coherent with each
// other. It shares the retry budget with SyntaxGuard.
func (s *Stages) Auditor(ctx context.Context, task *models.Task) pipeline.StageResult {
	out, err := s.client.Complete(ctx, llm.Request{
		Model:       s.cfg.AuditorModel,
		System:      auditorSystemPrompt,
		Prompt:      auditorPrompt(task),
		Temperature: s.cfg.AuditorTemperature,
	})
	if err != nil {
		return pipeline.Upstream(models.StageAuditor, err)
	}

	report, err := parseReport(out)
	if err != nil {
		return pipeline.Upstream(models.StageAuditor, err)
	}

	issues := knownFileIssues(report.Issues, task.FileContents)
	if len(issues) > 0 {
		slog.Warn("semantic review failed", "task_id", task.ID, "issues", len(issues))
		return pipeline.Retryable(issues)
	}

	slog.Info("semantic review passed", "task_id", task.ID)
	return pipeline.Advance(store.Patch{ValidationReport: []models.ValidationIssue{}})
}
