package stages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sitesmith/sitesmith/internal/llm"
	"github.com/sitesmith/sitesmith/internal/models"
	"github.com/sitesmith/sitesmith/internal/pipeline"
	"github.com/sitesmith/sitesmith/internal/store"
	"github.com/sitesmith/sitesmith/internal/utils"
	"github.com/sitesmith/sitesmith/internal/validation"
)

type verdict struct {
	Classification models.Classification `json:"classification"`
	Confidence     float64               `json:"confidence"`
	Reasoning      string                `json:"reasoning"`
	RefusalMessage string                `json:"refusal_message"`
}

// Gatekeeper classifies the request. Only homework-scope requests advance;
// production and malicious verdicts terminate the task with the verdict
// persisted alongside the refusal.
func (s *Stages) Gatekeeper(ctx context.Context, task *models.Task) pipeline.StageResult {
	out, err := s.client.Complete(ctx, llm.Request{
		Model:       s.cfg.GatekeeperModel,
		System:      gatekeeperSystemPrompt,
		Prompt:      gatekeeperPrompt(task.UserQuery),
		Temperature: s.cfg.GatekeeperTemperature,
	})
	if err != nil {
		return pipeline.Upstream(models.StageGatekeeper, err)
	}

	raw, err := llm.ExtractJSON(out)
	if err != nil {
		return pipeline.Upstream(models.StageGatekeeper, err)
	}
	if errs := validation.ValidateVerdictBytes(raw); len(errs) > 0 {
		return pipeline.Upstream(models.StageGatekeeper,
			errors.New("verdict schema: "+strings.Join(errs, "; ")))
	}

	var v verdict
	if err := decodeDoc(raw, &v); err != nil {
		return pipeline.Upstream(models.StageGatekeeper, err)
	}

	slog.Info("gatekeeper verdict",
		"task_id", task.ID,
		"classification", v.Classification,
		"confidence", v.Confidence)

	patch := store.Patch{
		Classification: utils.Ptr(v.Classification),
		Reasoning:      utils.Ptr(v.Reasoning),
	}

	if v.Classification != models.ClassificationHomework {
		msg := v.RefusalMessage
		if msg == "" {
			msg = "request is out of scope for this builder"
		}
		return pipeline.FatalWith(
			fmt.Sprintf("%v: %s", pipeline.ErrScopeRejected, msg), patch)
	}

	return pipeline.Advance(patch)
}
