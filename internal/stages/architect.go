package stages

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/sitesmith/sitesmith/internal/llm"
	"github.com/sitesmith/sitesmith/internal/models"
	"github.com/sitesmith/sitesmith/internal/pipeline"
	"github.com/sitesmith/sitesmith/internal/store"
	"github.com/sitesmith/sitesmith/internal/utils"
	"github.com/sitesmith/sitesmith/internal/validation"
)

type blueprintDoc struct {
	Reasoning       string              `json:"reasoning"`
	ProjectFeatures []models.Feature    `json:"project_features"`
	DesignSpecs     *models.DesignSpecs `json:"design_specs"`
	TechStack       string              `json:"tech_stack"`
	FileStructure   []models.FileSpec   `json:"file_structure"`
	AssetManifest   []models.Asset      `json:"asset_manifest"`
}

// Architect designs the full blueprint and parks the task at the feature
// approval checkpoint, where the proposal awaits the user's edits.
func (s *Stages) Architect(ctx context.Context, task *models.Task) pipeline.StageResult {
	out, err := s.client.Complete(ctx, llm.Request{
		Model:       s.cfg.ArchitectModel,
		System:      architectSystemPrompt,
		Prompt:      architectPrompt(task.UserQuery, task.ReferenceURL),
		Temperature: s.cfg.ArchitectTemperature,
	})
	if err != nil {
		return pipeline.Upstream(models.StageArchitect, err)
	}

	raw, err := llm.ExtractJSON(out)
	if err != nil {
		return pipeline.Upstream(models.StageArchitect, err)
	}

	// The blueprint carries both the feature plan and the structure
	// proposal, so it must satisfy both schemas.
	errs := validation.ValidateBlueprintBytes(raw)
	errs = append(errs, validation.ValidateStructureBytes(raw)...)
	if len(errs) > 0 {
		return pipeline.Upstream(models.StageArchitect,
			errors.New("blueprint schema: "+strings.Join(errs, "; ")))
	}

	var bp blueprintDoc
	if err := decodeDoc(raw, &bp); err != nil {
		return pipeline.Upstream(models.StageArchitect, err)
	}

	slog.Info("blueprint designed",
		"task_id", task.ID,
		"tech_stack", bp.TechStack,
		"features", len(bp.ProjectFeatures),
		"files", len(bp.FileStructure))

	proposal := store.Patch{
		Reasoning:       utils.Ptr(bp.Reasoning),
		ProjectFeatures: bp.ProjectFeatures,
		DesignSpecs:     bp.DesignSpecs,
		TechStack:       utils.Ptr(bp.TechStack),
		FileStructure:   bp.FileStructure,
		AssetManifest:   bp.AssetManifest,
	}

	return pipeline.NeedsApproval(models.StageFeatureApproval, proposal)
}
