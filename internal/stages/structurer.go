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

// StructureDoc is a refined file-structure proposal.
type StructureDoc struct {
	TechStack     string            `json:"tech_stack"`
	FileStructure []models.FileSpec `json:"file_structure"`
	AssetManifest []models.Asset    `json:"asset_manifest"`
}

// Structurer refines the file structure and asset manifest for the approved
// feature set, then parks the task at the tech stack approval checkpoint.
func (s *Stages) Structurer(ctx context.Context, task *models.Task) pipeline.StageResult {
	doc, err := s.RefineStructure(ctx, task, task.Blueprint.TechStack)
	if err != nil {
		return pipeline.Upstream(models.StageStructurer, err)
	}

	slog.Info("structure refined",
		"task_id", task.ID,
		"tech_stack", doc.TechStack,
		"files", len(doc.FileStructure))

	proposal := store.Patch{
		TechStack:     utils.Ptr(doc.TechStack),
		FileStructure: doc.FileStructure,
		AssetManifest: doc.AssetManifest,
	}

	return pipeline.NeedsApproval(models.StageTechstackApproval, proposal)
}

// RefineStructure asks the architect model for a file layout serving the
// task's approved features on the given tech stack. It performs no commits;
// the structure-regeneration endpoint calls it against an open checkpoint.
func (s *Stages) RefineStructure(ctx context.Context, task *models.Task, techStack string) (*StructureDoc, error) {
	out, err := s.client.Complete(ctx, llm.Request{
		Model:       s.cfg.ArchitectModel,
		System:      structurerSystemPrompt,
		Prompt:      structurerPrompt(task.UserQuery, task.Blueprint.ProjectFeatures, techStack, task.UserRequirements),
		Temperature: s.cfg.ArchitectTemperature,
	})
	if err != nil {
		return nil, err
	}

	raw, err := llm.ExtractJSON(out)
	if err != nil {
		return nil, err
	}
	if errs := validation.ValidateStructureBytes(raw); len(errs) > 0 {
		return nil, errors.New("structure schema: " + strings.Join(errs, "; "))
	}

	var doc StructureDoc
	if err := decodeDoc(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
