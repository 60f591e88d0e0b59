package stages

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/sitesmith/sitesmith/internal/llm"
	"github.com/sitesmith/sitesmith/internal/models"
	"github.com/sitesmith/sitesmith/internal/pipeline"
	"github.com/sitesmith/sitesmith/internal/store"
)

// manifestNames are the dependency files the resolver may synthesize.
var manifestNames = []string{"requirements.txt", "package.json"}

// ResolveDependencies synthesizes dependency manifests from the actual file
// contents. Synthesized files join both the file contents and the file
// structure in the same patch, so every generated file stays accounted for
// in the blueprint.
func (s *Stages) ResolveDependencies(ctx context.Context, task *models.Task) pipeline.StageResult {
	if len(task.FileContents) == 0 {
		return pipeline.Advance(store.Patch{})
	}

	out, err := s.client.Complete(ctx, llm.Request{
		Model:       s.cfg.AuditorModel,
		System:      dependencySystemPrompt,
		Prompt:      dependencyPrompt(task.Blueprint.TechStack, task.FileContents),
		Temperature: s.cfg.AuditorTemperature,
	})
	if err != nil {
		return pipeline.Upstream(models.StageDependencyResolver, err)
	}

	raw, err := llm.ExtractJSON(out)
	if err != nil {
		return pipeline.Upstream(models.StageDependencyResolver, err)
	}

	var manifests map[string]json.RawMessage
	if err := json.Unmarshal(raw, &manifests); err != nil {
		return pipeline.Upstream(models.StageDependencyResolver, err)
	}

	synthesized := make(map[string]string)
	for _, name := range manifestNames {
		body, ok := manifests[name]
		if !ok || string(body) == "null" {
			continue
		}

		var content string
		if err := json.Unmarshal(body, &content); err != nil {
			// package.json sometimes arrives as an object rather than a
			// string; re-serialize it.
			var obj map[string]any
			if err := json.Unmarshal(body, &obj); err != nil {
				continue
			}
			pretty, err := json.MarshalIndent(obj, "", "  ")
			if err != nil {
				continue
			}
			content = string(pretty)
		}
		if len(content) < 5 {
			continue
		}
		synthesized[name] = content
	}

	if len(synthesized) == 0 {
		slog.Info("no dependency manifests needed", "task_id", task.ID)
		return pipeline.Advance(store.Patch{})
	}

	contents := make(map[string]string, len(task.FileContents)+len(synthesized))
	for name, body := range task.FileContents {
		contents[name] = body
	}
	structure := append([]models.FileSpec(nil), task.Blueprint.FileStructure...)

	for _, name := range sortedKeys(synthesized) {
		contents[name] = synthesized[name]
		if !structureHas(structure, name) {
			structure = append(structure, models.FileSpec{
				Name:    name,
				Purpose: "Project dependency manifest",
				Type:    "manifest",
			})
		}
		slog.Info("dependency manifest synthesized", "task_id", task.ID, "file", name)
	}

	return pipeline.Advance(store.Patch{
		FileContents:  contents,
		FileStructure: structure,
	})
}

func structureHas(specs []models.FileSpec, name string) bool {
	for _, fs := range specs {
		if fs.Name == name {
			return true
		}
	}
	return false
}
