package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/sitesmith/sitesmith/internal/llm"
	"github.com/sitesmith/sitesmith/internal/models"
	"github.com/sitesmith/sitesmith/internal/pipeline"
	"github.com/sitesmith/sitesmith/internal/store"
	"github.com/sitesmith/sitesmith/internal/validation"
)

type reportDoc struct {
	Passed bool                     `json:"passed"`
	Issues []models.ValidationIssue `json:"issues"`
}

// SyntaxGuard validates cross-file wiring in two phases: deterministic
// scouts extract a metadata diagram and flag broken local references, then
// an LLM judge reviews the diagram for integration mismatches. It always
// re-checks the full file set, so a fix in one file cannot silently break
// another.
func (s *Stages) SyntaxGuard(ctx context.Context, task *models.Task) pipeline.StageResult {
	diagram := buildWiringDiagram(task.FileContents)
	issues := crossFileIssues(diagram, task.FileContents)

	// A single standalone HTML file has no connections for the judge to
	// verify.
	standalone := len(task.FileContents) == 1 && func() bool {
		for name := range task.FileContents {
			return ext(name) == "html" || ext(name) == "htm"
		}
		return false
	}()

	if !standalone {
		diagramJSON, err := json.MarshalIndent(diagram, "", "  ")
		if err != nil {
			return pipeline.Upstream(models.StageSyntaxGuard, err)
		}

		out, err := s.client.Complete(ctx, llm.Request{
			Model:       s.cfg.AuditorModel,
			System:      syntaxJudgeSystemPrompt,
			Prompt:      syntaxJudgePrompt(string(diagramJSON), task.Blueprint.ProjectFeatures, task.UserQuery),
			Temperature: s.cfg.AuditorTemperature,
		})
		if err != nil {
			return pipeline.Upstream(models.StageSyntaxGuard, err)
		}

		report, err := parseReport(out)
		if err != nil {
			return pipeline.Upstream(models.StageSyntaxGuard, err)
		}
		issues = append(issues, knownFileIssues(report.Issues, task.FileContents)...)
	}

	if len(issues) > 0 {
		slog.Warn("wiring validation failed", "task_id", task.ID, "issues", len(issues))
		return pipeline.Retryable(issues)
	}

	slog.Info("wiring validated", "task_id", task.ID, "files", len(task.FileContents))
	return pipeline.Advance(store.Patch{ValidationReport: []models.ValidationIssue{}})
}

// crossFileIssues runs the deterministic checks: local script/link targets
// must exist in the file set, and DOM id lookups must resolve to an id some
// HTML file defines.
func crossFileIssues(diagram map[string]fileWiring, files map[string]string) []models.ValidationIssue {
	definedIDs := make(map[string]bool)
	for _, w := range diagram {
		for _, id := range w.DefinedIDs {
			definedIDs[id] = true
		}
	}

	var issues []models.ValidationIssue
	for _, name := range sortedKeys(files) {
		w := diagram[name]

		for _, ref := range append(append([]string(nil), w.Scripts...), w.Links...) {
			if !isLocalRef(ref) {
				continue
			}
			if _, ok := files[path.Clean(strings.TrimPrefix(ref, "./"))]; !ok {
				issues = append(issues, models.ValidationIssue{
					File:  name,
					Issue: fmt.Sprintf("references %q, which is not part of the generated file set", ref),
				})
			}
		}

		for _, sel := range w.DOMSelectors {
			if !strings.HasPrefix(sel, "#") {
				continue // class and element selectors are judged by the LLM pass
			}
			id := strings.TrimPrefix(sel, "#")
			if strings.ContainsAny(id, " >[:,.") {
				continue // compound selector, not a plain id lookup
			}
			if !definedIDs[id] {
				issues = append(issues, models.ValidationIssue{
					File:  name,
					Issue: fmt.Sprintf("selects element id %q, which no HTML file defines", id),
				})
			}
		}
	}
	return issues
}

// parseReport extracts and schema-checks a validator report completion.
func parseReport(out string) (*reportDoc, error) {
	raw, err := llm.ExtractJSON(out)
	if err != nil {
		return nil, err
	}
	if errs := validation.ValidateReportBytes(raw); len(errs) > 0 {
		return nil, errors.New("report schema: " + strings.Join(errs, "; "))
	}
	var report reportDoc
	if err := decodeDoc(raw, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// knownFileIssues drops issues naming files outside the generated set; the
// builder cannot regenerate a file that does not exist.
func knownFileIssues(issues []models.ValidationIssue, files map[string]string) []models.ValidationIssue {
	var kept []models.ValidationIssue
	for _, is := range issues {
		if _, ok := files[is.File]; ok {
			kept = append(kept, is)
		} else {
			slog.Warn("dropping issue for unknown file", "file", is.File)
		}
	}
	return kept
}
