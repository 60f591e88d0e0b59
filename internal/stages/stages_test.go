package stages

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesmith/sitesmith/internal/llm"
	"github.com/sitesmith/sitesmith/internal/models"
	"github.com/sitesmith/sitesmith/internal/pipeline"
)

func testConfig(outputDir string) Config {
	return Config{
		GatekeeperModel:    "gatekeeper-model",
		ArchitectModel:     "architect-model",
		BuilderModel:       "builder-model",
		AuditorModel:       "auditor-model",
		BuilderConcurrency: 1,
		OutputDir:          outputDir,
	}
}

func testTask() *models.Task {
	return &models.Task{
		ID:        "task-1",
		UserQuery: "Build me a portfolio site",
		Status:    models.StatusRunning,
		Blueprint: models.Blueprint{
			TechStack: "HTML + CSS + vanilla JS",
			ProjectFeatures: []models.Feature{
				{Name: "Hero", Description: "Landing banner", Priority: models.PriorityCore},
			},
			FileStructure: []models.FileSpec{
				{Name: "index.html", Purpose: "Entry page", Type: "html"},
				{Name: "app.js", Purpose: "Interactions", Type: "js"},
			},
		},
	}
}

func TestGatekeeper_HomeworkAdvances(t *testing.T) {
	client := llm.NewScriptedClient(`{
		"classification": "homework",
		"confidence": 0.95,
		"reasoning": "simple static site"
	}`)
	s := New(client, testConfig(t.TempDir()))

	res := s.Gatekeeper(context.Background(), testTask())

	require.Equal(t, pipeline.KindAdvance, res.Kind)
	require.NotNil(t, res.Patch.Classification)
	assert.Equal(t, models.ClassificationHomework, *res.Patch.Classification)
	require.NotNil(t, res.Patch.Reasoning)
	assert.Equal(t, "simple static site", *res.Patch.Reasoning)
}

func TestGatekeeper_RejectionIsFatalWithVerdict(t *testing.T) {
	client := llm.NewScriptedClient(`{
		"classification": "production",
		"confidence": 0.98,
		"reasoning": "needs real auth and payments",
		"refusal_message": "I cannot build production payment systems."
	}`)
	s := New(client, testConfig(t.TempDir()))

	res := s.Gatekeeper(context.Background(), testTask())

	require.Equal(t, pipeline.KindFatal, res.Kind)
	assert.Contains(t, res.Reason, pipeline.ErrScopeRejected.Error())
	assert.Contains(t, res.Reason, "payment systems")
	// The verdict is persisted alongside the failure.
	require.NotNil(t, res.Patch.Classification)
	assert.Equal(t, models.ClassificationProduction, *res.Patch.Classification)
}

func TestGatekeeper_SchemaViolationIsUpstream(t *testing.T) {
	client := llm.NewScriptedClient(`{"classification": "banana", "reasoning": "?"}`)
	s := New(client, testConfig(t.TempDir()))

	res := s.Gatekeeper(context.Background(), testTask())

	require.Equal(t, pipeline.KindFatal, res.Kind)
	assert.Contains(t, res.Reason, pipeline.ErrUpstreamFailure.Error())
}

func TestGatekeeper_ClientErrorIsUpstream(t *testing.T) {
	client := llm.NewScriptedClient()
	client.EnqueueError(errors.New("connection refused"))
	s := New(client, testConfig(t.TempDir()))

	res := s.Gatekeeper(context.Background(), testTask())

	require.Equal(t, pipeline.KindFatal, res.Kind)
	assert.Contains(t, res.Reason, pipeline.ErrUpstreamFailure.Error())
}

func TestArchitect_ProposesBlueprintAtCheckpoint(t *testing.T) {
	client := llm.NewScriptedClient("```json\n" + `{
		"reasoning": "single page with sections",
		"project_features": [
			{"name": "Hero", "description": "Landing banner", "priority": "core"},
			{"name": "Dark mode", "description": "Theme toggle", "priority": "enhancement"}
		],
		"design_specs": {"layout": "single column", "color_scheme": "navy", "typography": "Inter"},
		"tech_stack": "HTML + CSS + vanilla JS",
		"file_structure": [
			{"name": "index.html", "purpose": "Entry page", "type": "html"}
		],
		"asset_manifest": [
			{"name": "font-awesome", "url": "https://cdn.example.com/fa.css"}
		]
	}` + "\n```")
	s := New(client, testConfig(t.TempDir()))

	res := s.Architect(context.Background(), testTask())

	require.Equal(t, pipeline.KindNeedsApproval, res.Kind)
	assert.Equal(t, models.StageFeatureApproval, res.Gate)
	require.Len(t, res.Patch.ProjectFeatures, 2)
	assert.Equal(t, models.PriorityEnhancement, res.Patch.ProjectFeatures[1].Priority)
	require.NotNil(t, res.Patch.TechStack)
	assert.Equal(t, "HTML + CSS + vanilla JS", *res.Patch.TechStack)
	require.NotNil(t, res.Patch.DesignSpecs)
	assert.Equal(t, "navy", res.Patch.DesignSpecs.ColorScheme)
	require.Len(t, res.Patch.FileStructure, 1)
	require.Len(t, res.Patch.AssetManifest, 1)
}

func TestArchitect_MissingStructureIsUpstream(t *testing.T) {
	client := llm.NewScriptedClient(`{
		"project_features": [{"name": "Hero", "description": "Banner"}],
		"design_specs": {"layout": "l", "color_scheme": "c", "typography": "t"}
	}`)
	s := New(client, testConfig(t.TempDir()))

	res := s.Architect(context.Background(), testTask())

	require.Equal(t, pipeline.KindFatal, res.Kind)
	assert.Contains(t, res.Reason, pipeline.ErrUpstreamFailure.Error())
}

func TestStructurer_ProposesStructureAtCheckpoint(t *testing.T) {
	client := llm.NewScriptedClient(`{
		"tech_stack": "HTML + CSS + vanilla JS",
		"file_structure": [
			{"name": "index.html", "purpose": "Entry page", "type": "html"},
			{"name": "style.css", "purpose": "Styling", "type": "css"}
		],
		"asset_manifest": []
	}`)
	s := New(client, testConfig(t.TempDir()))

	res := s.Structurer(context.Background(), testTask())

	require.Equal(t, pipeline.KindNeedsApproval, res.Kind)
	assert.Equal(t, models.StageTechstackApproval, res.Gate)
	require.Len(t, res.Patch.FileStructure, 2)

	// The approved feature set travels in the prompt.
	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "Hero")
}

func TestBuilder_GeneratesEveryFile(t *testing.T) {
	client := llm.NewScriptedClient(
		"<!doctype html><div id=\"app\"></div>",
		"```js\nconsole.log('hi');\n```",
	)
	s := New(client, testConfig(t.TempDir()))

	res := s.Builder(context.Background(), testTask())

	require.Equal(t, pipeline.KindAdvance, res.Kind)
	require.Len(t, res.Patch.FileContents, 2)
	// Fences are stripped from generated code.
	assert.Equal(t, "console.log('hi');", res.Patch.FileContents["app.js"])
	// The consumed report is cleared in the same patch.
	require.NotNil(t, res.Patch.ValidationReport)
	assert.Empty(t, res.Patch.ValidationReport)
}

func TestBuilder_RetryNarrowsToFlaggedFiles(t *testing.T) {
	client := llm.NewScriptedClient("document.getElementById('app');")
	s := New(client, testConfig(t.TempDir()))

	task := testTask()
	task.FileContents = map[string]string{
		"index.html": "<!doctype html><div id=\"app\"></div>",
		"app.js":     "brokn(",
	}
	task.RetryCounts = map[models.Stage]int{models.StageSyntaxGuard: 1}
	task.ValidationReport = []models.ValidationIssue{
		{File: "app.js", Issue: "syntax error"},
	}

	res := s.Builder(context.Background(), task)

	require.Equal(t, pipeline.KindAdvance, res.Kind)
	// Only the flagged file was regenerated.
	require.Len(t, client.Calls(), 1)
	assert.Contains(t, client.Calls()[0].Prompt, "failed validation previously")
	// The passing file's contents survive untouched.
	assert.Equal(t, task.FileContents["index.html"], res.Patch.FileContents["index.html"])
	assert.Equal(t, "document.getElementById('app');", res.Patch.FileContents["app.js"])
}

func TestSyntaxGuard_DeterministicIssueTriggersRetry(t *testing.T) {
	client := llm.NewScriptedClient(`{"passed": true, "issues": []}`)
	s := New(client, testConfig(t.TempDir()))

	task := testTask()
	task.FileContents = map[string]string{
		"index.html": `<!doctype html><script src="app.js"></script><div id="app"></div>`,
		"app.js":     `document.getElementById('missing');`,
	}

	res := s.SyntaxGuard(context.Background(), task)

	require.Equal(t, pipeline.KindRetryable, res.Kind)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "app.js", res.Issues[0].File)
	assert.Contains(t, res.Issues[0].Issue, "missing")
}

func TestSyntaxGuard_JudgeIssuesTriggerRetry(t *testing.T) {
	client := llm.NewScriptedClient(`{
		"passed": false,
		"issues": [
			{"file": "app.js", "issue": "calls renderGallery which no file defines"},
			{"file": "ghost.js", "issue": "issue for a file that does not exist"}
		]
	}`)
	s := New(client, testConfig(t.TempDir()))

	task := testTask()
	task.FileContents = map[string]string{
		"index.html": `<!doctype html><script src="app.js"></script><div id="app"></div>`,
		"app.js":     `document.getElementById('app');`,
	}

	res := s.SyntaxGuard(context.Background(), task)

	require.Equal(t, pipeline.KindRetryable, res.Kind)
	// Issues for files outside the generated set are dropped.
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "app.js", res.Issues[0].File)
}

func TestSyntaxGuard_StandaloneHTMLSkipsJudge(t *testing.T) {
	client := llm.NewScriptedClient()
	s := New(client, testConfig(t.TempDir()))

	task := testTask()
	task.FileContents = map[string]string{
		"index.html": `<!doctype html><div id="app"></div>`,
	}

	res := s.SyntaxGuard(context.Background(), task)

	require.Equal(t, pipeline.KindAdvance, res.Kind)
	assert.Empty(t, client.Calls())
	// A passing validation clears the report.
	require.NotNil(t, res.Patch.ValidationReport)
	assert.Empty(t, res.Patch.ValidationReport)
}

func TestAuditor_PassAdvances(t *testing.T) {
	client := llm.NewScriptedClient(`{"passed": true, "issues": []}`)
	s := New(client, testConfig(t.TempDir()))

	task := testTask()
	task.FileContents = map[string]string{"index.html": "<!doctype html>"}

	res := s.Auditor(context.Background(), task)

	require.Equal(t, pipeline.KindAdvance, res.Kind)
	require.NotNil(t, res.Patch.ValidationReport)
	assert.Empty(t, res.Patch.ValidationReport)
}

func TestAuditor_FindingsAreRetryable(t *testing.T) {
	client := llm.NewScriptedClient(`{
		"passed": false,
		"issues": [{"file": "index.html", "issue": "hero section is missing entirely"}]
	}`)
	s := New(client, testConfig(t.TempDir()))

	task := testTask()
	task.FileContents = map[string]string{"index.html": "<!doctype html>"}

	res := s.Auditor(context.Background(), task)

	require.Equal(t, pipeline.KindRetryable, res.Kind)
	require.Len(t, res.Issues, 1)
	assert.Contains(t, res.Issues[0].Issue, "hero")
}

func TestResolveDependencies_SynthesizesManifests(t *testing.T) {
	client := llm.NewScriptedClient(`{
		"requirements.txt": "flask>=3.0.0\ngunicorn>=21.2.0",
		"package.json": null
	}`)
	s := New(client, testConfig(t.TempDir()))

	task := testTask()
	task.FileContents = map[string]string{"app.py": "import flask"}
	task.Blueprint.FileStructure = []models.FileSpec{
		{Name: "app.py", Purpose: "Server", Type: "py"},
	}

	res := s.ResolveDependencies(context.Background(), task)

	require.Equal(t, pipeline.KindAdvance, res.Kind)
	assert.Contains(t, res.Patch.FileContents, "requirements.txt")
	assert.NotContains(t, res.Patch.FileContents, "package.json")
	// The manifest also joins the file structure in the same patch.
	require.Len(t, res.Patch.FileStructure, 2)
	assert.Equal(t, "requirements.txt", res.Patch.FileStructure[1].Name)
}

func TestResolveDependencies_ObjectPackageJSON(t *testing.T) {
	client := llm.NewScriptedClient(`{
		"requirements.txt": null,
		"package.json": {"name": "demo", "dependencies": {"express": "^4.18.0"}}
	}`)
	s := New(client, testConfig(t.TempDir()))

	task := testTask()
	task.FileContents = map[string]string{"index.js": "const express = require('express');"}

	res := s.ResolveDependencies(context.Background(), task)

	require.Equal(t, pipeline.KindAdvance, res.Kind)
	require.Contains(t, res.Patch.FileContents, "package.json")
	assert.Contains(t, res.Patch.FileContents["package.json"], "express")
}

func TestResolveDependencies_NoneNeeded(t *testing.T) {
	client := llm.NewScriptedClient(`{"requirements.txt": null, "package.json": null}`)
	s := New(client, testConfig(t.TempDir()))

	task := testTask()
	task.FileContents = map[string]string{"index.html": "<!doctype html>"}

	res := s.ResolveDependencies(context.Background(), task)

	require.Equal(t, pipeline.KindAdvance, res.Kind)
	assert.Nil(t, res.Patch.FileContents)
	assert.Nil(t, res.Patch.FileStructure)
}

func TestPackage_WritesArtifactAndReadme(t *testing.T) {
	outDir := t.TempDir()
	s := New(llm.NewScriptedClient(), testConfig(outDir))

	task := testTask()
	task.FileContents = map[string]string{
		"index.html": "<!doctype html>",
		"app.js":     "console.log('hi');",
	}

	res := s.Package(context.Background(), task)

	require.Equal(t, pipeline.KindAdvance, res.Kind)
	require.NotNil(t, res.Patch.ArtifactLocation)
	assert.Equal(t, filepath.Join(outDir, "project_task-1.zip"), *res.Patch.ArtifactLocation)

	_, err := os.Stat(*res.Patch.ArtifactLocation)
	require.NoError(t, err)

	readme := res.Patch.FileContents["README.md"]
	assert.Contains(t, readme, "portfolio site")
	assert.Contains(t, readme, "Hero")
	assert.Contains(t, readme, "Open `index.html` in a browser.")
}

func TestRegistry_WiresFullGraph(t *testing.T) {
	s := New(llm.NewScriptedClient(), testConfig(t.TempDir()))
	reg := s.Registry()

	assert.Equal(t, models.StageGatekeeper, reg.First())

	order := []models.Stage{
		models.StageGatekeeper,
		models.StageArchitect,
		models.StageFeatureApproval,
		models.StageStructurer,
		models.StageTechstackApproval,
		models.StageBuilder,
		models.StageSyntaxGuard,
		models.StageAuditor,
		models.StageDependencyResolver,
		models.StagePackager,
	}
	for i := 0; i < len(order)-1; i++ {
		assert.Equal(t, order[i+1], reg.Next(order[i]), "successor of %s", order[i])
	}
	assert.Equal(t, models.Stage(""), reg.Next(models.StagePackager))

	target, ok := reg.RetryTarget(models.StageSyntaxGuard)
	require.True(t, ok)
	assert.Equal(t, models.StageBuilder, target)
	target, ok = reg.RetryTarget(models.StageAuditor)
	require.True(t, ok)
	assert.Equal(t, models.StageBuilder, target)

	// Pauses have no stage function of their own.
	_, ok = reg.Func(models.StageFeatureApproval)
	assert.False(t, ok)
	_, ok = reg.Func(models.StageTechstackApproval)
	assert.False(t, ok)
}
