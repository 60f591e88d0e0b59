package stages

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/sitesmith/sitesmith/internal/archive"
	"github.com/sitesmith/sitesmith/internal/models"
	"github.com/sitesmith/sitesmith/internal/pipeline"
	"github.com/sitesmith/sitesmith/internal/store"
	"github.com/sitesmith/sitesmith/internal/utils"
)

// Package writes the final artifact: a README synthesized from the approved
// blueprint joins the file set, and the whole project is zipped into the
// output directory. The artifact location commit is the terminal commit.
func (s *Stages) Package(ctx context.Context, task *models.Task) pipeline.StageResult {
	contents := make(map[string]string, len(task.FileContents)+1)
	for name, body := range task.FileContents {
		contents[name] = body
	}

	readme := renderReadme(task)
	contents["README.md"] = readme

	structure := append([]models.FileSpec(nil), task.Blueprint.FileStructure...)
	if !structureHas(structure, "README.md") {
		structure = append(structure, models.FileSpec{
			Name:    "README.md",
			Purpose: "Project overview and run instructions",
			Type:    "markdown",
		})
	}

	artifact := filepath.Join(s.cfg.OutputDir, fmt.Sprintf("project_%s.zip", task.ID))
	if err := archive.Write(artifact, "project_"+task.ID, contents); err != nil {
		return pipeline.Upstream(models.StagePackager, err)
	}

	slog.Info("artifact packaged", "task_id", task.ID, "path", artifact, "files", len(contents))

	return pipeline.Advance(store.Patch{
		FileContents:     contents,
		FileStructure:    structure,
		ArtifactLocation: utils.Ptr(artifact),
	})
}

func renderReadme(task *models.Task) string {
	var b strings.Builder

	b.WriteString("# Generated Project\n\n")
	fmt.Fprintf(&b, "%s\n\n", task.UserQuery)

	if task.Blueprint.TechStack != "" {
		fmt.Fprintf(&b, "**Tech stack:** %s\n\n", task.Blueprint.TechStack)
	}

	if len(task.Blueprint.ProjectFeatures) > 0 {
		b.WriteString("## Features\n\n")
		for _, f := range task.Blueprint.ProjectFeatures {
			fmt.Fprintf(&b, "- **%s**: %s\n", f.Name, f.Description)
		}
		b.WriteString("\n")
	}

	if len(task.Blueprint.FileStructure) > 0 {
		b.WriteString("## Files\n\n")
		for _, fs := range task.Blueprint.FileStructure {
			fmt.Fprintf(&b, "- `%s`: %s\n", fs.Name, fs.Purpose)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Running\n\n")
	if _, ok := task.FileContents["requirements.txt"]; ok {
		b.WriteString("```\npip install -r requirements.txt\npython app.py\n```\n")
	} else if _, ok := task.FileContents["package.json"]; ok {
		b.WriteString("```\nnpm install\nnpm start\n```\n")
	} else {
		b.WriteString("Open `index.html` in a browser.\n")
	}

	return b.String()
}
