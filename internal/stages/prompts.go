package stages

import (
	"fmt"
	"strings"

	"github.com/sitesmith/sitesmith/internal/models"
)

const gatekeeperSystemPrompt = `You are a strict scope classifier for an AI website builder.

Classify the user query into exactly one category:
- "homework": small or medium front-end projects (landing pages, portfolios, calculators, todo apps, static clones, CDN-based React demos)
- "production": systems needing deployment, authentication, databases, payment processing, or scalable backends
- "malicious": harmful requests (exploits, malware, phishing kits, scraping for illegal purposes)

Only "homework" requests proceed. Respond with JSON only:
{
  "classification": "homework" | "production" | "malicious",
  "confidence": 0.0-1.0,
  "reasoning": "brief explanation",
  "refusal_message": "set only for production or malicious"
}`

const architectSystemPrompt = `You are a senior web architect. Given a project request, produce a complete
build blueprint as JSON only, with these keys:
- "reasoning": one paragraph on the overall approach
- "project_features": array of {"name", "description", "priority" ("core" or "enhancement"), "benefit"}
- "design_specs": {"layout", "color_scheme", "typography", "animations"}
- "tech_stack": a single string naming the framework/approach
- "file_structure": array of {"name", "purpose", "type"} for every file to generate
- "asset_manifest": array of {"name", "url"} for CDN dependencies

Keep the file set small and buildable. No explanatory text outside the JSON.`

const structurerSystemPrompt = `You are a senior web architect refining a project's file layout. Given the
approved feature set and a tech stack, output JSON only:
{
  "tech_stack": "the stack, echoed or corrected",
  "file_structure": [{"name", "purpose", "type"}],
  "asset_manifest": [{"name", "url"}]
}
Every approved feature must be attributable to at least one file. No text outside the JSON.`

const builderSystemPrompt = `You are an expert web developer. Generate the COMPLETE contents of exactly one
file. Output only raw file content: no markdown fences, no commentary, no
placeholders or elided sections. The code must be immediately runnable and
consistent with the other files described in the structure.`

const syntaxJudgeSystemPrompt = `You are a code integration inspector. You receive a wiring diagram: per-file
metadata listing ids, classes, function definitions, and cross-file references
extracted from a generated project. Find mismatches: references to ids,
functions, classes, or files that are not defined anywhere. Respond with JSON
only:
{"passed": true|false, "issues": [{"file": "name", "issue": "description"}]}
Report an empty issues array when the wiring is consistent.`

const auditorSystemPrompt = `You are a meticulous code reviewer. You receive a project's full file set and
its approved feature list. Verify every core feature is actually implemented
and the files are semantically coherent. Ignore styling taste. Respond with
JSON only:
{"passed": true|false, "issues": [{"file": "name", "issue": "description"}]}
Report an empty issues array when the project satisfies the features.`

const dependencySystemPrompt = `You are a dependency manager. Read the project source files and generate the
exact dependency manifests needed, based only on imports and requires that
actually appear in the code. For Python backends emit "requirements.txt"; for
Node backends emit "package.json" (with a start script). Pure HTML/CSS/JS
front-ends need neither. Respond with JSON only, mapping each manifest
filename to its full content, or to null when not needed:
{"requirements.txt": "...", "package.json": null}`

func gatekeeperPrompt(userQuery string) string {
	return "Classify this request:\n\n" + userQuery
}

func architectPrompt(userQuery, referenceURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project request: %s\n", userQuery)
	if referenceURL != "" {
		fmt.Fprintf(&b, "Reference site to emulate: %s\n", referenceURL)
	}
	b.WriteString("\nProduce the blueprint JSON.")
	return b.String()
}

func structurerPrompt(userQuery string, features []models.Feature, techStack, userRequirements string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project request: %s\n\n", userQuery)
	b.WriteString("Approved features:\n")
	writeFeatures(&b, features)
	if techStack != "" {
		fmt.Fprintf(&b, "\nTech stack: %s\n", techStack)
	}
	if userRequirements != "" {
		fmt.Fprintf(&b, "\nAdditional user requirements: %s\n", userRequirements)
	}
	b.WriteString("\nProduce the file structure JSON.")
	return b.String()
}

func builderPrompt(task *models.Task, spec models.FileSpec, priorIssues []models.ValidationIssue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project request: %s\n\n", task.UserQuery)
	fmt.Fprintf(&b, "Generate the file %q (%s): %s\n\n", spec.Name, spec.Type, spec.Purpose)
	fmt.Fprintf(&b, "Tech stack: %s\n\n", task.Blueprint.TechStack)

	b.WriteString("Approved features:\n")
	writeFeatures(&b, task.Blueprint.ProjectFeatures)

	if ds := task.Blueprint.DesignSpecs; ds != nil {
		b.WriteString("\nDesign specs:\n")
		if ds.Layout != "" {
			fmt.Fprintf(&b, "- layout: %s\n", ds.Layout)
		}
		if ds.ColorScheme != "" {
			fmt.Fprintf(&b, "- color scheme: %s\n", ds.ColorScheme)
		}
		if ds.Typography != "" {
			fmt.Fprintf(&b, "- typography: %s\n", ds.Typography)
		}
		if ds.Animations != "" {
			fmt.Fprintf(&b, "- animations: %s\n", ds.Animations)
		}
	}

	b.WriteString("\nFull project structure for context:\n")
	for _, fs := range task.Blueprint.FileStructure {
		fmt.Fprintf(&b, "- %s (%s): %s\n", fs.Name, fs.Type, fs.Purpose)
	}

	if len(task.Blueprint.AssetManifest) > 0 {
		b.WriteString("\nCDN assets available:\n")
		for _, a := range task.Blueprint.AssetManifest {
			fmt.Fprintf(&b, "- %s: %s\n", a.Name, a.URL)
		}
	}

	if task.UserRequirements != "" {
		fmt.Fprintf(&b, "\nUser requirements: %s\n", task.UserRequirements)
	}

	if len(priorIssues) > 0 {
		b.WriteString("\nThis file failed validation previously. Fix these issues:\n")
		for _, is := range priorIssues {
			if is.File == spec.Name {
				fmt.Fprintf(&b, "- %s\n", is.Issue)
			}
		}
	}

	return b.String()
}

func syntaxJudgePrompt(diagram string, features []models.Feature, userQuery string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project request: %s\n\n", userQuery)
	b.WriteString("Approved features:\n")
	writeFeatures(&b, features)
	fmt.Fprintf(&b, "\nWiring diagram:\n%s\n\nReport integration issues as JSON.", diagram)
	return b.String()
}

func auditorPrompt(task *models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project request: %s\n\n", task.UserQuery)
	b.WriteString("Approved features:\n")
	writeFeatures(&b, task.Blueprint.ProjectFeatures)
	b.WriteString("\nProject files:\n")
	writeFileContext(&b, task.FileContents)
	b.WriteString("\nReport semantic issues as JSON.")
	return b.String()
}

func dependencyPrompt(techStack string, files map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project tech stack: %s\n\n", techStack)
	b.WriteString("Source files:\n")
	writeFileContext(&b, files)
	b.WriteString("\nGenerate the dependency manifests as JSON.")
	return b.String()
}

func writeFeatures(b *strings.Builder, features []models.Feature) {
	for _, f := range features {
		priority := string(f.Priority)
		if priority == "" {
			priority = "core"
		}
		fmt.Fprintf(b, "- [%s] %s: %s\n", priority, f.Name, f.Description)
	}
}

// perFileContextLimit caps how much of each file lands in a review prompt so
// one oversized file cannot crowd out the rest of the project.
const perFileContextLimit = 15000

func writeFileContext(b *strings.Builder, files map[string]string) {
	for _, name := range sortedKeys(files) {
		content := files[name]
		if len(content) > perFileContextLimit {
			content = content[:perFileContextLimit]
		}
		fmt.Fprintf(b, "--- START OF FILE: %s ---\n%s\n--- END OF FILE: %s ---\n\n", name, content, name)
	}
}
