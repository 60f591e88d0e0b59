// Package models defines the shared data types for build tasks: the Task
// lifecycle record, the Blueprint produced by the design stage, and the
// Snapshot projections published to progress subscribers.
package models

import "time"

// Status represents the lifecycle state of a build task.
type Status string

const (
	StatusQueued           Status = "queued"
	StatusRunning          Status = "running"
	StatusWaitingApproval  Status = "waiting_approval"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Stage identifies one unit of pipeline work.
type Stage string

const (
	StageGatekeeper         Stage = "gatekeeper"
	StageArchitect          Stage = "architect"
	StageFeatureApproval    Stage = "feature_approval"
	StageStructurer         Stage = "structurer"
	StageTechstackApproval  Stage = "techstack_approval"
	StageBuilder            Stage = "builder"
	StageSyntaxGuard        Stage = "syntax_guard"
	StageAuditor            Stage = "auditor"
	StageDependencyResolver Stage = "dependency_analyzer"
	StagePackager           Stage = "packager"
)

// Classification is the gatekeeper's verdict on a build request.
type Classification string

const (
	ClassificationHomework   Classification = "homework"
	ClassificationProduction Classification = "production"
	ClassificationMalicious  Classification = "malicious"
)

// FeaturePriority distinguishes must-have features from nice-to-haves.
type FeaturePriority string

const (
	PriorityCore        FeaturePriority = "core"
	PriorityEnhancement FeaturePriority = "enhancement"
)

// Feature is one planned project capability, subject to user approval.
type Feature struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Priority    FeaturePriority `json:"priority"`
	Benefit     string          `json:"benefit,omitempty"`
}

// DesignSpecs holds the visual design decisions proposed by the architect.
type DesignSpecs struct {
	ColorScheme string `json:"color_scheme,omitempty"`
	Typography  string `json:"typography,omitempty"`
	Layout      string `json:"layout,omitempty"`
	Animations  string `json:"animations,omitempty"`
}

// FileSpec describes one file the builder must generate.
type FileSpec struct {
	Name    string `json:"name"`
	Purpose string `json:"purpose"`
	Type    string `json:"type"`
}

// Asset is an external dependency (typically a CDN link) the generated
// project relies on.
type Asset struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Blueprint is the structured design output proposed by the architect and
// refined through the approval checkpoints.
type Blueprint struct {
	Classification  Classification `json:"classification,omitempty"`
	Reasoning       string         `json:"reasoning,omitempty"`
	ProjectFeatures []Feature      `json:"project_features,omitempty"`
	DesignSpecs     *DesignSpecs   `json:"design_specs,omitempty"`
	TechStack       string         `json:"tech_stack,omitempty"`
	FileStructure   []FileSpec     `json:"file_structure,omitempty"`
	AssetManifest   []Asset        `json:"asset_manifest,omitempty"`
}

// ValidationIssue is a single file-level problem reported by a validator.
type ValidationIssue struct {
	File  string `json:"file"`
	Issue string `json:"issue"`
}

// Task is the full lifetime record of one build request.
type Task struct {
	ID           string    `json:"id"`
	UserQuery    string    `json:"user_query"`
	ReferenceURL string    `json:"reference_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`

	Status       Status `json:"status"`
	CurrentStage Stage  `json:"current_stage,omitempty"`

	Blueprint Blueprint `json:"blueprint"`

	// UserRequirements accumulates free-text notes supplied with approvals.
	UserRequirements string `json:"user_requirements,omitempty"`

	// FileContents maps file name to generated content. Absent until the
	// builder stage runs.
	FileContents map[string]string `json:"file_contents,omitempty"`

	// RetryCounts tracks validation retry attempts per retried stage.
	RetryCounts map[Stage]int `json:"retry_counts,omitempty"`

	// ValidationReport is the issue list from the most recent validation
	// pass. Non-empty on entry to a retry round; the builder narrows its
	// regeneration scope to exactly these files.
	ValidationReport []ValidationIssue `json:"validation_report,omitempty"`

	// ArtifactLocation is set only when Status is completed.
	ArtifactLocation string `json:"artifact_location,omitempty"`

	// Error is the terminal failure reason, set only when Status is failed.
	Error string `json:"error,omitempty"`
}

// Clone returns a deep copy of the task so callers can hand state to stage
// functions without exposing store internals to mutation.
func (t *Task) Clone() *Task {
	c := *t
	c.Blueprint = cloneBlueprint(t.Blueprint)
	if t.FileContents != nil {
		c.FileContents = make(map[string]string, len(t.FileContents))
		for k, v := range t.FileContents {
			c.FileContents[k] = v
		}
	}
	if t.RetryCounts != nil {
		c.RetryCounts = make(map[Stage]int, len(t.RetryCounts))
		for k, v := range t.RetryCounts {
			c.RetryCounts[k] = v
		}
	}
	c.ValidationReport = cloneSlice(t.ValidationReport)
	return &c
}

func cloneBlueprint(b Blueprint) Blueprint {
	c := b
	c.ProjectFeatures = cloneSlice(b.ProjectFeatures)
	c.FileStructure = cloneSlice(b.FileStructure)
	c.AssetManifest = cloneSlice(b.AssetManifest)
	if b.DesignSpecs != nil {
		ds := *b.DesignSpecs
		c.DesignSpecs = &ds
	}
	return c
}

// cloneSlice copies a slice while preserving the nil versus empty
// distinction, so a committed empty report reads back as empty, not nil.
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	c := make([]T, len(s))
	copy(c, s)
	return c
}

// TotalRetries sums attempts across all retried stages. Syntax and semantic
// validation share one budget per task.
func (t *Task) TotalRetries() int {
	n := 0
	for _, v := range t.RetryCounts {
		n += v
	}
	return n
}
