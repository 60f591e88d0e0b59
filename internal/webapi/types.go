package webapi

import "github.com/sitesmith/sitesmith/internal/models"

// BuildRequest starts a new build task.
type BuildRequest struct {
	UserQuery    string `json:"user_query"`
	ReferenceURL string `json:"reference_url,omitempty"`
}

// BuildResponse acknowledges build creation.
type BuildResponse struct {
	TaskID  string        `json:"task_id"`
	Message string        `json:"message"`
	Status  models.Status `json:"status"`
}

// FeatureApprovalRequest resolves the feature approval checkpoint. The
// approved fields override the architect's proposal; user requirements are
// free-text notes carried into generation.
type FeatureApprovalRequest struct {
	ApprovedFeatures    []models.Feature    `json:"approved_features"`
	ApprovedDesignSpecs *models.DesignSpecs `json:"approved_design_specs"`
	UserRequirements    string              `json:"user_requirements,omitempty"`
}

// TechStackApprovalRequest resolves the tech stack approval checkpoint.
type TechStackApprovalRequest struct {
	ApprovedTechStack     string            `json:"approved_tech_stack"`
	ApprovedFileStructure []models.FileSpec `json:"approved_file_structure"`
	ApprovedAssetManifest []models.Asset    `json:"approved_asset_manifest"`
	UserRequirements      string            `json:"user_requirements,omitempty"`
}

// GenerateStructureRequest asks for a fresh file structure on a different
// tech stack while the tech stack checkpoint is still open.
type GenerateStructureRequest struct {
	TechStack string `json:"tech_stack"`
}

// GenerateStructureResponse carries the regenerated structure proposal.
type GenerateStructureResponse struct {
	FileStructure []models.FileSpec `json:"file_structure"`
	Message       string            `json:"message"`
}

// ApprovalResponse acknowledges a resolved checkpoint.
type ApprovalResponse struct {
	TaskID    string        `json:"task_id"`
	Message   string        `json:"message"`
	Status    models.Status `json:"status"`
	NextStage models.Stage  `json:"next_stage"`
}

// StatusResponse is the full poll-friendly view of a task.
type StatusResponse struct {
	TaskID       string        `json:"task_id"`
	Status       models.Status `json:"status"`
	CurrentStage models.Stage  `json:"current_stage,omitempty"`
	IsComplete   bool          `json:"is_complete"`

	Classification  models.Classification `json:"classification,omitempty"`
	Reasoning       string                `json:"reasoning,omitempty"`
	ProjectFeatures []models.Feature      `json:"project_features,omitempty"`
	DesignSpecs     *models.DesignSpecs   `json:"design_specs,omitempty"`
	TechStack       string                `json:"tech_stack,omitempty"`
	FileStructure   []models.FileSpec     `json:"file_structure,omitempty"`
	AssetManifest   []models.Asset        `json:"asset_manifest,omitempty"`

	WaitingForApproval bool         `json:"waiting_for_approval"`
	ApprovalStage      models.Stage `json:"approval_stage,omitempty"`

	ArtifactLocation string `json:"artifact_location,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
