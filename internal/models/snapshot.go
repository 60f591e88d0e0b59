package models

// Snapshot is an immutable, partial-field progress update published after a
// committed state transition. Fields that did not change in the commit are
// omitted; subscribers are expected to merge snapshots field-by-field rather
// than replace whole state.
type Snapshot struct {
	// Seq is the commit sequence number for the task, starting at 1.
	// Snapshots for a task are delivered in strictly increasing Seq order.
	Seq int64 `json:"seq"`

	Node   Stage  `json:"node,omitempty"`
	Status Status `json:"status,omitempty"`

	Classification  Classification `json:"classification,omitempty"`
	Reasoning       string         `json:"reasoning,omitempty"`
	ProjectFeatures []Feature      `json:"project_features,omitempty"`
	DesignSpecs     *DesignSpecs   `json:"design_specs,omitempty"`
	TechStack       string         `json:"tech_stack,omitempty"`
	FileStructure   []FileSpec     `json:"file_structure,omitempty"`
	AssetManifest   []Asset        `json:"asset_manifest,omitempty"`

	WaitingForApproval bool   `json:"waiting_for_approval,omitempty"`
	ApprovalStage      Stage  `json:"approval_stage,omitempty"`
	IsComplete         bool   `json:"is_complete,omitempty"`
	Error              string `json:"error,omitempty"`
	ErrorMessage       string `json:"error_message,omitempty"`
}

// Final reports whether this snapshot ends its subscription: the broadcaster
// closes subscriber channels after delivering a pause or terminal snapshot.
func (s Snapshot) Final() bool {
	return s.WaitingForApproval || s.IsComplete
}
