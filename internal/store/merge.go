package store

// Merge overlays b onto a: any field b specifies wins, fields b leaves nil
// keep a's value. Used by the checkpoint gate to fold user resume edits over
// the stage's proposed patch before a single atomic commit.
func Merge(a, b Patch) Patch {
	out := a
	if b.Status != nil {
		out.Status = b.Status
	}
	if b.CurrentStage != nil {
		out.CurrentStage = b.CurrentStage
	}
	if b.Classification != nil {
		out.Classification = b.Classification
	}
	if b.Reasoning != nil {
		out.Reasoning = b.Reasoning
	}
	if b.ProjectFeatures != nil {
		out.ProjectFeatures = b.ProjectFeatures
	}
	if b.DesignSpecs != nil {
		out.DesignSpecs = b.DesignSpecs
	}
	if b.TechStack != nil {
		out.TechStack = b.TechStack
	}
	if b.FileStructure != nil {
		out.FileStructure = b.FileStructure
	}
	if b.AssetManifest != nil {
		out.AssetManifest = b.AssetManifest
	}
	if b.UserRequirements != nil {
		out.UserRequirements = b.UserRequirements
	}
	if b.FileContents != nil {
		out.FileContents = b.FileContents
	}
	if b.RetryCounts != nil {
		out.RetryCounts = b.RetryCounts
	}
	if b.ValidationReport != nil {
		out.ValidationReport = b.ValidationReport
	}
	if b.ArtifactLocation != nil {
		out.ArtifactLocation = b.ArtifactLocation
	}
	if b.Error != nil {
		out.Error = b.Error
	}
	return out
}
