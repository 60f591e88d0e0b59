package pipeline

import (
	"fmt"

	"github.com/sitesmith/sitesmith/internal/models"
)

// RetryController bounds re-execution of the generate→validate subgraph.
// Syntax and semantic validation draw on one shared budget per task, so the
// total regeneration cost stays bounded regardless of which validator keeps
// failing.
type RetryController struct {
	MaxRetries int
}

// RetryDecision is the controller's verdict on a Retryable result.
type RetryDecision struct {
	// Retry is true when another regeneration round is allowed.
	Retry bool
	// RetryCounts is the updated per-stage attempt map to commit.
	RetryCounts map[models.Stage]int
	// Reason carries the terminal failure message when Retry is false.
	Reason string
}

// Decide inspects the task's spent budget. Within budget it increments the
// failing validator's attempt count; over budget it terminates the task.
// The issue list itself is committed as the validation report either way, so
// the builder can narrow regeneration to exactly the flagged files.
func (rc *RetryController) Decide(task *models.Task, validator models.Stage) RetryDecision {
	spent := task.TotalRetries()
	if spent >= rc.MaxRetries {
		return RetryDecision{
			Retry:  false,
			Reason: fmt.Sprintf("%v: validation failed after %d attempts", ErrRetryBudgetExhausted, spent+1),
		}
	}

	counts := make(map[models.Stage]int, len(task.RetryCounts)+1)
	for k, v := range task.RetryCounts {
		counts[k] = v
	}
	counts[validator]++

	return RetryDecision{Retry: true, RetryCounts: counts}
}

// TargetFiles extracts the distinct file names named by a validation report,
// preserving first-seen order. This is the targeted regeneration scope.
func TargetFiles(issues []models.ValidationIssue) []string {
	seen := make(map[string]bool, len(issues))
	var files []string
	for _, is := range issues {
		if is.File == "" || seen[is.File] {
			continue
		}
		seen[is.File] = true
		files = append(files, is.File)
	}
	return files
}
