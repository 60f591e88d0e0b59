package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesmith/sitesmith/internal/models"
	"github.com/sitesmith/sitesmith/internal/store"
	"github.com/sitesmith/sitesmith/internal/utils"
)

const (
	stageDesign  models.Stage = "design"
	stageApprove models.Stage = "approve"
	stageBuild   models.Stage = "build"
	stageCheck   models.Stage = "check"
)

func newTestExecutor(t *testing.T, reg *Registry, maxRetries int) (*Executor, *store.Store, *Gate) {
	t.Helper()
	st := store.New()
	exec := NewExecutor(context.Background(), st, reg, &RetryController{MaxRetries: maxRetries})
	// Tests drive resumption explicitly, so the resume callback only records.
	gate := NewGate(st, func(string) {})
	exec.SetGate(gate)
	return exec, st, gate
}

func TestExecutorRunsLinearPipelineToCompletion(t *testing.T) {
	var order []models.Stage
	record := func(stage models.Stage, patch store.Patch) StageFunc {
		return func(ctx context.Context, task *models.Task) StageResult {
			order = append(order, stage)
			return Advance(patch)
		}
	}

	reg := NewRegistry(stageDesign)
	reg.Register(stageDesign, record(stageDesign, store.Patch{TechStack: utils.Ptr("HTML/CSS/JS")}), stageBuild)
	reg.Register(stageBuild, record(stageBuild, store.Patch{
		FileContents: map[string]string{"index.html": "<html></html>"},
	}), "")

	exec, st, _ := newTestExecutor(t, reg, 2)
	task := st.Create("query", "")

	exec.Run(context.Background(), task.ID)

	assert.Equal(t, []models.Stage{stageDesign, stageBuild}, order)

	got, err := st.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, stageBuild, got.CurrentStage)
	assert.Equal(t, "HTML/CSS/JS", got.Blueprint.TechStack)
	assert.Contains(t, got.FileContents, "index.html")
}

func TestExecutorParksAtCheckpointAndResumes(t *testing.T) {
	reg := NewRegistry(stageDesign)
	reg.Register(stageDesign, func(ctx context.Context, task *models.Task) StageResult {
		return NeedsApproval(stageApprove, store.Patch{
			ProjectFeatures: []models.Feature{{Name: "gallery"}},
		})
	}, stageApprove)
	reg.RegisterPause(stageApprove, stageBuild)
	reg.Register(stageBuild, func(ctx context.Context, task *models.Task) StageResult {
		return Advance(store.Patch{})
	}, "")

	exec, st, gate := newTestExecutor(t, reg, 2)
	task := st.Create("query", "")

	exec.Run(context.Background(), task.ID)

	got, err := st.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaitingApproval, got.Status)
	assert.Equal(t, stageApprove, got.CurrentStage)

	require.NoError(t, gate.Resolve(task.ID, stageApprove, store.Patch{}))
	exec.Run(context.Background(), task.ID)

	got, err = st.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Len(t, got.Blueprint.ProjectFeatures, 1)
}

func TestExecutorRetriesValidationThenCompletes(t *testing.T) {
	buildCalls := 0
	var reportOnRetry []models.ValidationIssue

	reg := NewRegistry(stageBuild)
	reg.Register(stageBuild, func(ctx context.Context, task *models.Task) StageResult {
		buildCalls++
		if buildCalls == 2 {
			reportOnRetry = task.ValidationReport
		}
		return Advance(store.Patch{ValidationReport: []models.ValidationIssue{}})
	}, stageCheck)
	reg.Register(stageCheck, func(ctx context.Context, task *models.Task) StageResult {
		if buildCalls == 1 {
			return Retryable([]models.ValidationIssue{{File: "app.js", Issue: "undefined selector"}})
		}
		return Advance(store.Patch{})
	}, "")
	reg.SetRetryTarget(stageCheck, stageBuild)

	exec, st, _ := newTestExecutor(t, reg, 2)
	task := st.Create("query", "")

	exec.Run(context.Background(), task.ID)

	assert.Equal(t, 2, buildCalls)
	// The retry round's builder sees the committed issue list.
	require.Len(t, reportOnRetry, 1)
	assert.Equal(t, "app.js", reportOnRetry[0].File)

	got, err := st.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, 1, got.RetryCounts[stageCheck])
}

func TestExecutorFailsWhenRetryBudgetExhausted(t *testing.T) {
	reg := NewRegistry(stageBuild)
	reg.Register(stageBuild, func(ctx context.Context, task *models.Task) StageResult {
		return Advance(store.Patch{})
	}, stageCheck)
	reg.Register(stageCheck, func(ctx context.Context, task *models.Task) StageResult {
		return Retryable([]models.ValidationIssue{{File: "app.js", Issue: "still broken"}})
	}, "")
	reg.SetRetryTarget(stageCheck, stageBuild)

	exec, st, _ := newTestExecutor(t, reg, 1)
	task := st.Create("query", "")

	exec.Run(context.Background(), task.ID)

	got, err := st.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "validation failed after 2 attempts")
	// The final issue list is committed so callers can see what failed.
	require.Len(t, got.ValidationReport, 1)
	assert.Equal(t, "app.js", got.ValidationReport[0].File)
}

func TestExecutorFatalPersistsPatch(t *testing.T) {
	reg := NewRegistry(stageDesign)
	reg.Register(stageDesign, func(ctx context.Context, task *models.Task) StageResult {
		return FatalWith("request rejected", store.Patch{
			Classification: utils.Ptr(models.ClassificationMalicious),
			Reasoning:      utils.Ptr("asks for a credential phishing page"),
		})
	}, "")

	exec, st, _ := newTestExecutor(t, reg, 2)
	task := st.Create("query", "")

	exec.Run(context.Background(), task.ID)

	got, err := st.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "request rejected", got.Error)
	assert.Equal(t, models.ClassificationMalicious, got.Blueprint.Classification)
	assert.Equal(t, "asks for a credential phishing page", got.Blueprint.Reasoning)
}

func TestExecutorResumesFromCommittedState(t *testing.T) {
	var order []models.Stage
	reg := NewRegistry(stageDesign)
	reg.Register(stageDesign, func(ctx context.Context, task *models.Task) StageResult {
		order = append(order, stageDesign)
		return Advance(store.Patch{})
	}, stageBuild)
	reg.Register(stageBuild, func(ctx context.Context, task *models.Task) StageResult {
		order = append(order, stageBuild)
		return Advance(store.Patch{})
	}, "")

	exec, st, _ := newTestExecutor(t, reg, 2)
	task := st.Create("query", "")

	// Simulate a restart after design committed: position is re-derived from
	// the stored record, so design must not run again.
	_, err := st.Commit(task.ID, store.Patch{
		Status:       utils.Ptr(models.StatusRunning),
		CurrentStage: utils.Ptr(stageDesign),
	})
	require.NoError(t, err)

	exec.Run(context.Background(), task.ID)
	assert.Equal(t, []models.Stage{stageBuild}, order)
}

func TestExecutorResumesMidRetryToRegenerationTarget(t *testing.T) {
	var order []models.Stage
	reg := NewRegistry(stageBuild)
	reg.Register(stageBuild, func(ctx context.Context, task *models.Task) StageResult {
		order = append(order, stageBuild)
		return Advance(store.Patch{ValidationReport: []models.ValidationIssue{}})
	}, stageCheck)
	reg.Register(stageCheck, func(ctx context.Context, task *models.Task) StageResult {
		order = append(order, stageCheck)
		return Advance(store.Patch{})
	}, "")
	reg.SetRetryTarget(stageCheck, stageBuild)

	exec, st, _ := newTestExecutor(t, reg, 2)
	task := st.Create("query", "")

	// A pending validation report at the validator stage means a retry was
	// committed but regeneration did not finish: route back to the builder.
	_, err := st.Commit(task.ID, store.Patch{
		Status:           utils.Ptr(models.StatusRunning),
		CurrentStage:     utils.Ptr(stageCheck),
		ValidationReport: []models.ValidationIssue{{File: "app.js", Issue: "undefined selector"}},
	})
	require.NoError(t, err)

	exec.Run(context.Background(), task.ID)
	assert.Equal(t, []models.Stage{stageBuild, stageCheck}, order)
}

func TestExecutorIgnoresTerminalAndParkedTasks(t *testing.T) {
	for _, status := range []models.Status{
		models.StatusCompleted, models.StatusFailed, models.StatusWaitingApproval,
	} {
		t.Run(string(status), func(t *testing.T) {
			reg := NewRegistry(stageDesign)
			reg.Register(stageDesign, func(ctx context.Context, task *models.Task) StageResult {
				t.Fatal("stage must not run")
				return Advance(store.Patch{})
			}, "")

			exec, st, _ := newTestExecutor(t, reg, 2)
			task := st.Create("query", "")
			_, err := st.Commit(task.ID, store.Patch{Status: utils.Ptr(status)})
			require.NoError(t, err)

			exec.Run(context.Background(), task.ID)
		})
	}
}

func TestExecutorFailsOnMissingStageFunc(t *testing.T) {
	reg := NewRegistry(stageDesign)
	// design registered, its successor is not.
	reg.Register(stageDesign, func(ctx context.Context, task *models.Task) StageResult {
		return Advance(store.Patch{})
	}, stageBuild)

	exec, st, _ := newTestExecutor(t, reg, 2)
	task := st.Create("query", "")

	exec.Run(context.Background(), task.ID)

	got, err := st.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "no stage function registered")
}
