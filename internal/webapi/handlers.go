// Package webapi implements the HTTP boundary: build creation, approval
// resolution, structure regeneration, status, live progress streaming, and
// artifact download.
package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sitesmith/sitesmith/internal/models"
	"github.com/sitesmith/sitesmith/internal/pipeline"
	"github.com/sitesmith/sitesmith/internal/stages"
	"github.com/sitesmith/sitesmith/internal/store"
	"github.com/sitesmith/sitesmith/internal/utils"
)

// Scheduler kicks off pipeline execution for a task.
type Scheduler interface {
	Schedule(id string)
}

// StructureRefiner regenerates a file-structure proposal without committing.
type StructureRefiner interface {
	RefineStructure(ctx context.Context, task *models.Task, techStack string) (*stages.StructureDoc, error)
}

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	store     *store.Store
	gate      *pipeline.Gate
	broadcast *pipeline.Broadcaster
	scheduler Scheduler
	refiner   StructureRefiner
}

// NewHandlers creates a new Handlers over the pipeline components.
func NewHandlers(st *store.Store, gate *pipeline.Gate, bc *pipeline.Broadcaster, sched Scheduler, refiner StructureRefiner) *Handlers {
	return &Handlers{
		store:     st,
		gate:      gate,
		broadcast: bc,
		scheduler: sched,
		refiner:   refiner,
	}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: "sitesmith",
	})
}

// HandleCreateBuild registers a new build task and schedules its pipeline.
func (h *Handlers) HandleCreateBuild(w http.ResponseWriter, r *http.Request) {
	var req BuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserQuery == "" {
		writeError(w, http.StatusBadRequest, "user_query is required")
		return
	}

	task := h.store.Create(req.UserQuery, req.ReferenceURL)
	h.scheduler.Schedule(task.ID)

	slog.Info("build accepted", "task_id", task.ID)
	writeJSON(w, http.StatusOK, BuildResponse{
		TaskID:  task.ID,
		Message: "Build started. Subscribe to the stream or poll status for progress.",
		Status:  task.Status,
	})
}

// HandleApproveFeatures resolves the feature approval checkpoint.
func (h *Handlers) HandleApproveFeatures(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.store.Get(id); err != nil {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}

	var req FeatureApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resume := store.Patch{
		ProjectFeatures: req.ApprovedFeatures,
		DesignSpecs:     req.ApprovedDesignSpecs,
	}
	if req.UserRequirements != "" {
		resume.UserRequirements = utils.Ptr(req.UserRequirements)
	}

	if err := h.gate.Resolve(id, models.StageFeatureApproval, resume); err != nil {
		writeCheckpointError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ApprovalResponse{
		TaskID:    id,
		Message:   "Features approved, refining file structure.",
		Status:    models.StatusRunning,
		NextStage: models.StageStructurer,
	})
}

// HandleApproveTechStack resolves the tech stack approval checkpoint.
func (h *Handlers) HandleApproveTechStack(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.store.Get(id); err != nil {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}

	var req TechStackApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resume := store.Patch{
		FileStructure: req.ApprovedFileStructure,
		AssetManifest: req.ApprovedAssetManifest,
	}
	if req.ApprovedTechStack != "" {
		resume.TechStack = utils.Ptr(req.ApprovedTechStack)
	}
	if req.UserRequirements != "" {
		resume.UserRequirements = utils.Ptr(req.UserRequirements)
	}

	if err := h.gate.Resolve(id, models.StageTechstackApproval, resume); err != nil {
		writeCheckpointError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ApprovalResponse{
		TaskID:    id,
		Message:   "Tech stack approved, generation started.",
		Status:    models.StatusRunning,
		NextStage: models.StageBuilder,
	})
}

// HandleGenerateStructure regenerates the file structure for a different
// tech stack while the tech stack checkpoint is open. Only the checkpoint's
// proposal is mutated; committed task state stays untouched until approval.
func (h *Handlers) HandleGenerateStructure(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	task, err := h.store.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}

	var req GenerateStructureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TechStack == "" {
		writeError(w, http.StatusBadRequest, "tech_stack is required")
		return
	}

	cp, ok := h.gate.Pending(id)
	if !ok || cp.Stage != models.StageTechstackApproval {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Task is not waiting for tech stack approval. Current stage: %s", task.CurrentStage))
		return
	}

	doc, err := h.refiner.RefineStructure(r.Context(), task, req.TechStack)
	if err != nil {
		slog.Error("structure regeneration failed", "task_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate file structure")
		return
	}

	update := store.Patch{
		TechStack:     utils.Ptr(doc.TechStack),
		FileStructure: doc.FileStructure,
		AssetManifest: doc.AssetManifest,
	}
	if err := h.gate.UpdateProposal(id, models.StageTechstackApproval, update); err != nil {
		writeCheckpointError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, GenerateStructureResponse{
		FileStructure: doc.FileStructure,
		Message:       "File structure updated successfully",
	})
}

// HandleStatus returns the task's current committed state. Reading is
// side-effect free: polling in a loop observes the same state until the
// pipeline commits again.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	task, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}

	resp := StatusResponse{
		TaskID:       task.ID,
		Status:       task.Status,
		CurrentStage: task.CurrentStage,
		IsComplete:   task.Status.Terminal(),

		Classification:  task.Blueprint.Classification,
		Reasoning:       task.Blueprint.Reasoning,
		ProjectFeatures: task.Blueprint.ProjectFeatures,
		DesignSpecs:     task.Blueprint.DesignSpecs,
		TechStack:       task.Blueprint.TechStack,
		FileStructure:   task.Blueprint.FileStructure,
		AssetManifest:   task.Blueprint.AssetManifest,

		ArtifactLocation: task.ArtifactLocation,
		ErrorMessage:     task.Error,
	}
	if task.Status == models.StatusWaitingApproval {
		resp.WaitingForApproval = true
		resp.ApprovalStage = task.CurrentStage
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleStream delivers progress snapshots over SSE. The subscription is
// taken before the baseline read, so no commit between the two can be
// missed. The stream ends after a pause or terminal snapshot.
func (h *Handlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.store.Get(id); err != nil {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}

	ch := h.broadcast.Subscribe(id)
	defer h.broadcast.Unsubscribe(id, ch)

	// Re-read after subscribing: this baseline plus the channel covers
	// every commit from now on, at least once.
	task, err := h.store.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}

	sw := NewSSEWriter(w)
	sw.Init()

	baseline := fullSnapshot(task)
	if err := sw.WriteEvent(baseline); err != nil {
		return
	}
	if baseline.Final() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := sw.WriteEvent(snap); err != nil {
				return
			}
			if snap.Final() {
				return
			}
		}
	}
}

// HandleDownload serves the packaged artifact of a completed build.
func (h *Handlers) HandleDownload(w http.ResponseWriter, r *http.Request) {
	task, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	if task.Status != models.StatusCompleted || task.ArtifactLocation == "" {
		writeError(w, http.StatusBadRequest, "Build not completed")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "project_"+task.ID+".zip"))
	http.ServeFile(w, r, task.ArtifactLocation)
}

// RegisterRoutes registers all web API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /api/v1/health", h.HandleHealth)
	mux.HandleFunc("POST /api/v1/build", h.HandleCreateBuild)
	mux.HandleFunc("POST /api/v1/build/{id}/approve-features", h.HandleApproveFeatures)
	mux.HandleFunc("POST /api/v1/build/{id}/approve-techstack", h.HandleApproveTechStack)
	mux.HandleFunc("POST /api/v1/build/{id}/generate-structure", h.HandleGenerateStructure)
	mux.HandleFunc("GET /api/v1/build/{id}/status", h.HandleStatus)
	mux.HandleFunc("GET /api/v1/build/{id}/stream", h.HandleStream)
	mux.HandleFunc("GET /api/v1/build/{id}/download", h.HandleDownload)
}

// CORSMiddleware wraps a handler with CORS headers.
// If allowedOrigins is empty, no CORS header is set (same-origin only).
// Otherwise, the request Origin is checked against the allowed list.
func CORSMiddleware(next http.Handler, allowedOrigins ...string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(allowedOrigins) > 0 && origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// fullSnapshot projects the whole committed task state, used as the stream
// baseline before incremental snapshots take over.
func fullSnapshot(t *models.Task) models.Snapshot {
	snap := models.Snapshot{
		Node:   t.CurrentStage,
		Status: t.Status,

		Classification:  t.Blueprint.Classification,
		Reasoning:       t.Blueprint.Reasoning,
		ProjectFeatures: t.Blueprint.ProjectFeatures,
		DesignSpecs:     t.Blueprint.DesignSpecs,
		TechStack:       t.Blueprint.TechStack,
		FileStructure:   t.Blueprint.FileStructure,
		AssetManifest:   t.Blueprint.AssetManifest,
	}

	switch t.Status {
	case models.StatusWaitingApproval:
		snap.WaitingForApproval = true
		snap.ApprovalStage = t.CurrentStage
	case models.StatusCompleted:
		snap.IsComplete = true
	case models.StatusFailed:
		snap.IsComplete = true
		snap.Error = t.Error
		snap.ErrorMessage = t.Error
	}

	return snap
}

func writeCheckpointError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrNoPendingCheckpoint),
		errors.Is(err, pipeline.ErrCheckpointMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "Task not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}
