package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Data-Wise/atlas-sub001/internal/registry"
	"github.com/Data-Wise/atlas-sub001/internal/storage"
	"github.com/Data-Wise/atlas-sub001/internal/triage"
	"github.com/Data-Wise/atlas-sub001/internal/worker"
)

// SyncRequest is the body of POST /sync.
type SyncRequest struct {
	RootPaths     []string `json:"rootPaths"`
	DryRun        bool     `json:"dryRun"`
	RemoveOrphans bool     `json:"removeOrphans"`
	Async         bool     `json:"async"`
}

func handleSync(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req SyncRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
				return
			}
		}

		roots := req.RootPaths
		if len(roots) == 0 {
			roots = deps.DefaultRoots
		}
		if len(roots) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one root path is required")
			return
		}

		if req.Async {
			payload, err := json.Marshal(worker.SyncPayload{
				RootPaths:     roots,
				DryRun:        req.DryRun,
				RemoveOrphans: req.RemoveOrphans,
			})
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to create job payload: %v", err)
				return
			}
			job := storage.Job{
				ID:          uuid.New().String(),
				Type:        storage.JobTypeRegistrySync,
				PayloadJSON: string(payload),
			}
			if err := deps.Store.EnqueueJob(job); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue job: %v", err)
				return
			}
			writeJSON(w, map[string]string{"id": job.ID, "status": "queued"})
			return
		}

		result, err := deps.Syncer.Sync(r.Context(), registry.Options{
			RootPaths:     roots,
			DryRun:        req.DryRun,
			RemoveOrphans: req.RemoveOrphans,
		})
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "sync failed: %v", err)
			return
		}
		writeJSON(w, result)
	}
}

func handleListProjects(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := deps.Store.AllProjects()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list projects: %v", err)
			return
		}
		if projects == nil {
			projects = []registry.Project{}
		}
		writeJSON(w, projects)
	}
}

func handleGetProject(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := urlParam(r, "id")

		p, err := deps.Store.FindProject(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get project: %v", err)
			return
		}
		if p == nil {
			// Fall back to path lookup for caller convenience.
			p, err = deps.Store.FindProjectByPath(id)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to get project: %v", err)
				return
			}
		}
		if p == nil {
			httpError(w, http.StatusNotFound, "not_found", "project not found")
			return
		}
		writeJSON(w, p)
	}
}

func handleDeleteProject(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := urlParam(r, "id")

		existed, err := deps.Store.DeleteProject(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete project: %v", err)
			return
		}
		if !existed {
			httpError(w, http.StatusNotFound, "not_found", "project not found")
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

// CaptureRequest is the body of POST /captures.
type CaptureRequest struct {
	Type    string   `json:"type"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

func handleCreateCapture(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req CaptureRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Content == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content is required")
			return
		}
		if req.Type == "" {
			req.Type = triage.TypeNote
		}
		if !triage.ValidType(req.Type) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid capture type %q", req.Type)
			return
		}

		c := triage.Capture{
			ID:        uuid.New().String(),
			Type:      req.Type,
			Status:    triage.StatusInbox,
			Content:   req.Content,
			Tags:      req.Tags,
			CreatedAt: time.Now().UTC(),
		}
		if err := deps.Store.SaveCapture(c); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save capture: %v", err)
			return
		}
		writeJSON(w, c)
	}
}

func handleListCaptures(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		if status == "" {
			status = triage.StatusInbox
		}

		captures, err := deps.Store.CapturesByStatus(status)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list captures: %v", err)
			return
		}
		if captures == nil {
			captures = []triage.Capture{}
		}
		writeJSON(w, captures)
	}
}

func handleNextCapture(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := deps.Triage.NextItem()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get next capture: %v", err)
			return
		}
		if c == nil {
			httpError(w, http.StatusNotFound, "not_found", "inbox is empty")
			return
		}
		writeJSON(w, c)
	}
}

// AssignRequest is the body of POST /captures/{id}/assign.
type AssignRequest struct {
	Project string   `json:"project"`
	Type    string   `json:"type"`
	Tags    []string `json:"tags"`
}

func handleAssignCapture(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req AssignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Project == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "project is required")
			return
		}

		c, err := deps.Triage.Assign(id, req.Project, triage.AssignOptions{Type: req.Type, Tags: req.Tags})
		if err != nil {
			httpError(w, statusForTriageError(err), "triage_error", "%v", err)
			return
		}
		writeJSON(w, c)
	}
}

func handleArchiveCapture(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		c, err := deps.Triage.Archive(id)
		if err != nil {
			httpError(w, statusForTriageError(err), "triage_error", "%v", err)
			return
		}
		writeJSON(w, c)
	}
}

// ConvertRequest is the body of POST /captures/{id}/convert.
type ConvertRequest struct {
	Type string `json:"type"`
}

func handleConvertCapture(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req ConvertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		c, err := deps.Triage.Convert(id, req.Type)
		if err != nil {
			httpError(w, statusForTriageError(err), "triage_error", "%v", err)
			return
		}
		writeJSON(w, c)
	}
}

func handleDeleteCapture(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		existed, err := deps.Triage.Delete(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete capture: %v", err)
			return
		}
		writeJSON(w, map[string]any{"deleted": existed})
	}
}

// BatchRequest is the body of POST /captures/batch.
type BatchRequest struct {
	IDs    []string `json:"ids"`
	Action string   `json:"action"`
}

func handleBatchCaptures(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req BatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		result, err := deps.Triage.BatchProcess(req.IDs, req.Action)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		// Partial failures are reported in the result, not as an HTTP error.
		writeJSON(w, result)
	}
}

// urlParam returns a route parameter with percent-encoding removed, so
// callers can pass paths (with escaped slashes) as identifiers.
func urlParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}

func statusForTriageError(err error) int {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		return http.StatusNotFound
	case strings.Contains(msg, "invalid"), strings.Contains(msg, "not in inbox"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
