// Package api exposes the registry and triage flows over a loopback HTTP
// API (bearer-token protected) and an MCP server.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Data-Wise/atlas-sub001/internal/registry"
	"github.com/Data-Wise/atlas-sub001/internal/storage"
	"github.com/Data-Wise/atlas-sub001/internal/triage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// SyncRunner runs one reconciliation pass.
type SyncRunner interface {
	Sync(ctx context.Context, opts registry.Options) (*registry.SyncResult, error)
}

// AppDeps holds dependencies for the HTTP API.
type AppDeps struct {
	Store  *storage.Store
	Syncer SyncRunner
	Triage *triage.Triager
	Token  string
	// DefaultRoots are used by /sync when the request omits rootPaths.
	DefaultRoots []string
}

// NewHandler builds the loopback API router. /health is unauthenticated;
// everything else requires the bearer token.
func NewHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/sync", handleSync(deps))

		r.Get("/projects", handleListProjects(deps))
		r.Get("/projects/{id}", handleGetProject(deps))
		r.Delete("/projects/{id}", handleDeleteProject(deps))

		r.Post("/captures", handleCreateCapture(deps))
		r.Get("/captures", handleListCaptures(deps))
		r.Get("/captures/next", handleNextCapture(deps))
		r.Post("/captures/{id}/assign", handleAssignCapture(deps))
		r.Post("/captures/{id}/archive", handleArchiveCapture(deps))
		r.Post("/captures/{id}/convert", handleConvertCapture(deps))
		r.Delete("/captures/{id}", handleDeleteCapture(deps))
		r.Post("/captures/batch", handleBatchCaptures(deps))
	})

	return r
}

// BearerAuth rejects requests without the expected bearer token.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
