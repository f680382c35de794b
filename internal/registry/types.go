// Package registry implements the project registry reconciliation core:
// discovering projects on disk, merging status-file metadata, detecting
// changes against persisted records, and sweeping orphans.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
)

// Known project types, decided by marker files during scanning.
const (
	TypeNode      = "node"
	TypePython    = "python"
	TypeRust      = "rust"
	TypeGo        = "go"
	TypeRPackage  = "r-package"
	TypeQuarto    = "quarto"
	TypeSpacemacs = "spacemacs"
	TypeMCP       = "mcp"
	TypeGeneral   = "general"
)

// Project statuses recognized in the status distribution stats.
const (
	StatusActive   = "active"
	StatusPaused   = "paused"
	StatusArchived = "archived"
)

// Metadata holds the status-file-derived fields of a project. Enrichment is
// the only writer of these fields; everything else treats them as read-only.
type Metadata struct {
	Status      string         `json:"status,omitempty"`
	Progress    *float64       `json:"progress,omitempty"`
	ProjectType string         `json:"projectType,omitempty"`
	NextAction  string         `json:"nextAction,omitempty"`
	NextActions []string       `json:"nextActions,omitempty"`
	Metrics     map[string]any `json:"metrics,omitempty"`
	Notes       string         `json:"notes,omitempty"`
}

// Project is a registered project. Path is the unique key; ID is a pure
// function of Path so repeated scans resolve to the same identity.
// TotalSessions and TotalDuration are cumulative counters owned by the
// session subsystem; reconciliation carries them forward but never resets
// them.
type Project struct {
	ID            string   `json:"id"`
	Path          string   `json:"path"`
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	Description   string   `json:"description,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Metadata      Metadata `json:"metadata"`
	TotalSessions int      `json:"totalSessions"`
	TotalDuration float64  `json:"totalDuration"`
}

// ProjectID derives the stable project identity from its path.
func ProjectID(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])[:12]
}

// SyncError records a failure for a single root or project path during a
// reconciliation run.
type SyncError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// SyncStats aggregates counts over one reconciliation run.
type SyncStats struct {
	Total          int `json:"total"`
	WithStatusFile int `json:"withStatusFile"`
	Active         int `json:"active"`
	Paused         int `json:"paused"`
	Archived       int `json:"archived"`
}

// SyncResult is the structured outcome of a reconciliation run. Every
// scanned project lands in exactly one of Discovered, Updated, or
// Unchanged, or contributes an entry to Errors. Orphaned is computed from
// a separate comparison against persisted state.
type SyncResult struct {
	Discovered []Project   `json:"discovered"`
	Updated    []Project   `json:"updated"`
	Unchanged  []Project   `json:"unchanged"`
	Orphaned   []Project   `json:"orphaned"`
	Errors     []SyncError `json:"errors"`
	Stats      SyncStats   `json:"stats"`
	DryRun     bool        `json:"dryRun"`
	Success    bool        `json:"success"`
}

// Options controls a reconciliation run.
type Options struct {
	RootPaths     []string      `json:"rootPaths"`
	DryRun        bool          `json:"dryRun"`
	RemoveOrphans bool          `json:"removeOrphans"`
	OnProgress    func(Project) `json:"-"`
}
