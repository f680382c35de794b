package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Data-Wise/atlas-sub001/internal/status"
)

// ScanOptions is passed through to the filesystem scanner.
type ScanOptions struct {
	UseCache     bool
	ForceRefresh bool
}

// ProjectStore abstracts the persistence operations reconciliation needs.
// Find methods return (nil, nil) when no record exists.
type ProjectStore interface {
	FindProject(id string) (*Project, error)
	AllProjects() ([]Project, error)
	SaveProject(p Project) error
	DeleteProject(id string) (bool, error)
}

// Scanner abstracts filesystem project discovery.
type Scanner interface {
	Scan(ctx context.Context, root string, opts ScanOptions) ([]Project, error)
}

// StatusReader abstracts status file lookup. A missing file yields
// (nil, nil).
type StatusReader interface {
	Read(dir string) (*status.Data, error)
}

// Publisher is an optional fire-and-forget event sink.
type Publisher interface {
	Publish(event string, payload map[string]any)
}

// Syncer reconciles the persisted registry with projects discovered on
// disk. It is a single-writer component: concurrent Sync calls against the
// same store are not supported.
type Syncer struct {
	store   ProjectStore
	scanner Scanner
	status  StatusReader
	events  Publisher // optional
	logger  *slog.Logger
}

// NewSyncer wires a Syncer. events may be nil; its absence never changes
// the returned result.
func NewSyncer(store ProjectStore, scanner Scanner, reader StatusReader, events Publisher) *Syncer {
	return &Syncer{
		store:   store,
		scanner: scanner,
		status:  reader,
		events:  events,
		logger:  slog.Default(),
	}
}

// Sync runs one reconciliation pass. Root scans always bypass the scanner
// cache so the registry reflects current disk state. Failures are
// contained per root and per project; only input validation aborts the
// run. The pass is idempotent: rerunning against unchanged disk state
// classifies everything as unchanged.
func (s *Syncer) Sync(ctx context.Context, opts Options) (*SyncResult, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	result := &SyncResult{
		Discovered: []Project{},
		Updated:    []Project{},
		Unchanged:  []Project{},
		Orphaned:   []Project{},
		Errors:     []SyncError{},
		DryRun:     opts.DryRun,
	}
	seen := make(map[string]bool)

	for _, root := range opts.RootPaths {
		projects, err := s.scanner.Scan(ctx, root, ScanOptions{UseCache: false, ForceRefresh: true})
		if err != nil {
			s.logger.Warn("root scan failed", "root", root, "error", err)
			result.Errors = append(result.Errors, SyncError{Path: root, Error: err.Error()})
			continue
		}

		for _, p := range projects {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// The directory exists on disk regardless of whether its
			// processing succeeds, so it can never be an orphan.
			seen[p.Path] = true
			result.Stats.Total++

			if opts.OnProgress != nil {
				opts.OnProgress(p)
			}

			if err := s.syncProject(p, opts.DryRun, result); err != nil {
				s.logger.Warn("project sync failed", "path", p.Path, "error", err)
				result.Errors = append(result.Errors, SyncError{Path: p.Path, Error: err.Error()})
			}
		}
	}

	if err := s.sweepOrphans(seen, opts, result); err != nil {
		result.Errors = append(result.Errors, SyncError{Path: "", Error: err.Error()})
	}

	result.Success = len(result.Errors) == 0

	if !opts.DryRun && s.events != nil {
		s.events.Publish("registry:synced", map[string]any{
			"discovered": len(result.Discovered),
			"updated":    len(result.Updated),
			"unchanged":  len(result.Unchanged),
			"orphaned":   len(result.Orphaned),
			"errors":     len(result.Errors),
		})
	}
	return result, nil
}

// syncProject enriches one discovered project and classifies it as
// discovered, updated, or unchanged against the persisted record.
func (s *Syncer) syncProject(p Project, dryRun bool, result *SyncResult) error {
	sd, err := s.status.Read(p.Path)
	if err != nil {
		return fmt.Errorf("reading status: %w", err)
	}
	if sd != nil {
		Enrich(&p, sd)
		result.Stats.WithStatusFile++
		switch strings.ToLower(p.Metadata.Status) {
		case StatusActive:
			result.Stats.Active++
		case StatusPaused:
			result.Stats.Paused++
		case StatusArchived:
			result.Stats.Archived++
		}
	}

	existing, err := s.store.FindProject(p.ID)
	if err != nil {
		return fmt.Errorf("looking up project: %w", err)
	}

	switch {
	case existing == nil:
		if !dryRun {
			if err := s.store.SaveProject(p); err != nil {
				return fmt.Errorf("saving new project: %w", err)
			}
		}
		result.Discovered = append(result.Discovered, p)

	case HasChanged(*existing, p):
		// Cumulative session stats belong to a different subsystem and
		// must survive reconciliation writes.
		p.TotalSessions = existing.TotalSessions
		p.TotalDuration = existing.TotalDuration
		if !dryRun {
			if err := s.store.SaveProject(p); err != nil {
				return fmt.Errorf("saving updated project: %w", err)
			}
		}
		result.Updated = append(result.Updated, p)

	default:
		result.Unchanged = append(result.Unchanged, *existing)
	}
	return nil
}

// sweepOrphans lists persisted projects whose path was not seen in this
// scan. They are always reported; deletion additionally requires
// RemoveOrphans and a non-dry run.
func (s *Syncer) sweepOrphans(seen map[string]bool, opts Options, result *SyncResult) error {
	all, err := s.store.AllProjects()
	if err != nil {
		return fmt.Errorf("listing persisted projects: %w", err)
	}

	for _, p := range all {
		if seen[p.Path] {
			continue
		}
		result.Orphaned = append(result.Orphaned, p)
		if opts.RemoveOrphans && !opts.DryRun {
			if _, err := s.store.DeleteProject(p.ID); err != nil {
				result.Errors = append(result.Errors, SyncError{Path: p.Path, Error: err.Error()})
			}
		}
	}
	return nil
}

func validateOptions(opts Options) error {
	if len(opts.RootPaths) == 0 {
		return fmt.Errorf("at least one root path is required")
	}
	for _, root := range opts.RootPaths {
		if strings.TrimSpace(root) == "" {
			return fmt.Errorf("root paths must be non-empty strings")
		}
	}
	return nil
}
