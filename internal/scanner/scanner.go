// Package scanner discovers projects on disk: each non-hidden direct
// child directory of a root is a candidate project, typed by the marker
// files it contains.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Data-Wise/atlas-sub001/internal/registry"
)

// probeLimit bounds concurrent directory probing per scan.
const probeLimit = 8

// defaultCacheTTL is how long a cached root listing stays fresh.
const defaultCacheTTL = 30 * time.Second

// typeMarkers maps marker filenames to project types, checked in order so
// a directory with several markers gets a deterministic type.
var typeMarkers = []struct {
	file string
	typ  string
}{
	{"go.mod", registry.TypeGo},
	{"Cargo.toml", registry.TypeRust},
	{"_quarto.yml", registry.TypeQuarto},
	{"DESCRIPTION", registry.TypeRPackage},
	{"package.json", registry.TypeNode},
	{"pyproject.toml", registry.TypePython},
	{"setup.py", registry.TypePython},
	{"requirements.txt", registry.TypePython},
	{".spacemacs", registry.TypeSpacemacs},
	{"mcp.json", registry.TypeMCP},
	{".mcp.json", registry.TypeMCP},
}

type cacheEntry struct {
	projects  []registry.Project
	scannedAt time.Time
}

// Scanner lists project directories under configured roots, with a
// per-root cache that callers can bypass.
type Scanner struct {
	ttl    time.Duration
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New returns a Scanner with the default cache TTL.
func New() *Scanner {
	return &Scanner{
		ttl:    defaultCacheTTL,
		logger: slog.Default(),
		cache:  make(map[string]cacheEntry),
	}
}

// Scan lists the projects directly under root. With UseCache and without
// ForceRefresh, a fresh cached listing is returned instead of touching
// the filesystem. Results follow directory-listing order, so repeated
// scans of unchanged disk are deterministic.
func (s *Scanner) Scan(ctx context.Context, root string, opts registry.ScanOptions) ([]registry.Project, error) {
	root = filepath.Clean(root)

	if opts.UseCache && !opts.ForceRefresh {
		if cached, ok := s.cached(root); ok {
			return cached, nil
		}
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanning %s: not a directory", root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dirs = append(dirs, e.Name())
	}

	// Probe marker files concurrently; results keep ReadDir order.
	projects := make([]registry.Project, len(dirs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(probeLimit)
	for i, name := range dirs {
		i, name := i, name
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			path := filepath.Join(root, name)
			projects[i] = registry.Project{
				ID:   registry.ProjectID(path),
				Path: path,
				Name: name,
				Type: detectType(path),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("probing %s: %w", root, err)
	}

	s.store(root, projects)
	s.logger.Debug("scanned root", "root", root, "projects", len(projects))
	return projects, nil
}

func (s *Scanner) cached(root string) ([]registry.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[root]
	if !ok || time.Since(entry.scannedAt) > s.ttl {
		return nil, false
	}
	out := make([]registry.Project, len(entry.projects))
	copy(out, entry.projects)
	return out, true
}

func (s *Scanner) store(root string, projects []registry.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]registry.Project, len(projects))
	copy(kept, projects)
	s.cache[root] = cacheEntry{projects: kept, scannedAt: time.Now()}
}

// detectType returns the project type implied by the first marker file
// found in dir, or "general" when none match.
func detectType(dir string) string {
	for _, m := range typeMarkers {
		if _, err := os.Stat(filepath.Join(dir, m.file)); err == nil {
			return m.typ
		}
	}
	return registry.TypeGeneral
}
