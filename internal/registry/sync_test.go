package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/Data-Wise/atlas-sub001/internal/status"
)

// --- Fake store ---

type fakeStore struct {
	mu       sync.Mutex
	projects map[string]Project

	saveErr map[string]error
	findErr map[string]error
	saves   int
	deletes int
}

func newFakeStore(seed ...Project) *fakeStore {
	s := &fakeStore{
		projects: make(map[string]Project),
		saveErr:  make(map[string]error),
		findErr:  make(map[string]error),
	}
	for _, p := range seed {
		s.projects[p.ID] = p
	}
	return s
}

func (s *fakeStore) FindProject(id string) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.findErr[id]; err != nil {
		return nil, err
	}
	p, ok := s.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *fakeStore) AllProjects() ([]Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeStore) SaveProject(p Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveErr[p.ID]; err != nil {
		return err
	}
	s.saves++
	s.projects[p.ID] = p
	return nil
}

func (s *fakeStore) DeleteProject(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.projects[id]
	if ok {
		s.deletes++
		delete(s.projects, id)
	}
	return ok, nil
}

// --- Fake scanner ---

type fakeScanner struct {
	roots map[string][]Project
	errs  map[string]error
}

func (f *fakeScanner) Scan(_ context.Context, root string, _ ScanOptions) ([]Project, error) {
	if err := f.errs[root]; err != nil {
		return nil, err
	}
	return f.roots[root], nil
}

// --- Fake status reader ---

type fakeStatusReader struct {
	byDir map[string]*status.Data
	errs  map[string]error
}

func (f *fakeStatusReader) Read(dir string) (*status.Data, error) {
	if err := f.errs[dir]; err != nil {
		return nil, err
	}
	return f.byDir[dir], nil
}

// --- Fake publisher ---

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) Publish(event string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakePublisher) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

// --- Helpers ---

func scanned(path, name, typ string) Project {
	return Project{ID: ProjectID(path), Path: path, Name: name, Type: typ}
}

// --- Tests ---

func TestSync_DiscoverAndEnrich(t *testing.T) {
	alpha := scanned("/r/alpha", "alpha", TypeGo)
	beta := scanned("/r/beta", "beta", TypeNode)

	store := newFakeStore()
	scan := &fakeScanner{roots: map[string][]Project{"/r": {alpha, beta}}}
	reader := &fakeStatusReader{byDir: map[string]*status.Data{
		"/r/alpha": {Status: "paused", Next: []status.NextAction{{Action: "resume work"}}},
	}}

	syncer := NewSyncer(store, scan, reader, nil)
	result, err := syncer.Sync(context.Background(), Options{RootPaths: []string{"/r"}})
	if err != nil {
		t.Fatalf("Sync error: %v", err)
	}

	if len(result.Discovered) != 2 {
		t.Fatalf("discovered = %d, want 2", len(result.Discovered))
	}
	if result.Stats.Total != 2 {
		t.Errorf("stats.total = %d, want 2", result.Stats.Total)
	}
	if result.Stats.WithStatusFile != 1 {
		t.Errorf("stats.withStatusFile = %d, want 1", result.Stats.WithStatusFile)
	}
	if result.Stats.Paused != 1 {
		t.Errorf("stats.paused = %d, want 1", result.Stats.Paused)
	}
	if !result.Success {
		t.Errorf("success = false, errors: %v", result.Errors)
	}

	saved, _ := store.FindProject(alpha.ID)
	if saved == nil {
		t.Fatal("discovered project not persisted")
	}
	if saved.Metadata.Status != "paused" {
		t.Errorf("persisted status = %q, want paused", saved.Metadata.Status)
	}
	if saved.Description != "resume work" {
		t.Errorf("persisted description = %q, want first next action", saved.Description)
	}
}

func TestSync_Idempotent(t *testing.T) {
	alpha := scanned("/r/alpha", "alpha", TypeGo)
	store := newFakeStore()
	scan := &fakeScanner{roots: map[string][]Project{"/r": {alpha}}}
	reader := &fakeStatusReader{byDir: map[string]*status.Data{
		"/r/alpha": {Status: "active"},
	}}
	syncer := NewSyncer(store, scan, reader, nil)

	first, err := syncer.Sync(context.Background(), Options{RootPaths: []string{"/r"}})
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if len(first.Discovered) != 1 {
		t.Fatalf("first run discovered = %d, want 1", len(first.Discovered))
	}

	second, err := syncer.Sync(context.Background(), Options{RootPaths: []string{"/r"}})
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if len(second.Discovered) != 0 || len(second.Updated) != 0 {
		t.Errorf("second run not converged: discovered=%d updated=%d",
			len(second.Discovered), len(second.Updated))
	}
	if len(second.Unchanged) != 1 {
		t.Errorf("second run unchanged = %d, want 1", len(second.Unchanged))
	}
}

func TestSync_UpdatePreservesSessionStats(t *testing.T) {
	path := "/r/alpha"
	existing := scanned(path, "alpha", TypeGo)
	existing.Metadata.Status = "active"
	existing.TotalSessions = 7
	existing.TotalDuration = 123.5

	store := newFakeStore(existing)
	scan := &fakeScanner{roots: map[string][]Project{"/r": {scanned(path, "alpha", TypeGo)}}}
	reader := &fakeStatusReader{byDir: map[string]*status.Data{
		path: {Status: "paused"},
	}}

	syncer := NewSyncer(store, scan, reader, nil)
	result, err := syncer.Sync(context.Background(), Options{RootPaths: []string{"/r"}})
	if err != nil {
		t.Fatalf("Sync error: %v", err)
	}

	if len(result.Updated) != 1 {
		t.Fatalf("updated = %d, want 1", len(result.Updated))
	}
	saved, _ := store.FindProject(existing.ID)
	if saved.Metadata.Status != "paused" {
		t.Errorf("status = %q, want paused", saved.Metadata.Status)
	}
	if saved.TotalSessions != 7 || saved.TotalDuration != 123.5 {
		t.Errorf("session stats not preserved: sessions=%d duration=%v",
			saved.TotalSessions, saved.TotalDuration)
	}
}

func TestSync_DryRunNeverWrites(t *testing.T) {
	path := "/r/alpha"
	existing := scanned(path, "alpha", TypeGo)
	existing.Metadata.Status = "active"

	orphan := scanned("/r/gone", "gone", TypeGeneral)

	store := newFakeStore(existing, orphan)
	scan := &fakeScanner{roots: map[string][]Project{"/r": {
		scanned(path, "alpha", TypeGo),
		scanned("/r/fresh", "fresh", TypeNode),
	}}}
	reader := &fakeStatusReader{byDir: map[string]*status.Data{
		path: {Status: "archived"},
	}}
	pub := &fakePublisher{}

	syncer := NewSyncer(store, scan, reader, pub)
	result, err := syncer.Sync(context.Background(), Options{
		RootPaths:     []string{"/r"},
		DryRun:        true,
		RemoveOrphans: true,
	})
	if err != nil {
		t.Fatalf("Sync error: %v", err)
	}

	if !result.DryRun {
		t.Error("result.DryRun = false")
	}
	if len(result.Discovered) != 1 || len(result.Updated) != 1 || len(result.Orphaned) != 1 {
		t.Errorf("classification off: discovered=%d updated=%d orphaned=%d",
			len(result.Discovered), len(result.Updated), len(result.Orphaned))
	}
	if store.saves != 0 || store.deletes != 0 {
		t.Errorf("dry run wrote to store: saves=%d deletes=%d", store.saves, store.deletes)
	}
	if saved, _ := store.FindProject(existing.ID); saved.Metadata.Status != "active" {
		t.Errorf("dry run mutated persisted record: %q", saved.Metadata.Status)
	}
	if len(pub.names()) != 0 {
		t.Errorf("dry run published events: %v", pub.names())
	}
}

func TestSync_OrphanListedNotDeleted(t *testing.T) {
	orphan := scanned("/r/gone", "gone", TypeGeneral)
	store := newFakeStore(orphan)
	scan := &fakeScanner{roots: map[string][]Project{"/r": {}}}
	reader := &fakeStatusReader{}

	syncer := NewSyncer(store, scan, reader, nil)
	result, err := syncer.Sync(context.Background(), Options{RootPaths: []string{"/r"}})
	if err != nil {
		t.Fatalf("Sync error: %v", err)
	}

	if len(result.Orphaned) != 1 {
		t.Fatalf("orphaned = %d, want 1", len(result.Orphaned))
	}
	if p, _ := store.FindProject(orphan.ID); p == nil {
		t.Error("orphan was deleted without removeOrphans")
	}
}

func TestSync_OrphanRemoved(t *testing.T) {
	orphan := scanned("/r/gone", "gone", TypeGeneral)
	store := newFakeStore(orphan)
	scan := &fakeScanner{roots: map[string][]Project{"/r": {}}}
	reader := &fakeStatusReader{}

	syncer := NewSyncer(store, scan, reader, nil)
	result, err := syncer.Sync(context.Background(), Options{
		RootPaths:     []string{"/r"},
		RemoveOrphans: true,
	})
	if err != nil {
		t.Fatalf("Sync error: %v", err)
	}

	if len(result.Orphaned) != 1 {
		t.Fatalf("orphaned = %d, want 1", len(result.Orphaned))
	}
	if p, _ := store.FindProject(orphan.ID); p != nil {
		t.Error("orphan survived removeOrphans")
	}
}

func TestSync_RootErrorContained(t *testing.T) {
	good := scanned("/good/alpha", "alpha", TypeGo)
	store := newFakeStore()
	scan := &fakeScanner{
		roots: map[string][]Project{"/good": {good}},
		errs:  map[string]error{"/bad": fmt.Errorf("permission denied")},
	}
	reader := &fakeStatusReader{}

	syncer := NewSyncer(store, scan, reader, nil)
	result, err := syncer.Sync(context.Background(), Options{RootPaths: []string{"/bad", "/good"}})
	if err != nil {
		t.Fatalf("Sync error: %v", err)
	}

	if len(result.Discovered) != 1 {
		t.Errorf("good root not processed after bad root: discovered=%d", len(result.Discovered))
	}
	if len(result.Errors) != 1 || result.Errors[0].Path != "/bad" {
		t.Errorf("errors = %v, want one entry for /bad", result.Errors)
	}
	if result.Success {
		t.Error("success = true despite root error")
	}
}

func TestSync_ProjectErrorContained(t *testing.T) {
	bad := scanned("/r/bad", "bad", TypeGo)
	good := scanned("/r/good", "good", TypeGo)

	store := newFakeStore()
	scan := &fakeScanner{roots: map[string][]Project{"/r": {bad, good}}}
	reader := &fakeStatusReader{errs: map[string]error{
		"/r/bad": fmt.Errorf("malformed front matter"),
	}}

	syncer := NewSyncer(store, scan, reader, nil)
	result, err := syncer.Sync(context.Background(), Options{RootPaths: []string{"/r"}})
	if err != nil {
		t.Fatalf("Sync error: %v", err)
	}

	if len(result.Discovered) != 1 || result.Discovered[0].Path != "/r/good" {
		t.Errorf("good project not processed: %+v", result.Discovered)
	}
	if len(result.Errors) != 1 || result.Errors[0].Path != "/r/bad" {
		t.Errorf("errors = %v", result.Errors)
	}
	// A failed project still counts as seen, so it must not be an orphan.
	if len(result.Orphaned) != 0 {
		t.Errorf("failed project misclassified as orphan: %v", result.Orphaned)
	}
}

func TestSync_ValidatesRoots(t *testing.T) {
	syncer := NewSyncer(newFakeStore(), &fakeScanner{}, &fakeStatusReader{}, nil)

	if _, err := syncer.Sync(context.Background(), Options{}); err == nil {
		t.Error("expected error for empty root list")
	}
	if _, err := syncer.Sync(context.Background(), Options{RootPaths: []string{"  "}}); err == nil {
		t.Error("expected error for blank root path")
	}
}

func TestSync_PublishesEvent(t *testing.T) {
	store := newFakeStore()
	scan := &fakeScanner{roots: map[string][]Project{"/r": {scanned("/r/a", "a", TypeGo)}}}
	pub := &fakePublisher{}

	syncer := NewSyncer(store, scan, &fakeStatusReader{}, pub)
	if _, err := syncer.Sync(context.Background(), Options{RootPaths: []string{"/r"}}); err != nil {
		t.Fatalf("Sync error: %v", err)
	}

	names := pub.names()
	if len(names) != 1 || names[0] != "registry:synced" {
		t.Errorf("events = %v, want [registry:synced]", names)
	}
}

func TestSync_OnProgressCallback(t *testing.T) {
	store := newFakeStore()
	scan := &fakeScanner{roots: map[string][]Project{"/r": {
		scanned("/r/a", "a", TypeGo),
		scanned("/r/b", "b", TypeNode),
	}}}

	var seen []string
	syncer := NewSyncer(store, scan, &fakeStatusReader{}, nil)
	_, err := syncer.Sync(context.Background(), Options{
		RootPaths:  []string{"/r"},
		OnProgress: func(p Project) { seen = append(seen, p.Name) },
	})
	if err != nil {
		t.Fatalf("Sync error: %v", err)
	}

	if len(seen) != 2 {
		t.Errorf("progress callbacks = %v, want 2 entries", seen)
	}
}
