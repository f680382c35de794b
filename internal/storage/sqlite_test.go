package storage

import (
	"testing"
	"time"

	"github.com/Data-Wise/atlas-sub001/internal/registry"
	"github.com/Data-Wise/atlas-sub001/internal/triage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsApplied(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations error: %v", err)
	}
	if len(versions) == 0 {
		t.Fatal("no migrations applied")
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("versions not strictly ascending: %v", versions)
		}
	}
}

func TestMigrationsIdempotentOnDisk(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	first, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()
	second, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != len(second) {
		t.Errorf("reopen changed applied migrations: %v vs %v", first, second)
	}
}

func TestProjectRoundtrip(t *testing.T) {
	s := openTestStore(t)

	prog := 0.65
	p := registry.Project{
		ID:          registry.ProjectID("/r/demo"),
		Path:        "/r/demo",
		Name:        "demo",
		Type:        registry.TypeGo,
		Description: "a demo project",
		Tags:        []string{"tools", "cli"},
		Metadata: registry.Metadata{
			Status:      "active",
			Progress:    &prog,
			NextAction:  "ship v1",
			NextActions: []string{"ship v1", "write changelog"},
			Metrics:     map[string]any{"stars": float64(12)},
			Notes:       "going well",
		},
		TotalSessions: 3,
		TotalDuration: 99.5,
	}
	if err := s.SaveProject(p); err != nil {
		t.Fatalf("SaveProject error: %v", err)
	}

	got, err := s.FindProject(p.ID)
	if err != nil {
		t.Fatalf("FindProject error: %v", err)
	}
	if got == nil {
		t.Fatal("saved project not found")
	}
	if got.Name != "demo" || got.Type != registry.TypeGo {
		t.Errorf("basic fields = %q/%q", got.Name, got.Type)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "tools" {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.Metadata.Status != "active" || got.Metadata.NextAction != "ship v1" {
		t.Errorf("metadata = %+v", got.Metadata)
	}
	if got.Metadata.Progress == nil || *got.Metadata.Progress != 0.65 {
		t.Errorf("progress = %v", got.Metadata.Progress)
	}
	if got.Metadata.Metrics["stars"] != float64(12) {
		t.Errorf("metrics = %v", got.Metadata.Metrics)
	}
	if got.TotalSessions != 3 || got.TotalDuration != 99.5 {
		t.Errorf("session stats = %d/%v", got.TotalSessions, got.TotalDuration)
	}
}

func TestProjectUpsert(t *testing.T) {
	s := openTestStore(t)

	p := registry.Project{ID: "p1", Path: "/r/a", Name: "a", Type: registry.TypeGeneral}
	if err := s.SaveProject(p); err != nil {
		t.Fatal(err)
	}

	p.Type = registry.TypeGo
	p.Description = "now with go.mod"
	if err := s.SaveProject(p); err != nil {
		t.Fatal(err)
	}

	got, err := s.FindProject("p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != registry.TypeGo || got.Description != "now with go.mod" {
		t.Errorf("upsert did not update: %+v", got)
	}

	all, err := s.AllProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("upsert created a duplicate row: %d rows", len(all))
	}
}

func TestFindProject_Missing(t *testing.T) {
	s := openTestStore(t)

	p, err := s.FindProject("nope")
	if err != nil {
		t.Fatalf("FindProject error: %v", err)
	}
	if p != nil {
		t.Errorf("missing project returned %+v", p)
	}
}

func TestFindProjectByPath(t *testing.T) {
	s := openTestStore(t)

	p := registry.Project{ID: "p1", Path: "/r/alpha", Name: "alpha", Type: registry.TypeGo}
	if err := s.SaveProject(p); err != nil {
		t.Fatal(err)
	}

	got, err := s.FindProjectByPath("/r/alpha")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "p1" {
		t.Errorf("lookup by path = %+v", got)
	}
}

func TestAllProjects_OrderedByName(t *testing.T) {
	s := openTestStore(t)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		p := registry.Project{ID: "id-" + name, Path: "/r/" + name, Name: name, Type: registry.TypeGeneral}
		if err := s.SaveProject(p); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.AllProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Name != "alpha" || all[2].Name != "zeta" {
		t.Errorf("order = %v", []string{all[0].Name, all[1].Name, all[2].Name})
	}
}

func TestDeleteProject(t *testing.T) {
	s := openTestStore(t)

	p := registry.Project{ID: "p1", Path: "/r/a", Name: "a", Type: registry.TypeGeneral}
	if err := s.SaveProject(p); err != nil {
		t.Fatal(err)
	}

	existed, err := s.DeleteProject("p1")
	if err != nil {
		t.Fatal(err)
	}
	if !existed {
		t.Error("existed = false for a present project")
	}

	existed, err = s.DeleteProject("p1")
	if err != nil {
		t.Fatal(err)
	}
	if existed {
		t.Error("existed = true for an absent project")
	}
}

func TestCaptureRoundtrip(t *testing.T) {
	s := openTestStore(t)

	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	c := triage.Capture{
		ID:        "c1",
		Type:      triage.TypeIdea,
		Status:    triage.StatusInbox,
		Content:   "what if the scanner watched inotify",
		Tags:      []string{"scanner"},
		CreatedAt: created,
	}
	if err := s.SaveCapture(c); err != nil {
		t.Fatalf("SaveCapture error: %v", err)
	}

	got, err := s.FindCapture("c1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("saved capture not found")
	}
	if got.Type != triage.TypeIdea || got.Content != c.Content {
		t.Errorf("capture = %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt, created)
	}
}

func TestCapturesByStatus(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC()
	for i, status := range []string{triage.StatusInbox, triage.StatusInbox, triage.StatusArchived} {
		c := triage.Capture{
			ID:        []string{"c1", "c2", "c3"}[i],
			Type:      triage.TypeNote,
			Status:    status,
			Content:   "x",
			CreatedAt: now,
		}
		if err := s.SaveCapture(c); err != nil {
			t.Fatal(err)
		}
	}

	inbox, err := s.CapturesByStatus(triage.StatusInbox)
	if err != nil {
		t.Fatal(err)
	}
	if len(inbox) != 2 {
		t.Errorf("inbox = %d captures, want 2", len(inbox))
	}
}

func TestCaptureStatusTransitionPersists(t *testing.T) {
	s := openTestStore(t)

	c := triage.Capture{
		ID: "c1", Type: triage.TypeNote, Status: triage.StatusInbox,
		Content: "x", CreatedAt: time.Now().UTC(),
	}
	if err := s.SaveCapture(c); err != nil {
		t.Fatal(err)
	}

	c.Status = triage.StatusTriaged
	c.Project = "demo"
	if err := s.SaveCapture(c); err != nil {
		t.Fatal(err)
	}

	got, err := s.FindCapture("c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != triage.StatusTriaged || got.Project != "demo" {
		t.Errorf("capture = %+v", got)
	}
}

func TestJobLifecycle(t *testing.T) {
	s := openTestStore(t)

	job := Job{ID: "j1", Type: JobTypeRegistrySync, PayloadJSON: `{"rootPaths":["/r"]}`}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob error: %v", err)
	}

	claimed, err := s.ClaimNextJob([]string{JobTypeRegistrySync})
	if err != nil {
		t.Fatalf("ClaimNextJob error: %v", err)
	}
	if claimed == nil || claimed.ID != "j1" {
		t.Fatalf("claimed = %+v", claimed)
	}
	if claimed.Status != "running" {
		t.Errorf("claimed status = %q", claimed.Status)
	}

	// A running job cannot be claimed again.
	again, err := s.ClaimNextJob([]string{JobTypeRegistrySync})
	if err != nil {
		t.Fatal(err)
	}
	if again != nil {
		t.Errorf("claimed a running job: %+v", again)
	}

	if err := s.CompleteJob("j1"); err != nil {
		t.Fatalf("CompleteJob error: %v", err)
	}
}

func TestClaimNextJob_EmptyQueue(t *testing.T) {
	s := openTestStore(t)

	j, err := s.ClaimNextJob([]string{JobTypeRegistrySync})
	if err != nil {
		t.Fatal(err)
	}
	if j != nil {
		t.Errorf("claimed from empty queue: %+v", j)
	}
}

func TestFailJob_RetriesWithBackoff(t *testing.T) {
	s := openTestStore(t)

	job := Job{ID: "j1", Type: JobTypeRegistrySync, PayloadJSON: "{}", MaxAttempts: 3}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ClaimNextJob([]string{JobTypeRegistrySync}); err != nil {
		t.Fatal(err)
	}

	if err := s.FailJob("j1", "scan failed"); err != nil {
		t.Fatalf("FailJob error: %v", err)
	}

	// Back in the queue but pushed into the future, so not yet claimable.
	j, err := s.ClaimNextJob([]string{JobTypeRegistrySync})
	if err != nil {
		t.Fatal(err)
	}
	if j != nil {
		t.Errorf("failed job claimable before backoff elapsed: %+v", j)
	}
}

func TestFailJob_ExhaustsAttempts(t *testing.T) {
	s := openTestStore(t)

	job := Job{ID: "j1", Type: JobTypeRegistrySync, PayloadJSON: "{}", MaxAttempts: 1}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ClaimNextJob([]string{JobTypeRegistrySync}); err != nil {
		t.Fatal(err)
	}

	if err := s.FailJob("j1", "scan failed"); err != nil {
		t.Fatal(err)
	}

	var status string
	var lastError string
	if err := s.db.QueryRow("SELECT status, last_error FROM jobs WHERE id = 'j1'").Scan(&status, &lastError); err != nil {
		t.Fatal(err)
	}
	if status != "failed" {
		t.Errorf("status = %q, want failed", status)
	}
	if lastError != "scan failed" {
		t.Errorf("last_error = %q", lastError)
	}
}

func TestFailJob_Missing(t *testing.T) {
	s := openTestStore(t)
	if err := s.FailJob("ghost", "x"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
