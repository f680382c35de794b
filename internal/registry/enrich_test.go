package registry

import (
	"strings"
	"testing"

	"github.com/Data-Wise/atlas-sub001/internal/status"
)

func floatPtr(v float64) *float64 { return &v }

func TestEnrich_NilData(t *testing.T) {
	p := Project{ID: "abc", Name: "demo", Description: "keep me"}

	Enrich(&p, nil)

	if p.Description != "keep me" || p.Metadata.Status != "" || p.Metadata.Notes != "" {
		t.Errorf("nil status data mutated project: %+v", p)
	}
}

func TestEnrich_AllFields(t *testing.T) {
	p := Project{ID: "abc", Name: "demo"}
	sd := &status.Data{
		Status:   "active",
		Progress: floatPtr(0.6),
		Type:     "package",
		Next: []status.NextAction{
			{Action: "write docs"},
			{Action: "cut release"},
		},
		Metrics: map[string]any{"coverage": 0.9},
		Body:    "working on the docs",
	}

	Enrich(&p, sd)

	if p.Metadata.Status != "active" {
		t.Errorf("status = %q, want active", p.Metadata.Status)
	}
	if p.Metadata.Progress == nil || *p.Metadata.Progress != 0.6 {
		t.Errorf("progress = %v, want 0.6", p.Metadata.Progress)
	}
	if p.Metadata.ProjectType != "package" {
		t.Errorf("projectType = %q, want package", p.Metadata.ProjectType)
	}
	if p.Metadata.NextAction != "write docs" {
		t.Errorf("nextAction = %q, want first action", p.Metadata.NextAction)
	}
	if len(p.Metadata.NextActions) != 2 {
		t.Errorf("nextActions = %v, want 2 entries", p.Metadata.NextActions)
	}
	if p.Description != "write docs" {
		t.Errorf("description = %q, want first action", p.Description)
	}
	if p.Metadata.Notes != "working on the docs" {
		t.Errorf("notes = %q", p.Metadata.Notes)
	}
}

func TestEnrich_ProgressCopied(t *testing.T) {
	p := Project{}
	prog := 0.5
	Enrich(&p, &status.Data{Progress: &prog})

	prog = 0.9
	if *p.Metadata.Progress != 0.5 {
		t.Errorf("progress aliases the source pointer: %v", *p.Metadata.Progress)
	}
}

func TestEnrich_DescriptionNotOverwritten(t *testing.T) {
	p := Project{Description: "hand-written summary"}
	Enrich(&p, &status.Data{Next: []status.NextAction{{Action: "task one"}}})

	if p.Description != "hand-written summary" {
		t.Errorf("existing description was overwritten: %q", p.Description)
	}
	if p.Metadata.NextAction != "task one" {
		t.Errorf("nextAction = %q", p.Metadata.NextAction)
	}
}

func TestEnrich_PartialDataKeepsExisting(t *testing.T) {
	p := Project{
		Metadata: Metadata{
			Status:   "paused",
			Progress: floatPtr(0.3),
		},
	}
	Enrich(&p, &status.Data{Type: "app"})

	if p.Metadata.Status != "paused" {
		t.Errorf("absent status field cleared existing value: %q", p.Metadata.Status)
	}
	if p.Metadata.Progress == nil || *p.Metadata.Progress != 0.3 {
		t.Errorf("absent progress field cleared existing value: %v", p.Metadata.Progress)
	}
	if p.Metadata.ProjectType != "app" {
		t.Errorf("projectType = %q", p.Metadata.ProjectType)
	}
}

func TestEnrich_MetricsOverwrittenWholesale(t *testing.T) {
	p := Project{
		Metadata: Metadata{Metrics: map[string]any{"old": 1, "shared": 1}},
	}
	Enrich(&p, &status.Data{Metrics: map[string]any{"shared": 2}})

	if len(p.Metadata.Metrics) != 1 {
		t.Errorf("metrics were merged instead of replaced: %v", p.Metadata.Metrics)
	}
	if p.Metadata.Metrics["shared"] != 2 {
		t.Errorf("metrics[shared] = %v, want 2", p.Metadata.Metrics["shared"])
	}
}

func TestEnrich_NotesTruncated(t *testing.T) {
	body := strings.Repeat("x", 600)
	p := Project{}
	Enrich(&p, &status.Data{Body: body})

	if len([]rune(p.Metadata.Notes)) != 500 {
		t.Errorf("notes length = %d, want 500", len([]rune(p.Metadata.Notes)))
	}
}

func TestEnrich_NotesTruncationRuneSafe(t *testing.T) {
	body := strings.Repeat("é", 600)
	p := Project{}
	Enrich(&p, &status.Data{Body: body})

	notes := []rune(p.Metadata.Notes)
	if len(notes) != 500 {
		t.Errorf("notes rune length = %d, want 500", len(notes))
	}
	for _, r := range notes {
		if r != 'é' {
			t.Fatalf("truncation split a rune: %q", r)
		}
	}
}

func TestEnrich_Idempotent(t *testing.T) {
	sd := &status.Data{
		Status:   "active",
		Progress: floatPtr(0.4),
		Next:     []status.NextAction{{Action: "ship it"}},
		Metrics:  map[string]any{"n": 1},
		Body:     "notes",
	}

	p := Project{Name: "demo"}
	Enrich(&p, sd)
	first := p

	Enrich(&p, sd)
	if p.Metadata.Status != first.Metadata.Status ||
		*p.Metadata.Progress != *first.Metadata.Progress ||
		p.Metadata.NextAction != first.Metadata.NextAction ||
		p.Metadata.Notes != first.Metadata.Notes ||
		p.Description != first.Description {
		t.Errorf("second enrichment changed the result:\nfirst: %+v\nsecond: %+v", first, p)
	}
}

func TestProjectID_StableAndDistinct(t *testing.T) {
	a := ProjectID("/home/u/projects/alpha")
	b := ProjectID("/home/u/projects/alpha")
	c := ProjectID("/home/u/projects/beta")

	if a != b {
		t.Errorf("same path produced different ids: %s vs %s", a, b)
	}
	if a == c {
		t.Errorf("different paths produced the same id: %s", a)
	}
	if len(a) != 12 {
		t.Errorf("id length = %d, want 12", len(a))
	}
}
