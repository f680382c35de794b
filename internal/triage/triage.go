// Package triage implements the capture inbox workflow: quick captures
// enter as inbox items and are routed out by assigning them to a project,
// archiving, converting, or deleting them.
package triage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Data-Wise/atlas-sub001/internal/registry"
)

// Capture types.
const (
	TypeIdea     = "idea"
	TypeTask     = "task"
	TypeBug      = "bug"
	TypeNote     = "note"
	TypeQuestion = "question"
)

// Capture statuses. Triage is one-way: a capture never returns to inbox.
const (
	StatusInbox    = "inbox"
	StatusTriaged  = "triaged"
	StatusArchived = "archived"
)

// Batch actions accepted by BatchProcess.
const (
	ActionArchive = "archive"
	ActionDelete  = "delete"
)

var validTypes = map[string]bool{
	TypeIdea:     true,
	TypeTask:     true,
	TypeBug:      true,
	TypeNote:     true,
	TypeQuestion: true,
}

// ValidType reports whether t is a recognized capture type.
func ValidType(t string) bool {
	return validTypes[t]
}

// Capture is a quick note/idea/task waiting for triage.
type Capture struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Content   string    `json:"content"`
	Project   string    `json:"project,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// CaptureStore abstracts capture persistence. FindCapture returns
// (nil, nil) when no record exists; DeleteCapture reports whether a
// record was actually removed.
type CaptureStore interface {
	FindCapture(id string) (*Capture, error)
	CapturesByStatus(status string) ([]Capture, error)
	SaveCapture(c Capture) error
	DeleteCapture(id string) (bool, error)
}

// ProjectResolver resolves assignment targets, by id first and by path as
// a fallback. Both return (nil, nil) when no record exists.
type ProjectResolver interface {
	FindProject(id string) (*registry.Project, error)
	FindProjectByPath(path string) (*registry.Project, error)
}

// Publisher is an optional fire-and-forget event sink.
type Publisher interface {
	Publish(event string, payload map[string]any)
}

// AssignOptions carries optional mutations applied while assigning.
type AssignOptions struct {
	Type string   // overrides the capture type when non-empty
	Tags []string // appended to the capture's tags
}

// BatchError records a failure for a single capture id.
type BatchError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchResult aggregates a batch run. Success is true only when no id
// failed; callers branch on it rather than on a returned error.
type BatchResult struct {
	Processed int          `json:"processed"`
	Failed    int          `json:"failed"`
	Errors    []BatchError `json:"errors"`
	Success   bool         `json:"success"`
}

// Triager drives the capture workflow.
type Triager struct {
	captures CaptureStore
	projects ProjectResolver
	events   Publisher // optional
	logger   *slog.Logger
}

// NewTriager wires a Triager. events may be nil; its absence never
// changes any returned result.
func NewTriager(captures CaptureStore, projects ProjectResolver, events Publisher) *Triager {
	return &Triager{
		captures: captures,
		projects: projects,
		events:   events,
		logger:   slog.Default(),
	}
}

// NextItem returns the oldest inbox capture, or nil when the inbox is
// empty. FIFO order keeps old captures from being starved.
func (t *Triager) NextItem() (*Capture, error) {
	inbox, err := t.captures.CapturesByStatus(StatusInbox)
	if err != nil {
		return nil, fmt.Errorf("listing inbox: %w", err)
	}
	if len(inbox) == 0 {
		return nil, nil
	}

	oldest := inbox[0]
	for _, c := range inbox[1:] {
		if c.CreatedAt.Before(oldest.CreatedAt) {
			oldest = c
		}
	}
	return &oldest, nil
}

// Assign routes an inbox capture to a project, resolved by id first and
// by path as a fallback, and transitions it to triaged.
func (t *Triager) Assign(captureID, projectRef string, opts AssignOptions) (*Capture, error) {
	c, err := t.captures.FindCapture(captureID)
	if err != nil {
		return nil, fmt.Errorf("looking up capture: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("Capture not found: %s", captureID)
	}
	if c.Status != StatusInbox {
		return nil, fmt.Errorf("capture %s is not in inbox (status %s)", captureID, c.Status)
	}

	p, err := t.projects.FindProject(projectRef)
	if err != nil {
		return nil, fmt.Errorf("looking up project: %w", err)
	}
	if p == nil {
		p, err = t.projects.FindProjectByPath(projectRef)
		if err != nil {
			return nil, fmt.Errorf("looking up project by path: %w", err)
		}
	}
	if p == nil {
		return nil, fmt.Errorf("Project not found: %s", projectRef)
	}

	name := p.Name
	if name == "" {
		name = projectRef
	}

	c.Project = name
	c.Status = StatusTriaged
	if opts.Type != "" {
		if !ValidType(opts.Type) {
			return nil, fmt.Errorf("invalid capture type %q", opts.Type)
		}
		c.Type = opts.Type
	}
	c.Tags = append(c.Tags, opts.Tags...)

	if err := t.captures.SaveCapture(*c); err != nil {
		return nil, fmt.Errorf("saving capture: %w", err)
	}
	t.publish("capture:triaged", map[string]any{"id": c.ID, "project": name})
	return c, nil
}

// Archive transitions a capture to archived.
func (t *Triager) Archive(captureID string) (*Capture, error) {
	c, err := t.captures.FindCapture(captureID)
	if err != nil {
		return nil, fmt.Errorf("looking up capture: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("Capture not found: %s", captureID)
	}

	c.Status = StatusArchived
	if err := t.captures.SaveCapture(*c); err != nil {
		return nil, fmt.Errorf("saving capture: %w", err)
	}
	t.publish("capture:archived", map[string]any{"id": c.ID})
	return c, nil
}

// Convert rewrites a capture's type without touching its status.
func (t *Triager) Convert(captureID, newType string) (*Capture, error) {
	if !ValidType(newType) {
		return nil, fmt.Errorf("invalid capture type %q", newType)
	}

	c, err := t.captures.FindCapture(captureID)
	if err != nil {
		return nil, fmt.Errorf("looking up capture: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("Capture not found: %s", captureID)
	}

	c.Type = newType
	if err := t.captures.SaveCapture(*c); err != nil {
		return nil, fmt.Errorf("saving capture: %w", err)
	}
	return c, nil
}

// Delete removes a capture unconditionally and reports whether a record
// actually existed.
func (t *Triager) Delete(captureID string) (bool, error) {
	existed, err := t.captures.DeleteCapture(captureID)
	if err != nil {
		return false, fmt.Errorf("deleting capture: %w", err)
	}
	return existed, nil
}

// BatchProcess applies archive or delete to each id independently. A
// failure on one id is recorded and the rest keep processing, mirroring
// the reconciliation driver's per-item containment.
func (t *Triager) BatchProcess(ids []string, action string) (*BatchResult, error) {
	if action != ActionArchive && action != ActionDelete {
		return nil, fmt.Errorf("invalid batch action %q", action)
	}

	result := &BatchResult{Errors: []BatchError{}}
	for _, id := range ids {
		var err error
		switch action {
		case ActionArchive:
			_, err = t.Archive(id)
		case ActionDelete:
			var existed bool
			existed, err = t.Delete(id)
			if err == nil && !existed {
				err = fmt.Errorf("Capture not found: %s", id)
			}
		}

		if err != nil {
			t.logger.Warn("batch item failed", "id", id, "action", action, "error", err)
			result.Failed++
			result.Errors = append(result.Errors, BatchError{ID: id, Error: err.Error()})
			continue
		}
		result.Processed++
	}

	result.Success = result.Failed == 0
	return result, nil
}

func (t *Triager) publish(event string, payload map[string]any) {
	if t.events == nil {
		return
	}
	t.events.Publish(event, payload)
}
