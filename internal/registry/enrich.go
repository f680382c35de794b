package registry

import (
	"github.com/Data-Wise/atlas-sub001/internal/status"
)

// maxNotesLen bounds how much status-file body text is carried into the
// registry. Longer bodies are truncated, not rejected.
const maxNotesLen = 500

// Enrich merges a parsed status file into the project's metadata in place.
// Only fields present in sd are applied; a nil sd is a no-op. Metrics are
// overwritten wholesale — last writer wins, no deep merge.
func Enrich(p *Project, sd *status.Data) {
	if sd == nil {
		return
	}

	if sd.Status != "" {
		p.Metadata.Status = sd.Status
	}
	if sd.Progress != nil {
		v := *sd.Progress
		p.Metadata.Progress = &v
	}
	if sd.Type != "" {
		p.Metadata.ProjectType = sd.Type
	}

	if len(sd.Next) > 0 {
		actions := make([]string, len(sd.Next))
		for i, n := range sd.Next {
			actions[i] = n.Action
		}
		p.Metadata.NextAction = actions[0]
		p.Metadata.NextActions = actions
		if p.Description == "" {
			p.Description = actions[0]
		}
	}

	if sd.Metrics != nil {
		p.Metadata.Metrics = sd.Metrics
	}

	if sd.Body != "" {
		p.Metadata.Notes = truncate(sd.Body, maxNotesLen)
	}
}

// truncate cuts s to at most n characters, preserving rune boundaries.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
