package registry

// HasChanged reports whether a freshly scanned project differs from its
// persisted counterpart in any field a status file can alter. Tags,
// metrics, notes, and the cumulative session counters are deliberately
// excluded: the counters are updated through the session subsystem and
// comparing them would mark every project changed after any session.
func HasChanged(existing, updated Project) bool {
	if existing.Type != updated.Type {
		return true
	}
	if existing.Description != updated.Description {
		return true
	}
	if existing.Metadata.Status != updated.Metadata.Status {
		return true
	}
	if !progressEqual(existing.Metadata.Progress, updated.Metadata.Progress) {
		return true
	}
	if existing.Metadata.NextAction != updated.Metadata.NextAction {
		return true
	}
	return false
}

func progressEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
