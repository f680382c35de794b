package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Data-Wise/atlas-sub001/internal/triage"
)

// SaveCapture inserts or updates a capture record, keyed by id.
func (s *Store) SaveCapture(c triage.Capture) error {
	tags, err := marshalJSON(c.Tags, "[]")
	if err != nil {
		return fmt.Errorf("marshalling tags: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO captures (id, type, status, content, project, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			status = excluded.status,
			content = excluded.content,
			project = excluded.project,
			tags = excluded.tags`,
		c.ID, c.Type, c.Status, c.Content, c.Project, tags,
		c.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// FindCapture returns the capture with the given id, or (nil, nil) when
// no record exists.
func (s *Store) FindCapture(id string) (*triage.Capture, error) {
	row := s.db.QueryRow(`
		SELECT id, type, status, content, project, tags, created_at
		FROM captures WHERE id = ?`, id)

	c, err := scanCapture(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CapturesByStatus returns all captures with the given status. No
// ordering is guaranteed; callers that need FIFO order sort on CreatedAt.
func (s *Store) CapturesByStatus(status string) ([]triage.Capture, error) {
	rows, err := s.db.Query(`
		SELECT id, type, status, content, project, tags, created_at
		FROM captures WHERE status = ?`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []triage.Capture
	for rows.Next() {
		c, err := scanCapture(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, *c)
	}
	return results, rows.Err()
}

// DeleteCapture removes a capture and reports whether a record existed.
func (s *Store) DeleteCapture(id string) (bool, error) {
	res, err := s.db.Exec("DELETE FROM captures WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanCapture(scan func(dest ...any) error) (*triage.Capture, error) {
	var c triage.Capture
	var tags, createdAt string
	if err := scan(&c.ID, &c.Type, &c.Status, &c.Content, &c.Project, &tags, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
		return nil, fmt.Errorf("parsing tags for capture %s: %w", c.ID, err)
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at for capture %s: %w", c.ID, err)
	}
	c.CreatedAt = t
	return &c, nil
}
