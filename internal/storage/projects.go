package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Data-Wise/atlas-sub001/internal/registry"
)

// SaveProject inserts or updates a project record, keyed by id. The
// created_at stamp of an existing row is preserved.
func (s *Store) SaveProject(p registry.Project) error {
	tags, err := marshalJSON(p.Tags, "[]")
	if err != nil {
		return fmt.Errorf("marshalling tags: %w", err)
	}
	meta, err := marshalJSON(p.Metadata, "{}")
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.Exec(`
		INSERT INTO projects (id, path, name, type, description, tags, metadata, total_sessions, total_duration, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			name = excluded.name,
			type = excluded.type,
			description = excluded.description,
			tags = excluded.tags,
			metadata = excluded.metadata,
			total_sessions = excluded.total_sessions,
			total_duration = excluded.total_duration,
			updated_at = excluded.updated_at`,
		p.ID, p.Path, p.Name, p.Type, p.Description, tags, meta,
		p.TotalSessions, p.TotalDuration, now, now,
	)
	return err
}

// FindProject returns the project with the given id, or (nil, nil) when
// no record exists.
func (s *Store) FindProject(id string) (*registry.Project, error) {
	return s.findProjectWhere("id = ?", id)
}

// FindProjectByPath returns the project at the given path, or (nil, nil)
// when no record exists.
func (s *Store) FindProjectByPath(path string) (*registry.Project, error) {
	return s.findProjectWhere("path = ?", path)
}

func (s *Store) findProjectWhere(where string, arg any) (*registry.Project, error) {
	row := s.db.QueryRow(`
		SELECT id, path, name, type, description, tags, metadata, total_sessions, total_duration
		FROM projects WHERE `+where, arg)

	p, err := scanProject(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// AllProjects returns every persisted project ordered by name.
func (s *Store) AllProjects() ([]registry.Project, error) {
	rows, err := s.db.Query(`
		SELECT id, path, name, type, description, tags, metadata, total_sessions, total_duration
		FROM projects ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []registry.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, *p)
	}
	return results, rows.Err()
}

// DeleteProject removes a project and reports whether a record existed.
func (s *Store) DeleteProject(id string) (bool, error) {
	res, err := s.db.Exec("DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanProject(scan func(dest ...any) error) (*registry.Project, error) {
	var p registry.Project
	var tags, meta string
	if err := scan(&p.ID, &p.Path, &p.Name, &p.Type, &p.Description, &tags, &meta,
		&p.TotalSessions, &p.TotalDuration); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("parsing tags for project %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(meta), &p.Metadata); err != nil {
		return nil, fmt.Errorf("parsing metadata for project %s: %w", p.ID, err)
	}
	return &p, nil
}

// marshalJSON encodes v, substituting empty for nil-ish values so the
// column never stores the literal "null".
func marshalJSON(v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}
