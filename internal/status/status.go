// Package status reads user-maintained project status files: a YAML front
// matter block followed by a free-text markdown body.
package status

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFilename is the status file looked up inside each project directory.
const DefaultFilename = "PROJECT-STATUS.md"

// NextAction is a single entry of the ordered next-actions list.
// In YAML it may be written either as a plain string or as a mapping
// with action/done keys.
type NextAction struct {
	Action string `yaml:"action"`
	Done   bool   `yaml:"done"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (n *NextAction) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		n.Action = node.Value
		n.Done = false
		return nil
	}
	type plain NextAction
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*n = NextAction(p)
	return nil
}

// Data is the parsed content of a status file. All fields are optional;
// a zero field means "not present in the file".
type Data struct {
	Status   string         `yaml:"status"`
	Progress *float64       `yaml:"progress"`
	Type     string         `yaml:"type"`
	Next     []NextAction   `yaml:"next"`
	Metrics  map[string]any `yaml:"metrics"`
	Body     string         `yaml:"-"`
}

// Reader reads status files from project directories.
type Reader struct {
	filename string
}

// NewReader returns a Reader for the given filename; empty means
// DefaultFilename.
func NewReader(filename string) *Reader {
	if filename == "" {
		filename = DefaultFilename
	}
	return &Reader{filename: filename}
}

// Read parses the status file inside dir. A missing file is not an error:
// it returns (nil, nil). Only I/O failures and malformed front matter
// propagate.
func (r *Reader) Read(dir string) (*Data, error) {
	path := filepath.Join(dir, r.filename)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading status file %s: %w", path, err)
	}
	d, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing status file %s: %w", path, err)
	}
	return d, nil
}

var frontMatterFence = []byte("---")

// Parse splits raw content into YAML front matter and markdown body.
// Content without a front matter fence is treated as body only.
func Parse(raw []byte) (*Data, error) {
	trimmed := bytes.TrimLeft(raw, "\n\r \t")
	if !bytes.HasPrefix(trimmed, frontMatterFence) {
		return &Data{Body: string(bytes.TrimSpace(raw))}, nil
	}

	rest := trimmed[len(frontMatterFence):]
	rest = bytes.TrimPrefix(rest, []byte("\r"))
	rest = bytes.TrimPrefix(rest, []byte("\n"))

	var front, body []byte
	if idx := bytes.Index(rest, []byte("\n---")); idx >= 0 {
		front = rest[:idx]
		body = rest[idx+len("\n---"):]
		if nl := bytes.IndexByte(body, '\n'); nl >= 0 {
			body = body[nl+1:]
		} else {
			body = nil
		}
	} else {
		// Unterminated fence: treat everything after it as front matter.
		front = rest
	}

	var d Data
	if err := yaml.Unmarshal(front, &d); err != nil {
		return nil, fmt.Errorf("front matter: %w", err)
	}
	d.Body = string(bytes.TrimSpace(body))
	return &d, nil
}
