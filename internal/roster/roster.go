// Package roster reads the list of jobs to schedule at startup.
//
// Two formats are accepted, chosen by file extension:
//
//	# config.txt (properties): TypeName = jobId, offsetMinutes, FREQUENCY
//	PrintLineJob = j1, 0, MINUTELY
//	CurrentTimeJob: j2, 5, hourly
//
//	# jobs.yaml
//	jobs:
//	  - {type: PrintLineJob, id: j1, offset: 0, frequency: MINUTELY}
package roster

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	yaml "go.yaml.in/yaml/v3"

	"cronsched/internal/task/job"
)

var (
	ErrSyntax      = errors.New("roster syntax error")
	ErrDuplicateID = errors.New("duplicate job id in roster")
)

// Entry is one roster line: the job type to build and its schedule.
type Entry struct {
	Type   string
	Record job.Record
	Line   int // 1-based source line, 0 if unknown
}

// Load reads and parses the roster file at path.
func Load(path string) ([]Entry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	entries, err := Parse(path, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// Parse decodes r using the format implied by name's extension.
func Parse(name string, r io.Reader) ([]Entry, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return ParseYAML(r)
	default:
		return ParseProperties(r)
	}
}

// ParseProperties reads "Type = id, offset, FREQUENCY" lines. '=' or ':'
// separates key and value; lines starting with '#' or '!' are comments.
func ParseProperties(r io.Reader) ([]Entry, error) {
	var (
		out  []Entry
		seen = map[string]int{}
		sc   = bufio.NewScanner(r)
		n    = 0
	)
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == '!' {
			continue
		}
		i := strings.IndexAny(line, "=:")
		if i < 0 {
			return nil, fmt.Errorf("line %d: %w: want Type = id, offset, FREQUENCY", n, ErrSyntax)
		}
		typ := strings.TrimSpace(line[:i])
		parts := strings.Split(line[i+1:], ",")
		if typ == "" || len(parts) != 3 {
			return nil, fmt.Errorf("line %d: %w: want Type = id, offset, FREQUENCY", n, ErrSyntax)
		}
		offset, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: offset %q is not an integer", n, ErrSyntax, strings.TrimSpace(parts[1]))
		}
		e, err := newEntry(n, typ, parts[0], offset, parts[2], seen)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type yamlRoster struct {
	Jobs []yamlEntry `yaml:"jobs"`
}

type yamlEntry struct {
	Type      string `yaml:"type"`
	ID        string `yaml:"id"`
	Offset    int    `yaml:"offset"`
	Frequency string `yaml:"frequency"`
}

// ParseYAML reads a document of the form {jobs: [{type, id, offset, frequency}]}.
func ParseYAML(r io.Reader) ([]Entry, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
	}
	var raw yamlRoster
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
	}
	lines := entryLines(&doc)

	out := make([]Entry, 0, len(raw.Jobs))
	seen := map[string]int{}
	for i, y := range raw.Jobs {
		line := 0
		if i < len(lines) {
			line = lines[i]
		}
		if strings.TrimSpace(y.Type) == "" {
			return nil, fmt.Errorf("line %d: %w: type is required", line, ErrSyntax)
		}
		e, err := newEntry(line, y.Type, y.ID, y.Offset, y.Frequency, seen)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// entryLines returns the source line of each item under "jobs".
func entryLines(doc *yaml.Node) []int {
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "jobs" {
			continue
		}
		var out []int
		for _, item := range root.Content[i+1].Content {
			out = append(out, item.Line)
		}
		return out
	}
	return nil
}

func newEntry(line int, typ, id string, offset int, freq string, seen map[string]int) (Entry, error) {
	f, err := job.ParseFrequency(freq)
	if err != nil {
		return Entry{}, fmt.Errorf("line %d: %w", line, err)
	}
	rec := job.Record{
		ID:          strings.TrimSpace(id),
		Type:        strings.TrimSpace(typ),
		Frequency:   f,
		StartOffset: offset,
	}
	if err := rec.Validate(); err != nil {
		return Entry{}, fmt.Errorf("line %d: %w", line, err)
	}
	if prev, ok := seen[rec.ID]; ok {
		return Entry{}, fmt.Errorf("line %d: %w: %s (first at line %d)", line, ErrDuplicateID, rec.ID, prev)
	}
	seen[rec.ID] = line
	return Entry{Type: rec.Type, Record: rec, Line: line}, nil
}
