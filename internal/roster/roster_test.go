package roster

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cronsched/internal/task/job"
)

func TestParseProperties(t *testing.T) {
	t.Parallel()
	src := `
# jobs
! legacy comment
PrintLineJob = j1, 0, MINUTELY
CurrentTimeJob: j2 , 5, hourly
InfiniteSleepJob=j3,1,Weekly
PrintLineJob = j4, 1440, DAILY
`
	got, err := ParseProperties(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseProperties: %v", err)
	}
	want := []Entry{
		{Type: "PrintLineJob", Line: 4, Record: job.Record{ID: "j1", Type: "PrintLineJob", Frequency: job.Minutely}},
		{Type: "CurrentTimeJob", Line: 5, Record: job.Record{ID: "j2", Type: "CurrentTimeJob", Frequency: job.Hourly, StartOffset: 5}},
		{Type: "InfiniteSleepJob", Line: 6, Record: job.Record{ID: "j3", Type: "InfiniteSleepJob", Frequency: job.Weekly, StartOffset: 1}},
		{Type: "PrintLineJob", Line: 7, Record: job.Record{ID: "j4", Type: "PrintLineJob", Frequency: job.Daily, StartOffset: 1440}},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParsePropertiesErrors(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		src  string
		want error
		line string
	}{
		{"no separator", "PrintLineJob j1 0 MINUTELY", ErrSyntax, "line 1"},
		{"too few fields", "A = j1, 0", ErrSyntax, "line 1"},
		{"too many fields", "A = j1, 0, MINUTELY, extra", ErrSyntax, "line 1"},
		{"bad offset", "A = j1, soon, MINUTELY", ErrSyntax, "line 1"},
		{"negative offset", "A = j1, -3, MINUTELY", job.ErrInvalidOffset, "line 1"},
		{"bad frequency", "\nA = j1, 0, YEARLY", job.ErrInvalidFrequency, "line 2"},
		{"empty id", "A = , 0, DAILY", job.ErrEmptyID, "line 1"},
		{"duplicate id", "A = j1, 0, DAILY\nB = j1, 0, HOURLY", ErrDuplicateID, "line 2"},
	}
	for _, tc := range cases {
		_, err := ParseProperties(strings.NewReader(tc.src))
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
		if !strings.Contains(err.Error(), tc.line) {
			t.Fatalf("%s: err %q does not name %s", tc.name, err, tc.line)
		}
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	src := `jobs:
  - type: PrintLineJob
    id: j1
    offset: 0
    frequency: MINUTELY
  - {type: CurrentTimeJob, id: j2, offset: 2, frequency: daily}
`
	got, err := Parse("jobs.yaml", strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 2 || got[0].Record.ID != "j1" || got[1].Record.Frequency != job.Daily || got[1].Record.StartOffset != 2 {
		t.Fatalf("unexpected entries: %+v", got)
	}
	if got[0].Line != 2 || got[1].Line != 6 {
		t.Fatalf("lines = %d, %d", got[0].Line, got[1].Line)
	}
}

func TestParseYAMLErrors(t *testing.T) {
	t.Parallel()
	cases := map[string]struct {
		src  string
		want error
	}{
		"missing type": {"jobs:\n  - {id: j1, offset: 0, frequency: DAILY}\n", ErrSyntax},
		"bad offset":   {"jobs:\n  - {type: A, id: j1, offset: soon, frequency: DAILY}\n", ErrSyntax},
		"duplicate":    {"jobs:\n  - {type: A, id: j1, frequency: DAILY}\n  - {type: B, id: j1, frequency: DAILY}\n", ErrDuplicateID},
		"bad freq":     {"jobs:\n  - {type: A, id: j1, frequency: SOMETIMES}\n", job.ErrInvalidFrequency},
		"unknown key":  {"jobs:\n  - {type: A, id: j1, frequency: DAILY, every: 5}\n", ErrSyntax},
	}
	for name, tc := range cases {
		if _, err := ParseYAML(strings.NewReader(tc.src)); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", name, err, tc.want)
		}
	}
	got, err := ParseYAML(strings.NewReader(""))
	if err != nil || len(got) != 0 {
		t.Fatalf("empty document: %v, %v", got, err)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.txt")
	if err := os.WriteFile(path, []byte("PrintLineJob = j1, 0, MINUTELY\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil || len(got) != 1 {
		t.Fatalf("Load: %v, %v", got, err)
	}
	if _, err := Load(filepath.Join(dir, "missing.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file: err = %v", err)
	}
}
