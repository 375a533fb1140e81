package logx

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func decodeLines(t *testing.T, b []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(b), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestNewJSONWritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, "debug").With(String("comp", "test"))

	log.Info("hello", Int("n", 3), Duration("took", 1500*time.Millisecond))
	log.Error("boom", Err(os.ErrNotExist))

	recs := decodeLines(t, buf.Bytes())
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0]["level"] != "info" || recs[0]["message"] != "hello" || recs[0]["comp"] != "test" {
		t.Fatalf("unexpected first record: %v", recs[0])
	}
	if recs[0]["n"] != float64(3) {
		t.Fatalf("n = %v, want 3", recs[0]["n"])
	}
	if recs[1]["level"] != "error" || recs[1]["err"] == nil {
		t.Fatalf("unexpected second record: %v", recs[1])
	}
	if c, _ := recs[1]["caller"].(string); !strings.HasPrefix(c, "logx_test.go:") {
		t.Fatalf("caller = %q, want logx_test.go:<line>", c)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, "warn")
	log.Debug("dropped")
	log.Info("dropped")
	log.Warn("kept")

	recs := decodeLines(t, buf.Bytes())
	if len(recs) != 1 || recs[0]["message"] != "kept" {
		t.Fatalf("unexpected records: %v", recs)
	}
	if log.Enabled(LevelInfo) {
		t.Fatal("info should be disabled at warn level")
	}
	if !log.Enabled(LevelError) {
		t.Fatal("error should be enabled at warn level")
	}
}

func TestJobFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, "info").With(Job("j1", "PrintLineJob"))
	log.Info("tagged")
	NewJSON(&buf, "info").Warn("id only", Job("j2", ""))

	recs := decodeLines(t, buf.Bytes())
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0][KeyJobID] != "j1" || recs[0][KeyJobType] != "PrintLineJob" {
		t.Fatalf("unexpected job fields: %v", recs[0])
	}
	if _, ok := recs[1][KeyJobType]; ok || recs[1][KeyJobID] != "j2" {
		t.Fatalf("empty type should be omitted: %v", recs[1])
	}
}

func TestZeroLoggerIsNoop(t *testing.T) {
	var log Logger
	if !log.IsZero() {
		t.Fatal("zero value should report IsZero")
	}
	// Must not panic.
	log.Info("nothing", String("k", "v"))
	if Nop().IsZero() {
		t.Fatal("Nop() should not be the zero value")
	}
}

func TestServiceFileSinkAndApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "output.log")

	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	t.Cleanup(func() { _ = svc.Close() })

	log.Info("first")
	log.Debug("hidden")

	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	log.Debug("second")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	recs := decodeLines(t, b)
	var msgs []string
	for _, r := range recs {
		msgs = append(msgs, r["message"].(string))
	}
	if strings.Join(msgs, ",") != "first,second" {
		t.Fatalf("messages = %v, want [first second]", msgs)
	}
	if got := svc.Config().Level; got != "debug" {
		t.Fatalf("Config().Level = %q, want debug", got)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := map[string]Level{
		"trace":   LevelTrace,
		"DEBUG":   LevelDebug,
		" info ":  LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
