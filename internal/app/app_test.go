package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cronsched/internal/registry"
	"cronsched/internal/task/execution"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func quietSettings(t *testing.T, dir, extra string) string {
	t.Helper()
	p := filepath.Join(dir, "settings.yaml")
	writeFile(t, p, "logging: {level: error, console: false}\n"+extra)
	return p
}

func TestAppRunsRosterAndRecordsHistory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	roster := filepath.Join(dir, "config.txt")
	writeFile(t, roster, "PrintLineJob = j1, 0, MINUTELY\nCurrentTimeJob = j2, 30, HOURLY\n")
	settings := quietSettings(t, dir, "storage: {driver: file, path: "+filepath.Join(dir, "history.jsonl")+"}\n")

	a, err := New(Options{ConfigPath: settings, RosterPath: roster, PoolSize: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		st, _ := a.Scheduler().State("j1")
		h, _ := a.History(context.Background(), "j1", 10)
		if st == execution.Finished && len(h) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("j1 state = %v, history = %d", st, len(h))
		}
		time.Sleep(5 * time.Millisecond)
	}
	if st, _ := a.Scheduler().State("j2"); st != execution.Scheduled {
		t.Fatalf("j2 state = %v, want SCHEDULED", st)
	}
	if jobs := a.Jobs(); len(jobs) != 2 || jobs[0].ID != "j1" || jobs[1].ID != "j2" {
		t.Fatalf("Jobs = %+v", jobs)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Stop(ctx, StopAppStop); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestAppRejectsUnknownType(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	roster := filepath.Join(dir, "config.txt")
	writeFile(t, roster, "PrintLineJob = j1, 0, MINUTELY\nNoSuchJob = j2, 0, DAILY\n")

	_, err := New(Options{ConfigPath: quietSettings(t, dir, ""), RosterPath: roster, PoolSize: 1})
	if !errors.Is(err, ErrConfig) || !errors.Is(err, registry.ErrUnknownType) {
		t.Fatalf("err = %v, want ErrConfig wrapping ErrUnknownType", err)
	}
}

func TestAppRejectsMissingRoster(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	_, err := New(Options{ConfigPath: quietSettings(t, dir, ""), RosterPath: filepath.Join(dir, "absent.txt"), PoolSize: 1})
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
}

func TestHistoryDisabledWithoutStorage(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	roster := filepath.Join(dir, "config.txt")
	writeFile(t, roster, "PrintLineJob = j1, 5, DAILY\n")
	a, err := New(Options{ConfigPath: quietSettings(t, dir, ""), RosterPath: roster, PoolSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer a.logs.Close()
	if _, err := a.History(context.Background(), "j1", 1); err == nil {
		t.Fatal("History should fail when storage is disabled")
	}
}
