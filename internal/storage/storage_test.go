package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cronsched/internal/eventbus"
	"cronsched/internal/task/execution"
	logx "cronsched/pkg/logx"
)

func openTest(t *testing.T, driver string, retain int) (Store, Config) {
	t.Helper()
	name := "history.jsonl"
	if driver == "sqlite" {
		name = "history.db"
	}
	cfg := Config{Driver: driver, Path: filepath.Join(t.TempDir(), "nested", name), Retain: retain}
	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%s): %v", driver, err)
	}
	return st, cfg
}

func exec(job string, i int, outcome Outcome) Execution {
	e := Execution{
		ID:       fmt.Sprintf("%s-%d", job, i),
		JobID:    job,
		JobType:  "PrintLineJob",
		Outcome:  outcome,
		Started:  time.Date(2024, 1, 1, 0, i, 0, 0, time.UTC),
		Duration: time.Duration(i) * time.Millisecond,
	}
	if outcome == OutcomeFailed {
		e.Error = "boom"
	}
	return e
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, d := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: d}, logx.Nop())
		if st != nil || err != nil {
			t.Fatalf("Open(%q) = %v, %v; want nil, nil", d, st, err)
		}
	}
	if _, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop()); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("err = %v, want ErrUnknownDriver", err)
	}
}

func TestStoresRoundTrip(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			st, cfg := openTest(t, driver, 3)

			for i := 1; i <= 5; i++ {
				outcome := OutcomeFinished
				if i%2 == 0 {
					outcome = OutcomeFailed
				}
				if err := st.AppendExecution(ctx, exec("j1", i, outcome)); err != nil {
					t.Fatalf("append: %v", err)
				}
			}
			if err := st.AppendExecution(ctx, exec("j2", 1, OutcomeSkipped)); err != nil {
				t.Fatal(err)
			}

			got, err := st.RecentExecutions(ctx, "j1", 2)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 2 || got[0].ID != "j1-5" || got[1].ID != "j1-4" {
				t.Fatalf("recent = %+v", got)
			}
			if got[1].Outcome != OutcomeFailed || got[1].Error != "boom" || got[1].Duration != 4*time.Millisecond {
				t.Fatalf("row not preserved: %+v", got[1])
			}
			if !got[0].Started.Equal(time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC)) {
				t.Fatalf("Started = %v", got[0].Started)
			}
			other, _ := st.RecentExecutions(ctx, "j2", 10)
			if len(other) != 1 || other[0].Outcome != OutcomeSkipped {
				t.Fatalf("j2 rows = %+v", other)
			}

			if err := st.Close(); err != nil {
				t.Fatal(err)
			}
			// History survives a restart.
			st2, err := Open(cfg, logx.Nop())
			if err != nil {
				t.Fatal(err)
			}
			defer st2.Close()
			again, err := st2.RecentExecutions(ctx, "j1", 1)
			if err != nil || len(again) != 1 || again[0].ID != "j1-5" {
				t.Fatalf("after reopen: %+v, %v", again, err)
			}
		})
	}
}

func TestFileStoreRetainsNewestAndSkipsBadLines(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "h.jsonl")
	if err := os.WriteFile(path, []byte("not json\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	st, err := Open(Config{Driver: "file", Path: path, Retain: 2}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	for i := 1; i <= 4; i++ {
		_ = st.AppendExecution(ctx, exec("j", i, OutcomeFinished))
	}
	got, _ := st.RecentExecutions(ctx, "j", 0)
	if len(got) != 2 || got[0].ID != "j-4" || got[1].ID != "j-3" {
		t.Fatalf("recent = %+v", got)
	}
}

func TestFileStoreCompaction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, cfg := openTest(t, "file", 5)
	defer st.Close()
	for i := 0; i < fileCompactEvery; i++ {
		if err := st.AppendExecution(ctx, exec("c", i, OutcomeFinished)); err != nil {
			t.Fatal(err)
		}
	}
	b, err := os.ReadFile(cfg.Path)
	if err != nil {
		t.Fatal(err)
	}
	lines := 0
	for _, c := range b {
		if c == '\n' {
			lines++
		}
	}
	if lines != 5 {
		t.Fatalf("file has %d lines after compaction, want 5", lines)
	}
	// Appends keep working on the reopened handle.
	if err := st.AppendExecution(ctx, exec("c", fileCompactEvery, OutcomeFinished)); err != nil {
		t.Fatal(err)
	}
}

func TestClosedFileStore(t *testing.T) {
	t.Parallel()
	st, _ := openTest(t, "file", 5)
	_ = st.Close()
	if err := st.AppendExecution(context.Background(), exec("x", 1, OutcomeFinished)); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestRecorderPersistsOutcomes(t *testing.T) {
	t.Parallel()
	st, _ := openTest(t, "file", 10)
	defer st.Close()
	bus := eventbus.New()
	rec := NewRecorder(st, bus, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = rec.Run(ctx)
		close(done)
	}()

	now := time.Now()
	bus.Publish(eventbus.Event{Type: eventbus.JobStarted, Data: execution.Event{ExecutionID: "a", JobID: "j"}})
	bus.Publish(eventbus.Event{Type: eventbus.JobFinished, Data: execution.Event{ExecutionID: "a", JobID: "j", JobType: "T", Started: now, Duration: time.Second}})
	bus.Publish(eventbus.Event{Type: eventbus.JobSkipped, Data: execution.Event{JobID: "j", JobType: "T", Started: now}})
	bus.Publish(eventbus.Event{Type: eventbus.JobFailed, Data: execution.Event{ExecutionID: "b", JobID: "j", JobType: "T", Started: now, Error: "x"}})
	bus.Publish(eventbus.Event{Type: eventbus.JobFinished, Data: "not an execution event"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		if w, _ := rec.Stats(); w == 3 {
			break
		}
		if time.Now().After(deadline) {
			w, f := rec.Stats()
			t.Fatalf("written=%d failed=%d, want 3 written", w, f)
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	got, _ := st.RecentExecutions(context.Background(), "j", 10)
	if len(got) != 3 {
		t.Fatalf("rows = %+v", got)
	}
	if got[0].Outcome != OutcomeFailed || got[1].Outcome != OutcomeSkipped || got[2].Outcome != OutcomeFinished {
		t.Fatalf("unexpected order: %+v", got)
	}
}
