package jobs

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"cronsched/internal/registry"
	"cronsched/internal/task/job"
	logx "cronsched/pkg/logx"
)

func TestRegisterBuiltins(t *testing.T) {
	t.Parallel()
	reg := registry.New()
	Register(reg, logx.Nop())
	want := []string{"CurrentTimeJob", "InfiniteSleepJob", "PrintLineJob"}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
		j, err := reg.New(want[i])
		if err != nil {
			t.Fatal(err)
		}
		if job.TypeName(j) != want[i] {
			t.Fatalf("TypeName = %q, want %q", job.TypeName(j), want[i])
		}
	}
}

func TestPrintLineAndCurrentTime(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := logx.NewJSON(&buf, "info")

	if err := (&PrintLineJob{Log: log}).Run(); err != nil {
		t.Fatal(err)
	}
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)
	if err := (&CurrentTimeJob{Log: log, Now: func() time.Time { return fixed }}).Run(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Hello, this is a simple line!") {
		t.Fatalf("missing print line record: %s", out)
	}
	if !strings.Contains(out, "Current time is 2024-05-06 07:08:09") {
		t.Fatalf("missing time record: %s", out)
	}
}

func TestInfiniteSleepBlocksUntilWoken(t *testing.T) {
	t.Parallel()
	wake := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- (&InfiniteSleepJob{Log: logx.Nop(), Wake: wake}).Run() }()

	select {
	case <-done:
		t.Fatal("sleep job returned before wake")
	case <-time.After(30 * time.Millisecond):
	}
	close(wake)
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("sleep job did not wake")
	}
}
