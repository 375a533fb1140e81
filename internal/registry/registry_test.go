package registry

import (
	"errors"
	"testing"

	"cronsched/internal/task/job"
)

type pingJob struct{}

func (pingJob) Run() error { return nil }

func TestRegisterAndNew(t *testing.T) {
	t.Parallel()
	r := New()
	if err := r.Register("Ping", func() job.Job { return pingJob{} }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	j, err := r.New(" Ping ")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if job.TypeName(j) != "pingJob" {
		t.Fatalf("TypeName = %q", job.TypeName(j))
	}
	if names := r.Names(); len(names) != 1 || names[0] != "Ping" {
		t.Fatalf("Names() = %v", names)
	}
}

func TestRegistryErrors(t *testing.T) {
	t.Parallel()
	r := New()
	r.MustRegister("A", func() job.Job { return pingJob{} })

	if err := r.Register("A", func() job.Job { return pingJob{} }); !errors.Is(err, ErrDuplicateType) {
		t.Fatalf("duplicate: err = %v", err)
	}
	if err := r.Register("", func() job.Job { return pingJob{} }); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("empty name: err = %v", err)
	}
	if err := r.Register("B", nil); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("nil factory: err = %v", err)
	}
	if _, err := r.New("a"); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("case mismatch: err = %v, want ErrUnknownType", err)
	}
	r.MustRegister("Nil", func() job.Job { return nil })
	if _, err := r.New("Nil"); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("nil job: err = %v", err)
	}
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	t.Parallel()
	r := New()
	r.MustRegister("A", func() job.Job { return pingJob{} })
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	r.MustRegister("A", func() job.Job { return pingJob{} })
}
