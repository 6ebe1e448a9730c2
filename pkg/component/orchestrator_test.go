package component

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type recorder struct {
	name     string
	startErr error
	stopErr  error
	log      *[]string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Start(ctx context.Context) error {
	*r.log = append(*r.log, "start "+r.name)
	return r.startErr
}

func (r *recorder) Stop(ctx context.Context) error {
	*r.log = append(*r.log, "stop "+r.name)
	return r.stopErr
}

func TestOrchestratorOrder(t *testing.T) {
	var log []string
	o := NewOrchestrator()
	o.Register(&recorder{name: "reflector", log: &log})
	o.Register(&recorder{name: "monitor", log: &log})

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := o.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := o.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}

	want := []string{"start reflector", "start monitor", "stop monitor", "stop reflector"}
	if !reflect.DeepEqual(log, want) {
		t.Fatalf("got %v, want %v", log, want)
	}
}

func TestOrchestratorUnwindsOnStartFailure(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	o := NewOrchestrator()
	o.Register(&recorder{name: "a", log: &log})
	o.Register(&recorder{name: "b", startErr: boom, log: &log})
	o.Register(&recorder{name: "c", log: &log})

	err := o.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}

	want := []string{"start a", "start b", "stop a"}
	if !reflect.DeepEqual(log, want) {
		t.Fatalf("got %v, want %v", log, want)
	}
}

func TestOrchestratorJoinsStopErrors(t *testing.T) {
	var log []string
	e1, e2 := errors.New("one"), errors.New("two")
	o := NewOrchestrator()
	o.Register(&recorder{name: "a", stopErr: e1, log: &log})
	o.Register(&recorder{name: "b", stopErr: e2, log: &log})

	o.Start(context.Background())
	err := o.Stop(context.Background())
	if !errors.Is(err, e1) || !errors.Is(err, e2) {
		t.Fatalf("got %v, want both errors", err)
	}
}

func TestBaseGoWaitsOnStop(t *testing.T) {
	b := NewBase("worker")
	b.StartContext(context.Background())

	done := false
	b.Go(func() {
		<-b.Done()
		done = true
	})
	b.StopContext()

	if !done {
		t.Fatal("StopContext returned before goroutine finished")
	}
}
