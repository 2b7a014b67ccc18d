package concurrency

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	p, err := New(Options{Size: 4, PreAlloc: true, MaxBlocking: 16})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Shutdown()

	var ran atomic.Int64
	for i := 0; i < 20; i++ {
		if err := p.Submit(func() { ran.Add(1) }); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	p.Wait()

	if got := ran.Load(); got != 20 {
		t.Errorf("expected 20 tasks to run, got %d", got)
	}
	if p.Stats().Completed != 20 {
		t.Errorf("expected Stats().Completed == 20, got %d", p.Stats().Completed)
	}
}

func TestPoolSubmitWithErrorCountsFailures(t *testing.T) {
	p, err := New(Options{Size: 2, MaxBlocking: 8})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Shutdown()

	_ = p.SubmitWithError(func() error { return nil })
	_ = p.SubmitWithError(func() error { return errBoom })
	p.Wait()

	if p.Stats().Errors != 1 {
		t.Errorf("expected 1 error recorded, got %d", p.Stats().Errors)
	}
}

func TestPoolRejectsSubmitAfterShutdown(t *testing.T) {
	p, err := New(DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.Shutdown()

	if err := p.Submit(func() {}); err == nil {
		t.Error("expected an error submitting after shutdown")
	}
}

func TestGenerateVariantsCollectsAllProduced(t *testing.T) {
	p, err := New(Options{Size: 4, MaxBlocking: 16})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Shutdown()

	i := 0
	fn := func() ([]byte, bool) {
		if i >= 5 {
			return nil, false
		}
		i++
		return []byte{byte(i)}, true
	}

	out := GenerateVariants(p, 10, fn)
	if len(out) != 5 {
		t.Errorf("expected 5 variants, got %d", len(out))
	}
}

var errBoom = boomError{}

type boomError struct{}

func (boomError) Error() string { return "boom" }

func TestPoolTuneDoesNotPanic(t *testing.T) {
	p, err := New(Options{Size: 2, MaxBlocking: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Shutdown()
	p.Tune(8)
	time.Sleep(time.Millisecond)
}
