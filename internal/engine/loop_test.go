package engine

import (
	"context"
	"testing"
	"time"

	"github.com/fluxfuzzer/corefuzz/internal/aggression"
	"github.com/fluxfuzzer/corefuzz/internal/corpus"
	"github.com/fluxfuzzer/corefuzz/internal/mutator"
	"github.com/fluxfuzzer/corefuzz/internal/runner"
	"github.com/fluxfuzzer/corefuzz/pkg/types"
)

type fakeExecutor struct {
	calls int
	hits  func(input []byte) runner.Result
}

func (f *fakeExecutor) Run(ctx context.Context, input []byte) runner.Result {
	f.calls++
	if f.hits != nil {
		return f.hits(input)
	}
	return runner.Result{Status: types.StatusOK, Duration: time.Microsecond}
}

func newTestRegistry() *mutator.Registry {
	reg := mutator.NewRegistry()
	reg.Register(mutator.NewBitFlipMutator("bit1"))
	reg.Register(mutator.NewArithmeticMutator(1, false, false))
	return reg
}

func TestLoopRunsUntilStopped(t *testing.T) {
	sched, err := corpus.NewScheduler("")
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	sched.AddSeed([]byte("seed-input"))

	exec := &fakeExecutor{}
	aggr := aggression.NewManager(time.Minute, time.Second, 2.0)
	reg := newTestRegistry()

	cfg := DefaultConfig()
	cfg.Runtime = time.Hour
	cfg.MaxAttempts = 1
	cfg.MaxVariantsPerRound = 2

	l := New(cfg, sched, exec, reg, aggr, nil, types.ModeStdin, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)

	time.Sleep(30 * time.Millisecond)
	l.Stop()
	cancel()
	time.Sleep(5 * time.Millisecond)

	if exec.calls == 0 {
		t.Error("expected the executor to be invoked at least once")
	}
}

func TestLoopRecordsCrashesAndFeedsScheduler(t *testing.T) {
	sched, err := corpus.NewScheduler("")
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	sched.AddSeed([]byte("seed"))

	exec := &fakeExecutor{hits: func(input []byte) runner.Result {
		return runner.Result{Status: types.StatusCrash, ExitCode: 1, Duration: time.Microsecond}
	}}
	aggr := aggression.NewManager(time.Minute, time.Second, 2.0)
	reg := newTestRegistry()

	cfg := DefaultConfig()
	cfg.Runtime = 50 * time.Millisecond
	cfg.MaxAttempts = 1
	cfg.MaxVariantsPerRound = 1

	l := New(cfg, sched, exec, reg, aggr, nil, types.ModeStdin, time.Second, nil)
	ctx := context.Background()
	l.run(ctx)

	snap := l.Monitor().Snapshot()
	if snap.Crashes == 0 {
		t.Error("expected at least one recorded crash")
	}
}

// TestDiscoversBitFlipVariant drives a single bit1 mutator against a target
// that only reports novel coverage once input[0] == 0x41, starting from seed
// 0x40. A single bit flip reaches 0x41, so the scheduler should eventually
// admit such a variant.
func TestDiscoversBitFlipVariant(t *testing.T) {
	sched, err := corpus.NewScheduler("")
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	sched.AddSeed([]byte{0x40})

	exec := &fakeExecutor{hits: func(input []byte) runner.Result {
		if len(input) > 0 && input[0] == 0x41 {
			return runner.Result{Status: types.StatusOK, Duration: time.Microsecond, Coverage: []byte{0x01}}
		}
		return runner.Result{Status: types.StatusOK, Duration: time.Microsecond}
	}}

	reg := mutator.NewRegistry()
	reg.Register(mutator.NewBitFlipMutator("bit1"))
	aggr := aggression.NewManager(time.Minute, time.Second, 2.0)

	cfg := DefaultConfig()
	cfg.Runtime = 500 * time.Millisecond
	cfg.MaxAttempts = 20
	cfg.MaxVariantsPerRound = 64

	l := New(cfg, sched, exec, reg, aggr, nil, types.ModeStdin, time.Second, nil)
	l.run(context.Background())

	found := false
	for _, c := range sched.All() {
		if len(c.Input) > 0 && c.Input[0] == 0x41 {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected the scheduler to admit a variant with first byte 0x41")
	}
}

// TestHangHandlingNeverAdmitsAndRecordsHang matches the "target always
// hangs" boundary behavior: every run is classified hang and no hang bytes
// are ever admitted to the corpus.
func TestHangHandlingNeverAdmitsAndRecordsHang(t *testing.T) {
	sched, err := corpus.NewScheduler("")
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	sched.AddSeed([]byte("SLOW"))
	before := sched.Size()

	exec := &fakeExecutor{hits: func(input []byte) runner.Result {
		return runner.Result{Status: types.StatusHang, Duration: time.Second, Stderr: []byte("timed out")}
	}}
	aggr := aggression.NewManager(time.Minute, time.Second, 2.0)
	reg := newTestRegistry()

	cfg := DefaultConfig()
	cfg.Runtime = 50 * time.Millisecond
	cfg.MaxAttempts = 1
	cfg.MaxVariantsPerRound = 1

	l := New(cfg, sched, exec, reg, aggr, nil, types.ModeStdin, time.Second, nil)
	l.run(context.Background())

	if sched.Size() != before {
		t.Errorf("hang outcomes must never be admitted to the corpus: %d -> %d", before, sched.Size())
	}
	snap := l.Monitor().Snapshot()
	if snap.Hangs == 0 {
		t.Error("expected at least one recorded hang")
	}
}

// TestStagnationTriggersAggressionWidening matches scenario 5: a target that
// never reports novel coverage should flip aggression on after the first
// stagnation window. It checks only that the aggression manager is active.
func TestStagnationTriggersAggressionWidening(t *testing.T) {
	sched, err := corpus.NewScheduler("")
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	sched.StagnationWindow = 5 * time.Millisecond
	sched.StagnationGrowth = 0.01
	sched.AddSeed([]byte("seed"))

	exec := &fakeExecutor{}

	havoc := mutator.NewHavocMutator(nil)
	reg := mutator.NewRegistry()
	reg.Register(havoc)

	aggr := aggression.NewManager(time.Minute, time.Millisecond, 2.0)
	aggr.Register(havoc)

	cfg := DefaultConfig()
	cfg.Runtime = 60 * time.Millisecond
	cfg.MaxAttempts = 1
	cfg.MaxVariantsPerRound = 1
	cfg.StagnationWindow = 5 * time.Millisecond
	cfg.CompositeProb = 1.0
	cfg.CompositeProbSlow = 1.0

	l := New(cfg, sched, exec, reg, aggr, nil, types.ModeStdin, time.Second, nil)
	l.run(context.Background())

	if !aggr.Active() {
		t.Error("expected aggression to flip on after a full stagnation window of zero coverage growth")
	}
}

func TestDetectFormatRecognizesMagicBytes(t *testing.T) {
	sniff := DetectFormat(nil)

	cases := []struct {
		name string
		data []byte
	}{
		{"elf", []byte{0x7f, 'E', 'L', 'F', 2, 1}},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}},
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0}},
		{"xml", []byte("<root/>")},
		{"script", []byte("local x = 1\nfunction f() end")},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if m := sniff(c.data); m == nil {
				t.Errorf("expected a specialized mutator for %s input", c.name)
			}
		})
	}

	if m := sniff([]byte{0x01, 0x02, 0x03}); m != nil {
		t.Errorf("expected nil for unrecognized input, got %v", m.Name())
	}
}
