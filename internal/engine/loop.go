// Package engine implements the single-threaded cooperative main loop that
// ties the scheduler, mutation pipeline, subprocess runner, coverage
// bitmap, aggression manager, and monitor together, adapted from
// internal/coverage/feedback.go's FeedbackLoop (atomic running flag,
// stopCh, run(ctx) goroutine) generalized from an HTTP request/response
// cycle to the candidate -> mutate -> execute -> feedback cycle.
package engine

import (
	"context"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/fluxfuzzer/corefuzz/internal/aggression"
	"github.com/fluxfuzzer/corefuzz/internal/corpus"
	"github.com/fluxfuzzer/corefuzz/internal/coverage"
	"github.com/fluxfuzzer/corefuzz/internal/memory"
	"github.com/fluxfuzzer/corefuzz/internal/monitor"
	"github.com/fluxfuzzer/corefuzz/internal/mutator"
	"github.com/fluxfuzzer/corefuzz/internal/runner"
	"github.com/fluxfuzzer/corefuzz/pkg/types"
)

// Config holds the main loop's tuning knobs, re-read per iteration rather
// than captured once, matching the source's process-wide DEFAULTS map
// being modeled as an explicit, mutable value.
type Config struct {
	Runtime             time.Duration
	MaxAttempts         int
	MaxVariantsPerRound int
	SpecializedBiasOK   float64 // P(specialized) when not stagnant
	SpecializedBiasSlow float64 // P(specialized) when stagnant
	CompositeProb       float64
	CompositeProbSlow   float64
	StagnationWindow    time.Duration
	StagnationThreshold float64
	StagnationMinDelta  int
	MaxExecsPerSec      float64 // 0 disables the throttle
}

// DefaultConfig returns spec.md §4.H's default tuning values.
func DefaultConfig() Config {
	return Config{
		Runtime:             1 * time.Hour,
		MaxAttempts:         20,
		MaxVariantsPerRound: 64,
		SpecializedBiasOK:   0.7,
		SpecializedBiasSlow: 0.3,
		CompositeProb:       0.1,
		CompositeProbSlow:   0.3,
		StagnationWindow:    30 * time.Second,
		StagnationThreshold: 0.02,
		StagnationMinDelta:  2,
		MaxExecsPerSec:      0,
	}
}

// Sniffer maps a candidate's bytes to a specialized format mutator, nil if
// none applies.
type Sniffer func(data []byte) mutator.Mutator

// Executor runs one candidate/variant and returns a normalized result,
// mirroring the teacher's feedback.go Executor interface so the loop can be
// driven by a fake in tests instead of a real subprocess. *runner.Runner
// satisfies this directly.
type Executor interface {
	Run(ctx context.Context, input []byte) runner.Result
}

// Loop owns the fuzzing thread's state. A second, read-only reporter
// thread may call Monitor/Scheduler snapshot methods concurrently; Loop
// itself must only ever be driven from the one goroutine started by Start.
type Loop struct {
	cfg Config

	scheduler *corpus.Scheduler
	runner    Executor
	bitmap    *coverage.Bitmap
	mon       *monitor.Monitor
	cluster   *monitor.Clusterer
	aggr      *aggression.Manager
	registry  *mutator.Registry
	sniff     Sniffer
	mode      types.Mode
	timeout   time.Duration
	logger    *slog.Logger

	limiter *rate.Limiter
	memMon  *memory.Monitor

	running int32
	stopCh  chan struct{}
}

// memPollInterval is how often the background GC-pressure monitor samples
// runtime.MemStats during a long fuzzing run.
const memPollInterval = 15 * time.Second

// New builds a Loop. logger defaults to slog.Default() if nil.
func New(cfg Config, sched *corpus.Scheduler, run Executor, reg *mutator.Registry, aggr *aggression.Manager, sniff Sniffer, mode types.Mode, timeout time.Duration, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if cfg.MaxExecsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxExecsPerSec), 1)
	}
	return &Loop{
		cfg:       cfg,
		scheduler: sched,
		runner:    run,
		bitmap:    coverage.NewBitmap(),
		mon:       monitor.NewMonitor(),
		cluster:   monitor.NewClusterer(),
		aggr:      aggr,
		registry:  reg,
		sniff:     sniff,
		mode:      mode,
		timeout:   timeout,
		logger:    logger,
		limiter:   limiter,
		memMon:    memory.NewMonitor(memPollInterval, memory.DefaultThreshold()),
		stopCh:    make(chan struct{}),
	}
}

// Monitor exposes the loop's run-statistics tracker for the reporter thread.
func (l *Loop) Monitor() *monitor.Monitor { return l.mon }

// Scheduler exposes the candidate scheduler for the reporter thread.
func (l *Loop) Scheduler() *corpus.Scheduler { return l.scheduler }

// Clusterer exposes the crash deduplication state for reporting.
func (l *Loop) Clusterer() *monitor.Clusterer { return l.cluster }

// Start launches the main loop on its own goroutine; a second call while
// already running is a no-op.
func (l *Loop) Start(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&l.running, 0, 1) {
		return
	}
	l.memMon.Start()
	go l.watchMemoryPressure()
	go l.run(ctx)
}

// Stop requests the loop to exit at the next safe point.
func (l *Loop) Stop() {
	if atomic.CompareAndSwapInt32(&l.running, 1, 0) {
		close(l.stopCh)
		l.memMon.Stop()
	}
}

// watchMemoryPressure logs the background GC-pressure monitor's alerts
// through the loop's structured logger for the duration of a run, so a
// long-running session that starts thrashing the heap leaves a trail
// instead of silently degrading.
func (l *Loop) watchMemoryPressure() {
	alerts := l.memMon.GetAlerts()
	for {
		select {
		case <-l.stopCh:
			return
		case alert, ok := <-alerts:
			if !ok {
				return
			}
			l.logger.Warn("memory pressure",
				slog.String("type", string(alert.Type)),
				slog.String("message", alert.Message),
				slog.Uint64("value", alert.Value),
				slog.Uint64("threshold", alert.Threshold))
		}
	}
}

func (l *Loop) run(ctx context.Context) {
	start := time.Now()
	lastStagnationCheck := time.Time{}

	for time.Since(start) < l.cfg.Runtime {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		default:
		}

		cand := l.scheduler.NextCandidate()
		if cand == nil {
			time.Sleep(5 * time.Millisecond)
			continue
		}

		if time.Since(lastStagnationCheck) >= l.cfg.StagnationWindow {
			lastStagnationCheck = time.Now()
			// The scheduler's own stagnation tracker (§4.F) independently
			// widens explore_fraction; it is updated here regardless of
			// what feeds the aggression manager below.
			l.scheduler.UpdateStagnation(l.bitmap.Popcount())

			slow := l.mon.IsGrowthSlow(l.cfg.StagnationWindow, l.cfg.StagnationThreshold, l.cfg.StagnationMinDelta)
			if flipped := l.aggr.Update(slow); flipped {
				l.logger.Info("aggression transition", slog.Bool("aggressive", l.aggr.Active()), slog.Bool("stagnant", slow))
			}
		}

		specialized := mutator.Mutator(nil)
		if l.sniff != nil {
			specialized = l.sniff(cand.Input)
		}

		attempts := clampInt(cand.Energy, 1, l.cfg.MaxAttempts)
		for i := 0; i < attempts; i++ {
			gen := l.chooseGenerator(cand.Input, specialized)
			if gen == nil {
				break
			}
			l.drainRound(ctx, cand.ID, gen)

			select {
			case <-ctx.Done():
				return
			case <-l.stopCh:
				return
			default:
			}
		}
	}
}

// chooseGenerator implements spec.md §4.H's policy table: specialized with
// p=0.7 when not stagnant (0.3 when stagnant), else a random basic mutator,
// with a configurable chance of a havoc-style composite pass instead.
func (l *Loop) chooseGenerator(input []byte, specialized mutator.Mutator) mutator.Generator {
	compositeProb := l.cfg.CompositeProb
	bias := l.cfg.SpecializedBiasOK
	if l.aggr.Active() {
		compositeProb = l.cfg.CompositeProbSlow
		bias = l.cfg.SpecializedBiasSlow
	}

	if rand.Float64() < compositeProb {
		if havocs := l.registry.ByType(types.Havoc); len(havocs) > 0 {
			return havocs[rand.Intn(len(havocs))].Generate(input)
		}
	}

	if specialized != nil && rand.Float64() < bias {
		return specialized.Generate(input)
	}

	basics := l.randomBasicPool()
	if len(basics) == 0 {
		if specialized != nil {
			return specialized.Generate(input)
		}
		return nil
	}
	return basics[rand.Intn(len(basics))].Generate(input)
}

func (l *Loop) randomBasicPool() []mutator.Mutator {
	var out []mutator.Mutator
	for _, t := range []types.MutationType{types.BitFlip, types.ByteFlip, types.ArithmeticEdit, types.InterestingValue, types.DictionaryInsert, types.Splice} {
		out = append(out, l.registry.ByType(t)...)
	}
	return out
}

// drainRound executes every variant a generator yields, up to
// MaxVariantsPerRound, feeding each result back into the monitor and
// scheduler exactly as spec.md's report_result/record_run pair describes.
func (l *Loop) drainRound(ctx context.Context, candID int64, gen mutator.Generator) {
	for i := 0; i < l.cfg.MaxVariantsPerRound; i++ {
		variant, ok := gen()
		if !ok {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		default:
		}

		if l.limiter != nil {
			if err := l.limiter.Wait(ctx); err != nil {
				return
			}
		}

		res := l.runner.Run(ctx, variant)

		var runCov *coverage.Bitmap
		novelty := 0
		if len(res.Coverage) > 0 {
			runCov = coverage.FromRaw(res.Coverage)
			novelty = l.bitmap.MergeAndCountNew(runCov)
		}

		status := res.Status.String()
		cumulative := l.bitmap.Popcount()
		l.mon.RecordRun(status, res.Duration, novelty > 0, cumulative)
		l.mon.Journal(monitor.RunRecord{
			CandidateID:        candID,
			Status:             status,
			WallTime:           res.Duration,
			Novelty:            novelty,
			CumulativeCoverage: cumulative,
			ArtifactPath:       res.ArtifactPath,
			StderrTail:         stderrTail(res.Stderr),
		}, variant)

		var sig []byte
		if runCov != nil {
			sig = runCov.Hash()
		}
		l.scheduler.ReportResult(variant, corpus.RunOutcome{
			Status:   status,
			Coverage: sig,
			Novelty:  novelty,
			ExecTime: res.Duration,
		})

		if status == "crash" || status == "hang" {
			output := append(append([]byte{}, res.Stdout...), res.Stderr...)
			if err := l.scheduler.SaveCrash(variant, output, status, res.ExitCode); err != nil {
				l.logger.Warn("failed to persist crash artifact", slog.String("error", err.Error()))
			}
			path := res.ArtifactPath
			if path == "" {
				path = status
			}
			l.cluster.Add(path, res.Stderr, variant)
		}
	}
}

// maxStderrTail bounds the truncated stderr kept in each run record, per
// spec.md §3's "optional truncated stderr".
const maxStderrTail = 512

func stderrTail(stderr []byte) string {
	if len(stderr) == 0 {
		return ""
	}
	if len(stderr) > maxStderrTail {
		stderr = stderr[len(stderr)-maxStderrTail:]
	}
	return string(stderr)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
