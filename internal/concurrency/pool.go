// Package concurrency provides a bounded, ants-backed worker pool used
// exclusively for CPU-bound mutation-variant generation (format mutators'
// parse-and-strategy-apply work). It never touches target execution —
// the subprocess runner stays single-threaded per the engine's scheduling
// model. Adapted from internal/requester/worker_pool.go's ants.Pool
// wrapper, combined with internal/parallel/backpressure.go's high/low
// watermark hysteresis (collapsing what the teacher split across worker
// pool + backpressure controller + a cluster coordinator/worker/task
// split this rework does not need, since there is no cross-host
// distribution here).
package concurrency

import (
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
)

// Options configures the pool, mirroring the teacher's WorkerPoolOptions.
type Options struct {
	Size        int
	PreAlloc    bool
	MaxBlocking int
}

// DefaultOptions returns sensible defaults for a mutation-generation pool.
func DefaultOptions() Options {
	return Options{Size: 64, PreAlloc: true, MaxBlocking: 4096}
}

// Pool runs CPU-bound work concurrently with bounded queueing.
type Pool struct {
	pool *ants.Pool
	wg   sync.WaitGroup

	closed atomic.Bool

	submitted atomic.Int64
	completed atomic.Int64
	errors    atomic.Int64

	mu             sync.Mutex
	highWatermark  float64
	lowWatermark   float64
	pressured      bool
	pressureEvents int64
}

// New constructs a Pool backed by ants.Pool.
func New(opts Options) (*Pool, error) {
	p, err := ants.NewPool(
		opts.Size,
		ants.WithPreAlloc(opts.PreAlloc),
		ants.WithMaxBlockingTasks(opts.MaxBlocking),
	)
	if err != nil {
		return nil, err
	}
	return &Pool{
		pool:          p,
		highWatermark: 0.8,
		lowWatermark:  0.5,
	}, nil
}

// Submit enqueues a mutation-generation task. Returns ants.ErrPoolClosed
// after Shutdown.
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ants.ErrPoolClosed
	}

	p.submitted.Add(1)
	p.wg.Add(1)
	p.checkPressure()

	return p.pool.Submit(func() {
		defer p.wg.Done()
		defer p.completed.Add(1)
		task()
	})
}

// SubmitWithError runs task and counts its error, if any, without
// propagating it to the caller (fire-and-forget generation work).
func (p *Pool) SubmitWithError(task func() error) error {
	return p.Submit(func() {
		if err := task(); err != nil {
			p.errors.Add(1)
		}
	})
}

// checkPressure updates the hysteretic pressure flag from the pool's
// current running-vs-capacity ratio, used only for the Stats snapshot —
// Submit never blocks or drops on its own account; ants.WithMaxBlockingTasks
// already bounds the queue.
func (p *Pool) checkPressure() {
	capacity := p.pool.Cap()
	if capacity == 0 {
		return
	}
	ratio := float64(p.pool.Running()) / float64(capacity)

	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case ratio > p.highWatermark && !p.pressured:
		p.pressured = true
		p.pressureEvents++
	case ratio < p.lowWatermark && p.pressured:
		p.pressured = false
	}
}

// Wait blocks until every submitted task has completed.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Shutdown drains in-flight work and releases the underlying ants pool.
func (p *Pool) Shutdown() {
	p.closed.Store(true)
	p.Wait()
	p.pool.Release()
}

// Tune dynamically resizes the pool's worker capacity.
func (p *Pool) Tune(size int) {
	p.pool.Tune(size)
}

// Stats reports pool utilization and throughput counters.
type Stats struct {
	Running        int
	Capacity       int
	Submitted      int64
	Completed      int64
	Errors         int64
	Pressured      bool
	PressureEvents int64
}

// Stats returns a snapshot of the pool's current state.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	pressured := p.pressured
	events := p.pressureEvents
	p.mu.Unlock()

	return Stats{
		Running:        p.pool.Running(),
		Capacity:       p.pool.Cap(),
		Submitted:      p.submitted.Load(),
		Completed:      p.completed.Load(),
		Errors:         p.errors.Load(),
		Pressured:      pressured,
		PressureEvents: events,
	}
}

// GenerateVariants pulls up to max variants from fn on the calling goroutine
// and collects them through tasks submitted to the pool. fn itself is never
// called concurrently, and the order of the returned variants is not
// defined. Nothing outside this package's tests calls it.
func GenerateVariants(p *Pool, max int, fn func() ([]byte, bool)) [][]byte {
	var (
		mu  sync.Mutex
		out [][]byte
		wg  sync.WaitGroup
	)

	for i := 0; i < max; i++ {
		v, ok := fn()
		if !ok {
			break
		}
		wg.Add(1)
		variant := v
		_ = p.Submit(func() {
			defer wg.Done()
			mu.Lock()
			out = append(out, variant)
			mu.Unlock()
		})
	}
	wg.Wait()
	return out
}
