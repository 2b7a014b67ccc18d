// Package monitor tracks run statistics and coverage growth over time,
// adapted from internal/coverage/feedback.go's FeedbackStats (atomic
// counters, periodic rate computation) generalized from an HTTP request
// feedback loop to the binary-fuzzing run journal.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxfuzzer/corefuzz/internal/memory"
)

// Stats mirrors the teacher's FeedbackStats shape, retargeted at
// process-execution results instead of HTTP responses.
type Stats struct {
	Executions        int64
	Crashes           int64
	Hangs             int64
	Errors            int64
	InterestingInputs int64
	AvgExecTimeNs     int64
	ExecsPerSec       float64
	CoveragePercent   float64
	StartTime         time.Time
	LastNoveltyTime   time.Time
}

// growthSample is one (elapsed-seconds, cumulative-popcount) point kept in
// the bounded growth-rate history ring.
type growthSample struct {
	elapsed  time.Duration
	popcount int
}

const maxGrowthSamples = 512

// RunRecord is one entry in the append-only run journal: every execution
// this Monitor records, kept in full (not bounded like the growth-rate
// sample ring) so export_records can reproduce the whole run's history.
type RunRecord struct {
	Timestamp          time.Time     `json:"timestamp"`
	CandidateID        int64         `json:"candidate_id,omitempty"`
	Status             string        `json:"status"`
	WallTime           time.Duration `json:"wall_time_ns"`
	Novelty            int           `json:"novelty"`
	CumulativeCoverage int           `json:"cumulative_coverage"`
	ArtifactPath       string        `json:"artifact_path,omitempty"`
	StderrTail         string        `json:"stderr_tail,omitempty"`
}

// Monitor aggregates run outcomes into Stats, an append-only run journal,
// and a bounded growth-rate history used by the stagnation check and by
// status dashboards.
type Monitor struct {
	mu       sync.RWMutex
	stats    Stats
	samples  []growthSample
	start    time.Time
	executed int64

	records          []RunRecord
	artifactDir      string
	noveltyThreshold int
}

// NewMonitor creates a Monitor with its start time set to now.
func NewMonitor() *Monitor {
	now := time.Now()
	return &Monitor{
		stats: Stats{StartTime: now},
		start: now,
	}
}

// SetArtifactDir configures where Journal saves novelty-selected variant
// bytes, per spec.md §6's monitor_artifacts/sample_<ms>_novel.bin, and the
// novelty count (§4.G's novelty_threshold) a run must meet to be saved.
// A non-positive noveltyThreshold defaults to 1 (any novel run qualifies).
func (m *Monitor) SetArtifactDir(dir string, noveltyThreshold int) error {
	if noveltyThreshold <= 0 {
		noveltyThreshold = 1
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.artifactDir = dir
	m.noveltyThreshold = noveltyThreshold
	m.mu.Unlock()
	return nil
}

// RecordRun folds one execution outcome into the running statistics.
func (m *Monitor) RecordRun(status string, execTime time.Duration, novel bool, cumulativePopcount int) {
	atomic.AddInt64(&m.executed, 1)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Executions++
	switch status {
	case "crash":
		m.stats.Crashes++
	case "hang":
		m.stats.Hangs++
	case "error":
		m.stats.Errors++
	}
	if novel {
		m.stats.InterestingInputs++
		m.stats.LastNoveltyTime = time.Now()
	}

	n := m.stats.Executions
	prevAvg := m.stats.AvgExecTimeNs
	m.stats.AvgExecTimeNs = prevAvg + (execTime.Nanoseconds()-prevAvg)/n

	elapsed := time.Since(m.start)
	if elapsed > 0 {
		m.stats.ExecsPerSec = float64(n) / elapsed.Seconds()
	}

	m.samples = append(m.samples, growthSample{elapsed: elapsed, popcount: cumulativePopcount})
	if len(m.samples) > maxGrowthSamples {
		m.samples = m.samples[len(m.samples)-maxGrowthSamples:]
	}
}

// Journal appends rec to the run record journal (stamping its Timestamp)
// and, if an artifact directory is configured and rec.Novelty meets the
// novelty threshold, saves variant to monitor_artifacts/sample_<ms>_novel.bin
// per spec.md §6. Called alongside RecordRun, not instead of it.
func (m *Monitor) Journal(rec RunRecord, variant []byte) {
	rec.Timestamp = time.Now()

	m.mu.Lock()
	m.records = append(m.records, rec)
	dir := m.artifactDir
	threshold := m.noveltyThreshold
	start := m.start
	m.mu.Unlock()

	if dir == "" || rec.Novelty < threshold {
		return
	}
	ms := time.Since(start).Milliseconds()
	name := filepath.Join(dir, fmt.Sprintf("sample_%d_novel.bin", ms))
	_ = os.WriteFile(name, variant, 0o644)
}

// ExportRecords serializes the full run journal as a JSON array, per
// spec.md §4.G's export_records(path) and §6's monitor_records.json. The
// encode target is a pooled buffer rather than a fresh bytes.Buffer, since
// a long run's journal can grow into the megabytes by the time the CLI
// calls this at shutdown.
func (m *Monitor) ExportRecords(path string) error {
	m.mu.RLock()
	records := append([]RunRecord(nil), m.records...)
	m.mu.RUnlock()

	buf := memory.GetBuffer()
	defer memory.PutBuffer(buf)

	enc := json.NewEncoder(buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// SetCoveragePercent updates the reported coverage fraction (0-100).
func (m *Monitor) SetCoveragePercent(pct float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.CoveragePercent = pct
}

// Snapshot returns a copy of the current stats.
func (m *Monitor) Snapshot() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// GrowthOverWindow reports the popcount delta over the trailing window; it
// underlies GrowthRate and IsGrowthSlow (the main loop's aggression check).
func (m *Monitor) GrowthOverWindow(window time.Duration) (delta int, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.samples) == 0 {
		return 0, false
	}
	latest := m.samples[len(m.samples)-1]
	cutoff := latest.elapsed - window
	for i := len(m.samples) - 1; i >= 0; i-- {
		if m.samples[i].elapsed <= cutoff {
			return latest.popcount - m.samples[i].popcount, true
		}
	}
	return latest.popcount - m.samples[0].popcount, true
}

// GrowthRate implements spec.md §4.G's growth_rate(window_s): edges of
// cumulative coverage gained per second over the trailing window.
func (m *Monitor) GrowthRate(window time.Duration) (rate float64, ok bool) {
	delta, ok := m.GrowthOverWindow(window)
	if !ok {
		return 0, false
	}
	secs := window.Seconds()
	if secs <= 0 {
		return 0, false
	}
	return float64(delta) / secs, true
}

// IsGrowthSlow implements spec.md §4.G's is_growth_slow(window_s, min_rate,
// min_delta): true when both the growth rate over window is below minRate
// and the absolute popcount delta over window is below minDelta.
func (m *Monitor) IsGrowthSlow(window time.Duration, minRate float64, minDelta int) bool {
	delta, ok := m.GrowthOverWindow(window)
	if !ok {
		return false
	}
	rate, _ := m.GrowthRate(window)
	return rate < minRate && delta < minDelta
}

// GrowthPoint is one exported (elapsed, cumulative-popcount) sample, used by
// the coverage-curve CSV writer.
type GrowthPoint struct {
	Elapsed  time.Duration
	Popcount int
}

// Samples returns a copy of the bounded growth-rate history for export.
func (m *Monitor) Samples() []GrowthPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]GrowthPoint, len(m.samples))
	for i, s := range m.samples {
		out[i] = GrowthPoint{Elapsed: s.elapsed, Popcount: s.popcount}
	}
	return out
}
