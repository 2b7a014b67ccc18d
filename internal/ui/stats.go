// Package ui provides statistics display components.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/fluxfuzzer/corefuzz/internal/corpus"
	"github.com/fluxfuzzer/corefuzz/internal/monitor"
)

// Stats adapts a live Monitor/Scheduler pair into dashboard-ready
// snapshots, replacing the teacher's own atomic-counter bookkeeping: the
// run-statistics bookkeeping itself already lives in internal/monitor and
// internal/corpus, so the dashboard only needs a read-only view of it.
type Stats struct {
	mon   *monitor.Monitor
	sched *corpus.Scheduler
}

// NewStats wraps mon/sched for dashboard rendering. Either may be nil,
// in which case the corresponding snapshot fields stay at their zero value
// (used before a run starts).
func NewStats(mon *monitor.Monitor, sched *corpus.Scheduler) *Stats {
	return &Stats{mon: mon, sched: sched}
}

// Snapshot returns an immutable view of the current run statistics.
func (s *Stats) Snapshot() StatsSnapshot {
	var snap StatsSnapshot
	if s.mon != nil {
		m := s.mon.Snapshot()
		snap.Executions = m.Executions
		snap.Crashes = m.Crashes
		snap.Hangs = m.Hangs
		snap.Errors = m.Errors
		snap.InterestingInputs = m.InterestingInputs
		snap.ExecsPerSec = m.ExecsPerSec
		snap.CoveragePercent = m.CoveragePercent
		snap.AvgExecTime = time.Duration(m.AvgExecTimeNs)
		if !m.StartTime.IsZero() {
			snap.ElapsedTime = time.Since(m.StartTime)
		}
	}
	if s.sched != nil {
		sc := s.sched.Snapshot()
		snap.CorpusSize = sc.Size
		snap.FavoredSize = sc.FavoredSize
		snap.Stagnant = sc.Stagnant
	}
	return snap
}

// StatsSnapshot is an immutable snapshot of run statistics for rendering.
type StatsSnapshot struct {
	Executions        int64
	Crashes           int64
	Hangs             int64
	Errors            int64
	InterestingInputs int64
	ExecsPerSec       float64
	CoveragePercent   float64
	AvgExecTime       time.Duration
	ElapsedTime       time.Duration
	CorpusSize        int
	FavoredSize       int
	Stagnant          bool
}

// StatsView renders the statistics panel.
type StatsView struct {
	width  int
	height int
}

// NewStatsView creates a new stats view.
func NewStatsView(width, height int) *StatsView {
	return &StatsView{width: width, height: height}
}

// SetSize updates the view size.
func (v *StatsView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

// Render renders the stats view.
func (v *StatsView) Render(snap StatsSnapshot) string {
	var b strings.Builder

	b.WriteString(HeaderStyle.Render("Executions"))
	b.WriteString("\n\n")

	b.WriteString(RenderLabelValue("Total", formatNumber(snap.Executions)))
	b.WriteString("\n")
	b.WriteString(RenderLabelValue("Execs/sec", fmt.Sprintf("%.1f", snap.ExecsPerSec)))
	b.WriteString("\n")
	b.WriteString(RenderLabelValue("Avg Exec Time", formatDuration(snap.AvgExecTime)))
	b.WriteString("\n")
	b.WriteString(RenderLabelValue("Elapsed", formatDuration(snap.ElapsedTime)))
	b.WriteString("\n\n")

	b.WriteString(HeaderStyle.Render("Corpus"))
	b.WriteString("\n\n")

	b.WriteString(RenderLabelValue("Candidates", formatNumber(int64(snap.CorpusSize))))
	b.WriteString("\n")
	b.WriteString(RenderLabelValue("Favored", formatNumber(int64(snap.FavoredSize))))
	b.WriteString("\n")
	b.WriteString(RenderLabelValue("Interesting", formatNumber(snap.InterestingInputs)))
	b.WriteString("\n")
	b.WriteString(RenderLabelValue("Coverage", fmt.Sprintf("%.2f%%", snap.CoveragePercent)))
	b.WriteString("\n")
	if snap.Stagnant {
		b.WriteString(WarningStyle.Render("  stagnant — aggression active"))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(HeaderStyle.Render("Crashes"))
	b.WriteString("\n\n")

	b.WriteString(RenderLabel("Crashes"))
	b.WriteString(" ")
	b.WriteString(ErrorStyle.Render(formatNumber(snap.Crashes)))
	b.WriteString(" | ")
	b.WriteString(RenderLabel("Hangs"))
	b.WriteString(" ")
	b.WriteString(WarningStyle.Render(formatNumber(snap.Hangs)))
	b.WriteString(" | ")
	b.WriteString(RenderLabel("Errors"))
	b.WriteString(" ")
	b.WriteString(HelpStyle.Render(formatNumber(snap.Errors)))
	b.WriteString("\n")

	return StatsPanelStyle.Width(v.width).Render(b.String())
}

// Helper functions

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
