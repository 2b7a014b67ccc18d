package ui

import (
	"testing"
	"time"

	"github.com/fluxfuzzer/corefuzz/internal/corpus"
	"github.com/fluxfuzzer/corefuzz/internal/monitor"
)

func newTestStats() *Stats {
	return NewStats(monitor.NewMonitor(), nil)
}

func TestNewDashboard(t *testing.T) {
	d := NewDashboard(newTestStats())

	if d == nil {
		t.Fatal("NewDashboard returned nil")
	}
	if d.status != StatusIdle {
		t.Errorf("Expected StatusIdle, got %v", d.status)
	}
	if d.stats == nil {
		t.Error("Stats should not be nil")
	}
}

func TestDashboard_StatusTransitions(t *testing.T) {
	d := NewDashboard(newTestStats())

	d.Start()
	if d.status != StatusRunning {
		t.Errorf("Expected StatusRunning after Start, got %v", d.status)
	}

	d.Stop()
	if d.status != StatusStopped {
		t.Errorf("Expected StatusStopped after Stop, got %v", d.status)
	}

	d.Complete()
	if d.status != StatusCompleted {
		t.Errorf("Expected StatusCompleted after Complete, got %v", d.status)
	}
}

func TestDashboard_AddLog(t *testing.T) {
	d := NewDashboard(newTestStats())

	d.AddLog("INFO", "Test message 1")
	d.AddLog("ERROR", "Test message 2")

	if len(d.logs) != 2 {
		t.Errorf("Expected 2 logs, got %d", len(d.logs))
	}
	if d.logs[0].Level != "INFO" {
		t.Errorf("Expected first log level INFO, got %s", d.logs[0].Level)
	}
	if d.logs[1].Message != "Test message 2" {
		t.Errorf("Expected second log message 'Test message 2', got %s", d.logs[1].Message)
	}
}

func TestDashboard_LogTrimming(t *testing.T) {
	d := NewDashboard(newTestStats())
	d.maxLogs = 5

	for i := 0; i < 10; i++ {
		d.AddLog("INFO", "Message")
	}

	if len(d.logs) != 5 {
		t.Errorf("Expected %d logs after trimming, got %d", d.maxLogs, len(d.logs))
	}
}

func TestStats_SnapshotReflectsMonitor(t *testing.T) {
	mon := monitor.NewMonitor()
	mon.RecordRun("ok", 10*time.Millisecond, true, 5)
	mon.RecordRun("crash", 5*time.Millisecond, false, 5)

	s := NewStats(mon, nil)
	snap := s.Snapshot()

	if snap.Executions != 2 {
		t.Errorf("Expected 2 executions, got %d", snap.Executions)
	}
	if snap.Crashes != 1 {
		t.Errorf("Expected 1 crash, got %d", snap.Crashes)
	}
	if snap.InterestingInputs != 1 {
		t.Errorf("Expected 1 interesting input, got %d", snap.InterestingInputs)
	}
}

func TestStats_SnapshotReflectsScheduler(t *testing.T) {
	sched, err := corpus.NewScheduler("")
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	sched.AddSeed([]byte("seed"))

	s := NewStats(nil, sched)
	snap := s.Snapshot()

	if snap.CorpusSize != 1 {
		t.Errorf("Expected corpus size 1, got %d", snap.CorpusSize)
	}
}

func TestStats_SnapshotZeroValueWhenNil(t *testing.T) {
	s := NewStats(nil, nil)
	snap := s.Snapshot()
	if snap.Executions != 0 || snap.CorpusSize != 0 {
		t.Errorf("Expected zero-value snapshot, got %+v", snap)
	}
}

func TestProgressBar(t *testing.T) {
	p := NewProgressBar(50)

	p.SetProgress(0.5)
	p.SetETA("5m30s")

	rendered := p.Render()
	if rendered == "" {
		t.Error("ProgressBar Render returned empty string")
	}
	if len(rendered) < 10 {
		t.Error("ProgressBar Render output too short")
	}
}

func TestProgressBar_Bounds(t *testing.T) {
	p := NewProgressBar(50)

	p.SetProgress(-0.5)
	if p.percentage != 0 {
		t.Errorf("Expected percentage clamped to 0, got %f", p.percentage)
	}

	p.SetProgress(1.5)
	if p.percentage != 1 {
		t.Errorf("Expected percentage clamped to 1, got %f", p.percentage)
	}
}

func TestSpinnerProgress(t *testing.T) {
	s := NewSpinnerProgress()
	s.SetText("Loading data...")

	if !s.running {
		t.Error("Spinner should be running by default")
	}

	initialFrame := s.frame
	s.Tick()
	s.Tick()

	if s.frame == initialFrame {
		t.Error("Spinner frame should change after Tick")
	}

	s.Stop()
	if s.running {
		t.Error("Spinner should not be running after Stop")
	}
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusIdle, "Idle"},
		{StatusRunning, "Running"},
		{StatusStopped, "Stopped"},
		{StatusCompleted, "Completed"},
	}

	for _, tt := range tests {
		if tt.status.String() != tt.expected {
			t.Errorf("Status.String(): expected %s, got %s", tt.expected, tt.status.String())
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.0K"},
		{1500, "1.5K"},
		{1000000, "1.0M"},
		{1500000, "1.5M"},
	}

	for _, tt := range tests {
		result := formatNumber(tt.input)
		if result != tt.expected {
			t.Errorf("formatNumber(%d): expected %s, got %s", tt.input, tt.expected, result)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{50 * time.Millisecond, "50ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m30s"},
		{90 * time.Minute, "1h30m"},
	}

	for _, tt := range tests {
		result := formatDuration(tt.input)
		if result != tt.expected {
			t.Errorf("formatDuration(%v): expected %s, got %s", tt.input, tt.expected, result)
		}
	}
}

func BenchmarkDashboard_View(b *testing.B) {
	mon := monitor.NewMonitor()
	for i := 0; i < 100; i++ {
		mon.RecordRun("ok", 100*time.Microsecond, false, i)
	}

	d := NewDashboard(NewStats(mon, nil))
	d.width = 120
	d.height = 40
	d.Start()

	for i := 0; i < 20; i++ {
		d.AddLog("INFO", "Test message")
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.View()
	}
}
