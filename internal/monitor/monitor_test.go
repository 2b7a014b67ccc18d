package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRecordRunTallies(t *testing.T) {
	m := NewMonitor()
	m.RecordRun("ok", 10*time.Millisecond, false, 5)
	m.RecordRun("crash", 20*time.Millisecond, true, 9)
	m.RecordRun("hang", 30*time.Millisecond, false, 9)
	m.RecordRun("error", 5*time.Millisecond, false, 9)

	snap := m.Snapshot()
	if snap.Executions != 4 {
		t.Errorf("expected 4 executions, got %d", snap.Executions)
	}
	if snap.Crashes != 1 || snap.Hangs != 1 || snap.Errors != 1 {
		t.Errorf("unexpected tallies: %+v", snap)
	}
	if snap.InterestingInputs != 1 {
		t.Errorf("expected 1 interesting input, got %d", snap.InterestingInputs)
	}
	if snap.LastNoveltyTime.IsZero() {
		t.Error("expected LastNoveltyTime to be set after a novel run")
	}
	if snap.AvgExecTimeNs <= 0 {
		t.Error("expected a positive average exec time")
	}
}

func TestSetCoveragePercent(t *testing.T) {
	m := NewMonitor()
	m.SetCoveragePercent(42.5)
	if got := m.Snapshot().CoveragePercent; got != 42.5 {
		t.Errorf("expected 42.5, got %v", got)
	}
}

func TestGrowthOverWindowNoSamples(t *testing.T) {
	m := NewMonitor()
	if _, ok := m.GrowthOverWindow(time.Second); ok {
		t.Error("expected ok=false with no samples recorded")
	}
}

func TestGrowthOverWindowReflectsPopcountDelta(t *testing.T) {
	m := NewMonitor()
	m.RecordRun("ok", time.Millisecond, false, 1)
	m.RecordRun("ok", time.Millisecond, false, 3)
	m.RecordRun("ok", time.Millisecond, true, 8)

	delta, ok := m.GrowthOverWindow(time.Hour)
	if !ok {
		t.Fatal("expected a growth sample")
	}
	if delta != 7 {
		t.Errorf("expected delta of 7 (8-1), got %d", delta)
	}
}

func TestGrowthSampleHistoryBounded(t *testing.T) {
	m := NewMonitor()
	for i := 0; i < maxGrowthSamples+50; i++ {
		m.RecordRun("ok", time.Microsecond, false, i)
	}
	if len(m.samples) != maxGrowthSamples {
		t.Errorf("expected sample history capped at %d, got %d", maxGrowthSamples, len(m.samples))
	}
}

func TestJournalAppendsRecordsAndExports(t *testing.T) {
	m := NewMonitor()
	m.Journal(RunRecord{CandidateID: 1, Status: "ok", WallTime: time.Millisecond, Novelty: 0, CumulativeCoverage: 5}, []byte("a"))
	m.Journal(RunRecord{CandidateID: 2, Status: "crash", WallTime: 2 * time.Millisecond, Novelty: 0, CumulativeCoverage: 5, ArtifactPath: "/tmp/crash-1"}, []byte("b"))

	path := filepath.Join(t.TempDir(), "monitor_records.json")
	if err := m.ExportRecords(path); err != nil {
		t.Fatalf("ExportRecords: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading exported records: %v", err)
	}
	var records []RunRecord
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("unmarshal exported records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 journaled records, got %d", len(records))
	}
	if records[0].CandidateID != 1 || records[1].Status != "crash" {
		t.Errorf("unexpected records: %+v", records)
	}
	for _, r := range records {
		if r.Timestamp.IsZero() {
			t.Error("expected Journal to stamp a non-zero timestamp")
		}
	}
}

func TestJournalSavesNoveltyArtifact(t *testing.T) {
	m := NewMonitor()
	dir := t.TempDir()
	if err := m.SetArtifactDir(dir, 2); err != nil {
		t.Fatalf("SetArtifactDir: %v", err)
	}

	m.Journal(RunRecord{Status: "ok", Novelty: 1}, []byte("below-threshold"))
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no artifact saved below novelty threshold, got %d", len(entries))
	}

	m.Journal(RunRecord{Status: "ok", Novelty: 3}, []byte("above-threshold"))
	entries, err = os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one novelty artifact saved, got %d", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("reading saved artifact: %v", err)
	}
	if string(data) != "above-threshold" {
		t.Errorf("expected saved artifact bytes to match variant, got %q", data)
	}
}

func TestGrowthRateAndIsGrowthSlow(t *testing.T) {
	m := NewMonitor()
	m.RecordRun("ok", time.Millisecond, false, 0)
	m.RecordRun("ok", time.Millisecond, false, 1)

	if rate, ok := m.GrowthRate(time.Hour); !ok || rate <= 0 {
		t.Errorf("expected a positive growth rate, got %v ok=%v", rate, ok)
	}

	if m.IsGrowthSlow(time.Hour, 1000, 1000) == false {
		t.Error("expected growth to be reported slow against an unreachably high rate/delta")
	}
	if m.IsGrowthSlow(time.Hour, 0, 0) {
		t.Error("expected growth not to be reported slow against zero thresholds")
	}
}

func TestClustererGroupsSimilarStderr(t *testing.T) {
	c := NewClusterer()
	stderr := []byte("panic: runtime error: index out of range [12] with length 5\ngoroutine 1 [running]:\nmain.process")
	near := []byte("panic: runtime error: index out of range [99] with length 5\ngoroutine 1 [running]:\nmain.process")
	unrelated := []byte("panic: nil pointer dereference\nsignal SIGSEGV\ngoroutine 7 [running]:\nmain.handle")

	id1 := c.Add("crash-1", stderr, nil)
	id2 := c.Add("crash-2", near, nil)
	id3 := c.Add("crash-3", unrelated, nil)

	if id1 != id2 {
		t.Errorf("expected near-identical stderr to join the same cluster, got %d vs %d", id1, id2)
	}
	if id3 == id1 {
		t.Error("expected unrelated stderr to start a new cluster")
	}
	if c.Count() != 2 {
		t.Errorf("expected 2 clusters, got %d", c.Count())
	}
}

func TestClustererGroupsSimilarArtifactsByTLSH(t *testing.T) {
	c := NewClusterer()
	base := make([]byte, 200)
	for i := range base {
		base[i] = byte(i % 251)
	}
	near := make([]byte, len(base))
	copy(near, base)
	near[10] = 0xAB
	near[50] = 0xCD

	id1 := c.Add("crash-a", nil, base)
	id2 := c.Add("crash-b", nil, near)

	if id1 != id2 {
		t.Errorf("expected near-identical artifacts to cluster together, got %d vs %d", id1, id2)
	}
}

func TestClustererHandlesTooSmallArtifacts(t *testing.T) {
	c := NewClusterer()
	id := c.Add("tiny", []byte("boom"), []byte{1, 2, 3})
	if id == 0 {
		t.Error("expected a cluster id even when artifact is too small for TLSH")
	}
}
