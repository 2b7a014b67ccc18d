package corpus

import "testing"

func TestAddSeedThenDuplicateReportNeverGrowsCorpus(t *testing.T) {
	s, err := NewScheduler("")
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	s.AddSeed([]byte("seed"))
	before := s.Size()

	sig := []byte("same-signature")
	s.ReportResult([]byte("seed"), RunOutcome{Status: "ok", Coverage: sig, Novelty: 3})
	afterFirst := s.Size()
	if afterFirst != before+1 {
		t.Fatalf("expected corpus to grow by 1 on first novel report, got %d -> %d", before, afterFirst)
	}

	s.ReportResult([]byte("seed-variant-2"), RunOutcome{Status: "ok", Coverage: sig, Novelty: 3})
	afterDup := s.Size()
	if afterDup != afterFirst {
		t.Errorf("duplicate signature report should not grow corpus: got %d -> %d", afterFirst, afterDup)
	}
}

func TestCrashNeverAdmitted(t *testing.T) {
	s, _ := NewScheduler("")
	s.AddSeed([]byte("seed"))
	before := s.Size()
	s.ReportResult([]byte("crashy"), RunOutcome{Status: "crash", Coverage: []byte("sig"), Novelty: 5})
	if s.Size() != before {
		t.Errorf("crash outcome must never be admitted to corpus")
	}
}

func TestFavoredSizeBoundedAfterMaintenance(t *testing.T) {
	s, _ := NewScheduler("")
	s.FavoredCapacity = 2
	s.MaintenanceEvery = 1

	for i := 0; i < 5; i++ {
		sig := []byte{byte(i)}
		s.ReportResult([]byte{byte(i)}, RunOutcome{Status: "ok", Coverage: sig, Novelty: 1})
	}
	s.NextCandidate() // triggers maintenance since MaintenanceEvery=1

	snap := s.Snapshot()
	if snap.FavoredSize > s.FavoredCapacity {
		t.Errorf("favored set size %d exceeds capacity %d", snap.FavoredSize, s.FavoredCapacity)
	}
}

func TestRoundRobinWhenCorpusSmall(t *testing.T) {
	s, _ := NewScheduler("")
	a := s.AddSeed([]byte("a"))
	b := s.AddSeed([]byte("b"))

	seen := map[int64]bool{}
	for i := 0; i < 4; i++ {
		c := s.NextCandidate()
		seen[c.ID] = true
	}
	if !seen[a.ID] || !seen[b.ID] {
		t.Error("round robin over a 2-entry corpus should visit both candidates")
	}
}

func TestPanicsOnMissingArenaID(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic when scheduler would select an id absent from the arena")
		}
	}()
	s, _ := NewScheduler("")
	s.queue = []int64{999}
	s.NextCandidate()
}
