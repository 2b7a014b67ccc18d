package aggression

import (
	"testing"
	"time"
)

type recordingWidener struct {
	applied bool
	scale   float64
}

func (w *recordingWidener) ApplyAggression(scale float64) { w.applied = true; w.scale = scale }
func (w *recordingWidener) ClearAggression()              { w.applied = false }

func TestEntersAggressiveOnFirstStagnation(t *testing.T) {
	m := NewManager(0, 0, 0)
	w := &recordingWidener{}
	m.Register(w)

	flipped := m.Update(true)
	if !flipped || !m.Active() {
		t.Fatal("expected manager to enter aggressive state")
	}
	if !w.applied || w.scale != 2.0 {
		t.Errorf("expected widener to receive scale 2.0, got applied=%v scale=%v", w.applied, w.scale)
	}
}

func TestStaysActiveForMinDuration(t *testing.T) {
	m := NewManager(10*time.Millisecond, 50*time.Millisecond, 2.0)
	m.Update(true)

	if flipped := m.Update(false); flipped {
		t.Error("should not exit before min duration elapses")
	}
	if !m.Active() {
		t.Error("should still be active before min duration elapses")
	}
}

func TestExitsAfterMinDurationThenCooldownBlocksReentry(t *testing.T) {
	m := NewManager(50*time.Millisecond, 10*time.Millisecond, 2.0)
	m.Update(true)
	time.Sleep(15 * time.Millisecond)

	if flipped := m.Update(false); !flipped {
		t.Fatal("expected exit after min duration elapsed")
	}
	if m.Active() {
		t.Error("should be inactive after exit")
	}

	if flipped := m.Update(true); flipped {
		t.Error("re-entry during cooldown should not flip state")
	}
	if m.Active() {
		t.Error("should remain inactive during cooldown")
	}
}

func TestReentersAfterCooldownElapses(t *testing.T) {
	m := NewManager(10*time.Millisecond, 5*time.Millisecond, 2.0)
	m.Update(true)
	time.Sleep(6 * time.Millisecond)
	m.Update(false)
	time.Sleep(12 * time.Millisecond)

	if flipped := m.Update(true); !flipped {
		t.Fatal("expected re-entry once cooldown has elapsed")
	}
}
