package coverage

import "testing"

func TestBitmapAddAndPopcount(t *testing.T) {
	b := NewBitmap()
	if b.Popcount() != 0 {
		t.Fatalf("new bitmap should be empty, got popcount %d", b.Popcount())
	}
	b.Add(5)
	b.Add(5)
	if b.Popcount() != 1 {
		t.Errorf("expected popcount 1 after repeated add, got %d", b.Popcount())
	}
}

func TestBitmapMergeIdempotentAndCommutative(t *testing.T) {
	a := NewBitmap()
	a.Add(1)
	a.Add(2)
	b := NewBitmap()
	b.Add(2)
	b.Add(3)

	a.Merge(b)
	if a.Popcount() != 3 {
		t.Fatalf("expected popcount 3 after merge, got %d", a.Popcount())
	}

	before := a.Popcount()
	a.Merge(a.ToCompact())
	if a.Popcount() != before {
		t.Errorf("merge(self) should be idempotent, got %d want %d", a.Popcount(), before)
	}

	empty := NewBitmap()
	a.Merge(empty)
	if a.Popcount() != before {
		t.Errorf("merge(empty) should be a no-op, got %d want %d", a.Popcount(), before)
	}
}

func TestBitmapMergeAndCountNewMatchesFreshComputation(t *testing.T) {
	a := NewBitmap()
	a.Add(10)
	b := NewBitmap()
	b.Add(10)
	b.Add(20)
	b.Add(30)

	preMerge := a.Popcount()
	novel := a.MergeAndCountNew(b)
	if a.Popcount() != preMerge+novel {
		t.Errorf("popcount after merge (%d) should equal pre-merge (%d) + novel (%d)", a.Popcount(), preMerge, novel)
	}
	if novel != 2 {
		t.Errorf("expected 2 novel bits (20, 30), got %d", novel)
	}
}

func TestBitmapHashStableSignature(t *testing.T) {
	a := NewBitmap()
	a.Add(1)
	a.Add(2)
	b := NewBitmap()
	b.Add(2)
	b.Add(1)

	if string(a.Hash()) != string(b.Hash()) {
		t.Error("bitmaps with the same hit set should hash identically regardless of add order")
	}

	c := NewBitmap()
	c.Add(1)
	if string(a.Hash()) == string(c.Hash()) {
		t.Error("bitmaps with different hit sets should not collide")
	}
}

func TestParseFileTextMode(t *testing.T) {
	data := []byte("100\n0x1F\n200, 300\n")
	b := ParseFile(data)
	for _, edge := range []uint32{100, 0x1F, 200, 300} {
		if b.bytes[edge%BitmapSize] == 0 {
			t.Errorf("expected edge %d to be hit", edge)
		}
	}
}

func TestParseFileBinaryFallback(t *testing.T) {
	raw := make([]byte, 16)
	raw[3] = 1
	raw[7] = 0xff
	b := ParseFile(raw)
	if b.bytes[3] == 0 || b.bytes[7] == 0 {
		t.Error("binary fallback should mark nonzero byte offsets as hit")
	}
	if b.bytes[0] != 0 {
		t.Error("zero bytes should not be hit")
	}
}

func TestFromRawFoldsModuloBitmapSize(t *testing.T) {
	raw := make([]byte, BitmapSize+10)
	raw[BitmapSize+5] = 1
	b := FromRaw(raw)
	if b.bytes[5] == 0 {
		t.Error("index beyond BitmapSize should fold modulo BitmapSize")
	}
}
