package mutator

import (
	"bytes"
	"testing"

	"github.com/fluxfuzzer/corefuzz/pkg/types"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	m := NewBitFlipMutator("bit1")
	r.Register(m)

	got, ok := r.Get("bitflip/bit1")
	if !ok || got.Name() != "bitflip/bit1" {
		t.Fatalf("Get returned %v, %v", got, ok)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRegistryByType(t *testing.T) {
	r := NewRegistry()
	r.Register(NewBitFlipMutator("bit1"))
	r.Register(NewArithmeticMutator(1, false, false))

	bitflips := r.ByType(types.BitFlip)
	if len(bitflips) != 1 {
		t.Fatalf("ByType(BitFlip) returned %d mutators, want 1", len(bitflips))
	}
}

func TestRegistryReRegisterKeepsOrder(t *testing.T) {
	r := NewRegistry()
	m := NewBitFlipMutator("bit1")
	r.Register(m)
	r.Register(m)
	if r.Count() != 1 {
		t.Errorf("duplicate Register should not grow order, got Count()=%d", r.Count())
	}
}

func drain(t *testing.T, gen Generator, limit int) [][]byte {
	t.Helper()
	var out [][]byte
	for i := 0; i < limit; i++ {
		v, ok := gen()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

func TestBitFlipMutatorProducesVariants(t *testing.T) {
	m := NewBitFlipMutator("bit1")
	input := []byte("hello world")
	variants := drain(t, m.Generate(input), maxBitFlipVariants+1)
	if len(variants) == 0 {
		t.Fatal("expected at least one variant")
	}
	for _, v := range variants {
		if len(v) != len(input) {
			t.Fatalf("bitflip changed length: %d vs %d", len(v), len(input))
		}
		if bytes.Equal(v, input) {
			t.Error("variant identical to input")
		}
	}
}

func TestBitFlipMutatorEmptyInput(t *testing.T) {
	m := NewBitFlipMutator("byte")
	gen := m.Generate(nil)
	if _, ok := gen(); ok {
		t.Error("expected no variants for empty input")
	}
}

func TestArithmeticMutatorWrapsModulo(t *testing.T) {
	m := NewArithmeticMutator(1, false, false)
	input := []byte{0xff}
	found := false
	gen := m.Generate(input)
	for i := 0; i < 64; i++ {
		v, ok := gen()
		if !ok {
			break
		}
		if v[0] != input[0] {
			found = true
		}
	}
	if !found {
		t.Error("expected arithmetic mutation to change the single byte at least once")
	}
}

func TestInterestingValueMutatorSetsCanonicalValues(t *testing.T) {
	m := NewInterestingValueMutator(1, nil)
	input := make([]byte, 4)
	variants := drain(t, m.Generate(input), 1000)
	if len(variants) == 0 {
		t.Fatal("expected variants")
	}
	sawMax := false
	for _, v := range variants {
		for _, b := range v {
			if b == 0xff {
				sawMax = true
			}
		}
	}
	if !sawMax {
		t.Error("expected 0xff (interesting -1) to appear among variants")
	}
}

func TestHavocMutatorPreservesNonEmptyOutput(t *testing.T) {
	dict := NewDictionary()
	m := NewHavocMutator(dict)
	input := []byte("some seed input for havoc")
	variants := drain(t, m.Generate(input), defaultHavocVariants+1)
	if len(variants) != defaultHavocVariants {
		t.Fatalf("expected %d variants, got %d", defaultHavocVariants, len(variants))
	}
}

func TestHavocAggressionWidensRounds(t *testing.T) {
	m := NewHavocMutator(nil)
	base := m.rounds
	m.ApplyAggression(2.0)
	if m.scale != 2.0 {
		t.Errorf("scale = %v, want 2.0", m.scale)
	}
	m.ClearAggression()
	if m.scale != 1.0 {
		t.Error("ClearAggression should reset scale to 1.0")
	}
	_ = base
}

type fixedDonorPool struct{ donor []byte }

func (p fixedDonorPool) RandomDonor(exclude []byte) []byte { return p.donor }

func TestSpliceMutatorCombinesInputAndDonor(t *testing.T) {
	pool := fixedDonorPool{donor: []byte("DONORDONORDONOR")}
	m := NewSpliceMutator(pool)
	input := []byte("hello world")
	variants := drain(t, m.Generate(input), maxSpliceVariants+1)
	if len(variants) != maxSpliceVariants {
		t.Fatalf("expected %d variants, got %d", maxSpliceVariants, len(variants))
	}
	for _, v := range variants {
		if len(v) == 0 {
			t.Error("splice variant should not be empty")
		}
	}
}

func TestSpliceMutatorNoDonorPool(t *testing.T) {
	m := NewSpliceMutator(nil)
	if _, ok := m.Generate([]byte("abc"))(); ok {
		t.Error("expected no variants without a donor pool")
	}
}

func TestDictionaryAddAndRandom(t *testing.T) {
	d := NewDictionary()
	before := d.Len()
	d.Add([]byte("custom-token"))
	if d.Len() != before+1 {
		t.Errorf("Len() = %d, want %d", d.Len(), before+1)
	}
	tok := d.Random()
	if tok == nil {
		t.Error("Random() returned nil on non-empty dictionary")
	}
}

func TestUnescapeDictToken(t *testing.T) {
	got := unescapeDictToken(`\x41\x42`)
	if string(got) != "AB" {
		t.Errorf("unescapeDictToken = %q, want %q", got, "AB")
	}
}

func TestDictionaryMutatorGeneratesSubstitutions(t *testing.T) {
	d := NewDictionary()
	m := NewDictionaryMutator(d)
	input := []byte("some input buffer of a reasonable size")
	variants := drain(t, m.Generate(input), maxDictVariants+1)
	if len(variants) == 0 {
		t.Fatal("expected variants from dictionary mutator")
	}
}
