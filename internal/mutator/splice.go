package mutator

import (
	"github.com/fluxfuzzer/corefuzz/pkg/types"
)

// DonorPool supplies other corpus inputs for cross-input splicing.
type DonorPool interface {
	RandomDonor(exclude []byte) []byte
}

// SpliceMutator recombines an input with a corpus donor, grounded on
// spec.md §4.D's splice strategies: common-prefix alignment then one of
// prefix/suffix swap, keep-prefix+append, append-suffix, or full crossover.
type SpliceMutator struct {
	pool DonorPool
}

func NewSpliceMutator(pool DonorPool) *SpliceMutator {
	return &SpliceMutator{pool: pool}
}

func (m *SpliceMutator) Name() string             { return "splice" }
func (m *SpliceMutator) Description() string      { return "cross-input donor recombination" }
func (m *SpliceMutator) Type() types.MutationType { return types.Splice }

const maxSpliceVariants = 16
const minSpliceLen = 2

func (m *SpliceMutator) Generate(input []byte) Generator {
	if len(input) < minSpliceLen || m.pool == nil {
		return exhausted
	}
	produced := 0
	return func() ([]byte, bool) {
		if produced >= maxSpliceVariants {
			return nil, false
		}
		donor := m.pool.RandomDonor(input)
		if len(donor) < minSpliceLen {
			return nil, false
		}
		produced++
		return spliceOnce(input, donor), true
	}
}

// commonPrefix returns the length of the shared leading bytes of a and b.
func commonPrefix(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func spliceOnce(input, donor []byte) []byte {
	prefixLen := commonPrefix(input, donor)
	strategy := secureRandomInt(4)
	switch strategy {
	case 0: // prefix(input) + suffix(donor), split at a point past the shared prefix
		split := splitPoint(prefixLen, len(input))
		out := append([]byte(nil), input[:split]...)
		donorSplit := split
		if donorSplit > len(donor) {
			donorSplit = len(donor)
		}
		out = append(out, donor[donorSplit:]...)
		return out
	case 1: // keep prefix of input, append all of donor
		split := splitPoint(prefixLen, len(input))
		out := append([]byte(nil), input[:split]...)
		out = append(out, donor...)
		return out
	case 2: // input with donor's suffix appended in full
		out := append([]byte(nil), input...)
		out = append(out, donor...)
		return out
	default: // full crossover: donor's prefix, input's suffix
		split := splitPoint(prefixLen, len(donor))
		out := append([]byte(nil), donor[:split]...)
		inputSplit := split
		if inputSplit > len(input) {
			inputSplit = len(input)
		}
		out = append(out, input[inputSplit:]...)
		return out
	}
}

// splitPoint picks a split index past the common prefix, favoring variety
// over always splitting exactly at the divergence point.
func splitPoint(prefixLen, length int) int {
	if length == 0 {
		return 0
	}
	if prefixLen >= length {
		return length / 2
	}
	span := length - prefixLen
	return prefixLen + secureRandomInt(span+1)
}
