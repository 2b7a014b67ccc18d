package mutator

import (
	"github.com/fluxfuzzer/corefuzz/pkg/types"
)

// havocOp is one weighted edit primitive in the composite round.
type havocOp int

const (
	opFlipBit havocOp = iota
	opFlipByte
	opSetInteresting8
	opSetInteresting16
	opSetInteresting32
	opAddSub
	opRandomByte
	opDeleteBytes
	opCloneBytes
	opInsertBytes
	opOverwriteBytes
	opSwapBytes
	opDictOverwrite
	opDictInsert
)

// havocWeights mirrors spec.md §4.D's weight table, in the same op order.
var havocWeights = []int{12, 8, 12, 10, 10, 6, 8, 6, 6, 6, 6, 6, 6, 10}

var havocOps = []havocOp{
	opFlipBit, opFlipByte, opSetInteresting8, opSetInteresting16, opSetInteresting32,
	opAddSub, opRandomByte, opDeleteBytes, opCloneBytes, opInsertBytes,
	opOverwriteBytes, opSwapBytes, opDictOverwrite, opDictInsert,
}

const defaultHavocRounds = 20
const defaultHavocVariants = 64

// HavocMutator runs a weighted-random sequence of small edits per variant,
// composing many primitive operations into one candidate, grounded on the
// teacher's HavocMutator in afl.go generalized to the new Generator shape.
type HavocMutator struct {
	dict   *Dictionary
	scale  float64 // aggression multiplier on rounds-per-variant
	rounds int
}

// NewHavocMutator builds a havoc mutator; dict may be nil (dict ops skipped).
func NewHavocMutator(dict *Dictionary) *HavocMutator {
	return &HavocMutator{dict: dict, scale: 1.0, rounds: defaultHavocRounds}
}

// ApplyAggression widens the round count by scale, per spec.md §4.F's
// aggression-mode note that havoc intensity increases under stagnation.
func (m *HavocMutator) ApplyAggression(scale float64) { m.scale = scale }

// ClearAggression resets round intensity to baseline.
func (m *HavocMutator) ClearAggression() { m.scale = 1.0 }

func (m *HavocMutator) Name() string             { return "havoc" }
func (m *HavocMutator) Description() string      { return "weighted composite multi-edit mutation" }
func (m *HavocMutator) Type() types.MutationType { return types.Havoc }

func (m *HavocMutator) Generate(input []byte) Generator {
	if len(input) == 0 {
		return exhausted
	}
	totalWeight := 0
	for _, w := range havocWeights {
		totalWeight += w
	}
	rounds := int(float64(m.rounds) * m.scale)
	if rounds < 1 {
		rounds = 1
	}
	produced := 0
	return func() ([]byte, bool) {
		if produced >= defaultHavocVariants {
			return nil, false
		}
		produced++
		out := append([]byte(nil), input...)
		n := 1 + secureRandomInt(rounds)
		for i := 0; i < n && len(out) > 0; i++ {
			out = m.applyOne(out, totalWeight)
		}
		return out, true
	}
}

func (m *HavocMutator) pickOp(totalWeight int) havocOp {
	r := secureRandomInt(totalWeight)
	acc := 0
	for i, w := range havocWeights {
		acc += w
		if r < acc {
			return havocOps[i]
		}
	}
	return havocOps[len(havocOps)-1]
}

func (m *HavocMutator) applyOne(buf []byte, totalWeight int) []byte {
	op := m.pickOp(totalWeight)
	switch op {
	case opFlipBit:
		pos := secureRandomInt(len(buf))
		buf[pos] ^= 1 << uint(secureRandomInt(8))
	case opFlipByte:
		pos := secureRandomInt(len(buf))
		buf[pos] ^= 0xff
	case opSetInteresting8:
		if len(buf) >= 1 {
			pos := secureRandomInt(len(buf))
			buf[pos] = byte(interesting8[secureRandomInt(len(interesting8))])
		}
	case opSetInteresting16:
		if len(buf) >= 2 {
			pos := secureRandomInt(len(buf) - 1)
			v := interesting16[secureRandomInt(len(interesting16))]
			setValue(buf, pos, 2, int64(v))
		}
	case opSetInteresting32:
		if len(buf) >= 4 {
			pos := secureRandomInt(len(buf) - 3)
			v := interesting32[secureRandomInt(len(interesting32))]
			setValue(buf, pos, 4, int64(v))
		}
	case opAddSub:
		pos := secureRandomInt(len(buf))
		delta := int64(1 + secureRandomInt(16))
		if secureRandomInt(2) == 0 {
			delta = -delta
		}
		buf[pos] = byte(int64(buf[pos]) + delta)
	case opRandomByte:
		pos := secureRandomInt(len(buf))
		buf[pos] = secureRandomBytes(1)[0]
	case opDeleteBytes:
		if len(buf) > 1 {
			n := 1 + secureRandomInt(minHavoc(len(buf)-1, 16))
			pos := secureRandomInt(len(buf) - n + 1)
			buf = append(buf[:pos], buf[pos+n:]...)
		}
	case opCloneBytes:
		n := 1 + secureRandomInt(minHavoc(len(buf), 16))
		src := secureRandomInt(len(buf) - n + 1)
		dst := secureRandomInt(len(buf) + 1)
		chunk := append([]byte(nil), buf[src:src+n]...)
		buf = insertAt(buf, dst, chunk)
	case opInsertBytes:
		n := 1 + secureRandomInt(16)
		dst := secureRandomInt(len(buf) + 1)
		buf = insertAt(buf, dst, secureRandomBytes(n))
	case opOverwriteBytes:
		n := 1 + secureRandomInt(minHavoc(len(buf), 16))
		pos := secureRandomInt(len(buf) - n + 1)
		copy(buf[pos:pos+n], secureRandomBytes(n))
	case opSwapBytes:
		if len(buf) >= 2 {
			a := secureRandomInt(len(buf))
			b := secureRandomInt(len(buf))
			buf[a], buf[b] = buf[b], buf[a]
		}
	case opDictOverwrite:
		if m.dict != nil {
			if tok := m.dict.Random(); tok != nil && len(tok) <= len(buf) {
				pos := secureRandomInt(len(buf) - len(tok) + 1)
				copy(buf[pos:pos+len(tok)], tok)
			}
		}
	case opDictInsert:
		if m.dict != nil {
			if tok := m.dict.Random(); tok != nil {
				dst := secureRandomInt(len(buf) + 1)
				buf = insertAt(buf, dst, tok)
			}
		}
	}
	return buf
}

func insertAt(buf []byte, pos int, chunk []byte) []byte {
	out := make([]byte, 0, len(buf)+len(chunk))
	out = append(out, buf[:pos]...)
	out = append(out, chunk...)
	out = append(out, buf[pos:]...)
	return out
}

func minHavoc(a, b int) int {
	if a < b {
		return a
	}
	return b
}
