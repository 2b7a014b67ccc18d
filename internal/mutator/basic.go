package mutator

import (
	"encoding/binary"
	"strings"

	"github.com/fluxfuzzer/corefuzz/pkg/types"
)

// maxBitFlipVariants caps variants per invocation, per spec.md §4.D.
const maxBitFlipVariants = 256

// Canonical interesting-value sets per spec.md §4.D.
var (
	interesting8  = []int8{0, 1, 0x7f, -0x80, -1} // -0x80==0x80, -1==0xff as int8
	interesting16 = []int16{0, 1, 0x7fff, -0x8000, -1}
	interesting32 = []int32{0, 1, 0x7fffffff, -0x80000000, -1}
)

// arithDeltas are spec.md's small-integer deltas plus a few boundary
// neighbors; large random deltas are added per call in Generate.
var arithDeltas = []int64{1, -1, 2, -2, 8, -8, 16, -16}

// weightedBitPositions samples byte positions favoring non-{0x00,0xFF} and
// printable-ASCII bytes, per spec.md's "prioritize informative bytes".
func weightedBitPositions(input []byte, n int) []int {
	if len(input) == 0 {
		return nil
	}
	weights := make([]int, len(input))
	total := 0
	for i, b := range input {
		w := 1
		if b != 0x00 && b != 0xff {
			w += 2
		}
		if b >= 0x20 && b < 0x7f {
			w += 2
		}
		weights[i] = w
		total += w
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		r := secureRandomInt(total)
		acc := 0
		for idx, w := range weights {
			acc += w
			if r < acc {
				out = append(out, idx)
				break
			}
		}
	}
	return out
}

// BitFlipMutator flips single bits, bit pairs, whole bytes, or contiguous
// byte windows, grounded on the teacher's afl.go BitFlipMutator/ByteFlipMutator.
type BitFlipMutator struct {
	mode string // "bit1", "bit2", "byte", "window2", "window4", "window8"
}

func NewBitFlipMutator(mode string) *BitFlipMutator { return &BitFlipMutator{mode: mode} }

func (m *BitFlipMutator) Name() string        { return "bitflip/" + m.mode }
func (m *BitFlipMutator) Description() string { return "bit-level flip mutation, mode=" + m.mode }

func (m *BitFlipMutator) Type() types.MutationType {
	if m.mode == "byte" || strings.HasPrefix(m.mode, "window") {
		return types.ByteFlip
	}
	return types.BitFlip
}

func (m *BitFlipMutator) Generate(input []byte) Generator {
	if len(input) == 0 {
		return exhausted
	}
	positions := weightedBitPositions(input, maxBitFlipVariants)
	i := 0
	return func() ([]byte, bool) {
		if i >= len(positions) {
			return nil, false
		}
		pos := positions[i]
		i++
		out := append([]byte(nil), input...)
		switch m.mode {
		case "bit1":
			bit := secureRandomInt(8)
			out[pos] ^= 1 << uint(bit)
		case "bit2":
			bit := secureRandomInt(7)
			out[pos] ^= 3 << uint(bit)
		case "byte":
			out[pos] ^= 0xff
		case "window2", "window4", "window8":
			width := map[string]int{"window2": 2, "window4": 4, "window8": 8}[m.mode]
			for j := 0; j < width && pos+j < len(out); j++ {
				out[pos+j] ^= 0xff
			}
		default:
			out[pos] ^= 1
		}
		return out, true
	}
}

// ArithmeticMutator adds small deltas to 1/2/4-byte words at sampled
// positions, wrapping modulo 2^(8*width), endianness configurable.
type ArithmeticMutator struct {
	width         int // 1, 2, or 4
	bigEndian     bool
	saturate      bool
}

func NewArithmeticMutator(width int, bigEndian, saturate bool) *ArithmeticMutator {
	return &ArithmeticMutator{width: width, bigEndian: bigEndian, saturate: saturate}
}

func (m *ArithmeticMutator) Name() string { return "arith/" + widthName(m.width) }
func (m *ArithmeticMutator) Description() string {
	return "arithmetic edit of " + widthName(m.width) + " words"
}
func (m *ArithmeticMutator) Type() types.MutationType { return types.ArithmeticEdit }

func widthName(w int) string {
	switch w {
	case 1:
		return "8"
	case 2:
		return "16"
	default:
		return "32"
	}
}

func (m *ArithmeticMutator) Generate(input []byte) Generator {
	if len(input) < m.width {
		return exhausted
	}
	deltas := append([]int64(nil), arithDeltas...)
	deltas = append(deltas, int64(secureRandomInt(1000)), -int64(secureRandomInt(1000)))
	maxPos := len(input) - m.width
	positions := weightedBitPositions(input[:maxPos+1], maxBitFlipVariants/len(deltas)+1)

	type job struct {
		pos   int
		delta int64
	}
	jobs := make([]job, 0, len(positions)*len(deltas))
	for _, p := range positions {
		for _, d := range deltas {
			jobs = append(jobs, job{p, d})
		}
	}
	i := 0
	return func() ([]byte, bool) {
		if i >= len(jobs) {
			return nil, false
		}
		j := jobs[i]
		i++
		out := append([]byte(nil), input...)
		applyArith(out, j.pos, m.width, j.delta, m.bigEndian, m.saturate)
		return out, true
	}
}

func applyArith(buf []byte, pos, width int, delta int64, bigEndian, saturate bool) {
	window := buf[pos : pos+width]
	var v uint64
	switch width {
	case 1:
		v = uint64(window[0])
	case 2:
		if bigEndian {
			v = uint64(binary.BigEndian.Uint16(window))
		} else {
			v = uint64(binary.LittleEndian.Uint16(window))
		}
	case 4:
		if bigEndian {
			v = uint64(binary.BigEndian.Uint32(window))
		} else {
			v = uint64(binary.LittleEndian.Uint32(window))
		}
	}
	nv := int64(v) + delta
	mod := int64(1) << uint(8*width)
	if saturate {
		if nv < 0 {
			nv = 0
		}
		if nv >= mod {
			nv = mod - 1
		}
	} else {
		nv = ((nv % mod) + mod) % mod
	}
	v = uint64(nv)
	switch width {
	case 1:
		window[0] = byte(v)
	case 2:
		if bigEndian {
			binary.BigEndian.PutUint16(window, uint16(v))
		} else {
			binary.LittleEndian.PutUint16(window, uint16(v))
		}
	case 4:
		if bigEndian {
			binary.BigEndian.PutUint32(window, uint32(v))
		} else {
			binary.LittleEndian.PutUint32(window, uint32(v))
		}
	}
}

// InterestingValueMutator substitutes canonical boundary values (plus user
// extras) at positions in [0, min(len,32)).
type InterestingValueMutator struct {
	width  int // 1, 2, 4
	extras [][]byte
}

func NewInterestingValueMutator(width int, extras [][]byte) *InterestingValueMutator {
	return &InterestingValueMutator{width: width, extras: extras}
}

func (m *InterestingValueMutator) Name() string { return "interesting/" + widthName(m.width) }
func (m *InterestingValueMutator) Description() string {
	return "substitute canonical boundary values, width=" + widthName(m.width)
}
func (m *InterestingValueMutator) Type() types.MutationType { return types.InterestingValue }

func (m *InterestingValueMutator) valueSet() []int64 {
	var base []int64
	switch m.width {
	case 1:
		for _, v := range interesting8 {
			base = append(base, int64(v), int64(v)+1, int64(v)-1)
		}
	case 2:
		for _, v := range interesting16 {
			base = append(base, int64(v), int64(v)+1, int64(v)-1)
		}
	default:
		for _, v := range interesting32 {
			base = append(base, int64(v), int64(v)+1, int64(v)-1)
		}
	}
	return base
}

func (m *InterestingValueMutator) Generate(input []byte) Generator {
	bound := len(input)
	if bound > 32 {
		bound = 32
	}
	if bound < m.width {
		return exhausted
	}
	values := m.valueSet()
	type job struct {
		pos int
		v   int64
	}
	var jobs []job
	for pos := 0; pos <= bound-m.width; pos++ {
		for _, v := range values {
			jobs = append(jobs, job{pos, v})
		}
		for _, extra := range m.extras {
			if len(extra) == m.width {
				jobs = append(jobs, job{pos, int64(bytesToUint(extra))})
			}
		}
	}
	i := 0
	return func() ([]byte, bool) {
		if i >= len(jobs) {
			return nil, false
		}
		j := jobs[i]
		i++
		out := append([]byte(nil), input...)
		setValue(out, j.pos, m.width, j.v)
		return out, true
	}
}

func setValue(buf []byte, pos, width int, v int64) {
	window := buf[pos : pos+width]
	switch width {
	case 1:
		window[0] = byte(v)
	case 2:
		binary.BigEndian.PutUint16(window, uint16(v))
	case 4:
		binary.BigEndian.PutUint32(window, uint32(v))
	}
}

func bytesToUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// exhausted is a Generator that yields nothing, used for degenerate inputs.
func exhausted() ([]byte, bool) { return nil, false }
