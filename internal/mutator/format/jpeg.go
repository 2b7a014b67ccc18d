package format

import (
	"encoding/binary"

	"github.com/fluxfuzzer/corefuzz/internal/mutator"
	"github.com/fluxfuzzer/corefuzz/pkg/types"
)

const (
	jpegSOI  = 0xd8
	jpegEOI  = 0xd9
	jpegSOS  = 0xda
	jpegDQT  = 0xdb
	jpegDHT  = 0xc4
	jpegAPP0 = 0xe0
)

type jpegSegment struct {
	marker byte
	data   []byte // excludes the 2-byte length field itself; empty for standalone markers
	scan   []byte // entropy-coded scan data trailing an SOS segment, if any
}

// JPEGMutator layers deterministic edits, havoc, and segment-aware structural
// mutation (APPn/DQT/DHT/scan data) over the FF-prefixed marker stream.
type JPEGMutator struct{}

func NewJPEGMutator() *JPEGMutator { return &JPEGMutator{} }

func (m *JPEGMutator) Name() string             { return "format/jpeg" }
func (m *JPEGMutator) Description() string      { return "JPEG segment-aware structural mutation" }
func (m *JPEGMutator) Type() types.MutationType { return types.FormatAware }

const maxJPEGVariants = 48

func (m *JPEGMutator) Generate(input []byte) mutator.Generator {
	if len(input) < 4 || input[0] != 0xff || input[1] != jpegSOI {
		return fallbackGenerator(input)
	}
	segments, err := parseJPEG(input)
	if err != nil || len(segments) == 0 {
		return fallbackGenerator(input)
	}

	strategies := []func([]jpegSegment) []jpegSegment{
		m.deterministicFlip,
		m.havocByteEdit,
		m.perturbAPP,
		m.perturbDQT,
		m.perturbDHT,
		m.perturbScanData,
		m.injectRSTMarkers,
	}
	produced := 0
	return func() ([]byte, bool) {
		if produced >= maxJPEGVariants {
			return nil, false
		}
		strategy := strategies[produced%len(strategies)]
		produced++
		mutated := strategy(cloneJPEGSegments(segments))
		return encodeJPEG(mutated), true
	}
}

func cloneJPEGSegments(segs []jpegSegment) []jpegSegment {
	out := make([]jpegSegment, len(segs))
	for i, s := range segs {
		out[i] = jpegSegment{marker: s.marker, data: append([]byte(nil), s.data...), scan: append([]byte(nil), s.scan...)}
	}
	return out
}

func parseJPEG(input []byte) ([]jpegSegment, error) {
	var segs []jpegSegment
	pos := 2 // skip SOI
	for pos+1 < len(input) {
		if input[pos] != 0xff {
			return nil, errShortFile
		}
		marker := input[pos+1]
		pos += 2
		if marker == jpegEOI {
			break
		}
		if isStandaloneMarker(marker) {
			segs = append(segs, jpegSegment{marker: marker})
			continue
		}
		if pos+2 > len(input) {
			return nil, errShortFile
		}
		length := int(binary.BigEndian.Uint16(input[pos : pos+2]))
		if length < 2 || pos+length > len(input) {
			return nil, errShortFile
		}
		data := append([]byte(nil), input[pos+2:pos+length]...)
		pos += length
		seg := jpegSegment{marker: marker, data: data}
		if marker == jpegSOS {
			scanEnd := findNextMarker(input, pos)
			seg.scan = append([]byte(nil), input[pos:scanEnd]...)
			pos = scanEnd
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

func isStandaloneMarker(marker byte) bool {
	return marker == 0x01 || (marker >= 0xd0 && marker <= 0xd7)
}

// findNextMarker scans scan data for the next FF marker that isn't a stuffed
// 0xFF00 byte or an RSTn marker (which belongs to the scan itself).
func findNextMarker(input []byte, pos int) int {
	for i := pos; i+1 < len(input); i++ {
		if input[i] == 0xff {
			next := input[i+1]
			if next == 0x00 || (next >= 0xd0 && next <= 0xd7) {
				i++
				continue
			}
			return i
		}
	}
	return len(input)
}

func encodeJPEG(segs []jpegSegment) []byte {
	out := []byte{0xff, jpegSOI}
	for _, s := range segs {
		out = append(out, 0xff, s.marker)
		if isStandaloneMarker(s.marker) {
			continue
		}
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s.data)+2))
		out = append(out, lenBuf[:]...)
		out = append(out, s.data...)
		out = append(out, s.scan...)
	}
	out = append(out, 0xff, jpegEOI)
	return out
}

func (m *JPEGMutator) deterministicFlip(segs []jpegSegment) []jpegSegment {
	idx := nonEmptyJPEGSegment(segs)
	if idx < 0 {
		return segs
	}
	pos := secureRandomIntF(len(segs[idx].data))
	switch secureRandomIntF(3) {
	case 0:
		segs[idx].data[pos] ^= 1 << uint(secureRandomIntF(8))
	case 1:
		segs[idx].data[pos] ^= 0xff
	default:
		segs[idx].data[pos] = byte(int(segs[idx].data[pos]) + 1 + secureRandomIntF(8))
	}
	return segs
}

func nonEmptyJPEGSegment(segs []jpegSegment) int {
	var candidates []int
	for i, s := range segs {
		if len(s.data) > 0 {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return -1
	}
	return candidates[secureRandomIntF(len(candidates))]
}

func (m *JPEGMutator) havocByteEdit(segs []jpegSegment) []jpegSegment {
	idx := nonEmptyJPEGSegment(segs)
	if idx < 0 {
		return segs
	}
	n := 1 + secureRandomIntF(minF(6, len(segs[idx].data)))
	for i := 0; i < n; i++ {
		pos := secureRandomIntF(len(segs[idx].data))
		segs[idx].data[pos] = byte(secureRandomIntF(256))
	}
	return segs
}

func (m *JPEGMutator) perturbAPP(segs []jpegSegment) []jpegSegment {
	for i, s := range segs {
		if s.marker >= 0xe0 && s.marker <= 0xef && len(s.data) > 0 {
			pos := secureRandomIntF(len(s.data))
			segs[i].data[pos] ^= 0xff
			return segs
		}
	}
	return segs
}

func (m *JPEGMutator) perturbDQT(segs []jpegSegment) []jpegSegment {
	for i, s := range segs {
		if s.marker == jpegDQT && len(s.data) > 1 {
			pos := 1 + secureRandomIntF(len(s.data)-1)
			segs[i].data[pos] = byte(secureRandomIntF(256))
			return segs
		}
	}
	return segs
}

func (m *JPEGMutator) perturbDHT(segs []jpegSegment) []jpegSegment {
	for i, s := range segs {
		if s.marker == jpegDHT && len(s.data) > 1 {
			pos := 1 + secureRandomIntF(len(s.data)-1)
			segs[i].data[pos] = byte(secureRandomIntF(256))
			return segs
		}
	}
	return segs
}

func (m *JPEGMutator) perturbScanData(segs []jpegSegment) []jpegSegment {
	for i, s := range segs {
		if s.marker == jpegSOS && len(s.scan) > 0 {
			pos := secureRandomIntF(len(s.scan))
			segs[i].scan[pos] ^= 0xff
			return segs
		}
	}
	return segs
}

func (m *JPEGMutator) injectRSTMarkers(segs []jpegSegment) []jpegSegment {
	for i, s := range segs {
		if s.marker == jpegSOS && len(s.scan) > 4 {
			mid := len(s.scan) / 2
			injected := append([]byte(nil), s.scan[:mid]...)
			injected = append(injected, 0xff, 0xd0)
			injected = append(injected, s.scan[mid:]...)
			segs[i].scan = injected
			return segs
		}
	}
	return segs
}
