package format

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/fluxfuzzer/corefuzz/internal/mutator"
	"github.com/fluxfuzzer/corefuzz/pkg/types"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

type pngChunk struct {
	typ     string
	data    []byte
	crcOK   bool
	rawOff  int
	rawSize int
}

// PNGMutator parses the chunk stream and mutates structure while never
// touching IHDR/IEND identity, recomputing CRCs after payload edits. Safe
// mode (default on) disables deletion and extreme length corruption.
type PNGMutator struct {
	SafeMode bool
	cache    *parseCache
}

func NewPNGMutator() *PNGMutator {
	return &PNGMutator{SafeMode: true, cache: newParseCache(defaultParseCacheCapacity)}
}

func (m *PNGMutator) Name() string             { return "format/png" }
func (m *PNGMutator) Description() string      { return "PNG chunk-structural mutation" }
func (m *PNGMutator) Type() types.MutationType { return types.FormatAware }

const maxPNGVariants = 48

func (m *PNGMutator) Generate(input []byte) mutator.Generator {
	if len(input) < len(pngSignature) || !bytes.Equal(input[:8], pngSignature) {
		return fallbackGenerator(input)
	}
	chunks, err := parsePNGChunks(input)
	if err != nil || len(chunks) < 2 {
		return fallbackGenerator(input)
	}

	strategies := []func([]pngChunk) []pngChunk{
		m.flipChunkPayload,
		m.swapNonCriticalAdjacent,
		m.tweakIHDR,
		m.mutatePLTE,
		m.mutateIDAT,
		m.injectSyntheticChunk,
	}
	if !m.SafeMode {
		strategies = append(strategies, m.deleteNonCritical, m.duplicateNonCritical, m.corruptLength)
	}

	produced := 0
	return func() ([]byte, bool) {
		if produced >= maxPNGVariants {
			return nil, false
		}
		strategy := strategies[produced%len(strategies)]
		produced++
		mutated := strategy(clonePNGChunks(chunks))
		out := encodePNGChunks(mutated)
		return out, true
	}
}

func clonePNGChunks(chunks []pngChunk) []pngChunk {
	out := make([]pngChunk, len(chunks))
	for i, c := range chunks {
		out[i] = pngChunk{typ: c.typ, data: append([]byte(nil), c.data...)}
	}
	return out
}

func parsePNGChunks(input []byte) ([]pngChunk, error) {
	var chunks []pngChunk
	pos := 8
	for pos+8 <= len(input) {
		length := binary.BigEndian.Uint32(input[pos : pos+4])
		typ := string(input[pos+4 : pos+8])
		dataStart := pos + 8
		dataEnd := dataStart + int(length)
		if dataEnd+4 > len(input) || dataEnd < dataStart {
			return nil, errShortFile
		}
		chunks = append(chunks, pngChunk{typ: typ, data: append([]byte(nil), input[dataStart:dataEnd]...)})
		pos = dataEnd + 4
		if typ == "IEND" {
			break
		}
	}
	return chunks, nil
}

func encodePNGChunks(chunks []pngChunk) []byte {
	buf := bytes.NewBuffer(nil)
	buf.Write(pngSignature)
	for _, c := range chunks {
		var lenBuf, crcBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(c.data)))
		buf.Write(lenBuf[:])
		buf.WriteString(c.typ)
		buf.Write(c.data)
		crc := crc32.ChecksumIEEE(append([]byte(c.typ), c.data...))
		binary.BigEndian.PutUint32(crcBuf[:], crc)
		buf.Write(crcBuf[:])
	}
	return buf.Bytes()
}

func isCritical(typ string) bool {
	return typ == "IHDR" || typ == "IEND"
}

func (m *PNGMutator) flipChunkPayload(chunks []pngChunk) []pngChunk {
	candidates := nonEmptyIndices(chunks)
	if len(candidates) == 0 {
		return chunks
	}
	idx := candidates[secureRandomIntF(len(candidates))]
	n := 1 + secureRandomIntF(minF(8, len(chunks[idx].data)))
	for i := 0; i < n; i++ {
		pos := secureRandomIntF(len(chunks[idx].data))
		chunks[idx].data[pos] ^= 0xff
	}
	return chunks
}

func nonEmptyIndices(chunks []pngChunk) []int {
	var out []int
	for i, c := range chunks {
		if len(c.data) > 0 {
			out = append(out, i)
		}
	}
	return out
}

func (m *PNGMutator) swapNonCriticalAdjacent(chunks []pngChunk) []pngChunk {
	for i := 0; i < len(chunks)-1; i++ {
		if !isCritical(chunks[i].typ) && !isCritical(chunks[i+1].typ) {
			chunks[i], chunks[i+1] = chunks[i+1], chunks[i]
			return chunks
		}
	}
	return chunks
}

func (m *PNGMutator) tweakIHDR(chunks []pngChunk) []pngChunk {
	for i, c := range chunks {
		if c.typ != "IHDR" || len(c.data) < 13 {
			continue
		}
		field := secureRandomIntF(4)
		switch field {
		case 0: // width
			binary.BigEndian.PutUint32(chunks[i].data[0:4], randDimension())
		case 1: // height
			binary.BigEndian.PutUint32(chunks[i].data[4:8], randDimension())
		case 2: // bit depth
			chunks[i].data[8] = []byte{1, 2, 4, 8, 16}[secureRandomIntF(5)]
		default: // color type
			chunks[i].data[9] = []byte{0, 2, 3, 4, 6}[secureRandomIntF(5)]
		}
		break
	}
	return chunks
}

func randDimension() uint32 {
	if secureRandomIntF(10) == 0 {
		return uint32(secureRandomIntF(1 << 20))
	}
	return uint32(1 + secureRandomIntF(4096))
}

func (m *PNGMutator) mutatePLTE(chunks []pngChunk) []pngChunk {
	for i, c := range chunks {
		if c.typ != "PLTE" || len(c.data) < 3 {
			continue
		}
		entries := len(c.data) / 3
		e := secureRandomIntF(entries)
		chunks[i].data[e*3] = byte(secureRandomIntF(256))
		chunks[i].data[e*3+1] = byte(secureRandomIntF(256))
		chunks[i].data[e*3+2] = byte(secureRandomIntF(256))
		break
	}
	return chunks
}

func (m *PNGMutator) mutateIDAT(chunks []pngChunk) []pngChunk {
	for i, c := range chunks {
		if c.typ != "IDAT" || len(c.data) == 0 {
			continue
		}
		if decoded, derr := inflate(c.data); derr == nil && len(decoded) > 0 {
			pos := secureRandomIntF(len(decoded))
			decoded[pos] ^= 0xff
			if recompressed, rerr := deflate(decoded); rerr == nil {
				chunks[i].data = recompressed
				return chunks
			}
		}
		pos := secureRandomIntF(len(c.data))
		chunks[i].data[pos] ^= 0xff
		return chunks
	}
	return chunks
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func deflate(data []byte) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	w := zlib.NewWriter(buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *PNGMutator) injectSyntheticChunk(chunks []pngChunk) []pngChunk {
	synthetic := pngChunk{typ: "teXt", data: []byte("corefuzz\x00synthetic")}
	out := make([]pngChunk, 0, len(chunks)+1)
	for _, c := range chunks {
		if c.typ == "IEND" {
			out = append(out, synthetic)
		}
		out = append(out, c)
	}
	return out
}

func (m *PNGMutator) deleteNonCritical(chunks []pngChunk) []pngChunk {
	for i, c := range chunks {
		if !isCritical(c.typ) {
			return append(chunks[:i], chunks[i+1:]...)
		}
	}
	return chunks
}

func (m *PNGMutator) duplicateNonCritical(chunks []pngChunk) []pngChunk {
	for i, c := range chunks {
		if !isCritical(c.typ) {
			dup := pngChunk{typ: c.typ, data: append([]byte(nil), c.data...)}
			out := append([]pngChunk(nil), chunks[:i+1]...)
			out = append(out, dup)
			out = append(out, chunks[i+1:]...)
			return out
		}
	}
	return chunks
}

func (m *PNGMutator) corruptLength(chunks []pngChunk) []pngChunk {
	candidates := nonEmptyIndices(chunks)
	if len(candidates) == 0 {
		return chunks
	}
	idx := candidates[secureRandomIntF(len(candidates))]
	if secureRandomIntF(2) == 0 {
		chunks[idx].data = append(chunks[idx].data, bytes.Repeat([]byte{0}, 1+secureRandomIntF(64))...)
	} else if len(chunks[idx].data) > 1 {
		chunks[idx].data = chunks[idx].data[:len(chunks[idx].data)/2]
	}
	return chunks
}
