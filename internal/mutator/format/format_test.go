package format

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"testing"
)

func drain(t *testing.T, produce func() ([]byte, bool), limit int) [][]byte {
	t.Helper()
	var out [][]byte
	for i := 0; i < limit; i++ {
		v, ok := produce()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

func minimalELF() []byte {
	data := make([]byte, 64)
	copy(data, elfMagic)
	data[4] = byte(elfClass64)
	data[5] = byte(elfDataLSB)
	binary.LittleEndian.PutUint16(data[16:18], 2) // ET_EXEC
	binary.LittleEndian.PutUint64(data[24:32], 0x401000)
	return data
}

func TestELFMutatorProducesSameLengthVariants(t *testing.T) {
	input := minimalELF()
	m := NewELFMutator()
	variants := drain(t, m.Generate(input), maxELFVariants)
	if len(variants) == 0 {
		t.Fatal("expected variants")
	}
	for _, v := range variants {
		if len(v) != len(input) {
			t.Errorf("variant length %d, want %d", len(v), len(input))
		}
	}
}

func TestELFMutatorFallsBackOnBadMagic(t *testing.T) {
	m := NewELFMutator()
	gen := m.Generate([]byte("not an elf file"))
	if _, ok := gen(); !ok {
		t.Error("expected fallback generator to yield at least one variant")
	}
}

func minimalPNG() []byte {
	buf := bytes.NewBuffer(nil)
	buf.Write(pngSignature)
	writeChunk(buf, "IHDR", ihdrPayload(4, 4, 8, 6))
	writeChunk(buf, "IDAT", compressedPixels(4, 4))
	writeChunk(buf, "IEND", nil)
	return buf.Bytes()
}

func ihdrPayload(w, h uint32, depth, colorType byte) []byte {
	b := make([]byte, 13)
	binary.BigEndian.PutUint32(b[0:4], w)
	binary.BigEndian.PutUint32(b[4:8], h)
	b[8] = depth
	b[9] = colorType
	return b
}

func compressedPixels(w, h int) []byte {
	raw := make([]byte, h*(1+w*4))
	buf := bytes.NewBuffer(nil)
	zw := zlib.NewWriter(buf)
	zw.Write(raw)
	zw.Close()
	return buf.Bytes()
}

func writeChunk(buf *bytes.Buffer, typ string, data []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	buf.Write(lenBuf[:])
	buf.WriteString(typ)
	buf.Write(data)
	crc := crc32Of(typ, data)
	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], crc)
	buf.Write(crcBuf[:])
}

func TestPNGMutatorPreservesSignature(t *testing.T) {
	input := minimalPNG()
	m := NewPNGMutator()
	variants := drain(t, m.Generate(input), maxPNGVariants)
	if len(variants) == 0 {
		t.Fatal("expected variants")
	}
	ok := 0
	for _, v := range variants {
		if len(v) >= 8 && bytes.Equal(v[:8], pngSignature) {
			ok++
		}
	}
	if float64(ok)/float64(len(variants)) < 0.8 {
		t.Errorf("expected >=80%% of variants to preserve PNG signature, got %d/%d", ok, len(variants))
	}
}

func minimalJPEG() []byte {
	buf := bytes.NewBuffer(nil)
	buf.Write([]byte{0xff, jpegSOI})
	buf.Write([]byte{0xff, jpegAPP0, 0x00, 0x04, 0x01, 0x02})
	buf.Write([]byte{0xff, jpegSOS, 0x00, 0x02})
	buf.Write([]byte{0x01, 0x02, 0x03, 0xff, 0xd0, 0x04, 0x05})
	buf.Write([]byte{0xff, jpegEOI})
	return buf.Bytes()
}

func TestJPEGMutatorProducesVariants(t *testing.T) {
	input := minimalJPEG()
	m := NewJPEGMutator()
	variants := drain(t, m.Generate(input), maxJPEGVariants)
	if len(variants) == 0 {
		t.Fatal("expected variants")
	}
}

func minimalPCAP() []byte {
	buf := bytes.NewBuffer(nil)
	var magic [4]byte
	binary.LittleEndian.PutUint32(magic[:], pcapMagicLE)
	buf.Write(magic[:])
	buf.Write(make([]byte, 20)) // rest of global header
	writePCAPRecord(buf, []byte("packet-one-payload"))
	writePCAPRecord(buf, []byte("packet-two-payload"))
	return buf.Bytes()
}

func writePCAPRecord(buf *bytes.Buffer, payload []byte) {
	header := make([]byte, 16)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(payload)))
	buf.Write(header)
	buf.Write(payload)
}

func TestPCAPMutatorProducesVariants(t *testing.T) {
	input := minimalPCAP()
	m := NewPCAPMutator(nil)
	variants := drain(t, m.Generate(input), maxPCAPVariants)
	if len(variants) == 0 {
		t.Fatal("expected variants")
	}
}

func TestXMLMutatorRoundTripsOrReverts(t *testing.T) {
	input := []byte(`<root attr="1"><child>42</child></root>`)
	m := NewXMLMutator()
	variants := drain(t, m.Generate(input), maxXMLVariants)
	if len(variants) == 0 {
		t.Fatal("expected variants")
	}
	for _, v := range variants {
		if _, err := parseReader(v); err != nil {
			t.Errorf("variant failed to round-trip: %v, data=%q", err, v)
		}
	}
}

func TestScriptMutatorProtectsShebangAndRequire(t *testing.T) {
	input := "#!/usr/bin/env lua\nrequire('mod')\nlocal x = 1\nprint(x)"
	m := NewScriptMutator()
	variants := drain(t, m.Generate([]byte(input)), maxScriptVariants)
	for _, v := range variants {
		s := string(v)
		if !bytes.Contains(v, []byte("#!/usr/bin/env lua")) {
			t.Errorf("shebang line must survive mutation, got %q", s)
		}
		if !bytes.Contains(v, []byte("require('mod')")) {
			t.Errorf("require line must survive mutation, got %q", s)
		}
	}
}

func TestBalancedRejectsUnbalancedBrackets(t *testing.T) {
	if balanced("function f( x") {
		t.Error("expected unbalanced source to fail balance check")
	}
	if !balanced("function f(x) end") {
		t.Error("expected balanced source to pass")
	}
}

func crc32Of(typ string, data []byte) uint32 {
	return crc32.ChecksumIEEE(append([]byte(typ), data...))
}
