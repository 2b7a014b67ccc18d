package engine

import (
	"bytes"

	"github.com/fluxfuzzer/corefuzz/internal/mutator"
	"github.com/fluxfuzzer/corefuzz/internal/mutator/format"
)

var (
	elfMagic = []byte{0x7f, 'E', 'L', 'F'}
	pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	jpegSOI  = []byte{0xff, 0xd8, 0xff}
)

// DonorPool supplies cross-input splicing donors to the PCAP mutator
// (packet-level splicing); satisfied by *corpus.Scheduler.
type DonorPool = mutator.DonorPool

// DetectFormat implements spec.md §4.H's "detect seed format from
// cand.data": a cheap magic-byte/heuristic sniff selecting one of the
// format-aware structural mutators, or nil when nothing specialized
// applies and the loop should fall back to basic mutators entirely.
func DetectFormat(pool DonorPool) Sniffer {
	return func(data []byte) mutator.Mutator {
		switch {
		case bytes.HasPrefix(data, elfMagic):
			return format.NewELFMutator()
		case bytes.HasPrefix(data, pngMagic):
			return format.NewPNGMutator()
		case bytes.HasPrefix(data, jpegSOI):
			return format.NewJPEGMutator()
		case looksLikePCAP(data):
			return format.NewPCAPMutator(pool)
		case looksLikeXML(data):
			return format.NewXMLMutator()
		case looksLikeScript(data):
			return format.NewScriptMutator()
		default:
			return nil
		}
	}
}

func looksLikePCAP(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	magics := [][]byte{
		{0xd4, 0xc3, 0xb2, 0xa1},
		{0xa1, 0xb2, 0xc3, 0xd4},
		{0x4d, 0x3c, 0xb2, 0xa1},
		{0xa1, 0xb2, 0x3c, 0x4d},
	}
	for _, m := range magics {
		if bytes.Equal(data[:4], m) {
			return true
		}
	}
	return false
}

func looksLikeXML(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return bytes.HasPrefix(trimmed, []byte("<?xml")) || bytes.HasPrefix(trimmed, []byte("<"))
}

func looksLikeScript(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("#!")) {
		return true
	}
	for _, kw := range [][]byte{[]byte("local "), []byte("function "), []byte("require("), []byte("export ")} {
		if bytes.Contains(trimmed, kw) {
			return true
		}
	}
	return false
}
