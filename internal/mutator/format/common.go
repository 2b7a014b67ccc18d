package format

import (
	"crypto/rand"
	"encoding/binary"
	"errors"

	"github.com/fluxfuzzer/corefuzz/internal/mutator"
)

var errShortFile = errors.New("format: input too short to carry a header")

const maxFallbackVariants = 8

// fallbackGenerator implements spec's "output contract": when parsing
// fails, yield single-byte random perturbations so the engine always gets
// at least one variant.
func fallbackGenerator(input []byte) mutator.Generator {
	if len(input) == 0 {
		return func() ([]byte, bool) { return nil, false }
	}
	produced := 0
	return func() ([]byte, bool) {
		if produced >= maxFallbackVariants {
			return nil, false
		}
		produced++
		return fallbackFlip(append([]byte(nil), input...)), true
	}
}

// fallbackFlip flips a single random bit, used both as the parse-failure
// fallback and as a generic last-resort edit inside format strategies.
func fallbackFlip(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	pos := secureRandomIntF(len(data))
	data[pos] ^= 1 << uint(secureRandomIntF(8))
	return data
}

// secureRandomIntF returns a cryptographically random int in [0, max).
func secureRandomIntF(max int) int {
	if max <= 0 {
		return 0
	}
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return int(binary.BigEndian.Uint64(buf[:]) % uint64(max))
}
