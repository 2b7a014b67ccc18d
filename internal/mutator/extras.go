package mutator

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// LoadInterestingExtrasJSON reads an optional interesting-value extras
// dictionary: a JSON object keyed by bit width ("8", "16", "32"), each an
// array of integer literals (decimal or "0x"-prefixed hex) naming scalars a
// human fuzzing a particular target knows are boundary-interesting (a
// length-prefix field's max, a magic version number) but that the
// mutator's own interesting8/16/32 tables don't cover. gjson.Get walks the
// dictionary without unmarshaling it into a struct, since the file is read
// once at startup and its shape is a flat lookup, not a type a caller needs
// back as Go values.
//
// The returned map is keyed by byte width (1, 2, 4), ready to pass straight
// into NewInterestingValueMutator.
func LoadInterestingExtrasJSON(path string) (map[int][][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("mutator: %s is not valid JSON", path)
	}
	root := gjson.ParseBytes(data)

	out := make(map[int][][]byte)
	for bits, width := range map[string]int{"8": 1, "16": 2, "32": 4} {
		values := root.Get(bits)
		if !values.Exists() || !values.IsArray() {
			continue
		}
		var tokens [][]byte
		var parseErr error
		values.ForEach(func(_, v gjson.Result) bool {
			u, err := parseScalar(v.String())
			if err != nil {
				parseErr = fmt.Errorf("mutator: extras[%s]: %w", bits, err)
				return false
			}
			tokens = append(tokens, encodeWidth(u, width))
			return true
		})
		if parseErr != nil {
			return nil, parseErr
		}
		if len(tokens) > 0 {
			out[width] = tokens
		}
	}
	return out, nil
}

func parseScalar(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

func encodeWidth(v uint64, width int) []byte {
	buf := make([]byte, width)
	switch width {
	case 1:
		buf[0] = byte(v)
	case 2:
		binary.BigEndian.PutUint16(buf, uint16(v))
	case 4:
		binary.BigEndian.PutUint32(buf, uint32(v))
	}
	return buf
}
