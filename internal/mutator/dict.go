package mutator

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/fluxfuzzer/corefuzz/pkg/types"
)

// Dictionary holds byte tokens used by havoc's dict-overwrite/dict-insert
// operations and by DictionaryMutator's direct substitutions, grounded on
// AFL's --dict token-file format.
type Dictionary struct {
	mu     sync.RWMutex
	tokens [][]byte
}

// NewDictionary returns a dictionary preloaded with defaultTokens.
func NewDictionary() *Dictionary {
	d := &Dictionary{}
	d.tokens = append(d.tokens, defaultTokens()...)
	return d
}

// Add appends a token.
func (d *Dictionary) Add(tok []byte) {
	if len(tok) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tokens = append(d.tokens, append([]byte(nil), tok...))
}

// Len returns the number of loaded tokens.
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.tokens)
}

// Random returns a uniformly random token, or nil if the dictionary is empty.
func (d *Dictionary) Random() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.tokens) == 0 {
		return nil
	}
	tok := d.tokens[secureRandomInt(len(d.tokens))]
	return append([]byte(nil), tok...)
}

// LoadFile parses an AFL-style dictionary file: one token per line, either
// a bare string or `name="value"`, with `\xHH` escapes and `#`-led comments.
func (d *Dictionary) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if eq := strings.Index(line, "="); eq >= 0 && strings.Contains(line[eq:], "\"") {
			line = line[eq+1:]
		}
		line = strings.Trim(line, "\"")
		if tok := unescapeDictToken(line); len(tok) > 0 {
			d.Add(tok)
		}
	}
	return scanner.Err()
}

// unescapeDictToken expands \xHH and \\ escapes, the AFL dictionary syntax.
func unescapeDictToken(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'x':
				if i+3 < len(s) {
					if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
						out = append(out, byte(v))
						i += 3
						continue
					}
				}
			case '\\':
				out = append(out, '\\')
				i++
				continue
			}
		}
		out = append(out, s[i])
	}
	return out
}

// DictionaryMutator directly overwrites or inserts dictionary tokens at
// sampled positions, distinct from havoc's occasional dict op — this
// mutator is dedicated to exhaustively trying each token once per call.
type DictionaryMutator struct {
	dict *Dictionary
}

func NewDictionaryMutator(dict *Dictionary) *DictionaryMutator {
	return &DictionaryMutator{dict: dict}
}

func (m *DictionaryMutator) Name() string             { return "dict" }
func (m *DictionaryMutator) Description() string      { return "dictionary token substitution" }
func (m *DictionaryMutator) Type() types.MutationType { return types.DictionaryInsert }

const maxDictVariants = 128

// Generate tries each dictionary token once at a randomly sampled position,
// choosing overwrite or insert placement at random (always insert when the
// token is longer than the input).
func (m *DictionaryMutator) Generate(input []byte) Generator {
	if m.dict == nil || m.dict.Len() == 0 {
		return exhausted
	}
	d := m.dict
	d.mu.RLock()
	tokens := append([][]byte(nil), d.tokens...)
	d.mu.RUnlock()

	i := 0
	return func() ([]byte, bool) {
		if i >= len(tokens) || i >= maxDictVariants {
			return nil, false
		}
		tok := tokens[i]
		i++
		out := append([]byte(nil), input...)
		if len(out) == 0 {
			return append(out, tok...), true
		}
		if secureRandomInt(2) == 0 && len(tok) <= len(out) {
			pos := secureRandomInt(len(out) - len(tok) + 1)
			copy(out[pos:pos+len(tok)], tok)
			return out, true
		}
		pos := secureRandomInt(len(out) + 1)
		return insertAt(out, pos, tok), true
	}
}

// defaultTokens are format-breaking byte sequences salvaged from known
// parser edge cases: delimiter and quoting characters, path-traversal
// sequences, oversized-length markers, and null/control bytes — the kinds
// of bytes that tend to trip format parsers and boundary checks regardless
// of target, independent of their original web-payload framing.
func defaultTokens() [][]byte {
	raw := []string{
		"'", "\"", "`", ";", "|", "&", "$(", ")", "{", "}", "[", "]",
		"../../../../etc/passwd", "..\\..\\..\\..\\windows\\win.ini",
		"%2e%2e%2f%2e%2e%2f", "....//....//....//",
		"<script>", "</script>", "<!DOCTYPE", "<!ENTITY", "]]>",
		"\x00", "\xff", "\xff\xff\xff\xff", "\x00\x00\x00\x00",
		"%n", "%s", "%x", "AAAA", "\r\n\r\n",
		"file://", "gopher://", "http://169.254.169.254/",
		"0", "-1", "4294967295", "2147483648", "9999999999",
	}
	out := make([][]byte, 0, len(raw))
	for _, s := range raw {
		out = append(out, []byte(s))
	}
	return out
}
