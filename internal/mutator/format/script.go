package format

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fluxfuzzer/corefuzz/internal/mutator"
	"github.com/fluxfuzzer/corefuzz/pkg/types"
)

var (
	identifierRe  = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*\b`)
	numberRe      = regexp.MustCompile(`\b[0-9]+(\.[0-9]+)?\b`)
	stringLitRe   = regexp.MustCompile(`"[^"\\]*"|'[^'\\]*'`)
	lineCommentRe = regexp.MustCompile(`(--|//)[^\n]*`)
)

var reservedKeywords = map[string]bool{
	"and": true, "break": true, "do": true, "else": true, "elseif": true,
	"end": true, "false": true, "for": true, "function": true, "if": true,
	"in": true, "local": true, "nil": true, "not": true, "or": true,
	"repeat": true, "return": true, "then": true, "true": true, "until": true,
	"while": true, "const": true, "let": true, "var": true, "import": true,
	"export": true, "require": true, "null": true, "undefined": true,
}

// ScriptMutator mutates Lua/MJS source text, protecting shebang lines and
// import/export/require paths, and checks bracket/quote balance after every
// edit. An unbalanced result is not repaired: it is dropped and the next
// strategy is tried.
type ScriptMutator struct{}

func NewScriptMutator() *ScriptMutator { return &ScriptMutator{} }

func (m *ScriptMutator) Name() string             { return "format/script" }
func (m *ScriptMutator) Description() string      { return "Lua/MJS source-text structural mutation" }
func (m *ScriptMutator) Type() types.MutationType { return types.FormatAware }

const maxScriptVariants = 32

func (m *ScriptMutator) Generate(input []byte) mutator.Generator {
	if !utf8.Valid(input) {
		return fallbackGenerator(input)
	}
	src := string(input)
	protectedLines := protectedLineText(src)

	strategies := []func(string) string{
		m.renameIdentifier,
		m.tweakNumericLiteral,
		m.corruptStringLiteral,
		m.flipOperator,
		m.toggleLineComment,
		m.insertSimpleLiteral,
		m.swapAdjacentLines,
	}
	produced := 0
	return func() ([]byte, bool) {
		for produced < maxScriptVariants {
			strategy := strategies[produced%len(strategies)]
			produced++
			candidate := strategy(src)
			if balanced(candidate) && protectedLinesSurvive(candidate, protectedLines) {
				return []byte(candidate), true
			}
		}
		return nil, false
	}
}

// protectedLineText returns the shebang/import/export/require lines that
// must survive any mutation untouched, per spec's protection rule.
func protectedLineText(src string) []string {
	var out []string
	for i, l := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(l)
		if i == 0 && strings.HasPrefix(trimmed, "#!") {
			out = append(out, l)
			continue
		}
		if strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "export ") ||
			strings.Contains(trimmed, "require(") {
			out = append(out, l)
		}
	}
	return out
}

func protectedLinesSurvive(candidate string, protectedLines []string) bool {
	for _, l := range protectedLines {
		if !strings.Contains(candidate, l) {
			return false
		}
	}
	return true
}

func (m *ScriptMutator) renameIdentifier(src string) string {
	return replaceOneMatch(src, identifierRe, func(s string) string {
		if reservedKeywords[s] {
			return s
		}
		return s + "_m"
	})
}

func (m *ScriptMutator) tweakNumericLiteral(src string) string {
	return replaceOneMatch(src, numberRe, func(s string) string {
		if v, err := strconv.Atoi(s); err == nil {
			return strconv.Itoa(v + 1 + secureRandomIntF(10))
		}
		return s
	})
}

func (m *ScriptMutator) corruptStringLiteral(src string) string {
	return replaceOneMatch(src, stringLitRe, func(s string) string {
		if len(s) < 2 {
			return s
		}
		quote := s[0]
		inner := s[1 : len(s)-1]
		if inner == "" {
			return s
		}
		pos := secureRandomIntF(len(inner))
		b := []byte(inner)
		b[pos] ^= 0x20
		return string(quote) + string(b) + string(quote)
	})
}

func (m *ScriptMutator) flipOperator(src string) string {
	pairs := [][2]string{{"===", "!=="}, {"!==", "==="}, {"==", "!="}, {"!=", "=="}}
	for _, p := range pairs {
		if strings.Contains(src, p[0]) {
			return strings.Replace(src, p[0], p[1], 1)
		}
	}
	return src
}

func (m *ScriptMutator) toggleLineComment(src string) string {
	lines := strings.Split(src, "\n")
	for i, l := range lines {
		trimmed := strings.TrimLeft(l, " \t")
		if lineCommentRe.MatchString(trimmed) {
			lines[i] = strings.Replace(l, "--", "", 1)
			lines[i] = strings.Replace(lines[i], "//", "", 1)
			return strings.Join(lines, "\n")
		}
	}
	if len(lines) > 0 {
		idx := secureRandomIntF(len(lines))
		lines[idx] = "-- " + lines[idx]
	}
	return strings.Join(lines, "\n")
}

func (m *ScriptMutator) insertSimpleLiteral(src string) string {
	literals := []string{"nil", "null", "0", "false", "undefined"}
	lit := literals[secureRandomIntF(len(literals))]
	pos := secureRandomIntF(len(src) + 1)
	return src[:pos] + " " + lit + " " + src[pos:]
}

func (m *ScriptMutator) swapAdjacentLines(src string) string {
	lines := strings.Split(src, "\n")
	if len(lines) < 2 {
		return src
	}
	i := secureRandomIntF(len(lines) - 1)
	lines[i], lines[i+1] = lines[i+1], lines[i]
	return strings.Join(lines, "\n")
}

// replaceOneMatch replaces a single randomly-selected regex match.
func replaceOneMatch(src string, re *regexp.Regexp, f func(string) string) string {
	matches := re.FindAllStringIndex(src, -1)
	if len(matches) == 0 {
		return src
	}
	m := matches[secureRandomIntF(len(matches))]
	return src[:m[0]] + f(src[m[0]:m[1]]) + src[m[1]:]
}

// balanced verifies paren/bracket/brace counts match and quote parity is
// even, the round-trip check spec.md requires before accepting a variant.
func balanced(src string) bool {
	var parens, brackets, braces int
	var singles, doubles int
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '(':
			parens++
		case ')':
			parens--
		case '[':
			brackets++
		case ']':
			brackets--
		case '{':
			braces++
		case '}':
			braces--
		case '\'':
			singles++
		case '"':
			doubles++
		}
	}
	if parens != 0 || brackets != 0 || braces != 0 {
		return false
	}
	return singles%2 == 0 && doubles%2 == 0
}
