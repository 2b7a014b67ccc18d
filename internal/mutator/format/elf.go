// Package format implements structural, format-aware mutators that parse a
// specific file format and yield variants preserving enough of that
// structure for the target's own parser to reach interesting code paths.
package format

import (
	"container/list"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"

	"github.com/fluxfuzzer/corefuzz/internal/mutator"
	"github.com/fluxfuzzer/corefuzz/pkg/types"
)

const elfMagic = "\x7fELF"

type elfClass byte

const (
	elfClass32 elfClass = 1
	elfClass64 elfClass = 2
)

type elfData byte

const (
	elfDataLSB elfData = 1
	elfDataMSB elfData = 2
)

// elfHeader is the subset of ELF header fields the mutator perturbs.
type elfHeader struct {
	class      elfClass
	data       elfData
	eType      uint16
	eEntry     uint64
	shOff      uint64
	shEntSize  uint16
	shNum      uint16
	shStrNdx   uint16
	entryField [8]byte // offset of e_entry within the file, for in-place rewrite
}

type elfSection struct {
	nameOff uint32
	offset  uint64
	size    uint64
}

type elfParse struct {
	header   elfHeader
	sections []elfSection
}

// parseCacheEntry stores a parsed ELF layout keyed by SHA-256 of the input,
// adapted from internal/cache/memory.go's MemoryCache (container/list LRU,
// RWMutex, hit/miss stats) generalized from byte-slice values to parsed
// struct values, since ELF parse results aren't naturally []byte.
type parseCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List
	hits     int64
	misses   int64
}

type parseCacheItem struct {
	key   string
	value *elfParse
}

func newParseCache(capacity int) *parseCache {
	return &parseCache{capacity: capacity, items: make(map[string]*list.Element), order: list.New()}
}

func (c *parseCache) key(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func (c *parseCache) get(data []byte) (*elfParse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.key(data)
	if elem, ok := c.items[k]; ok {
		c.order.MoveToFront(elem)
		c.hits++
		return elem.Value.(*parseCacheItem).value, true
	}
	c.misses++
	return nil, false
}

func (c *parseCache) put(data []byte, p *elfParse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.key(data)
	if elem, ok := c.items[k]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*parseCacheItem).value = p
		return
	}
	elem := c.order.PushFront(&parseCacheItem{key: k, value: p})
	c.items[k] = elem
	for c.order.Len() > c.capacity {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.order.Remove(back)
		delete(c.items, back.Value.(*parseCacheItem).key)
	}
}

// invalidate drops any cached parse for data, forcing a re-parse — called
// after structural edits per spec's "after each structural change,
// invalidate the parse cache" discipline.
func (c *parseCache) invalidate(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.key(data)
	if elem, ok := c.items[k]; ok {
		c.order.Remove(elem)
		delete(c.items, k)
	}
}

const defaultParseCacheCapacity = 1000

// ELFMutator perturbs header fields and the bytes from the section-header
// offset onward, XORs random blocks, and rewrites printable-ASCII runs, with
// byte flips as the fallback. It does not parse symbol or dynamic tables.
type ELFMutator struct {
	cache *parseCache
}

func NewELFMutator() *ELFMutator {
	return &ELFMutator{cache: newParseCache(defaultParseCacheCapacity)}
}

func (m *ELFMutator) Name() string             { return "format/elf" }
func (m *ELFMutator) Description() string      { return "ELF header/section/symbol structural mutation" }
func (m *ELFMutator) Type() types.MutationType { return types.FormatAware }

const maxELFVariants = 64

func (m *ELFMutator) Generate(input []byte) mutator.Generator {
	if len(input) < 20 || string(input[:4]) != elfMagic {
		return fallbackGenerator(input)
	}
	p, ok := m.cache.get(input)
	if !ok {
		parsed, perr := parseELF(input)
		if perr != nil {
			return fallbackGenerator(input)
		}
		p = parsed
		m.cache.put(input, p)
	}

	strategies := []func([]byte, *elfParse) []byte{
		m.perturbEntry,
		m.perturbType,
		m.perturbIdent,
		m.perturbSectionBytes,
		m.blockXORSection,
		m.perturbProgramHeaderHint,
		m.perturbPrintableRuns,
	}
	produced := 0
	return func() ([]byte, bool) {
		if produced >= maxELFVariants {
			return nil, false
		}
		strategy := strategies[produced%len(strategies)]
		produced++
		out := append([]byte(nil), input...)
		out = strategy(out, p)
		m.cache.invalidate(out)
		return out, true
	}
}

func parseELF(data []byte) (*elfParse, error) {
	if len(data) < 20 {
		return nil, errShortFile
	}
	h := elfHeader{class: elfClass(data[4]), data: elfData(data[5])}
	bo := byteOrderFor(h.data)
	if h.class == elfClass64 {
		if len(data) < 64 {
			return nil, errShortFile
		}
		h.eType = bo.Uint16(data[16:18])
		h.eEntry = bo.Uint64(data[24:32])
		h.shOff = bo.Uint64(data[40:48])
		h.shEntSize = bo.Uint16(data[58:60])
		h.shNum = bo.Uint16(data[60:62])
		h.shStrNdx = bo.Uint16(data[62:64])
	} else {
		if len(data) < 52 {
			return nil, errShortFile
		}
		h.eType = bo.Uint16(data[16:18])
		h.eEntry = uint64(bo.Uint32(data[24:28]))
		h.shOff = uint64(bo.Uint32(data[32:36]))
		h.shEntSize = bo.Uint16(data[46:48])
		h.shNum = bo.Uint16(data[48:50])
		h.shStrNdx = bo.Uint16(data[50:52])
	}
	var sections []elfSection
	entSize := int(h.shEntSize)
	for i := 0; i < int(h.shNum) && entSize > 0; i++ {
		off := int(h.shOff) + i*entSize
		if off+entSize > len(data) || off < 0 {
			break
		}
		sections = append(sections, elfSection{})
	}
	return &elfParse{header: h, sections: sections}, nil
}

func byteOrderFor(d elfData) binary.ByteOrder {
	if d == elfDataMSB {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (m *ELFMutator) perturbEntry(data []byte, p *elfParse) []byte {
	bo := byteOrderFor(p.header.data)
	entryOff := 24
	width := 8
	if p.header.class == elfClass32 {
		width = 4
	}
	if entryOff+width > len(data) {
		return data
	}
	delta := int64(1 + secureRandomIntF(1024))
	if secureRandomIntF(2) == 0 {
		delta = -delta
	}
	if width == 8 {
		v := bo.Uint64(data[entryOff : entryOff+8])
		bo.PutUint64(data[entryOff:entryOff+8], uint64(int64(v)+delta))
	} else {
		v := bo.Uint32(data[entryOff : entryOff+4])
		bo.PutUint32(data[entryOff:entryOff+4], uint32(int64(v)+delta))
	}
	return data
}

func (m *ELFMutator) perturbType(data []byte, p *elfParse) []byte {
	bo := byteOrderFor(p.header.data)
	if len(data) < 18 {
		return data
	}
	commonTypes := []uint16{0, 1, 2, 3, 4}
	bo.PutUint16(data[16:18], commonTypes[secureRandomIntF(len(commonTypes))])
	return data
}

func (m *ELFMutator) perturbIdent(data []byte, p *elfParse) []byte {
	if len(data) < 8 {
		return data
	}
	switch secureRandomIntF(2) {
	case 0:
		data[4] = byte(1 + secureRandomIntF(2)) // class in {1,2}
	default:
		data[5] = byte(1 + secureRandomIntF(2)) // data in {1,2}
	}
	return data
}

func (m *ELFMutator) perturbSectionBytes(data []byte, p *elfParse) []byte {
	if len(p.sections) == 0 || int(p.header.shOff) >= len(data) {
		return fallbackFlip(data)
	}
	start := int(p.header.shOff)
	end := len(data)
	if end <= start {
		return fallbackFlip(data)
	}
	n := 1 + secureRandomIntF(minF(8, end-start))
	for i := 0; i < n; i++ {
		pos := start + secureRandomIntF(end-start)
		data[pos] ^= 0xff
	}
	return data
}

func (m *ELFMutator) blockXORSection(data []byte, p *elfParse) []byte {
	if len(data) < 16 {
		return fallbackFlip(data)
	}
	start := secureRandomIntF(len(data) - 8)
	length := 1 + secureRandomIntF(minF(64, len(data)-start))
	key := byte(1 + secureRandomIntF(255))
	for i := start; i < start+length; i++ {
		data[i] ^= key
	}
	return data
}

func (m *ELFMutator) perturbProgramHeaderHint(data []byte, p *elfParse) []byte {
	phOffFieldStart := 28
	if p.header.class == elfClass64 {
		phOffFieldStart = 32
	}
	if phOffFieldStart+4 > len(data) {
		return fallbackFlip(data)
	}
	pos := phOffFieldStart + secureRandomIntF(4)
	data[pos] ^= 0x01
	return data
}

func (m *ELFMutator) perturbPrintableRuns(data []byte, p *elfParse) []byte {
	runs := findPrintableRuns(data, 3)
	if len(runs) == 0 {
		return fallbackFlip(data)
	}
	r := runs[secureRandomIntF(len(runs))]
	switch secureRandomIntF(4) {
	case 0:
		copy(data[r.start:r.end], commonSymbolNames[secureRandomIntF(len(commonSymbolNames))])
	case 1:
		reverseBytes(data[r.start:r.end])
	case 2:
		if r.end-r.start >= 2 {
			data[r.end-2] = '_'
			data[r.end-1] = 'v' + byte(secureRandomIntF(9))
		}
	default:
		data[r.start+secureRandomIntF(r.end-r.start)] ^= 1 << uint(secureRandomIntF(8))
	}
	return data
}

var commonSymbolNames = [][]byte{[]byte("main"), []byte("_start"), []byte("init"), []byte("exit")}

type byteRun struct{ start, end int }

func findPrintableRuns(data []byte, minLen int) []byteRun {
	var runs []byteRun
	start := -1
	for i, b := range data {
		printable := b >= 0x20 && b < 0x7f
		if printable && start == -1 {
			start = i
		}
		if !printable && start != -1 {
			if i-start >= minLen {
				runs = append(runs, byteRun{start, i})
			}
			start = -1
		}
	}
	if start != -1 && len(data)-start >= minLen {
		runs = append(runs, byteRun{start, len(data)})
	}
	return runs
}

func reverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

func minF(a, b int) int {
	if a < b {
		return a
	}
	return b
}
