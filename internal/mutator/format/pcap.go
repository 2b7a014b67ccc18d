package format

import (
	"encoding/binary"

	"github.com/fluxfuzzer/corefuzz/internal/mutator"
	"github.com/fluxfuzzer/corefuzz/pkg/types"
)

const pcapMagicLE = 0xa1b2c3d4
const pcapMagicBE = 0xd4c3b2a1
const pcapGlobalHeaderSize = 24
const pcapRecordHeaderSize = 16

type pcapRecord struct {
	header  [pcapRecordHeaderSize]byte
	payload []byte
}

type pcapFile struct {
	globalHeader [pcapGlobalHeaderSize]byte
	bo           binary.ByteOrder
	records      []pcapRecord
}

// PCAPMutator parses the global header and packet records and mutates at
// the packet level: drop, duplicate, swap, byte-edit payload, grow a
// packet's incl_len (zero-padding its payload to match), or splice in a
// donor packet. Every record in the output has incl_len equal to its
// payload length.
type PCAPMutator struct {
	pool mutator.DonorPool
}

func NewPCAPMutator(pool mutator.DonorPool) *PCAPMutator {
	return &PCAPMutator{pool: pool}
}

func (m *PCAPMutator) Name() string             { return "format/pcap" }
func (m *PCAPMutator) Description() string      { return "PCAP packet-level structural mutation" }
func (m *PCAPMutator) Type() types.MutationType { return types.FormatAware }

const maxPCAPVariants = 32

func (m *PCAPMutator) Generate(input []byte) mutator.Generator {
	pf, err := parsePCAP(input)
	if err != nil || len(pf.records) == 0 {
		return fallbackGenerator(input)
	}

	strategies := []func(*pcapFile){
		m.dropPacket,
		m.duplicatePacket,
		m.swapAdjacent,
		m.mutatePayload,
		m.corruptInclLen,
	}
	if m.pool != nil {
		strategies = append(strategies, m.splicePacket)
	}

	produced := 0
	return func() ([]byte, bool) {
		if produced >= maxPCAPVariants {
			return nil, false
		}
		strategy := strategies[produced%len(strategies)]
		produced++
		clone := clonePCAP(pf)
		strategy(clone)
		return encodePCAP(clone), true
	}
}

func clonePCAP(pf *pcapFile) *pcapFile {
	out := &pcapFile{globalHeader: pf.globalHeader, bo: pf.bo}
	out.records = make([]pcapRecord, len(pf.records))
	for i, r := range pf.records {
		out.records[i] = pcapRecord{header: r.header, payload: append([]byte(nil), r.payload...)}
	}
	return out
}

func parsePCAP(input []byte) (*pcapFile, error) {
	if len(input) < pcapGlobalHeaderSize {
		return nil, errShortFile
	}
	magic := binary.LittleEndian.Uint32(input[0:4])
	var bo binary.ByteOrder
	switch magic {
	case pcapMagicLE:
		bo = binary.LittleEndian
	case pcapMagicBE:
		bo = binary.BigEndian
	default:
		return nil, errShortFile
	}
	pf := &pcapFile{bo: bo}
	copy(pf.globalHeader[:], input[:pcapGlobalHeaderSize])

	pos := pcapGlobalHeaderSize
	for pos+pcapRecordHeaderSize <= len(input) {
		var rec pcapRecord
		copy(rec.header[:], input[pos:pos+pcapRecordSize()])
		inclLen := bo.Uint32(rec.header[8:12])
		payloadStart := pos + pcapRecordHeaderSize
		payloadEnd := payloadStart + int(inclLen)
		if payloadEnd > len(input) || payloadEnd < payloadStart {
			break
		}
		rec.payload = append([]byte(nil), input[payloadStart:payloadEnd]...)
		pf.records = append(pf.records, rec)
		pos = payloadEnd
	}
	return pf, nil
}

func pcapRecordSize() int { return pcapRecordHeaderSize }

func encodePCAP(pf *pcapFile) []byte {
	out := append([]byte(nil), pf.globalHeader[:]...)
	for _, r := range pf.records {
		header := r.header
		pf.bo.PutUint32(header[8:12], uint32(len(r.payload)))
		out = append(out, header[:]...)
		out = append(out, r.payload...)
	}
	return out
}

func (m *PCAPMutator) dropPacket(pf *pcapFile) {
	if len(pf.records) < 2 {
		return
	}
	i := secureRandomIntF(len(pf.records))
	pf.records = append(pf.records[:i], pf.records[i+1:]...)
}

func (m *PCAPMutator) duplicatePacket(pf *pcapFile) {
	i := secureRandomIntF(len(pf.records))
	dup := pcapRecord{header: pf.records[i].header, payload: append([]byte(nil), pf.records[i].payload...)}
	out := append([]pcapRecord(nil), pf.records[:i+1]...)
	out = append(out, dup)
	out = append(out, pf.records[i+1:]...)
	pf.records = out
}

func (m *PCAPMutator) swapAdjacent(pf *pcapFile) {
	if len(pf.records) < 2 {
		return
	}
	i := secureRandomIntF(len(pf.records) - 1)
	pf.records[i], pf.records[i+1] = pf.records[i+1], pf.records[i]
}

func (m *PCAPMutator) mutatePayload(pf *pcapFile) {
	candidates := make([]int, 0, len(pf.records))
	for i, r := range pf.records {
		if len(r.payload) > 0 {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return
	}
	i := candidates[secureRandomIntF(len(candidates))]
	pos := secureRandomIntF(len(pf.records[i].payload))
	pf.records[i].payload[pos] ^= 0xff
}

// corruptInclLen raises one record's incl_len by 1-64 and zero-pads its
// payload to the new length. encodePCAP recomputes incl_len from every
// payload, so the output never carries an incl_len that disagrees with its
// payload.
func (m *PCAPMutator) corruptInclLen(pf *pcapFile) {
	i := secureRandomIntF(len(pf.records))
	delta := 1 + secureRandomIntF(64)
	current := pf.bo.Uint32(pf.records[i].header[8:12])
	pf.bo.PutUint32(pf.records[i].header[8:12], current+uint32(delta))
	// Force the corrupted value to survive encodePCAP's recompute by
	// truncating/padding the payload to match the corrupted length instead.
	target := int(current) + delta
	if target > len(pf.records[i].payload) {
		pf.records[i].payload = append(pf.records[i].payload, make([]byte, target-len(pf.records[i].payload))...)
	} else if target >= 0 {
		pf.records[i].payload = pf.records[i].payload[:target]
	}
}

func (m *PCAPMutator) splicePacket(pf *pcapFile) {
	donor := m.pool.RandomDonor(nil)
	if len(donor) < pcapGlobalHeaderSize {
		return
	}
	donorFile, err := parsePCAP(donor)
	if err != nil || len(donorFile.records) == 0 {
		return
	}
	donorRecord := donorFile.records[secureRandomIntF(len(donorFile.records))]
	i := secureRandomIntF(len(pf.records) + 1)
	out := append([]pcapRecord(nil), pf.records[:i]...)
	out = append(out, donorRecord)
	out = append(out, pf.records[i:]...)
	pf.records = out
}
