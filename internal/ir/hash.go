package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// DomainProgram is the domain prefix for program structural hashes.
// The version suffix enables future encoding migration.
const DomainProgram = "weft/ir/v1"

// StructuralHash fingerprints a program's shape: the opcode sequence,
// rule kinds, operator labels, and allocation/free counts — but not
// concrete port addresses. Two batches that perform the same rewrites
// against different cells therefore share a hash, which is exactly the
// identity the kernel cache wants: one compiled program serves every
// structurally identical batch.
//
// Format: SHA256(domain + 0x00 + encoding). The null separator keeps
// the domain/payload boundary unambiguous.
func StructuralHash(p *Program) string {
	h := sha256.New()
	h.Write([]byte(DomainProgram))
	h.Write([]byte{0x00})

	var buf [8]byte
	for _, in := range p.Instrs {
		h.Write([]byte{byte(in.Op), byte(in.Rule)})
		binary.LittleEndian.PutUint16(buf[:2], uint16(in.Label))
		h.Write(buf[:2])
		binary.LittleEndian.PutUint32(buf[:4], in.Count)
		h.Write(buf[:4])
	}
	return hex.EncodeToString(h.Sum(nil))
}
