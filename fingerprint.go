package dissect

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a BLAKE2b-256 digest of the decoded tree of f. Two
// frames decoded from identical bytes by the same decoders have equal
// fingerprints: the digest covers layer order, protocol tokens, error
// markers, attribute names, type hints, values and byte ranges.
// Frame metadata such as index and timestamp is not part of the digest.
func (f *Frame) Fingerprint() [blake2b.Size256]byte {
	h, _ := blake2b.New256(nil)
	var scratch [64]byte
	put := func(vals ...uint64) {
		b := scratch[:0]
		for _, v := range vals {
			b = binary.BigEndian.AppendUint64(b, v)
		}
		h.Write(b)
	}
	put(uint64(f.status))
	for l := range f.Layers() {
		n := l.node()
		put(uint64(n.id), uint64(l.Depth()), uint64(n.data.off), uint64(n.data.n), uint64(n.errKind))
		for a := range l.Attrs() {
			hasTyp := uint64(0)
			if a.hasTyp {
				hasTyp = 1
			}
			put(uint64(a.name), uint64(a.typ), hasTyp, uint64(a.rng.off), uint64(a.rng.n), uint64(a.value.kind))
			switch a.value.kind {
			case KindString, KindBytes, KindBuffer:
				var b []byte
				if s, ok := a.value.Str(); ok {
					b = []byte(s)
				} else {
					b, _ = a.value.Bytes()
				}
				put(uint64(len(b)))
				h.Write(b)
			default:
				put(a.value.num)
			}
		}
	}
	var sum [blake2b.Size256]byte
	h.Sum(sum[:0])
	return sum
}
