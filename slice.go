package dissect

import (
	"encoding/binary"
	"strconv"
)

// Buffer holds the raw bytes of one captured packet. Its contents must not be
// modified once a [Slice] references it.
type Buffer struct {
	b []byte
}

// NewBuffer returns a Buffer over b. b is not copied.
func NewBuffer(b []byte) *Buffer {
	return &Buffer{b: b}
}

// Len returns the length of the buffer in bytes.
func (buf *Buffer) Len() int { return len(buf.b) }

// Slice returns a Slice covering the whole buffer.
func (buf *Buffer) Slice() Slice {
	return Slice{buf: buf, off: 0, n: len(buf.b)}
}

// Slice is a bounds-checked, read-only view of a contiguous range of a [Buffer].
// Slices are small values and are cheap to create; they never copy bytes.
//
// The zero value is an empty Slice that references no buffer.
type Slice struct {
	buf *Buffer
	off int
	n   int
}

// NewSlice returns a view of buf[off:off+n]. It fails with a [*BoundsError]
// if the range does not lie within buf.
func NewSlice(buf *Buffer, off, n int) (Slice, error) {
	if buf == nil {
		return Slice{}, &BoundsError{Off: off, Len: n, Size: 0}
	}
	if !inBounds(off, n, len(buf.b)) {
		return Slice{}, &BoundsError{Off: off, Len: n, Size: len(buf.b)}
	}
	return Slice{buf: buf, off: off, n: n}, nil
}

func inBounds(off, n, size int) bool {
	return off >= 0 && n >= 0 && off <= size && n <= size-off
}

// Len returns the length of the view in bytes.
func (s Slice) Len() int { return s.n }

// Offset returns the absolute offset of the view within its [Buffer].
func (s Slice) Offset() int { return s.off }

// Buffer returns the buffer the view references.
func (s Slice) Buffer() *Buffer { return s.buf }

// IsZero reports whether s is the zero Slice.
func (s Slice) IsZero() bool { return s.buf == nil }

// Bytes returns the bytes of the view. The returned slice has its capacity
// clipped to its length and must not be modified.
func (s Slice) Bytes() []byte {
	if s.buf == nil {
		return nil
	}
	end := s.off + s.n
	return s.buf.b[s.off:end:end]
}

// Sub returns the view s[off:off+n] where off is relative to the start of s.
// It fails with a [*BoundsError] instead of clamping.
func (s Slice) Sub(off, n int) (Slice, error) {
	if !inBounds(off, n, s.n) {
		return Slice{}, &BoundsError{Off: off, Len: n, Size: s.n}
	}
	return Slice{buf: s.buf, off: s.off + off, n: n}, nil
}

// From returns the view s[off:].
func (s Slice) From(off int) (Slice, error) {
	return s.Sub(off, s.n-off)
}

// To returns the view s[:n].
func (s Slice) To(n int) (Slice, error) {
	return s.Sub(0, n)
}

// Contains reports whether sub references the same buffer as s and lies
// within the range of s. A Slice obtained by sub-slicing s is always contained by s.
func (s Slice) Contains(sub Slice) bool {
	return s.buf != nil && s.buf == sub.buf &&
		sub.off >= s.off && sub.off+sub.n <= s.off+s.n
}

// Uint8 reads the octet at off.
func (s Slice) Uint8(off int) (uint8, error) {
	b, err := s.read(off, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 reads a big endian 16 bit value at off.
func (s Slice) Uint16(off int) (uint16, error) {
	b, err := s.read(off, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// Uint32 reads a big endian 32 bit value at off.
func (s Slice) Uint32(off int) (uint32, error) {
	b, err := s.read(off, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Uint64 reads a big endian 64 bit value at off.
func (s Slice) Uint64(off int) (uint64, error) {
	b, err := s.read(off, 8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (s Slice) read(off, n int) ([]byte, error) {
	if !inBounds(off, n, s.n) {
		return nil, &BoundsError{Off: off, Len: n, Size: s.n}
	}
	start := s.off + off
	return s.buf.b[start : start+n], nil
}

func (s Slice) String() string {
	return "Slice[" + strconv.Itoa(s.off) + ":" + strconv.Itoa(s.off+s.n) + "]"
}
