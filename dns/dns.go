package dns

import (
	"encoding/binary"
	"math"
	"slices"
	"strconv"
	"strings"
)

const (
	// SizeHeader is the length of the fixed DNS header: six 16 bit fields.
	SizeHeader = 6 * 2
	// ServerPort is the UDP and TCP port of name servers.
	ServerPort = 53
	// MaxSizeUDP is the largest message carried over UDP without EDNS.
	// Longer messages are truncated and have the TC bit set.
	MaxSizeUDP = 512

	maxNameLen  = 255
	maxLabelLen = 63
	// maxPointers bounds compression pointers followed per name so that
	// pointer loops terminate.
	maxPointers = 10
	// Type, class, TTL and data length of a resource record.
	sizeResourceFixed = 10
	// Type and class of a question.
	sizeQuestionFixed = 4
)

// Section identifies the part of a message a record belongs to.
type Section uint8

const (
	SectionQuestion Section = iota
	SectionAnswer
	SectionAuthority
	SectionAdditional
	numSections
)

func (s Section) String() string {
	switch s {
	case SectionQuestion:
		return "question"
	case SectionAnswer:
		return "answer"
	case SectionAuthority:
		return "authority"
	case SectionAdditional:
		return "additional"
	}
	return "Section(" + strconv.Itoa(int(s)) + ")"
}

// Record locates a question or resource record inside a message. All
// offsets are relative to the first octet of the message.
type Record struct {
	Section Section
	// Start is the offset of the owner name.
	Start uint16
	// NameEnd is the offset of the type field, right after the owner name
	// as it appears in the record (a compressed name ends at its pointer).
	NameEnd uint16
	// End is the offset of the first octet after the record.
	End   uint16
	Type  Type
	Class Class
	// TTL and Length are zero for questions.
	TTL    uint32
	Length uint16
}

// DataOffset returns the offset of the record data. Questions have no data.
func (r *Record) DataOffset() uint16 { return r.NameEnd + sizeResourceFixed }

// Data returns the record data within msg.
func (r *Record) Data(msg []byte) []byte {
	if r.Section == SectionQuestion {
		return nil
	}
	return msg[r.DataOffset():r.End]
}

// RecordReader walks the records of a message in wire order. Names and
// data are not copied, use [AppendName] to expand owner names.
type RecordReader struct {
	msg     []byte
	left    [numSections]uint16
	section Section
	off     uint16
}

// NewRecordReader returns a reader positioned at the first record of msg.
func NewRecordReader(msg []byte) (RecordReader, error) {
	frm, err := NewFrame(msg)
	if err != nil {
		return RecordReader{}, err
	} else if len(msg) > math.MaxUint16 {
		return RecordReader{}, errResTooLong
	}
	return RecordReader{
		msg:  msg,
		left: [numSections]uint16{frm.QDCount(), frm.ANCount(), frm.NSCount(), frm.ARCount()},
		off:  SizeHeader,
	}, nil
}

// Offset returns the offset of the next record to be read.
func (rr *RecordReader) Offset() uint16 { return rr.off }

// Remaining returns the number of records the header announces that have
// not been read yet.
func (rr *RecordReader) Remaining() (n int) {
	for _, left := range rr.left[rr.section:] {
		n += int(left)
	}
	return n
}

// Next reads the next record into rec. It returns false once every
// announced record has been read. After an error the reader must not be used.
func (rr *RecordReader) Next(rec *Record) (bool, error) {
	for rr.section < numSections && rr.left[rr.section] == 0 {
		rr.section++
	}
	if rr.section == numSections {
		return false, nil
	}
	msg := rr.msg
	start := rr.off
	nameEnd, err := walkName(msg, start, nil)
	if err != nil {
		return false, err
	}
	*rec = Record{Section: rr.section, Start: start, NameEnd: nameEnd}
	if rr.section == SectionQuestion {
		if int(nameEnd)+sizeQuestionFixed > len(msg) {
			return false, errResourceLen
		}
		rec.Type = Type(binary.BigEndian.Uint16(msg[nameEnd:]))
		rec.Class = Class(binary.BigEndian.Uint16(msg[nameEnd+2:]))
		rec.End = nameEnd + sizeQuestionFixed
	} else {
		if int(nameEnd)+sizeResourceFixed > len(msg) {
			return false, errResourceLen
		}
		rec.Type = Type(binary.BigEndian.Uint16(msg[nameEnd:]))
		rec.Class = Class(binary.BigEndian.Uint16(msg[nameEnd+2:]))
		rec.TTL = binary.BigEndian.Uint32(msg[nameEnd+4:])
		rec.Length = binary.BigEndian.Uint16(msg[nameEnd+8:])
		end := int(nameEnd) + sizeResourceFixed + int(rec.Length)
		if end > len(msg) {
			return false, errResourceLen
		}
		rec.End = uint16(end)
	}
	rr.left[rr.section]--
	rr.off = rec.End
	return true, nil
}

// AppendName appends the dotted form of the name at off in msg to dst,
// following compression pointers. The root name is appended as ".".
func AppendName(dst, msg []byte, off uint16) ([]byte, error) {
	n := len(dst)
	_, err := walkName(msg, off, func(label []byte) {
		dst = append(dst, label...)
		dst = append(dst, '.')
	})
	if err != nil {
		return dst[:n], err
	}
	if len(dst) == n {
		dst = append(dst, '.')
	}
	return dst, nil
}

// walkName calls fn for every label of the name at off and returns the
// offset right after the name as written at off.
func walkName(msg []byte, off uint16, fn func(label []byte)) (end uint16, err error) {
	if len(msg) > math.MaxUint16 {
		return off, errResTooLong
	}
	pos := int(off)
	pointers := 0
	expanded := 0 // Wire length of the expanded name.
	for {
		if pos >= len(msg) {
			return off, errBaseLen
		}
		c := int(msg[pos])
		pos++
		switch c & 0xc0 {
		case 0x00:
			if c == 0 {
				if pointers == 0 {
					end = uint16(pos)
				}
				return end, nil
			}
			if pos+c > len(msg) {
				return off, errCalcLen
			}
			label := msg[pos : pos+c]
			if slices.Contains(label, '.') {
				return off, errInvalidName
			}
			if expanded += 1 + c; expanded+1 > maxNameLen {
				return off, errNameTooLong
			}
			if fn != nil {
				fn(label)
			}
			pos += c
		case 0xc0:
			if pos >= len(msg) {
				return off, errInvalidPtr
			}
			if pointers == 0 {
				end = uint16(pos + 1)
			}
			if pointers++; pointers > maxPointers {
				return off, errTooManyPtr
			}
			pos = (c&^0xc0)<<8 | int(msg[pos])
		default:
			// 0x40 and 0x80 label types are reserved.
			return off, errReserved
		}
	}
}

// Message holds the records of a DNS message to be encoded with [Message.AppendTo].
type Message struct {
	Questions   []Question
	Answers     []Resource
	Authorities []Resource
	Additionals []Resource
}

type Question struct {
	Name  Name
	Type  Type
	Class Class
}

// Resource is a resource record to be encoded.
type Resource struct {
	Name  Name
	Type  Type
	Class Class
	TTL   uint32
	Data  []byte
}

// AppendTo appends the wire representation of m to buf with the given
// transaction ID and header flags. Names are not compressed.
func (m *Message) AppendTo(buf []byte, txid uint16, flags HeaderFlags) (_ []byte, err error) {
	var hdr [SizeHeader]byte
	f, _ := NewFrame(hdr[:])
	f.SetTxID(txid)
	f.SetFlags(flags)
	f.SetQDCount(uint16(len(m.Questions)))
	f.SetANCount(uint16(len(m.Answers)))
	f.SetNSCount(uint16(len(m.Authorities)))
	f.SetARCount(uint16(len(m.Additionals)))

	buf = slices.Grow(buf, m.Len())
	buf = append(buf, hdr[:]...)
	for _, q := range m.Questions {
		if buf, err = q.Name.AppendTo(buf); err != nil {
			return buf, err
		}
		buf = binary.BigEndian.AppendUint16(buf, uint16(q.Type))
		buf = binary.BigEndian.AppendUint16(buf, uint16(q.Class))
	}
	for _, section := range [...][]Resource{m.Answers, m.Authorities, m.Additionals} {
		for _, r := range section {
			if len(r.Data) > math.MaxUint16 {
				return buf, errResTooLong
			}
			if buf, err = r.Name.AppendTo(buf); err != nil {
				return buf, err
			}
			buf = binary.BigEndian.AppendUint16(buf, uint16(r.Type))
			buf = binary.BigEndian.AppendUint16(buf, uint16(r.Class))
			buf = binary.BigEndian.AppendUint32(buf, r.TTL)
			buf = binary.BigEndian.AppendUint16(buf, uint16(len(r.Data)))
			buf = append(buf, r.Data...)
		}
	}
	return buf, nil
}

// Len returns the length of m encoded by [Message.AppendTo].
func (m *Message) Len() int {
	n := SizeHeader
	for i := range m.Questions {
		n += len(m.Questions[i].Name.data) + sizeQuestionFixed
	}
	for _, section := range [...][]Resource{m.Answers, m.Authorities, m.Additionals} {
		for i := range section {
			n += len(section[i].Name.data) + sizeResourceFixed + len(section[i].Data)
		}
	}
	return n
}

// Name is a domain name in uncompressed wire format.
type Name struct {
	data []byte
}

// MustNewName is like [NewName] but panics on error.
func MustNewName(domain string) Name {
	name, err := NewName(domain)
	if err != nil {
		panic(err)
	}
	return name
}

// NewName parses a dotted domain name. A trailing dot is optional and "."
// is the root name.
func NewName(domain string) (Name, error) {
	if domain == "" {
		return Name{}, errEmptyDomainName
	}
	name := Name{data: make([]byte, 0, len(domain)+2)}
	domain = strings.TrimSuffix(domain, ".")
	for label := range strings.SplitSeq(domain, ".") {
		if domain == "" {
			break
		}
		if !name.CanAddLabel(label) {
			return Name{}, errCantAddLabel
		}
		name.data = append(name.data, byte(len(label)))
		name.data = append(name.data, label...)
	}
	name.data = append(name.data, 0)
	return name, nil
}

// CanAddLabel reports whether label is a valid label that fits in n.
func (n *Name) CanAddLabel(label string) bool {
	terminated := len(n.data) > 0 && n.data[len(n.data)-1] == 0
	size := len(n.data) + 1 + len(label)
	if !terminated {
		size++
	}
	return len(label) != 0 && len(label) <= maxLabelLen && size <= maxNameLen &&
		strings.IndexByte(label, '.') < 0
}

// AddLabel appends label to n. It panics if n.CanAddLabel(label) is false.
func (n *Name) AddLabel(label string) {
	if !n.CanAddLabel(label) {
		panic(errCantAddLabel.Error())
	}
	if len(n.data) > 0 && n.data[len(n.data)-1] == 0 {
		n.data = n.data[:len(n.data)-1]
	}
	n.data = append(n.data, byte(len(label)))
	n.data = append(n.data, label...)
	n.data = append(n.data, 0)
}

// Len returns the wire length of n.
func (n *Name) Len() int { return len(n.data) }

// AppendTo appends n in wire format to b.
func (n *Name) AppendTo(b []byte) ([]byte, error) {
	if len(n.data) == 0 {
		return b, errInvalidName
	}
	return append(b, n.data...), nil
}

// String returns n in dotted format with a trailing dot.
func (n *Name) String() string {
	b, err := AppendName(nil, n.data, 0)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(b)
}
