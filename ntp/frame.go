package ntp

import (
	"encoding/binary"
	"errors"

	"github.com/soypat/dissect"
)

var errShortFrame = errors.New("ntp: short frame")

// NewFrame returns a new Frame with data set to buf.
// An error is returned if the buffer size is smaller than 48.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < SizeHeader {
		return Frame{}, errShortFrame
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw data of an NTP packet. See [RFC5905].
//
// [RFC5905]: https://tools.ietf.org/html/rfc5905
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (frm Frame) RawData() []byte { return frm.buf }

// Flags returns the mode, version and leap indicator packed in the first octet.
func (frm Frame) Flags() (mode Mode, version uint8, leap LeapIndicator) {
	b := frm.buf[0]
	return Mode(b & 0b111), (b >> 3) & 0b111, LeapIndicator(b >> 6)
}

// SetFlags sets the first octet of the header. See [Frame.Flags].
func (frm Frame) SetFlags(mode Mode, version uint8, leap LeapIndicator) {
	frm.buf[0] = uint8(mode)&0b111 | (version&0b111)<<3 | uint8(leap)<<6
}

func (frm Frame) Stratum() Stratum          { return Stratum(frm.buf[1]) }
func (frm Frame) SetStratum(s Stratum)      { frm.buf[1] = uint8(s) }
func (frm Frame) Poll() int8                { return int8(frm.buf[2]) }
func (frm Frame) SetPoll(poll int8)         { frm.buf[2] = uint8(poll) }
func (frm Frame) Precision() int8           { return int8(frm.buf[3]) }
func (frm Frame) SetPrecision(prec int8)    { frm.buf[3] = uint8(prec) }
func (frm Frame) RootDelay() Short          { return Short(binary.BigEndian.Uint32(frm.buf[4:8])) }
func (frm Frame) SetRootDelay(d Short)      { binary.BigEndian.PutUint32(frm.buf[4:8], uint32(d)) }
func (frm Frame) RootDispersion() Short     { return Short(binary.BigEndian.Uint32(frm.buf[8:12])) }
func (frm Frame) SetRootDispersion(d Short) { binary.BigEndian.PutUint32(frm.buf[8:12], uint32(d)) }

// ReferenceID identifies the server or reference clock. For secondary
// servers it is the IPv4 address of the upstream server.
func (frm Frame) ReferenceID() *[4]byte { return (*[4]byte)(frm.buf[12:16]) }

func (frm Frame) ReferenceTime() Timestamp     { return frm.timestamp(16) }
func (frm Frame) SetReferenceTime(t Timestamp) { frm.setTimestamp(16, t) }
func (frm Frame) OriginTime() Timestamp        { return frm.timestamp(24) }
func (frm Frame) SetOriginTime(t Timestamp)    { frm.setTimestamp(24, t) }
func (frm Frame) ReceiveTime() Timestamp       { return frm.timestamp(32) }
func (frm Frame) SetReceiveTime(t Timestamp)   { frm.setTimestamp(32, t) }
func (frm Frame) TransmitTime() Timestamp      { return frm.timestamp(40) }
func (frm Frame) SetTransmitTime(t Timestamp)  { frm.setTimestamp(40, t) }

func (frm Frame) timestamp(off int) Timestamp {
	return TimestampFromUint64(binary.BigEndian.Uint64(frm.buf[off : off+8]))
}

func (frm Frame) setTimestamp(off int, t Timestamp) {
	binary.BigEndian.PutUint64(frm.buf[off:off+8], t.Uint64())
}

// ClearHeader zeros out the header contents.
func (frm Frame) ClearHeader() {
	for i := range frm.buf[:SizeHeader] {
		frm.buf[i] = 0
	}
}

var errBadVersion = errors.New("ntp: bad version")

// ValidateSize checks the version field. Extension fields are not validated.
func (frm Frame) ValidateSize(v *dissect.Validator) {
	if _, version, _ := frm.Flags(); version == 0 || version > Version4 {
		v.AddError(errBadVersion)
	}
}
