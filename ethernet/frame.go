package ethernet

import (
	"encoding/binary"
	"errors"

	"github.com/soypat/dissect"
)

// NewFrame returns a Frame with data set to buf.
// An error is returned if the buffer size is smaller than 14.
// Users should still call [Frame.ValidateSize] before working
// with payload of frames to avoid panics.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < sizeHeaderNoVLAN {
		return Frame{buf: nil}, errShort
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw data of an Ethernet frame
// without including preamble (first byte is start of destination address)
// and provides methods for reading and writing fields. See [IEEE 802.3].
//
// [IEEE 802.3]: https://standards.ieee.org/ieee/802.3/7071/
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (efrm Frame) RawData() []byte { return efrm.buf }

// HeaderLength returns the length of the ethernet header. Nominally returns 14; or 18 for VLAN packets.
func (efrm Frame) HeaderLength() int {
	if efrm.IsVLAN() {
		return sizeHeaderVLAN
	}
	return sizeHeaderNoVLAN
}

// PayloadLength returns the length of the data following the header. For
// 802.3 frames that carry a size instead of an EtherType the size is returned.
func (efrm Frame) PayloadLength() int {
	hl := efrm.HeaderLength()
	if et := efrm.EtherType(); et.IsSize() {
		return int(et)
	}
	return len(efrm.buf) - hl
}

// Payload returns the data portion of the ethernet packet with correct handling of VLAN packets.
func (efrm Frame) Payload() []byte {
	hl := efrm.HeaderLength()
	return efrm.buf[hl : hl+efrm.PayloadLength()]
}

// DestinationHardwareAddr returns the target's MAC/hardware address for the ethernet packet.
func (efrm Frame) DestinationHardwareAddr() (dst *[6]byte) {
	return (*[6]byte)(efrm.buf[0:6])
}

// IsBroadcast returns true if the destination is the broadcast address ff:ff:ff:ff:ff:ff, false otherwise.
func (efrm Frame) IsBroadcast() bool {
	return *efrm.DestinationHardwareAddr() == [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
}

// SourceHardwareAddr returns the sender's MAC/hardware address of the ethernet packet.
func (efrm Frame) SourceHardwareAddr() (src *[6]byte) {
	return (*[6]byte)(efrm.buf[6:12])
}

// EtherTypeOrSize returns the EtherType/Size field at octet 12. For VLAN
// frames this is [TypeVLAN], see [Frame.EtherType].
func (efrm Frame) EtherTypeOrSize() Type {
	return Type(binary.BigEndian.Uint16(efrm.buf[12:14]))
}

// EtherType returns the EtherType/Size of the encapsulated payload. For VLAN
// frames the type following the tag is returned.
func (efrm Frame) EtherType() Type {
	if efrm.IsVLAN() {
		return efrm.VLANEtherType()
	}
	return efrm.EtherTypeOrSize()
}

// SetEtherType sets the EtherType field at octet 12.
func (efrm Frame) SetEtherType(v Type) {
	binary.BigEndian.PutUint16(efrm.buf[12:14], uint16(v))
}

// IsVLAN returns true if the SizeOrEtherType is set to the VLAN tag 0x8100.
func (efrm Frame) IsVLAN() bool {
	return efrm.EtherTypeOrSize() == TypeVLAN
}

// VLANTag returns the VLAN tag field following the TPID=0x8100.
func (efrm Frame) VLANTag() VLANTag { return VLANTag(binary.BigEndian.Uint16(efrm.buf[14:16])) }

// VLANEtherType returns the [Type] of a VLAN ethernet frame (octet position 16).
func (efrm Frame) VLANEtherType() Type {
	return Type(binary.BigEndian.Uint16(efrm.buf[16:18]))
}

// SetVLAN sets the TPID, tag and encapsulated type of a VLAN frame.
func (efrm Frame) SetVLAN(tag VLANTag, vlanType Type) {
	efrm.SetEtherType(TypeVLAN)
	binary.BigEndian.PutUint16(efrm.buf[14:16], uint16(tag))
	binary.BigEndian.PutUint16(efrm.buf[16:18], uint16(vlanType))
}

//
// Validation API.
//

var (
	errShort     = errors.New("ethernet: too short")
	errShortVLAN = errors.New("ethernet: short VLAN")
	errSize      = errors.New("ethernet: 802.3 size exceeds frame")
)

// ValidateSize checks the frame's size fields and compares with the actual buffer
// the frame. It returns a non-nil error on finding an inconsistency.
func (efrm Frame) ValidateSize(v *dissect.Validator) {
	if efrm.IsVLAN() && len(efrm.buf) < sizeHeaderVLAN {
		v.AddError(errShortVLAN)
		return
	}
	sz := efrm.EtherType()
	if sz.IsSize() && len(efrm.buf)-efrm.HeaderLength() < int(sz) {
		v.AddError(errSize)
	}
}
