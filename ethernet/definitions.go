package ethernet

import (
	"strconv"
)

const (
	sizeHeaderNoVLAN = 14
	sizeHeaderVLAN   = 18
	sizeFCS          = 4
	// minFrameFCS is the minimum length of an Ethernet frame including its FCS.
	minFrameFCS = 64
)

// AppendAddr appends the text representation of the hardware address to the destination buffer.
func AppendAddr(dst []byte, hwAddr [6]byte) []byte {
	for i, b := range hwAddr {
		if i != 0 {
			dst = append(dst, ':')
		}
		if b < 16 {
			dst = append(dst, '0')
		}
		dst = strconv.AppendUint(dst, uint64(b), 16)
	}
	return dst
}

// Type is the EtherType/Size field of an Ethernet header.
type Type uint16

// IsSize returns true if the EtherType is actually the size of the payload
// and should NOT be interpreted as an EtherType.
func (et Type) IsSize() bool { return et <= 1500 }

// Ethernet types with a registered name.
const (
	TypeIPv4           Type = 0x0800 // ipv4
	TypeARP            Type = 0x0806 // arp
	TypeWakeOnLAN      Type = 0x0842 // wol
	TypeRARP           Type = 0x8035 // rarp
	TypeVLAN           Type = 0x8100 // vlan
	TypeIPv6           Type = 0x86DD // ipv6
	TypeFlowControl    Type = 0x8808 // flowControl
	TypeMPLSUnicast    Type = 0x8847 // mpls
	TypeMPLSMulticast  Type = 0x8848 // mplsMulticast
	TypePPPoEDiscovery Type = 0x8863 // pppoeDiscovery
	TypePPPoESession   Type = 0x8864 // pppoe
	TypeEAPoL          Type = 0x888E // eapol
	TypeServiceVLAN    Type = 0x88A8 // qinq
	TypeLLDP           Type = 0x88CC // lldp
	TypeMACsec         Type = 0x88E5 // macsec
	TypePTP            Type = 0x88F7 // ptp
)

var typeNames = map[Type]string{
	TypeIPv4:           "ipv4",
	TypeARP:            "arp",
	TypeWakeOnLAN:      "wol",
	TypeRARP:           "rarp",
	TypeVLAN:           "vlan",
	TypeIPv6:           "ipv6",
	TypeFlowControl:    "flowControl",
	TypeMPLSUnicast:    "mpls",
	TypeMPLSMulticast:  "mplsMulticast",
	TypePPPoEDiscovery: "pppoeDiscovery",
	TypePPPoESession:   "pppoe",
	TypeEAPoL:          "eapol",
	TypeServiceVLAN:    "qinq",
	TypeLLDP:           "lldp",
	TypeMACsec:         "macsec",
	TypePTP:            "ptp",
}

// String returns the lower camel case protocol name of the EtherType,
// which is also the layer name the decoder dispatches to.
func (et Type) String() string {
	if name, ok := typeNames[et]; ok {
		return name
	}
	return "0x" + strconv.FormatUint(uint64(et), 16)
}

// VLANTag holds priority (PCP) Drop indicator (DEI) and VLAN ID bits of the VLAN tag field.
type VLANTag uint16

// PriorityCodePoint is the 3-bit IEEE 802.1p class of service.
func (vt VLANTag) PriorityCodePoint() uint8 { return uint8(vt >> 13) }

// DropEligibleIndicator returns true if the DEI bit is set.
func (vt VLANTag) DropEligibleIndicator() bool { return vt&(1<<12) != 0 }

// VLANIdentifier is the 12 bit VLAN ID. Values of 0 and 4095 are reserved.
func (vt VLANTag) VLANIdentifier() uint16 { return uint16(vt) & 0x0fff }

// NewVLANTag packs the VLAN tag fields.
func NewVLANTag(pcp uint8, dei bool, id uint16) VLANTag {
	vt := VLANTag(pcp&0b111)<<13 | VLANTag(id&0x0fff)
	if dei {
		vt |= 1 << 12
	}
	return vt
}
