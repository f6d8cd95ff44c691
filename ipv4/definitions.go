package ipv4

const (
	sizeHeader = 20
)

// ToS represents the Type of Service octet. 6 MSB are Differentiated Services; 2 LSB are Explicit Congestion Notification.
type ToS uint8

// NewToS returns a [ToS] from an Explicit Congestion Notification value and a Differentiated Services Field value.
func NewToS(ECN, DS uint8) ToS {
	if ECN > 0b11 || DS > 0b11_1111 {
		panic("invalid ECN/DS value")
	}
	return ToS(ECN | (DS << 2))
}

// DS returns the top 6 bits of the IPv4 ToS holding the Differentiated Services field
// which is used to classify packets.
func (tos ToS) DS() uint8 { return uint8(tos) >> 2 }

// ECN is the Explicit Congestion Notification which provides congestion control and non-congestion control traffic.
func (tos ToS) ECN() uint8 { return uint8(tos & 0b11) }

// Flags holds the flags and fragment offset field of an IPv4 header. It is 16 bits long.
type Flags uint16

const (
	flagMoreFragPos         = 13
	flagDontFragPos         = 14
	flagIsEvilPos           = 15
	FlagOffsetMask          = (1 << flagMoreFragPos) - 1
	flagIsEvil        Flags = 1 << flagIsEvilPos
	FlagDontFragment  Flags = 1 << flagDontFragPos
	FlagMoreFragments Flags = 1 << flagMoreFragPos
)

// NewFlags packs a fragment offset (in units of 8 octets) and the DF and MF bits.
func NewFlags(fragOffset uint16, dontFrag, moreFrag bool) Flags {
	if fragOffset > FlagOffsetMask {
		panic("invalid NewFlags arg")
	}
	return Flags(fragOffset) | Flags(b2u8(dontFrag))<<flagDontFragPos | Flags(b2u8(moreFrag))<<flagMoreFragPos
}

// Bits returns the three flag bits (reserved, DF, MF) as the low bits of the result.
func (f Flags) Bits() uint8 { return uint8(f >> flagMoreFragPos) }

// IsEvil returns true if the reserved bit is set, the evil bit as per [RFC3514].
//
// [RFC3514]: https://datatracker.ietf.org/doc/html/rfc3514
func (f Flags) IsEvil() bool { return f&flagIsEvil != 0 }

// DontFragment specifies whether the datagram can not be fragmented.
func (f Flags) DontFragment() bool { return f&FlagDontFragment != 0 }

// MoreFragments is cleared for unfragmented packets and for the last fragment of a datagram.
func (f Flags) MoreFragments() bool { return f&FlagMoreFragments != 0 }

// FragmentOffset specifies the offset of a particular fragment relative to the beginning
// of the original unfragmented IP datagram in units of 8 octets.
func (f Flags) FragmentOffset() uint16 { return uint16(f) & FlagOffsetMask }

// IsFragment reports whether the packet is part of a fragmented datagram.
func (f Flags) IsFragment() bool { return f.MoreFragments() || f.FragmentOffset() != 0 }

func b2u8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
