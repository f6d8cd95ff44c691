package ipv6

const (
	sizeHeader = 40
	// sizeFragmentHeader is the fixed size of the Fragment extension header.
	sizeFragmentHeader = 8
)

// ToS represents the Traffic Class octet. 6 MSB are Differentiated Services; 2 LSB are Explicit Congestion Notification.
type ToS uint8

// NewToS returns a [ToS] from an Explicit Congestion Notification value and a Differentiated Services Field value.
func NewToS(ECN, DS uint8) ToS {
	if ECN > 0b11 || DS > 0b11_1111 {
		panic("invalid ECN/DS value")
	}
	return ToS(ECN | (DS << 2))
}

// DS returns the top 6 bits of the Traffic Class holding the Differentiated Services field.
func (tos ToS) DS() uint8 { return uint8(tos) >> 2 }

// ECN is the Explicit Congestion Notification.
func (tos ToS) ECN() uint8 { return uint8(tos & 0b11) }
