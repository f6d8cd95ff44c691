package dissect

import (
	"encoding/binary"
)

// CRC791 is the internet checksum as defined by RFC 791: the 16-bit ones'
// complement of the ones' complement sum of all 16-bit words. Odd trailing
// octets are padded with a zero LSB.
//
// The zero value of CRC791 is ready to use.
type CRC791 struct {
	sum uint32
	odd bool
	pad byte
}

func checksum16(sum uint32) uint16 {
	sum = (sum & 0xffff) + sum>>16
	// the max value of sum at this point is 0x1fffe, so an additional round is enough
	return ^uint16(sum + sum>>16)
}

func checksumWriteEven(sum uint32, buff []byte) uint32 {
	for i := 0; i+1 < len(buff); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(buff[i:]))
	}
	return sum
}

// Write adds b to the running checksum. Consecutive writes of odd length are
// stitched together as if they were a single contiguous write.
func (c *CRC791) Write(b []byte) {
	if len(b) == 0 {
		return
	}
	if c.odd {
		c.sum += uint32(c.pad)<<8 | uint32(b[0])
		c.odd = false
		b = b[1:]
	}
	c.sum = checksumWriteEven(c.sum, b)
	if len(b)&1 != 0 {
		c.odd = true
		c.pad = b[len(b)-1]
	}
}

// AddUint32 adds a 32 bit value to the running checksum interpreted as BigEndian (network order).
func (c *CRC791) AddUint32(value uint32) {
	c.AddUint16(uint16(value >> 16))
	c.AddUint16(uint16(value))
}

// AddUint16 adds a 16 bit value to the running checksum interpreted as BigEndian (network order).
func (c *CRC791) AddUint16(value uint16) {
	c.sum += uint32(value)
}

// Sum16 calculates the checksum with the data written to c thus far.
func (c *CRC791) Sum16() uint16 {
	sum := c.sum
	if c.odd {
		sum += uint32(c.pad) << 8
	}
	return checksum16(sum)
}

// Reset zeros out the CRC791, resetting it to the initial state.
func (c *CRC791) Reset() { *c = CRC791{} }

// WritePseudoHeader adds the IPv4 or IPv6 pseudo header used by transport
// checksums. src and dst are 4 or 16 octet addresses and length is the
// transport header plus payload length.
func (c *CRC791) WritePseudoHeader(src, dst []byte, proto IPProto, length int) {
	c.Write(src)
	c.Write(dst)
	c.AddUint32(uint32(length))
	c.AddUint32(uint32(proto))
}
