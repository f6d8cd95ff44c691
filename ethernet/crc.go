package ethernet

import (
	"encoding/binary"
	"hash/crc32"
)

// crcTable is the IEEE CRC-32 table used for Ethernet FCS calculation.
var crcTable = crc32.MakeTable(crc32.IEEE)

// CRC32 calculates the Ethernet Frame Check Sequence (FCS) for the given data.
// The input should be the frame data from destination MAC through payload,
// excluding any existing FCS.
func CRC32(data []byte) uint32 {
	return crc32.Checksum(data, crcTable)
}

// CheckFCS reports whether the last 4 octets of frame hold the
// little endian CRC32 of the preceding octets.
func CheckFCS(frame []byte) (fcs uint32, ok bool) {
	if len(frame) < sizeFCS {
		return 0, false
	}
	end := len(frame) - sizeFCS
	fcs = binary.LittleEndian.Uint32(frame[end:])
	return fcs, CRC32(frame[:end]) == fcs
}

// AppendFCS appends the frame check sequence of frame to it.
func AppendFCS(frame []byte) []byte {
	return binary.LittleEndian.AppendUint32(frame, CRC32(frame))
}
