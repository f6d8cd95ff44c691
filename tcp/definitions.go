package tcp

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
)

// Flags is a TCP flags bit-masked implementation i.e: SYN, FIN, ACK.
type Flags uint16

const (
	FlagFIN Flags = 1 << iota // FlagFIN - No more data from sender.
	FlagSYN                   // FlagSYN - Synchronize sequence numbers.
	FlagRST                   // FlagRST - Reset the connection.
	FlagPSH                   // FlagPSH - Push function.
	FlagACK                   // FlagACK - Acknowledgment field significant.
	FlagURG                   // FlagURG - Urgent pointer field significant.
	FlagECE                   // FlagECE - ECN-Echo has a nonce-sum in the SYN/ACK.
	FlagCWR                   // FlagCWR - Congestion Window Reduced.
	FlagNS                    // FlagNS  - Nonce Sum flag (see RFC 3540).
)

const flagMask = 0x01ff

const (
	synack = FlagSYN | FlagACK
	finack = FlagFIN | FlagACK
	pshack = FlagPSH | FlagACK
)

// HasAll checks if mask bits are all set in the receiver flags.
func (flags Flags) HasAll(mask Flags) bool { return flags&mask == mask }

// HasAny checks if one or more mask bits are set in receiver flags.
func (flags Flags) HasAny(mask Flags) bool { return flags&mask != 0 }

// Mask returns the flags with non-flag bits unset.
func (flags Flags) Mask() Flags { return flags & flagMask }

// String returns human readable flag string. i.e:
//
//	"[SYN,ACK]"
//
// Flags are printed in order from LSB (FIN) to MSB (NS).
func (flags Flags) String() string {
	// Cover most common cases without heap allocating.
	switch flags {
	case 0:
		return "[]"
	case synack:
		return "[SYN,ACK]"
	case finack:
		return "[FIN,ACK]"
	case pshack:
		return "[PSH,ACK]"
	case FlagACK:
		return "[ACK]"
	case FlagSYN:
		return "[SYN]"
	case FlagFIN:
		return "[FIN]"
	case FlagRST:
		return "[RST]"
	}
	buf := make([]byte, 0, 2+4*bits.OnesCount16(uint16(flags)))
	buf = append(buf, '[')
	buf = flags.AppendFormat(buf)
	buf = append(buf, ']')
	return string(buf)
}

// AppendFormat appends a human readable flag string to b returning the extended buffer.
func (flags Flags) AppendFormat(b []byte) []byte {
	const flaglen = 3
	const strflags = "FINSYNRSTPSHACKURGECECWRNS "
	flags = flags.Mask()
	first := true
	for flags != 0 {
		i := bits.TrailingZeros16(uint16(flags))
		if !first {
			b = append(b, ',')
		}
		first = false
		name := strflags[i*flaglen : i*flaglen+flaglen]
		if name[2] == ' ' {
			name = name[:2]
		}
		b = append(b, name...)
		flags &^= 1 << i
	}
	return b
}

// OptionKind is the kind octet of a TCP option.
type OptionKind uint8

const (
	OptEnd                   OptionKind = 0  // end of option list
	OptNop                   OptionKind = 1  // no-operation
	OptMaxSegmentSize        OptionKind = 2  // mss
	OptWindowScale           OptionKind = 3  // windowScale
	OptSACKPermitted         OptionKind = 4  // sackPermitted
	OptSACK                  OptionKind = 5  // sack
	OptTimestamps            OptionKind = 8  // timestamps
	OptUserTimeout           OptionKind = 28 // userTimeout
	OptAuthentication        OptionKind = 29 // tcpAO
	OptMultipath             OptionKind = 30 // mptcp
	OptFastOpenCookie        OptionKind = 34 // fastOpen
	OptEncryptionNegotiation OptionKind = 69 // encryptionNegotiation
)

var optionNames = map[OptionKind]string{
	OptEnd:                   "end",
	OptNop:                   "nop",
	OptMaxSegmentSize:        "mss",
	OptWindowScale:           "windowScale",
	OptSACKPermitted:         "sackPermitted",
	OptSACK:                  "sack",
	OptTimestamps:            "timestamps",
	OptUserTimeout:           "userTimeout",
	OptAuthentication:        "tcpAO",
	OptMultipath:             "mptcp",
	OptFastOpenCookie:        "fastOpen",
	OptEncryptionNegotiation: "encryptionNegotiation",
}

// String returns the lower camel case name of the option, which is also the
// last element of its attribute name i.e. "tcp.options.mss".
func (kind OptionKind) String() string {
	if name, ok := optionNames[kind]; ok {
		return name
	}
	return "kind" + strconv.Itoa(int(kind))
}

var (
	errShortOptions = errors.New("tcp: short options")
	errOptionData   = errors.New("tcp: option data too long")
)

// AppendOption appends an option with its kind and length octets to dst.
// NOP and end of option list options are single octets and take no data.
func AppendOption(dst []byte, kind OptionKind, data ...byte) ([]byte, error) {
	if kind == OptNop || kind == OptEnd {
		if len(data) != 0 {
			return dst, errOptionData
		}
		return append(dst, byte(kind)), nil
	} else if 2+len(data) > 255 {
		return dst, errOptionData
	}
	dst = append(dst, byte(kind), byte(2+len(data)))
	return append(dst, data...), nil
}

// AppendOption16 appends an option carrying a 16 bit value, i.e. [OptMaxSegmentSize].
func AppendOption16(dst []byte, kind OptionKind, v uint16) ([]byte, error) {
	return AppendOption(dst, kind, byte(v>>8), byte(v))
}

// AppendOption32 appends an option carrying a 32 bit value, i.e. [OptUserTimeout].
func AppendOption32(dst []byte, kind OptionKind, v uint32) ([]byte, error) {
	return AppendOption(dst, kind, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// OptionParser iterates over the options of a TCP header.
type OptionParser struct {
	// SkipSizeValidation disables the length check of options with a fixed size.
	SkipSizeValidation bool
}

// ForEachOption calls fn with the kind, the offset of the kind octet within
// opts and the option data (excluding kind and length octets) of every
// option until the end of option list. NOP options are skipped.
func (op *OptionParser) ForEachOption(opts []byte, fn func(kind OptionKind, off int, data []byte) error) error {
	off := 0
	for off < len(opts) && opts[off] != byte(OptEnd) {
		kind := OptionKind(opts[off])
		if kind == OptNop {
			off++
			continue
		}
		if len(opts[off:]) < 2 {
			return errShortOptions
		}
		size := int(opts[off+1])
		if size < 2 || len(opts[off:]) < size {
			return fmt.Errorf("tcp: option %s length %d exceeds buffer size %d", kind, size, len(opts[off:]))
		}
		if !op.SkipSizeValidation {
			expectSize := -1
			switch kind {
			case OptTimestamps:
				expectSize = 10
			case OptMaxSegmentSize, OptUserTimeout:
				expectSize = 4
			case OptWindowScale:
				expectSize = 3
			case OptSACKPermitted:
				expectSize = 2
			}
			if expectSize != -1 && size != expectSize {
				return fmt.Errorf("tcp: bad option %s size want %d got %d", kind, expectSize, size)
			}
		}
		if err := fn(kind, off, opts[off+2:off+size]); err != nil {
			return err
		}
		off += size
	}
	return nil
}
