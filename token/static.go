package token

import (
	"github.com/cespare/xxhash/v2"
)

// Static tokens. The vocabulary is closed: adding a name here changes the
// numeric value of every token that follows it.
const (
	Empty    Token = iota // ""
	Wildcard              // _

	// Frame pseudo attributes.
	FrameActualLength // _.actualLength
	FrameIndex        // _.index
	FramePayload      // _.payload
	FrameTimestamp    // _.timestamp

	// Error markers.
	MarkInvalidValue // !invalid-value
	MarkOutOfBounds  // !out-of-bounds
	MarkOutOfMemory  // !out-of-memory

	// Attribute type hints.
	TypeDateUnix // @date:unix
	TypeEnum     // @enum
	TypeEthMAC   // @eth:mac
	TypeFlags    // @flags
	TypeIntBin   // @int:bin
	TypeIntDec   // @int:dec
	TypeIntHex   // @int:hex
	TypeIntOct   // @int:oct
	TypeIPv4Addr // @ipv4:addr
	TypeIPv6Addr // @ipv6:addr
	TypeNested   // @nested
	TypeNoValue  // @novalue
	TypeStream   // @stream

	// Layer class markers.
	ClassEth     // [eth]
	ClassIPv4    // [ipv4]
	ClassIPv6    // [ipv6]
	ClassTCP     // [tcp]
	ClassUDP     // [udp]
	ClassUnknown // [unknown]

	Eth         // eth
	EthType     // eth.type
	EthTypeIPv4 // eth.type.ipv4
	EthTypeIPv6 // eth.type.ipv6

	IPv4                   // ipv4
	IPv4Checksum           // ipv4.checksum
	IPv4Dst                // ipv4.dst
	IPv4Flags              // ipv4.flags
	IPv4FlagsDontFragment  // ipv4.flags.dontFragment
	IPv4FlagsMoreFragments // ipv4.flags.moreFragments
	IPv4FlagsReserved      // ipv4.flags.reserved
	IPv4FragmentOffset     // ipv4.fragmentOffset
	IPv4HeaderLength       // ipv4.headerLength
	IPv4ID                 // ipv4.id
	IPv4Protocol           // ipv4.protocol
	IPv4ProtocolICMP       // ipv4.protocol.icmp
	IPv4ProtocolIGMP       // ipv4.protocol.igmp
	IPv4ProtocolTCP        // ipv4.protocol.tcp
	IPv4ProtocolUDP        // ipv4.protocol.udp
	IPv4Src                // ipv4.src
	IPv4TotalLength        // ipv4.totalLength
	IPv4TTL                // ipv4.ttl
	IPv4Type               // ipv4.type
	IPv4Version            // ipv4.version

	IPv6              // ipv6
	IPv6Dst           // ipv6.dst
	IPv6FlowLevel     // ipv6.flowLevel
	IPv6HopByHop      // ipv6.hopByHop
	IPv6HopLimit      // ipv6.hopLimit
	IPv6NextHeader    // ipv6.nextHeader
	IPv6PayloadLength // ipv6.payloadLength
	IPv6Protocol      // ipv6.protocol
	IPv6ProtocolICMP  // ipv6.protocol.icmp
	IPv6ProtocolIGMP  // ipv6.protocol.igmp
	IPv6ProtocolTCP   // ipv6.protocol.tcp
	IPv6ProtocolUDP   // ipv6.protocol.udp
	IPv6Src           // ipv6.src
	IPv6TrafficClass  // ipv6.trafficClass
	IPv6Version       // ipv6.version

	TCP           // tcp
	TCPAck        // tcp.ack
	TCPDataOffset // tcp.dataOffset
	TCPDst        // tcp.dst
	TCPFlags      // tcp.flags
	TCPFlagsACK   // tcp.flags.ack
	TCPFlagsCWR   // tcp.flags.cwr
	TCPFlagsECE   // tcp.flags.ece
	TCPFlagsNS    // tcp.flags.ns
	TCPFlagsURG   // tcp.flags.urg
	TCPSeq        // tcp.seq
	TCPSrc        // tcp.src
	TCPStreamID   // tcp.streamId

	UDP         // udp
	UDPChecksum // udp.checksum
	UDPDst      // udp.dst
	UDPLength   // udp.length
	UDPSrc      // udp.src

	// StaticLen is the number of tokens in the static table. Dynamic tokens
	// are issued starting at StaticLen.
	StaticLen
)

var staticNames = [StaticLen]string{
	Empty:             "",
	Wildcard:          "_",
	FrameActualLength: "_.actualLength",
	FrameIndex:        "_.index",
	FramePayload:      "_.payload",
	FrameTimestamp:    "_.timestamp",

	MarkInvalidValue: "!invalid-value",
	MarkOutOfBounds:  "!out-of-bounds",
	MarkOutOfMemory:  "!out-of-memory",

	TypeDateUnix: "@date:unix",
	TypeEnum:     "@enum",
	TypeEthMAC:   "@eth:mac",
	TypeFlags:    "@flags",
	TypeIntBin:   "@int:bin",
	TypeIntDec:   "@int:dec",
	TypeIntHex:   "@int:hex",
	TypeIntOct:   "@int:oct",
	TypeIPv4Addr: "@ipv4:addr",
	TypeIPv6Addr: "@ipv6:addr",
	TypeNested:   "@nested",
	TypeNoValue:  "@novalue",
	TypeStream:   "@stream",

	ClassEth:     "[eth]",
	ClassIPv4:    "[ipv4]",
	ClassIPv6:    "[ipv6]",
	ClassTCP:     "[tcp]",
	ClassUDP:     "[udp]",
	ClassUnknown: "[unknown]",

	Eth:         "eth",
	EthType:     "eth.type",
	EthTypeIPv4: "eth.type.ipv4",
	EthTypeIPv6: "eth.type.ipv6",

	IPv4:                   "ipv4",
	IPv4Checksum:           "ipv4.checksum",
	IPv4Dst:                "ipv4.dst",
	IPv4Flags:              "ipv4.flags",
	IPv4FlagsDontFragment:  "ipv4.flags.dontFragment",
	IPv4FlagsMoreFragments: "ipv4.flags.moreFragments",
	IPv4FlagsReserved:      "ipv4.flags.reserved",
	IPv4FragmentOffset:     "ipv4.fragmentOffset",
	IPv4HeaderLength:       "ipv4.headerLength",
	IPv4ID:                 "ipv4.id",
	IPv4Protocol:           "ipv4.protocol",
	IPv4ProtocolICMP:       "ipv4.protocol.icmp",
	IPv4ProtocolIGMP:       "ipv4.protocol.igmp",
	IPv4ProtocolTCP:        "ipv4.protocol.tcp",
	IPv4ProtocolUDP:        "ipv4.protocol.udp",
	IPv4Src:                "ipv4.src",
	IPv4TotalLength:        "ipv4.totalLength",
	IPv4TTL:                "ipv4.ttl",
	IPv4Type:               "ipv4.type",
	IPv4Version:            "ipv4.version",

	IPv6:              "ipv6",
	IPv6Dst:           "ipv6.dst",
	IPv6FlowLevel:     "ipv6.flowLevel",
	IPv6HopByHop:      "ipv6.hopByHop",
	IPv6HopLimit:      "ipv6.hopLimit",
	IPv6NextHeader:    "ipv6.nextHeader",
	IPv6PayloadLength: "ipv6.payloadLength",
	IPv6Protocol:      "ipv6.protocol",
	IPv6ProtocolICMP:  "ipv6.protocol.icmp",
	IPv6ProtocolIGMP:  "ipv6.protocol.igmp",
	IPv6ProtocolTCP:   "ipv6.protocol.tcp",
	IPv6ProtocolUDP:   "ipv6.protocol.udp",
	IPv6Src:           "ipv6.src",
	IPv6TrafficClass:  "ipv6.trafficClass",
	IPv6Version:       "ipv6.version",

	TCP:           "tcp",
	TCPAck:        "tcp.ack",
	TCPDataOffset: "tcp.dataOffset",
	TCPDst:        "tcp.dst",
	TCPFlags:      "tcp.flags",
	TCPFlagsACK:   "tcp.flags.ack",
	TCPFlagsCWR:   "tcp.flags.cwr",
	TCPFlagsECE:   "tcp.flags.ece",
	TCPFlagsNS:    "tcp.flags.ns",
	TCPFlagsURG:   "tcp.flags.urg",
	TCPSeq:        "tcp.seq",
	TCPSrc:        "tcp.src",
	TCPStreamID:   "tcp.streamId",

	UDP:         "udp",
	UDPChecksum: "udp.checksum",
	UDPDst:      "udp.dst",
	UDPLength:   "udp.length",
	UDPSrc:      "udp.src",
}

// The static table is addressed by a minimal-collision hash: each name maps
// to a unique slot of staticSlots for the seed found in init. A slot holds
// token+1 so that the zero value marks an empty slot.
const staticBits = 12

var (
	staticSeed  uint64
	staticSlots [1 << staticBits]uint8
)

func init() {
	staticSeed = findStaticSeed(&staticSlots)
}

func staticSlot(seed uint64, s string) uint64 {
	h := (xxhash.Sum64String(s) ^ seed) * 0x9e3779b97f4a7c15
	return h >> (64 - staticBits)
}

// findStaticSeed searches seeds in increasing order until every static name
// lands in a distinct slot. xxhash is deterministic so the seed found is the
// same on every run.
func findStaticSeed(slots *[1 << staticBits]uint8) uint64 {
	for seed := uint64(0); ; seed++ {
		clear(slots[:])
		ok := true
		for i := range staticNames {
			k := staticSlot(seed, staticNames[i])
			if slots[k] != 0 {
				ok = false
				break
			}
			slots[k] = uint8(i + 1)
		}
		if ok {
			return seed
		}
	}
}

// LookupStatic looks up s in the static table. It never allocates and is
// safe for concurrent use.
func LookupStatic(s string) (Token, bool) {
	v := staticSlots[staticSlot(staticSeed, s)]
	if v == 0 {
		return 0, false
	}
	t := Token(v - 1)
	if staticNames[t] != s {
		return 0, false
	}
	return t, true
}

// StaticName returns the name of a static token.
func StaticName(t Token) (string, bool) {
	if t >= StaticLen {
		return "", false
	}
	return staticNames[t], true
}
