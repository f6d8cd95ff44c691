package dhcpv4

import (
	"encoding/binary"
	"errors"
)

// AppendOption appends an option with its length octet to dst.
func AppendOption(dst []byte, opt OptNum, data ...byte) []byte {
	if len(data) > 255 {
		panic("option data too long")
	}
	dst = append(dst, byte(opt), byte(len(data)))
	dst = append(dst, data...)
	return dst
}

// AppendOption32 appends an option carrying a 32 bit big endian value, i.e. a lease time.
func AppendOption32(dst []byte, opt OptNum, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return AppendOption(dst, opt, b[:]...)
}

// EncodeOption writes an option into dst and returns the amount of octets written.
func EncodeOption(dst []byte, opt OptNum, data ...byte) (int, error) {
	if len(data) > 255 {
		return 0, errors.New("DHCPv4 option data too long (>255)")
	} else if len(dst) < 2+len(data) {
		return 0, errors.New("DHCP option buffer too short")
	}
	dst[0] = byte(opt)
	dst[1] = byte(len(data))
	copy(dst[2:], data)
	return 2 + len(data), nil
}

type OptNum uint8

// DHCP options. Taken from https://help.sonicwall.com/help/sw/eng/6800/26/2/3/content/Network_DHCP_Server.042.12.htm.
const (
	OptWordAligned          OptNum = 0   // word-aligned
	OptSubnetMask           OptNum = 1   // subnet mask
	OptTimeOffset           OptNum = 2   // Time offset in seconds from UTC
	OptRouter               OptNum = 3   // N/4 router addresses
	OptTimeServers          OptNum = 4   // N/4 time server addresses
	OptNameServers          OptNum = 5   // N/4 IEN-116 server addresses
	OptDNSServers           OptNum = 6   // N/4 DNS server addresses
	OptLogServers           OptNum = 7   // N/4 logging server addresses
	OptHostName             OptNum = 12  // Hostname string
	OptDomainName           OptNum = 15  // The DNS domain name of the client
	OptInterfaceMTUSize     OptNum = 26  // Interface MTU size
	OptBroadcastAddress     OptNum = 28  // Broadcast address
	OptNTPServersAddresses  OptNum = 42  // NTP servers addresses
	OptRequestedIPaddress   OptNum = 50  // Requested IP address
	OptIPAddressLeaseTime   OptNum = 51  // IP address lease time
	OptOptionOverload       OptNum = 52  // Overload “sname” or “file”
	OptMessageType          OptNum = 53  // DHCP message type.
	OptServerIdentification OptNum = 54  // DHCP server identification
	OptParameterRequestList OptNum = 55  // Parameter request list
	OptMessage              OptNum = 56  // DHCP error message
	OptMaximumMessageSize   OptNum = 57  // DHCP maximum message size
	OptRenewTimeValue       OptNum = 58  // DHCP renewal (T1) time
	OptRebindingTimeValue   OptNum = 59  // DHCP rebinding (T2) time
	OptClassIdentifier      OptNum = 60  // Vendor class identifier
	OptClientIdentifier     OptNum = 61  // Client identifier
	OptEnd                  OptNum = 255 // end
)

// optionNames are the attribute name suffixes of options with a well known layout.
var optionNames = map[OptNum]string{
	OptSubnetMask:           "subnetMask",
	OptTimeOffset:           "timeOffset",
	OptRouter:               "router",
	OptTimeServers:          "timeServers",
	OptNameServers:          "nameServers",
	OptDNSServers:           "dnsServers",
	OptLogServers:           "logServers",
	OptHostName:             "hostname",
	OptDomainName:           "domainName",
	OptInterfaceMTUSize:     "mtu",
	OptBroadcastAddress:     "broadcastAddress",
	OptNTPServersAddresses:  "ntpServers",
	OptRequestedIPaddress:   "requestedAddress",
	OptIPAddressLeaseTime:   "leaseTime",
	OptOptionOverload:       "overload",
	OptMessageType:          "messageType",
	OptServerIdentification: "serverIdentifier",
	OptParameterRequestList: "parameterRequestList",
	OptMessage:              "message",
	OptMaximumMessageSize:   "maxMessageSize",
	OptRenewTimeValue:       "renewalTime",
	OptRebindingTimeValue:   "rebindingTime",
	OptClassIdentifier:      "classIdentifier",
	OptClientIdentifier:     "clientIdentifier",
}

type Op byte

const (
	opUndefined Op = iota // undefined
	OpRequest             // request
	OpReply               // reply
)

type MessageType uint8

const (
	msgUndefined MessageType = iota // undefined
	MsgDiscover                     // discover
	MsgOffer                        // offer
	MsgRequest                      // request
	MsgDecline                      // decline
	MsgAck                          // ack
	MsgNack                         // nak
	MsgRelease                      // release
	MsgInform                       // inform
)

var messageTypeNames = [...]string{
	MsgDiscover: "discover",
	MsgOffer:    "offer",
	MsgRequest:  "request",
	MsgDecline:  "decline",
	MsgAck:      "ack",
	MsgNack:     "nak",
	MsgRelease:  "release",
	MsgInform:   "inform",
}

// Flags is the BOOTP flags field. Only the broadcast bit is defined.
type Flags uint16

// FlagBroadcast asks the server to broadcast its replies.
const FlagBroadcast Flags = 1 << 15

func (f Flags) IsBroadcast() bool { return f&FlagBroadcast != 0 }
