package dissect

import (
	"strconv"

	"github.com/soypat/dissect/token"
)

// IPProto represents the IP protocol number carried by IPv4 Protocol and
// IPv6 Next Header fields.
type IPProto uint8

// IP protocol numbers.
const (
	IPProtoHopByHop  IPProto = 0   // IPv6 Hop-by-Hop Option [RFC8200]
	IPProtoICMP      IPProto = 1   // Internet Control Message [RFC792]
	IPProtoIGMP      IPProto = 2   // Internet Group Management [RFC1112]
	IPProtoIPv4      IPProto = 4   // IPv4 encapsulation [RFC2003]
	IPProtoTCP       IPProto = 6   // Transmission Control [RFC793]
	IPProtoUDP       IPProto = 17  // User Datagram [RFC768]
	IPProtoIPv6      IPProto = 41  // IPv6 encapsulation [RFC2473]
	IPProtoIPv6Route IPProto = 43  // Routing Header for IPv6 [RFC8200]
	IPProtoIPv6Frag  IPProto = 44  // Fragment Header for IPv6 [RFC8200]
	IPProtoGRE       IPProto = 47  // Generic Routing Encapsulation [RFC2784]
	IPProtoESP       IPProto = 50  // Encap Security Payload [RFC4303]
	IPProtoAH        IPProto = 51  // Authentication Header [RFC4302]
	IPProtoIPv6ICMP  IPProto = 58  // ICMP for IPv6 [RFC8200]
	IPProtoIPv6NoNxt IPProto = 59  // No Next Header for IPv6 [RFC8200]
	IPProtoIPv6Opts  IPProto = 60  // Destination Options for IPv6 [RFC8200]
	IPProtoSCTP      IPProto = 132 // Stream Control Transmission Protocol
	IPProtoUDPLite   IPProto = 136 // UDPLite
)

func (p IPProto) String() string {
	switch p {
	case IPProtoHopByHop:
		return "HopByHop"
	case IPProtoICMP:
		return "ICMP"
	case IPProtoIGMP:
		return "IGMP"
	case IPProtoIPv4:
		return "IPv4"
	case IPProtoTCP:
		return "TCP"
	case IPProtoUDP:
		return "UDP"
	case IPProtoIPv6:
		return "IPv6"
	case IPProtoIPv6Route:
		return "IPv6Route"
	case IPProtoIPv6Frag:
		return "IPv6Frag"
	case IPProtoGRE:
		return "GRE"
	case IPProtoESP:
		return "ESP"
	case IPProtoAH:
		return "AH"
	case IPProtoIPv6ICMP:
		return "ICMPv6"
	case IPProtoIPv6NoNxt:
		return "IPv6NoNxt"
	case IPProtoIPv6Opts:
		return "IPv6Opts"
	case IPProtoSCTP:
		return "SCTP"
	case IPProtoUDPLite:
		return "UDPLite"
	}
	return "IPProto(" + strconv.Itoa(int(p)) + ")"
}

// IsIPv6Extension reports whether p is an IPv6 extension header that
// carries its own Next Header and length octets.
func (p IPProto) IsIPv6Extension() bool {
	switch p {
	case IPProtoHopByHop, IPProtoIPv6Route, IPProtoIPv6Opts:
		return true
	}
	return false
}

// LayerName returns the name of the layer that carries protocol p, i.e. "tcp".
// Protocols without a well known layer name return the empty string.
func (p IPProto) LayerName() string {
	switch p {
	case IPProtoICMP:
		return "icmp"
	case IPProtoIGMP:
		return "igmp"
	case IPProtoIPv4:
		return "ipv4"
	case IPProtoTCP:
		return "tcp"
	case IPProtoUDP:
		return "udp"
	case IPProtoIPv6:
		return "ipv6"
	case IPProtoGRE:
		return "gre"
	case IPProtoESP:
		return "esp"
	case IPProtoAH:
		return "ah"
	case IPProtoIPv6ICMP:
		return "icmpv6"
	case IPProtoSCTP:
		return "sctp"
	case IPProtoUDPLite:
		return "udplite"
	}
	return ""
}

// layerProtos lists the protocols with a LayerName.
var layerProtos = [...]IPProto{
	IPProtoICMP, IPProtoIGMP, IPProtoIPv4, IPProtoTCP, IPProtoUDP, IPProtoIPv6,
	IPProtoGRE, IPProtoESP, IPProtoAH, IPProtoIPv6ICMP, IPProtoSCTP, IPProtoUDPLite,
}

// InternLayerNames interns the layer name of every protocol with a
// [IPProto.LayerName] and returns the resulting lookup table.
func InternLayerNames(r *token.Registry) (*[256]token.Token, error) {
	var table [256]token.Token
	for _, p := range layerProtos {
		t, err := r.Intern(p.LayerName())
		if err != nil {
			return nil, err
		}
		table[p] = t
	}
	return &table, nil
}
