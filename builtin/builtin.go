// Package builtin registers the protocol decoders bundled with dissect.
package builtin

import (
	"errors"
	"fmt"
	"slices"

	"github.com/soypat/dissect"
	"github.com/soypat/dissect/arp"
	"github.com/soypat/dissect/dhcpv4"
	"github.com/soypat/dissect/dns"
	"github.com/soypat/dissect/ethernet"
	"github.com/soypat/dissect/ipv4"
	"github.com/soypat/dissect/ipv4/icmpv4"
	"github.com/soypat/dissect/ipv6"
	"github.com/soypat/dissect/ntp"
	"github.com/soypat/dissect/tcp"
	"github.com/soypat/dissect/udp"
)

// Protocols lists the layer names of the bundled decoders in registration order.
var Protocols = []string{"eth", "arp", "ipv4", "icmp", "ipv6", "tcp", "udp", "dns", "dhcpv4", "ntp"}

var errUnknownProto = errors.New("builtin: unknown protocol")

// Config selects and configures the bundled decoders. The zero value
// registers every decoder with its defaults.
type Config struct {
	// Disabled lists layer names (see [Protocols]) that are not registered.
	// Layers of a disabled protocol end up marked as unknown.
	Disabled []string
	// EthernetFCS makes the Ethernet decoder treat the trailing 4 octets as
	// the frame check sequence.
	EthernetFCS bool
	// UDPPorts overrides [udp.DefaultPorts] when non-nil.
	UDPPorts map[uint16]string
	// DNSMaxRecords limits the DNS records decoded per message.
	// Default: [dns.DefaultMaxRecords].
	DNSMaxRecords int
}

// Decoders returns a new instance of every bundled decoder keyed by layer name.
func Decoders(cfg Config) map[string]dissect.Decoder {
	return map[string]dissect.Decoder{
		"eth":    &ethernet.Decoder{FCS: cfg.EthernetFCS},
		"arp":    &arp.Decoder{},
		"ipv4":   &ipv4.Decoder{},
		"icmp":   &icmpv4.Decoder{},
		"ipv6":   &ipv6.Decoder{},
		"tcp":    &tcp.Decoder{},
		"udp":    &udp.Decoder{Ports: cfg.UDPPorts},
		"dns":    &dns.Decoder{MaxRecords: cfg.DNSMaxRecords},
		"dhcpv4": &dhcpv4.Decoder{},
		"ntp":    &ntp.Decoder{},
	}
}

// Register registers the enabled bundled decoders on s.
func Register(s *dissect.Session, cfg Config) error {
	for _, name := range cfg.Disabled {
		if !slices.Contains(Protocols, name) {
			return fmt.Errorf("%w %q", errUnknownProto, name)
		}
	}
	decs := Decoders(cfg)
	for _, name := range Protocols {
		if slices.Contains(cfg.Disabled, name) {
			continue
		}
		tok, err := s.Tokens().Intern(name)
		if err != nil {
			return err
		}
		if err = s.Register(tok, decs[name]); err != nil {
			return fmt.Errorf("builtin: register %s: %w", name, err)
		}
	}
	return nil
}

// NewSession returns a session with the enabled bundled decoders registered.
func NewSession(scfg dissect.SessionConfig, cfg Config) (*dissect.Session, error) {
	s, err := dissect.NewSession(scfg)
	if err != nil {
		return nil, err
	}
	err = Register(s, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
