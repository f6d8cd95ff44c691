package ltesto

import (
	"bytes"
	"math"
	"math/rand"

	"github.com/soypat/dissect"
	"github.com/soypat/dissect/arp"
	"github.com/soypat/dissect/ethernet"
	"github.com/soypat/dissect/ipv4"
	"github.com/soypat/dissect/ipv4/icmpv4"
	"github.com/soypat/dissect/ipv6"
	"github.com/soypat/dissect/tcp"
	"github.com/soypat/dissect/udp"
)

const (
	sizeHeaderIPv4      = 20
	sizeHeaderTCP       = 20
	sizeHeaderEthNoVLAN = 14
	sizeHeaderEthVLAN   = 18
	sizeHeaderUDP       = 8
	sizeHeaderARPv4     = 28
	sizeHeaderIPv6      = 40
	sizeHeaderICMP      = 8
)

// PacketGen builds well formed packets between two endpoints. The zero
// value is usable, see [PacketGen.RandomizeAddrs].
type PacketGen struct {
	SrcMAC, DstMAC   [6]byte  // hardware address
	SrcIPv4, DstIPv4 [4]byte  // address
	SrcIPv6, DstIPv6 [16]byte // address
	SrcPort, DstPort uint16   // TCP or UDP ports
	// EnableVLAN allows random packets to carry an 802.1Q tag.
	EnableVLAN bool
	// VLAN tags every packet when non-zero.
	VLAN ethernet.VLANTag
}

// Segment holds the TCP header fields of a generated segment.
type Segment struct {
	Seq, Ack uint32
	Flags    tcp.Flags
	Window   uint32
	DataLen  int
}

func (gen *PacketGen) RandomizeAddrs(rng *rand.Rand) {
	rng.Read(gen.SrcMAC[:])
	rng.Read(gen.DstMAC[:])
	rng.Read(gen.SrcIPv4[:])
	rng.Read(gen.DstIPv4[:])
	rng.Read(gen.SrcIPv6[:])
	rng.Read(gen.DstIPv6[:])
	gen.SrcMAC[0] &^= 1 // Unicast.
	gen.DstMAC[0] &^= 1
	ports := rng.Uint32()
	gen.SrcPort = uint16(ports) | 1 // Ports are non-zero.
	gen.DstPort = uint16(ports>>16) | 1
}

// AppendRandomIPv4TCPPacket appends an Ethernet/IPv4/TCP packet carrying
// seg.DataLen random octets. IP options, TCP options and the VLAN tag (if
// enabled) are chosen at random.
func (gen *PacketGen) AppendRandomIPv4TCPPacket(dst []byte, rng *rand.Rand, seg Segment) []byte {
	if seg.Window > math.MaxUint16 {
		panic("TCP segment window overflow")
	} else if seg.DataLen > 2048 {
		panic("too long datalen")
	}
	ri := rng.Int()
	var (
		isVLAN    = gen.EnableVLAN && ri&(1<<0) != 0
		hasIPOpt  = ri&(1<<1) != 0
		hasTCPOpt = ri&(1<<2) != 0
	)
	var ipOpts []byte
	if hasIPOpt {
		ipOpts = []byte{1, 1, 1, 0} // NOP, NOP, NOP, EOL.
	}
	var tcpOpts []byte
	if hasTCPOpt {
		tcpOpts, _ = tcp.AppendOption16(tcpOpts, tcp.OptMaxSegmentSize, 1460)
	}
	vlan := gen.VLAN
	if isVLAN && vlan == 0 {
		vlan = ethernet.NewVLANTag(0, false, 1)
	}
	off := len(dst)
	dst, ipOff := gen.appendEthernet(dst, ethernet.TypeIPv4, vlan, sizeHeaderIPv4+len(ipOpts)+sizeHeaderTCP+len(tcpOpts)+seg.DataLen)
	ifrm := gen.putIPv4(dst[ipOff:], dissect.IPProtoTCP, uint16(rng.Uint32()), ipOpts)
	tfrm := gen.putTCP(ifrm.Payload(), rng, seg, tcpOpts)
	var crc dissect.CRC791
	crc.WritePseudoHeader(gen.SrcIPv4[:], gen.DstIPv4[:], dissect.IPProtoTCP, len(tfrm.RawData()))
	tfrm.WriteChecksum(&crc)
	tfrm.SetCRC(crc.Sum16())

	switch {
	case gen.SrcPort != tfrm.SourcePort():
		panic("IP options overwrite TCP header")
	case !bytes.Equal(ifrm.Options(), ipOpts):
		panic("bad ip options written, ensure ip options length is multiple of 4")
	case !bytes.Equal(tfrm.Options(), tcpOpts):
		panic("bad tcp options written, ensure tcp options length is multiple of 4")
	case *ifrm.DestinationAddr() != gen.DstIPv4:
		panic("IP options overwrite own header")
	}
	validate(dst[off:])
	return dst
}

// AppendIPv6TCPPacket appends an Ethernet/IPv6/TCP packet carrying
// seg.DataLen random octets.
func (gen *PacketGen) AppendIPv6TCPPacket(dst []byte, rng *rand.Rand, seg Segment) []byte {
	off := len(dst)
	dst, ipOff := gen.appendEthernet(dst, ethernet.TypeIPv6, gen.VLAN, sizeHeaderIPv6+sizeHeaderTCP+seg.DataLen)
	i6frm := gen.putIPv6(dst[ipOff:], dissect.IPProtoTCP)
	tfrm := gen.putTCP(i6frm.Payload(), rng, seg, nil)
	var crc dissect.CRC791
	i6frm.CRCWritePseudo(&crc, dissect.IPProtoTCP, len(tfrm.RawData()))
	tfrm.WriteChecksum(&crc)
	tfrm.SetCRC(crc.Sum16())
	validate(dst[off:])
	return dst
}

// AppendIPv4UDPPacket appends an Ethernet/IPv4/UDP packet carrying payload.
func (gen *PacketGen) AppendIPv4UDPPacket(dst []byte, payload []byte) []byte {
	off := len(dst)
	dst, ipOff := gen.appendEthernet(dst, ethernet.TypeIPv4, gen.VLAN, sizeHeaderIPv4+sizeHeaderUDP+len(payload))
	ifrm := gen.putIPv4(dst[ipOff:], dissect.IPProtoUDP, 1, nil)
	ufrm := gen.putUDP(ifrm.Payload(), payload)
	ufrm.SetCRC(ufrm.CalculateChecksum(gen.SrcIPv4[:], gen.DstIPv4[:]))
	validate(dst[off:])
	return dst
}

// AppendIPv6UDPPacket appends an Ethernet/IPv6/UDP packet carrying payload.
func (gen *PacketGen) AppendIPv6UDPPacket(dst []byte, payload []byte) []byte {
	off := len(dst)
	dst, ipOff := gen.appendEthernet(dst, ethernet.TypeIPv6, gen.VLAN, sizeHeaderIPv6+sizeHeaderUDP+len(payload))
	i6frm := gen.putIPv6(dst[ipOff:], dissect.IPProtoUDP)
	ufrm := gen.putUDP(i6frm.Payload(), payload)
	ufrm.SetCRC(ufrm.CalculateChecksum(gen.SrcIPv6[:], gen.DstIPv6[:]))
	validate(dst[off:])
	return dst
}

// AppendICMPEcho appends an Ethernet/IPv4/ICMP echo request.
func (gen *PacketGen) AppendICMPEcho(dst []byte, id, seq uint16, data []byte) []byte {
	off := len(dst)
	dst, ipOff := gen.appendEthernet(dst, ethernet.TypeIPv4, gen.VLAN, sizeHeaderIPv4+sizeHeaderICMP+len(data))
	ifrm := gen.putIPv4(dst[ipOff:], dissect.IPProtoICMP, seq, nil)
	cfrm, err := icmpv4.NewFrame(ifrm.Payload())
	if err != nil {
		panic(err)
	}
	cfrm.SetType(icmpv4.TypeEcho)
	cfrm.SetCode(0)
	cfrm.SetIdentifier(id)
	cfrm.SetSequenceNumber(seq)
	copy(cfrm.Data(), data)
	var crc dissect.CRC791
	cfrm.CRCWrite(&crc)
	cfrm.SetCRC(crc.Sum16())
	validate(dst[off:])
	return dst
}

// AppendARPRequest appends an Ethernet/ARP request asking for DstIPv4.
func (gen *PacketGen) AppendARPRequest(dst []byte) []byte {
	dstMAC := gen.DstMAC
	gen.DstMAC = [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	dst, arpOff := gen.appendEthernet(dst, ethernet.TypeARP, gen.VLAN, sizeHeaderARPv4)
	gen.DstMAC = dstMAC
	afrm, err := arp.NewFrame(dst[arpOff:])
	if err != nil {
		panic(err)
	}
	afrm.SetHardware(arp.HardwareEthernet, 6)
	afrm.SetProtocol(ethernet.TypeIPv4, 4)
	afrm.SetOperation(arp.OpRequest)
	hw, proto := afrm.Sender4()
	*hw, *proto = gen.SrcMAC, gen.SrcIPv4
	_, proto = afrm.Target4()
	*proto = gen.DstIPv4
	return dst
}

// appendEthernet appends an Ethernet header and payloadLen zeroed octets.
// It returns the offset of the payload in dst.
func (gen *PacketGen) appendEthernet(dst []byte, et ethernet.Type, vlan ethernet.VLANTag, payloadLen int) ([]byte, int) {
	ethsize := sizeHeaderEthNoVLAN
	if vlan != 0 {
		ethsize = sizeHeaderEthVLAN
	}
	off := len(dst)
	dst = append(dst, make([]byte, ethsize+payloadLen)...)
	efrm, err := ethernet.NewFrame(dst[off:])
	if err != nil {
		panic(err)
	}
	*efrm.DestinationHardwareAddr() = gen.DstMAC
	*efrm.SourceHardwareAddr() = gen.SrcMAC
	if vlan != 0 {
		efrm.SetVLAN(vlan, et)
	} else {
		efrm.SetEtherType(et)
	}
	return dst, off + ethsize
}

func (gen *PacketGen) putIPv4(buf []byte, proto dissect.IPProto, id uint16, opts []byte) ipv4.Frame {
	ifrm, err := ipv4.NewFrame(buf)
	if err != nil {
		panic(err)
	}
	ifrm.SetVersionAndIHL(4, sizeWord(sizeHeaderIPv4+len(opts)))
	ifrm.SetToS(ipv4.NewToS(0, 48))
	ifrm.SetTotalLength(uint16(len(buf)))
	ifrm.SetID(id)
	ifrm.SetFlags(ipv4.NewFlags(0, true, false))
	ifrm.SetTTL(64)
	ifrm.SetProtocol(proto)
	*ifrm.SourceAddr() = gen.SrcIPv4
	*ifrm.DestinationAddr() = gen.DstIPv4
	copy(ifrm.Options(), opts)
	ifrm.SetCRC(ifrm.CalculateHeaderCRC())
	return ifrm
}

func (gen *PacketGen) putIPv6(buf []byte, proto dissect.IPProto) ipv6.Frame {
	i6frm, err := ipv6.NewFrame(buf)
	if err != nil {
		panic(err)
	}
	i6frm.SetVersionTrafficAndFlow(6, ipv6.NewToS(0, 0), 0x12345)
	i6frm.SetPayloadLength(uint16(len(buf) - sizeHeaderIPv6))
	i6frm.SetNextHeader(proto)
	i6frm.SetHopLimit(64)
	*i6frm.SourceAddr() = gen.SrcIPv6
	*i6frm.DestinationAddr() = gen.DstIPv6
	return i6frm
}

func (gen *PacketGen) putTCP(buf []byte, rng *rand.Rand, seg Segment, opts []byte) tcp.Frame {
	tfrm, err := tcp.NewFrame(buf)
	if err != nil {
		panic(err)
	}
	tfrm.SetSourcePort(gen.SrcPort)
	tfrm.SetDestinationPort(gen.DstPort)
	tfrm.SetSeq(seg.Seq)
	tfrm.SetAck(seg.Ack)
	tfrm.SetOffsetAndFlags(sizeWord(sizeHeaderTCP+len(opts)), seg.Flags)
	tfrm.SetWindowSize(uint16(seg.Window))
	copy(tfrm.Options(), opts)
	payload := tfrm.Payload()
	if len(payload) != seg.DataLen {
		panic("incorrect payload length calculation")
	}
	rng.Read(payload)
	return tfrm
}

func (gen *PacketGen) putUDP(buf []byte, payload []byte) udp.Frame {
	ufrm, err := udp.NewFrame(buf)
	if err != nil {
		panic(err)
	}
	ufrm.SetSourcePort(gen.SrcPort)
	ufrm.SetDestinationPort(gen.DstPort)
	ufrm.SetLength(uint16(len(buf)))
	copy(ufrm.Payload(), payload)
	return ufrm
}

// validate panics if the generated Ethernet frame has inconsistent size fields.
func validate(frame []byte) {
	var vld dissect.Validator
	efrm, err := ethernet.NewFrame(frame)
	if err != nil {
		panic(err)
	}
	efrm.ValidateSize(&vld)
	if err = vld.ErrPop(); err != nil {
		panic(err)
	}
}

func sizeWord(l int) uint8 {
	return uint8((l + 3) / 4)
}
