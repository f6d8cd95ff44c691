package dissect_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/soypat/dissect"
	"github.com/soypat/dissect/ethernet"
	"github.com/soypat/dissect/internal/ltesto"
	"github.com/soypat/dissect/ipv4"
	"github.com/soypat/dissect/tcp"
)

func TestTCPMarshalUnmarshal(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	gen := ltesto.PacketGen{EnableVLAN: true}
	gen.RandomizeAddrs(rng)
	const maxSize = 4096
	src := make([]byte, maxSize)
	dst := make([]byte, maxSize)
	for i := 0; i < 512; i++ {
		src = gen.AppendRandomIPv4TCPPacket(src[:0], rng, ltesto.Segment{
			Seq:     rng.Uint32(),
			Ack:     rng.Uint32(),
			DataLen: rng.Intn(256),
			Window:  uint32(rng.Intn(1024)),
			Flags:   tcp.FlagACK,
		})
		dst = dst[:len(src)]
		testMoveTCPPacket(t, src, dst)
		if !bytes.Equal(src, dst) {
			t.Fatal("mismatching data")
		}
	}
}

func testMoveTCPPacket(t *testing.T, src, dst []byte) {
	if len(src) != len(dst) {
		panic("expect src and dst same length")
	}
	efrm, err := ethernet.NewFrame(src)
	if err != nil {
		t.Fatal(err)
	}
	ifrm, err := ipv4.NewFrame(efrm.Payload())
	if err != nil {
		t.Fatal(err)
	}
	tfrm, err := tcp.NewFrame(ifrm.Payload())
	if err != nil {
		t.Fatal(err)
	}

	efrm2, _ := ethernet.NewFrame(dst)
	*efrm2.DestinationHardwareAddr() = *efrm.DestinationHardwareAddr()
	*efrm2.SourceHardwareAddr() = *efrm.SourceHardwareAddr()
	efrm2.SetEtherType(efrm.EtherTypeOrSize())
	if efrm.IsVLAN() {
		efrm2.SetVLAN(efrm.VLANTag(), efrm.VLANEtherType())
	}
	ifrm2, _ := ipv4.NewFrame(efrm2.Payload())
	ifrm2.SetVersionAndIHL(ifrm.VersionAndIHL())
	ifrm2.SetToS(ifrm.ToS())
	ifrm2.SetFlags(ifrm.Flags())
	ifrm2.SetTotalLength(ifrm.TotalLength())
	ifrm2.SetID(ifrm.ID())
	ifrm2.SetTTL(ifrm.TTL())
	ifrm2.SetProtocol(ifrm.Protocol())
	ifrm2.SetCRC(ifrm.CRC())
	*ifrm2.SourceAddr() = *ifrm.SourceAddr()
	*ifrm2.DestinationAddr() = *ifrm.DestinationAddr()

	tfrm2, _ := tcp.NewFrame(ifrm2.Payload())
	tfrm2.SetSourcePort(tfrm.SourcePort())
	tfrm2.SetDestinationPort(tfrm.DestinationPort())
	tfrm2.SetSeq(tfrm.Seq())
	tfrm2.SetAck(tfrm.Ack())
	tfrm2.SetOffsetAndFlags(tfrm.OffsetAndFlags())
	tfrm2.SetWindowSize(tfrm.WindowSize())
	tfrm2.SetCRC(tfrm.CRC())
	tfrm2.SetUrgentPtr(tfrm.UrgentPtr())

	copy(ifrm2.Options(), ifrm.Options())
	copy(tfrm2.Options(), tfrm.Options())
	copy(tfrm2.Payload(), tfrm.Payload())

	elen := efrm.HeaderLength()
	if !bytes.Equal(src[:elen], dst[:elen]) {
		t.Fatalf("Ethernet header mismatch\n%x\n%x", src[:elen], dst[:elen])
	}
	if !bytes.Equal(src[elen:elen+20], dst[elen:elen+20]) {
		t.Fatalf("IPv4 header mismatch\n%x\n%x", src[elen:elen+20], dst[elen:elen+20])
	}
	ipoptLen := len(ifrm.Options())
	if !bytes.Equal(ifrm.Options(), ifrm2.Options()) {
		t.Fatalf("IPv4 options mismatch\n%x\n%x", ifrm.Options(), ifrm2.Options())
	} else if ipoptLen > 0 && &ifrm.Options()[0] != &src[elen+20] {
		t.Fatal("IPv4 options start pointer mismatch")
	}
	tlen := tfrm.HeaderLength()
	toff := elen + ifrm.HeaderLength()
	if !bytes.Equal(src[toff:toff+tlen], dst[toff:toff+tlen]) {
		t.Fatalf("TCP header mismatch\n%x\n%x", src[toff:toff+tlen], dst[toff:toff+tlen])
	}
	if !bytes.Equal(tfrm.Payload(), tfrm2.Payload()) {
		t.Fatalf("payload mismatch %d %d", len(tfrm.Payload()), len(tfrm2.Payload()))
	}
}

// Generated packets must decode into the fields they were built from.
func TestTCPDecodeGenerated(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	gen := ltesto.PacketGen{EnableVLAN: true}
	gen.RandomizeAddrs(rng)
	s := ltesto.NewSession(t, dissect.ValidateChecksums)
	defer s.Close()
	var buf []byte
	for i := 0; i < 128; i++ {
		seg := ltesto.Segment{
			Seq:     rng.Uint32(),
			Ack:     rng.Uint32(),
			DataLen: rng.Intn(64),
			Window:  uint32(rng.Intn(1 << 16)),
			Flags:   tcp.FlagACK | tcp.FlagPSH,
		}
		buf = gen.AppendRandomIPv4TCPPacket(buf[:0], rng, seg)
		f := ltesto.Decode(t, s, buf)
		path := ltesto.LayerPath(s, f)
		if len(path) != 3 || path[0] != "eth" || path[1] != "ipv4" || path[2] != "tcp" {
			t.Fatalf("unexpected layers %v", path)
		}
		tl := ltesto.Layer(t, s, f, "tcp")
		if v, _ := ltesto.Attr(t, s, tl, "tcp.seq").Value().Uint(); uint32(v) != seg.Seq {
			t.Fatalf("seq: want %d, got %d", seg.Seq, v)
		}
		if v, _ := ltesto.Attr(t, s, tl, "tcp.ack").Value().Uint(); uint32(v) != seg.Ack {
			t.Fatalf("ack: want %d, got %d", seg.Ack, v)
		}
		if v, _ := ltesto.Attr(t, s, tl, "tcp.window").Value().Uint(); uint32(v) != seg.Window {
			t.Fatalf("window: want %d, got %d", seg.Window, v)
		}
		if ok, _ := ltesto.Attr(t, s, tl, "tcp.flags.psh").Value().Bool(); !ok {
			t.Fatal("psh flag not set")
		}
		if ok, _ := ltesto.Attr(t, s, tl, "tcp.checksum.valid").Value().Bool(); !ok {
			t.Fatal("generated TCP checksum reported invalid")
		}
		il := ltesto.Layer(t, s, f, "ipv4")
		if ok, _ := ltesto.Attr(t, s, il, "ipv4.checksum.valid").Value().Bool(); !ok {
			t.Fatal("generated IPv4 checksum reported invalid")
		}
		addr, _ := ltesto.Attr(t, s, il, "_.src").Value().Bytes()
		if !bytes.Equal(addr, gen.SrcIPv4[:]) {
			t.Fatalf("src alias: want %x, got %x", gen.SrcIPv4, addr)
		}
		payload := ltesto.HasAttr(s, tl, "_.payload")
		if payload != (seg.DataLen > 0) {
			t.Fatalf("payload attribute presence %v with %d octets", payload, seg.DataLen)
		}
		s.Release(f)
	}
}

var tcpPackets = [][]byte{
	{0xc0, 0xff, 0xee, 0x00, 0xde, 0xad, 0x4e, 0x8b, 0x3a, 0xf9, 0xfb, 0x6b, 0x08, 0x00, 0x45, 0x00,
		0x00, 0x3c, 0x01, 0xbe, 0x40, 0x00, 0x40, 0x06, 0xa3, 0xaa, 0xc0, 0xa8, 0x0a, 0x01, 0xc0, 0xa8,
		0x0a, 0x02, 0xe7, 0x0a, 0x00, 0x50, 0x40, 0x60, 0xd5, 0xcc, 0x00, 0x00, 0x00, 0x00, 0xa0, 0x02,
		0xfa, 0xf0, 0x62, 0xbc, 0x00, 0x00, 0x02, 0x04, 0x05, 0xb4, 0x04, 0x02, 0x08, 0x0a, 0xbb, 0xac,
		0x9b, 0xca, 0x00, 0x00, 0x00, 0x00, 0x01, 0x03, 0x03, 0x07},
	{0xc0, 0xff, 0xee, 0x00, 0xde, 0xad, 0x4e, 0x8b, 0x3a, 0xf9, 0xfb, 0x6b, 0x08, 0x00, 0x45, 0x00,
		0x00, 0x3c, 0xfa, 0xfd, 0x40, 0x00, 0x40, 0x06, 0xaa, 0x6a, 0xc0, 0xa8, 0x0a, 0x01, 0xc0, 0xa8,
		0x0a, 0x02, 0xe7, 0x0e, 0x00, 0x50, 0x9c, 0xdc, 0xfe, 0x05, 0x00, 0x00, 0x00, 0x00, 0xa0, 0x02,
		0xfa, 0xf0, 0xde, 0x02, 0x00, 0x00, 0x02, 0x04, 0x05, 0xb4, 0x04, 0x02, 0x08, 0x0a, 0xbb, 0xac,
		0x9b, 0xca, 0x00, 0x00, 0x00, 0x00, 0x01, 0x03, 0x03, 0x07},
}

func TestIPv4TCPChecksum(t *testing.T) {
	var vld dissect.Validator
	for _, pkt := range tcpPackets {
		pkt = bytes.Clone(pkt)
		efrm, _ := ethernet.NewFrame(pkt)
		efrm.ValidateSize(&vld)
		ifrm, _ := ipv4.NewFrame(efrm.Payload())
		ifrm.ValidateSize(&vld)
		tfrm, _ := tcp.NewFrame(ifrm.Payload())
		tfrm.ValidateExceptCRC(&vld)
		if err := vld.ErrPop(); err != nil {
			t.Fatal(err)
		}
		wantCRC := ifrm.CRC()
		gotCRC := ifrm.CalculateHeaderCRC()
		if wantCRC != gotCRC {
			t.Errorf("IPv4 CRC miscalculated. want %x, got %x", wantCRC, gotCRC)
		}
		wantCRC = tfrm.CRC()
		var crc dissect.CRC791
		crc.WritePseudoHeader(ifrm.SourceAddr()[:], ifrm.DestinationAddr()[:], dissect.IPProtoTCP, len(tfrm.RawData()))
		tfrm.WriteChecksum(&crc)
		gotCRC = crc.Sum16()
		if wantCRC != gotCRC {
			t.Errorf("TCP CRC miscalculated. want %x, got %x", wantCRC, gotCRC)
		}
	}
}

func TestDecodeChecksumMismatch(t *testing.T) {
	s := ltesto.NewSession(t, dissect.ValidateChecksums)
	defer s.Close()
	for _, pkt := range tcpPackets {
		f := ltesto.Decode(t, s, pkt)
		tl := ltesto.Layer(t, s, f, "tcp")
		if ok, _ := ltesto.Attr(t, s, tl, "tcp.checksum.valid").Value().Bool(); !ok {
			t.Error("captured TCP checksum reported invalid")
		}
		if v, _ := ltesto.Attr(t, s, tl, "tcp.options.mss").Value().Uint(); v != 1460 {
			t.Errorf("want MSS 1460, got %d", v)
		}

		bad := bytes.Clone(pkt)
		bad[len(bad)-1] ^= 0xff // Corrupt last TCP option octet.
		f, err := s.Ingest(bad, dissect.Metadata{})
		if err != nil {
			t.Fatal(err)
		}
		if err = s.Decode(f); err != nil {
			t.Fatal(err)
		}
		tl = ltesto.Layer(t, s, f, "tcp")
		kind, cause := tl.Err()
		if kind != dissect.ErrorMalformed || cause != dissect.ErrBadCRC {
			t.Errorf("corrupted segment: got marker %s cause %v", kind, cause)
		}
	}
}
