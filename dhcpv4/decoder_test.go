package dhcpv4_test

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/soypat/dissect"
	"github.com/soypat/dissect/dhcpv4"
	"github.com/soypat/dissect/internal/ltesto"
)

func appendOffer(dst []byte, chaddr [6]byte) []byte {
	off := len(dst)
	dst = append(dst, make([]byte, 240)...)
	frm, err := dhcpv4.NewFrame(dst[off:])
	if err != nil {
		panic(err)
	}
	frm.SetOp(dhcpv4.OpReply)
	frm.SetHardware(1, 6, 0)
	frm.SetXID(0xdeadbeef)
	frm.SetSecs(3)
	frm.SetFlags(dhcpv4.FlagBroadcast)
	*frm.YIAddr() = [4]byte{192, 168, 1, 100}
	*frm.SIAddr() = [4]byte{192, 168, 1, 1}
	*frm.CHAddrAs6() = chaddr
	copy(frm.SName()[:], "gateway")
	frm.SetMagicCookie(dhcpv4.MagicCookie)
	dst = dhcpv4.AppendOption(dst, dhcpv4.OptMessageType, byte(dhcpv4.MsgOffer))
	dst = dhcpv4.AppendOption(dst, dhcpv4.OptServerIdentification, 192, 168, 1, 1)
	dst = dhcpv4.AppendOption(dst, dhcpv4.OptSubnetMask, 255, 255, 255, 0)
	dst = dhcpv4.AppendOption(dst, dhcpv4.OptRouter, 192, 168, 1, 1, 192, 168, 1, 2)
	dst = dhcpv4.AppendOption32(dst, dhcpv4.OptIPAddressLeaseTime, 86400)
	dst = append(dst, byte(dhcpv4.OptWordAligned))
	dst = dhcpv4.AppendOption(dst, dhcpv4.OptDomainName, []byte("lan")...)
	dst = dhcpv4.AppendOption(dst, 224, 1, 2, 3)
	return append(dst, byte(dhcpv4.OptEnd))
}

func TestDecodeOffer(t *testing.T) {
	var gen ltesto.PacketGen
	gen.RandomizeAddrs(rand.New(rand.NewSource(1)))
	gen.SrcPort, gen.DstPort = dhcpv4.DefaultServerPort, dhcpv4.DefaultClientPort
	s := ltesto.NewSession(t, dissect.ValidateChecksums)
	defer s.Close()
	f := ltesto.Decode(t, s, gen.AppendIPv4UDPPacket(nil, appendOffer(nil, gen.DstMAC)))
	if path := ltesto.LayerPath(s, f); !slices.Equal(path, []string{"eth", "ipv4", "udp", "dhcpv4"}) {
		t.Fatalf("unexpected layers %v", path)
	}
	dl := ltesto.Layer(t, s, f, "dhcpv4")
	if kind, cause := dl.Err(); kind != dissect.ErrorNone {
		t.Fatalf("unexpected marker %s: %v", kind, cause)
	}
	for name, want := range map[string]uint64{
		"dhcpv4.op":                 uint64(dhcpv4.OpReply),
		"dhcpv4.htype":              1,
		"dhcpv4.hlen":               6,
		"dhcpv4.xid":                0xdeadbeef,
		"dhcpv4.secs":               3,
		"dhcpv4.cookie":             uint64(dhcpv4.MagicCookie),
		"dhcpv4.option.messageType": uint64(dhcpv4.MsgOffer),
		"dhcpv4.option.leaseTime":   86400,
	} {
		if got, _ := ltesto.Attr(t, s, dl, name).Value().Uint(); got != want {
			t.Errorf("%s: want %d, got %d", name, want, got)
		}
	}
	for _, name := range []string{"dhcpv4.op.reply", "dhcpv4.option.messageType.offer"} {
		if !ltesto.HasAttr(s, dl, name) {
			t.Errorf("missing member attribute %s", name)
		}
	}
	if b, _ := ltesto.Attr(t, s, dl, "dhcpv4.flags.broadcast").Value().Bool(); !b {
		t.Error("broadcast flag lost")
	}
	yiaddr, _ := ltesto.Attr(t, s, dl, "dhcpv4.yiaddr").Value().Bytes()
	if string(yiaddr) != "\xc0\xa8\x01\x64" {
		t.Errorf("yiaddr %v", yiaddr)
	}
	chaddr, _ := ltesto.Attr(t, s, dl, "dhcpv4.chaddr").Value().Bytes()
	if string(chaddr) != string(gen.DstMAC[:]) {
		t.Errorf("chaddr %x", chaddr)
	}
	if sname, _ := ltesto.Attr(t, s, dl, "dhcpv4.sname").Value().Str(); sname != "gateway" {
		t.Errorf("sname %q", sname)
	}
	if ltesto.HasAttr(s, dl, "dhcpv4.file") {
		t.Error("empty boot file name reported")
	}
	if domain, _ := ltesto.Attr(t, s, dl, "dhcpv4.option.domainName").Value().Str(); domain != "lan" {
		t.Errorf("domain name %q", domain)
	}
	routerTok, _ := s.Tokens().Lookup("dhcpv4.option.router")
	var routers [][]byte
	for a := range dl.AttrsByName(routerTok) {
		b, _ := a.Value().Bytes()
		routers = append(routers, b)
	}
	if len(routers) != 2 || routers[1][3] != 2 {
		t.Errorf("routers %v", routers)
	}
	unknown, _ := ltesto.Attr(t, s, dl, "dhcpv4.option.unknown").Value().Bytes()
	if string(unknown) != "\xe0\x03\x01\x02\x03" {
		t.Errorf("unknown option must span kind and length, got %x", unknown)
	}
}

func TestDecodeBOOTP(t *testing.T) {
	var gen ltesto.PacketGen
	gen.RandomizeAddrs(rand.New(rand.NewSource(2)))
	gen.SrcPort, gen.DstPort = dhcpv4.DefaultClientPort, dhcpv4.DefaultServerPort
	s := ltesto.NewSession(t, 0)
	defer s.Close()

	msg := appendOffer(nil, gen.SrcMAC)
	msg[236] = 0 // Break the magic cookie.
	f := ltesto.Decode(t, s, gen.AppendIPv4UDPPacket(nil, msg))
	dl := ltesto.Layer(t, s, f, "dhcpv4")
	if kind, _ := dl.Err(); kind != dissect.ErrorMalformed {
		t.Errorf("bad cookie: want malformed marker, got %s", kind)
	}
	if ltesto.HasAttr(s, dl, "dhcpv4.option.messageType") {
		t.Error("options decoded without magic cookie")
	}
	if !ltesto.HasAttr(s, dl, "dhcpv4.xid") {
		t.Error("BOOTP header attributes must be kept")
	}

	msg = appendOffer(nil, gen.SrcMAC)
	msg = msg[:len(msg)-3] // Cut into the last option.
	f = ltesto.Decode(t, s, gen.AppendIPv4UDPPacket(nil, msg))
	dl = ltesto.Layer(t, s, f, "dhcpv4")
	if kind, _ := dl.Err(); kind != dissect.ErrorMalformed {
		t.Errorf("truncated option: want malformed marker, got %s", kind)
	}
	if !ltesto.HasAttr(s, dl, "dhcpv4.option.domainName") {
		t.Error("options before the truncated one must be kept")
	}

	f = ltesto.Decode(t, s, gen.AppendIPv4UDPPacket(nil, msg[:100]))
	dl = ltesto.Layer(t, s, f, "dhcpv4")
	if kind, _ := dl.Err(); kind != dissect.ErrorOutOfBounds {
		t.Errorf("short message: want out of bounds marker, got %s", kind)
	}
}
