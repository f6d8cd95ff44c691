package format_test

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/soypat/dissect"
	"github.com/soypat/dissect/builtin"
	"github.com/soypat/dissect/format"
	"github.com/soypat/dissect/internal/ltesto"
	"github.com/soypat/dissect/token"
)

var demoRaw = []byte{192, 168, 1, 2, 0x02, 0x00, 0x5e, 0x10, 0x20, 0x30, 0xde, 0xad, 0xbe, 0xef, 0x01, 0x02}

// decodeDemo decodes demoRaw with a decoder exercising every type hint.
func decodeDemo(t *testing.T) (*dissect.Session, *dissect.Frame) {
	t.Helper()
	r := token.NewRegistry()
	root := r.MustIntern("demo")
	s, err := dissect.NewSession(dissect.SessionConfig{Tokens: r, Root: root})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	name := r.MustIntern
	err = s.Register(root, dissect.DecoderFunc(func(ctx *dissect.Context, l dissect.Layer) error {
		u := dissect.UintValue
		l.AddFieldBytes(name("demo.addr"), token.TypeIPv4Addr, 0, 4)
		l.AddFieldBytes(name("demo.mac"), token.TypeEthMAC, 4, 6)
		l.AddField(name("demo.hex"), token.TypeIntHex, u(255), 10, 1)
		l.AddField(name("demo.bin"), token.TypeIntBin, u(5), 10, 1)
		l.AddField(name("demo.oct"), token.TypeIntOct, u(8), 10, 1)
		l.AddAttrType(name("demo.date"), token.TypeDateUnix, dissect.IntValue(int64(time.Second)), dissect.Slice{})
		l.AddFieldBytes(name("demo.nested"), token.TypeNested, 10, 4)
		l.AddField(name("demo.member"), token.TypeNoValue, dissect.NoValue(), 10, 1)
		l.AddFieldBytes(name("demo.raw"), token.Empty, 10, 4)
		l.AddAttr(name("demo.str"), dissect.StringValue("hi"), dissect.Slice{})
		l.AddAttr(name("demo.flag"), dissect.BoolValue(true), dissect.Slice{})
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	return s, ltesto.Decode(t, s, demoRaw)
}

func TestFormatLayer(t *testing.T) {
	s, f := decodeDemo(t)
	root, _ := f.Root()
	fm := format.Formatter{Tokens: s.Tokens()}
	got := string(fm.FormatLayer(nil, root))
	const want = `demo len=16
  demo.addr=192.168.1.2
  demo.mac=02:00:5e:10:20:30
  demo.hex=0xff
  demo.bin=0b101
  demo.oct=0o10
  demo.date=1970-01-01T00:00:01Z
  demo.nested=[4 octets]
  demo.member
  demo.raw=0xdeadbeef
  demo.str="hi"
  demo.flag=true
`
	if got != want {
		t.Errorf("mismatch:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatCompact(t *testing.T) {
	s, f := decodeDemo(t)
	root, _ := f.Root()
	fm := format.Formatter{
		Tokens:      s.Tokens(),
		AttrSep:     " ",
		AttrLimit:   2,
		HideMembers: true,
	}
	got := string(fm.FormatLayer(nil, root))
	const want = "demo len=16 demo.addr=192.168.1.2 demo.mac=02:00:5e:10:20:30 ...\n"
	if got != want {
		t.Errorf("want %q, got %q", want, got)
	}

	fm = format.Formatter{Tokens: s.Tokens(), AttrSep: ";", HideMembers: true}
	if got := string(fm.FormatLayer(nil, root)); strings.Contains(got, "demo.member") {
		t.Errorf("member attribute printed: %q", got)
	}
}

func TestFormatMaxBytes(t *testing.T) {
	s, f := decodeDemo(t)
	root, _ := f.Root()
	tok, _ := s.Tokens().Lookup("demo.raw")
	a, _ := root.Attr(tok)
	for _, tc := range []struct {
		max  int
		want string
	}{
		{max: 0, want: "0xdeadbeef"},
		{max: 2, want: "0xdead...4"},
		{max: -1, want: "0xdeadbeef"},
	} {
		fm := format.Formatter{MaxBytes: tc.max}
		if got := string(fm.AppendValue(nil, a)); got != tc.want {
			t.Errorf("MaxBytes=%d: want %q, got %q", tc.max, tc.want, got)
		}
	}
	// Without a registry dynamic names fall back to their number.
	var fm format.Formatter
	if got := string(fm.FormatAttr(nil, a)); !strings.HasPrefix(got, "Token(") {
		t.Errorf("unexpected name rendering %q", got)
	}
}

func TestFormatFrame(t *testing.T) {
	var gen ltesto.PacketGen
	gen.RandomizeAddrs(rand.New(rand.NewSource(1)))
	gen.SrcMAC = [6]byte{0x02, 0, 0, 0, 0, 1}
	gen.SrcIPv4 = [4]byte{10, 0, 0, 1}
	gen.DstIPv4 = [4]byte{10, 0, 0, 2}
	s := ltesto.NewSession(t, 0)
	defer s.Close()
	pkt := gen.AppendARPRequest(nil)
	frm, err := s.Ingest(pkt, dissect.Metadata{
		Timestamp:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		ActualLength: 60,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Decode(frm); err != nil {
		t.Fatal(err)
	}
	fm := format.Formatter{Tokens: s.Tokens(), HideMembers: true}
	got := string(fm.FormatFrame(nil, frm))
	lines := strings.Split(got, "\n")
	if lines[0] != "frame 0 len=42 wirelen=60 time=2024-01-02T03:04:05Z status=completed" {
		t.Errorf("header line %q", lines[0])
	}
	for _, want := range []string{
		"\neth len=42\n",
		"\n  eth.src=02:00:00:00:00:01\n",
		"\n  eth.dst=ff:ff:ff:ff:ff:ff\n",
		"\n  arp len=28\n",
		"\n    arp.spa=10.0.0.1\n",
		"\n    arp.tpa=10.0.0.2\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in\n%s", want, got)
		}
	}

	arpTok, _ := s.Tokens().Lookup("arp")
	fm.Layers = []token.Token{arpTok}
	got = string(fm.FormatFrame(nil, frm))
	if strings.Contains(got, "eth len=") || !strings.Contains(got, "arp len=28") {
		t.Errorf("layer filter not applied:\n%s", got)
	}
}

func TestFormatErrorMarker(t *testing.T) {
	s := ltesto.NewSession(t, 0)
	defer s.Close()
	f := ltesto.Decode(t, s, make([]byte, 10))
	fm := format.Formatter{Tokens: s.Tokens()}
	got := string(fm.FormatFrame(nil, f))
	if !strings.Contains(got, "eth len=10 !out-of-bounds(dissect: out of bounds [0:14] with length 10)") {
		t.Errorf("missing marker in\n%s", got)
	}
	if strings.Contains(got, "time=") || strings.Contains(got, "wirelen=") {
		t.Errorf("unset metadata printed:\n%s", got)
	}
}

func TestFormatNTPTime(t *testing.T) {
	r := token.NewRegistry()
	root := r.MustIntern("ntp")
	s, err := builtin.NewSession(dissect.SessionConfig{Tokens: r, Root: root}, builtin.Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	msg := make([]byte, 48)
	msg[0] = 4<<3 | 4 // Version 4 server.
	// 1970-01-01T00:00:01.5 in NTP era 0.
	copy(msg[40:], []byte{0x83, 0xaa, 0x7e, 0x81, 0x80, 0, 0, 0})
	f := ltesto.Decode(t, s, msg)
	nl, _ := f.Root()
	a := ltesto.Attr(t, s, nl, "ntp.transmitTs")
	fm := format.Formatter{Tokens: s.Tokens()}
	if got := string(fm.AppendValue(nil, a)); got != "1970-01-01T00:00:01.5" {
		t.Errorf("want NTP time rendering, got %q", got)
	}
}
