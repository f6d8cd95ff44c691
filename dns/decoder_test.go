package dns_test

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/soypat/dissect"
	"github.com/soypat/dissect/builtin"
	"github.com/soypat/dissect/dns"
	"github.com/soypat/dissect/internal/ltesto"
	"github.com/soypat/dissect/token"
)

// Response for whittileaks.com A with an EDNS OPT additional record.
var response = []byte{
	0x84, 0x05, 0x81, 0x80, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x0b, 0x77, 0x68, 0x69,
	0x74, 0x74, 0x69, 0x6c, 0x65, 0x61, 0x6b, 0x73, 0x03, 0x63, 0x6f, 0x6d, 0x00, 0x00, 0x01, 0x00,
	0x01, 0xc0, 0x0c, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x1e, 0xaf, 0x00, 0x04, 0xc6, 0x31, 0x17,
	0x91, 0x00, 0x00, 0x29, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

func newDNSSession(t *testing.T, maxRecords int) (*dissect.Session, token.Token) {
	t.Helper()
	r := token.NewRegistry()
	root := r.MustIntern("dns")
	s, err := builtin.NewSession(dissect.SessionConfig{Tokens: r, Root: root}, builtin.Config{DNSMaxRecords: maxRecords})
	if err != nil {
		t.Fatal(err)
	}
	return s, root
}

func attrNames(s *dissect.Session, l dissect.Layer, name string) []string {
	tok, _ := s.Tokens().Lookup(name)
	var names []string
	for a := range l.AttrsByName(tok) {
		str, _ := a.Value().Str()
		names = append(names, str)
	}
	return names
}

func TestDecodeResponse(t *testing.T) {
	var gen ltesto.PacketGen
	gen.RandomizeAddrs(rand.New(rand.NewSource(1)))
	gen.SrcPort, gen.DstPort = 53, 40000
	s := ltesto.NewSession(t, dissect.ValidateChecksums)
	defer s.Close()
	f := ltesto.Decode(t, s, gen.AppendIPv4UDPPacket(nil, response))
	if path := ltesto.LayerPath(s, f); !slices.Equal(path, []string{"eth", "ipv4", "udp", "dns"}) {
		t.Fatalf("unexpected layers %v", path)
	}
	dl := ltesto.Layer(t, s, f, "dns")
	if kind, cause := dl.Err(); kind != dissect.ErrorNone {
		t.Fatalf("unexpected marker %s: %v", kind, cause)
	}
	for name, want := range map[string]uint64{
		"dns.id":      0x8405,
		"dns.flags":   0x8180,
		"dns.opcode":  0,
		"dns.rcode":   0,
		"dns.qdcount": 1,
		"dns.ancount": 1,
		"dns.nscount": 0,
		"dns.arcount": 1,
		"dns.ttl":     0x1eaf,
	} {
		if got, _ := ltesto.Attr(t, s, dl, name).Value().Uint(); got != want {
			t.Errorf("%s: want %d, got %d", name, want, got)
		}
	}
	for name, want := range map[string]bool{
		"dns.flags.qr": true,
		"dns.flags.aa": false,
		"dns.flags.tc": false,
		"dns.flags.rd": true,
		"dns.flags.ra": true,
	} {
		if got, _ := ltesto.Attr(t, s, dl, name).Value().Bool(); got != want {
			t.Errorf("%s: want %v, got %v", name, want, got)
		}
	}
	names := attrNames(s, dl, "dns.name")
	if len(names) != 3 || names[0] != "whittileaks.com." || names[1] != "whittileaks.com." {
		t.Errorf("unexpected names %q", names)
	}
	answer := ltesto.Attr(t, s, dl, "dns.answer")
	if rng, _ := answer.Range(); rng.Len() != 16 {
		t.Errorf("answer record length %d", rng.Len())
	}
	data := ltesto.Attr(t, s, dl, "dns.data")
	if typ, _ := data.Type(); typ != token.TypeIPv4Addr {
		t.Errorf("A record data type hint %v", typ)
	}
	if b, _ := data.Value().Bytes(); string(b) != "\xc6\x31\x17\x91" {
		t.Errorf("A record data %x", b)
	}
	if ltesto.HasAttr(s, dl, "dns.records.truncated") {
		t.Error("records truncated below limit")
	}
}

func TestDecodeMaxRecords(t *testing.T) {
	s, _ := newDNSSession(t, 2)
	defer s.Close()
	f := ltesto.Decode(t, s, response)
	dl, _ := f.Root()
	if kind, cause := dl.Err(); kind != dissect.ErrorNone {
		t.Fatalf("record limit is not an error, got %s: %v", kind, cause)
	}
	trunc, _ := ltesto.Attr(t, s, dl, "dns.records.truncated").Value().Bytes()
	if len(trunc) != 11 {
		t.Errorf("want the 11 octet OPT record truncated, got %d octets", len(trunc))
	}
	if n := len(attrNames(s, dl, "dns.name")); n != 2 {
		t.Errorf("want 2 decoded records, got %d", n)
	}
}

func TestDecodeTruncatedMessage(t *testing.T) {
	s, _ := newDNSSession(t, 0)
	defer s.Close()
	f := ltesto.Decode(t, s, response[:45])
	dl, _ := f.Root()
	if kind, _ := dl.Err(); kind != dissect.ErrorMalformed {
		t.Errorf("want malformed marker, got %s", kind)
	}
	if !ltesto.HasAttr(s, dl, "dns.question") {
		t.Error("records decoded before the error must be kept")
	}

	f = ltesto.Decode(t, s, response[:6])
	dl, _ = f.Root()
	if kind, _ := dl.Err(); kind != dissect.ErrorOutOfBounds {
		t.Errorf("short header: want out of bounds, got %s", kind)
	}
}

func TestDecodeQuery(t *testing.T) {
	msg := dns.Message{
		Questions: []dns.Question{{Name: dns.MustNewName("example.org"), Type: dns.TypeAAAA, Class: dns.ClassINET}},
	}
	query, err := msg.AppendTo(nil, 0x1234, dns.NewClientHeaderFlags(dns.OpCodeQuery, true))
	if err != nil {
		t.Fatal(err)
	}
	s, _ := newDNSSession(t, 0)
	defer s.Close()
	f := ltesto.Decode(t, s, query)
	dl, _ := f.Root()
	if qr, _ := ltesto.Attr(t, s, dl, "dns.flags.qr").Value().Bool(); qr {
		t.Error("query flagged as response")
	}
	if typ, _ := ltesto.Attr(t, s, dl, "dns.type").Value().Uint(); typ != uint64(dns.TypeAAAA) {
		t.Errorf("want AAAA question, got %d", typ)
	}
	if names := attrNames(s, dl, "dns.name"); len(names) != 1 || names[0] != "example.org." {
		t.Errorf("unexpected names %q", names)
	}
}
