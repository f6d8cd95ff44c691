package dns

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var defaultMessageFlags = NewClientHeaderFlags(OpCodeQuery, true)

// whittileaks.com A response with an OPT additional record.
var responseMsg = []byte{
	0x84, 0x05, 0x81, 0x80, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x0b, 0x77, 0x68, 0x69,
	0x74, 0x74, 0x69, 0x6c, 0x65, 0x61, 0x6b, 0x73, 0x03, 0x63, 0x6f, 0x6d, 0x00, 0x00, 0x01, 0x00,
	0x01, 0xc0, 0x0c, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x1e, 0xaf, 0x00, 0x04, 0xc6, 0x31, 0x17,
	0x91, 0x00, 0x00, 0x29, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

func readAll(t *testing.T, msg []byte) []Record {
	t.Helper()
	rr, err := NewRecordReader(msg)
	if err != nil {
		t.Fatal(err)
	}
	var recs []Record
	for {
		var rec Record
		ok, err := rr.Next(&rec)
		if err != nil {
			t.Fatal(err)
		} else if !ok {
			break
		}
		recs = append(recs, rec)
	}
	if rr.Remaining() != 0 || int(rr.Offset()) != len(msg) {
		t.Fatalf("reader stopped at %d with %d remaining", rr.Offset(), rr.Remaining())
	}
	return recs
}

func TestRecordReader(t *testing.T) {
	recs := readAll(t, responseMsg)
	want := []Record{
		{Section: SectionQuestion, Start: 12, NameEnd: 29, End: 33, Type: TypeA, Class: ClassINET},
		{Section: SectionAnswer, Start: 33, NameEnd: 35, End: 49, Type: TypeA, Class: ClassINET, TTL: 0x1eaf, Length: 4},
		{Section: SectionAdditional, Start: 49, NameEnd: 50, End: 60, Type: TypeOPT, Class: 4096},
	}
	if diff := cmp.Diff(want, recs); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	if got := recs[1].Data(responseMsg); string(got) != "\xc6\x31\x17\x91" {
		t.Errorf("answer data %x", got)
	}
	if recs[0].Data(responseMsg) != nil {
		t.Error("question has data")
	}
	for i, wantName := range []string{"whittileaks.com.", "whittileaks.com.", "."} {
		name, err := AppendName(nil, responseMsg, recs[i].Start)
		if err != nil {
			t.Fatal(err)
		} else if string(name) != wantName {
			t.Errorf("record %d: name %q, want %q", i, name, wantName)
		}
	}
}

func TestRecordReaderTruncated(t *testing.T) {
	for _, n := range []int{13, 30, 34, 40, 45, 59} {
		rr, err := NewRecordReader(responseMsg[:n])
		if err != nil {
			t.Fatal(err)
		}
		var rec Record
		for {
			var ok bool
			ok, err = rr.Next(&rec)
			if err != nil || !ok {
				break
			}
		}
		if err == nil {
			t.Errorf("message cut at %d read without error", n)
		}
	}
	if _, err := NewRecordReader(responseMsg[:SizeHeader-1]); err != errBaseLen {
		t.Errorf("short header: got %v", err)
	}
}

func TestAppendNameErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		msg  string
		err  error
	}{
		{"dotted label", "\x03w.w\x02go\x03dev\x00", errInvalidName},
		{"label past end", "\x05abc", errCalcLen},
		{"no terminator", "\x03abc", errBaseLen},
		{"pointer loop", "\xc0\x00", errTooManyPtr},
		{"cut pointer", "\x03abc\xc0", errInvalidPtr},
		{"reserved", "\x40", errReserved},
		{"too long", strings.Repeat("\x3f"+strings.Repeat("a", 63), 4) + "\x00", errNameTooLong},
	} {
		got, err := AppendName([]byte("keep"), []byte(tc.msg), 0)
		if err != tc.err {
			t.Errorf("%s: want %v, got %v", tc.name, tc.err, err)
		}
		if string(got) != "keep" {
			t.Errorf("%s: destination modified on error: %q", tc.name, got)
		}
	}
}

func TestAppendNameCompressed(t *testing.T) {
	// "go.dev" at 0, then "www" pointing to it at 8.
	msg := []byte("\x02go\x03dev\x00\x03www\xc0\x00")
	name, err := AppendName(nil, msg, 8)
	if err != nil {
		t.Fatal(err)
	} else if string(name) != "www.go.dev." {
		t.Errorf("name %q", name)
	}
	end, err := walkName(msg, 8, nil)
	if err != nil || end != uint16(len(msg)) {
		t.Errorf("compressed name ends at %d (%v), want %d", end, err, len(msg))
	}
}

func TestNewName(t *testing.T) {
	for _, tc := range []struct {
		domain, wire, dotted string
	}{
		{"foo.bar.org", "\x03foo\x03bar\x03org\x00", "foo.bar.org."},
		{"foo.bar.org.", "\x03foo\x03bar\x03org\x00", "foo.bar.org."},
		{".", "\x00", "."},
	} {
		name, err := NewName(tc.domain)
		if err != nil {
			t.Fatal(err)
		}
		b, err := name.AppendTo(nil)
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != tc.wire || name.Len() != len(tc.wire) {
			t.Errorf("NewName(%q) wire %q, want %q", tc.domain, b, tc.wire)
		}
		if name.String() != tc.dotted {
			t.Errorf("NewName(%q) = %q, want %q", tc.domain, name.String(), tc.dotted)
		}
	}
	for _, bad := range []string{"", "a..b", strings.Repeat("x", 64) + ".com"} {
		if _, err := NewName(bad); err == nil {
			t.Errorf("NewName(%q) succeeded", bad)
		}
	}
	var zero Name
	if _, err := zero.AppendTo(nil); err != errInvalidName {
		t.Errorf("zero name: got %v", err)
	}
}

func TestNameAddLabel(t *testing.T) {
	var name Name
	labels := strings.Split("foo.bar.org", ".")
	for i, label := range labels {
		name.AddLabel(label)
		if got, want := name.String(), strings.Join(labels[:i+1], ".")+"."; got != want {
			t.Fatalf("after %d labels: %q, want %q", i+1, got, want)
		}
	}
	if name.CanAddLabel("") || name.CanAddLabel("a.b") || name.CanAddLabel(strings.Repeat("x", 64)) {
		t.Error("accepted invalid label")
	}
}

func TestMessageAppendRead(t *testing.T) {
	msg := Message{
		Questions: []Question{{Name: MustNewName("go.dev"), Type: TypeAAAA, Class: ClassINET}},
		Answers: []Resource{
			{Name: MustNewName("go.dev"), Type: TypeA, Class: ClassINET, TTL: 300, Data: []byte{1, 2, 3, 4}},
			{Name: MustNewName("go.dev"), Type: TypeA, Class: ClassINET, TTL: 300, Data: []byte{5, 6, 7, 8}},
		},
		Additionals: []Resource{{Name: MustNewName("."), Type: TypeOPT, Class: 1232}},
	}
	b, err := msg.AppendTo(nil, 123, defaultMessageFlags)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != msg.Len() {
		t.Fatalf("encoded %d octets, Len reports %d", len(b), msg.Len())
	}
	frm, _ := NewFrame(b)
	if frm.TxID() != 123 || frm.Flags() != defaultMessageFlags {
		t.Errorf("header txid=%d flags=%v", frm.TxID(), frm.Flags())
	}
	recs := readAll(t, b)
	var sections []Section
	for _, rec := range recs {
		sections = append(sections, rec.Section)
	}
	wantSections := []Section{SectionQuestion, SectionAnswer, SectionAnswer, SectionAdditional}
	if diff := cmp.Diff(wantSections, sections); diff != "" {
		t.Fatalf("sections (-want +got):\n%s", diff)
	}
	if got := recs[2].Data(b); string(got) != "\x05\x06\x07\x08" || recs[2].TTL != 300 {
		t.Errorf("second answer data %x ttl %d", got, recs[2].TTL)
	}
	if recs[3].Class != 1232 || recs[3].Length != 0 {
		t.Errorf("OPT record %+v", recs[3])
	}
}
