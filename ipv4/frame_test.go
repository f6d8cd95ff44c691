package ipv4

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/soypat/dissect"
)

func TestFlags(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 64; i++ {
		off := uint16(rng.Intn(FlagOffsetMask + 1))
		df, mf := rng.Intn(2) == 1, rng.Intn(2) == 1
		f := NewFlags(off, df, mf)
		if f.FragmentOffset() != off || f.DontFragment() != df || f.MoreFragments() != mf {
			t.Fatalf("NewFlags(%d,%v,%v) read back %d,%v,%v", off, df, mf, f.FragmentOffset(), f.DontFragment(), f.MoreFragments())
		}
		if f.IsEvil() {
			t.Fatal("NewFlags set the reserved bit")
		}
		if want := off != 0 || mf; f.IsFragment() != want {
			t.Fatalf("IsFragment()=%v for offset %d MF=%v", f.IsFragment(), off, mf)
		}
		wantBits := b2u8(df)<<1 | b2u8(mf)
		if f.Bits() != wantBits {
			t.Fatalf("Bits()=%03b, want %03b", f.Bits(), wantBits)
		}
		if evil := f | flagIsEvil; !evil.IsEvil() || evil.Bits() != wantBits|0b100 {
			t.Fatal("evil bit not reported")
		}
	}
}

func TestToS(t *testing.T) {
	for ecn := uint8(0); ecn < 4; ecn++ {
		for _, ds := range []uint8{0, 1, 0b10_1110, 0b11_1111} {
			tos := NewToS(ecn, ds)
			if tos.ECN() != ecn || tos.DS() != ds {
				t.Errorf("NewToS(%d,%d) read back ECN=%d DS=%d", ecn, ds, tos.ECN(), tos.DS())
			}
		}
	}
}

// putHeader writes a valid header with nopts option words and payloadLen
// octets of payload at the start of buf.
func putHeader(t *testing.T, buf []byte, nopts, payloadLen int) Frame {
	t.Helper()
	ifrm, err := NewFrame(buf)
	if err != nil {
		t.Fatal(err)
	}
	ihl := uint8(5 + nopts)
	ifrm.SetVersionAndIHL(4, ihl)
	ifrm.SetToS(NewToS(1, 10))
	ifrm.SetTotalLength(4*uint16(ihl) + uint16(payloadLen))
	ifrm.SetID(0xcafe)
	ifrm.SetFlags(NewFlags(0, true, false))
	ifrm.SetTTL(64)
	ifrm.SetProtocol(dissect.IPProtoUDP)
	*ifrm.SourceAddr() = [4]byte{192, 168, 0, 1}
	*ifrm.DestinationAddr() = [4]byte{192, 168, 0, 2}
	ifrm.SetCRC(ifrm.CalculateHeaderCRC())
	return ifrm
}

func TestFrameLayout(t *testing.T) {
	var buf [128]byte
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 32; i++ {
		nopts, payloadLen := rng.Intn(11), rng.Intn(8)
		ifrm := putHeader(t, buf[:], nopts, payloadLen)
		v := dissect.NewValidator(0)
		ifrm.ValidateExceptCRC(v)
		if err := v.Err(); err != nil {
			t.Fatal(err)
		}
		hl := ifrm.HeaderLength()
		if hl != sizeHeader+4*nopts {
			t.Fatalf("header length %d with %d option words", hl, nopts)
		}
		opts, payload := ifrm.Options(), ifrm.Payload()
		if len(opts) != 4*nopts || len(payload) != payloadLen {
			t.Fatalf("options %d payload %d, want %d %d", len(opts), len(payload), 4*nopts, payloadLen)
		}
		if len(payload) > 0 && &payload[0] != &buf[hl] {
			t.Fatal("payload does not alias the frame buffer")
		}
		if ifrm.CRC() != ifrm.CalculateHeaderCRC() {
			t.Fatal("checksum mismatch after SetCRC")
		}
		// The checksum covers the options.
		if nopts > 0 {
			opts[0] ^= 0xff
			if ifrm.CRC() == ifrm.CalculateHeaderCRC() {
				t.Fatal("option change not covered by checksum")
			}
			opts[0] ^= 0xff
		}
	}
}

func TestValidateExceptCRC(t *testing.T) {
	var buf [64]byte
	for _, tc := range []struct {
		name  string
		flags dissect.ValidateFlags
		edit  func(Frame)
		want  error
	}{
		{name: "version", edit: func(f Frame) { f.SetVersionAndIHL(6, 5) }, want: errBadVersion},
		{name: "short IHL", edit: func(f Frame) { f.SetVersionAndIHL(4, 4) }, want: errBadIHL},
		{name: "total below header", edit: func(f Frame) { f.SetTotalLength(19) }, want: errBadTL},
		{name: "total past buffer", edit: func(f Frame) { f.SetTotalLength(65) }, want: errShort},
		{name: "evil unchecked", edit: func(f Frame) { f.SetFlags(f.Flags() | flagIsEvil) }},
		{name: "evil", flags: dissect.ValidateEvilBit, edit: func(f Frame) { f.SetFlags(f.Flags() | flagIsEvil) }, want: errEvil},
		{name: "bad checksum ignored", edit: func(f Frame) { f.SetCRC(f.CRC() + 1) }},
	} {
		ifrm := putHeader(t, buf[:], 0, 8)
		tc.edit(ifrm)
		v := dissect.NewValidator(tc.flags)
		ifrm.ValidateExceptCRC(v)
		err := v.ErrPop()
		if tc.want == nil {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: want %v, got %v", tc.name, tc.want, err)
		}
		var bpe *dissect.BitPosErr
		if !errors.As(err, &bpe) || bpe.BitLen == 0 {
			t.Errorf("%s: error carries no bit position: %v", tc.name, err)
		}
	}
}
