package icmpv4

import (
	"github.com/soypat/dissect"
	"github.com/soypat/dissect/token"
)

// Decoder decodes ICMP messages. The datagram header carried by error
// messages is dispatched as a nested "ipv4" layer.
type Decoder struct {
	typ, code, checksum, checksumValid token.Token
	id, seq                            token.Token
}

var _ dissect.Initializer = (*Decoder)(nil)

func (d *Decoder) Init(r *token.Registry) (err error) {
	intern := func(s string) token.Token {
		t, ierr := r.Intern(s)
		if ierr != nil && err == nil {
			err = ierr
		}
		return t
	}
	d.typ = intern("icmp.type")
	d.code = intern("icmp.code")
	d.checksum = intern("icmp.checksum")
	d.checksumValid = intern("icmp.checksum.valid")
	d.id = intern("icmp.id")
	d.seq = intern("icmp.seq")
	return err
}

func (d *Decoder) Decode(ctx *dissect.Context, layer dissect.Layer) error {
	data := layer.Data()
	frm, err := NewFrame(data.Bytes())
	if err != nil {
		return &dissect.BoundsError{Off: 0, Len: sizeHeader, Size: data.Len()}
	}
	typ := frm.Type()
	fs := dissect.Fields{Layer: layer}
	fs.Add(d.typ, token.TypeEnum, dissect.UintValue(uint64(typ)), 0, 1)
	fs.Add(d.code, token.Empty, dissect.UintValue(uint64(frm.Code())), 1, 1)
	fs.Add(d.checksum, token.TypeIntHex, dissect.UintValue(uint64(frm.CRC())), 2, 2)
	var crc dissect.CRC791
	frm.CRCWrite(&crc)
	valid := crc.Sum16() == frm.CRC()
	fs.Add(d.checksumValid, token.Empty, dissect.BoolValue(valid), 2, 2)

	switch {
	case typ.IsEcho():
		fs.Add(d.id, token.Empty, dissect.UintValue(uint64(frm.Identifier())), 4, 2)
		fs.Add(d.seq, token.Empty, dissect.UintValue(uint64(frm.SequenceNumber())), 6, 2)
		if n := data.Len() - sizeHeader; n > 0 {
			fs.Bytes(token.FramePayload, token.Empty, sizeHeader, n)
		}
	case typ.IsError() && data.Len() > sizeHeader:
		if err := fs.Err(); err != nil {
			return err
		}
		inner, err := data.From(sizeHeader)
		if err != nil {
			return err
		}
		if _, err = ctx.Dispatch(layer, token.IPv4, inner); err != nil {
			return err
		}
	}
	if err := fs.Err(); err != nil {
		return err
	}
	if !valid && ctx.Validator().Has(dissect.ValidateChecksums) {
		return dissect.ErrBadCRC
	}
	return nil
}
