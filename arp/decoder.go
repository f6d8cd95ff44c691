package arp

import (
	"github.com/soypat/dissect"
	"github.com/soypat/dissect/ethernet"
	"github.com/soypat/dissect/token"
)

// Decoder decodes ARP packets of any hardware and protocol address length.
// Ethernet, IPv4 and IPv6 addresses carry a type hint.
type Decoder struct {
	hwType, proto, hwLen, protoLen token.Token
	op, opRequest, opReply         token.Token
	senderHw, senderProto          token.Token
	targetHw, targetProto          token.Token
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
	d.hwType = intern("arp.hwtype")
	d.proto = intern("arp.protocol")
	d.hwLen = intern("arp.hlen")
	d.protoLen = intern("arp.plen")
	d.op = intern("arp.op")
	d.opRequest = intern("arp.op.request")
	d.opReply = intern("arp.op.reply")
	d.senderHw = intern("arp.sha")
	d.senderProto = intern("arp.spa")
	d.targetHw = intern("arp.tha")
	d.targetProto = intern("arp.tpa")
	return err
}

func (d *Decoder) Decode(ctx *dissect.Context, layer dissect.Layer) error {
	data := layer.Data()
	if data.Len() < sizeHeader {
		return &dissect.BoundsError{Off: 0, Len: sizeHeader, Size: data.Len()}
	}
	afrm := Frame{buf: data.Bytes()}
	u := dissect.UintValue
	hw, hlen := afrm.Hardware()
	proto, plen := afrm.Protocol()
	op := afrm.Operation()
	fs := dissect.Fields{Layer: layer}
	fs.Add(d.hwType, token.Empty, u(uint64(hw)), 0, 2)
	fs.Add(d.proto, token.TypeEnum, u(uint64(proto)), 2, 2)
	fs.Add(d.hwLen, token.Empty, u(uint64(hlen)), 4, 1)
	fs.Add(d.protoLen, token.Empty, u(uint64(plen)), 5, 1)
	fs.Add(d.op, token.TypeEnum, u(uint64(op)), 6, 2)
	switch op {
	case OpRequest:
		fs.Add(d.opRequest, token.TypeNoValue, dissect.NoValue(), 6, 2)
	case OpReply:
		fs.Add(d.opReply, token.TypeNoValue, dissect.NoValue(), 6, 2)
	}
	if err := fs.Err(); err != nil {
		return err
	}

	v := ctx.Validator()
	afrm.ValidateSize(v)
	if v.HasError() {
		return v.ErrPop()
	}
	hwTyp := token.Empty
	if hw == HardwareEthernet && hlen == 6 {
		hwTyp = token.TypeEthMAC
	}
	protoTyp := token.Empty
	switch {
	case proto == ethernet.TypeIPv4 && plen == 4:
		protoTyp = token.TypeIPv4Addr
	case proto == ethernet.TypeIPv6 && plen == 16:
		protoTyp = token.TypeIPv6Addr
	}
	h, p := int(hlen), int(plen)
	off := sizeHeader
	for _, f := range [...]struct {
		name, typ token.Token
		n         int
	}{
		{d.senderHw, hwTyp, h},
		{d.senderProto, protoTyp, p},
		{d.targetHw, hwTyp, h},
		{d.targetProto, protoTyp, p},
	} {
		if f.n > 0 {
			if err := layer.AddFieldBytes(f.name, f.typ, off, f.n); err != nil {
				return err
			}
		}
		off += f.n
	}
	return nil
}
