package dhcpv4

import (
	"bytes"
	"encoding/binary"

	"github.com/soypat/dissect"
	"github.com/soypat/dissect/token"
)

// Decoder decodes DHCPv4 (and plain BOOTP) messages. Options with a known
// layout become "dhcpv4.option.<name>" attributes, the rest
// "dhcpv4.option.unknown".
type Decoder struct {
	op, opRequest, opReply         token.Token
	htype, hlen, hops, xid, secs   token.Token
	flags, flagBroadcast           token.Token
	ciaddr, yiaddr, siaddr, giaddr token.Token
	chaddr, sname, file, cookie    token.Token
	options, optionOther           token.Token
	optionTokens                   map[OptNum]token.Token
	messageTypes                   [len(messageTypeNames)]token.Token
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
	d.op = intern("dhcpv4.op")
	d.opRequest = intern("dhcpv4.op.request")
	d.opReply = intern("dhcpv4.op.reply")
	d.htype = intern("dhcpv4.htype")
	d.hlen = intern("dhcpv4.hlen")
	d.hops = intern("dhcpv4.hops")
	d.xid = intern("dhcpv4.xid")
	d.secs = intern("dhcpv4.secs")
	d.flags = intern("dhcpv4.flags")
	d.flagBroadcast = intern("dhcpv4.flags.broadcast")
	d.ciaddr = intern("dhcpv4.ciaddr")
	d.yiaddr = intern("dhcpv4.yiaddr")
	d.siaddr = intern("dhcpv4.siaddr")
	d.giaddr = intern("dhcpv4.giaddr")
	d.chaddr = intern("dhcpv4.chaddr")
	d.sname = intern("dhcpv4.sname")
	d.file = intern("dhcpv4.file")
	d.cookie = intern("dhcpv4.cookie")
	d.options = intern("dhcpv4.options")
	d.optionOther = intern("dhcpv4.option.unknown")
	d.optionTokens = make(map[OptNum]token.Token, len(optionNames))
	for opt, name := range optionNames {
		d.optionTokens[opt] = intern("dhcpv4.option." + name)
	}
	for i, name := range messageTypeNames {
		if name != "" {
			d.messageTypes[i] = intern("dhcpv4.option.messageType." + name)
		}
	}
	return err
}

func (d *Decoder) Decode(ctx *dissect.Context, layer dissect.Layer) error {
	data := layer.Data()
	frm, err := NewFrame(data.Bytes())
	if err != nil {
		return &dissect.BoundsError{Off: 0, Len: optionsOffset, Size: data.Len()}
	}
	u := dissect.UintValue
	op := frm.Op()
	fs := dissect.Fields{Layer: layer}
	fs.Add(d.op, token.TypeEnum, u(uint64(op)), 0, 1)
	switch op {
	case OpRequest:
		fs.Add(d.opRequest, token.TypeNoValue, dissect.NoValue(), 0, 1)
	case OpReply:
		fs.Add(d.opReply, token.TypeNoValue, dissect.NoValue(), 0, 1)
	}
	htype, hlen, hops := frm.Hardware()
	fs.Add(d.htype, token.Empty, u(uint64(htype)), 1, 1)
	fs.Add(d.hlen, token.Empty, u(uint64(hlen)), 2, 1)
	fs.Add(d.hops, token.Empty, u(uint64(hops)), 3, 1)
	fs.Add(d.xid, token.TypeIntHex, u(uint64(frm.XID())), 4, 4)
	fs.Add(d.secs, token.Empty, u(uint64(frm.Secs())), 8, 2)
	flags := frm.Flags()
	fs.Add(d.flags, token.TypeFlags, u(uint64(flags)), 10, 2)
	fs.Add(d.flagBroadcast, token.Empty, dissect.BoolValue(flags.IsBroadcast()), 10, 1)
	fs.Bytes(d.ciaddr, token.TypeIPv4Addr, 12, 4)
	fs.Bytes(d.yiaddr, token.TypeIPv4Addr, 16, 4)
	fs.Bytes(d.siaddr, token.TypeIPv4Addr, 20, 4)
	fs.Bytes(d.giaddr, token.TypeIPv4Addr, 24, 4)
	if htype == 1 && hlen == 6 {
		fs.Bytes(d.chaddr, token.TypeEthMAC, 28, 6)
	} else {
		fs.Bytes(d.chaddr, token.Empty, 28, 16)
	}
	addCString := func(name token.Token, field []byte, off int) {
		if n := bytes.IndexByte(field, 0); n != 0 {
			if n < 0 {
				n = len(field)
			}
			fs.Add(name, token.Empty, dissect.StringValue(string(field[:n])), off, n)
		}
	}
	addCString(d.sname, frm.SName()[:], sizeHeader)
	addCString(d.file, frm.File()[:], sizeHeader+sizeSName)
	fs.Add(d.cookie, token.TypeIntHex, u(uint64(frm.MagicCookie())), magicCookieOffset, 4)
	if err = fs.Err(); err != nil {
		return err
	}

	v := ctx.Validator()
	frm.ValidateSize(v)
	if v.HasError() {
		return v.ErrPop() // BOOTP without DHCP options.
	}
	if n := data.Len() - optionsOffset; n > 0 {
		if err = layer.AddFieldBytes(d.options, token.TypeNested, optionsOffset, n); err != nil {
			return err
		}
	}
	return frm.ForEachOption(func(opt OptNum, off int, b []byte) error {
		name, ok := d.optionTokens[opt]
		if !ok {
			return layer.AddFieldBytes(d.optionOther, token.Empty, off-2, len(b)+2)
		}
		switch {
		case opt == OptMessageType && len(b) == 1:
			if err := layer.AddField(name, token.TypeEnum, u(uint64(b[0])), off, 1); err != nil {
				return err
			}
			if int(b[0]) < len(d.messageTypes) && d.messageTypes[b[0]] != token.Empty {
				return layer.AddField(d.messageTypes[b[0]], token.TypeNoValue, dissect.NoValue(), off, 1)
			}
			return nil
		case isAddrOption(opt) && len(b) >= 4 && len(b)%4 == 0:
			for i := 0; i < len(b); i += 4 {
				if err := layer.AddFieldBytes(name, token.TypeIPv4Addr, off+i, 4); err != nil {
					return err
				}
			}
			return nil
		case opt == OptHostName || opt == OptDomainName || opt == OptMessage:
			return layer.AddField(name, token.Empty, dissect.StringValue(string(b)), off, len(b))
		case len(b) == 2:
			return layer.AddField(name, token.Empty, u(uint64(binary.BigEndian.Uint16(b))), off, 2)
		case len(b) == 4:
			return layer.AddField(name, token.Empty, u(uint64(binary.BigEndian.Uint32(b))), off, 4)
		}
		return layer.AddFieldBytes(name, token.Empty, off, len(b))
	})
}

func isAddrOption(opt OptNum) bool {
	switch opt {
	case OptSubnetMask, OptRouter, OptTimeServers, OptNameServers, OptDNSServers, OptLogServers,
		OptBroadcastAddress, OptNTPServersAddresses, OptRequestedIPaddress, OptServerIdentification:
		return true
	}
	return false
}
