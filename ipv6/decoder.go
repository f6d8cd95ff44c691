package ipv6

import (
	"encoding/binary"

	"github.com/soypat/dissect"
	"github.com/soypat/dissect/token"
)

var protoMembers = map[dissect.IPProto]token.Token{
	dissect.IPProtoIPv6ICMP: token.IPv6ProtocolICMP,
	dissect.IPProtoIGMP:     token.IPv6ProtocolIGMP,
	dissect.IPProtoTCP:      token.IPv6ProtocolTCP,
	dissect.IPProtoUDP:      token.IPv6ProtocolUDP,
}

// Decoder decodes IPv6 headers, walks the extension header chain and
// dispatches the upper layer to the layer named after the last Next Header
// value, i.e. "tcp".
//
// The source and destination addresses are also reachable as "_.src" and "_.dst".
type Decoder struct {
	extension, fragment, fragmentOffset token.Token
	aliasSrc, aliasDst                  token.Token
	protos                              *[256]token.Token
}

var (
	_ dissect.Initializer = (*Decoder)(nil)
	_ dissect.Aliaser     = (*Decoder)(nil)
)

func (d *Decoder) Init(r *token.Registry) (err error) {
	intern := func(s string) token.Token {
		t, ierr := r.Intern(s)
		if ierr != nil && err == nil {
			err = ierr
		}
		return t
	}
	d.extension = intern("ipv6.extension")
	d.fragment = intern("ipv6.fragment")
	d.fragmentOffset = intern("ipv6.fragment.offset")
	d.aliasSrc = intern("_.src")
	d.aliasDst = intern("_.dst")
	if err != nil {
		return err
	}
	d.protos, err = dissect.InternLayerNames(r)
	return err
}

func (d *Decoder) Aliases() []dissect.Alias {
	return []dissect.Alias{
		{Name: d.aliasSrc, Target: token.IPv6Src},
		{Name: d.aliasDst, Target: token.IPv6Dst},
	}
}

func (d *Decoder) Decode(ctx *dissect.Context, layer dissect.Layer) error {
	data := layer.Data()
	i6frm, err := NewFrame(data.Bytes())
	if err != nil {
		return &dissect.BoundsError{Off: 0, Len: sizeHeader, Size: data.Len()}
	}
	u := dissect.UintValue
	version, tos, flow := i6frm.VersionTrafficAndFlow()
	fs := dissect.Fields{Layer: layer}
	fs.Add(token.IPv6Version, token.Empty, u(uint64(version)), 0, 1)
	fs.Add(token.IPv6TrafficClass, token.TypeIntHex, u(uint64(tos)), 0, 2)
	fs.Add(token.IPv6FlowLevel, token.TypeIntHex, u(uint64(flow)), 1, 3)
	fs.Add(token.IPv6PayloadLength, token.Empty, u(uint64(i6frm.PayloadLength())), 4, 2)
	fs.Add(token.IPv6NextHeader, token.TypeEnum, u(uint64(i6frm.NextHeader())), 6, 1)
	fs.Add(token.IPv6HopLimit, token.Empty, u(uint64(i6frm.HopLimit())), 7, 1)
	fs.Bytes(token.IPv6Src, token.TypeIPv6Addr, 8, 16)
	fs.Bytes(token.IPv6Dst, token.TypeIPv6Addr, 24, 16)
	if err = fs.Err(); err != nil {
		return err
	}

	v := ctx.Validator()
	i6frm.ValidateSize(v)
	if v.HasError() {
		return v.ErrPop()
	}
	end := data.Len()
	if pl := int(i6frm.PayloadLength()); pl != 0 {
		end = sizeHeader + pl
	}

	// Walk the extension header chain.
	proto := i6frm.NextHeader()
	off := sizeHeader
	fragmented := false
	for {
		var hlen int
		switch {
		case proto.IsIPv6Extension():
			if off+2 > end {
				return errShortExt
			}
			hlen = 8 * (int(data.Bytes()[off+1]) + 1)
			if off+hlen > end {
				return errShortExt
			}
			name := d.extension
			if proto == dissect.IPProtoHopByHop && off == sizeHeader {
				name = token.IPv6HopByHop
			}
			fs.Bytes(name, token.Empty, off, hlen)
		case proto == dissect.IPProtoIPv6Frag:
			hlen = sizeFragmentHeader
			if off+hlen > end {
				return errShortExt
			}
			fs.Bytes(d.fragment, token.Empty, off, hlen)
			fragOff := binary.BigEndian.Uint16(data.Bytes()[off+2:off+4]) >> 3
			fs.Add(d.fragmentOffset, token.Empty, u(uint64(fragOff)), off+2, 2)
			fragmented = fragOff != 0
		default:
			hlen = 0
		}
		if hlen == 0 {
			break
		}
		proto = dissect.IPProto(data.Bytes()[off])
		off += hlen
	}
	fs.Add(token.IPv6Protocol, token.TypeEnum, u(uint64(proto)), 6, 1)
	if member, ok := protoMembers[proto]; ok {
		fs.Add(member, token.TypeNoValue, dissect.NoValue(), 6, 1)
	}
	if err = fs.Err(); err != nil {
		return err
	}
	if proto == dissect.IPProtoIPv6NoNxt || off == end {
		return nil
	}
	if fragmented {
		fs.Bytes(token.FramePayload, token.Empty, off, end-off)
		return fs.Err()
	}
	payload, err := data.Sub(off, end-off)
	if err != nil {
		return err
	}
	next := d.protos[proto]
	if next == token.Empty {
		next = token.ClassUnknown
	}
	_, err = ctx.Dispatch(layer, next, payload)
	return err
}
