package ipv4

import (
	"github.com/soypat/dissect"
	"github.com/soypat/dissect/token"
)

var protoMembers = map[dissect.IPProto]token.Token{
	dissect.IPProtoICMP: token.IPv4ProtocolICMP,
	dissect.IPProtoIGMP: token.IPv4ProtocolIGMP,
	dissect.IPProtoTCP:  token.IPv4ProtocolTCP,
	dissect.IPProtoUDP:  token.IPv4ProtocolUDP,
}

// Decoder decodes IPv4 headers and dispatches the payload to the layer
// named after the protocol field, i.e. "tcp". Payloads of non-first
// fragments are not dispatched and are attached as "_.payload" instead.
//
// The source and destination addresses are also reachable as "_.src" and "_.dst".
type Decoder struct {
	checksumValid, options, fragment token.Token
	aliasSrc, aliasDst               token.Token
	protos                           *[256]token.Token
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
	d.checksumValid = intern("ipv4.checksum.valid")
	d.options = intern("ipv4.options")
	d.fragment = intern("ipv4.fragment")
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
		{Name: d.aliasSrc, Target: token.IPv4Src},
		{Name: d.aliasDst, Target: token.IPv4Dst},
	}
}

func (d *Decoder) Decode(ctx *dissect.Context, layer dissect.Layer) error {
	data := layer.Data()
	ifrm, err := NewFrame(data.Bytes())
	if err != nil {
		return &dissect.BoundsError{Off: 0, Len: sizeHeader, Size: data.Len()}
	}
	u := dissect.UintValue
	version, ihl := ifrm.VersionAndIHL()
	fs := dissect.Fields{Layer: layer}
	fs.Add(token.IPv4Version, token.Empty, u(uint64(version)), 0, 1)
	fs.Add(token.IPv4HeaderLength, token.Empty, u(4*uint64(ihl)), 0, 1)
	fs.Add(token.IPv4Type, token.TypeIntHex, u(uint64(ifrm.ToS())), 1, 1)
	fs.Add(token.IPv4TotalLength, token.Empty, u(uint64(ifrm.TotalLength())), 2, 2)
	fs.Add(token.IPv4ID, token.TypeIntHex, u(uint64(ifrm.ID())), 4, 2)
	flags := ifrm.Flags()
	fs.Add(token.IPv4Flags, token.TypeFlags, u(uint64(flags.Bits())), 6, 1)
	fs.Add(token.IPv4FlagsReserved, token.Empty, dissect.BoolValue(flags.IsEvil()), 6, 1)
	fs.Add(token.IPv4FlagsDontFragment, token.Empty, dissect.BoolValue(flags.DontFragment()), 6, 1)
	fs.Add(token.IPv4FlagsMoreFragments, token.Empty, dissect.BoolValue(flags.MoreFragments()), 6, 1)
	fs.Add(token.IPv4FragmentOffset, token.Empty, u(uint64(flags.FragmentOffset())), 6, 2)
	fs.Add(token.IPv4TTL, token.Empty, u(uint64(ifrm.TTL())), 8, 1)
	proto := ifrm.Protocol()
	fs.Add(token.IPv4Protocol, token.TypeEnum, u(uint64(proto)), 9, 1)
	if member, ok := protoMembers[proto]; ok {
		fs.Add(member, token.TypeNoValue, dissect.NoValue(), 9, 1)
	}
	fs.Add(token.IPv4Checksum, token.TypeIntHex, u(uint64(ifrm.CRC())), 10, 2)
	fs.Bytes(token.IPv4Src, token.TypeIPv4Addr, 12, 4)
	fs.Bytes(token.IPv4Dst, token.TypeIPv4Addr, 16, 4)
	if err = fs.Err(); err != nil {
		return err
	}

	v := ctx.Validator()
	ifrm.ValidateExceptCRC(v)
	if v.HasError() {
		return v.ErrPop()
	}
	hl := ifrm.HeaderLength()
	if hl > sizeHeader {
		fs.Bytes(d.options, token.Empty, sizeHeader, hl-sizeHeader)
	}
	crcValid := ifrm.CalculateHeaderCRC() == ifrm.CRC()
	fs.Add(d.checksumValid, token.Empty, dissect.BoolValue(crcValid), 10, 2)

	payloadLen := int(ifrm.TotalLength()) - hl
	if flags.FragmentOffset() != 0 {
		fs.Add(d.fragment, token.TypeNoValue, dissect.NoValue(), 6, 2)
		fs.Bytes(token.FramePayload, token.Empty, hl, payloadLen)
		err = fs.Err()
	} else if err = fs.Err(); err == nil {
		payload, serr := data.Sub(hl, payloadLen)
		if serr != nil {
			return serr
		}
		next := d.protos[proto]
		if next == token.Empty {
			next = token.ClassUnknown
		}
		_, err = ctx.Dispatch(layer, next, payload)
	}
	if err != nil {
		return err
	}
	if !crcValid && v.Has(dissect.ValidateChecksums) {
		return dissect.ErrBadCRC
	}
	return nil
}
