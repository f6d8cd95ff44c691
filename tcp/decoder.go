package tcp

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/soypat/dissect"
	"github.com/soypat/dissect/token"
)

// Decoder decodes TCP segments. The segment payload is attached to the layer
// as a "_.payload" attribute.
//
// If the parent layer exposes "_.src" and "_.dst" addresses (IPv4 and IPv6
// decoders do) the decoder adds "tcp.streamId", a direction independent hash
// of the connection 4-tuple, and verifies the checksum when the session
// validates checksums.
type Decoder struct {
	flagPSH, flagRST, flagSYN, flagFIN token.Token
	window, checksum, checksumValid    token.Token
	urgent, options                    token.Token
	optionTokens                       map[OptionKind]token.Token
	optionOther                        token.Token
	aliasSrc, aliasDst                 token.Token
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
	d.flagPSH = intern("tcp.flags.psh")
	d.flagRST = intern("tcp.flags.rst")
	d.flagSYN = intern("tcp.flags.syn")
	d.flagFIN = intern("tcp.flags.fin")
	d.window = intern("tcp.window")
	d.checksum = intern("tcp.checksum")
	d.checksumValid = intern("tcp.checksum.valid")
	d.urgent = intern("tcp.urgent")
	d.options = intern("tcp.options")
	d.optionOther = intern("tcp.options.unknown")
	d.optionTokens = make(map[OptionKind]token.Token, len(optionNames))
	for kind, name := range optionNames {
		d.optionTokens[kind] = intern("tcp.options." + name)
	}
	d.aliasSrc = intern("_.src")
	d.aliasDst = intern("_.dst")
	return err
}

func (d *Decoder) Decode(ctx *dissect.Context, layer dissect.Layer) error {
	data := layer.Data()
	tfrm, err := NewFrame(data.Bytes())
	if err != nil {
		return &dissect.BoundsError{Off: 0, Len: sizeHeaderTCP, Size: data.Len()}
	}
	u := func(v uint64) dissect.Value { return dissect.UintValue(v) }
	fs := dissect.Fields{Layer: layer}
	fs.Add(token.TCPSrc, token.Empty, u(uint64(tfrm.SourcePort())), 0, 2)
	fs.Add(token.TCPDst, token.Empty, u(uint64(tfrm.DestinationPort())), 2, 2)
	fs.Add(token.TCPSeq, token.Empty, u(uint64(tfrm.Seq())), 4, 4)
	fs.Add(token.TCPAck, token.Empty, u(uint64(tfrm.Ack())), 8, 4)
	offset, flags := tfrm.OffsetAndFlags()
	fs.Add(token.TCPDataOffset, token.Empty, u(uint64(offset)), 12, 1)
	fs.Add(token.TCPFlags, token.TypeFlags, u(uint64(flags)), 12, 2)
	for _, f := range [...]struct {
		name token.Token
		flag Flags
	}{
		{token.TCPFlagsNS, FlagNS},
		{token.TCPFlagsCWR, FlagCWR},
		{token.TCPFlagsECE, FlagECE},
		{token.TCPFlagsURG, FlagURG},
		{token.TCPFlagsACK, FlagACK},
		{d.flagPSH, FlagPSH},
		{d.flagRST, FlagRST},
		{d.flagSYN, FlagSYN},
		{d.flagFIN, FlagFIN},
	} {
		fs.Add(f.name, token.Empty, dissect.BoolValue(flags.HasAll(f.flag)), 12, 2)
	}
	fs.Add(d.window, token.Empty, u(uint64(tfrm.WindowSize())), 14, 2)
	fs.Add(d.checksum, token.TypeIntHex, u(uint64(tfrm.CRC())), 16, 2)
	fs.Add(d.urgent, token.Empty, u(uint64(tfrm.UrgentPtr())), 18, 2)
	if err = fs.Err(); err != nil {
		return err
	}

	v := ctx.Validator()
	tfrm.ValidateSize(v)
	if v.HasError() {
		return v.ErrPop()
	}
	hl := tfrm.HeaderLength()
	if hl > sizeHeaderTCP {
		if err = layer.AddFieldBytes(d.options, token.TypeNested, sizeHeaderTCP, hl-sizeHeaderTCP); err != nil {
			return err
		}
		var op OptionParser
		err = op.ForEachOption(tfrm.Options(), func(kind OptionKind, off int, opt []byte) error {
			name, ok := d.optionTokens[kind]
			if !ok {
				name = d.optionOther
			}
			start := sizeHeaderTCP + off + 2
			switch len(opt) {
			case 0:
				return layer.AddField(name, token.TypeNoValue, dissect.NoValue(), start-2, 2)
			case 1:
				return layer.AddField(name, token.Empty, u(uint64(opt[0])), start, 1)
			case 2:
				return layer.AddField(name, token.Empty, u(uint64(binary.BigEndian.Uint16(opt))), start, 2)
			case 4:
				return layer.AddField(name, token.Empty, u(uint64(binary.BigEndian.Uint32(opt))), start, 4)
			}
			return layer.AddFieldBytes(name, token.Empty, start, len(opt))
		})
		if err != nil {
			return err
		}
	}
	if payload := data.Len() - hl; payload > 0 {
		if err = layer.AddFieldBytes(token.FramePayload, token.Empty, hl, payload); err != nil {
			return err
		}
	}
	return d.addConnectionAttrs(ctx, layer, tfrm)
}

func (d *Decoder) addConnectionAttrs(ctx *dissect.Context, layer dissect.Layer, tfrm Frame) error {
	parent, ok := layer.Parent()
	if !ok {
		return nil
	}
	srcAttr, ok1 := parent.Attr(d.aliasSrc)
	dstAttr, ok2 := parent.Attr(d.aliasDst)
	if !ok1 || !ok2 {
		return nil
	}
	src, _ := srcAttr.Value().Bytes()
	dst, _ := dstAttr.Value().Bytes()
	if len(src) == 0 || len(src) != len(dst) {
		return nil
	}
	sport, dport := tfrm.SourcePort(), tfrm.DestinationPort()
	err := layer.AddField(token.TCPStreamID, token.TypeIntHex, dissect.UintValue(StreamID(src, dst, sport, dport)), 0, 4)
	if err != nil {
		return err
	}

	if ctx.Validator().Has(dissect.ValidateChecksums) {
		var crc dissect.CRC791
		crc.WritePseudoHeader(src, dst, dissect.IPProtoTCP, len(tfrm.buf))
		tfrm.WriteChecksum(&crc)
		valid := crc.Sum16() == tfrm.CRC()
		if err = layer.AddField(d.checksumValid, token.Empty, dissect.BoolValue(valid), 16, 2); err != nil {
			return err
		}
		if !valid {
			return dissect.ErrBadCRC
		}
	}
	return nil
}

// StreamID returns a hash identifying the TCP connection between the two
// endpoints. Both directions of a connection have the same StreamID.
func StreamID(srcAddr, dstAddr []byte, srcPort, dstPort uint16) uint64 {
	var ports [2]byte
	a, b := srcAddr, dstAddr
	pa, pb := srcPort, dstPort
	if string(a) > string(b) || (string(a) == string(b) && pa > pb) {
		a, b, pa, pb = b, a, pb, pa
	}
	var h xxhash.Digest
	h.Reset()
	h.Write(a)
	binary.BigEndian.PutUint16(ports[:], pa)
	h.Write(ports[:])
	h.Write(b)
	binary.BigEndian.PutUint16(ports[:], pb)
	h.Write(ports[:])
	return h.Sum64()
}
