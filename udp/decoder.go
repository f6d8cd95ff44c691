package udp

import (
	"github.com/soypat/dissect"
	"github.com/soypat/dissect/token"
)

// DefaultPorts maps well known ports to the layer their payload is dispatched to.
var DefaultPorts = map[uint16]string{
	53:  "dns",
	67:  "dhcpv4",
	68:  "dhcpv4",
	123: "ntp",
}

// Decoder decodes UDP datagrams. Payloads sent to or from a port in Ports
// are dispatched to the named layer, the destination port taking
// precedence. Other payloads are attached as a "_.payload" attribute.
//
// The checksum is verified against the parent's "_.src" and "_.dst"
// addresses when present and non-zero.
type Decoder struct {
	// Ports overrides [DefaultPorts] when non-nil.
	Ports map[uint16]string

	checksumValid      token.Token
	aliasSrc, aliasDst token.Token
	ports              map[uint16]token.Token
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
	d.checksumValid = intern("udp.checksum.valid")
	d.aliasSrc = intern("_.src")
	d.aliasDst = intern("_.dst")
	ports := d.Ports
	if ports == nil {
		ports = DefaultPorts
	}
	d.ports = make(map[uint16]token.Token, len(ports))
	for port, name := range ports {
		d.ports[port] = intern(name)
	}
	return err
}

func (d *Decoder) Decode(ctx *dissect.Context, layer dissect.Layer) error {
	data := layer.Data()
	ufrm, err := NewFrame(data.Bytes())
	if err != nil {
		return &dissect.BoundsError{Off: 0, Len: sizeHeader, Size: data.Len()}
	}
	u := dissect.UintValue
	sport, dport := ufrm.SourcePort(), ufrm.DestinationPort()
	fs := dissect.Fields{Layer: layer}
	fs.Add(token.UDPSrc, token.Empty, u(uint64(sport)), 0, 2)
	fs.Add(token.UDPDst, token.Empty, u(uint64(dport)), 2, 2)
	fs.Add(token.UDPLength, token.Empty, u(uint64(ufrm.Length())), 4, 2)
	fs.Add(token.UDPChecksum, token.TypeIntHex, u(uint64(ufrm.CRC())), 6, 2)
	if err = fs.Err(); err != nil {
		return err
	}

	v := ctx.Validator()
	ufrm.ValidateSize(v)
	if v.HasError() {
		return v.ErrPop()
	}
	crcValid := d.checkCRC(&fs, ufrm)
	if err = fs.Err(); err != nil {
		return err
	}
	payload, err := data.Sub(sizeHeader, int(ufrm.Length())-sizeHeader)
	if err != nil {
		return err
	}
	if payload.Len() > 0 {
		next, ok := d.ports[dport]
		if !ok {
			next, ok = d.ports[sport]
		}
		if ok {
			_, err = ctx.Dispatch(layer, next, payload)
		} else {
			err = layer.AddFieldBytes(token.FramePayload, token.Empty, sizeHeader, payload.Len())
		}
		if err != nil {
			return err
		}
	}
	if !crcValid && v.Has(dissect.ValidateChecksums) {
		return dissect.ErrBadCRC
	}
	return nil
}

// checkCRC adds "udp.checksum.valid" when the checksum can be verified and
// reports false only if verification failed.
func (d *Decoder) checkCRC(fs *dissect.Fields, ufrm Frame) bool {
	if ufrm.CRC() == 0 {
		return true // Checksum not computed by sender.
	}
	parent, ok := fs.Layer.Parent()
	if !ok {
		return true
	}
	srcAttr, ok1 := parent.Attr(d.aliasSrc)
	dstAttr, ok2 := parent.Attr(d.aliasDst)
	if !ok1 || !ok2 {
		return true
	}
	src, _ := srcAttr.Value().Bytes()
	dst, _ := dstAttr.Value().Bytes()
	if len(src) == 0 || len(src) != len(dst) {
		return true
	}
	valid := ufrm.CalculateChecksum(src, dst) == ufrm.CRC()
	fs.Add(d.checksumValid, token.Empty, dissect.BoolValue(valid), 6, 2)
	return valid
}
