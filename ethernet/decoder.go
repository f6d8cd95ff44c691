package ethernet

import (
	"github.com/soypat/dissect"
	"github.com/soypat/dissect/token"
)

// Decoder decodes Ethernet II, 802.1Q and 802.3 frames and dispatches the
// payload to the layer named after the EtherType, i.e. "ipv4".
// The hardware addresses are also reachable as "_.src" and "_.dst".
//
// Init must be called (usually by [dissect.Session.Register]) before Decode.
// Since it interns names in a registry, a Decoder may only be shared by
// sessions using the same registry.
type Decoder struct {
	// FCS makes the decoder treat the last 4 octets of frames of at least
	// 64 octets as the frame check sequence.
	FCS bool

	dst, src               token.Token
	vlan, vlanID, vlanPrio token.Token
	vlanDEI                token.Token
	fcs, fcsValid, llc     token.Token
	aliasSrc, aliasDst     token.Token
	protos                 map[Type]token.Token
	members                map[Type]token.Token
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
	d.dst = intern("eth.dst")
	d.src = intern("eth.src")
	d.vlan = intern("eth.vlan")
	d.vlanID = intern("eth.vlan.id")
	d.vlanPrio = intern("eth.vlan.priority")
	d.vlanDEI = intern("eth.vlan.dropEligible")
	d.fcs = intern("eth.fcs")
	d.fcsValid = intern("eth.fcs.valid")
	d.llc = intern("llc")
	d.aliasSrc = intern("_.src")
	d.aliasDst = intern("_.dst")
	d.protos = make(map[Type]token.Token, len(typeNames))
	d.members = make(map[Type]token.Token, len(typeNames))
	for et, name := range typeNames {
		d.protos[et] = intern(name)
		d.members[et] = intern("eth.type." + name)
	}
	return err
}

func (d *Decoder) Aliases() []dissect.Alias {
	return []dissect.Alias{
		{Name: d.aliasSrc, Target: d.src},
		{Name: d.aliasDst, Target: d.dst},
	}
}

func (d *Decoder) Decode(ctx *dissect.Context, layer dissect.Layer) error {
	data := layer.Data()
	if data.Len() < sizeHeaderNoVLAN {
		return &dissect.BoundsError{Off: 0, Len: sizeHeaderNoVLAN, Size: data.Len()}
	}
	efrm, _ := NewFrame(data.Bytes())
	var fcsOff int
	if d.FCS && len(efrm.buf) >= minFrameFCS {
		fcsOff = len(efrm.buf) - sizeFCS
		efrm.buf = efrm.buf[:fcsOff]
	}
	fs := dissect.Fields{Layer: layer}
	fs.Bytes(d.dst, token.TypeEthMAC, 0, 6)
	fs.Bytes(d.src, token.TypeEthMAC, 6, 6)

	typeOff := 12
	if efrm.IsVLAN() {
		if len(efrm.buf) < sizeHeaderVLAN {
			return &dissect.BoundsError{Off: 14, Len: 4, Size: len(efrm.buf)}
		}
		tag := efrm.VLANTag()
		fs.Add(d.vlan, token.TypeNested, dissect.UintValue(uint64(tag)), 14, 2)
		fs.Add(d.vlanPrio, token.Empty, dissect.UintValue(uint64(tag.PriorityCodePoint())), 14, 1)
		fs.Add(d.vlanDEI, token.Empty, dissect.BoolValue(tag.DropEligibleIndicator()), 14, 1)
		fs.Add(d.vlanID, token.Empty, dissect.UintValue(uint64(tag.VLANIdentifier())), 14, 2)
		typeOff = 16
	}
	et := efrm.EtherType()
	if et.IsSize() {
		fs.Add(d.llc, token.Empty, dissect.UintValue(uint64(et)), typeOff, 2)
	} else {
		fs.Add(token.EthType, token.TypeEnum, dissect.UintValue(uint64(et)), typeOff, 2)
		if member, ok := d.members[et]; ok {
			fs.Add(member, token.TypeNoValue, dissect.NoValue(), typeOff, 2)
		}
	}
	if fcsOff != 0 {
		fcs, ok := CheckFCS(data.Bytes())
		fs.Add(d.fcs, token.TypeIntHex, dissect.UintValue(uint64(fcs)), fcsOff, sizeFCS)
		fs.Add(d.fcsValid, token.Empty, dissect.BoolValue(ok), fcsOff, sizeFCS)
	}
	if err := fs.Err(); err != nil {
		return err
	}

	v := ctx.Validator()
	efrm.ValidateSize(v)
	if v.HasError() {
		return v.ErrPop()
	}
	payload, err := data.Sub(efrm.HeaderLength(), efrm.PayloadLength())
	if err != nil {
		return err
	}
	proto := d.llc
	if !et.IsSize() {
		var ok bool
		proto, ok = d.protos[et]
		if !ok {
			proto = token.ClassUnknown
		}
	}
	_, err = ctx.Dispatch(layer, proto, payload)
	return err
}
