package ntp

import (
	"github.com/soypat/dissect"
	"github.com/soypat/dissect/token"
)

var (
	leapNames = [4]string{"noWarning", "sec61", "sec59", "unknown"}
	modeNames = [8]string{"reserved", "symmetricActive", "symmetricPassive", "client", "server", "broadcast", "controlMessage", "reservedForPrivate"}
)

// Decoder decodes NTP packets carried over UDP.
type Decoder struct {
	leap, version, mode, stratum     token.Token
	poll, precision, identifier      token.Token
	leapMembers                      [4]token.Token
	modeMembers                      [8]token.Token
	rootDelay, rootDispersion        short
	reference, origin, receive, xmit timestamp
	typTime                          token.Token
}

type short struct{ name, sec, frac token.Token }

type timestamp struct{ name, sec, frac token.Token }

var _ dissect.Initializer = (*Decoder)(nil)

func (d *Decoder) Init(r *token.Registry) (err error) {
	intern := func(s string) token.Token {
		t, ierr := r.Intern(s)
		if ierr != nil && err == nil {
			err = ierr
		}
		return t
	}
	d.leap = intern("ntp.leapIndicator")
	d.version = intern("ntp.version")
	d.mode = intern("ntp.mode")
	d.stratum = intern("ntp.stratum")
	d.poll = intern("ntp.pollInterval")
	d.precision = intern("ntp.precision")
	d.identifier = intern("ntp.identifier")
	for i, name := range leapNames {
		d.leapMembers[i] = intern("ntp.leapIndicator." + name)
	}
	for i, name := range modeNames {
		d.modeMembers[i] = intern("ntp.mode." + name)
	}
	d.rootDelay = short{intern("ntp.rootDelay"), intern("ntp.rootDelay.seconds"), intern("ntp.rootDelay.fraction")}
	d.rootDispersion = short{intern("ntp.rootDispersion"), intern("ntp.rootDispersion.seconds"), intern("ntp.rootDispersion.fraction")}
	ts := func(name string) timestamp {
		return timestamp{intern(name), intern(name + ".seconds"), intern(name + ".fraction")}
	}
	d.reference = ts("ntp.referenceTs")
	d.origin = ts("ntp.originateTs")
	d.receive = ts("ntp.receiveTs")
	d.xmit = ts("ntp.transmitTs")
	d.typTime = intern("@ntp:time")
	return err
}

func (d *Decoder) Decode(ctx *dissect.Context, layer dissect.Layer) error {
	data := layer.Data()
	frm, err := NewFrame(data.Bytes())
	if err != nil {
		return &dissect.BoundsError{Off: 0, Len: SizeHeader, Size: data.Len()}
	}
	u := dissect.UintValue
	mode, version, leap := frm.Flags()
	fs := dissect.Fields{Layer: layer}
	fs.Add(d.leap, token.TypeEnum, u(uint64(leap)), 0, 1)
	fs.Add(d.leapMembers[leap], token.TypeNoValue, dissect.NoValue(), 0, 1)
	fs.Add(d.version, token.Empty, u(uint64(version)), 0, 1)
	fs.Add(d.mode, token.TypeEnum, u(uint64(mode)), 0, 1)
	fs.Add(d.modeMembers[mode], token.TypeNoValue, dissect.NoValue(), 0, 1)
	stratum := frm.Stratum()
	fs.Add(d.stratum, token.Empty, u(uint64(stratum)), 1, 1)
	fs.Add(d.poll, token.Empty, dissect.IntValue(int64(frm.Poll())), 2, 1)
	fs.Add(d.precision, token.Empty, dissect.IntValue(int64(frm.Precision())), 3, 1)
	addShort := func(f short, s Short, off int) {
		fs.Add(f.name, token.Empty, dissect.FloatValue(s.Float()), off, 4)
		fs.Add(f.sec, token.Empty, u(uint64(s.Seconds())), off, 2)
		fs.Add(f.frac, token.Empty, u(uint64(s.Fraction())), off+2, 2)
	}
	addShort(d.rootDelay, frm.RootDelay(), 4)
	addShort(d.rootDispersion, frm.RootDispersion(), 8)
	idTyp := token.Empty
	if stratum >= 2 {
		idTyp = token.TypeIPv4Addr
	}
	fs.Bytes(d.identifier, idTyp, 12, 4)
	addTimestamp := func(f timestamp, t Timestamp, off int) {
		fs.Add(f.name, d.typTime, dissect.FloatValue(t.Float()), off, 8)
		fs.Add(f.sec, token.Empty, u(uint64(t.Seconds())), off, 4)
		fs.Add(f.frac, token.Empty, u(uint64(t.Fraction())), off+4, 4)
	}
	addTimestamp(d.reference, frm.ReferenceTime(), 16)
	addTimestamp(d.origin, frm.OriginTime(), 24)
	addTimestamp(d.receive, frm.ReceiveTime(), 32)
	addTimestamp(d.xmit, frm.TransmitTime(), 40)
	if err = fs.Err(); err != nil {
		return err
	}

	v := ctx.Validator()
	frm.ValidateSize(v)
	if v.HasError() {
		return v.ErrPop()
	}
	return nil
}
