package dns

import (
	"github.com/soypat/dissect"
	"github.com/soypat/dissect/token"
)

// DefaultMaxRecords is the default of [Decoder.MaxRecords].
const DefaultMaxRecords = 64

// Decoder decodes DNS messages. Each record is introduced by a nested
// attribute spanning the whole record ("dns.question", "dns.answer",
// "dns.authority" or "dns.additional") followed by its fields.
type Decoder struct {
	// MaxRecords limits the amount of records decoded per message. Records
	// past the limit are attached as a single "dns.records.truncated" attribute.
	MaxRecords int

	id, flags, opcode, rcode           token.Token
	qr, aa, tc, rd, ra                 token.Token
	qdcount, ancount, nscount, arcount token.Token
	sections                           [4]token.Token
	name, typ, class, ttl, length      token.Token
	data, truncated                    token.Token
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
	d.id = intern("dns.id")
	d.flags = intern("dns.flags")
	d.opcode = intern("dns.opcode")
	d.rcode = intern("dns.rcode")
	d.qr = intern("dns.flags.qr")
	d.aa = intern("dns.flags.aa")
	d.tc = intern("dns.flags.tc")
	d.rd = intern("dns.flags.rd")
	d.ra = intern("dns.flags.ra")
	d.qdcount = intern("dns.qdcount")
	d.ancount = intern("dns.ancount")
	d.nscount = intern("dns.nscount")
	d.arcount = intern("dns.arcount")
	d.sections = [4]token.Token{
		intern("dns.question"), intern("dns.answer"),
		intern("dns.authority"), intern("dns.additional"),
	}
	d.name = intern("dns.name")
	d.typ = intern("dns.type")
	d.class = intern("dns.class")
	d.ttl = intern("dns.ttl")
	d.length = intern("dns.length")
	d.data = intern("dns.data")
	d.truncated = intern("dns.records.truncated")
	return err
}

func (d *Decoder) Decode(ctx *dissect.Context, layer dissect.Layer) error {
	data := layer.Data()
	msg := data.Bytes()
	frm, err := NewFrame(msg)
	if err != nil {
		return &dissect.BoundsError{Off: 0, Len: SizeHeader, Size: data.Len()}
	}
	u := dissect.UintValue
	b := dissect.BoolValue
	flags := frm.Flags()
	fs := dissect.Fields{Layer: layer}
	fs.Add(d.id, token.TypeIntHex, u(uint64(frm.TxID())), 0, 2)
	fs.Add(d.flags, token.TypeFlags, u(uint64(flags)), 2, 2)
	fs.Add(d.qr, token.Empty, b(flags.IsResponse()), 2, 1)
	fs.Add(d.opcode, token.TypeEnum, u(uint64(flags.OpCode())), 2, 1)
	fs.Add(d.aa, token.Empty, b(flags.IsAuthorativeAnswer()), 2, 1)
	fs.Add(d.tc, token.Empty, b(flags.IsTruncated()), 2, 1)
	fs.Add(d.rd, token.Empty, b(flags.IsRecursionDesired()), 2, 1)
	fs.Add(d.ra, token.Empty, b(flags.IsRecursionAvailable()), 3, 1)
	fs.Add(d.rcode, token.TypeEnum, u(uint64(flags.ResponseCode())), 3, 1)
	counts := [4]uint16{frm.QDCount(), frm.ANCount(), frm.NSCount(), frm.ARCount()}
	for i, name := range [4]token.Token{d.qdcount, d.ancount, d.nscount, d.arcount} {
		fs.Add(name, token.Empty, u(uint64(counts[i])), 4+2*i, 2)
	}
	if err = fs.Err(); err != nil {
		return err
	}

	maxRecords := d.MaxRecords
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	rr, err := NewRecordReader(msg)
	if err != nil {
		return err
	}
	var (
		rec    Record
		dotted []byte
	)
	for nrec := 0; ; nrec++ {
		if nrec == maxRecords && rr.Remaining() > 0 {
			off := int(rr.Offset())
			return layer.AddFieldBytes(d.truncated, token.Empty, off, len(msg)-off)
		}
		ok, err := rr.Next(&rec)
		if err != nil {
			return err
		} else if !ok {
			return nil
		}
		start, nameEnd := int(rec.Start), int(rec.NameEnd)
		dotted, err = AppendName(dotted[:0], msg, rec.Start)
		if err != nil {
			return err
		}
		fs.Bytes(d.sections[rec.Section], token.TypeNested, start, int(rec.End)-start)
		fs.Add(d.name, token.Empty, dissect.StringValue(string(dotted)), start, nameEnd-start)
		fs.Add(d.typ, token.TypeEnum, u(uint64(rec.Type)), nameEnd, 2)
		fs.Add(d.class, token.TypeEnum, u(uint64(rec.Class)), nameEnd+2, 2)
		if rec.Section != SectionQuestion {
			fs.Add(d.ttl, token.Empty, u(uint64(rec.TTL)), nameEnd+4, 4)
			fs.Add(d.length, token.Empty, u(uint64(rec.Length)), nameEnd+8, 2)
			if rec.Length > 0 {
				dataTyp := token.Empty
				switch {
				case rec.Type == TypeA && rec.Length == 4:
					dataTyp = token.TypeIPv4Addr
				case rec.Type == TypeAAAA && rec.Length == 16:
					dataTyp = token.TypeIPv6Addr
				}
				fs.Bytes(d.data, dataTyp, int(rec.DataOffset()), int(rec.Length))
			}
		}
		if err = fs.Err(); err != nil {
			return err
		}
	}
}
