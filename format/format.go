// Package format renders decoded frames as indented text.
package format

import (
	"encoding/binary"
	"encoding/hex"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/soypat/dissect"
	"github.com/soypat/dissect/ethernet"
	"github.com/soypat/dissect/ntp"
	"github.com/soypat/dissect/token"
)

// Formatter appends a text representation of a [dissect.Frame] to a buffer.
// Every layer is printed on its own line followed by its attributes, one
// per line, indented by depth. Values are rendered according to their type
// hint, i.e. "@ipv4:addr" attributes are printed in dotted notation.
//
// The zero value is usable. A Formatter is not modified by formatting and
// may be shared by goroutines.
type Formatter struct {
	// Tokens resolves dynamic token names. If nil dynamic tokens print as "Token(N)".
	Tokens *token.Registry
	// Indent is inserted once per depth level. Default: two spaces.
	Indent string
	// AttrSep if non-empty prints attributes on the layer line separated by AttrSep.
	AttrSep string
	// AttrLimit limits the amount of attributes printed per layer. Zero means no limit.
	AttrLimit int
	// MaxBytes limits the octets printed of byte values. Default: 32.
	// Negative means no limit.
	MaxBytes int
	// HideMembers omits enum member and other "@novalue" attributes.
	HideMembers bool
	// Layers if non-nil limits printing to layers with one of these protocols.
	Layers []token.Token
}

// FormatFrame appends the frame header line and its layer tree to dst.
func (f *Formatter) FormatFrame(dst []byte, frm *dissect.Frame) []byte {
	dst = append(dst, "frame "...)
	dst = strconv.AppendUint(dst, frm.Index(), 10)
	dst = append(dst, " len="...)
	dst = strconv.AppendUint(dst, uint64(frm.CapturedLength()), 10)
	if frm.ActualLength() != frm.CapturedLength() {
		dst = append(dst, " wirelen="...)
		dst = strconv.AppendUint(dst, uint64(frm.ActualLength()), 10)
	}
	if ts := frm.Timestamp(); !ts.IsZero() {
		dst = append(dst, " time="...)
		dst = ts.UTC().AppendFormat(dst, time.RFC3339Nano)
	}
	dst = append(dst, " status="...)
	dst = append(dst, frm.Status().String()...)
	if err := frm.Err(); err != nil {
		dst = append(dst, " err=("...)
		dst = append(dst, err.Error()...)
		dst = append(dst, ')')
	}
	dst = append(dst, '\n')
	for l := range frm.Layers() {
		if f.Layers != nil && !slices.Contains(f.Layers, l.ID()) {
			continue
		}
		dst = f.FormatLayer(dst, l)
	}
	return dst
}

// FormatLayer appends a layer line and its attributes to dst. Children are not included.
func (f *Formatter) FormatLayer(dst []byte, l dissect.Layer) []byte {
	depth := l.Depth()
	dst = f.appendIndent(dst, depth)
	dst = append(dst, f.name(l.ID())...)
	dst = append(dst, " len="...)
	dst = strconv.AppendInt(dst, int64(l.Data().Len()), 10)
	if kind, cause := l.Err(); kind != dissect.ErrorNone {
		dst = append(dst, ' ')
		dst = append(dst, kind.Token().String()...)
		if cause != nil {
			dst = append(dst, '(')
			dst = append(dst, cause.Error()...)
			dst = append(dst, ')')
		}
	}
	n := 0
	for a := range l.Attrs() {
		if f.HideMembers && isMember(a) {
			continue
		}
		if f.AttrLimit > 0 && n >= f.AttrLimit {
			dst = append(dst, f.attrSep(depth+1)...)
			dst = append(dst, "..."...)
			break
		}
		dst = append(dst, f.attrSep(depth+1)...)
		dst = f.FormatAttr(dst, a)
		n++
	}
	return append(dst, '\n')
}

// FormatAttr appends "name=value" to dst. Attributes without a value only print their name.
func (f *Formatter) FormatAttr(dst []byte, a dissect.Attr) []byte {
	dst = append(dst, f.name(a.Name())...)
	if a.Value().Kind() == dissect.KindNone {
		return dst
	}
	dst = append(dst, '=')
	return f.AppendValue(dst, a)
}

// AppendValue appends the value of a rendered according to its type hint.
func (f *Formatter) AppendValue(dst []byte, a dissect.Attr) []byte {
	v := a.Value()
	typ, ok := a.Type()
	if !ok {
		return f.appendPlain(dst, v)
	}
	b, isBytes := v.Bytes()
	u, isUint := v.Uint()
	switch typ {
	case token.TypeIPv4Addr:
		if len(b) == 4 {
			return netip.AddrFrom4([4]byte(b)).AppendTo(dst)
		}
	case token.TypeIPv6Addr:
		if len(b) == 16 {
			return netip.AddrFrom16([16]byte(b)).AppendTo(dst)
		}
	case token.TypeEthMAC:
		if len(b) == 6 {
			return ethernet.AppendAddr(dst, [6]byte(b))
		}
	case token.TypeIntHex, token.TypeFlags:
		if isUint {
			dst = append(dst, "0x"...)
			return strconv.AppendUint(dst, u, 16)
		}
	case token.TypeIntBin:
		if isUint {
			dst = append(dst, "0b"...)
			return strconv.AppendUint(dst, u, 2)
		}
	case token.TypeIntOct:
		if isUint {
			dst = append(dst, "0o"...)
			return strconv.AppendUint(dst, u, 8)
		}
	case token.TypeDateUnix:
		if ns, ok := v.Int(); ok {
			return time.Unix(0, ns).UTC().AppendFormat(dst, time.RFC3339Nano)
		}
	case token.TypeNested:
		if isBytes {
			dst = append(dst, '[')
			dst = strconv.AppendInt(dst, int64(len(b)), 10)
			return append(dst, " octets]"...)
		}
	default:
		if f.name(typ) == "@ntp:time" {
			if rng, ok := a.Range(); ok && rng.Len() == 8 {
				// inspired by [time.RFC3339]
				const littlerfc3339 = "2006-01-02T15:04:05.9999"
				ts := ntp.TimestampFromUint64(binary.BigEndian.Uint64(rng.Bytes()))
				return ts.Time().AppendFormat(dst, littlerfc3339)
			}
		}
	}
	return f.appendPlain(dst, v)
}

func (f *Formatter) appendPlain(dst []byte, v dissect.Value) []byte {
	b, ok := v.Bytes()
	if !ok {
		return v.AppendText(dst)
	}
	limit := f.MaxBytes
	if limit == 0 {
		limit = 32
	}
	if limit > 0 && len(b) > limit {
		dst = append(dst, "0x"...)
		dst = hex.AppendEncode(dst, b[:limit])
		dst = append(dst, "..."...)
		return strconv.AppendInt(dst, int64(len(b)), 10)
	}
	dst = append(dst, "0x"...)
	return hex.AppendEncode(dst, b)
}

func (f *Formatter) name(t token.Token) string {
	if f.Tokens != nil {
		return f.Tokens.Name(t)
	}
	return t.String()
}

func (f *Formatter) appendIndent(dst []byte, depth int) []byte {
	indent := f.Indent
	if indent == "" {
		indent = "  "
	}
	for range depth {
		dst = append(dst, indent...)
	}
	return dst
}

func (f *Formatter) attrSep(depth int) string {
	if f.AttrSep != "" {
		return f.AttrSep
	}
	indent := f.Indent
	if indent == "" {
		indent = "  "
	}
	return "\n" + strings.Repeat(indent, depth)
}

func isMember(a dissect.Attr) bool {
	typ, _ := a.Type()
	return typ == token.TypeNoValue
}
