package dissect

import (
	"github.com/soypat/dissect/token"
)

// Attr is one named, typed field value of a [Layer]. Attrs are immutable once
// attached; a decoder that needs to correct a value attaches a differently named Attr.
type Attr struct {
	name   token.Token
	typ    token.Token
	hasTyp bool
	value  Value
	rng    Slice
	layer  int32
}

// Name returns the token naming the attribute, i.e. "ipv4.dst".
func (a Attr) Name() token.Token { return a.name }

// Type returns the type hint of the attribute, i.e. "@ipv4:addr".
func (a Attr) Type() (token.Token, bool) { return a.typ, a.hasTyp }

func (a Attr) Value() Value { return a.value }

// Range returns the bytes the attribute was decoded from, if recorded.
func (a Attr) Range() (Slice, bool) { return a.rng, !a.rng.IsZero() }

// Alias makes an attribute of a layer reachable under a second name, i.e. "_.src" for "ipv4.src".
type Alias struct {
	Name   token.Token
	Target token.Token
}

type attrNode struct {
	attr Attr
	next int32
}
