package dissect

import (
	"fmt"
	"iter"

	"github.com/soypat/dissect/internal"
	"github.com/soypat/dissect/token"
)

const nilIdx int32 = -1

// layerNode is the arena storage of a Layer. Attributes and children are
// singly linked lists through the frame arenas so that appending never
// allocates per layer and iteration preserves insertion order.
type layerNode struct {
	id         token.Token
	data       Slice
	parent     int32
	next       int32
	firstChild int32
	lastChild  int32
	firstAttr  int32
	lastAttr   int32
	nchildren  int32
	nattrs     int32
	errKind    ErrorKind
	errCause   error
	aliases    []Alias
}

func (n *layerNode) reset(id token.Token, data Slice, parent int32) {
	*n = layerNode{
		id:         id,
		data:       data,
		parent:     parent,
		next:       nilIdx,
		firstChild: nilIdx,
		lastChild:  nilIdx,
		firstAttr:  nilIdx,
		lastAttr:   nilIdx,
	}
}

// Layer is one protocol's contribution to a [Frame]. It is a handle into the
// frame's layer arena: copying a Layer copies the handle, not the layer.
//
// Attributes and children are append-only while the frame is being decoded
// and read-only afterwards.
type Layer struct {
	f *Frame
	i int32
}

// IsValid reports whether l references a layer.
func (l Layer) IsValid() bool { return l.f != nil && l.i >= 0 && int(l.i) < len(l.f.layers) }

func (l Layer) node() *layerNode { return &l.f.layers[l.i] }

// Frame returns the frame that owns the layer.
func (l Layer) Frame() *Frame { return l.f }

// Index returns the position of the layer in the frame's layer arena.
func (l Layer) Index() int { return int(l.i) }

// ID returns the protocol token of the layer, i.e. "ipv4".
func (l Layer) ID() token.Token { return l.node().id }

// Data returns the bytes the layer was given to decode.
func (l Layer) Data() Slice { return l.node().data }

// Err returns the error marker of the layer and its cause.
func (l Layer) Err() (ErrorKind, error) {
	n := l.node()
	return n.errKind, n.errCause
}

// Parent returns the enclosing layer. The root layer has no parent.
func (l Layer) Parent() (Layer, bool) {
	p := l.node().parent
	if p == nilIdx {
		return Layer{}, false
	}
	return Layer{f: l.f, i: p}, true
}

// Depth returns the encapsulation depth of the layer. The root layer has depth 0.
func (l Layer) Depth() int {
	depth := 0
	for p := l.node().parent; p != nilIdx; p = l.f.layers[p].parent {
		depth++
	}
	return depth
}

// NumAttrs returns the number of attributes attached to the layer.
func (l Layer) NumAttrs() int { return int(l.node().nattrs) }

// Attrs iterates over the attributes of the layer in insertion order.
func (l Layer) Attrs() iter.Seq[Attr] {
	return func(yield func(Attr) bool) {
		for i := l.node().firstAttr; i != nilIdx; i = l.f.attrs[i].next {
			if !yield(l.f.attrs[i].attr) {
				return
			}
		}
	}
}

// Attr returns the first attribute named id in insertion order. Aliases
// registered by the layer's decoder are resolved first.
func (l Layer) Attr(id token.Token) (Attr, bool) {
	id = l.resolveAlias(id)
	for i := l.node().firstAttr; i != nilIdx; i = l.f.attrs[i].next {
		if l.f.attrs[i].attr.name == id {
			return l.f.attrs[i].attr, true
		}
	}
	return Attr{}, false
}

// AttrsByName iterates over all attributes named id in insertion order.
// Repeated fields such as IPv6 extension headers share a name.
func (l Layer) AttrsByName(id token.Token) iter.Seq[Attr] {
	id = l.resolveAlias(id)
	return func(yield func(Attr) bool) {
		for i := l.node().firstAttr; i != nilIdx; i = l.f.attrs[i].next {
			if l.f.attrs[i].attr.name == id && !yield(l.f.attrs[i].attr) {
				return
			}
		}
	}
}

func (l Layer) resolveAlias(id token.Token) token.Token {
	for _, a := range l.node().aliases {
		if a.Name == id {
			return a.Target
		}
	}
	return id
}

// NumChildren returns the number of child layers.
func (l Layer) NumChildren() int { return int(l.node().nchildren) }

// Children iterates over the child layers in decode order.
func (l Layer) Children() iter.Seq[Layer] {
	return func(yield func(Layer) bool) {
		for i := l.node().firstChild; i != nilIdx; i = l.f.layers[i].next {
			if !yield(Layer{f: l.f, i: i}) {
				return
			}
		}
	}
}

// Child returns the i'th child layer.
func (l Layer) Child(i int) (Layer, bool) {
	if i < 0 {
		return Layer{}, false
	}
	for c := l.node().firstChild; c != nilIdx; c = l.f.layers[c].next {
		if i == 0 {
			return Layer{f: l.f, i: c}, true
		}
		i--
	}
	return Layer{}, false
}

//
// Decoder API. Only valid while the owning frame is being decoded.
//

// AddAttr appends an attribute to the layer. rng is optional (zero Slice) and,
// like a KindBytes value, must be derived from the layer's data. A KindBytes
// value over the zero Slice is an empty value.
func (l Layer) AddAttr(name token.Token, v Value, rng Slice) error {
	return l.addAttr(Attr{name: name, value: v, rng: rng})
}

// AddAttrType is like [Layer.AddAttr] with a type hint such as [token.TypeIPv4Addr].
func (l Layer) AddAttrType(name, typ token.Token, v Value, rng Slice) error {
	return l.addAttr(Attr{name: name, typ: typ, hasTyp: true, value: v, rng: rng})
}

// AddField appends an attribute decoded from the n octets at off of the
// layer's data. typ may be [token.Empty] for no type hint. A range outside the
// layer's data adds nothing, marks the layer [ErrorOutOfBounds] and returns
// a [*BoundsError].
func (l Layer) AddField(name, typ token.Token, v Value, off, n int) error {
	rng, err := l.fieldRange(off, n)
	if err != nil {
		return err
	}
	return l.addAttr(Attr{name: name, typ: typ, hasTyp: typ != token.Empty, value: v, rng: rng})
}

// AddFieldBytes is like [Layer.AddField] with the field octets as value.
func (l Layer) AddFieldBytes(name, typ token.Token, off, n int) error {
	rng, err := l.fieldRange(off, n)
	if err != nil {
		return err
	}
	return l.addAttr(Attr{name: name, typ: typ, hasTyp: typ != token.Empty, value: BytesValue(rng), rng: rng})
}

func (l Layer) fieldRange(off, n int) (Slice, error) {
	rng, err := l.node().data.Sub(off, n)
	if err != nil {
		l.SetError(ErrorOutOfBounds, err)
	}
	return rng, err
}

func (l Layer) addAttr(a Attr) error {
	f := l.f
	if err := f.checkWritable(); err != nil {
		return err
	}
	n := l.node()
	if !a.rng.IsZero() && !n.data.Contains(a.rng) {
		return f.violate(fmt.Errorf("%w: attr %s range %s outside layer %s data %s",
			ErrProtocolViolation, a.name, a.rng, n.id, n.data))
	}
	if a.value.kind == KindBytes && !a.value.rng.IsZero() && !n.data.Contains(a.value.rng) {
		return f.violate(fmt.Errorf("%w: attr %s value %s outside layer %s data %s",
			ErrProtocolViolation, a.name, a.value.rng, n.id, n.data))
	}
	a.layer = l.i
	idx := int32(len(f.attrs))
	*internal.ArenaNext(&f.attrs) = attrNode{attr: a, next: nilIdx}
	if n.lastAttr == nilIdx {
		n.firstAttr = idx
	} else {
		f.attrs[n.lastAttr].next = idx
	}
	n.lastAttr = idx
	n.nattrs++
	return nil
}

// AddChild appends a child layer that the calling decoder fills itself.
// data must be derived from the layer's data. Use [Context.Dispatch] to have
// the child decoded by the decoder registered for id.
func (l Layer) AddChild(id token.Token, data Slice) (Layer, error) {
	f := l.f
	if err := f.checkWritable(); err != nil {
		return Layer{}, err
	}
	parent := l.node()
	if !parent.data.Contains(data) {
		return Layer{}, f.violate(fmt.Errorf("%w: child %s data %s outside layer %s data %s",
			ErrProtocolViolation, id, data, parent.id, parent.data))
	}
	child := f.newLayer(id, data, l.i)
	// f.layers may have grown, re-fetch parent.
	parent = l.node()
	if parent.lastChild == nilIdx {
		parent.firstChild = child.i
	} else {
		f.layers[parent.lastChild].next = child.i
	}
	parent.lastChild = child.i
	parent.nchildren++
	return child, nil
}

// SetError marks the layer as not fully decoded. Attributes and children
// added before or after the call are kept. The first marker set wins.
func (l Layer) SetError(kind ErrorKind, cause error) error {
	if err := l.f.checkWritable(); err != nil {
		return err
	}
	n := l.node()
	if n.errKind == ErrorNone {
		n.errKind = kind
		n.errCause = cause
	}
	return nil
}

func (l Layer) setAliases(aliases []Alias) {
	l.node().aliases = aliases
}
