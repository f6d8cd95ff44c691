package dissect

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/soypat/dissect/internal"
	"github.com/soypat/dissect/token"
)

// Decoder populates a [Layer] from the layer's data. It adds attributes
// with [Layer.AddAttr] and hands encapsulated payloads to other decoders
// with [Context.Dispatch].
//
// A returned error marks the layer as malformed (or out of bounds when it
// matches [ErrOutOfBounds]); attributes and children added before the error
// are kept. Decoders must be safe for concurrent use by multiple frames.
type Decoder interface {
	Decode(ctx *Context, layer Layer) error
}

// DecoderFunc adapts a function to the [Decoder] interface.
type DecoderFunc func(ctx *Context, layer Layer) error

func (fn DecoderFunc) Decode(ctx *Context, layer Layer) error { return fn(ctx, layer) }

// Claimer is a decoder that selects the protocols it decodes with a predicate
// instead of an exact token registration.
type Claimer interface {
	Decoder
	CanDecode(proto token.Token) bool
}

// Aliaser is implemented by decoders that expose attributes under additional
// names, i.e. "_.src" for "ipv4.src".
type Aliaser interface {
	Aliases() []Alias
}

// Initializer is implemented by decoders that intern their attribute names
// when registered on a [Session].
type Initializer interface {
	Init(tokens *token.Registry) error
}

type decoderEntry struct {
	dec     Decoder
	aliases []Alias
}

// decoderTable is immutable once published. Registration copies it.
type decoderTable struct {
	exact    map[token.Token]decoderEntry
	claimers []decoderEntry
}

func (t *decoderTable) clone() *decoderTable {
	c := &decoderTable{
		exact:    make(map[token.Token]decoderEntry, len(t.exact)+1),
		claimers: make([]decoderEntry, len(t.claimers), len(t.claimers)+1),
	}
	for k, v := range t.exact {
		c.exact[k] = v
	}
	copy(c.claimers, t.claimers)
	return c
}

func (t *decoderTable) lookup(proto token.Token) (decoderEntry, bool) {
	if e, ok := t.exact[proto]; ok {
		return e, true
	}
	for _, e := range t.claimers {
		if e.dec.(Claimer).CanDecode(proto) {
			return e, true
		}
	}
	return decoderEntry{}, false
}

// Context is handed to decoders. It gives access to the session's token
// registry and lets decoders dispatch sub-slices to other decoders. A Context
// is bound to one frame and must not be retained after Decode returns.
type Context struct {
	logger
	frame    *Frame
	table    *decoderTable
	tokens   *token.Registry
	metrics  *Metrics
	depth    int
	maxDepth int
	v        Validator
}

// Frame returns the frame being decoded.
func (ctx *Context) Frame() *Frame { return ctx.frame }

// Tokens returns the registry used to intern attribute names at runtime.
func (ctx *Context) Tokens() *token.Registry { return ctx.tokens }

// Validator returns a validator reset and configured with the session's
// validation flags. It is shared by all decoders of the frame.
func (ctx *Context) Validator() *Validator {
	ctx.v.ResetErr()
	return &ctx.v
}

// Depth returns the depth of the layer currently being decoded.
func (ctx *Context) Depth() int { return ctx.depth }

// Dispatch appends a child layer to parent over data and decodes it with the
// decoder registered for proto. data must be derived from the parent's data.
//
// The returned error is non-nil only when the decoder contract was violated,
// in which case the frame fails and the caller should return. Decoding
// failures of the child are recorded on the child layer instead.
func (ctx *Context) Dispatch(parent Layer, proto token.Token, data Slice) (Layer, error) {
	if parent.f != ctx.frame {
		return Layer{}, ctx.frame.violate(fmt.Errorf("%w: dispatch on layer of another frame", ErrProtocolViolation))
	}
	child, err := parent.AddChild(proto, data)
	if err != nil {
		return Layer{}, err
	}
	if ctx.depth+1 > ctx.maxDepth {
		child.SetError(ErrorMalformed, ErrDepthExceeded)
		if err = child.AddAttr(token.FramePayload, BytesValue(data), data); err != nil {
			return Layer{}, err
		}
		ctx.debug("dispatch:depth-exceeded", internal.SlogToken("proto", proto), slog.Int("depth", ctx.depth+1))
		return child, nil
	}
	ctx.depth++
	err = ctx.decodeLayer(child)
	ctx.depth--
	return child, err
}

// decodeLayer runs the decoder of layer and records its outcome on the layer.
// It returns a non-nil error only on contract violation.
func (ctx *Context) decodeLayer(layer Layer) error {
	id := layer.ID()
	e, ok := ctx.table.lookup(id)
	if !ok {
		layer.SetError(ErrorUnknownProtocol, nil)
		data := layer.Data()
		if err := layer.AddAttr(token.FramePayload, BytesValue(data), data); err != nil {
			return err
		}
		if ctx.metrics != nil {
			ctx.metrics.observeUnknown(ctx.tokens.Name(id))
		}
		ctx.trace("dispatch:unknown", internal.SlogToken("proto", id))
		return ctx.frame.err
	}
	if len(e.aliases) > 0 {
		layer.setAliases(e.aliases)
	}
	err := e.dec.Decode(ctx, layer)
	if ctx.frame.err != nil {
		// Violation recorded by a builder call, possibly deeper in the tree.
		return ctx.frame.err
	}
	if err != nil {
		kind := ErrorMalformed
		if errors.Is(err, ErrOutOfBounds) {
			kind = ErrorOutOfBounds
		}
		layer.SetError(kind, err)
		data := layer.Data()
		ctx.trace("decode:layer-err", internal.SlogToken("proto", id),
			internal.SlogRange("data", data.Offset(), data.Len()), slog.String("err", err.Error()))
	}
	return nil
}
