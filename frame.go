package dissect

import (
	"errors"
	"iter"
	"strconv"
	"time"

	"github.com/soypat/dissect/internal"
	"github.com/soypat/dissect/token"
)

// Status is the decoding state of a [Frame].
type Status uint8

const (
	StatusIngested  Status = iota // ingested
	StatusDecoding                // decoding
	StatusCompleted               // completed
	StatusFailed                  // failed
)

func (s Status) String() string {
	switch s {
	case StatusIngested:
		return "ingested"
	case StatusDecoding:
		return "decoding"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

// Metadata is the capture information supplied with a raw packet.
type Metadata struct {
	// Timestamp of capture. Zero means unknown.
	Timestamp time.Time
	// ActualLength is the length of the packet on the wire. If zero the
	// captured length is used.
	ActualLength uint32
}

// Frame is one captured packet and its decoded layer tree. A Frame is
// created by [Session.Ingest] and owned by a single goroutine while it is
// decoded. Once Completed or Failed it is read-only and may be shared.
type Frame struct {
	index     uint64
	timestamp int64
	capLen    uint32
	actualLen uint32
	raw       Slice
	status    Status
	err       error

	layers []layerNode
	attrs  []attrNode
}

func (f *Frame) reset(index uint64, raw []byte, md Metadata) {
	f.index = index
	f.timestamp = 0
	if !md.Timestamp.IsZero() {
		f.timestamp = md.Timestamp.UnixNano()
	}
	f.capLen = uint32(len(raw))
	f.actualLen = md.ActualLength
	if f.actualLen == 0 {
		f.actualLen = f.capLen
	}
	f.raw = NewBuffer(raw).Slice()
	f.status = StatusIngested
	f.err = nil
	internal.ResetArena(&f.layers, 8)
	internal.ResetArena(&f.attrs, 64)
}

// Index returns the sequence number assigned at ingestion.
func (f *Frame) Index() uint64 { return f.index }

// Timestamp returns the capture time or the zero time if unknown.
func (f *Frame) Timestamp() time.Time {
	if f.timestamp == 0 {
		return time.Time{}
	}
	return time.Unix(0, f.timestamp)
}

// TimestampNano returns the capture time in nanoseconds since the Unix epoch.
func (f *Frame) TimestampNano() int64 { return f.timestamp }

// CapturedLength returns the number of bytes captured.
func (f *Frame) CapturedLength() uint32 { return f.capLen }

// ActualLength returns the length of the packet on the wire, which may
// exceed the captured length for truncated captures.
func (f *Frame) ActualLength() uint32 { return f.actualLen }

// Raw returns a Slice over the whole captured packet.
func (f *Frame) Raw() Slice { return f.raw }

// Status returns the decoding state of the frame.
func (f *Frame) Status() Status { return f.status }

// Err returns the reason a Failed frame could not be decoded.
func (f *Frame) Err() error { return f.err }

// Root returns the root layer of a Completed frame.
func (f *Frame) Root() (Layer, bool) {
	if f.status != StatusCompleted || len(f.layers) == 0 {
		return Layer{}, false
	}
	return Layer{f: f, i: 0}, true
}

// NumLayers returns the number of layers in the frame tree.
func (f *Frame) NumLayers() int {
	if f.status != StatusCompleted {
		return 0
	}
	return len(f.layers)
}

// Layers iterates over the layers of a Completed frame in pre-order.
func (f *Frame) Layers() iter.Seq[Layer] {
	return func(yield func(Layer) bool) {
		if f.status != StatusCompleted || len(f.layers) == 0 {
			return
		}
		i := int32(0)
		for i != nilIdx {
			if !yield(Layer{f: f, i: i}) {
				return
			}
			n := &f.layers[i]
			if n.firstChild != nilIdx {
				i = n.firstChild
				continue
			}
			// Climb until a node with a next sibling is found.
			for i != nilIdx && f.layers[i].next == nilIdx {
				i = f.layers[i].parent
			}
			if i != nilIdx {
				i = f.layers[i].next
			}
		}
	}
}

// Layer returns the first layer with protocol id in pre-order.
func (f *Frame) Layer(id token.Token) (Layer, bool) {
	for l := range f.Layers() {
		if l.ID() == id {
			return l, true
		}
	}
	return Layer{}, false
}

// Attr searches the frame for an attribute. Frame pseudo attributes
// ([token.FrameIndex], [token.FrameTimestamp], [token.FrameActualLength]) are
// answered first. Layers are then searched deepest first so that "_.src"
// resolves to the innermost protocol that defines it.
func (f *Frame) Attr(id token.Token) (Attr, bool) {
	switch id {
	case token.FrameIndex:
		return Attr{name: id, value: UintValue(f.index), layer: nilIdx}, true
	case token.FrameTimestamp:
		return Attr{name: id, typ: token.TypeDateUnix, hasTyp: true, value: IntValue(f.timestamp), layer: nilIdx}, true
	case token.FrameActualLength:
		return Attr{name: id, value: UintValue(uint64(f.actualLen)), layer: nilIdx}, true
	}
	if f.status != StatusCompleted {
		return Attr{}, false
	}
	// Children are always appended after their parents so reverse arena
	// order visits deeper layers before their ancestors.
	for i := int32(len(f.layers)) - 1; i >= 0; i-- {
		if a, ok := (Layer{f: f, i: i}).Attr(id); ok {
			return a, true
		}
	}
	return Attr{}, false
}

// LayerOf returns the layer that owns a. Frame pseudo attributes have no layer.
func (f *Frame) LayerOf(a Attr) (Layer, bool) {
	if a.layer < 0 || int(a.layer) >= len(f.layers) {
		return Layer{}, false
	}
	return Layer{f: f, i: a.layer}, true
}

func (f *Frame) checkWritable() error {
	switch f.status {
	case StatusDecoding:
		return nil
	case StatusIngested:
		return ErrBadState
	}
	return ErrFrozen
}

// violate records a contract violation. The frame fails once the current
// decoder returns.
func (f *Frame) violate(err error) error {
	if f.err == nil {
		f.err = err
	} else {
		f.err = errors.Join(f.err, err)
	}
	return err
}

func (f *Frame) newLayer(id token.Token, data Slice, parent int32) Layer {
	idx := int32(len(f.layers))
	internal.ArenaNext(&f.layers).reset(id, data, parent)
	return Layer{f: f, i: idx}
}
