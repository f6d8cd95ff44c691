package dissect

import "github.com/soypat/dissect/token"

// Fields appends attributes to a layer and keeps the first error, so that a
// decoder can add a run of fixed-offset fields and check once:
//
//	fs := dissect.Fields{Layer: layer}
//	fs.Add(token.UDPSrc, token.Empty, dissect.UintValue(sport), 0, 2)
//	fs.Add(token.UDPDst, token.Empty, dissect.UintValue(dport), 2, 2)
//	if err := fs.Err(); err != nil {
//		return err
//	}
//
// Calls after the first error add nothing.
type Fields struct {
	Layer Layer
	err   error
}

// Add is [Layer.AddField].
func (fs *Fields) Add(name, typ token.Token, v Value, off, n int) {
	if fs.err == nil {
		fs.err = fs.Layer.AddField(name, typ, v, off, n)
	}
}

// Bytes is [Layer.AddFieldBytes].
func (fs *Fields) Bytes(name, typ token.Token, off, n int) {
	if fs.err == nil {
		fs.err = fs.Layer.AddFieldBytes(name, typ, off, n)
	}
}

// Attr is [Layer.AddAttrType], rng and typ being optional.
func (fs *Fields) Attr(name, typ token.Token, v Value, rng Slice) {
	if fs.err != nil {
		return
	}
	if typ == token.Empty {
		fs.err = fs.Layer.AddAttr(name, v, rng)
	} else {
		fs.err = fs.Layer.AddAttrType(name, typ, v, rng)
	}
}

// Err returns the first error returned by the layer.
func (fs *Fields) Err() error { return fs.err }
