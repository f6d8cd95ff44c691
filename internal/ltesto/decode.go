package ltesto

import (
	"testing"

	"github.com/soypat/dissect"
	"github.com/soypat/dissect/builtin"
)

// NewSession returns a session with every bundled decoder registered.
func NewSession(tb testing.TB, flags dissect.ValidateFlags) *dissect.Session {
	tb.Helper()
	s, err := builtin.NewSession(dissect.SessionConfig{ValidateFlags: flags, Workers: 4}, builtin.Config{})
	if err != nil {
		tb.Fatal(err)
	}
	return s
}

// Decode ingests and decodes pkt and fails the test if the frame does not complete.
func Decode(tb testing.TB, s *dissect.Session, pkt []byte) *dissect.Frame {
	tb.Helper()
	f, err := s.Ingest(pkt, dissect.Metadata{})
	if err != nil {
		tb.Fatal(err)
	}
	if err = s.Decode(f); err != nil {
		tb.Fatal(err)
	}
	if f.Status() != dissect.StatusCompleted {
		tb.Fatalf("frame not completed: %s %v", f.Status(), f.Err())
	}
	return f
}

// Layer returns the first layer named proto and fails the test if absent.
func Layer(tb testing.TB, s *dissect.Session, f *dissect.Frame, proto string) dissect.Layer {
	tb.Helper()
	tok, ok := s.Tokens().Lookup(proto)
	if !ok {
		tb.Fatalf("protocol %q never interned", proto)
	}
	l, ok := f.Layer(tok)
	if !ok {
		tb.Fatalf("layer %q not found", proto)
	}
	return l
}

// Attr returns the attribute name of layer l and fails the test if absent.
func Attr(tb testing.TB, s *dissect.Session, l dissect.Layer, name string) dissect.Attr {
	tb.Helper()
	tok, ok := s.Tokens().Lookup(name)
	if !ok {
		tb.Fatalf("attribute %q never interned", name)
	}
	a, ok := l.Attr(tok)
	if !ok {
		tb.Fatalf("attribute %q not found in layer %s", name, s.Tokens().Name(l.ID()))
	}
	return a
}

// HasAttr reports whether layer l has an attribute called name.
func HasAttr(s *dissect.Session, l dissect.Layer, name string) bool {
	tok, ok := s.Tokens().Lookup(name)
	if !ok {
		return false
	}
	_, ok = l.Attr(tok)
	return ok
}

// LayerPath returns the protocol names of the frame's layers in pre-order.
func LayerPath(s *dissect.Session, f *dissect.Frame) []string {
	var path []string
	for l := range f.Layers() {
		path = append(path, s.Tokens().Name(l.ID()))
	}
	return path
}
