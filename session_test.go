package dissect

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/soypat/dissect/token"
)

func newTestSession(t *testing.T, cfg SessionConfig) *Session {
	t.Helper()
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func mustRegister(t *testing.T, s *Session, proto token.Token, dec Decoder) {
	t.Helper()
	if err := s.Register(proto, dec); err != nil {
		t.Fatal(err)
	}
}

func decodeBytes(t *testing.T, s *Session, b []byte) *Frame {
	t.Helper()
	f, err := s.Ingest(b, Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Decode(f); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestPartialFailure(t *testing.T) {
	s := newTestSession(t, SessionConfig{})
	mustRegister(t, s, token.Eth, DecoderFunc(func(ctx *Context, l Layer) error {
		l.AddField(token.EthType, token.TypeEnum, UintValue(0x0800), 0, 2)
		l.AddFieldBytes(token.IPv4Src, token.TypeIPv4Addr, 2, 4)
		return ErrMalformed
	}))
	f := decodeBytes(t, s, []byte{8, 0, 192, 168, 1, 1, 0xff})
	if f.Status() != StatusCompleted {
		t.Fatalf("want completed, got %s: %v", f.Status(), f.Err())
	}
	root, ok := f.Root()
	if !ok {
		t.Fatal("no root layer")
	}
	kind, cause := root.Err()
	if kind != ErrorMalformed || !errors.Is(cause, ErrMalformed) {
		t.Errorf("want malformed root, got %s %v", kind, cause)
	}
	if kind.Token() != token.MarkInvalidValue {
		t.Errorf("malformed marker token %s", kind.Token())
	}
	if root.NumAttrs() != 2 {
		t.Fatalf("want 2 attributes kept, got %d", root.NumAttrs())
	}
	a, ok := root.Attr(token.IPv4Src)
	if !ok {
		t.Fatal("missing attribute")
	}
	rng, _ := a.Range()
	if rng.Offset() != 2 || rng.Len() != 4 {
		t.Errorf("unexpected range %s", rng)
	}
	if b, _ := a.Value().Bytes(); string(b) != "\xc0\xa8\x01\x01" {
		t.Errorf("unexpected value %x", b)
	}
}

func TestUnknownProtocol(t *testing.T) {
	s := newTestSession(t, SessionConfig{})
	unknown := s.Tokens().MustIntern("zzz")
	mustRegister(t, s, token.Eth, DecoderFunc(func(ctx *Context, l Layer) error {
		payload, err := l.Data().From(2)
		if err != nil {
			return err
		}
		_, err = ctx.Dispatch(l, unknown, payload)
		return err
	}))
	f := decodeBytes(t, s, []byte{0, 1, 2, 3, 4})
	child, ok := f.Layer(unknown)
	if !ok {
		t.Fatal("unknown protocol layer missing")
	}
	if kind, _ := child.Err(); kind != ErrorUnknownProtocol {
		t.Errorf("want unknown protocol marker, got %s", kind)
	}
	payload, ok := child.Attr(token.FramePayload)
	if !ok {
		t.Fatal("unknown layer must carry its payload")
	}
	if b, _ := payload.Value().Bytes(); string(b) != "\x02\x03\x04" {
		t.Errorf("payload %x", b)
	}
	root, _ := f.Root()
	if kind, _ := root.Err(); kind != ErrorNone {
		t.Errorf("parent must not be marked, got %s", kind)
	}
}

func TestUnregisteredRoot(t *testing.T) {
	s := newTestSession(t, SessionConfig{})
	f := decodeBytes(t, s, []byte{1, 2, 3})
	root, ok := f.Root()
	if !ok {
		t.Fatal("frame must complete without decoders")
	}
	if kind, _ := root.Err(); kind != ErrorUnknownProtocol {
		t.Errorf("want unknown root, got %s", kind)
	}
}

func TestOutOfBoundsLayer(t *testing.T) {
	s := newTestSession(t, SessionConfig{})
	mustRegister(t, s, token.Eth, DecoderFunc(func(ctx *Context, l Layer) error {
		v, err := l.Data().Uint32(0)
		if err != nil {
			return err
		}
		return l.AddField(token.IPv4ID, token.Empty, UintValue(uint64(v)), 0, 4)
	}))
	f := decodeBytes(t, s, []byte{1, 2})
	root, _ := f.Root()
	kind, cause := root.Err()
	var be *BoundsError
	if kind != ErrorOutOfBounds || !errors.As(cause, &be) {
		t.Fatalf("want out of bounds, got %s %v", kind, cause)
	}
	if be.Off != 0 || be.Len != 4 || be.Size != 2 {
		t.Errorf("unexpected bounds error %+v", be)
	}
}

func TestDispatchViolation(t *testing.T) {
	other := NewBuffer([]byte{9, 9, 9, 9})
	for name, dec := range map[string]DecoderFunc{
		"foreign-dispatch": func(ctx *Context, l Layer) error {
			_, err := ctx.Dispatch(l, token.IPv4, other.Slice())
			if err == nil {
				t.Error("dispatch of foreign slice must fail")
			}
			return err
		},
		"foreign-attr": func(ctx *Context, l Layer) error {
			return l.AddAttr(token.IPv4ID, BytesValue(other.Slice()), Slice{})
		},
		"foreign-range": func(ctx *Context, l Layer) error {
			return l.AddAttr(token.IPv4ID, UintValue(1), other.Slice())
		},
		"ignored-violation": func(ctx *Context, l Layer) error {
			// The frame fails even if the decoder drops the error.
			l.AddChild(token.IPv4, other.Slice())
			return nil
		},
		"panic": func(ctx *Context, l Layer) error {
			panic("decoder bug")
		},
	} {
		t.Run(name, func(t *testing.T) {
			s := newTestSession(t, SessionConfig{})
			mustRegister(t, s, token.Eth, dec)
			f := decodeBytes(t, s, []byte{1, 2, 3, 4, 5, 6})
			if f.Status() != StatusFailed {
				t.Fatalf("want failed frame, got %s", f.Status())
			}
			if !errors.Is(f.Err(), ErrProtocolViolation) {
				t.Errorf("want protocol violation, got %v", f.Err())
			}
			if _, ok := f.Root(); ok || f.NumLayers() != 0 {
				t.Error("failed frame must not expose a tree")
			}
		})
	}
}

func TestEmptyBytesValue(t *testing.T) {
	s := newTestSession(t, SessionConfig{})
	mustRegister(t, s, token.Eth, DecoderFunc(func(ctx *Context, l Layer) error {
		return l.AddAttr(token.FramePayload, BytesValue(Slice{}), Slice{})
	}))
	f := decodeBytes(t, s, []byte{1, 2, 3})
	if f.Status() != StatusCompleted {
		t.Fatalf("want completed, got %s: %v", f.Status(), f.Err())
	}
	root, _ := f.Root()
	a, ok := root.Attr(token.FramePayload)
	if !ok {
		t.Fatal("missing attribute")
	}
	if b, ok := a.Value().Bytes(); !ok || len(b) != 0 {
		t.Errorf("want empty bytes value, got %x (%v)", b, ok)
	}
	if _, ok := a.Range(); ok {
		t.Error("attribute without range reports one")
	}
}

func TestDepthExceeded(t *testing.T) {
	const maxDepth = 4
	s := newTestSession(t, SessionConfig{MaxDepth: maxDepth})
	var recurse DecoderFunc
	recurse = func(ctx *Context, l Layer) error {
		next, err := l.Data().From(1)
		if err != nil {
			return err
		}
		_, err = ctx.Dispatch(l, token.Eth, next)
		return err
	}
	mustRegister(t, s, token.Eth, recurse)
	f := decodeBytes(t, s, make([]byte, 16))
	if f.Status() != StatusCompleted {
		t.Fatalf("depth overflow must not fail the frame: %v", f.Err())
	}
	if f.NumLayers() != maxDepth+2 {
		t.Fatalf("want %d layers, got %d", maxDepth+2, f.NumLayers())
	}
	var deepest Layer
	for l := range f.Layers() {
		deepest = l
	}
	if deepest.Depth() != maxDepth+1 {
		t.Errorf("want deepest depth %d, got %d", maxDepth+1, deepest.Depth())
	}
	if kind, cause := deepest.Err(); kind != ErrorMalformed || !errors.Is(cause, ErrDepthExceeded) {
		t.Errorf("want depth exceeded marker, got %s %v", kind, cause)
	}
}

func TestInsertionOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := newTestSession(t, SessionConfig{})
	var want []token.Token
	for i := 0; i < 200; i++ {
		want = append(want, s.Tokens().MustIntern("field."+strconv.Itoa(rng.Intn(50))))
	}
	mustRegister(t, s, token.Eth, DecoderFunc(func(ctx *Context, l Layer) error {
		for i, name := range want {
			if err := l.AddAttr(name, IntValue(int64(i)), Slice{}); err != nil {
				return err
			}
		}
		return nil
	}))
	f := decodeBytes(t, s, []byte{0})
	root, _ := f.Root()
	var got []token.Token
	for a := range root.Attrs() {
		v, _ := a.Value().Int()
		if int(v) != len(got) {
			t.Fatalf("attribute %d out of order", v)
		}
		got = append(got, a.Name())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("attribute order mismatch (-want +got):\n%s", diff)
	}
	// Repeated names are all reachable in order.
	n := 0
	for a := range root.AttrsByName(want[0]) {
		if a.Name() != want[0] {
			t.Fatal("AttrsByName yielded another name")
		}
		n++
	}
	if n == 0 {
		t.Fatal("AttrsByName yielded nothing")
	}
}

func TestFrozenFrame(t *testing.T) {
	s := newTestSession(t, SessionConfig{})
	var kept Layer
	mustRegister(t, s, token.Eth, DecoderFunc(func(ctx *Context, l Layer) error {
		kept = l
		return nil
	}))
	f := decodeBytes(t, s, []byte{0, 1})
	if err := kept.AddAttr(token.IPv4ID, UintValue(1), Slice{}); !errors.Is(err, ErrFrozen) {
		t.Errorf("want ErrFrozen, got %v", err)
	}
	if _, err := kept.AddChild(token.IPv4, f.Raw()); !errors.Is(err, ErrFrozen) {
		t.Errorf("want ErrFrozen on AddChild, got %v", err)
	}
	if err := s.Decode(f); !errors.Is(err, ErrBadState) {
		t.Errorf("want ErrBadState on second decode, got %v", err)
	}
}

// treeDecoder builds a deterministic tree out of the input bytes.
func treeDecoder(ctx *Context, l Layer) error {
	data := l.Data()
	if data.Len() == 0 {
		return nil
	}
	b, _ := data.Uint8(0)
	name, err := ctx.Tokens().Intern("tree.n" + strconv.Itoa(int(b%7)))
	if err != nil {
		return err
	}
	l.AddField(name, token.TypeIntHex, UintValue(uint64(b)), 0, 1)
	l.AddAttr(token.FramePayload, StringValue(strconv.Itoa(data.Len())), Slice{})
	if b%5 == 0 {
		return ErrMalformed
	}
	for off := 1; off < data.Len(); off += 4 {
		n := min(3, data.Len()-off)
		sub, err := data.Sub(off, n)
		if err != nil {
			return err
		}
		if _, err = ctx.Dispatch(l, token.Eth, sub); err != nil {
			return err
		}
	}
	return nil
}

type attrDump struct {
	Name, Type token.Token
	Kind       Kind
	Text       string
	Off, Len   int
}

type layerDump struct {
	ID    token.Token
	Depth int
	Err   ErrorKind
	Attrs []attrDump
}

func dumpFrame(f *Frame) []layerDump {
	var dump []layerDump
	for l := range f.Layers() {
		kind, _ := l.Err()
		ld := layerDump{ID: l.ID(), Depth: l.Depth(), Err: kind}
		for a := range l.Attrs() {
			typ, _ := a.Type()
			rng, _ := a.Range()
			ld.Attrs = append(ld.Attrs, attrDump{
				Name: a.Name(), Type: typ, Kind: a.Value().Kind(),
				Text: a.Value().String(), Off: rng.Offset(), Len: rng.Len(),
			})
		}
		dump = append(dump, ld)
	}
	return dump
}

func TestDecodeIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := newTestSession(t, SessionConfig{})
	mustRegister(t, s, token.Eth, DecoderFunc(treeDecoder))
	for i := 0; i < 64; i++ {
		pkt := make([]byte, 1+rng.Intn(40))
		rng.Read(pkt)
		f1 := decodeBytes(t, s, pkt)
		f2 := decodeBytes(t, s, append([]byte(nil), pkt...))
		fp1 := f1.Fingerprint()
		if fp1 != f2.Fingerprint() {
			t.Fatalf("fingerprint mismatch for %x", pkt)
		}
		if diff := cmp.Diff(dumpFrame(f1), dumpFrame(f2)); diff != "" {
			t.Fatalf("tree mismatch for %x (-first +second):\n%s", pkt, diff)
		}
		mod := append([]byte(nil), pkt...)
		mod[0]++
		f3 := decodeBytes(t, s, mod)
		if f3.Fingerprint() == fp1 {
			t.Fatalf("fingerprint collision after modifying %x", pkt)
		}
	}
}

func TestDecodeBatchOrdered(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := newTestSession(t, SessionConfig{Workers: 8, Ordered: true})
	mustRegister(t, s, token.Eth, DecoderFunc(treeDecoder))
	var frames []*Frame
	want := make(map[uint64][32]byte)
	for i := 0; i < 256; i++ {
		pkt := make([]byte, 1+rng.Intn(64))
		rng.Read(pkt)
		f, err := s.Ingest(pkt, Metadata{})
		if err != nil {
			t.Fatal(err)
		}
		frames = append(frames, f)

		ref := newTestSession(t, SessionConfig{Tokens: s.Tokens()})
		mustRegister(t, ref, token.Eth, DecoderFunc(treeDecoder))
		want[f.Index()] = decodeBytes(t, ref, pkt).Fingerprint()
	}
	next := 0
	err := s.DecodeBatch(context.Background(), frames, ConsumerFunc(func(f *Frame) error {
		if f != frames[next] {
			t.Fatalf("frame %d delivered out of order", f.Index())
		}
		next++
		if f.Status() != StatusCompleted {
			t.Fatalf("frame %d: %v", f.Index(), f.Err())
		}
		if f.Fingerprint() != want[f.Index()] {
			t.Errorf("frame %d decoded differently in parallel", f.Index())
		}
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	if next != len(frames) {
		t.Fatalf("delivered %d of %d frames", next, len(frames))
	}
}

func TestDecodeBatchConsumerError(t *testing.T) {
	s := newTestSession(t, SessionConfig{Workers: 2})
	mustRegister(t, s, token.Eth, DecoderFunc(treeDecoder))
	var frames []*Frame
	for i := 0; i < 32; i++ {
		f, _ := s.Ingest([]byte{byte(i), 1, 2, 3}, Metadata{})
		frames = append(frames, f)
	}
	stop := errors.New("stop")
	calls := 0
	err := s.DecodeBatch(context.Background(), frames, ConsumerFunc(func(f *Frame) error {
		calls++
		return stop
	}))
	if !errors.Is(err, stop) {
		t.Fatalf("want consumer error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("consumer called %d times after failing", calls)
	}
}

func TestRun(t *testing.T) {
	s := newTestSession(t, SessionConfig{Workers: 4, Ordered: true})
	mustRegister(t, s, token.Eth, DecoderFunc(treeDecoder))
	packets := make(chan Packet)
	const n = 100
	start := time.Unix(1700000000, 0)
	go func() {
		defer close(packets)
		for i := 0; i < n; i++ {
			packets <- Packet{
				Data:     []byte{byte(i), byte(i >> 8), 3, 4, 5},
				Metadata: Metadata{Timestamp: start.Add(time.Duration(i) * time.Millisecond), ActualLength: 60},
			}
		}
	}()
	var got []uint64
	err := s.Run(context.Background(), packets, ConsumerFunc(func(f *Frame) error {
		got = append(got, f.Index())
		if f.ActualLength() != 60 || f.CapturedLength() != 5 {
			t.Errorf("bad lengths %d %d", f.ActualLength(), f.CapturedLength())
		}
		if !f.Timestamp().Equal(start.Add(time.Duration(len(got)-1) * time.Millisecond)) {
			t.Errorf("frame %d: unexpected timestamp %s", f.Index(), f.Timestamp())
		}
		s.Release(f)
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != n {
		t.Fatalf("want %d frames, got %d", n, len(got))
	}
	for i := range got {
		if got[i] != uint64(i) {
			t.Fatalf("frame %d delivered at position %d", got[i], i)
		}
	}
}

func TestRunCancel(t *testing.T) {
	s := newTestSession(t, SessionConfig{Workers: 2})
	mustRegister(t, s, token.Eth, DecoderFunc(treeDecoder))
	ctx, cancel := context.WithCancel(context.Background())
	packets := make(chan Packet)
	go func() {
		packets <- Packet{Data: []byte{1, 2}}
		cancel()
	}()
	err := s.Run(ctx, packets, ConsumerFunc(func(f *Frame) error { return nil }))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestReregistration(t *testing.T) {
	s := newTestSession(t, SessionConfig{})
	version := func(v uint64) DecoderFunc {
		return func(ctx *Context, l Layer) error {
			return l.AddAttr(token.IPv4Version, UintValue(v), Slice{})
		}
	}
	mustRegister(t, s, token.Eth, version(1))
	f1 := decodeBytes(t, s, []byte{0})
	mustRegister(t, s, token.Eth, version(2))
	f2 := decodeBytes(t, s, []byte{0})
	for i, tc := range []struct {
		f    *Frame
		want uint64
	}{{f1, 1}, {f2, 2}} {
		a, ok := tc.f.Attr(token.IPv4Version)
		if !ok {
			t.Fatalf("frame %d: missing attribute", i)
		}
		if v, _ := a.Value().Uint(); v != tc.want {
			t.Errorf("frame %d: want decoder version %d, got %d", i, tc.want, v)
		}
	}
}

func TestConcurrentRegistration(t *testing.T) {
	s := newTestSession(t, SessionConfig{})
	mustRegister(t, s, token.Eth, DecoderFunc(treeDecoder))
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				tok := s.Tokens().MustIntern("proto." + strconv.Itoa(i))
				if err := s.Register(tok, DecoderFunc(treeDecoder)); err != nil {
					t.Error(err)
				}
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				f, err := s.Ingest([]byte{byte(i), 2, 3, 4, 5, 6}, Metadata{})
				if err != nil {
					t.Error(err)
					return
				}
				s.Decode(f)
				if f.Status() != StatusCompleted {
					t.Errorf("frame %d: %v", f.Index(), f.Err())
				}
			}
		}()
	}
	wg.Wait()
}

type claimer struct {
	claim token.Token
}

func (c claimer) CanDecode(proto token.Token) bool { return proto == c.claim }

func (c claimer) Decode(ctx *Context, l Layer) error {
	return l.AddAttr(token.FramePayload, BytesValue(l.Data()), l.Data())
}

func TestClaimer(t *testing.T) {
	s := newTestSession(t, SessionConfig{})
	claimed := s.Tokens().MustIntern("claimed")
	if err := s.RegisterClaimer(claimer{claim: claimed}); err != nil {
		t.Fatal(err)
	}
	mustRegister(t, s, token.Eth, DecoderFunc(func(ctx *Context, l Layer) error {
		if _, err := ctx.Dispatch(l, claimed, l.Data()); err != nil {
			return err
		}
		_, err := ctx.Dispatch(l, token.IPv6, l.Data())
		return err
	}))
	f := decodeBytes(t, s, []byte{1, 2, 3})
	l, ok := f.Layer(claimed)
	if !ok {
		t.Fatal("claimed layer missing")
	}
	if kind, _ := l.Err(); kind != ErrorNone {
		t.Errorf("claimed layer marked %s", kind)
	}
	l, _ = f.Layer(token.IPv6)
	if kind, _ := l.Err(); kind != ErrorUnknownProtocol {
		t.Errorf("unclaimed layer marked %s", kind)
	}
}

type aliasDecoder struct {
	src, alias, next token.Token
}

func (d aliasDecoder) Aliases() []Alias { return []Alias{{Name: d.alias, Target: d.src}} }

func (d aliasDecoder) Decode(ctx *Context, l Layer) error {
	if err := l.AddFieldBytes(d.src, token.Empty, 0, 1); err != nil {
		return err
	}
	if d.next == token.Empty {
		return nil
	}
	sub, err := l.Data().From(1)
	if err != nil {
		return err
	}
	_, err = ctx.Dispatch(l, d.next, sub)
	return err
}

func TestAliasAndFrameSearch(t *testing.T) {
	s := newTestSession(t, SessionConfig{})
	alias := s.Tokens().MustIntern("_.src")
	mustRegister(t, s, token.Eth, aliasDecoder{src: token.EthType, alias: alias, next: token.IPv4})
	mustRegister(t, s, token.IPv4, aliasDecoder{src: token.IPv4Src, alias: alias})
	f, err := s.Ingest([]byte{0xaa, 0xbb}, Metadata{ActualLength: 1500, Timestamp: time.Unix(0, 42)})
	if err != nil {
		t.Fatal(err)
	}
	s.Decode(f)
	a, ok := f.Attr(alias)
	if !ok {
		t.Fatal("alias not resolved")
	}
	if a.Name() != token.IPv4Src {
		t.Errorf("deepest layer must win, got %s", a.Name())
	}
	owner, ok := f.LayerOf(a)
	if !ok || owner.ID() != token.IPv4 {
		t.Error("attribute owner mismatch")
	}
	root, _ := f.Root()
	if a, _ := root.Attr(alias); a.Name() != token.EthType {
		t.Errorf("root alias resolved to %s", a.Name())
	}

	idx, _ := f.Attr(token.FrameIndex)
	if v, _ := idx.Value().Uint(); v != f.Index() {
		t.Errorf("index attribute %d", v)
	}
	ts, _ := f.Attr(token.FrameTimestamp)
	if v, _ := ts.Value().Int(); v != 42 {
		t.Errorf("timestamp attribute %d", v)
	}
	al, _ := f.Attr(token.FrameActualLength)
	if v, _ := al.Value().Uint(); v != 1500 {
		t.Errorf("actual length attribute %d", v)
	}
	if _, ok := f.LayerOf(idx); ok {
		t.Error("pseudo attribute must not have a layer")
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestSession(t, SessionConfig{})
	f1, _ := s.Ingest([]byte{1}, Metadata{})
	f2, _ := s.Ingest([]byte{2}, Metadata{})
	if f2.Index() != f1.Index()+1 {
		t.Errorf("indices not sequential: %d %d", f1.Index(), f2.Index())
	}
	if f1.Status() != StatusIngested {
		t.Errorf("want ingested, got %s", f1.Status())
	}
	if _, ok := f1.Root(); ok {
		t.Error("ingested frame has no tree")
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Ingest([]byte{3}, Metadata{}); !errors.Is(err, ErrClosed) {
		t.Errorf("want ErrClosed, got %v", err)
	}
	// Frames ingested before Close may still be decoded.
	if err := s.Decode(f1); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("want ErrClosed on second close, got %v", err)
	}
	if _, err := NewSession(SessionConfig{MaxDepth: -1}); err == nil {
		t.Error("expected error on negative depth")
	}
	if err := s.Register(token.Eth, nil); err == nil {
		t.Error("expected error on nil decoder")
	}
}

type failingInit struct{ DecoderFunc }

func (failingInit) Init(*token.Registry) error { return token.ErrExhausted }

func TestRegisterInitError(t *testing.T) {
	s := newTestSession(t, SessionConfig{})
	err := s.Register(token.Eth, failingInit{DecoderFunc(treeDecoder)})
	if !errors.Is(err, token.ErrExhausted) {
		t.Fatalf("want init error, got %v", err)
	}
	f := decodeBytes(t, s, []byte{1})
	root, _ := f.Root()
	if kind, _ := root.Err(); kind != ErrorUnknownProtocol {
		t.Error("decoder registered despite failed init")
	}
}
