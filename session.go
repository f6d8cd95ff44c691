package dissect

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soypat/dissect/internal"
	"github.com/soypat/dissect/token"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMaxDepth   = 32
	defaultTracerName = "github.com/soypat/dissect"
)

// SessionConfig configures a [Session]. The zero value is usable.
type SessionConfig struct {
	// Tokens is the registry decoders intern attribute names in. A new
	// registry is created if nil.
	Tokens *token.Registry
	// Root is the protocol of the first layer of every frame. Default: [token.Eth].
	Root token.Token
	// MaxDepth limits how deeply layers may be nested. Default: 32.
	MaxDepth int
	// Workers is the number of goroutines used by DecodeBatch and Run.
	// Default: runtime.GOMAXPROCS(0).
	Workers int
	// Ordered makes DecodeBatch and Run deliver frames in ingestion order.
	Ordered bool
	// ValidateFlags configures the [Validator] handed to decoders.
	ValidateFlags ValidateFlags
	// Logger receives session events. Nil disables logging.
	Logger *slog.Logger
	// Metrics records decode statistics. Nil disables metrics.
	Metrics *Metrics
	// TracerProvider creates spans around DecodeBatch and Run.
	// Default: otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
}

// Session decodes frames with a table of registered decoders. Registration
// may happen at any time; frames already being decoded keep using the table
// that was current when their decoding started. A Session does not retain
// the frames it decodes.
type Session struct {
	logger
	tokens   *token.Registry
	root     token.Token
	maxDepth int
	workers  int
	ordered  bool
	vflags   ValidateFlags
	metrics  *Metrics
	tracer   trace.Tracer

	regmu  sync.Mutex
	table  atomic.Pointer[decoderTable]
	next   atomic.Uint64
	closed atomic.Bool
	frames sync.Pool
	ctxs   sync.Pool
}

// NewSession returns a Session configured by cfg.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.MaxDepth < 0 || cfg.Workers < 0 {
		return nil, errors.New("dissect: negative MaxDepth or Workers")
	}
	if cfg.Tokens == nil {
		cfg.Tokens = token.NewRegistry()
	}
	if cfg.Root == token.Empty {
		cfg.Root = token.Eth
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = defaultMaxDepth
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	s := &Session{
		logger:   logger{log: cfg.Logger},
		tokens:   cfg.Tokens,
		root:     cfg.Root,
		maxDepth: cfg.MaxDepth,
		workers:  cfg.Workers,
		ordered:  cfg.Ordered,
		vflags:   cfg.ValidateFlags,
		metrics:  cfg.Metrics,
		tracer:   cfg.TracerProvider.Tracer(defaultTracerName),
	}
	s.table.Store(&decoderTable{exact: map[token.Token]decoderEntry{}})
	s.frames.New = func() any { return new(Frame) }
	s.ctxs.New = func() any { return new(Context) }
	return s, nil
}

// Tokens returns the registry of the session.
func (s *Session) Tokens() *token.Registry { return s.tokens }

// Register maps proto to dec, replacing any decoder previously registered
// for proto. If dec implements [Initializer] it is initialized first and
// not registered on failure.
func (s *Session) Register(proto token.Token, dec Decoder) error {
	if dec == nil {
		return errors.New("dissect: nil decoder")
	}
	e, err := s.entry(dec)
	if err != nil {
		return err
	}
	s.regmu.Lock()
	defer s.regmu.Unlock()
	t := s.table.Load().clone()
	_, replaced := t.exact[proto]
	t.exact[proto] = e
	s.table.Store(t)
	s.debug("session:register", internal.SlogToken("proto", proto), slog.Bool("replaced", replaced))
	return nil
}

// RegisterClaimer adds a predicate decoder. Claimers are consulted in
// registration order when no decoder is registered for the exact protocol.
func (s *Session) RegisterClaimer(c Claimer) error {
	if c == nil {
		return errors.New("dissect: nil decoder")
	}
	e, err := s.entry(c)
	if err != nil {
		return err
	}
	s.regmu.Lock()
	defer s.regmu.Unlock()
	t := s.table.Load().clone()
	t.claimers = append(t.claimers, e)
	s.table.Store(t)
	s.debug("session:register-claimer", slog.Int("claimers", len(t.claimers)))
	return nil
}

func (s *Session) entry(dec Decoder) (decoderEntry, error) {
	if init, ok := dec.(Initializer); ok {
		if err := init.Init(s.tokens); err != nil {
			return decoderEntry{}, fmt.Errorf("dissect: decoder init: %w", err)
		}
	}
	e := decoderEntry{dec: dec}
	if a, ok := dec.(Aliaser); ok {
		e.aliases = append([]Alias(nil), a.Aliases()...)
	}
	return e, nil
}

// Ingest wraps raw in a new Frame with the next sequence index. raw is not
// copied and must not be modified while the frame is in use.
func (s *Session) Ingest(raw []byte, md Metadata) (*Frame, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	f := s.frames.Get().(*Frame)
	f.reset(s.next.Add(1)-1, raw, md)
	s.trace("session:ingest", slog.Uint64("index", f.index), slog.Int("len", len(raw)))
	return f, nil
}

// Release returns a frame to the session so that its memory is reused by a
// later [Session.Ingest]. f and every Layer, Attr and Slice obtained from it
// must not be used afterwards.
func (s *Session) Release(f *Frame) {
	if f == nil {
		return
	}
	f.raw = Slice{}
	f.err = nil
	f.status = StatusIngested
	clear(f.layers)
	clear(f.attrs)
	s.frames.Put(f)
}

// Decode decodes an Ingested frame. Decoding failures are recorded in the
// frame: f ends Completed, possibly with error layers, or Failed. The
// returned error is non-nil only if f is not in the Ingested state.
func (s *Session) Decode(f *Frame) error {
	if f == nil || f.status != StatusIngested {
		return ErrBadState
	}
	start := time.Now()
	s.decode(f, s.table.Load())
	s.metrics.observeFrame(f, time.Since(start), s.tokens)
	if f.status == StatusFailed {
		s.warn("session:frame-failed", slog.Uint64("index", f.index), slog.String("err", f.err.Error()))
	}
	return nil
}

func (s *Session) decode(f *Frame, table *decoderTable) {
	f.status = StatusDecoding
	ctx := s.ctxs.Get().(*Context)
	*ctx = Context{
		logger:   s.logger,
		frame:    f,
		table:    table,
		tokens:   s.tokens,
		metrics:  s.metrics,
		maxDepth: s.maxDepth,
		v:        Validator{flags: s.vflags &^ validateReserved, accum: ctx.v.accum[:0], accumBitpos: ctx.v.accumBitpos[:0]},
	}
	defer func() {
		if r := recover(); r != nil {
			f.violate(fmt.Errorf("%w: decoder panic: %v", ErrProtocolViolation, r))
			s.error("session:decoder-panic", slog.Uint64("index", f.index), slog.Any("panic", r))
		}
		if f.err != nil {
			f.status = StatusFailed
			// The partial tree of a failed frame is not observable.
			f.layers = f.layers[:0]
			f.attrs = f.attrs[:0]
		} else {
			f.status = StatusCompleted
		}
		ctx.frame = nil
		ctx.table = nil
		s.ctxs.Put(ctx)
	}()
	root := f.newLayer(s.root, f.raw, nilIdx)
	ctx.decodeLayer(root)
}

// Close stops the session from accepting new frames. Frames already
// ingested may still be decoded.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return ErrClosed
	}
	s.debug("session:close", slog.Uint64("ingested", s.next.Load()))
	return nil
}
