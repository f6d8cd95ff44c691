package dissect

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Consumer receives decoded frames from [Session.DecodeBatch] and
// [Session.Run]. Consume is never called concurrently. A non-nil error stops
// the intake of new frames and is returned to the caller.
type Consumer interface {
	Consume(f *Frame) error
}

// ConsumerFunc adapts a function to the [Consumer] interface.
type ConsumerFunc func(f *Frame) error

func (fn ConsumerFunc) Consume(f *Frame) error { return fn(f) }

// Packet is a raw captured packet fed to [Session.Run].
type Packet struct {
	Data []byte
	Metadata
}

type decoded struct {
	seq int
	f   *Frame
}

// DecodeBatch decodes Ingested frames in parallel and delivers each of them
// to c exactly once. If the session is Ordered frames are delivered in the
// order they appear in frames. Cancelling ctx stops scheduling; frames already
// being decoded are still delivered.
func (s *Session) DecodeBatch(ctx context.Context, frames []*Frame, c Consumer) (err error) {
	for i, f := range frames {
		if f == nil || f.status != StatusIngested {
			return fmt.Errorf("dissect: batch frame %d: %w", i, ErrBadState)
		}
	}
	ctx, span := s.tracer.Start(ctx, "dissect.DecodeBatch",
		trace.WithAttributes(attribute.Int("dissect.frames", len(frames))))
	delivered := 0
	defer func() { endSpan(span, delivered, err) }()

	delivered, err = s.pipeline(ctx, c, func(ctx context.Context, decode func(*Frame) bool) {
		for _, f := range frames {
			if !decode(f) {
				return
			}
		}
	})
	return err
}

// Run ingests packets until the channel is closed or ctx is cancelled and
// decodes them on the session's workers. Decoded frames are delivered to c;
// they may be released with [Session.Release] once Consume returns.
func (s *Session) Run(ctx context.Context, packets <-chan Packet, c Consumer) (err error) {
	ctx, span := s.tracer.Start(ctx, "dissect.Run")
	delivered := 0
	defer func() { endSpan(span, delivered, err) }()

	s.info("session:run-start", slog.Int("workers", s.workers), slog.Bool("ordered", s.ordered))
	delivered, err = s.pipeline(ctx, c, func(ctx context.Context, decode func(*Frame) bool) {
		for {
			var pkt Packet
			var ok bool
			select {
			case <-ctx.Done():
				return
			case pkt, ok = <-packets:
				if !ok {
					return
				}
			}
			f, err := s.Ingest(pkt.Data, pkt.Metadata)
			if err != nil {
				s.warn("session:run-ingest", slog.String("err", err.Error()))
				return
			}
			if !decode(f) {
				return
			}
		}
	})
	s.info("session:run-done", slog.Int("delivered", delivered))
	return err
}

// pipeline decodes the frames yielded by feed on the session's workers and
// delivers them to c, reordering them by feed order if the session is Ordered.
func (s *Session) pipeline(parent context.Context, c Consumer, feed func(ctx context.Context, decode func(*Frame) bool)) (delivered int, err error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	results := make(chan decoded, s.workers)
	go func() {
		var workers errgroup.Group
		workers.SetLimit(s.workers)
		seq := 0
		feed(ctx, func(f *Frame) bool {
			if ctx.Err() != nil {
				return false
			}
			n := seq
			seq++
			workers.Go(func() error {
				err := s.Decode(f)
				results <- decoded{seq: n, f: f}
				return err
			})
			return true
		})
		if err := workers.Wait(); err != nil {
			s.error("session:pipeline", slog.String("err", err.Error()))
		}
		close(results)
	}()

	var cerr error
	emit := func(f *Frame) {
		if cerr != nil {
			return
		}
		if err := c.Consume(f); err != nil {
			cerr = err
			cancel()
			return
		}
		delivered++
	}
	pending := make(map[int]*Frame)
	next := 0
	for r := range results {
		if !s.ordered {
			emit(r.f)
			continue
		}
		pending[r.seq] = r.f
		for {
			f, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			emit(f)
		}
	}
	if cerr != nil {
		return delivered, cerr
	}
	return delivered, parent.Err()
}

func endSpan(span trace.Span, delivered int, err error) {
	span.SetAttributes(attribute.Int("dissect.delivered", delivered))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
