package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/docker/go-units"
	"github.com/soypat/dissect"
	"github.com/spf13/cobra"
)

func streamCmd(gf *globalFlags) *cobra.Command {
	var (
		pcapPath string
		full     bool
	)
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Decode a capture in parallel and print one line per frame",
		Long: `Decode a pcap capture on the session's worker pool. Frames are printed
in capture order unless the configuration sets ordered = false.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(gf)
			if err != nil {
				return err
			}
			defer e.close()
			in, err := openInput(pcapPath)
			if err != nil {
				return err
			}
			defer in.Close()
			pr, err := newPcapReader(in, e.cfg.maxFrameSize)
			if err != nil {
				return err
			}
			e.checkLinkType(pr)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			packets := make(chan dissect.Packet, 64)
			readErr := make(chan error, 1)
			go func() {
				defer close(packets)
				for {
					pkt, err := pr.Next()
					if err != nil {
						if err == io.EOF {
							err = nil
						}
						readErr <- err
						return
					}
					select {
					case packets <- pkt:
					case <-ctx.Done():
						readErr <- nil
						return
					}
				}
			}()

			out := bufio.NewWriter(cmd.OutOrStdout())
			defer out.Flush()
			var st streamStats
			var buf []byte
			start := time.Now()
			err = e.session.Run(ctx, packets, dissect.ConsumerFunc(func(f *dissect.Frame) error {
				defer e.session.Release(f)
				st.observe(f)
				if full {
					buf = e.fmt.FormatFrame(buf[:0], f)
				} else {
					buf = e.appendSummary(buf[:0], f)
				}
				_, err := out.Write(buf)
				return err
			}))
			stop() // Unblock the reader if Run stopped early.
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			if err = <-readErr; err != nil {
				return err
			}
			elapsed := time.Since(start)
			e.log.Info("stream:done", slog.Int("frames", st.frames), slog.Duration("elapsed", elapsed))
			out.WriteString(st.String(elapsed))
			return nil
		},
	}
	cmd.Flags().StringVar(&pcapPath, "pcap", "-", "pcap file to read, - for stdin")
	cmd.Flags().BoolVar(&full, "full", false, "print the full layer tree of every frame")
	return cmd
}

// appendSummary appends "index status len layer>layer..." for f.
func (e *env) appendSummary(dst []byte, f *dissect.Frame) []byte {
	dst = strconv.AppendUint(dst, f.Index(), 10)
	dst = append(dst, ' ')
	dst = append(dst, f.Status().String()...)
	dst = append(dst, ' ')
	dst = strconv.AppendUint(dst, uint64(f.CapturedLength()), 10)
	first := true
	for l := range f.Layers() {
		if first {
			dst = append(dst, ' ')
			first = false
		} else {
			dst = append(dst, '>')
		}
		dst = append(dst, e.fmt.Tokens.Name(l.ID())...)
		if kind, _ := l.Err(); kind != dissect.ErrorNone {
			dst = append(dst, kind.Token().String()...)
		}
	}
	if err := f.Err(); err != nil {
		dst = append(dst, " err=("...)
		dst = append(dst, err.Error()...)
		dst = append(dst, ')')
	}
	return append(dst, '\n')
}

type streamStats struct {
	frames    int
	failed    int
	layerErrs int
	octets    uint64
}

func (st *streamStats) observe(f *dissect.Frame) {
	st.frames++
	st.octets += uint64(f.CapturedLength())
	if f.Status() == dissect.StatusFailed {
		st.failed++
		return
	}
	for l := range f.Layers() {
		if kind, _ := l.Err(); kind != dissect.ErrorNone {
			st.layerErrs++
		}
	}
}

func (st *streamStats) String(elapsed time.Duration) string {
	return strconv.Itoa(st.frames) + " frames (" + units.HumanSize(float64(st.octets)) + ") in " +
		units.HumanDuration(elapsed) + ", " + strconv.Itoa(st.failed) + " failed, " +
		strconv.Itoa(st.layerErrs) + " layer errors\n"
}
