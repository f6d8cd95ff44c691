package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/gopacket/layers"
	"github.com/soypat/dissect"
	"github.com/spf13/cobra"
)

func decodeCmd(gf *globalFlags) *cobra.Command {
	var (
		pcapPath string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "decode [hex-packet...]",
		Short: "Decode packets and print their layer tree",
		Long: `Decode packets one at a time and print every layer with its attributes.

Packets are given as hex strings (whitespace and colons are ignored) or read
from a classic pcap file with --pcap. Use --pcap - to read from stdin.`,
		Example: `  dissect decode ffffffffffff0011223344550806...
  dissect decode --pcap capture.pcap --limit 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (pcapPath == "") == (len(args) == 0) {
				return errors.New("either hex packets or --pcap must be given")
			}
			e, err := newEnv(gf)
			if err != nil {
				return err
			}
			defer e.close()
			out := bufio.NewWriter(cmd.OutOrStdout())
			defer out.Flush()
			var buf []byte
			decode := func(pkt dissect.Packet) error {
				f, err := e.session.Ingest(pkt.Data, pkt.Metadata)
				if err != nil {
					return err
				}
				defer e.session.Release(f)
				if err = e.session.Decode(f); err != nil {
					return err
				}
				buf = e.fmt.FormatFrame(buf[:0], f)
				_, err = out.Write(buf)
				return err
			}
			if pcapPath == "" {
				for _, arg := range args {
					data, err := parseHex(arg)
					if err != nil {
						return err
					}
					if err = decode(dissect.Packet{Data: data}); err != nil {
						return err
					}
				}
				return nil
			}
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
			for n := 0; limit <= 0 || n < limit; n++ {
				pkt, err := pr.Next()
				if err == io.EOF {
					break
				} else if err != nil {
					return err
				}
				if err = decode(pkt); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pcapPath, "pcap", "", "read packets from a pcap file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "stop after decoding this many packets")
	return cmd
}

func (e *env) checkLinkType(pr *pcapReader) {
	if lt := pr.LinkType(); lt != layers.LinkTypeEthernet && e.cfg.root == "eth" {
		e.log.Warn("pcap:linktype", slog.String("linktype", lt.String()), slog.String("root", e.cfg.root))
	}
}

func parseHex(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':':
			return -1
		}
		return r
	}, s)
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("parse hex packet: %w", err)
	}
	return b, nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}
