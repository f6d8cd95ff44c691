package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/soypat/dissect/internal"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

type globalFlags struct {
	configPath  string
	logLevel    string
	metricsAddr string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dissect: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var gf globalFlags
	cmd := &cobra.Command{
		Use:   "dissect",
		Short: "Decode captured packets into named protocol fields",
		Long: `dissect decodes raw packets into a tree of protocol layers with named,
typed attributes such as ipv4.src or tcp.flags.syn.

Packets are read from classic pcap files or given as hex strings.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := cmd.PersistentFlags()
	pf.StringVarP(&gf.configPath, "config", "c", "", "TOML session configuration file")
	pf.StringVar(&gf.logLevel, "log-level", "warn", "log level: trace, debug, info, warn or error")
	pf.StringVar(&gf.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, i.e. :9100")

	cmd.AddCommand(
		decodeCmd(&gf),
		streamCmd(&gf),
		tokensCmd(&gf),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dissect %s (%s)\n", version, commit)
			fmt.Fprintf(out, "%s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "trace":
		lvl = internal.LevelTrace
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn", "":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}
