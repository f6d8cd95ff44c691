package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/docker/go-units"
	"github.com/soypat/dissect"
	"github.com/soypat/dissect/builtin"
	"github.com/soypat/dissect/format"
)

type fileConfig struct {
	Root              string            `toml:"root"`
	MaxDepth          int               `toml:"max_depth"`
	Workers           int               `toml:"workers"`
	Ordered           bool              `toml:"ordered"`
	ValidateChecksums bool              `toml:"validate_checksums"`
	ValidateEvilBit   bool              `toml:"validate_evil_bit"`
	MaxTokens         uint64            `toml:"max_tokens"`
	MaxFrameSize      string            `toml:"max_frame_size"`
	Disabled          []string          `toml:"disabled"`
	EthernetFCS       bool              `toml:"ethernet_fcs"`
	DNSMaxRecords     int               `toml:"dns_max_records"`
	UDPPorts          map[string]string `toml:"udp_ports"`
	Format            formatFileConfig  `toml:"format"`
}

type formatFileConfig struct {
	Indent      string   `toml:"indent"`
	AttrSep     string   `toml:"attr_sep"`
	AttrLimit   int      `toml:"attr_limit"`
	MaxBytes    int      `toml:"max_bytes"`
	HideMembers bool     `toml:"hide_members"`
	Layers      []string `toml:"layers"`
}

// config is the resolved CLI configuration.
type config struct {
	session      dissect.SessionConfig
	builtin      builtin.Config
	format       format.Formatter
	root         string
	formatLayers []string
	maxTokens    uint64
	maxFrameSize int64
}

func defaultConfig() config {
	return config{
		session:      dissect.SessionConfig{Ordered: true},
		root:         "eth",
		maxFrameSize: 256 * units.KiB,
	}
}

// loadConfig returns the default configuration overridden by the keys
// defined in the TOML file at path. An empty path returns the defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("root") {
		cfg.root = strings.TrimSpace(raw.Root)
	}
	if meta.IsDefined("max_depth") {
		cfg.session.MaxDepth = raw.MaxDepth
	}
	if meta.IsDefined("workers") {
		cfg.session.Workers = raw.Workers
	}
	if meta.IsDefined("ordered") {
		cfg.session.Ordered = raw.Ordered
	}
	if raw.ValidateChecksums {
		cfg.session.ValidateFlags |= dissect.ValidateChecksums
	}
	if raw.ValidateEvilBit {
		cfg.session.ValidateFlags |= dissect.ValidateEvilBit
	}
	if meta.IsDefined("max_tokens") {
		cfg.maxTokens = raw.MaxTokens
	}
	if meta.IsDefined("max_frame_size") {
		cfg.maxFrameSize, err = units.RAMInBytes(raw.MaxFrameSize)
		if err != nil {
			return config{}, fmt.Errorf("parse max_frame_size: %w", err)
		}
	}

	cfg.builtin.Disabled = raw.Disabled
	cfg.builtin.EthernetFCS = raw.EthernetFCS
	cfg.builtin.DNSMaxRecords = raw.DNSMaxRecords
	if meta.IsDefined("udp_ports") {
		cfg.builtin.UDPPorts = make(map[uint16]string, len(raw.UDPPorts))
		for port, proto := range raw.UDPPorts {
			p, err := strconv.ParseUint(port, 10, 16)
			if err != nil {
				return config{}, fmt.Errorf("parse udp_ports: %w", err)
			}
			cfg.builtin.UDPPorts[uint16(p)] = proto
		}
	}

	cfg.format = format.Formatter{
		Indent:      raw.Format.Indent,
		AttrSep:     raw.Format.AttrSep,
		AttrLimit:   raw.Format.AttrLimit,
		MaxBytes:    raw.Format.MaxBytes,
		HideMembers: raw.Format.HideMembers,
	}
	cfg.formatLayers = raw.Format.Layers
	return cfg, nil
}
