package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soypat/dissect"
	"github.com/soypat/dissect/builtin"
	"github.com/soypat/dissect/format"
	"github.com/soypat/dissect/token"
)

// env is the state shared by commands that decode packets.
type env struct {
	cfg     config
	log     *slog.Logger
	session *dissect.Session
	fmt     format.Formatter
	metrics *http.Server
}

func newEnv(gf *globalFlags) (*env, error) {
	cfg, err := loadConfig(gf.configPath)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(gf.logLevel)
	if err != nil {
		return nil, err
	}
	tokens := token.NewRegistry()
	if cfg.maxTokens > 0 {
		tokens = token.NewRegistryLimit(cfg.maxTokens)
	}
	scfg := cfg.session
	scfg.Tokens = tokens
	scfg.Logger = log
	scfg.Root, err = tokens.Intern(cfg.root)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: log}
	if gf.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		scfg.Metrics = dissect.NewMetrics(dissect.MetricsConfig{Registry: reg})
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		e.metrics = &http.Server{Addr: gf.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			err := e.metrics.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics:serve", slog.String("addr", gf.metricsAddr), slog.String("err", err.Error()))
			}
		}()
		log.Info("metrics:listen", slog.String("addr", gf.metricsAddr))
	}
	e.session, err = builtin.NewSession(scfg, cfg.builtin)
	if err != nil {
		e.close()
		return nil, err
	}
	e.fmt = cfg.format
	e.fmt.Tokens = tokens
	for _, name := range cfg.formatLayers {
		tok, err := tokens.Intern(name)
		if err != nil {
			e.close()
			return nil, err
		}
		e.fmt.Layers = append(e.fmt.Layers, tok)
	}
	return e, nil
}

func (e *env) close() {
	if e.session != nil {
		e.session.Close()
	}
	if e.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		e.metrics.Shutdown(ctx)
	}
}
