package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/4lexvav/logkv/core"
	"github.com/4lexvav/logkv/internal/boltengine"
	"github.com/4lexvav/logkv/internal/config"
	"github.com/4lexvav/logkv/internal/httpapi"
	"github.com/4lexvav/logkv/internal/logging"
	"github.com/4lexvav/logkv/internal/marker"
	"github.com/4lexvav/logkv/internal/metrics"
	"github.com/4lexvav/logkv/internal/server"
	"github.com/4lexvav/logkv/pkg/kv"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	host := flag.String("host", "", "Listen host (overrides config)")
	port := flag.Int("port", 0, "Listen port (overrides config)")
	engineName := flag.String("engine", "", "Storage engine: log or bolt (overrides config)")
	dir := flag.String("dir", "", "Storage directory (overrides config)")
	workers := flag.Int("workers", 0, "Connection worker pool size (overrides config)")
	httpAddr := flag.String("http-addr", "", "HTTP API listen address (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus exporter address (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal("load config: %v", err)
	}

	applyFlagOverrides(cfg, *host, *port, *engineName, *dir, *workers, *httpAddr, *metricsAddr, *logLevel)
	if err := cfg.Validate(); err != nil {
		logging.Fatal("invalid config: %v", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		logging.Fatal("%v", err)
	}
	logging.SetLevel(level)

	if err := marker.CheckOrWrite(cfg.Dir, cfg.Engine); err != nil {
		logging.Fatal("%v", err)
	}

	engine, err := openEngine(cfg)
	if err != nil {
		logging.Fatal("open %s engine at %s: %v", cfg.Engine, cfg.Dir, err)
	}
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MetricsAddr != "" {
		metrics.StartExporter(cfg.MetricsAddr)
		if logEngine, ok := engine.(*core.LogEngine); ok {
			metrics.StartStatsLoop(ctx, logEngine.Stats, 10*time.Second)
		}
	}

	instrumented := metrics.NewInstrumentedEngine(engine)

	if cfg.HTTPAddr != "" {
		mux := http.NewServeMux()
		httpapi.NewServer(instrumented).RegisterRoutes(mux)
		go func() {
			logging.Info("HTTP API listening on %s", cfg.HTTPAddr)
			if err := http.ListenAndServe(cfg.HTTPAddr, mux); err != nil {
				logging.Error("HTTP API stopped: %v", err)
			}
		}()
	}

	srv := server.New(instrumented, cfg.Workers)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(ctx, cfg.Addr())
	}()

	logging.Info("starting server at %s with %s engine", cfg.Addr(), cfg.Engine)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logging.Info("shutting down")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			logging.Fatal("server stopped: %v", err)
		}
	}
}

func openEngine(cfg *config.Config) (kv.Engine, error) {
	switch cfg.Engine {
	case config.EngineBolt:
		return boltengine.Open(cfg.Dir)
	default:
		var opts []core.Option
		if cfg.SegmentSize > 0 {
			opts = append(opts, core.WithSegmentSize(cfg.SegmentSize))
		}
		if cfg.CompactionThreshold > 0 {
			opts = append(opts, core.WithCompactionThreshold(cfg.CompactionThreshold))
		}
		return core.Open(cfg.Dir, opts...)
	}
}

func applyFlagOverrides(cfg *config.Config, host string, port int, engine, dir string, workers int, httpAddr, metricsAddr, logLevel string) {
	if host != "" {
		cfg.Host = host
	}
	if port != 0 {
		cfg.Port = port
	}
	if engine != "" {
		cfg.Engine = engine
	}
	if dir != "" {
		cfg.Dir = dir
	}
	if workers != 0 {
		cfg.Workers = workers
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
}
