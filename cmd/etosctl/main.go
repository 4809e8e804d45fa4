// etosctl queries the weekly sales dataset from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	defaults "github.com/xtxerr/etos/config"
	"github.com/xtxerr/etos/internal/errors"
	"github.com/xtxerr/etos/internal/logging"
	"github.com/xtxerr/etos/internal/sales"
	"github.com/xtxerr/etos/internal/sales/config"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// CLI flags
	cfgPath := flag.String("config", "etos.yaml", "config file path")
	dataDir := flag.String("data-dir", "", "data directory (overrides config)")
	salesRoot := flag.String("sales", "", "sales dataset root (overrides config)")
	mappingPath := flag.String("store-mapping", "", "store mapping file (overrides config)")
	engine := flag.String("engine", "", "scan engine: native or duckdb (overrides config)")
	workers := flag.Int("workers", 0, "concurrent partition scans (overrides config)")
	timeout := flag.Duration("timeout", 0, "scan timeout (overrides config)")
	skipCorrupt := flag.Bool("skip-corrupt", false, "skip unreadable partitions instead of failing")
	yearSource := flag.String("year-source", "", "series year: column or iso (overrides config)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	jsonLog := flag.Bool("json-log", false, "write logs as JSON")
	format := flag.String("format", "auto", "output format: auto, table or tsv")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address (shell only)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("etosctl %s\n", Version)
		return 0
	}

	// Load config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "etosctl: load config: %v\n", err)
			return int(errors.CodeInvalidRequest)
		}
		cfg = config.DefaultConfig()
	}

	// CLI overrides
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *salesRoot != "" {
		cfg.Datasets[defaults.DefaultSalesDataset] = *salesRoot
	}
	if *mappingPath != "" {
		cfg.StoreMapping.Path = *mappingPath
	}
	if *engine != "" {
		cfg.Scan.Engine = *engine
	}
	if *workers > 0 {
		cfg.Scan.Workers = *workers
	}
	if *timeout > 0 {
		cfg.Scan.Timeout = *timeout
	}
	if *skipCorrupt {
		cfg.Scan.SkipCorrupt = true
	}
	if *yearSource != "" {
		cfg.Calendar.YearSource = *yearSource
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *jsonLog {
		cfg.Logging.JSON = true
	}

	logging.Init(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.JSON)
	log := logging.Component("etosctl")

	out, err := newPrinter(os.Stdout, *format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "etosctl: %v\n", err)
		return int(errors.CodeInvalidRequest)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return int(errors.CodeInvalidRequest)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	eng, err := sales.New(cfg, sales.Options{Registerer: registry})
	if err != nil {
		fmt.Fprintf(os.Stderr, "etosctl: %v\n", err)
		return int(errors.ErrorToCode(err))
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.Warn("close engine", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if args[0] == "shell" {
		if *metricsAddr != "" {
			srv := serveMetrics(*metricsAddr, registry, log)
			defer srv.Close()
		}
		return runShell(ctx, eng, out)
	}

	start := time.Now()
	if err := execute(ctx, eng.Query(), out, args[0], args[1:]); err != nil {
		code := errors.ErrorToCode(err)
		fmt.Fprintf(os.Stderr, "etosctl: %s: %v\n", errors.CodeName(code), err)
		return int(code)
	}
	log.Debug("command finished", "command", args[0], "duration", time.Since(start))
	return 0
}

func serveMetrics(addr string, registry *prometheus.Registry, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	log.Info("serving metrics", "addr", addr)
	return srv
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: etosctl [flags] <command> [args]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-40s %s\n", c.usage(), c.help)
	}
	fmt.Fprintf(os.Stderr, "  %-40s %s\n", "shell", "interactive shell")
	fmt.Fprintf(os.Stderr, "\nflags:\n")
	flag.PrintDefaults()
}
