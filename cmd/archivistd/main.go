// archivistd archives the events of every configured channel.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xtxerr/archivist/internal/archive"
	"github.com/xtxerr/archivist/internal/bot"
	"github.com/xtxerr/archivist/internal/bus"
	"github.com/xtxerr/archivist/internal/bus/natsbus"
	"github.com/xtxerr/archivist/internal/errors"
	"github.com/xtxerr/archivist/internal/loader"
	"github.com/xtxerr/archivist/internal/logging"
	promadapter "github.com/xtxerr/archivist/internal/metrics/prometheus"
	pebblestore "github.com/xtxerr/archivist/internal/storage/pebble"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// CLI flags
	cfgPath := flag.String("config", "", "config file path")
	archiveDir := flag.String("archive-dir", "", "archive directory (overrides config)")
	metricsListen := flag.String("metrics", "", "metrics listen address (overrides config)")
	watch := flag.Bool("watch", false, "watch config for changes")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "archivistd: %v\n", err)
		os.Exit(2)
	}

	// CLI overrides
	if *archiveDir != "" {
		cfg.ArchiveDir = *archiveDir
	}
	if *metricsListen != "" {
		cfg.Metrics.Listen = *metricsListen
	}
	if err := loader.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "archivistd: %v\n", err)
		os.Exit(2)
	}

	logging.Init(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.JSON)
	log := logging.Component("archivistd")
	log.Info("Starting", "version", Version, "bot", cfg.BotName)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *cfgPath, *watch, log); err != nil {
		log.Error("Fatal", "error", err)
		os.Exit(1)
	}
	log.Info("Stopped")
}

// loadConfig reads path, falling back to defaults when no file is given,
// and applies the environment overlay.
func loadConfig(path string) (*loader.Config, error) {
	cfg := loader.DefaultConfig()
	if path != "" {
		var err error
		cfg, err = loader.Load(path)
		if err != nil {
			return nil, err
		}
	}
	loader.FromEnv(cfg)
	return cfg, nil
}

func run(ctx context.Context, cfg *loader.Config, cfgPath string, watch bool, log *slog.Logger) error {
	// =========================================================================
	// Archive Storage
	// =========================================================================

	dir, err := archive.EnsureDir(cfg.ArchiveDir)
	if err != nil {
		return errors.Wrap(err, "archive directory")
	}
	log.Info("Archive directory ready", "dir", dir, "backend", cfg.Backend)

	opener, closeBackend, err := openBackend(cfg, dir)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeBackend(); err != nil {
			log.Warn("Close archive backend", "error", err)
		}
	}()

	pathFunc, ok := archive.PathFuncFor(cfg.Partition, cfg.PartitionKey)
	if !ok {
		return errors.NewInvalidValue("partition", cfg.Partition, "unknown partition")
	}

	// =========================================================================
	// Metrics
	// =========================================================================

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	archiveMetrics := promadapter.NewArchiveMetrics(reg)
	botMetrics := promadapter.NewBotMetrics(reg)

	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			log.Info("Metrics server starting", "listen", cfg.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("Metrics server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	// =========================================================================
	// Bus
	// =========================================================================

	b, err := openBus(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	// =========================================================================
	// Bot
	// =========================================================================

	archiver, err := archive.New(archive.Options{
		Opener:        opener,
		PathFunc:      pathFunc,
		FlushInterval: cfg.FlushInterval.Duration(),
		Metrics:       archiveMetrics,
	})
	if err != nil {
		return err
	}

	svc, err := bot.New(bot.Config{
		Name:        cfg.BotName,
		Bus:         b,
		Archiver:    archiver,
		GracePeriod: cfg.GracePeriod.Duration(),
		Metrics:     botMetrics,
	})
	if err != nil {
		return err
	}
	defer func() {
		svc.Close()
		stats := archiver.Stats()
		log.Info("Archives closed",
			"records", stats.RecordsWritten,
			"bytes", stats.BytesWritten,
			"errors", stats.Errors,
		)
	}()

	if err := svc.SetChannels(cfg.Channels); err != nil {
		log.Warn("Some channels were not joined", "error", err)
	}
	log.Info("Archiving", "channels", len(cfg.Channels))

	// Watch config for changes
	if watch && cfgPath != "" {
		watcher := loader.NewWatcher(cfgPath, func(next *loader.Config, err error) {
			if err != nil {
				return
			}
			if err := svc.SetChannels(next.Channels); err != nil {
				log.Warn("Some channels were not joined", "error", err)
			}
		})
		if err := watcher.Start(); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	<-ctx.Done()
	log.Info("Shutting down...")
	return nil
}

// openBackend returns the archive opener selected by cfg.Backend and the
// function releasing it.
func openBackend(cfg *loader.Config, dir string) (archive.Opener, func() error, error) {
	switch cfg.Backend {
	case "pebble":
		store, err := pebblestore.Open(pebblestore.Options{
			DataDir: filepath.Join(dir, "pebble"),
			Sync:    archive.SyncMode(cfg.SyncMode) == archive.SyncFsync,
		})
		if err != nil {
			return nil, nil, errors.Wrap(err, "open pebble store")
		}
		return store, store.Close, nil

	case "file", "":
		opts := archive.DefaultFileOptions()
		opts.SyncMode = archive.SyncMode(cfg.SyncMode)
		opener, err := archive.NewFileOpener(dir, opts)
		if err != nil {
			return nil, nil, err
		}
		return opener, func() error { return nil }, nil

	default:
		return nil, nil, errors.NewInvalidValue("backend", cfg.Backend, "must be file or pebble")
	}
}

// openBus returns the bus selected by cfg.Bus.Kind.
func openBus(cfg *loader.Config) (bus.Bus, error) {
	switch cfg.Bus.Kind {
	case "nats":
		connect := natsbus.ConnectDefault()
		if cfg.Bus.URL != "" {
			connect = natsbus.ConnectURL(cfg.Bus.URL)
		}
		b, err := natsbus.New(natsbus.Config{
			Connect:       connect,
			SubjectPrefix: cfg.Bus.SubjectPrefix,
			Buffer:        cfg.Bus.Buffer,
		})
		if err != nil {
			return nil, errors.Wrap(err, "connect nats")
		}
		return b, nil

	case "memory", "":
		return bus.NewMemory(cfg.Bus.Buffer), nil

	default:
		return nil, errors.NewInvalidValue("bus.kind", cfg.Bus.Kind, "must be memory or nats")
	}
}
