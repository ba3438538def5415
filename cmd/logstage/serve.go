package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dd0wney/cluso-logstage/pkg/columnar"
	"github.com/dd0wney/cluso-logstage/pkg/config"
	"github.com/dd0wney/cluso-logstage/pkg/health"
	"github.com/dd0wney/cluso-logstage/pkg/logging"
	"github.com/dd0wney/cluso-logstage/pkg/metrics"
	"github.com/dd0wney/cluso-logstage/pkg/server"
	"github.com/dd0wney/cluso-logstage/pkg/staging"
	"github.com/dd0wney/cluso-logstage/pkg/writer"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingest server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			load := func() (*config.Config, error) {
				return loadConfig(configPath, cmd)
			}
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return run(ctx, cfg, load)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// loadConfig layers the config file, LOGSTAGE_* variables and flags, then
// validates the result.
func loadConfig(path string, cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// levelSetter is implemented by loggers whose level can change at runtime.
type levelSetter interface {
	SetLevel(logging.Level)
}

// run wires the staging pipeline and serves until ctx is done. On SIGHUP the
// configuration is reloaded and the log level applied; other settings need a
// restart.
func run(ctx context.Context, cfg *config.Config, reload func() (*config.Config, error)) error {
	logger := logging.New(logging.Format(cfg.LogFormat), cfg.Level())
	logging.SetDefaultLogger(logger)

	if err := os.MkdirAll(cfg.StagingDir, 0o755); err != nil {
		return fmt.Errorf("failed to create staging dir: %w", err)
	}

	comp := cfg.CompressionValue()
	opts := []staging.Option{
		staging.WithBucket(cfg.Bucket),
		staging.WithExtension(comp.Extension()),
	}
	if cfg.Host != "" {
		opts = append(opts, staging.WithHost(cfg.Host))
	}
	dir, err := staging.NewDir(cfg.StagingDir, opts...)
	if err != nil {
		return err
	}

	m := metrics.NewRegistry()
	registry, err := writer.NewRegistry(writer.Options{
		Resolver:   dir,
		Encoders:   columnar.NewIPCEncoderFactory(columnar.Options{Compression: comp}),
		BufferSize: cfg.BufferSize,
		Logger:     logger,
		Observer:   m,
	})
	if err != nil {
		return err
	}

	flusher, err := writer.NewFlusher(registry, cfg.FlushInterval, logger)
	if err != nil {
		return err
	}

	hc := health.NewHealthChecker()
	hc.Register("staging_dir", health.StagingDirCheck(dir.Root()), health.EndpointHealth|health.EndpointReady)
	hc.Register("writer_table", health.WriterTableCheck(registry.Check, func() int { return openWriters(registry) }),
		health.EndpointHealth|health.EndpointReady)
	hc.Register("memory", health.MemoryCheck(memoryUsage), health.EndpointHealth)
	hc.Register("process", func() health.Check { return health.SimpleCheck("process") }, health.EndpointLive)

	srv, err := server.New(server.Options{
		Addr:         cfg.ListenAddr,
		Registry:     registry,
		Health:       hc,
		Metrics:      m,
		Logger:       logger,
		MaxBodyBytes: cfg.MaxBodyBytes,
		StagingRoot:  dir.Root(),
	})
	if err != nil {
		return err
	}

	logger.Info("logstage starting",
		logging.String("staging_dir", dir.Root()),
		logging.String("listen", cfg.ListenAddr),
		logging.String("compression", string(comp)),
		logging.Duration("flush_interval", cfg.FlushInterval))

	flusher.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.ShutdownTimeout)
	})
	g.Go(func() error {
		watchReload(gctx, logger, reload)
		return nil
	})

	serveErr := g.Wait()
	// Stop runs a final flush so every staged file is readable after exit.
	stopErr := flusher.Stop()
	if stopErr != nil {
		logger.Error("final flush failed", logging.Error(stopErr))
	}
	logger.Info("logstage stopped")
	return errors.Join(serveErr, stopErr)
}

func watchReload(ctx context.Context, logger logging.Logger, reload func() (*config.Config, error)) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := reload()
			if err != nil {
				logger.Error("config reload failed", logging.Error(err))
				continue
			}
			if ls, ok := logger.(levelSetter); ok {
				ls.SetLevel(cfg.Level())
			}
			logger.Info("configuration reloaded", logging.String("log_level", cfg.LogLevel))
		}
	}
}

func openWriters(r *writer.Registry) int {
	infos, err := r.Snapshot()
	if err != nil {
		return 0
	}
	n := 0
	for _, info := range infos {
		if info.State == writer.SlotOpen.String() {
			n++
		}
	}
	return n
}

func memoryUsage() (alloc, sys uint64) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Alloc, ms.Sys
}
