// tap holds one realtime connection open, exposes its health and metrics,
// and optionally archives every envelope to PostgreSQL.
// Usage: go run ./cmd/tap --config configs/tap.example.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/convoshop/realtime/internal/api"
	"github.com/convoshop/realtime/internal/archive"
	"github.com/convoshop/realtime/internal/bus"
	"github.com/convoshop/realtime/internal/config"
	"github.com/convoshop/realtime/internal/connection"
	"github.com/convoshop/realtime/internal/consumer"
	"github.com/convoshop/realtime/internal/database"
	"github.com/convoshop/realtime/internal/metrics"
	"github.com/convoshop/realtime/internal/registry"
	"github.com/convoshop/realtime/internal/transport"
	"github.com/convoshop/realtime/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/tap.example.yaml", "path to config file")
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting tap",
		version.Attr(),
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("tap failed", "err", err)
		os.Exit(1)
	}
	logger.Info("tap stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(promReg, cfg.Metrics.Namespace)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	conn, err := registry.Default.GetOrCreate(func() (*connection.Connection, error) {
		connCfg, err := cfg.ConnectionConfig(nil)
		if err != nil {
			return nil, err
		}
		client := api.NewClient(append(cfg.APIClientOptions(logger),
			api.WithUserAgent(version.UserAgent()+" tap/"+cfg.Instance.ID))...)
		return connection.New(connCfg,
			connection.WithLogger(logger),
			connection.WithAPIClient(client),
			connection.WithDiagnostics(bus.Tee(m.Diagnostics(nil), bus.LogDiagnostics(logger))),
		)
	})
	if err != nil {
		return fmt.Errorf("create connection: %w", err)
	}
	defer func() {
		conn.Close()
		select {
		case <-conn.Done():
		case <-time.After(5 * time.Second):
			logger.Warn("connection dispatcher did not drain")
		}
	}()

	defer m.Bind(conn)()

	indicator := consumer.NewStatusIndicator(conn)
	defer indicator.Stop()

	invalidator := consumer.NewInvalidator(logRefresher(logger), consumer.DefaultRules(),
		consumer.WithInvalidatorLogger(logger))
	invalidator.Attach(ctx, conn)

	conn.OnError(func(err error, kind transport.Kind) {
		logger.Warn("realtime failure", "transport", kind, "err", err)
	})

	if cfg.Archive.Enabled {
		stopArchive, err := startArchive(ctx, cfg, conn, logger)
		if err != nil {
			return err
		}
		defer stopArchive()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           newHandler(conn, indicator, metrics.Handler(promReg), cfg.Metrics.Path),
		ReadHeaderTimeout: 5 * time.Second,
	}

	conn.Connect()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", "addr", srv.Addr, "metrics_path", cfg.Metrics.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func startArchive(ctx context.Context, cfg *config.Config, conn *connection.Connection, logger *slog.Logger) (func(), error) {
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)
	pool, err := database.Connect(ctx, cfg.Database, "realtime-tap "+cfg.Instance.ID)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := archive.EnsureTable(ctx, pool, cfg.Archive.Table); err != nil {
		pool.Close()
		return nil, err
	}

	w := archive.NewWriter(archive.Config{
		Table:         cfg.Archive.Table,
		BatchSize:     cfg.Archive.BatchSize,
		FlushInterval: cfg.Archive.FlushInterval,
	}, pool, logger)
	if err := w.Start(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	detach := w.Attach(conn)

	return func() {
		detach()
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := w.Stop(stopCtx); err != nil {
			logger.Error("archive stop failed", "err", err)
		}
		stats := w.Stats()
		logger.Info("archive closed",
			"received", stats.Received,
			"inserted", stats.Inserted,
			"errors", stats.Errors,
		)
		pool.Close()
	}, nil
}

// logRefresher stands in for a cache layer: tap has nothing to refresh, so
// it records what a dashboard would reload.
func logRefresher(logger *slog.Logger) consumer.Refresher {
	return consumer.RefresherFunc(func(_ context.Context, resource, id string) error {
		logger.Info("cache invalidated", "resource", resource, "id", id)
		return nil
	})
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
