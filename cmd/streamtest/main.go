// streamtest opens a realtime connection and prints every envelope to the
// console.
// Usage: go run ./cmd/streamtest --config configs/tap.example.yaml
//
// Useful environment variables:
//
//	REALTIME_TOKEN              - session token, overrides auth.token
//	REALTIME_CHANNEL            - channel, overrides auth.channel
//	REALTIME_DISABLE_TRANSPORTS - e.g. "websocket" to exercise the fallback
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/convoshop/realtime/internal/api"
	"github.com/convoshop/realtime/internal/bus"
	"github.com/convoshop/realtime/internal/config"
	"github.com/convoshop/realtime/internal/connection"
	"github.com/convoshop/realtime/internal/transport"
)

func main() {
	configPath := flag.String("config", "configs/tap.example.yaml", "path to config file")
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	force := flag.String("transport", "", "pin one transport (websocket, sse, polling)")
	emit := flag.String("emit", "", "event to send once connected")
	emitData := flag.String("data", "{}", "JSON data for --emit")
	count := flag.Int("count", 0, "exit after this many envelopes (0 = run until interrupted)")
	verbose := flag.Bool("verbose", false, "print full envelope JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Error("failed to load env file", "path", *envFile, "err", err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	connCfg, err := cfg.ConnectionConfig(nil)
	if err != nil {
		logger.Error("invalid connection config", "err", err)
		os.Exit(1)
	}

	conn, err := connection.New(connCfg,
		connection.WithLogger(logger),
		connection.WithAPIClient(api.NewClient(cfg.APIClientOptions(logger)...)),
	)
	if err != nil {
		logger.Error("failed to create connection", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("capabilities", "detected", conn.Capabilities())

	var emitted atomic.Bool
	conn.OnStatusChange(func(s connection.Status, kind transport.Kind) {
		fmt.Printf("[STATUS] %s via %s\n", s, kind)
		if s == connection.StatusConnected && *emit != "" && emitted.CompareAndSwap(false, true) {
			go send(ctx, conn, *emit, *emitData, logger)
		}
	})
	conn.OnError(func(err error, kind transport.Kind) {
		fmt.Printf("[ERROR] %s: %v (auth=%t)\n", kind, err, transport.IsAuth(err))
	})

	var received atomic.Int64
	conn.OnAny(func(env bus.Envelope) {
		n := received.Add(1)
		printEnvelope(env, *verbose)
		if *count > 0 && n >= int64(*count) {
			cancel()
		}
	})

	if *force != "" {
		kind, err := transport.ParseKind(*force)
		if err == nil {
			err = conn.ForceTransport(kind)
		}
		if err != nil {
			logger.Error("cannot force transport", "transport", *force, "err", err)
			os.Exit(1)
		}
	} else {
		conn.Connect()
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := conn.Snapshot()
				logger.Info("stats",
					"status", snap.Status,
					"transport", snap.Transport,
					"attempts", snap.Attempts,
					"switches", snap.Switches,
					"errors", snap.Errors,
					"received", received.Load(),
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")
	conn.Close()
	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
	}

	logger.Info("shutdown complete", "received", received.Load())
}

func send(ctx context.Context, conn *connection.Connection, event, data string, logger *slog.Logger) {
	raw := json.RawMessage(data)
	if !json.Valid(raw) {
		logger.Error("--data is not valid JSON", "data", data)
		return
	}
	postCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.Post(postCtx, event, raw); err != nil {
		logger.Error("emit failed", "event", event, "err", err)
		return
	}
	fmt.Printf("[SENT] %s via %s\n", event, conn.Transport())
}

func printEnvelope(env bus.Envelope, verbose bool) {
	if verbose {
		data, _ := json.MarshalIndent(env, "", "  ")
		fmt.Printf("[EVENT] %s\n", data)
		return
	}
	fmt.Printf("[EVENT] %s %d bytes\n", env.Event, len(env.Data))
}
