// Command executor runs the aqueducts remote pipeline executor: a
// standalone HTTP/WebSocket server or a managed-mode orchestrator client,
// depending on --mode.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/aqueducts-executor/pkg/api"
	"github.com/codeready-toolchain/aqueducts-executor/pkg/config"
	"github.com/codeready-toolchain/aqueducts-executor/pkg/coordination"
	"github.com/codeready-toolchain/aqueducts-executor/pkg/engine"
	"github.com/codeready-toolchain/aqueducts-executor/pkg/engine/pgdriver"
	"github.com/codeready-toolchain/aqueducts-executor/pkg/execution"
	"github.com/codeready-toolchain/aqueducts-executor/pkg/protocol"
	"github.com/codeready-toolchain/aqueducts-executor/pkg/version"
)

func main() {
	if err := run(); err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	log.Printf("starting %s (mode=%s, bind=%s)", version.Full(), cfg.Mode, cfg.BindAddress)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue := execution.NewQueue()
	manager := execution.NewManager(queue, logger)
	drivers := engine.NewDriverRegistry()
	drivers.RegisterSourceDriver(protocol.SourceKindDatabase, pgdriver.Driver{})
	drivers.RegisterDestinationDriver(protocol.DestinationKindDatabase, pgdriver.Driver{})
	runner := execution.NewRunner(drivers)

	manager.Start(ctx)

	errCh := make(chan error, 1)

	switch cfg.Mode {
	case config.ModeStandalone:
		srv := api.NewServer(api.Options{SharedSecret: cfg.SharedSecret}, manager, queue, runner, logger)
		httpServer := &http.Server{Addr: cfg.BindAddress, Handler: srv.Handler()}
		go func() {
			log.Printf("listening on %s", cfg.BindAddress)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()

		<-ctx.Done()
		log.Printf("shutdown signal received, stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("http server shutdown error: %v", err)
		}

	case config.ModeManaged:
		coord := coordination.New(coordination.Config{
			OrchestratorURL: cfg.OrchestratorURL,
			SharedSecret:    cfg.SharedSecret,
			ExecutorID:      cfg.ExecutorID,
		}, manager, queue, runner, logger)
		go coord.Run(ctx)

		<-ctx.Done()
		log.Printf("shutdown signal received, stopping")
	}

	manager.Wait()

	select {
	case err := <-errCh:
		return err
	default:
	}

	log.Printf("shutdown complete")
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
