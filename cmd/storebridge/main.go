package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/storebridge/storebridge/internal/app"
	"github.com/storebridge/storebridge/internal/batch"
	"github.com/storebridge/storebridge/internal/observability"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}
	switch {
	case command == "help" || command == "-h" || command == "--help":
		printUsage(os.Stdout)
		return 0
	case command != "serve" && !slices.Contains(batch.Commands, command):
		printUsage(os.Stderr)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}
	logger := app.NewLogger(cfg)

	services, err := app.BuildServices(ctx, cfg, logger, app.BuildOptions{})
	if err != nil {
		logger.Error("build services", slog.Any("error", err))
		return 1
	}
	defer services.Close()

	if command != "serve" {
		return runCLI(ctx, services.Runner, cliOptions{Command: command, Args: args, Stdout: os.Stdout, Stderr: os.Stderr})
	}
	return serve(ctx, stop, services)
}

func serve(ctx context.Context, stop context.CancelFunc, services *app.Services) int {
	cfg, logger := services.Config, services.Logger

	router, err := services.Router(observability.NewMetrics())
	if err != nil {
		logger.Error("build router", slog.Any("error", err))
		return 1
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return 1
	}
	return 0
}
