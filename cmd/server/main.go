package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rustradar/rustradar/internal/app"
	"github.com/rustradar/rustradar/internal/config"
	"github.com/rustradar/rustradar/internal/logging"
)

func main() {
	cfg := config.Load()

	a := app.New(cfg)
	logger := a.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Shutdown signal received", logging.WithField("signal", sig.String()))
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		done := make(chan struct{})
		go func() {
			a.Shutdown(shutdownCtx)
			a.Scheduler.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(cfg.Server.ShutdownTimeout):
			logger.Error("Shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	if err := a.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("HTTP server error", logging.WithField("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Shutdown complete")
}
