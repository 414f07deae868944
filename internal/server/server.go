// Package server binds the kernel's handler to a port and shuts it down
// gracefully on SIGINT/SIGTERM.
package server

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/shashiranjanraj/drivegate/config"
	"github.com/shashiranjanraj/drivegate/internal/kernel"
	"github.com/shashiranjanraj/drivegate/pkg/logger"
)

// shutdownGrace bounds how long in-flight transfers get after a signal.
const shutdownGrace = 30 * time.Second

// Start loads config, builds the kernel and serves until interrupted.
func Start() error {
	if err := config.Load(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	k, err := kernel.New(ctx, kernel.FromEnv())
	if err != nil {
		return err
	}
	defer k.Close() //nolint:errcheck

	return Serve(ctx, k, ":"+config.Port())
}

// Serve runs k on addr until ctx ends, then drains connections.
func Serve(ctx context.Context, k *kernel.Kernel, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           k.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go k.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server: listening", "addr", addr, "driver", k.Driver().Name())
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server: stopped")
	return nil
}
