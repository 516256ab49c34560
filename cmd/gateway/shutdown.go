package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/loangw/internal/config"
	"github.com/vyrodovalexey/loangw/internal/observability"
)

// runGateway runs the gateway and handles shutdown.
func runGateway(app *application, logger observability.Logger) {
	if err := app.gateway.Start(context.Background()); err != nil {
		app.release(context.Background(), logger)
		fatalWithSync(logger, "failed to start gateway", observability.Error(err))
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	waitForShutdown(app, sigCh, logger)
}

// waitForShutdown blocks until a signal arrives, then stops the gateway and
// releases the rate limit store and tracer.
func waitForShutdown(app *application, sigCh <-chan os.Signal, logger observability.Logger) {
	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	timeout := app.config.Server.ShutdownTimeout.Duration()
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.gateway.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop gateway gracefully", observability.Error(err))
	}

	if app.limiter != nil {
		if err := app.limiter.Close(); err != nil {
			logger.Error("failed to close rate limit store", observability.Error(err))
		}
	}

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("gateway stopped")
}
