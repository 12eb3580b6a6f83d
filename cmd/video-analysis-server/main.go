// Command video-analysis-server runs the HTTP API, the durable worker pool,
// and the WebSocket progress hub described in spec §4 behind a single
// process (spec §4.3's single-binary deployment shape).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cricksy/video-analysis/internal/app"
	"github.com/cricksy/video-analysis/internal/common"
	"github.com/cricksy/video-analysis/internal/server"
)

func main() {
	configPath := os.Getenv("VIDEO_ANALYSIS_CONFIG")

	a, err := app.NewApp(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	common.PrintBanner(a.Config, a.Logger)

	shutdownChan := make(chan struct{}, 1)

	srv := server.NewServer(a)
	srv.SetShutdownChannel(shutdownChan)

	// Worker claim loops, orphan-recovery sweep, and the WebSocket hub's
	// event loop all run in the background for the process lifetime.
	a.Start()

	go func() {
		if err := srv.Start(); err != nil {
			a.Logger.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	a.Logger.Info().
		Str("addr", fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port)).
		Msg("video-analysis-server ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		a.Logger.Info().Msg("Shutdown signal received")
	case <-shutdownChan:
		a.Logger.Info().Msg("Shutdown requested via HTTP endpoint")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	a.Close()
	common.PrintShutdownBanner(a.Logger)
}
