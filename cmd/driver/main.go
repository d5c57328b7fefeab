package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"horizon-bridge/internal/adapters/input/ucremote"
	"horizon-bridge/internal/adapters/output/horizon"
	"horizon-bridge/internal/adapters/output/persistence"
	"horizon-bridge/internal/domain/service"
	"horizon-bridge/internal/domain/setup"
)

func main() {
	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	addr := flag.String("listen", ":9090", "Host websocket listen address")
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configRepo := persistence.NewJSONConfigRepository(configPath)
	store := service.NewCredentialStore(configRepo)
	if err := store.Reload(ctx); err != nil {
		log.Error().Err(err).Str("path", configPath).
			Msg("failed to load configuration, starting unconfigured")
	}

	server := ucremote.NewServer()

	controller := service.NewController(store, horizon.Factory(horizon.Options{}), server)
	defer controller.Close()

	// Setup runs against a short readiness window: it is interactive.
	trialFactory := horizon.Factory(horizon.Options{ReadyTimeout: 5 * time.Second})
	flow := setup.NewFlow(store, trialFactory)

	server.Bind(controller, flow)

	// Pre-initialize entities from the persisted configuration so a host
	// subscribing right after boot finds them ready.
	controller.Start(ctx)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		log.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
	}()

	if err := server.Run(ctx, *addr); err != nil {
		log.Fatal().Err(err).Msg("host endpoint failed")
	}
}
