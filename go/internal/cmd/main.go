package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/oyunlab/quizgrid/go/internal/outbox"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("LOG_PRETTY") != "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	config, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	database, err := setupDatabase()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up database")
	}
	defer database.Close()

	services, err := setupServices(database, config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}
	defer services.Presence.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Outbox relay: match events written in engine transactions get
	// published to JetStream from here.
	publisherConfig := outbox.DefaultJetStreamConfig()
	publisherConfig.URL = getEnv("NATS_URL", publisherConfig.URL)
	publisher, err := outbox.NewJetStreamPublisher(ctx, publisherConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}
	defer publisher.Close()

	relay := outbox.NewWorker(database, publisher, outbox.DefaultWorkerConfig())
	if err := relay.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start outbox relay")
	}
	defer relay.Stop()

	go func() {
		if err := services.Sweeper.Run(ctx); err != nil {
			log.Error().Err(err).Msg("sweeper exited")
		}
	}()

	go func() {
		if err := services.Gateway.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway exited")
		}
	}()

	if err := services.Housekeeping.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start housekeeping")
	}
	defer func() {
		if err := services.Housekeeping.Stop(); err != nil {
			log.Error().Err(err).Msg("housekeeping shutdown failed")
		}
	}()

	server := setupServer(services)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
