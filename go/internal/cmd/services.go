package main

import (
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/oyunlab/quizgrid/go/internal/gamedb"
	"github.com/oyunlab/quizgrid/go/internal/gateway"
	"github.com/oyunlab/quizgrid/go/internal/housekeeping"
	"github.com/oyunlab/quizgrid/go/internal/match"
	"github.com/oyunlab/quizgrid/go/internal/presence"
	"github.com/oyunlab/quizgrid/go/internal/question"
	"github.com/oyunlab/quizgrid/go/internal/queue"
	"github.com/oyunlab/quizgrid/go/internal/service"
	"github.com/oyunlab/quizgrid/go/internal/sweeper"
)

type Services struct {
	Match        *match.App
	MatchRepo    *match.SQLRepository
	Queue        *queue.App
	API          *service.Service
	Sweeper      *sweeper.Sweeper
	Gateway      *gateway.Service
	Presence     *presence.Tracker
	Housekeeping *housekeeping.Runner
}

func setupServices(database *sql.DB, config *Config) (*Services, error) {
	// Database layer -> repository layer -> app layer -> transport layer.
	clock := clockwork.NewRealClock()
	logger := log.Logger

	questionRepo := question.NewRepository(gamedb.New(database))
	questionApp := question.NewApp(questionRepo, rand.New(rand.NewSource(time.Now().UnixNano())))

	matchRepo := match.NewSQLRepository(database, clock)
	matchApp := match.NewApp(matchRepo, questionApp, clock, config.matchConfig())

	queueRepo := queue.NewSQLRepository(database, clock)
	queueApp := queue.NewApp(queueRepo, matchApp, clock, config.queueConfig(), logger)

	matchSweeper := sweeper.New(matchApp, clock, sweeper.DefaultConfig(), logger)

	presenceTracker := presence.NewTracker(presence.Config{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvAsInt("REDIS_DB", 0),
	}, logger)

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.JetStreamConfig.URL = getEnv("NATS_URL", gatewayConfig.JetStreamConfig.URL)
	matchGateway, err := gateway.NewService(gatewayConfig, matchApp, presenceTracker, clock)
	if err != nil {
		return nil, fmt.Errorf("setup gateway: %w", err)
	}

	var verifier service.Verifier
	if authURL := getEnv("AUTH_URL", ""); authURL != "" {
		verifier = service.NewRemoteVerifier(authURL, getEnv("AUTH_SERVICE_TOKEN", ""))
	} else {
		log.Warn().Msg("AUTH_URL not set; using insecure token verifier")
		verifier = service.InsecureVerifier()
	}

	api := service.NewService(queueApp, matchApp, verifier, matchSweeper, logger)

	janitor, err := housekeeping.NewRunner(queueApp, matchRepo, config.housekeepingConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("setup housekeeping: %w", err)
	}

	return &Services{
		Match:        matchApp,
		MatchRepo:    matchRepo,
		Queue:        queueApp,
		API:          api,
		Sweeper:      matchSweeper,
		Gateway:      matchGateway,
		Presence:     presenceTracker,
		Housekeeping: janitor,
	}, nil
}
