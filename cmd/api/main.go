package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"example.com/fitpulse/internal/api"
	"example.com/fitpulse/internal/auth"
	"example.com/fitpulse/internal/config"
	"example.com/fitpulse/internal/consumer"
	"example.com/fitpulse/internal/domain"
	"example.com/fitpulse/internal/googlefit"
	"example.com/fitpulse/internal/logging"
	"example.com/fitpulse/internal/outbox"
	"example.com/fitpulse/internal/persistence/memory"
	"example.com/fitpulse/internal/persistence/postgres"
	httptransport "example.com/fitpulse/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logging.Setup(logging.Params{
		Level:      cfg.LogLevel,
		FormatJSON: cfg.LogFormatJSON,
		FileName:   cfg.LogFile,
		Service:    "fitpulse-api",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fit := googlefit.NewClient(googlefit.Config{
		BaseURL: cfg.FitnessAPIBaseURL,
		Timeout: cfg.FitnessAPITimeout,
	}, log.WithField("component", "googlefit"))

	var (
		repo       domain.ActivityRepository
		dispatcher *outbox.Dispatcher
		ledger     *consumer.LedgerHandler
	)
	if cfg.PostgresURL == "" {
		log.Warn("POSTGRES_URL not set, keeping activities in memory")
		repo = memory.NewRepository()
	} else {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.WithError(err).Fatal("connect to postgres")
		}
		defer pool.Close()

		repo = postgres.NewRepository(pool)
		ledger = consumer.NewLedgerHandler(pool)

		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers, log.WithField("component", "kafka-producer"))
		defer producer.Close()
		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL, 10*time.Second)
		dispatcher = outbox.NewDispatcher(outbox.NewPGStore(pool), producer, registry,
			cfg.OutboxPollInterval, cfg.OutboxBatchSize,
			outbox.WithLogger(log.WithField("component", "outbox-dispatcher")))
		go dispatcher.Start(ctx)
	}

	service := domain.NewService(repo,
		domain.WithSessionSource(fit),
		domain.WithLogger(log.WithField("component", "activity-service")),
		domain.WithDefaultBodyWeight(cfg.DefaultBodyWeightKg),
		domain.WithImportWindow(cfg.ImportWindow),
	)

	handler := api.NewHandler(service, log.WithField("component", "api"))
	if ledger != nil {
		handler.WithLedger(ledger)
	}
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	limiter := httptransport.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log.WithField("component", "ratelimit"))
	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, nil)

	chain := httptransport.Chain(mux,
		httptransport.RequestLogger(log.WithField("component", "http")),
		httptransport.CORS(cfg.CORSAllowedOrigin),
		authMiddleware.Wrap,
		limiter.Handler,
	)
	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), chain)

	if err := httptransport.Serve(ctx, server, 15*time.Second, log); err != nil {
		log.WithError(err).Error("http server stopped")
		stop()
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
}
