package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/careops/billing-service/internal/config"
	"github.com/careops/billing-service/internal/events"
	"github.com/careops/billing-service/internal/events/kafka"
	"github.com/careops/billing-service/internal/interfaces"
	"github.com/careops/billing-service/internal/ledger"
	"github.com/careops/billing-service/internal/server"
	"github.com/careops/billing-service/internal/storage/memory"
	"github.com/careops/billing-service/internal/storage/postgres"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "billing-service").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Collaborators exchange amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	ctx := context.Background()

	var store interfaces.BillStore
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open database")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to reach database")
		}

		pg := postgres.NewStore(db)
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate schema")
		}
		store = pg
		logger.Info().Msg("connected to postgres")
	} else {
		store = memory.NewStore()
		logger.Warn().Msg("DATABASE_URL not set, using in-memory store")
	}

	var publisher interfaces.EventPublisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka publisher enabled")
	}

	billingLedger := ledger.NewLedger(store, publisher, ledger.TaxPolicy{Rate: cfg.TaxRate}, logger)
	srv := server.New(billingLedger, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("tax_rate", cfg.TaxRate.String()).Msg("starting server")
		if err := srv.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
}
