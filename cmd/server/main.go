package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ekurt/tour-operator-core/internal/config"
	"github.com/ekurt/tour-operator-core/internal/database"
	"github.com/ekurt/tour-operator-core/internal/handler"
	"github.com/ekurt/tour-operator-core/internal/pricing"
	"github.com/ekurt/tour-operator-core/internal/queue"
	"github.com/ekurt/tour-operator-core/internal/repository"
	"github.com/ekurt/tour-operator-core/internal/router"
)

func main() {
	// .env is for local development; deployed environments set vars directly
	_ = godotenv.Load()
	cfg := config.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn().Msg("redis unavailable, cache and rate limiting disabled")
	}

	serviceRepo := repository.NewServiceRepo(db)
	variationRepo := repository.NewVariationRepo(db)
	itineraryRepo := repository.NewItineraryRepo(db)
	agentRepo := repository.NewAgentRepo(db)
	invoiceRepo := repository.NewInvoiceRepo(db)

	resolver := pricing.NewResolver(variationRepo)

	catalog := handler.NewCatalogHandler(serviceRepo, variationRepo, resolver)
	quotes := handler.NewQuoteHandler(itineraryRepo)
	agents := handler.NewAgentHandler(agentRepo)
	invoices := handler.NewInvoiceHandler(invoiceRepo)
	reports := handler.NewReportHandler(invoiceRepo, itineraryRepo)

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e)
	router.RegisterAPI(e, cfg.JWTSecret, rdb, catalog, quotes, agents, invoices, reports)

	// audit consumer runs for the lifetime of the process and reconnects on
	// broker failure
	go func() {
		if err := queue.StartFinanceConsumer(log.Logger); err != nil {
			log.Error().Err(err).Msg("finance consumer stopped")
		}
	}()

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
	if err := e.Start(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
