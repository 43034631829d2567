package main

import (
	"context"
	"fmt"
	"os"

	"deviation-service/internal/auth"
	"deviation-service/internal/config"
	"deviation-service/internal/db"
	httphandler "deviation-service/internal/http"
	"deviation-service/internal/http/middleware"
	"deviation-service/internal/logger"
	"deviation-service/internal/repository"
	"deviation-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	deviationRepo := repository.NewDeviationRepository(database)
	sequenceRepo := repository.NewSequenceRepository(database)
	reportRepo := repository.NewReportRepository(database)

	deviationService := service.NewDeviationService(deviationRepo, sequenceRepo, cfg.Files.MaxAttachmentsPerRecord)
	reportService := service.NewReportService(deviationRepo, reportRepo, cfg.List.DefaultPageSize, cfg.List.MaxPageSize)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)

	handler := httphandler.NewHandler(deviationService, reportService, log, cfg.Environment)
	ping := func(ctx context.Context) error { return db.HealthCheck(ctx, database) }
	router := httphandler.NewRouter(handler, middleware.Auth(tokenParser), ping, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting deviation approval service")

	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
