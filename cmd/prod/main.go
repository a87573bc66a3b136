package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prod-tracker/internal/config"
	"prod-tracker/internal/lib/logger"
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/service/aggregate"
	generate_excel "prod-tracker/internal/service/generate-excel"
	"prod-tracker/internal/service/hourly"
	"prod-tracker/internal/service/importer"
	"prod-tracker/internal/service/snapshot"
	"prod-tracker/internal/service/target"
	"prod-tracker/internal/storage/mysql"
)

type services struct {
	clock     timeanchor.Clock
	resolver  *target.Resolver
	hourly    *hourly.Service
	aggregate *aggregate.Service
	importer  *importer.Importer
	snapshot  *snapshot.Job
	excel     *generate_excel.GenerateExcelService
}

func main() {
	cfg := config.MustConfig()

	log := logger.Setup(cfg.Env, cfg.ErrorLog)

	storage, err := mysql.New(*cfg)
	if err != nil {
		log.Error("failed to open db", logger.Err(err))
		os.Exit(1)
	}
	defer storage.Close()

	resolver := target.NewResolver(storage)
	hourlyService := hourly.NewService(log, storage, resolver)
	aggregateService := aggregate.NewService(log, storage, resolver)

	svc := services{
		clock:     timeanchor.SystemClock{},
		resolver:  resolver,
		hourly:    hourlyService,
		aggregate: aggregateService,
		importer:  importer.New(log, storage, hourlyService, cfg.Import.MaxRows),
		snapshot:  snapshot.NewJob(log, storage, cfg.Snapshot.Workers),
		excel:     generate_excel.NewGenerateService(aggregateService),
	}

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      routes(*cfg, log, storage, svc),
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout * 3,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server started", slog.String("address", cfg.Address), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed start server", logger.Err(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop server", logger.Err(err))
	}

	log.Info("server stopped")
}
