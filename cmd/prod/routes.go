package main

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	generate_excel "prod-tracker/http-server/generate-report/generate-excel"
	gethourly "prod-tracker/http-server/hourly/get"
	removehourly "prod-tracker/http-server/hourly/remove"
	savehourly "prod-tracker/http-server/hourly/save"
	uphourly "prod-tracker/http-server/hourly/update"
	"prod-tracker/http-server/import/commit"
	"prod-tracker/http-server/import/validate"
	getreports "prod-tracker/http-server/reports/get"
	snapshotrun "prod-tracker/http-server/snapshot/run"
	gettargets "prod-tracker/http-server/targets/get"
	savetargets "prod-tracker/http-server/targets/save"
	"prod-tracker/internal/config"
	"prod-tracker/internal/middleware/auth"
	"prod-tracker/internal/storage/mysql"
)

func routes(cfg config.Config, log *slog.Logger, storage *mysql.Storage, svc services) *chi.Mux {
	router := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	router.Use(corsHandler.Handler)

	router.Use(middleware.RequestID)
	//ip пользователя
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// Почасовые факты
	router.Route("/api/hourly", func(r chi.Router) {
		r.Get("/", gethourly.ListHourlyFacts(log, svc.hourly, svc.clock))
		r.Post("/", savehourly.CreateHourlyFact(log, svc.hourly))
		r.Get("/{id}", gethourly.GetHourlyFact(log, svc.hourly))
		r.Put("/{id}", uphourly.UpdateHourlyFact(log, svc.hourly))
		r.Delete("/{id}", removehourly.DeleteHourlyFact(log, svc.hourly))
	})

	router.Get("/api/targets/resolve", gettargets.ResolveTarget(log, svc.resolver, svc.clock))

	// Отчеты
	router.Route("/api/reports", func(r chi.Router) {
		r.Get("/by-group", getreports.ByGroup(log, svc.aggregate, svc.clock))
		r.Get("/by-production", getreports.ByProduction(log, svc.aggregate, svc.clock))
		r.Get("/hourly-by-group", getreports.HourlyByGroup(log, svc.aggregate, svc.clock))
		r.Get("/hourly-by-production", getreports.HourlyByProduction(log, svc.aggregate, svc.clock))
		r.Get("/weekly-by-group", getreports.WeeklyByGroup(log, svc.aggregate, svc.clock))
		r.Get("/daily-summary", getreports.DailySummary(log, svc.aggregate, svc.clock))
		r.Get("/dashboard", getreports.Dashboard(log, svc.aggregate, svc.clock))
	})

	router.Get("/api/report/excel", generate_excel.GenerateReportExcel(log, svc.excel, svc.clock))

	router.Post("/api/import/validate", validate.ValidateImport(log, svc.importer, cfg.Import.MaxFileSize))

	adminRouter := chi.NewRouter()
	adminRouter.Use(auth.BasicAuth(cfg.AdminLogin, cfg.AdminPass))

	adminRouter.Put("/targets", savetargets.UpsertDailyTargets(log, storage))
	adminRouter.Post("/import/commit", commit.CommitImport(log, svc.importer, cfg.Import.MaxFileSize))
	adminRouter.Post("/snapshot/run", snapshotrun.RunSnapshot(log, svc.snapshot, svc.clock, cfg.Snapshot.LookbackDays))

	router.Mount("/api/admin", adminRouter)

	return router
}
