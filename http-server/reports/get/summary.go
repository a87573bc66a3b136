package get

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"prod-tracker/http-server/request"
	"prod-tracker/http-server/response"
	"prod-tracker/internal/lib/pagination"
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/service/aggregate"
)

type ResponseSummary struct {
	response.Response
	aggregate.DailySummary
}

type ResponseDashboard struct {
	response.Response
	aggregate.Dashboard
}

type SummaryReporter interface {
	DailySummary(ctx context.Context, date time.Time, productionID *int64, page pagination.Params) (aggregate.DailySummary, error)
}

type DashboardReporter interface {
	Dashboard(ctx context.Context, date time.Time) (aggregate.Dashboard, error)
}

func DailySummary(log *slog.Logger, rep SummaryReporter, clock timeanchor.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.reports.get.DailySummary"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		date, err := request.Date(r, "date", clock)
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}
		productionID, err := request.OptionalID(r, "production_id")
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}

		page := pagination.Params{}
		if r.URL.Query().Get("page") != "" || r.URL.Query().Get("per_page") != "" {
			page = pagination.Parse(r, "production", "asc", pagination.DefaultOpts)
		} else {
			page.SortBy = r.URL.Query().Get("sort_by")
			page.SortOrder = r.URL.Query().Get("order")
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		res, err := rep.DailySummary(ctx, date, productionID, page)
		if err != nil {
			response.Fail(w, r, log, fmt.Errorf("%s: %w", op, err))
			return
		}

		render.JSON(w, r, ResponseSummary{Response: response.Response{Status: response.StatusOK}, DailySummary: res})
	}
}

func Dashboard(log *slog.Logger, rep DashboardReporter, clock timeanchor.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.reports.get.Dashboard"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		date, err := request.Date(r, "date", clock)
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		res, err := rep.Dashboard(ctx, date)
		if err != nil {
			response.Fail(w, r, log, fmt.Errorf("%s: %w", op, err))
			return
		}

		render.JSON(w, r, ResponseDashboard{Response: response.Response{Status: response.StatusOK}, Dashboard: res})
	}
}
