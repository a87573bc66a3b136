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
	"prod-tracker/internal/storage"
)

type ResponseList[T any] struct {
	response.Response
	aggregate.ListResult[T]
}

type GroupReporter interface {
	AggregateByGroup(ctx context.Context, q aggregate.Query) (aggregate.ListResult[aggregate.GroupRow], error)
}

type ProductionReporter interface {
	AggregateByProduction(ctx context.Context, q aggregate.Query) (aggregate.ListResult[aggregate.ProductionRow], error)
}

type HourlyGroupReporter interface {
	AggregateHourlyByGroup(ctx context.Context, q aggregate.Query) (aggregate.ListResult[aggregate.HourlyGroupRow], error)
}

type HourlyProductionReporter interface {
	AggregateHourlyByProduction(ctx context.Context, q aggregate.Query) (aggregate.ListResult[aggregate.HourlyProductionRow], error)
}

type WeeklyReporter interface {
	WeeklyByGroup(ctx context.Context, date time.Time, filter storage.AssignmentFilter, page pagination.Params) (aggregate.ListResult[aggregate.WeeklyRow], error)
}

func ByGroup(log *slog.Logger, rep GroupReporter, clock timeanchor.Clock) http.HandlerFunc {
	return listReport(log, "handlers.reports.get.ByGroup", "production", clock, rep.AggregateByGroup)
}

func ByProduction(log *slog.Logger, rep ProductionReporter, clock timeanchor.Clock) http.HandlerFunc {
	return listReport(log, "handlers.reports.get.ByProduction", "production", clock, rep.AggregateByProduction)
}

func HourlyByGroup(log *slog.Logger, rep HourlyGroupReporter, clock timeanchor.Clock) http.HandlerFunc {
	return listReport(log, "handlers.reports.get.HourlyByGroup", "hour", clock, rep.AggregateHourlyByGroup)
}

func HourlyByProduction(log *slog.Logger, rep HourlyProductionReporter, clock timeanchor.Clock) http.HandlerFunc {
	return listReport(log, "handlers.reports.get.HourlyByProduction", "hour", clock, rep.AggregateHourlyByProduction)
}

// listReport общий разбор from/to, фильтров и страницы для отчетов по диапазону
func listReport[T any](log *slog.Logger, op, defaultSort string, clock timeanchor.Clock,
	fetch func(ctx context.Context, q aggregate.Query) (aggregate.ListResult[T], error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		rng, err := request.Range(r, clock)
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}
		filter, err := request.Filter(r)
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		res, err := fetch(ctx, aggregate.Query{
			Range:  rng,
			Filter: filter,
			Page:   pagination.Parse(r, defaultSort, "asc", pagination.DefaultOpts),
		})
		if err != nil {
			response.Fail(w, r, log, fmt.Errorf("%s: %w", op, err))
			return
		}

		render.JSON(w, r, ResponseList[T]{Response: response.Response{Status: response.StatusOK}, ListResult: res})
	}
}

func WeeklyByGroup(log *slog.Logger, rep WeeklyReporter, clock timeanchor.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.reports.get.WeeklyByGroup"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		date, err := request.Date(r, "date", clock)
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}
		filter, err := request.Filter(r)
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		res, err := rep.WeeklyByGroup(ctx, date, filter, pagination.Parse(r, "production", "asc", pagination.DefaultOpts))
		if err != nil {
			response.Fail(w, r, log, fmt.Errorf("%s: %w", op, err))
			return
		}

		render.JSON(w, r, ResponseList[aggregate.WeeklyRow]{Response: response.Response{Status: response.StatusOK}, ListResult: res})
	}
}
