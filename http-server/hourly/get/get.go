package get

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"prod-tracker/http-server/request"
	"prod-tracker/http-server/response"
	"prod-tracker/internal/lib/apperr"
	"prod-tracker/internal/lib/pagination"
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/storage"
)

type ResponseFact struct {
	response.Response
	Fact *storage.HourlyFact `json:"fact,omitempty"`
}

type ResponseFacts struct {
	response.Response
	Facts      []storage.HourlyFact `json:"facts"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

type FactGetter interface {
	Get(ctx context.Context, id int64) (*storage.HourlyFact, error)
}

type FactLister interface {
	List(ctx context.Context, q storage.FactQuery) (storage.FactPage, error)
}

func GetHourlyFact(log *slog.Logger, facts FactGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.hourly.get.GetHourlyFact"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, err := request.PathID(chi.URLParam(r, "id"))
		if err != nil {
			response.BadRequest(w, r, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		fact, err := facts.Get(ctx, id)
		if err != nil {
			response.Fail(w, r, log, fmt.Errorf("%s: %w", op, err))
			return
		}

		render.JSON(w, r, ResponseFact{Response: response.Response{Status: response.StatusOK}, Fact: fact})
	}
}

// ListHourlyFacts keyset-страница фактов; next_cursor передается обратно как cursor
func ListHourlyFacts(log *slog.Logger, facts FactLister, clock timeanchor.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.hourly.get.ListHourlyFacts"

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

		p := pagination.Parse(r, storage.DefaultFactSort, "asc", pagination.FactOpts)
		cursor, err := pagination.DecodeCursor(p.Cursor)
		if err != nil {
			response.Fail(w, r, log, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err))
			return
		}

		from, to := rng.UTC()
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		page, err := facts.List(ctx, storage.FactQuery{
			From:             from,
			To:               to,
			AssignmentFilter: filter,
			SortBy:           p.SortBy,
			Desc:             p.Desc(),
			Cursor:           cursor,
			Limit:            p.Limit(),
		})
		if err != nil {
			response.Fail(w, r, log, fmt.Errorf("%s: %w", op, err))
			return
		}

		render.JSON(w, r, ResponseFacts{
			Response:   response.Response{Status: response.StatusOK},
			Facts:      page.Facts,
			NextCursor: page.NextCursor,
		})
	}
}
