package update

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"prod-tracker/http-server/hourly/save"
	"prod-tracker/http-server/request"
	"prod-tracker/http-server/response"
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/service/hourly"
	"prod-tracker/internal/storage"
)

// Request дата и час не обязательны, без них факт остается в своем часе
type Request struct {
	Date  *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Hour  *int    `json:"hour" validate:"omitempty,min=0,max=23"`
	Notes string  `json:"notes" validate:"max=1000"`
	save.Output
}

type FactUpdater interface {
	Update(ctx context.Context, id int64, in hourly.UpdateInput) (*storage.HourlyFact, error)
}

func UpdateHourlyFact(log *slog.Logger, facts FactUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.hourly.update.UpdateHourlyFact"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, err := request.PathID(chi.URLParam(r, "id"))
		if err != nil {
			response.BadRequest(w, r, "invalid id")
			return
		}

		var req Request
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			response.BadRequest(w, r, "ошибка парсинга JSON")
			return
		}
		if err := request.Validate.Struct(req); err != nil {
			response.ValidationError(w, r, err)
			return
		}

		in := hourly.UpdateInput{Output: req.ToStorage(), Notes: req.Notes, Hour: req.Hour}
		if req.Date != nil {
			date, err := timeanchor.ParseDate(*req.Date)
			if err != nil {
				response.Fail(w, r, log, err)
				return
			}
			in.LocalDate = &date
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		fact, err := facts.Update(ctx, id, in)
		if err != nil {
			response.Fail(w, r, log, fmt.Errorf("%s: %w", op, err))
			return
		}

		render.JSON(w, r, save.Response{Response: response.Response{Status: response.StatusOK}, Fact: fact})
	}
}
