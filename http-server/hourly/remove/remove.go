package remove

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
)

type FactDeleter interface {
	Delete(ctx context.Context, id int64) error
}

func DeleteHourlyFact(log *slog.Logger, facts FactDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.hourly.remove.DeleteHourlyFact"

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

		if err := facts.Delete(ctx, id); err != nil {
			response.Fail(w, r, log, fmt.Errorf("%s: %w", op, err))
			return
		}

		log.Info("hourly fact deleted", slog.Int64("id", id))
		render.JSON(w, r, response.Response{Status: response.StatusOK})
	}
}
