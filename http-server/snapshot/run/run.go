package run

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"prod-tracker/http-server/request"
	"prod-tracker/http-server/response"
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/service/snapshot"
)

type ResponseRun struct {
	response.Response
	snapshot.RunResult
}

type SnapshotRunner interface {
	Run(ctx context.Context, asOf time.Time, lookbackDays int) snapshot.RunResult
}

// RunSnapshot ручной запуск пересчета суточных итогов; date и lookback из query
func RunSnapshot(log *slog.Logger, job SnapshotRunner, clock timeanchor.Clock, defaultLookback int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.snapshot.run.RunSnapshot"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		date, err := request.Date(r, "date", clock)
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}
		lookback, err := request.OptionalInt(r, "lookback", defaultLookback)
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}
		if lookback < 0 || lookback > 366 {
			response.BadRequest(w, r, "lookback must be in 0..366")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		res := job.Run(ctx, date, lookback)

		status := response.StatusOK
		if len(res.Failed) > 0 {
			status = response.StatusError
			log.Warn("snapshot finished with failures", slog.Int("failed", len(res.Failed)))
		}

		render.JSON(w, r, ResponseRun{Response: response.Response{Status: status}, RunResult: res})
	}
}
