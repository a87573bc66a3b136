package save

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
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/storage"
)

type Target struct {
	AssignmentID int64  `json:"assignment_id" validate:"required,gt=0"`
	FieldName    string `json:"field_name" validate:"required,oneof=qty_normal qty_reject qty"`
	TargetValue  *int   `json:"target_value" validate:"omitempty,min=0"`
	ActualValue  *int   `json:"actual_value" validate:"omitempty,min=0"`
	Notes        string `json:"notes" validate:"max=1000"`
}

type Request struct {
	Date    string   `json:"date" validate:"required,datetime=2006-01-02"`
	Targets []Target `json:"targets" validate:"required,min=1,max=500,dive"`
}

type TargetUpserter interface {
	UpsertDailyTargets(ctx context.Context, targets []storage.DailyTarget) error
}

// UpsertDailyTargets переопределения целей на дату, повторная запись заменяет значение
func UpsertDailyTargets(log *slog.Logger, targets TargetUpserter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.targets.save.UpsertDailyTargets"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			response.BadRequest(w, r, "ошибка парсинга JSON")
			return
		}
		if err := request.Validate.Struct(req); err != nil {
			response.ValidationError(w, r, err)
			return
		}

		date, err := timeanchor.ParseDate(req.Date)
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}

		rows := make([]storage.DailyTarget, 0, len(req.Targets))
		for _, t := range req.Targets {
			rows = append(rows, storage.DailyTarget{
				AssignmentID: t.AssignmentID,
				Date:         date,
				FieldName:    t.FieldName,
				TargetValue:  t.TargetValue,
				ActualValue:  t.ActualValue,
				Notes:        t.Notes,
			})
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := targets.UpsertDailyTargets(ctx, rows); err != nil {
			response.Fail(w, r, log, fmt.Errorf("%s: %w", op, err))
			return
		}

		log.Info("daily targets saved", slog.String("date", req.Date), slog.Int("count", len(rows)))
		render.JSON(w, r, response.Response{Status: response.StatusOK})
	}
}
