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
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/service/target"
)

type ResponseTarget struct {
	response.Response
	AssignmentID int64  `json:"assignment_id"`
	Date         string `json:"date"`
	Field        string `json:"field"`
	target.Resolved
}

type TargetResolver interface {
	ResolveField(ctx context.Context, assignmentID int64, date time.Time, field string) (target.Resolved, error)
}

type resolveQuery struct {
	AssignmentID int64  `json:"assignment_id" validate:"required,gt=0"`
	Field        string `json:"field" validate:"required,oneof=qty_normal qty_reject qty"`
}

// ResolveTarget действующая дневная цель по полю, с источником значения
func ResolveTarget(log *slog.Logger, resolver TargetResolver, clock timeanchor.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.targets.get.ResolveTarget"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, err := request.OptionalID(r, "assignment_id")
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}
		q := resolveQuery{Field: r.URL.Query().Get("field")}
		if id != nil {
			q.AssignmentID = *id
		}
		if err := request.Validate.Struct(q); err != nil {
			response.ValidationError(w, r, err)
			return
		}

		date, err := request.Date(r, "date", clock)
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		res, err := resolver.ResolveField(ctx, q.AssignmentID, date, q.Field)
		if err != nil {
			response.Fail(w, r, log, fmt.Errorf("%s: %w", op, err))
			return
		}

		render.JSON(w, r, ResponseTarget{
			Response:     response.Response{Status: response.StatusOK},
			AssignmentID: q.AssignmentID,
			Date:         timeanchor.FormatDate(date),
			Field:        q.Field,
			Resolved:     res,
		})
	}
}
