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
	"prod-tracker/internal/service/hourly"
	"prod-tracker/internal/storage"
)

// Output поля выработки, общие для создания и обновления
type Output struct {
	QtyNormal *int           `json:"qty_normal" validate:"omitempty,min=0"`
	QtyReject *int           `json:"qty_reject" validate:"omitempty,min=0"`
	Qty       *int           `json:"qty" validate:"omitempty,min=0"`
	Grades    map[string]int `json:"grades" validate:"omitempty,dive,keys,required,endkeys,min=0"`
	Grade     *string        `json:"grade" validate:"omitempty,max=64"`
	Ukuran    *string        `json:"ukuran" validate:"omitempty,max=64"`
}

func (o Output) ToStorage() storage.Output {
	return storage.Output{
		QtyNormal: o.QtyNormal,
		QtyReject: o.QtyReject,
		Qty:       o.Qty,
		Grades:    o.Grades,
		Grade:     o.Grade,
		Ukuran:    o.Ukuran,
	}
}

type Request struct {
	AssignmentID int64  `json:"assignment_id" validate:"required,gt=0"`
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	Hour         *int   `json:"hour" validate:"required,min=0,max=23"`
	Notes        string `json:"notes" validate:"max=1000"`
	Output
}

type Response struct {
	response.Response
	Fact *storage.HourlyFact `json:"fact,omitempty"`
}

type FactCreator interface {
	Create(ctx context.Context, in hourly.CreateInput) (*storage.HourlyFact, error)
}

func CreateHourlyFact(log *slog.Logger, facts FactCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.hourly.save.CreateHourlyFact"

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

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		fact, err := facts.Create(ctx, hourly.CreateInput{
			AssignmentID: req.AssignmentID,
			LocalDate:    date,
			Hour:         *req.Hour,
			Output:       req.ToStorage(),
			Notes:        req.Notes,
		})
		if err != nil {
			response.Fail(w, r, log, fmt.Errorf("%s: %w", op, err))
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{Response: response.Response{Status: response.StatusOK}, Fact: fact})
	}
}
