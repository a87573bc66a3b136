package generate_excel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"prod-tracker/http-server/request"
	"prod-tracker/http-server/response"
	"prod-tracker/internal/lib/timeanchor"
)

type GenerateExcelHandler interface {
	GenerateDailySummary(ctx context.Context, date time.Time, productionID *int64) ([]byte, error)
}

func GenerateReportExcel(log *slog.Logger, gen GenerateExcelHandler, clock timeanchor.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.report.GenerateReportExcel"

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

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second) // На Excel можно побольше времени
		defer cancel()

		excelBytes, err := gen.GenerateDailySummary(ctx, date, productionID)
		if err != nil {
			response.Fail(w, r, log, fmt.Errorf("%s: %w", op, err))
			return
		}

		fileName := fmt.Sprintf("Production_Summary_%s.xlsx", timeanchor.FormatDate(date))

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename="+fileName)
		w.Write(excelBytes)
	}
}
