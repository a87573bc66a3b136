package commit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"prod-tracker/http-server/import/validate"
	"prod-tracker/http-server/response"
	"prod-tracker/internal/lib/apperr"
	"prod-tracker/internal/lib/logger"
	"prod-tracker/internal/service/importer"
)

const (
	baseTimeout   = 10 * time.Second
	perRowTimeout = 10 * time.Millisecond
)

// commitTimeout партия пишется построчно, запас растет с числом строк
func commitTimeout(rows int) time.Duration {
	return baseTimeout + time.Duration(rows)*perRowTimeout
}

type ResponseCommit struct {
	response.Response
	Result *importer.CommitResult `json:"result,omitempty"`
	Report *importer.Report       `json:"report,omitempty"`
}

type ImportCommitter interface {
	Commit(ctx context.Context, rows []importer.RawRow) (*importer.CommitResult, *importer.Report, error)
}

// CommitImport пишет партию только если валидны все строки, иначе 422 с отчетом
func CommitImport(log *slog.Logger, im ImportCommitter, maxFileSize int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.import.commit.CommitImport"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		rows, err := validate.ReadRows(w, r, maxFileSize)
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}

		timeout := commitTimeout(len(rows))
		if err := http.NewResponseController(w).SetWriteDeadline(time.Now().Add(timeout + 5*time.Second)); err != nil {
			log.Debug("write deadline not extended", logger.Err(err))
		}

		// обрыв соединения не должен прерывать запись на середине
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), timeout)
		defer cancel()

		res, report, err := im.Commit(ctx, rows)
		if err != nil {
			if validate.IsValidationFailed(err) {
				render.Status(r, http.StatusUnprocessableEntity)
				render.JSON(w, r, ResponseCommit{Response: response.Error("validation failed"), Result: res, Report: report})
				return
			}
			if res == nil {
				response.Fail(w, r, log, fmt.Errorf("%s: %w", op, err))
				return
			}

			// часть строк уже записана, клиент должен узнать сколько
			status := apperr.HTTPStatus(err)
			msg := err.Error()
			if status >= http.StatusInternalServerError {
				msg = "import interrupted"
			}
			log.Error("import interrupted",
				slog.Int("imported", res.Imported),
				slog.Int("skipped", res.Skipped),
				logger.Err(err),
			)
			render.Status(r, status)
			render.JSON(w, r, ResponseCommit{Response: response.Error(msg), Result: res, Report: report})
			return
		}

		render.JSON(w, r, ResponseCommit{Response: response.Response{Status: response.StatusOK}, Result: res, Report: report})
	}
}
