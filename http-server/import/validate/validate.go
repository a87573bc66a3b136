package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"prod-tracker/http-server/request"
	"prod-tracker/http-server/response"
	"prod-tracker/internal/lib/apperr"
	"prod-tracker/internal/service/importer"
)

type Request struct {
	Rows []importer.RawRow `json:"rows" validate:"required,min=1"`
}

type ResponseReport struct {
	response.Response
	Report *importer.Report `json:"report"`
}

type ImportValidator interface {
	Validate(ctx context.Context, rows []importer.RawRow) (*importer.Report, error)
}

// ReadRows строки из JSON тела или из xlsx в multipart-поле file
func ReadRows(w http.ResponseWriter, r *http.Request, maxFileSize int64) ([]importer.RawRow, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxFileSize); err != nil {
			return nil, apperr.InvalidArgument("invalid multipart form: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, apperr.InvalidArgument("file is required")
		}
		defer file.Close()
		if header.Size > maxFileSize {
			return nil, apperr.InvalidArgument("file is larger than %d bytes", maxFileSize)
		}

		return importer.ReadXLSX(file)
	}

	var req Request
	if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxFileSize), &req); err != nil {
		return nil, apperr.InvalidArgument("ошибка парсинга JSON")
	}
	if err := request.Validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: rows are required", apperr.ErrInvalidArgument)
	}
	return req.Rows, nil
}

func ValidateImport(log *slog.Logger, im ImportValidator, maxFileSize int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.import.validate.ValidateImport"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		rows, err := ReadRows(w, r, maxFileSize)
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		report, err := im.Validate(ctx, rows)
		if err != nil {
			response.Fail(w, r, log, fmt.Errorf("%s: %w", op, err))
			return
		}

		render.JSON(w, r, ResponseReport{Response: response.Response{Status: response.StatusOK}, Report: report})
	}
}

// IsValidationFailed партия отклонена целиком, клиенту отдается отчет
func IsValidationFailed(err error) bool {
	return errors.Is(err, apperr.ErrValidationFailed)
}
