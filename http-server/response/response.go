package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"prod-tracker/internal/lib/apperr"
	"prod-tracker/internal/lib/logger"
)

type Response struct {
	Status  string            `json:"status"`
	Error   string            `json:"error,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Details any               `json:"details,omitempty"`
}

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

func Error(msg string) Response {
	return Response{Status: StatusError, Error: msg}
}

// Fail код ответа по apperr; внутренние ошибки не показываются клиенту
func Fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.Err(err))
		render.Status(r, status)
		render.JSON(w, r, Error("internal error"))
		return
	}

	log.Info("request rejected", logger.Err(err))
	render.Status(r, status)
	render.JSON(w, r, Error(err.Error()))
}

// BadRequest ошибки декодирования и параметров запроса
func BadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, Error(msg))
}

// ValidationError ошибки validator.v10 по полям
func ValidationError(w http.ResponseWriter, r *http.Request, err error) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		BadRequest(w, r, "invalid input")
		return
	}

	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}

	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, Response{Status: StatusError, Error: "validation failed", Errors: fields})
}
