package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrDuplicateEntry   = errors.New("duplicate entry")
	ErrNotFound         = errors.New("not found")
	ErrValidationFailed = errors.New("validation failed")
)

// displayZone та же зона, что timeanchor.Location; timeanchor сам импортирует apperr
var displayZone = time.FixedZone("Asia/Jakarta", 7*60*60)

// DuplicateEntryError несет конфликтующий час, чтобы показать его пользователю
type DuplicateEntryError struct {
	AssignmentID int64
	Hour         time.Time // UTC
}

func (e *DuplicateEntryError) Error() string {
	// час в том виде, в каком его ввел пользователь
	return fmt.Sprintf("duplicate entry: assignment %d already has a record at %s",
		e.AssignmentID, e.Hour.In(displayZone).Format("2006-01-02 15:00"))
}

func (e *DuplicateEntryError) Is(target error) bool {
	return target == ErrDuplicateEntry
}

func Duplicate(assignmentID int64, hour time.Time) error {
	return &DuplicateEntryError{AssignmentID: assignmentID, Hour: hour}
}

func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// HTTPStatus маппинг ошибок в коды ответа
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicateEntry):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidationFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
