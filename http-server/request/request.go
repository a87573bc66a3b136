package request

import (
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"prod-tracker/internal/lib/apperr"
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/storage"
)

// Validate общий валидатор DTO, имена полей в ошибках берутся из json-тегов
var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Date YYYY-MM-DD из query; пусто - сегодня по часам сервиса
func Date(r *http.Request, key string, clock timeanchor.Clock) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return timeanchor.Today(clock), nil
	}
	d, err := timeanchor.ParseDate(raw)
	if err != nil {
		return time.Time{}, apperr.InvalidArgument("invalid %s: %q", key, raw)
	}
	return d, nil
}

// Range from/to из query, по умолчанию сегодняшний день
func Range(r *http.Request, clock timeanchor.Clock) (timeanchor.Range, error) {
	from, err := Date(r, "from", clock)
	if err != nil {
		return timeanchor.Range{}, err
	}
	to := from
	if r.URL.Query().Get("to") != "" {
		if to, err = Date(r, "to", clock); err != nil {
			return timeanchor.Range{}, err
		}
	}
	return timeanchor.NewRange(from, to)
}

// Filter assignment_id, production_id, machine_group_id, search
func Filter(r *http.Request) (storage.AssignmentFilter, error) {
	var f storage.AssignmentFilter
	var err error

	if f.AssignmentID, err = OptionalID(r, "assignment_id"); err != nil {
		return f, err
	}
	if f.ProductionID, err = OptionalID(r, "production_id"); err != nil {
		return f, err
	}
	if f.MachineGroupID, err = OptionalID(r, "machine_group_id"); err != nil {
		return f, err
	}
	f.Search = strings.TrimSpace(r.URL.Query().Get("search"))

	return f, nil
}

func OptionalID(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperr.InvalidArgument("invalid %s: %q", key, raw)
	}
	return &id, nil
}

// OptionalInt целое из query с дефолтом
func OptionalInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.InvalidArgument("invalid %s: %q", key, raw)
	}
	return n, nil
}

func PathID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", apperr.ErrInvalidArgument, raw)
	}
	return id, nil
}
