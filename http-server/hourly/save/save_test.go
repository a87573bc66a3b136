package save

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"prod-tracker/http-server/response"
	"prod-tracker/internal/lib/apperr"
	"prod-tracker/internal/lib/logger"
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/service/hourly"
	"prod-tracker/internal/storage"
)

type MockFactCreator struct {
	mock.Mock
}

func (m *MockFactCreator) Create(ctx context.Context, in hourly.CreateInput) (*storage.HourlyFact, error) {
	args := m.Called(ctx, in)
	if f := args.Get(0); f != nil {
		return f.(*storage.HourlyFact), args.Error(1)
	}
	return nil, args.Error(1)
}

func post(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/hourly", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// Тест: успешное создание факта
func TestCreateHourlyFact_Success(t *testing.T) {
	facts := new(MockFactCreator)
	facts.On("Create", mock.Anything, mock.MatchedBy(func(in hourly.CreateInput) bool {
		return in.AssignmentID == 7 &&
			in.Hour == 9 &&
			in.LocalDate.Equal(timeanchor.Date(2026, time.January, 15)) &&
			*in.Output.QtyNormal == 100 &&
			*in.Output.QtyReject == 3 &&
			in.Notes == "утро"
	})).Return(&storage.HourlyFact{ID: 42, AssignmentID: 7}, nil)

	rr := post(t, CreateHourlyFact(logger.Discard(), facts),
		`{"assignment_id":7,"date":"2026-01-15","hour":9,"qty_normal":100,"qty_reject":3,"notes":"утро"}`)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var resp Response
	require.NoError(t, render.DecodeJSON(rr.Body, &resp))
	assert.Equal(t, response.StatusOK, resp.Status)
	assert.Equal(t, int64(42), resp.Fact.ID)
	facts.AssertExpectations(t)
}

// Тест: час 0 допустим, отсутствие часа нет
func TestCreateHourlyFact_HourRequired(t *testing.T) {
	facts := new(MockFactCreator)

	rr := post(t, CreateHourlyFact(logger.Discard(), facts), `{"assignment_id":7,"date":"2026-01-15","qty":5}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), `"hour":"required"`)
	facts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateHourlyFact_Validation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad date", `{"assignment_id":7,"date":"15-01-2026","hour":1}`, "date"},
		{"hour out of range", `{"assignment_id":7,"date":"2026-01-15","hour":24}`, "hour"},
		{"negative qty", `{"assignment_id":7,"date":"2026-01-15","hour":1,"qty_normal":-1}`, "qty_normal"},
		{"no assignment", `{"date":"2026-01-15","hour":1}`, "assignment_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := new(MockFactCreator)
			rr := post(t, CreateHourlyFact(logger.Discard(), facts), tt.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), `"`+tt.field+`"`)
			facts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

// Тест: невалидный JSON
func TestCreateHourlyFact_InvalidJSON(t *testing.T) {
	facts := new(MockFactCreator)

	rr := post(t, CreateHourlyFact(logger.Discard(), facts), `{`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "ошибка парсинга JSON")
}

func TestCreateHourlyFact_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"duplicate", apperr.Duplicate(7, time.Date(2026, 1, 15, 2, 0, 0, 0, time.UTC)), http.StatusConflict},
		{"unknown assignment", apperr.ErrNotFound, http.StatusNotFound},
		{"field not allowed", apperr.InvalidArgument("field qty is not used"), http.StatusBadRequest},
		{"storage", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := new(MockFactCreator)
			facts.On("Create", mock.Anything, mock.Anything).Return(nil, tt.err)

			rr := post(t, CreateHourlyFact(logger.Discard(), facts), `{"assignment_id":7,"date":"2026-01-15","hour":0,"qty":5}`)

			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusInternalServerError {
				assert.NotContains(t, rr.Body.String(), assert.AnError.Error())
			}
		})
	}
}
