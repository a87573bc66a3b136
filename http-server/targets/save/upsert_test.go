package save

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"prod-tracker/internal/lib/apperr"
	"prod-tracker/internal/lib/logger"
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/storage"
)

type MockUpserter struct {
	mock.Mock
}

func (m *MockUpserter) UpsertDailyTargets(ctx context.Context, targets []storage.DailyTarget) error {
	return m.Called(ctx, targets).Error(0)
}

func put(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, "/api/admin/targets", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestUpsertDailyTargets(t *testing.T) {
	up := new(MockUpserter)
	up.On("UpsertDailyTargets", mock.Anything, mock.MatchedBy(func(ts []storage.DailyTarget) bool {
		return len(ts) == 2 &&
			ts[0].Date.Equal(timeanchor.Date(2026, 1, 15)) &&
			ts[0].FieldName == "qty_normal" && *ts[0].TargetValue == 120 &&
			ts[1].TargetValue == nil
	})).Return(nil)

	rr := put(UpsertDailyTargets(logger.Discard(), up), `{"date":"2026-01-15","targets":[
		{"assignment_id":1,"field_name":"qty_normal","target_value":120},
		{"assignment_id":1,"field_name":"qty_reject","notes":"без брака"}
	]}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	up.AssertExpectations(t)
}

func TestUpsertDailyTargets_Validation(t *testing.T) {
	bodies := []string{
		`{"date":"2026-01-15","targets":[]}`,
		`{"date":"2026-01-15","targets":[{"assignment_id":1,"field_name":"grades","target_value":1}]}`,
		`{"date":"2026-01-15","targets":[{"assignment_id":1,"field_name":"qty","target_value":-5}]}`,
		`{"targets":[{"assignment_id":1,"field_name":"qty"}]}`,
	}

	for _, body := range bodies {
		up := new(MockUpserter)
		rr := put(UpsertDailyTargets(logger.Discard(), up), body)

		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		up.AssertNotCalled(t, "UpsertDailyTargets", mock.Anything, mock.Anything)
	}
}

func TestUpsertDailyTargets_UnknownAssignment(t *testing.T) {
	up := new(MockUpserter)
	up.On("UpsertDailyTargets", mock.Anything, mock.Anything).Return(apperr.ErrNotFound)

	rr := put(UpsertDailyTargets(logger.Discard(), up), `{"date":"2026-01-15","targets":[{"assignment_id":99,"field_name":"qty","target_value":5}]}`)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
