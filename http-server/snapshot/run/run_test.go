package run

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"prod-tracker/http-server/response"
	"prod-tracker/internal/lib/logger"
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/service/snapshot"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, asOf time.Time, lookbackDays int) snapshot.RunResult {
	return m.Called(ctx, asOf, lookbackDays).Get(0).(snapshot.RunResult)
}

var clock = timeanchor.FixedClock{T: time.Date(2026, time.January, 15, 3, 0, 0, 0, time.UTC)}

func post(job SnapshotRunner, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	RunSnapshot(logger.Discard(), job, clock, 7).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, target, nil))
	return rr
}

func TestRunSnapshot_Defaults(t *testing.T) {
	job := new(MockRunner)
	job.On("Run", mock.Anything, timeanchor.Date(2026, 1, 15), 7).
		Return(snapshot.RunResult{AsOf: "2026-01-15", Processed: []string{"2026-01-15"}})

	rr := post(job, "/api/admin/snapshot/run")

	require.Equal(t, http.StatusOK, rr.Code)
	var resp ResponseRun
	require.NoError(t, render.DecodeJSON(rr.Body, &resp))
	assert.Equal(t, response.StatusOK, resp.Status)
	assert.Equal(t, []string{"2026-01-15"}, resp.Processed)
	job.AssertExpectations(t)
}

func TestRunSnapshot_PartialFailure(t *testing.T) {
	job := new(MockRunner)
	job.On("Run", mock.Anything, timeanchor.Date(2026, 1, 10), 2).Return(snapshot.RunResult{
		Processed: []string{"2026-01-08", "2026-01-10"},
		Failed:    []snapshot.DateError{{Date: "2026-01-09", Error: "db down"}},
	})

	rr := post(job, "/api/admin/snapshot/run?date=2026-01-10&lookback=2")

	require.Equal(t, http.StatusOK, rr.Code)
	var resp ResponseRun
	require.NoError(t, render.DecodeJSON(rr.Body, &resp))
	assert.Equal(t, response.StatusError, resp.Status)
	assert.Len(t, resp.Failed, 1)
}

func TestRunSnapshot_BadParams(t *testing.T) {
	for _, target := range []string{
		"/api/admin/snapshot/run?lookback=-1",
		"/api/admin/snapshot/run?lookback=week",
		"/api/admin/snapshot/run?date=2026/01/10",
	} {
		job := new(MockRunner)
		rr := post(job, target)

		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
		job.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
	}
}
