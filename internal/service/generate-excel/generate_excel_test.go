package generate_excel

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"prod-tracker/internal/lib/pagination"
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/service/aggregate"
)

type MockSummarySource struct {
	mock.Mock
}

func (m *MockSummarySource) DailySummary(ctx context.Context, date time.Time, productionID *int64, page pagination.Params) (aggregate.DailySummary, error) {
	args := m.Called(ctx, date, productionID, page)
	return args.Get(0).(aggregate.DailySummary), args.Error(1)
}

func TestGenerateDailySummary(t *testing.T) {
	date := timeanchor.Date(2026, time.January, 15)
	src := new(MockSummarySource)
	src.On("DailySummary", mock.Anything, date, (*int64)(nil), pagination.Params{}).Return(aggregate.DailySummary{
		Date: "2026-01-15",
		Rows: []aggregate.SummaryRow{
			{ProductionName: "Production A", MachineGroupName: "injection", TargetTotal: 88, ActualTotal: 100, Variance: 8, AchievementPercentage: 113.6, Status: aggregate.StatusAchieved},
			{ProductionName: "Production A", MachineGroupName: "blowing", TargetTotal: 160, ActualTotal: 120, Variance: -40, AchievementPercentage: 75, Status: aggregate.StatusBelow},
		},
		Total: aggregate.SummaryRow{TargetTotal: 248, ActualTotal: 220, Variance: -32},
	}, nil)

	raw, err := NewGenerateService(src).GenerateDailySummary(context.Background(), date, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Summary 2026-01-15")
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "Production", rows[0][0])
	assert.Equal(t, "Injection", rows[1][1])
	assert.Equal(t, "113.6", rows[1][9])
	assert.Equal(t, "below", rows[2][10])
	assert.Equal(t, "Total", rows[3][0])
	assert.Equal(t, "248", rows[3][4])
}

func TestGenerateDailySummary_SourceError(t *testing.T) {
	src := new(MockSummarySource)
	src.On("DailySummary", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(aggregate.DailySummary{}, errors.New("db down"))

	_, err := NewGenerateService(src).GenerateDailySummary(context.Background(), timeanchor.Date(2026, 1, 15), nil)
	assert.Error(t, err)
}
