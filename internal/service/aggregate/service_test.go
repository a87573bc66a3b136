package aggregate

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"prod-tracker/internal/lib/logger"
	"prod-tracker/internal/lib/pagination"
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/service/target"
	"prod-tracker/internal/storage"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) HourlyFacts(ctx context.Context, q storage.FactQuery) iter.Seq2[storage.HourlyFact, error] {
	return m.Called(ctx, q).Get(0).(iter.Seq2[storage.HourlyFact, error])
}

func (m *MockStorage) ListAssignments(ctx context.Context, f storage.AssignmentFilter) ([]storage.Assignment, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]storage.Assignment), args.Error(1)
}

func (m *MockStorage) ListDailyRollups(ctx context.Context, from, to time.Time) ([]storage.DailyRollup, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]storage.DailyRollup), args.Error(1)
}

type MockOverrides struct {
	mock.Mock
}

func (m *MockOverrides) LoadOverrides(ctx context.Context, ids []int64, date time.Time) (map[int64]target.Overrides, error) {
	args := m.Called(ctx, ids, date)
	return args.Get(0).(map[int64]target.Overrides), args.Error(1)
}

func seq(facts ...storage.HourlyFact) iter.Seq2[storage.HourlyFact, error] {
	return func(yield func(storage.HourlyFact, error) bool) {
		for _, f := range facts {
			if !yield(f, nil) {
				return
			}
		}
	}
}

func failing(err error) iter.Seq2[storage.HourlyFact, error] {
	return func(yield func(storage.HourlyFact, error) bool) {
		yield(storage.HourlyFact{}, err)
	}
}

func intp(v int) *int { return &v }

var jan15 = timeanchor.Date(2026, time.January, 15)

func assignmentA() storage.Assignment {
	return storage.Assignment{
		ID: 1, ProductionID: 10, ProductionName: "Production A", MachineGroupID: 100, MachineGroupName: "injection",
		DefaultTargets: map[string]int{"qty_normal": 80, "qty_reject": 8},
		Fields:         storage.NewFieldConfig(storage.InputNormalReject, nil, nil),
	}
}

func assignmentB() storage.Assignment {
	return storage.Assignment{
		ID: 2, ProductionID: 10, ProductionName: "Production A", MachineGroupID: 200, MachineGroupName: "blowing",
		DefaultTargets: map[string]int{"qty": 160},
		Fields:         storage.NewFieldConfig(storage.InputQtyOnly, nil, nil),
	}
}

func fact(a storage.Assignment, localHour int, out storage.Output, snap storage.TargetSnapshot) storage.HourlyFact {
	hour, _ := timeanchor.ToStorageHour(jan15, localHour)
	return storage.HourlyFact{
		AssignmentID:     a.ID,
		RecordedHour:     hour,
		Output:           out,
		Targets:          snap,
		ProductionID:     a.ProductionID,
		ProductionName:   a.ProductionName,
		MachineGroupID:   a.MachineGroupID,
		MachineGroupName: a.MachineGroupName,
	}
}

func dayQuery(t *testing.T) Query {
	r, err := timeanchor.NewRange(jan15, jan15)
	require.NoError(t, err)
	return Query{Range: r}
}

func TestDailySummary_VarianceAsymmetry(t *testing.T) {
	st := new(MockStorage)
	ov := new(MockOverrides)
	a := assignmentA()

	st.On("ListAssignments", mock.Anything, storage.AssignmentFilter{}).Return([]storage.Assignment{a}, nil)
	ov.On("LoadOverrides", mock.Anything, []int64{1}, jan15).Return(map[int64]target.Overrides{}, nil)
	st.On("HourlyFacts", mock.Anything, mock.Anything).Return(seq(
		fact(a, 8, storage.Output{QtyNormal: intp(50), QtyReject: intp(6)}, storage.TargetSnapshot{}),
		fact(a, 9, storage.Output{QtyNormal: intp(40), QtyReject: intp(4)}, storage.TargetSnapshot{}),
	))

	res, err := NewService(logger.Discard(), st, ov).DailySummary(context.Background(), jan15, nil, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	assert.Equal(t, int64(80), row.TargetQtyNormal)
	assert.Equal(t, int64(8), row.TargetQtyReject)
	assert.Equal(t, int64(88), row.TargetTotal)
	assert.Equal(t, int64(90), row.ActualQtyNormal)
	assert.Equal(t, int64(10), row.ActualQtyReject)
	assert.Equal(t, int64(100), row.ActualTotal)
	// +10 по годным, -2 по браку сверх допустимого
	assert.Equal(t, int64(8), row.Variance)
	assert.Equal(t, 113.6, row.AchievementPercentage)
	assert.Equal(t, StatusAchieved, row.Status)
	assert.Equal(t, "2026-01-15", res.Date)
}

func TestDailySummary_ExtraRejectMakesBelow(t *testing.T) {
	st := new(MockStorage)
	ov := new(MockOverrides)
	a := assignmentA()

	st.On("ListAssignments", mock.Anything, mock.Anything).Return([]storage.Assignment{a}, nil)
	ov.On("LoadOverrides", mock.Anything, mock.Anything, mock.Anything).Return(map[int64]target.Overrides{}, nil)
	st.On("HourlyFacts", mock.Anything, mock.Anything).Return(seq(
		fact(a, 8, storage.Output{QtyNormal: intp(80), QtyReject: intp(9)}, storage.TargetSnapshot{}),
	))

	res, err := NewService(logger.Discard(), st, ov).DailySummary(context.Background(), jan15, nil, pagination.Params{})
	require.NoError(t, err)

	assert.Equal(t, int64(-1), res.Rows[0].Variance)
	assert.Equal(t, StatusBelow, res.Rows[0].Status)
}

func TestDailySummary_OverrideAndQtyFallback(t *testing.T) {
	st := new(MockStorage)
	ov := new(MockOverrides)
	a, b := assignmentA(), assignmentB()

	st.On("ListAssignments", mock.Anything, mock.Anything).Return([]storage.Assignment{a, b}, nil)
	ov.On("LoadOverrides", mock.Anything, []int64{1, 2}, jan15).Return(map[int64]target.Overrides{
		1: {"qty_normal": {FieldName: "qty_normal", TargetValue: intp(120)}},
	}, nil)
	st.On("HourlyFacts", mock.Anything, mock.Anything).Return(seq())

	res, err := NewService(logger.Discard(), st, ov).DailySummary(context.Background(), jan15, nil, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	byID := map[int64]SummaryRow{}
	for _, r := range res.Rows {
		byID[r.AssignmentID] = r
	}

	assert.Equal(t, int64(120), byID[1].TargetQtyNormal)
	assert.Equal(t, int64(8), byID[1].TargetQtyReject)
	assert.Equal(t, int64(160), byID[2].TargetQtyNormal)
	assert.Equal(t, int64(0), byID[2].TargetQtyReject)
	assert.Equal(t, 0.0, byID[2].AchievementPercentage)
	assert.Equal(t, int64(288), res.Total.TargetTotal)
}

func TestDailySummary_UsesLocalDayWindow(t *testing.T) {
	st := new(MockStorage)
	ov := new(MockOverrides)
	from, to := timeanchor.LocalDateRangeToUTC(jan15)

	st.On("ListAssignments", mock.Anything, mock.Anything).Return([]storage.Assignment{}, nil)
	ov.On("LoadOverrides", mock.Anything, mock.Anything, mock.Anything).Return(map[int64]target.Overrides{}, nil)
	st.On("HourlyFacts", mock.Anything, mock.MatchedBy(func(q storage.FactQuery) bool {
		return q.From.Equal(time.Date(2026, 1, 14, 17, 0, 0, 0, time.UTC)) && q.From.Equal(from) && q.To.Equal(to)
	})).Return(seq())

	_, err := NewService(logger.Discard(), st, ov).DailySummary(context.Background(), jan15, nil, pagination.Params{})
	require.NoError(t, err)
	st.AssertExpectations(t)
}

func TestAchievement(t *testing.T) {
	assert.Equal(t, 87.5, Achievement(7, 8))
	assert.Equal(t, 33.3, Achievement(1, 3))
	assert.Equal(t, 66.7, Achievement(2, 3))
	assert.Equal(t, 100.0, Achievement(80, 80))
	assert.Equal(t, 0.0, Achievement(50, 0))
}

func TestAggregateByGroup_IncludesGroupsWithoutFacts(t *testing.T) {
	st := new(MockStorage)
	a, b := assignmentA(), assignmentB()
	orphan := storage.Assignment{ID: 3, ProductionID: 11, ProductionName: "Production B", MachineGroupID: 300, MachineGroupName: "cutting"}

	st.On("ListAssignments", mock.Anything, storage.AssignmentFilter{}).Return([]storage.Assignment{a, b}, nil)
	st.On("HourlyFacts", mock.Anything, mock.Anything).Return(seq(
		fact(a, 8, storage.Output{QtyNormal: intp(12), QtyReject: intp(1)}, storage.TargetSnapshot{QtyNormal: 10, QtyReject: 1}),
		fact(a, 9, storage.Output{QtyNormal: intp(8)}, storage.TargetSnapshot{QtyNormal: 10, QtyReject: 1}),
		fact(orphan, 9, storage.Output{Qty: intp(5)}, storage.TargetSnapshot{Qty: 4}),
	))

	res, err := NewService(logger.Discard(), st, new(MockOverrides)).AggregateByGroup(context.Background(), dayQuery(t))
	require.NoError(t, err)
	require.Len(t, res.Items, 3)

	byID := map[int64]GroupRow{}
	for _, r := range res.Items {
		byID[r.AssignmentID] = r
	}

	assert.Equal(t, Totals{TotalOutput: 21, TotalTarget: 22, Variance: -1}, byID[1].Totals)
	assert.Equal(t, Totals{}, byID[2].Totals)
	assert.Equal(t, Totals{TotalOutput: 5, TotalTarget: 4, Variance: 1}, byID[3].Totals)
	assert.Equal(t, int64(3), res.Meta.Total)
}

func TestAggregateByGroup_UnknownSortFallsBackToDefault(t *testing.T) {
	st := new(MockStorage)
	a, b := assignmentA(), assignmentB()

	st.On("ListAssignments", mock.Anything, mock.Anything).Return([]storage.Assignment{a, b}, nil)
	st.On("HourlyFacts", mock.Anything, mock.Anything).Return(seq())

	q := dayQuery(t)
	q.Page = pagination.Params{SortBy: "name; DROP TABLE", SortOrder: "asc"}

	res, err := NewService(logger.Discard(), st, new(MockOverrides)).AggregateByGroup(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	// production, затем machine_group: blowing < injection
	assert.Equal(t, "blowing", res.Items[0].MachineGroupName)
	assert.Equal(t, "injection", res.Items[1].MachineGroupName)
}

func TestAggregateByGroup_SortByVarianceAndPage(t *testing.T) {
	st := new(MockStorage)
	a, b := assignmentA(), assignmentB()

	st.On("ListAssignments", mock.Anything, mock.Anything).Return([]storage.Assignment{a, b}, nil)
	st.On("HourlyFacts", mock.Anything, mock.Anything).Return(seq(
		fact(a, 8, storage.Output{QtyNormal: intp(5)}, storage.TargetSnapshot{QtyNormal: 10}),
		fact(b, 8, storage.Output{Qty: intp(30)}, storage.TargetSnapshot{Qty: 20}),
	))

	q := dayQuery(t)
	q.Page = pagination.Params{Page: 1, PerPage: 1, SortBy: "variance", SortOrder: "desc"}

	res, err := NewService(logger.Discard(), st, new(MockOverrides)).AggregateByGroup(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, int64(2), res.Items[0].AssignmentID)
	assert.Equal(t, 2, res.Meta.TotalPages)
	assert.True(t, res.Meta.HasNext)
}

func TestAggregateByProduction(t *testing.T) {
	st := new(MockStorage)
	a, b := assignmentA(), assignmentB()

	st.On("ListAssignments", mock.Anything, mock.Anything).Return([]storage.Assignment{a, b}, nil)
	st.On("HourlyFacts", mock.Anything, mock.Anything).Return(seq(
		fact(a, 8, storage.Output{QtyNormal: intp(5)}, storage.TargetSnapshot{QtyNormal: 10}),
		fact(b, 8, storage.Output{Qty: intp(30)}, storage.TargetSnapshot{Qty: 20}),
	))

	res, err := NewService(logger.Discard(), st, new(MockOverrides)).AggregateByProduction(context.Background(), dayQuery(t))
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, 2, res.Items[0].Groups)
	assert.Equal(t, Totals{TotalOutput: 35, TotalTarget: 30, Variance: 5}, res.Items[0].Totals)
}

func TestAggregateHourlyByGroup_LocalBuckets(t *testing.T) {
	st := new(MockStorage)
	a := assignmentA()

	st.On("HourlyFacts", mock.Anything, mock.Anything).Return(seq(
		fact(a, 1, storage.Output{QtyNormal: intp(3)}, storage.TargetSnapshot{QtyNormal: 10}),
		fact(a, 0, storage.Output{QtyNormal: intp(7)}, storage.TargetSnapshot{QtyNormal: 10}),
	))

	res, err := NewService(logger.Discard(), st, new(MockOverrides)).AggregateHourlyByGroup(context.Background(), dayQuery(t))
	require.NoError(t, err)
	require.Len(t, res.Items, 2)

	// локальная полночь 15-го хранится как 17:00 UTC 14-го, метка локальная
	assert.Equal(t, "2026-01-15 00:00", res.Items[0].Hour)
	assert.Equal(t, time.Date(2026, 1, 14, 17, 0, 0, 0, time.UTC), res.Items[0].HourStart)
	assert.Equal(t, int64(7), res.Items[0].TotalOutput)
	assert.Equal(t, "2026-01-15 01:00", res.Items[1].Hour)
}

func TestAggregateHourlyByProduction_MergesGroups(t *testing.T) {
	st := new(MockStorage)
	a, b := assignmentA(), assignmentB()

	st.On("HourlyFacts", mock.Anything, mock.Anything).Return(seq(
		fact(a, 8, storage.Output{QtyNormal: intp(3)}, storage.TargetSnapshot{QtyNormal: 10}),
		fact(b, 8, storage.Output{Qty: intp(4)}, storage.TargetSnapshot{Qty: 20}),
	))

	res, err := NewService(logger.Discard(), st, new(MockOverrides)).AggregateHourlyByProduction(context.Background(), dayQuery(t))
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, Totals{TotalOutput: 7, TotalTarget: 30, Variance: -23}, res.Items[0].Totals)
}

func TestWeeklyByGroup_SplitsByLocalDay(t *testing.T) {
	st := new(MockStorage)
	a := assignmentA()

	st.On("ListAssignments", mock.Anything, mock.Anything).Return([]storage.Assignment{a}, nil)
	st.On("HourlyFacts", mock.Anything, mock.MatchedBy(func(q storage.FactQuery) bool {
		// 2026-01-12 понедельник
		return q.From.Equal(time.Date(2026, 1, 11, 17, 0, 0, 0, time.UTC))
	})).Return(seq(
		fact(a, 0, storage.Output{QtyNormal: intp(5)}, storage.TargetSnapshot{QtyNormal: 10}),
	))

	res, err := NewService(logger.Discard(), st, new(MockOverrides)).WeeklyByGroup(context.Background(), jan15, storage.AssignmentFilter{}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	row := res.Items[0]
	require.Len(t, row.Days, 7)
	assert.Equal(t, "2026-01-12", row.Days[0].Date)
	assert.Equal(t, "2026-01-15", row.Days[3].Date)
	assert.Equal(t, int64(5), row.Days[3].TotalOutput)
	assert.Equal(t, int64(5), row.TotalOutput)
}

func TestAggregate_StreamErrorPropagates(t *testing.T) {
	st := new(MockStorage)
	st.On("ListAssignments", mock.Anything, mock.Anything).Return([]storage.Assignment{}, nil)
	st.On("HourlyFacts", mock.Anything, mock.Anything).Return(failing(errors.New("connection reset")))

	_, err := NewService(logger.Discard(), st, new(MockOverrides)).AggregateByGroup(context.Background(), dayQuery(t))
	assert.Error(t, err)
}

func TestDashboard(t *testing.T) {
	st := new(MockStorage)
	ov := new(MockOverrides)
	a := assignmentA()
	rollups := []storage.DailyRollup{{Date: jan15, TotalTarget: 88, TotalActual: 90}}

	st.On("ListAssignments", mock.Anything, mock.Anything).Return([]storage.Assignment{a}, nil)
	ov.On("LoadOverrides", mock.Anything, mock.Anything, mock.Anything).Return(map[int64]target.Overrides{}, nil)
	st.On("HourlyFacts", mock.Anything, mock.Anything).Return(seq())
	st.On("ListDailyRollups", mock.Anything, timeanchor.Date(2026, 1, 9), jan15).Return(rollups, nil)

	res, err := NewService(logger.Discard(), st, ov).Dashboard(context.Background(), jan15)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-15", res.Date)
	assert.Len(t, res.Summary.Rows, 1)
	assert.Equal(t, rollups, res.Rollups)
}
