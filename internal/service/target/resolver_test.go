package target

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"prod-tracker/internal/lib/apperr"
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/storage"
)

type MockTargetStorage struct {
	mock.Mock
}

func (m *MockTargetStorage) GetAssignment(ctx context.Context, id int64) (*storage.Assignment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Assignment), args.Error(1)
}

func (m *MockTargetStorage) ListDailyTargets(ctx context.Context, assignmentIDs []int64, date time.Time) ([]storage.DailyTarget, error) {
	args := m.Called(ctx, assignmentIDs, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.DailyTarget), args.Error(1)
}

func intp(v int) *int { return &v }

func newAssignment(defaults map[string]int) *storage.Assignment {
	return &storage.Assignment{
		ID:             7,
		DefaultTargets: defaults,
		Fields:         storage.NewFieldConfig(storage.InputNormalReject, nil, nil),
	}
}

func TestResolveField_FallbackOrder(t *testing.T) {
	date := timeanchor.Date(2026, time.January, 15)
	a := newAssignment(map[string]int{"qty_normal": 80})

	// 1. только дефолт
	st := new(MockTargetStorage)
	st.On("GetAssignment", mock.Anything, int64(7)).Return(a, nil)
	st.On("ListDailyTargets", mock.Anything, []int64{7}, date).Return([]storage.DailyTarget{}, nil).Once()

	r := NewResolver(st)
	got, err := r.ResolveField(context.Background(), 7, date, "qty_normal")
	require.NoError(t, err)
	assert.Equal(t, Resolved{Target: 80, Source: SourceDefault}, got)

	// 2. появилось переопределение на дату
	st.On("ListDailyTargets", mock.Anything, []int64{7}, date).Return([]storage.DailyTarget{
		{AssignmentID: 7, Date: date, FieldName: "qty_normal", TargetValue: intp(120)},
	}, nil).Once()

	got, err = r.ResolveField(context.Background(), 7, date, "qty_normal")
	require.NoError(t, err)
	assert.Equal(t, Resolved{Target: 120, Source: SourceOverride}, got)

	// 3. поля нет ни в дефолтах, ни в переопределениях
	st.On("ListDailyTargets", mock.Anything, []int64{7}, date).Return([]storage.DailyTarget{}, nil).Once()

	got, err = r.ResolveField(context.Background(), 7, date, "qty_reject")
	require.NoError(t, err)
	assert.Equal(t, Resolved{Target: 0, Source: SourceNone}, got)

	st.AssertExpectations(t)
}

func TestResolveField_NullOverrideFallsThrough(t *testing.T) {
	a := newAssignment(map[string]int{"qty_normal": 80})
	overrides := Overrides{"qty_normal": {FieldName: "qty_normal", TargetValue: nil, ActualValue: intp(70)}}

	assert.Equal(t, Resolved{Target: 80, Source: SourceDefault}, Resolve(a, overrides, "qty_normal"))
}

func TestResolveField_MissingAssignmentResolvesToZero(t *testing.T) {
	st := new(MockTargetStorage)
	st.On("GetAssignment", mock.Anything, int64(99)).Return(nil, apperr.ErrNotFound)

	got, err := NewResolver(st).ResolveField(context.Background(), 99, timeanchor.Date(2026, 1, 15), "qty")
	require.NoError(t, err)
	assert.Equal(t, Resolved{Target: 0, Source: SourceNone}, got)
	st.AssertNotCalled(t, "ListDailyTargets")
}

func TestResolveField_StorageErrorPropagates(t *testing.T) {
	st := new(MockTargetStorage)
	st.On("GetAssignment", mock.Anything, int64(7)).Return(nil, errors.New("connection refused"))

	_, err := NewResolver(st).ResolveField(context.Background(), 7, timeanchor.Date(2026, 1, 15), "qty")
	assert.Error(t, err)
}

func TestResolve_NegativeValuesBecomeZero(t *testing.T) {
	a := newAssignment(map[string]int{"qty": -5})
	assert.Equal(t, Resolved{Target: 0, Source: SourceDefault}, Resolve(a, nil, "qty"))

	overrides := Overrides{"qty": {FieldName: "qty", TargetValue: intp(-1)}}
	assert.Equal(t, Resolved{Target: 0, Source: SourceOverride}, Resolve(a, overrides, "qty"))
}

func TestResolveWithFallback_QtyNormalFallsBackToQty(t *testing.T) {
	a := newAssignment(map[string]int{"qty": 160})

	got := ResolveWithFallback(a, nil, "qty_normal", "qty")
	assert.Equal(t, Resolved{Target: 160, Source: SourceDefault}, got)

	// переопределение qty не участвует в цепочке qty_normal
	overrides := Overrides{"qty": {FieldName: "qty", TargetValue: intp(10)}}
	got = ResolveWithFallback(a, overrides, "qty_normal", "qty")
	assert.Equal(t, Resolved{Target: 160, Source: SourceDefault}, got)
}

func TestHourlyFromDaily(t *testing.T) {
	assert.Equal(t, 10, HourlyFromDaily(80))
	assert.Equal(t, 11, HourlyFromDaily(81))
	assert.Equal(t, 1, HourlyFromDaily(1))
	assert.Equal(t, 0, HourlyFromDaily(0))
	assert.Equal(t, 0, HourlyFromDaily(-16))

	for daily := 1; daily < 500; daily++ {
		assert.GreaterOrEqual(t, HourlyFromDaily(daily)*8, daily)
	}
}

func TestSnapshotFor(t *testing.T) {
	a := newAssignment(map[string]int{"qty_normal": 80, "qty_reject": 9})
	overrides := Overrides{"qty_reject": {FieldName: "qty_reject", TargetValue: intp(16)}}

	snap := SnapshotFor(a, overrides)
	assert.Equal(t, storage.TargetSnapshot{QtyNormal: 10, QtyReject: 2, Qty: 0}, snap)

	qtyOnly := &storage.Assignment{
		ID:             8,
		DefaultTargets: map[string]int{"qty": 81},
		Fields:         storage.NewFieldConfig(storage.InputQtyOnly, nil, nil),
	}
	assert.Equal(t, storage.TargetSnapshot{Qty: 11}, SnapshotFor(qtyOnly, nil))
}
