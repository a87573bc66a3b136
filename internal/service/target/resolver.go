package target

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prod-tracker/internal/constants"
	"prod-tracker/internal/lib/apperr"
	"prod-tracker/internal/storage"
)

type Source string

const (
	SourceOverride Source = "override"
	SourceDefault  Source = "default"
	SourceNone     Source = "none"
)

type Resolved struct {
	Target int    `json:"target"`
	Source Source `json:"source"`
}

// Overrides дневные переопределения одной группы на дату, ключ - имя поля
type Overrides map[string]storage.DailyTarget

type TargetStorage interface {
	GetAssignment(ctx context.Context, id int64) (*storage.Assignment, error)
	ListDailyTargets(ctx context.Context, assignmentIDs []int64, date time.Time) ([]storage.DailyTarget, error)
}

type Resolver struct {
	storage TargetStorage
}

func NewResolver(storage TargetStorage) *Resolver {
	return &Resolver{storage: storage}
}

// ResolveField цель на дату: переопределение -> дефолт группы -> 0.
// Отсутствие данных не ошибка, наружу уходят только ошибки хранилища.
func (r *Resolver) ResolveField(ctx context.Context, assignmentID int64, date time.Time, field string) (Resolved, error) {
	const op = "service.target.ResolveField"

	a, err := r.storage.GetAssignment(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Resolved{Target: 0, Source: SourceNone}, nil
		}
		return Resolved{}, fmt.Errorf("%s: %w", op, err)
	}

	byAssignment, err := r.LoadOverrides(ctx, []int64{assignmentID}, date)
	if err != nil {
		return Resolved{}, fmt.Errorf("%s: %w", op, err)
	}

	return Resolve(a, byAssignment[assignmentID], field), nil
}

// LoadOverrides одним запросом все переопределения на дату для набора групп
func (r *Resolver) LoadOverrides(ctx context.Context, assignmentIDs []int64, date time.Time) (map[int64]Overrides, error) {
	res := make(map[int64]Overrides, len(assignmentIDs))
	if len(assignmentIDs) == 0 {
		return res, nil
	}

	targets, err := r.storage.ListDailyTargets(ctx, assignmentIDs, date)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения дневных целей: %w", err)
	}

	for _, t := range targets {
		if res[t.AssignmentID] == nil {
			res[t.AssignmentID] = Overrides{}
		}
		res[t.AssignmentID][t.FieldName] = t
	}

	return res, nil
}

// HourlySnapshot почасовые цели для записи в факт на момент создания/обновления
func (r *Resolver) HourlySnapshot(ctx context.Context, a *storage.Assignment, date time.Time) (storage.TargetSnapshot, error) {
	byAssignment, err := r.LoadOverrides(ctx, []int64{a.ID}, date)
	if err != nil {
		return storage.TargetSnapshot{}, err
	}

	return SnapshotFor(a, byAssignment[a.ID]), nil
}

// SnapshotFor чистый расчет снапшота по уже загруженным данным
func SnapshotFor(a *storage.Assignment, overrides Overrides) storage.TargetSnapshot {
	var snap storage.TargetSnapshot

	for _, field := range a.Fields.TargetFields() {
		switch field {
		case constants.FieldQtyNormal:
			snap.QtyNormal = HourlyFromDaily(ResolveWithFallback(a, overrides, constants.FieldQtyNormal, constants.FieldQty).Target)
		case constants.FieldQtyReject:
			snap.QtyReject = HourlyFromDaily(Resolve(a, overrides, constants.FieldQtyReject).Target)
		case constants.FieldQty:
			snap.Qty = HourlyFromDaily(Resolve(a, overrides, constants.FieldQty).Target)
		}
	}

	return snap
}

func Resolve(a *storage.Assignment, overrides Overrides, field string) Resolved {
	return ResolveWithFallback(a, overrides, field)
}

// ResolveWithFallback переопределение основного поля, затем дефолты основного
// и запасных полей по порядку. Переопределения запасных полей не смотрим.
func ResolveWithFallback(a *storage.Assignment, overrides Overrides, field string, fallbacks ...string) Resolved {
	if o, ok := overrides[field]; ok && o.TargetValue != nil {
		return Resolved{Target: nonNegative(*o.TargetValue), Source: SourceOverride}
	}

	if a != nil {
		for _, f := range append([]string{field}, fallbacks...) {
			if v, ok := a.DefaultTargets[f]; ok {
				return Resolved{Target: nonNegative(v), Source: SourceDefault}
			}
		}
	}

	return Resolved{Target: 0, Source: SourceNone}
}

// HourlyFromDaily дневная цель на 8-часовую смену с округлением вверх,
// чтобы сумма 8 часов была не меньше дневной цели
func HourlyFromDaily(daily int) int {
	if daily <= 0 {
		return 0
	}
	return (daily + constants.ShiftHours - 1) / constants.ShiftHours
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
