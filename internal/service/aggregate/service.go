// Package aggregate сворачивает часовые факты в отчеты по группам, производствам,
// часам и неделям, а также строит суточную сводку с отклонением и процентом выполнения.
//
// Итоги считаются в Go по потоку фактов: выработка по сортам лежит в JSON и
// не суммируется в SQL. Все окна строятся через timeanchor в локальных сутках.
package aggregate

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"prod-tracker/internal/lib/pagination"
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/service/target"
	"prod-tracker/internal/storage"
)

type Storage interface {
	HourlyFacts(ctx context.Context, q storage.FactQuery) iter.Seq2[storage.HourlyFact, error]
	ListAssignments(ctx context.Context, f storage.AssignmentFilter) ([]storage.Assignment, error)
	ListDailyRollups(ctx context.Context, from, to time.Time) ([]storage.DailyRollup, error)
}

type OverrideLoader interface {
	LoadOverrides(ctx context.Context, assignmentIDs []int64, date time.Time) (map[int64]target.Overrides, error)
}

type Service struct {
	log     *slog.Logger
	storage Storage
	targets OverrideLoader
}

func NewService(log *slog.Logger, storage Storage, targets OverrideLoader) *Service {
	return &Service{log: log, storage: storage, targets: targets}
}

// Query диапазон локальных дат, фильтр закреплений и параметры страницы
type Query struct {
	Range  timeanchor.Range
	Filter storage.AssignmentFilter
	Page   pagination.Params
}

type ListResult[T any] struct {
	Items []T             `json:"items"`
	Meta  pagination.Meta `json:"meta"`
}

// Totals выработка и цель, отклонение всегда выводится из них
type Totals struct {
	TotalOutput int64 `json:"total_output"`
	TotalTarget int64 `json:"total_target"`
	Variance    int64 `json:"variance"`
}

func (t *Totals) add(f storage.HourlyFact) {
	t.TotalOutput += int64(f.TotalOutput())
	t.TotalTarget += int64(f.TotalTarget())
	t.Variance = t.TotalOutput - t.TotalTarget
}

func (s *Service) facts(ctx context.Context, from, to time.Time, filter storage.AssignmentFilter) iter.Seq2[storage.HourlyFact, error] {
	return s.storage.HourlyFacts(ctx, storage.FactQuery{From: from, To: to, AssignmentFilter: filter})
}

// eachFact обходит поток и останавливается на первой ошибке
func eachFact(seq iter.Seq2[storage.HourlyFact, error], fn func(storage.HourlyFact)) error {
	for f, err := range seq {
		if err != nil {
			return fmt.Errorf("ошибка чтения фактов: %w", err)
		}
		fn(f)
	}
	return nil
}

func paginate[T any](rows []T, p pagination.Params) ListResult[T] {
	if p.PerPage <= 0 {
		return ListResult[T]{Items: rows, Meta: pagination.Meta{Page: 1, PerPage: len(rows), Total: int64(len(rows)), TotalPages: 1}}
	}
	return ListResult[T]{Items: pagination.Page(rows, p), Meta: pagination.BuildMeta(int64(len(rows)), p)}
}
