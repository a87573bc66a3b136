package snapshot

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"prod-tracker/internal/lib/logger"
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/storage"
)

const DefaultLookbackDays = 7

type Storage interface {
	EnsureDailyRollup(ctx context.Context, date time.Time) error
	SetDailyRollup(ctx context.Context, date time.Time, totalTarget, totalActual int64) error
	HourlyFacts(ctx context.Context, q storage.FactQuery) iter.Seq2[storage.HourlyFact, error]
}

type DateError struct {
	Date  string `json:"date"`
	Error string `json:"error"`
}

type RunResult struct {
	RunID     uuid.UUID   `json:"run_id"`
	AsOf      string      `json:"as_of"`
	Processed []string    `json:"processed"`
	Failed    []DateError `json:"failed"`
}

type Job struct {
	log     *slog.Logger
	storage Storage
	workers int
}

func NewJob(log *slog.Logger, storage Storage, workers int) *Job {
	if workers <= 0 {
		workers = 1
	}
	return &Job{log: log, storage: storage, workers: workers}
}

// Run пересчитывает итоги за [asOf-lookback, asOf]. Ошибка одной даты
// попадает в Failed и не останавливает остальные.
func (j *Job) Run(ctx context.Context, asOf time.Time, lookbackDays int) RunResult {
	const op = "service.snapshot.Run"

	if lookbackDays < 0 {
		lookbackDays = DefaultLookbackDays
	}

	asOf = timeanchor.LocalDate(asOf)
	res := RunResult{RunID: uuid.New(), AsOf: timeanchor.FormatDate(asOf), Processed: []string{}, Failed: []DateError{}}
	log := j.log.With(slog.String("op", op), slog.String("run_id", res.RunID.String()))

	dates := timeanchor.DatesBetween(asOf.AddDate(0, 0, -lookbackDays), asOf)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.workers)

	for _, d := range dates {
		g.Go(func() error {
			err := j.snapshotDate(gctx, d)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				log.Error("snapshot failed", slog.String("date", timeanchor.FormatDate(d)), logger.Err(err))
				res.Failed = append(res.Failed, DateError{Date: timeanchor.FormatDate(d), Error: err.Error()})
				return nil
			}
			res.Processed = append(res.Processed, timeanchor.FormatDate(d))
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(res.Processed)
	slices.SortFunc(res.Failed, func(a, b DateError) int { return strings.Compare(a.Date, b.Date) })

	log.Info("snapshot finished",
		slog.Int("processed", len(res.Processed)),
		slog.Int("failed", len(res.Failed)),
	)

	return res
}

// snapshotDate нулевая строка, затем перезапись суммами фактов локальных суток
func (j *Job) snapshotDate(ctx context.Context, date time.Time) error {
	if err := j.storage.EnsureDailyRollup(ctx, date); err != nil {
		return err
	}

	from, to := timeanchor.LocalDateRangeToUTC(date)

	var totalTarget, totalActual int64
	for f, err := range j.storage.HourlyFacts(ctx, storage.FactQuery{From: from, To: to}) {
		if err != nil {
			return fmt.Errorf("ошибка чтения фактов: %w", err)
		}
		totalTarget += int64(f.TotalTarget())
		totalActual += int64(f.TotalOutput())
	}

	return j.storage.SetDailyRollup(ctx, date, totalTarget, totalActual)
}
