package mysql

import (
	"context"
	"fmt"
	"time"

	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/storage"
)

type rollupRow struct {
	Date        time.Time `db:"rollup_date"`
	TotalTarget int64     `db:"total_target"`
	TotalActual int64     `db:"total_actual"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// EnsureDailyRollup нулевая строка на дату, существующую не трогает
func (s *Storage) EnsureDailyRollup(ctx context.Context, date time.Time) error {
	const op = "storage.mysql.EnsureDailyRollup"

	_, err := s.db.ExecContext(ctx,
		`INSERT IGNORE INTO daily_rollups (rollup_date, total_target, total_actual) VALUES (?, 0, 0)`,
		timeanchor.FormatDate(date))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SetDailyRollup перезаписывает итоги, последний запуск побеждает
func (s *Storage) SetDailyRollup(ctx context.Context, date time.Time, totalTarget, totalActual int64) error {
	const op = "storage.mysql.SetDailyRollup"

	_, err := s.db.ExecContext(ctx,
		`UPDATE daily_rollups SET total_target = ?, total_actual = ?, updated_at = UTC_TIMESTAMP() WHERE rollup_date = ?`,
		totalTarget, totalActual, timeanchor.FormatDate(date))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ListDailyRollups свежие даты первыми
func (s *Storage) ListDailyRollups(ctx context.Context, from, to time.Time) ([]storage.DailyRollup, error) {
	const op = "storage.mysql.ListDailyRollups"

	var rows []rollupRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT rollup_date, total_target, total_actual, updated_at
		FROM daily_rollups
		WHERE rollup_date BETWEEN ? AND ?
		ORDER BY rollup_date DESC`,
		timeanchor.FormatDate(from), timeanchor.FormatDate(to))
	if err != nil {
		return nil, fmt.Errorf("%s: ошибка получения суточных итогов: %w", op, err)
	}

	res := make([]storage.DailyRollup, 0, len(rows))
	for _, r := range rows {
		res = append(res, storage.DailyRollup{
			Date:        fromSQLDate(r.Date),
			TotalTarget: r.TotalTarget,
			TotalActual: r.TotalActual,
			UpdatedAt:   r.UpdatedAt,
		})
	}

	return res, nil
}
