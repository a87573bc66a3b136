package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"prod-tracker/internal/lib/apperr"
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/storage"
)

type dailyTargetRow struct {
	ID           int64         `db:"id"`
	AssignmentID int64         `db:"production_machine_group_id"`
	Date         time.Time     `db:"target_date"`
	FieldName    string        `db:"field_name"`
	TargetValue  sql.NullInt64 `db:"target_value"`
	ActualValue  sql.NullInt64 `db:"actual_value"`
	Notes        string        `db:"notes"`
}

func (s *Storage) ListDailyTargets(ctx context.Context, assignmentIDs []int64, date time.Time) ([]storage.DailyTarget, error) {
	const op = "storage.mysql.ListDailyTargets"

	if len(assignmentIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, production_machine_group_id, target_date, field_name, target_value, actual_value, notes
		FROM daily_targets
		WHERE production_machine_group_id IN (?) AND target_date = ?`,
		assignmentIDs, timeanchor.FormatDate(date))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var rows []dailyTargetRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("%s: ошибка получения дневных целей: %w", op, err)
	}

	res := make([]storage.DailyTarget, 0, len(rows))
	for _, r := range rows {
		res = append(res, storage.DailyTarget{
			ID:           r.ID,
			AssignmentID: r.AssignmentID,
			Date:         fromSQLDate(r.Date),
			FieldName:    r.FieldName,
			TargetValue:  nullIntPtr(r.TargetValue),
			ActualValue:  nullIntPtr(r.ActualValue),
			Notes:        r.Notes,
		})
	}

	return res, nil
}

// UpsertDailyTargets одна строка на (группа, дата, поле), гонка решается ключом
func (s *Storage) UpsertDailyTargets(ctx context.Context, targets []storage.DailyTarget) error {
	const op = "storage.mysql.UpsertDailyTargets"

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin transaction: %w", op, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_targets
			(production_machine_group_id, target_date, field_name, target_value, actual_value, notes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			target_value = VALUES(target_value),
			actual_value = VALUES(actual_value),
			notes = VALUES(notes)
	`)
	if err != nil {
		return fmt.Errorf("%s: prepare statement: %w", op, err)
	}
	defer stmt.Close()

	for _, t := range targets {
		_, err := stmt.ExecContext(ctx, t.AssignmentID, timeanchor.FormatDate(t.Date), t.FieldName,
			intPtrValue(t.TargetValue), intPtrValue(t.ActualValue), t.Notes)
		if err != nil {
			if mysqlErrNumber(err) == errForeignKey {
				return fmt.Errorf("%s: assignment %d: %w", op, t.AssignmentID, apperr.ErrNotFound)
			}
			return fmt.Errorf("%s: ошибка сохранения цели %s: %w", op, t.FieldName, err)
		}
	}

	return tx.Commit()
}

// fromSQLDate DATE приходит полночью UTC, переносим календарную дату в локальную зону
func fromSQLDate(t time.Time) time.Time {
	return timeanchor.Date(t.Year(), t.Month(), t.Day())
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func intPtrValue(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
