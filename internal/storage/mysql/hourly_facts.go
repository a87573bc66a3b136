package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"time"

	"prod-tracker/internal/lib/apperr"
	"prod-tracker/internal/lib/pagination"
	"prod-tracker/internal/storage"
)

const sqlTimeLayout = "2006-01-02 15:04:05"

type factRow struct {
	ID               int64          `db:"id"`
	AssignmentID     int64          `db:"production_machine_group_id"`
	RecordedHour     time.Time      `db:"recorded_hour"`
	QtyNormal        sql.NullInt64  `db:"qty_normal"`
	QtyReject        sql.NullInt64  `db:"qty_reject"`
	Qty              sql.NullInt64  `db:"qty"`
	Grades           sql.NullString `db:"grades"`
	Grade            sql.NullString `db:"grade"`
	Ukuran           sql.NullString `db:"ukuran"`
	Notes            string         `db:"notes"`
	TargetQtyNormal  int            `db:"target_qty_normal"`
	TargetQtyReject  int            `db:"target_qty_reject"`
	TargetQty        int            `db:"target_qty"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
	ProductionID     int64          `db:"production_id"`
	ProductionName   string         `db:"production_name"`
	MachineGroupID   int64          `db:"machine_group_id"`
	MachineGroupName string         `db:"machine_group_name"`
}

const factSelect = `
	SELECT f.id, f.production_machine_group_id, f.recorded_hour, f.qty_normal, f.qty_reject, f.qty,
	       f.grades, f.grade, f.ukuran, f.notes, f.target_qty_normal, f.target_qty_reject, f.target_qty,
	       f.created_at, f.updated_at,
	       pmg.production_id, p.name AS production_name, pmg.machine_group_id, mg.name AS machine_group_name
	FROM hourly_facts f
	JOIN production_machine_groups pmg ON pmg.id = f.production_machine_group_id
	JOIN productions p ON p.id = pmg.production_id
	JOIN machine_groups mg ON mg.id = pmg.machine_group_id`

// factSort колонка сортировки и значение курсора из последней строки страницы
type factSort struct {
	column string
	value  func(storage.HourlyFact) string
}

var factSortColumns = map[string]factSort{
	"recorded_hour": {"f.recorded_hour", func(f storage.HourlyFact) string { return f.RecordedHour.UTC().Format(sqlTimeLayout) }},
	"created_at":    {"f.created_at", func(f storage.HourlyFact) string { return f.CreatedAt.UTC().Format(sqlTimeLayout) }},
	"production":    {"p.name", func(f storage.HourlyFact) string { return f.ProductionName }},
	"machine_group": {"mg.name", func(f storage.HourlyFact) string { return f.MachineGroupName }},
	"qty_normal": {"COALESCE(f.qty_normal, 0)", func(f storage.HourlyFact) string {
		return strconv.Itoa(intOrZero(f.Output.QtyNormal))
	}},
	"qty_reject": {"COALESCE(f.qty_reject, 0)", func(f storage.HourlyFact) string {
		return strconv.Itoa(intOrZero(f.Output.QtyReject))
	}},
}

// HourlyFactExists есть ли другая запись группы на этот час
func (s *Storage) HourlyFactExists(ctx context.Context, assignmentID int64, hour time.Time, excludeID int64) (bool, error) {
	const op = "storage.mysql.HourlyFactExists"

	var id int64
	err := s.db.GetContext(ctx, &id, `
		SELECT id FROM hourly_facts
		WHERE production_machine_group_id = ? AND recorded_hour = ? AND id <> ?
		LIMIT 1`,
		assignmentID, hour.UTC(), excludeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}

func (s *Storage) InsertHourlyFact(ctx context.Context, f storage.HourlyFact) (int64, error) {
	const op = "storage.mysql.InsertHourlyFact"

	grades, err := gradesValue(f.Output.Grades)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO hourly_facts
			(production_machine_group_id, recorded_hour, qty_normal, qty_reject, qty, grades, grade, ukuran, notes,
			 target_qty_normal, target_qty_reject, target_qty, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, UTC_TIMESTAMP(), UTC_TIMESTAMP())`,
		f.AssignmentID, f.RecordedHour.UTC(), intPtrValue(f.Output.QtyNormal), intPtrValue(f.Output.QtyReject),
		intPtrValue(f.Output.Qty), grades, strPtrValue(f.Output.Grade), strPtrValue(f.Output.Ukuran), f.Notes,
		f.Targets.QtyNormal, f.Targets.QtyReject, f.Targets.Qty)
	if err != nil {
		return 0, factWriteError(op, f, err)
	}

	return res.LastInsertId()
}

func (s *Storage) UpdateHourlyFact(ctx context.Context, f storage.HourlyFact) error {
	const op = "storage.mysql.UpdateHourlyFact"

	grades, err := gradesValue(f.Output.Grades)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE hourly_facts SET
			production_machine_group_id = ?, recorded_hour = ?, qty_normal = ?, qty_reject = ?, qty = ?,
			grades = ?, grade = ?, ukuran = ?, notes = ?,
			target_qty_normal = ?, target_qty_reject = ?, target_qty = ?, updated_at = UTC_TIMESTAMP()
		WHERE id = ?`,
		f.AssignmentID, f.RecordedHour.UTC(), intPtrValue(f.Output.QtyNormal), intPtrValue(f.Output.QtyReject),
		intPtrValue(f.Output.Qty), grades, strPtrValue(f.Output.Grade), strPtrValue(f.Output.Ukuran), f.Notes,
		f.Targets.QtyNormal, f.Targets.QtyReject, f.Targets.Qty, f.ID)
	if err != nil {
		return factWriteError(op, f, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: hourly fact %d: %w", op, f.ID, apperr.ErrNotFound)
	}

	return nil
}

func (s *Storage) DeleteHourlyFact(ctx context.Context, id int64) error {
	const op = "storage.mysql.DeleteHourlyFact"

	res, err := s.db.ExecContext(ctx, `DELETE FROM hourly_facts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: hourly fact %d: %w", op, id, apperr.ErrNotFound)
	}

	return nil
}

func (s *Storage) GetHourlyFact(ctx context.Context, id int64) (*storage.HourlyFact, error) {
	const op = "storage.mysql.GetHourlyFact"

	var row factRow
	if err := s.db.GetContext(ctx, &row, factSelect+" WHERE f.id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: hourly fact %d: %w", op, id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	f, err := row.toFact()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &f, nil
}

// ListHourlyFacts keyset-страница по (колонка сортировки, id)
func (s *Storage) ListHourlyFacts(ctx context.Context, q storage.FactQuery) (storage.FactPage, error) {
	const op = "storage.mysql.ListHourlyFacts"

	sort, ok := factSortColumns[q.SortBy]
	if !ok {
		return storage.FactPage{}, apperr.InvalidArgument("unknown sort column %q", q.SortBy)
	}

	limit := q.Limit
	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}

	stmt := factSelect + " WHERE f.recorded_hour BETWEEN ? AND ?"
	args := []interface{}{q.From.UTC(), q.To.UTC()}

	where, filterArgs := assignmentWhere(q.AssignmentFilter)
	stmt += where
	args = append(args, filterArgs...)

	cmp, dir := ">", "ASC"
	if q.Desc {
		cmp, dir = "<", "DESC"
	}

	if q.Cursor != nil {
		stmt += fmt.Sprintf(" AND (%[1]s %[2]s ? OR (%[1]s = ? AND f.id %[2]s ?))", sort.column, cmp)
		args = append(args, q.Cursor.Value, q.Cursor.Value, q.Cursor.ID)
	}

	stmt += fmt.Sprintf(" ORDER BY %s %s, f.id %s LIMIT ?", sort.column, dir, dir)
	args = append(args, limit+1)

	var rows []factRow
	if err := s.db.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return storage.FactPage{}, fmt.Errorf("%s: ошибка получения фактов: %w", op, err)
	}

	page := storage.FactPage{Facts: make([]storage.HourlyFact, 0, min(len(rows), limit))}
	for i, r := range rows {
		if i == limit {
			last := page.Facts[len(page.Facts)-1]
			page.NextCursor = pagination.EncodeCursor(pagination.Cursor{Value: sort.value(last), ID: last.ID})
			break
		}
		f, err := r.toFact()
		if err != nil {
			return storage.FactPage{}, fmt.Errorf("%s: факт %d: %w", op, r.ID, err)
		}
		page.Facts = append(page.Facts, f)
	}

	return page, nil
}

// HourlyFacts все факты диапазона страницами по recorded_hour.
// Каждый range начинает выборку заново.
func (s *Storage) HourlyFacts(ctx context.Context, q storage.FactQuery) iter.Seq2[storage.HourlyFact, error] {
	return func(yield func(storage.HourlyFact, error) bool) {
		page := q
		page.SortBy = "recorded_hour"
		page.Desc = false
		page.Cursor = nil
		page.Limit = s.pageSize

		for {
			res, err := s.ListHourlyFacts(ctx, page)
			if err != nil {
				yield(storage.HourlyFact{}, err)
				return
			}

			for _, f := range res.Facts {
				if !yield(f, nil) {
					return
				}
			}

			if res.NextCursor == "" {
				return
			}

			cursor, err := pagination.DecodeCursor(res.NextCursor)
			if err != nil {
				yield(storage.HourlyFact{}, err)
				return
			}
			page.Cursor = cursor
		}
	}
}

func (r factRow) toFact() (storage.HourlyFact, error) {
	var grades map[string]int
	if r.Grades.Valid && r.Grades.String != "" && r.Grades.String != "null" {
		if err := json.Unmarshal([]byte(r.Grades.String), &grades); err != nil {
			return storage.HourlyFact{}, fmt.Errorf("grades: %w", err)
		}
	}

	return storage.HourlyFact{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		RecordedHour: r.RecordedHour.UTC(),
		Output: storage.Output{
			QtyNormal: nullIntPtr(r.QtyNormal),
			QtyReject: nullIntPtr(r.QtyReject),
			Qty:       nullIntPtr(r.Qty),
			Grades:    grades,
			Grade:     nullStrPtr(r.Grade),
			Ukuran:    nullStrPtr(r.Ukuran),
		},
		Targets: storage.TargetSnapshot{
			QtyNormal: r.TargetQtyNormal,
			QtyReject: r.TargetQtyReject,
			Qty:       r.TargetQty,
		},
		Notes:            r.Notes,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
		ProductionID:     r.ProductionID,
		ProductionName:   r.ProductionName,
		MachineGroupID:   r.MachineGroupID,
		MachineGroupName: r.MachineGroupName,
	}, nil
}

func factWriteError(op string, f storage.HourlyFact, err error) error {
	switch mysqlErrNumber(err) {
	case errDuplicateKey:
		return fmt.Errorf("%s: %w", op, apperr.Duplicate(f.AssignmentID, f.RecordedHour))
	case errForeignKey:
		return fmt.Errorf("%s: assignment %d: %w", op, f.AssignmentID, apperr.ErrNotFound)
	default:
		return fmt.Errorf("%s: ошибка сохранения факта: %w", op, err)
	}
}

func gradesValue(g map[string]int) (interface{}, error) {
	if len(g) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("grades: %w", err)
	}
	return string(raw), nil
}

func nullStrPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func strPtrValue(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
