package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"prod-tracker/internal/lib/apperr"
	"prod-tracker/internal/storage"
)

type machineGroupRow struct {
	ID          int64          `db:"id"`
	Name        string         `db:"name"`
	InputType   string         `db:"input_type"`
	Fields      sql.NullString `db:"fields"`
	GradeLabels sql.NullString `db:"grade_labels"`
}

type assignmentRow struct {
	machineGroupRow
	AssignmentID   int64          `db:"assignment_id"`
	ProductionID   int64          `db:"production_id"`
	ProductionName string         `db:"production_name"`
	MachineCount   int            `db:"machine_count"`
	DefaultTargets sql.NullString `db:"default_targets"`
}

const assignmentSelect = `
	SELECT pmg.id AS assignment_id, pmg.production_id, p.name AS production_name,
	       mg.id, mg.name, mg.input_type, mg.fields, mg.grade_labels,
	       pmg.machine_count, pmg.default_targets
	FROM production_machine_groups pmg
	JOIN productions p ON p.id = pmg.production_id
	JOIN machine_groups mg ON mg.id = pmg.machine_group_id`

func (s *Storage) ListActiveProductions(ctx context.Context) ([]storage.Production, error) {
	const op = "storage.mysql.ListActiveProductions"

	var productions []storage.Production
	err := s.db.SelectContext(ctx, &productions, `SELECT id, name, is_active FROM productions WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%s: ошибка получения производств: %w", op, err)
	}

	return productions, nil
}

func (s *Storage) ListMachineGroups(ctx context.Context) ([]storage.MachineGroup, error) {
	const op = "storage.mysql.ListMachineGroups"

	var rows []machineGroupRow
	err := s.db.SelectContext(ctx, &rows, `SELECT id, name, input_type, fields, grade_labels FROM machine_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%s: ошибка получения групп машин: %w", op, err)
	}

	groups := make([]storage.MachineGroup, 0, len(rows))
	for _, r := range rows {
		fields, err := r.fieldConfig()
		if err != nil {
			return nil, fmt.Errorf("%s: группа %d: %w", op, r.ID, err)
		}
		groups = append(groups, storage.MachineGroup{ID: r.ID, Name: r.Name, Fields: fields})
	}

	return groups, nil
}

// ListAssignments закрепления только активных производств
func (s *Storage) ListAssignments(ctx context.Context, f storage.AssignmentFilter) ([]storage.Assignment, error) {
	const op = "storage.mysql.ListAssignments"

	where, args := assignmentWhere(f)
	stmt := assignmentSelect + " WHERE p.is_active = 1" + where + " ORDER BY p.name, mg.name"

	var rows []assignmentRow
	if err := s.db.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, fmt.Errorf("%s: ошибка получения закреплений: %w", op, err)
	}

	res := make([]storage.Assignment, 0, len(rows))
	for _, r := range rows {
		a, err := r.toAssignment()
		if err != nil {
			return nil, fmt.Errorf("%s: закрепление %d: %w", op, r.AssignmentID, err)
		}
		res = append(res, a)
	}

	return res, nil
}

func (s *Storage) GetAssignment(ctx context.Context, id int64) (*storage.Assignment, error) {
	const op = "storage.mysql.GetAssignment"

	var row assignmentRow
	err := s.db.GetContext(ctx, &row, assignmentSelect+" WHERE pmg.id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: assignment %d: %w", op, id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a, err := row.toAssignment()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &a, nil
}

func assignmentWhere(f storage.AssignmentFilter) (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}

	if f.AssignmentID != nil {
		sb.WriteString(" AND pmg.id = ?")
		args = append(args, *f.AssignmentID)
	}
	if f.ProductionID != nil {
		sb.WriteString(" AND pmg.production_id = ?")
		args = append(args, *f.ProductionID)
	}
	if f.MachineGroupID != nil {
		sb.WriteString(" AND pmg.machine_group_id = ?")
		args = append(args, *f.MachineGroupID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		sb.WriteString(" AND (p.name LIKE ? OR mg.name LIKE ?)")
		args = append(args, "%"+s+"%", "%"+s+"%")
	}

	return sb.String(), args
}

func (r machineGroupRow) fieldConfig() (storage.FieldConfig, error) {
	t, err := storage.ParseInputType(r.InputType)
	if err != nil {
		return storage.FieldConfig{}, err
	}

	var custom, labels []string
	if r.Fields.Valid && r.Fields.String != "" {
		if err := json.Unmarshal([]byte(r.Fields.String), &custom); err != nil {
			return storage.FieldConfig{}, fmt.Errorf("fields: %w", err)
		}
	}
	if r.GradeLabels.Valid && r.GradeLabels.String != "" {
		if err := json.Unmarshal([]byte(r.GradeLabels.String), &labels); err != nil {
			return storage.FieldConfig{}, fmt.Errorf("grade_labels: %w", err)
		}
	}

	return storage.NewFieldConfig(t, custom, labels), nil
}

func (r assignmentRow) toAssignment() (storage.Assignment, error) {
	fields, err := r.fieldConfig()
	if err != nil {
		return storage.Assignment{}, err
	}

	defaults := map[string]int{}
	if r.DefaultTargets.Valid && r.DefaultTargets.String != "" {
		if err := json.Unmarshal([]byte(r.DefaultTargets.String), &defaults); err != nil {
			return storage.Assignment{}, fmt.Errorf("default_targets: %w", err)
		}
	}

	return storage.Assignment{
		ID:               r.AssignmentID,
		ProductionID:     r.ProductionID,
		ProductionName:   r.ProductionName,
		MachineGroupID:   r.ID,
		MachineGroupName: r.Name,
		MachineCount:     r.MachineCount,
		DefaultTargets:   defaults,
		Fields:           fields,
	}, nil
}
