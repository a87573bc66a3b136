package storage

import (
	"fmt"
	"slices"

	"prod-tracker/internal/constants"
	"prod-tracker/internal/lib/apperr"
)

// InputType вариант схемы полей, которую записывает группа машин
type InputType string

const (
	InputQtyOnly      InputType = "qty_only"
	InputNormalReject InputType = "normal_reject"
	InputGrades       InputType = "grades"
	InputGradeQty     InputType = "grade_qty"
	InputQtyUkuran    InputType = "qty_ukuran"
	InputCustom       InputType = "custom"
)

func ParseInputType(s string) (InputType, error) {
	switch t := InputType(s); t {
	case InputQtyOnly, InputNormalReject, InputGrades, InputGradeQty, InputQtyUkuran, InputCustom:
		return t, nil
	default:
		return "", fmt.Errorf("unknown input type %q", s)
	}
}

// FieldConfig конфигурация полей группы машин
type FieldConfig struct {
	InputType   InputType `json:"input_type"`
	Fields      []string  `json:"fields"`
	GradeLabels []string  `json:"grade_labels,omitempty"`
}

// NewFieldConfig для custom используются переданные поля, для остальных вариантов фиксированный список
func NewFieldConfig(t InputType, customFields []string, gradeLabels []string) FieldConfig {
	fields := constants.InputTypeFields[string(t)]
	if t == InputCustom {
		fields = customFields
	}
	return FieldConfig{InputType: t, Fields: slices.Clone(fields), GradeLabels: gradeLabels}
}

func (c FieldConfig) Has(field string) bool {
	return slices.Contains(c.Fields, field)
}

// TargetFields поля, для которых снимается снапшот цели при записи
func (c FieldConfig) TargetFields() []string {
	switch c.InputType {
	case InputNormalReject:
		return []string{constants.FieldQtyNormal, constants.FieldQtyReject}
	case InputQtyOnly, InputGrades, InputGradeQty, InputQtyUkuran:
		return []string{constants.FieldQty}
	case InputCustom:
		var res []string
		for _, f := range []string{constants.FieldQtyNormal, constants.FieldQtyReject, constants.FieldQty} {
			if c.Has(f) {
				res = append(res, f)
			}
		}
		return res
	default:
		return nil
	}
}

// ValidateOutput заполнены только поля варианта, количества не отрицательные
func (c FieldConfig) ValidateOutput(o Output) error {
	check := func(field string, set bool) error {
		if set && !c.Has(field) {
			return apperr.InvalidArgument("field %s is not recorded by input type %s", field, c.InputType)
		}
		return nil
	}

	if err := check(constants.FieldQtyNormal, o.QtyNormal != nil); err != nil {
		return err
	}
	if err := check(constants.FieldQtyReject, o.QtyReject != nil); err != nil {
		return err
	}
	if err := check(constants.FieldQty, o.Qty != nil); err != nil {
		return err
	}
	if err := check(constants.FieldGrades, len(o.Grades) > 0); err != nil {
		return err
	}
	if err := check(constants.FieldGrade, o.Grade != nil); err != nil {
		return err
	}
	if err := check(constants.FieldUkuran, o.Ukuran != nil); err != nil {
		return err
	}

	for name, v := range map[string]*int{
		constants.FieldQtyNormal: o.QtyNormal,
		constants.FieldQtyReject: o.QtyReject,
		constants.FieldQty:       o.Qty,
	} {
		if v != nil && *v < 0 {
			return apperr.InvalidArgument("%s must be >= 0", name)
		}
	}

	for label, v := range o.Grades {
		if v < 0 {
			return apperr.InvalidArgument("grade %s quantity must be >= 0", label)
		}
		if len(c.GradeLabels) > 0 && !slices.Contains(c.GradeLabels, label) {
			return apperr.InvalidArgument("unknown grade label %q", label)
		}
	}
	if o.Grade != nil && len(c.GradeLabels) > 0 && !slices.Contains(c.GradeLabels, *o.Grade) {
		return apperr.InvalidArgument("unknown grade label %q", *o.Grade)
	}

	return nil
}

type Production struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	IsActive bool   `json:"is_active" db:"is_active"`
}

type MachineGroup struct {
	ID     int64       `json:"id"`
	Name   string      `json:"name"` // каноническая форма, см. format.Canonical
	Fields FieldConfig `json:"fields"`
}

// Assignment группа машин, закрепленная за одним производством
type Assignment struct {
	ID               int64          `json:"id"`
	ProductionID     int64          `json:"production_id"`
	ProductionName   string         `json:"production_name"`
	MachineGroupID   int64          `json:"machine_group_id"`
	MachineGroupName string         `json:"machine_group_name"`
	MachineCount     int            `json:"machine_count"`
	DefaultTargets   map[string]int `json:"default_targets"`
	Fields           FieldConfig    `json:"fields"`
}

type AssignmentFilter struct {
	ProductionID   *int64
	MachineGroupID *int64
	AssignmentID   *int64
	Search         string // подстрока имени производства или группы
}
