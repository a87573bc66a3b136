package storage

import (
	"time"

	"prod-tracker/internal/lib/pagination"
)

// Output выработка за час; какие поля заполнены, определяет FieldConfig группы
type Output struct {
	QtyNormal *int           `json:"qty_normal,omitempty"`
	QtyReject *int           `json:"qty_reject,omitempty"`
	Qty       *int           `json:"qty,omitempty"`
	Grades    map[string]int `json:"grades,omitempty"`
	Grade     *string        `json:"grade,omitempty"`
	Ukuran    *string        `json:"ukuran,omitempty"`
}

// Normal годная выработка: qty_normal, одиночное qty и сумма по сортам
func (o Output) Normal() int {
	total := deref(o.QtyNormal) + deref(o.Qty)
	for _, v := range o.Grades {
		total += v
	}
	return total
}

func (o Output) Reject() int {
	return deref(o.QtyReject)
}

// Total всегда считается из полей, отдельной колонки нет
func (o Output) Total() int {
	return o.Normal() + o.Reject()
}

// TargetSnapshot почасовые цели, действовавшие на момент записи факта
type TargetSnapshot struct {
	QtyNormal int `json:"target_qty_normal"`
	QtyReject int `json:"target_qty_reject"`
	Qty       int `json:"target_qty"`
}

func (t TargetSnapshot) Total() int {
	return t.QtyNormal + t.QtyReject + t.Qty
}

type HourlyFact struct {
	ID           int64          `json:"id"`
	AssignmentID int64          `json:"assignment_id"`
	RecordedHour time.Time      `json:"recorded_hour"` // UTC, ровно час
	Output       Output         `json:"output"`
	Targets      TargetSnapshot `json:"targets"`
	Notes        string         `json:"notes"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`

	// из join для списков
	ProductionID     int64  `json:"production_id"`
	ProductionName   string `json:"production_name"`
	MachineGroupID   int64  `json:"machine_group_id"`
	MachineGroupName string `json:"machine_group_name"`
}

func (f HourlyFact) TotalOutput() int { return f.Output.Total() }
func (f HourlyFact) TotalTarget() int { return f.Targets.Total() }

// FactQuery выборка фактов за UTC-диапазон, обе границы включительно
type FactQuery struct {
	From time.Time
	To   time.Time
	AssignmentFilter

	SortBy string
	Desc   bool
	Cursor *pagination.Cursor
	Limit  int
}

// FactSortKeys ключи сортировки списка фактов, колонки задает хранилище
var FactSortKeys = map[string]struct{}{
	"recorded_hour": {},
	"created_at":    {},
	"production":    {},
	"machine_group": {},
	"qty_normal":    {},
	"qty_reject":    {},
}

const DefaultFactSort = "recorded_hour"

type FactPage struct {
	Facts      []HourlyFact `json:"facts"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
