package storage

import "time"

// DailyTarget переопределение цели на дату по одному полю
type DailyTarget struct {
	ID           int64     `json:"id"`
	AssignmentID int64     `json:"assignment_id"`
	Date         time.Time `json:"date"` // локальная дата
	FieldName    string    `json:"field_name"`
	TargetValue  *int      `json:"target_value"`
	ActualValue  *int      `json:"actual_value"`
	Notes        string    `json:"notes"`
}

// DailyRollup материализованные суточные итоги, всегда пересчитываются из фактов
type DailyRollup struct {
	Date        time.Time `json:"date"`
	TotalTarget int64     `json:"total_target"`
	TotalActual int64     `json:"total_actual"`
	UpdatedAt   time.Time `json:"updated_at"`
}
