package aggregate

import (
	"context"
	"fmt"
	"slices"
	"time"

	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/storage"
)

type GroupRow struct {
	AssignmentID     int64  `json:"assignment_id"`
	ProductionID     int64  `json:"production_id"`
	ProductionName   string `json:"production_name"`
	MachineGroupID   int64  `json:"machine_group_id"`
	MachineGroupName string `json:"machine_group_name"`
	Totals
}

type ProductionRow struct {
	ProductionID   int64  `json:"production_id"`
	ProductionName string `json:"production_name"`
	Groups         int    `json:"groups"`
	Totals
}

// HourlyGroupRow бакет одного часа группы; Hour метка в локальном времени
type HourlyGroupRow struct {
	Hour      string    `json:"hour"`
	HourStart time.Time `json:"hour_start"`
	GroupRow
}

type HourlyProductionRow struct {
	Hour           string    `json:"hour"`
	HourStart      time.Time `json:"hour_start"`
	ProductionID   int64     `json:"production_id"`
	ProductionName string    `json:"production_name"`
	Totals
}

var groupSorts = map[string]comparator[GroupRow]{
	"production":    then(byString(func(r GroupRow) string { return r.ProductionName }), byString(func(r GroupRow) string { return r.MachineGroupName })),
	"machine_group": then(byString(func(r GroupRow) string { return r.MachineGroupName }), byString(func(r GroupRow) string { return r.ProductionName })),
	"total_output":  byNumber(func(r GroupRow) int64 { return r.TotalOutput }),
	"total_target":  byNumber(func(r GroupRow) int64 { return r.TotalTarget }),
	"variance":      byNumber(func(r GroupRow) int64 { return r.TotalOutput - r.TotalTarget }),
}

var productionSorts = map[string]comparator[ProductionRow]{
	"production":   byString(func(r ProductionRow) string { return r.ProductionName }),
	"groups":       byNumber(func(r ProductionRow) int { return r.Groups }),
	"total_output": byNumber(func(r ProductionRow) int64 { return r.TotalOutput }),
	"total_target": byNumber(func(r ProductionRow) int64 { return r.TotalTarget }),
	"variance":     byNumber(func(r ProductionRow) int64 { return r.TotalOutput - r.TotalTarget }),
}

var hourlyGroupSorts = map[string]comparator[HourlyGroupRow]{
	"hour": then(
		byNumber(func(r HourlyGroupRow) int64 { return r.HourStart.Unix() }),
		byString(func(r HourlyGroupRow) string { return r.ProductionName + "\x00" + r.MachineGroupName }),
	),
	"production":    byString(func(r HourlyGroupRow) string { return r.ProductionName }),
	"machine_group": byString(func(r HourlyGroupRow) string { return r.MachineGroupName }),
	"total_output":  byNumber(func(r HourlyGroupRow) int64 { return r.TotalOutput }),
	"total_target":  byNumber(func(r HourlyGroupRow) int64 { return r.TotalTarget }),
	"variance":      byNumber(func(r HourlyGroupRow) int64 { return r.TotalOutput - r.TotalTarget }),
}

var hourlyProductionSorts = map[string]comparator[HourlyProductionRow]{
	"hour": then(
		byNumber(func(r HourlyProductionRow) int64 { return r.HourStart.Unix() }),
		byString(func(r HourlyProductionRow) string { return r.ProductionName }),
	),
	"production":   byString(func(r HourlyProductionRow) string { return r.ProductionName }),
	"total_output": byNumber(func(r HourlyProductionRow) int64 { return r.TotalOutput }),
	"total_target": byNumber(func(r HourlyProductionRow) int64 { return r.TotalTarget }),
	"variance":     byNumber(func(r HourlyProductionRow) int64 { return r.TotalOutput - r.TotalTarget }),
}

// AggregateByGroup строка на каждое закрепление, без фактов с нулями
func (s *Service) AggregateByGroup(ctx context.Context, q Query) (ListResult[GroupRow], error) {
	const op = "service.aggregate.AggregateByGroup"

	rows, err := s.groupRows(ctx, q)
	if err != nil {
		return ListResult[GroupRow]{}, fmt.Errorf("%s: %w", op, err)
	}

	sortRows(rows, groupSorts, q.Page.SortBy, "production", q.Page.Desc())

	return paginate(rows, q.Page), nil
}

func (s *Service) AggregateByProduction(ctx context.Context, q Query) (ListResult[ProductionRow], error) {
	const op = "service.aggregate.AggregateByProduction"

	groups, err := s.groupRows(ctx, q)
	if err != nil {
		return ListResult[ProductionRow]{}, fmt.Errorf("%s: %w", op, err)
	}

	index := map[int64]int{}
	var rows []ProductionRow
	for _, g := range groups {
		i, ok := index[g.ProductionID]
		if !ok {
			i = len(rows)
			index[g.ProductionID] = i
			rows = append(rows, ProductionRow{ProductionID: g.ProductionID, ProductionName: g.ProductionName})
		}
		r := &rows[i]
		r.Groups++
		r.TotalOutput += g.TotalOutput
		r.TotalTarget += g.TotalTarget
		r.Variance = r.TotalOutput - r.TotalTarget
	}

	sortRows(rows, productionSorts, q.Page.SortBy, "production", q.Page.Desc())

	return paginate(rows, q.Page), nil
}

func (s *Service) AggregateHourlyByGroup(ctx context.Context, q Query) (ListResult[HourlyGroupRow], error) {
	const op = "service.aggregate.AggregateHourlyByGroup"

	type key struct {
		assignmentID int64
		hour         int64
	}

	from, to := q.Range.UTC()
	buckets := map[key]*HourlyGroupRow{}

	err := eachFact(s.facts(ctx, from, to, q.Filter), func(f storage.HourlyFact) {
		hour := f.RecordedHour.Truncate(time.Hour)
		k := key{f.AssignmentID, hour.Unix()}

		b, ok := buckets[k]
		if !ok {
			b = &HourlyGroupRow{Hour: timeanchor.HourLabel(hour), HourStart: hour, GroupRow: groupFromFact(f)}
			buckets[k] = b
		}
		b.add(f)
	})
	if err != nil {
		return ListResult[HourlyGroupRow]{}, fmt.Errorf("%s: %w", op, err)
	}

	rows := make([]HourlyGroupRow, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, *b)
	}
	sortRows(rows, hourlyGroupSorts, "hour", "hour", false)
	sortRows(rows, hourlyGroupSorts, q.Page.SortBy, "hour", q.Page.Desc())

	return paginate(rows, q.Page), nil
}

func (s *Service) AggregateHourlyByProduction(ctx context.Context, q Query) (ListResult[HourlyProductionRow], error) {
	const op = "service.aggregate.AggregateHourlyByProduction"

	type key struct {
		productionID int64
		hour         int64
	}

	from, to := q.Range.UTC()
	buckets := map[key]*HourlyProductionRow{}

	err := eachFact(s.facts(ctx, from, to, q.Filter), func(f storage.HourlyFact) {
		hour := f.RecordedHour.Truncate(time.Hour)
		k := key{f.ProductionID, hour.Unix()}

		b, ok := buckets[k]
		if !ok {
			b = &HourlyProductionRow{
				Hour:           timeanchor.HourLabel(hour),
				HourStart:      hour,
				ProductionID:   f.ProductionID,
				ProductionName: f.ProductionName,
			}
			buckets[k] = b
		}
		b.add(f)
	})
	if err != nil {
		return ListResult[HourlyProductionRow]{}, fmt.Errorf("%s: %w", op, err)
	}

	rows := make([]HourlyProductionRow, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, *b)
	}
	sortRows(rows, hourlyProductionSorts, "hour", "hour", false)
	sortRows(rows, hourlyProductionSorts, q.Page.SortBy, "hour", q.Page.Desc())

	return paginate(rows, q.Page), nil
}

// groupRows все закрепления фильтра плюс группы, у которых есть факты, но нет закрепления в выборке
func (s *Service) groupRows(ctx context.Context, q Query) ([]GroupRow, error) {
	assignments, err := s.storage.ListAssignments(ctx, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения закреплений: %w", err)
	}

	byID := make(map[int64]*GroupRow, len(assignments))
	order := make([]int64, 0, len(assignments))
	for _, a := range assignments {
		byID[a.ID] = &GroupRow{
			AssignmentID:     a.ID,
			ProductionID:     a.ProductionID,
			ProductionName:   a.ProductionName,
			MachineGroupID:   a.MachineGroupID,
			MachineGroupName: a.MachineGroupName,
		}
		order = append(order, a.ID)
	}

	var extra []int64
	from, to := q.Range.UTC()
	err = eachFact(s.facts(ctx, from, to, q.Filter), func(f storage.HourlyFact) {
		r, ok := byID[f.AssignmentID]
		if !ok {
			g := groupFromFact(f)
			r = &g
			byID[f.AssignmentID] = r
			extra = append(extra, f.AssignmentID)
		}
		r.add(f)
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(extra)
	rows := make([]GroupRow, 0, len(byID))
	for _, id := range append(order, extra...) {
		rows = append(rows, *byID[id])
	}

	return rows, nil
}

func groupFromFact(f storage.HourlyFact) GroupRow {
	return GroupRow{
		AssignmentID:     f.AssignmentID,
		ProductionID:     f.ProductionID,
		ProductionName:   f.ProductionName,
		MachineGroupID:   f.MachineGroupID,
		MachineGroupName: f.MachineGroupName,
	}
}
