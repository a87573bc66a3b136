package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"prod-tracker/internal/constants"
	"prod-tracker/internal/lib/pagination"
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/service/target"
	"prod-tracker/internal/storage"
)

const (
	StatusAchieved = "achieved"
	StatusBelow    = "below"

	dashboardDays = 7
)

type SummaryRow struct {
	AssignmentID          int64   `json:"assignment_id"`
	ProductionID          int64   `json:"production_id"`
	ProductionName        string  `json:"production_name"`
	MachineGroupID        int64   `json:"machine_group_id"`
	MachineGroupName      string  `json:"machine_group_name"`
	TargetQtyNormal       int64   `json:"target_qty_normal"`
	TargetQtyReject       int64   `json:"target_qty_reject"`
	TargetTotal           int64   `json:"target_total"`
	ActualQtyNormal       int64   `json:"actual_qty_normal"`
	ActualQtyReject       int64   `json:"actual_qty_reject"`
	ActualTotal           int64   `json:"actual_total"`
	Variance              int64   `json:"variance"`
	AchievementPercentage float64 `json:"achievement_percentage"`
	Status                string  `json:"status"`
}

type DailySummary struct {
	Date  string       `json:"date"`
	Rows  []SummaryRow `json:"rows"`
	Total SummaryRow   `json:"total"`
}

type DayTotals struct {
	Date string `json:"date"`
	Totals
}

type WeeklyRow struct {
	GroupRow
	Days []DayTotals `json:"days"`
}

type Dashboard struct {
	Date    string                `json:"date"`
	Summary DailySummary          `json:"summary"`
	Rollups []storage.DailyRollup `json:"rollups"`
}

var weeklySorts = map[string]comparator[WeeklyRow]{
	"production":    then(byString(func(r WeeklyRow) string { return r.ProductionName }), byString(func(r WeeklyRow) string { return r.MachineGroupName })),
	"machine_group": byString(func(r WeeklyRow) string { return r.MachineGroupName }),
	"total_output":  byNumber(func(r WeeklyRow) int64 { return r.TotalOutput }),
	"total_target":  byNumber(func(r WeeklyRow) int64 { return r.TotalTarget }),
	"variance":      byNumber(func(r WeeklyRow) int64 { return r.TotalOutput - r.TotalTarget }),
}

var summarySorts = map[string]comparator[SummaryRow]{
	"production":             then(byString(func(r SummaryRow) string { return r.ProductionName }), byString(func(r SummaryRow) string { return r.MachineGroupName })),
	"machine_group":          byString(func(r SummaryRow) string { return r.MachineGroupName }),
	"target_total":           byNumber(func(r SummaryRow) int64 { return r.TargetTotal }),
	"actual_total":           byNumber(func(r SummaryRow) int64 { return r.ActualTotal }),
	"variance":               byNumber(func(r SummaryRow) int64 { return summaryVariance(r) }),
	"achievement_percentage": byNumber(func(r SummaryRow) float64 { return Achievement(r.ActualTotal, r.TargetTotal) }),
}

// DailySummary сводка за локальные сутки по каждому закреплению.
// Цели: кол-во годных override(qty_normal) -> default(qty_normal) -> default(qty) -> 0,
// брак override(qty_reject) -> default(qty_reject) -> 0.
func (s *Service) DailySummary(ctx context.Context, date time.Time, productionID *int64, page pagination.Params) (DailySummary, error) {
	const op = "service.aggregate.DailySummary"

	date = timeanchor.LocalDate(date)
	filter := storage.AssignmentFilter{ProductionID: productionID}

	assignments, err := s.storage.ListAssignments(ctx, filter)
	if err != nil {
		return DailySummary{}, fmt.Errorf("%s: ошибка получения закреплений: %w", op, err)
	}

	ids := make([]int64, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.ID)
	}

	overrides, err := s.targets.LoadOverrides(ctx, ids, date)
	if err != nil {
		return DailySummary{}, fmt.Errorf("%s: %w", op, err)
	}

	type actual struct{ normal, reject int64 }
	actuals := make(map[int64]*actual, len(assignments))
	for _, id := range ids {
		actuals[id] = &actual{}
	}

	from, to := timeanchor.LocalDateRangeToUTC(date)
	err = eachFact(s.facts(ctx, from, to, filter), func(f storage.HourlyFact) {
		if a, ok := actuals[f.AssignmentID]; ok {
			a.normal += int64(f.Output.Normal())
			a.reject += int64(f.Output.Reject())
		}
	})
	if err != nil {
		return DailySummary{}, fmt.Errorf("%s: %w", op, err)
	}

	res := DailySummary{Date: timeanchor.FormatDate(date), Rows: make([]SummaryRow, 0, len(assignments))}
	for i := range assignments {
		a := &assignments[i]
		ov := overrides[a.ID]

		row := SummaryRow{
			AssignmentID:     a.ID,
			ProductionID:     a.ProductionID,
			ProductionName:   a.ProductionName,
			MachineGroupID:   a.MachineGroupID,
			MachineGroupName: a.MachineGroupName,
			TargetQtyNormal:  int64(target.ResolveWithFallback(a, ov, constants.FieldQtyNormal, constants.FieldQty).Target),
			TargetQtyReject:  int64(target.ResolveWithFallback(a, ov, constants.FieldQtyReject).Target),
			ActualQtyNormal:  actuals[a.ID].normal,
			ActualQtyReject:  actuals[a.ID].reject,
		}
		finishSummaryRow(&row)
		res.Rows = append(res.Rows, row)

		res.Total.TargetQtyNormal += row.TargetQtyNormal
		res.Total.TargetQtyReject += row.TargetQtyReject
		res.Total.ActualQtyNormal += row.ActualQtyNormal
		res.Total.ActualQtyReject += row.ActualQtyReject
	}
	finishSummaryRow(&res.Total)

	sortRows(res.Rows, summarySorts, page.SortBy, "production", page.Desc())
	if page.PerPage > 0 {
		res.Rows = pagination.Page(res.Rows, page)
	}

	return res, nil
}

// WeeklyByGroup неделя пн-вс, содержащая дату, с разбивкой по дням
func (s *Service) WeeklyByGroup(ctx context.Context, date time.Time, filter storage.AssignmentFilter, page pagination.Params) (ListResult[WeeklyRow], error) {
	const op = "service.aggregate.WeeklyByGroup"

	monday, sunday := timeanchor.WeekRange(date)
	week, err := timeanchor.NewRange(monday, sunday)
	if err != nil {
		return ListResult[WeeklyRow]{}, fmt.Errorf("%s: %w", op, err)
	}
	dates := timeanchor.DatesBetween(monday, sunday)

	assignments, err := s.storage.ListAssignments(ctx, filter)
	if err != nil {
		return ListResult[WeeklyRow]{}, fmt.Errorf("%s: ошибка получения закреплений: %w", op, err)
	}

	newRow := func(g GroupRow) *WeeklyRow {
		r := &WeeklyRow{GroupRow: g, Days: make([]DayTotals, len(dates))}
		for i, d := range dates {
			r.Days[i].Date = timeanchor.FormatDate(d)
		}
		return r
	}

	byID := map[int64]*WeeklyRow{}
	var order []int64
	for _, a := range assignments {
		byID[a.ID] = newRow(GroupRow{
			AssignmentID:     a.ID,
			ProductionID:     a.ProductionID,
			ProductionName:   a.ProductionName,
			MachineGroupID:   a.MachineGroupID,
			MachineGroupName: a.MachineGroupName,
		})
		order = append(order, a.ID)
	}

	from, to := week.UTC()
	err = eachFact(s.facts(ctx, from, to, filter), func(f storage.HourlyFact) {
		r, ok := byID[f.AssignmentID]
		if !ok {
			r = newRow(groupFromFact(f))
			byID[f.AssignmentID] = r
			order = append(order, f.AssignmentID)
		}
		day := int(timeanchor.LocalDate(f.RecordedHour).Sub(monday).Hours() / 24)
		if day >= 0 && day < len(r.Days) {
			r.Days[day].add(f)
		}
		r.add(f)
	})
	if err != nil {
		return ListResult[WeeklyRow]{}, fmt.Errorf("%s: %w", op, err)
	}

	rows := make([]WeeklyRow, 0, len(order))
	for _, id := range order {
		rows = append(rows, *byID[id])
	}
	sortRows(rows, weeklySorts, page.SortBy, "production", page.Desc())

	return paginate(rows, page), nil
}

// Dashboard сводка за дату и материализованные итоги последних 7 дней
func (s *Service) Dashboard(ctx context.Context, date time.Time) (Dashboard, error) {
	const op = "service.aggregate.Dashboard"

	date = timeanchor.LocalDate(date)
	res := Dashboard{Date: timeanchor.FormatDate(date)}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		summary, err := s.DailySummary(gctx, date, nil, pagination.Params{})
		if err != nil {
			return err
		}
		res.Summary = summary
		return nil
	})

	g.Go(func() error {
		rollups, err := s.storage.ListDailyRollups(gctx, date.AddDate(0, 0, -(dashboardDays-1)), date)
		if err != nil {
			return err
		}
		res.Rollups = rollups
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

// finishSummaryRow производные поля из целей и факта
func finishSummaryRow(r *SummaryRow) {
	r.TargetTotal = r.TargetQtyNormal + r.TargetQtyReject
	r.ActualTotal = r.ActualQtyNormal + r.ActualQtyReject
	r.Variance = summaryVariance(*r)
	r.AchievementPercentage = Achievement(r.ActualTotal, r.TargetTotal)
	r.Status = Status(r.Variance)
}

// summaryVariance перевыполнение по годным плюс недобор брака относительно допустимого
func summaryVariance(r SummaryRow) int64 {
	return (r.ActualQtyNormal - r.TargetQtyNormal) + (r.TargetQtyReject - r.ActualQtyReject)
}

// Achievement процент выполнения с одним знаком, округление от нуля
func Achievement(actual, targetTotal int64) float64 {
	if targetTotal <= 0 {
		return 0
	}
	return decimal.NewFromInt(actual).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(targetTotal)).
		Round(1).
		InexactFloat64()
}

func Status(variance int64) string {
	if variance >= 0 {
		return StatusAchieved
	}
	return StatusBelow
}
