package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"prod-tracker/internal/constants"
	"prod-tracker/internal/lib/apperr"
	"prod-tracker/internal/lib/format"
	"prod-tracker/internal/lib/logger"
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/service/hourly"
	"prod-tracker/internal/storage"
)

type RowStatus string

const (
	RowPending RowStatus = "pending"
	RowValid   RowStatus = "valid"
	RowInvalid RowStatus = "invalid"
)

const defaultMaxRows = 5000

type RawRow struct {
	Production   Cell `json:"production"`
	MachineGroup Cell `json:"machine_group"`
	DateTime     Cell `json:"datetime"`
	QtyNormal    Cell `json:"qty_normal"`
	QtyReject    Cell `json:"qty_reject"`
	Notes        Cell `json:"notes"`

	// Line номер строки листа, 0 если строка пришла не из файла
	Line int `json:"line,omitempty"`
}

type ParsedRow struct {
	AssignmentID     int64          `json:"assignment_id"`
	ProductionName   string         `json:"production_name"`
	MachineGroupName string         `json:"machine_group_name"`
	LocalDate        string         `json:"local_date"`
	Hour             int            `json:"hour"`
	RecordedHour     time.Time      `json:"recorded_hour"`
	Output           storage.Output `json:"output"`
	Notes            string         `json:"notes"`
}

type RowResult struct {
	Row    int        `json:"row"`
	Status RowStatus  `json:"status"`
	Raw    RawRow     `json:"raw"`
	Parsed *ParsedRow `json:"parsed,omitempty"`
	Errors []string   `json:"errors"`
}

type Summary struct {
	Total     int  `json:"total"`
	Valid     int  `json:"valid"`
	Invalid   int  `json:"invalid"`
	CanImport bool `json:"can_import"`
}

type Report struct {
	BatchID uuid.UUID   `json:"batch_id"`
	Rows    []RowResult `json:"rows"`
	Summary Summary     `json:"summary"`
}

type CommitResult struct {
	BatchID  uuid.UUID `json:"batch_id"`
	Imported int       `json:"imported"`
	Skipped  int       `json:"skipped"`
}

type Storage interface {
	ListActiveProductions(ctx context.Context) ([]storage.Production, error)
	ListMachineGroups(ctx context.Context) ([]storage.MachineGroup, error)
	ListAssignments(ctx context.Context, f storage.AssignmentFilter) ([]storage.Assignment, error)
	HourlyFactExists(ctx context.Context, assignmentID int64, hour time.Time, excludeID int64) (bool, error)
}

type FactCreator interface {
	Create(ctx context.Context, in hourly.CreateInput) (*storage.HourlyFact, error)
}

type Importer struct {
	log     *slog.Logger
	storage Storage
	facts   FactCreator
	maxRows int
}

func New(log *slog.Logger, storage Storage, facts FactCreator, maxRows int) *Importer {
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	return &Importer{log: log, storage: storage, facts: facts, maxRows: maxRows}
}

// lookup справочники одного запуска, не разделяются между запусками
type lookup struct {
	productions map[string]storage.Production
	groups      map[string]storage.MachineGroup
	pairs       map[[2]int64]storage.Assignment
}

func (im *Importer) preload(ctx context.Context) (*lookup, error) {
	var (
		productions []storage.Production
		groups      []storage.MachineGroup
		assignments []storage.Assignment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		productions, err = im.storage.ListActiveProductions(gctx)
		return err
	})
	g.Go(func() (err error) {
		groups, err = im.storage.ListMachineGroups(gctx)
		return err
	})
	g.Go(func() (err error) {
		assignments, err = im.storage.ListAssignments(gctx, storage.AssignmentFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	l := &lookup{
		productions: make(map[string]storage.Production, len(productions)),
		groups:      make(map[string]storage.MachineGroup, len(groups)),
		pairs:       make(map[[2]int64]storage.Assignment, len(assignments)),
	}
	for _, p := range productions {
		l.productions[p.Name] = p
	}
	for _, mg := range groups {
		l.groups[mg.Name] = mg
	}
	for _, a := range assignments {
		l.pairs[[2]int64{a.ProductionID, a.MachineGroupID}] = a
	}

	return l, nil
}

// Validate проверяет все строки, по каждой собираются все ошибки.
// Две строки партии на один (группа, час) помечаются дубликатами.
func (im *Importer) Validate(ctx context.Context, rows []RawRow) (*Report, error) {
	const op = "service.importer.Validate"

	if len(rows) > im.maxRows {
		return nil, fmt.Errorf("%s: %w", op, apperr.InvalidArgument("batch has %d rows, limit is %d", len(rows), im.maxRows))
	}

	l, err := im.preload(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: ошибка загрузки справочников: %w", op, err)
	}

	type slot struct {
		assignmentID int64
		hour         int64
	}
	seen := map[slot]int{}

	report := &Report{BatchID: uuid.New(), Rows: make([]RowResult, 0, len(rows))}

	for i, raw := range rows {
		res := RowResult{Row: i + 1, Status: RowPending, Raw: raw, Errors: []string{}}
		if raw.Line > 0 {
			res.Row = raw.Line
		}

		parsed, a, errs := l.parseRow(raw)
		res.Errors = append(res.Errors, errs...)

		if a != nil && !parsed.RecordedHour.IsZero() {
			exists, err := im.storage.HourlyFactExists(ctx, a.ID, parsed.RecordedHour, 0)
			if err != nil {
				return nil, fmt.Errorf("%s: строка %d: %w", op, res.Row, err)
			}
			label := timeanchor.HourLabel(parsed.RecordedHour)
			if exists {
				res.Errors = append(res.Errors, fmt.Sprintf("Duplicate entry: %s / %s already has a record at %s",
					a.ProductionName, format.Display(a.MachineGroupName), label))
			}

			k := slot{a.ID, parsed.RecordedHour.Unix()}
			if first, ok := seen[k]; ok {
				res.Errors = append(res.Errors, fmt.Sprintf("Duplicate entry: row %d already targets %s at %s",
					first, format.Display(a.MachineGroupName), label))
			} else {
				seen[k] = res.Row
			}
		}

		if len(res.Errors) == 0 {
			res.Status = RowValid
			res.Parsed = parsed
			report.Summary.Valid++
		} else {
			res.Status = RowInvalid
			if a != nil {
				res.Parsed = parsed
			}
			report.Summary.Invalid++
		}
		report.Rows = append(report.Rows, res)
	}

	report.Summary.Total = len(rows)
	report.Summary.CanImport = report.Summary.Invalid == 0 && report.Summary.Valid > 0

	im.log.Info("import validated",
		slog.String("op", op),
		slog.String("batch_id", report.BatchID.String()),
		slog.Int("total", report.Summary.Total),
		slog.Int("invalid", report.Summary.Invalid),
	)

	return report, nil
}

// Commit только после успешной валидации всей партии. Строка, проигравшая гонку
// за час, считается пропущенной.
func (im *Importer) Commit(ctx context.Context, rows []RawRow) (*CommitResult, *Report, error) {
	const op = "service.importer.Commit"

	report, err := im.Validate(ctx, rows)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	res := &CommitResult{BatchID: report.BatchID}
	if !report.Summary.CanImport {
		return res, report, fmt.Errorf("%s: %w", op, apperr.ErrValidationFailed)
	}

	log := im.log.With(slog.String("op", op), slog.String("batch_id", report.BatchID.String()))

	for _, row := range report.Rows {
		p := row.Parsed
		localDate, _ := timeanchor.UTCToLocalDisplay(p.RecordedHour)

		_, err := im.facts.Create(ctx, hourly.CreateInput{
			AssignmentID: p.AssignmentID,
			LocalDate:    localDate,
			Hour:         p.Hour,
			Output:       p.Output,
			Notes:        p.Notes,
		})
		if err != nil {
			if errors.Is(err, apperr.ErrDuplicateEntry) {
				log.Warn("row skipped", slog.Int("row", row.Row), logger.Err(err))
				res.Skipped++
				continue
			}
			return res, report, fmt.Errorf("%s: строка %d: %w", op, row.Row, err)
		}
		res.Imported++
	}

	log.Info("import committed", slog.Int("imported", res.Imported), slog.Int("skipped", res.Skipped))

	return res, report, nil
}

// parseRow проверки, не требующие обращения к базе
func (l *lookup) parseRow(raw RawRow) (*ParsedRow, *storage.Assignment, []string) {
	var errs []string
	parsed := &ParsedRow{Notes: raw.Notes.String()}

	if local, ok := ParseDateTime(raw.DateTime); ok {
		parsed.LocalDate = timeanchor.FormatDate(local)
		parsed.Hour = local.Hour()
		parsed.RecordedHour, _ = timeanchor.ToStorageHour(local, local.Hour())
	} else {
		errs = append(errs, "Invalid DateTime format")
	}

	var production *storage.Production
	if name := raw.Production.String(); name == "" {
		errs = append(errs, "Production is required")
	} else if p, ok := l.productions[name]; ok {
		production = &p
		parsed.ProductionName = p.Name
	} else {
		errs = append(errs, fmt.Sprintf("Production '%s' not found", name))
	}

	var group *storage.MachineGroup
	if name := raw.MachineGroup.String(); name == "" {
		errs = append(errs, "Machine group is required")
	} else if mg, ok := l.groups[format.Canonical(name)]; ok {
		group = &mg
		parsed.MachineGroupName = mg.Name
	} else {
		errs = append(errs, fmt.Sprintf("Machine group '%s' not found", name))
	}

	var assignment *storage.Assignment
	if production != nil && group != nil {
		if a, ok := l.pairs[[2]int64{production.ID, group.ID}]; ok {
			assignment = &a
			parsed.AssignmentID = a.ID
		} else {
			errs = append(errs, fmt.Sprintf("Machine group '%s' is not assigned to production '%s'",
				format.Display(group.Name), production.Name))
		}
	}

	normal, okNormal := raw.QtyNormal.Quantity()
	if !okNormal {
		errs = append(errs, "qty_normal must be a non-negative integer")
	}
	reject, okReject := raw.QtyReject.Quantity()
	if !okReject {
		errs = append(errs, "qty_reject must be a non-negative integer")
	}

	if assignment != nil && okNormal && okReject {
		out := outputFor(assignment.Fields, normal, reject)
		if err := assignment.Fields.ValidateOutput(out); err != nil {
			errs = append(errs, err.Error())
		}
		parsed.Output = out
	}

	return parsed, assignment, errs
}

// outputFor колонки файла раскладываются по полям варианта группы
func outputFor(fields storage.FieldConfig, normal, reject *int) storage.Output {
	var out storage.Output
	if normal != nil {
		if !fields.Has(constants.FieldQtyNormal) && fields.Has(constants.FieldQty) {
			out.Qty = normal
		} else {
			out.QtyNormal = normal
		}
	}
	out.QtyReject = reject
	return out
}
