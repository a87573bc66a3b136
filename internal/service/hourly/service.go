package hourly

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"prod-tracker/internal/lib/apperr"
	"prod-tracker/internal/lib/pagination"
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/storage"
)

type FactStorage interface {
	GetAssignment(ctx context.Context, id int64) (*storage.Assignment, error)
	HourlyFactExists(ctx context.Context, assignmentID int64, hour time.Time, excludeID int64) (bool, error)
	InsertHourlyFact(ctx context.Context, f storage.HourlyFact) (int64, error)
	UpdateHourlyFact(ctx context.Context, f storage.HourlyFact) error
	DeleteHourlyFact(ctx context.Context, id int64) error
	GetHourlyFact(ctx context.Context, id int64) (*storage.HourlyFact, error)
	ListHourlyFacts(ctx context.Context, q storage.FactQuery) (storage.FactPage, error)
	HourlyFacts(ctx context.Context, q storage.FactQuery) iter.Seq2[storage.HourlyFact, error]
}

// TargetSnapshotter почасовые цели группы на локальную дату
type TargetSnapshotter interface {
	HourlySnapshot(ctx context.Context, a *storage.Assignment, date time.Time) (storage.TargetSnapshot, error)
}

type CreateInput struct {
	AssignmentID int64
	LocalDate    time.Time
	Hour         int
	Output       storage.Output
	Notes        string
}

// UpdateInput дата и час не обязательны, по умолчанию остаются прежними
type UpdateInput struct {
	Output    storage.Output
	Notes     string
	LocalDate *time.Time
	Hour      *int
}

type Service struct {
	log     *slog.Logger
	storage FactStorage
	targets TargetSnapshotter
}

func NewService(log *slog.Logger, storage FactStorage, targets TargetSnapshotter) *Service {
	return &Service{log: log, storage: storage, targets: targets}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*storage.HourlyFact, error) {
	const op = "service.hourly.Create"

	a, err := s.storage.GetAssignment(ctx, in.AssignmentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.Fields.ValidateOutput(in.Output); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hour, err := timeanchor.ToStorageHour(in.LocalDate, in.Hour)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.ensureFree(ctx, a.ID, hour, 0); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	snap, err := s.targets.HourlySnapshot(ctx, a, timeanchor.LocalDate(in.LocalDate))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	fact := storage.HourlyFact{
		AssignmentID:     a.ID,
		RecordedHour:     hour,
		Output:           in.Output,
		Targets:          snap,
		Notes:            in.Notes,
		ProductionID:     a.ProductionID,
		ProductionName:   a.ProductionName,
		MachineGroupID:   a.MachineGroupID,
		MachineGroupName: a.MachineGroupName,
	}

	// гонка двух писателей разрешается уникальным ключом, хранилище вернет DuplicateEntry
	id, err := s.storage.InsertHourlyFact(ctx, fact)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	fact.ID = id

	s.log.Debug("hourly fact created",
		slog.String("op", op),
		slog.Int64("id", id),
		slog.Int64("assignment_id", a.ID),
		slog.String("hour", timeanchor.HourLabel(hour)),
	)

	return &fact, nil
}

func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*storage.HourlyFact, error) {
	const op = "service.hourly.Update"

	fact, err := s.storage.GetHourlyFact(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a, err := s.storage.GetAssignment(ctx, fact.AssignmentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.Fields.ValidateOutput(in.Output); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	date, hourOfDay := timeanchor.UTCToLocalDisplay(fact.RecordedHour)
	if in.LocalDate != nil {
		date = timeanchor.LocalDate(*in.LocalDate)
	}
	if in.Hour != nil {
		hourOfDay = *in.Hour
	}

	hour, err := timeanchor.ToStorageHour(date, hourOfDay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.ensureFree(ctx, a.ID, hour, fact.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	snap, err := s.targets.HourlySnapshot(ctx, a, date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	fact.RecordedHour = hour
	fact.Output = in.Output
	fact.Notes = in.Notes
	fact.Targets = snap

	if err := s.storage.UpdateHourlyFact(ctx, *fact); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return fact, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	const op = "service.hourly.Delete"

	if err := s.storage.DeleteHourlyFact(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*storage.HourlyFact, error) {
	const op = "service.hourly.Get"

	fact, err := s.storage.GetHourlyFact(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return fact, nil
}

// List страница фактов; неизвестная колонка сортировки заменяется на recorded_hour
func (s *Service) List(ctx context.Context, q storage.FactQuery) (storage.FactPage, error) {
	const op = "service.hourly.List"

	if q.To.Before(q.From) {
		return storage.FactPage{}, apperr.InvalidArgument("range end is before start")
	}
	q.SortBy = pagination.SortKey(storage.FactSortKeys, q.SortBy, storage.DefaultFactSort)

	page, err := s.storage.ListHourlyFacts(ctx, q)
	if err != nil {
		return storage.FactPage{}, fmt.Errorf("%s: %w", op, err)
	}

	return page, nil
}

// QueryRange ленивый перезапускаемый поток фактов по recorded_hour
func (s *Service) QueryRange(ctx context.Context, q storage.FactQuery) iter.Seq2[storage.HourlyFact, error] {
	return s.storage.HourlyFacts(ctx, q)
}

func (s *Service) ensureFree(ctx context.Context, assignmentID int64, hour time.Time, excludeID int64) error {
	exists, err := s.storage.HourlyFactExists(ctx, assignmentID, hour, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Duplicate(assignmentID, hour)
	}
	return nil
}
