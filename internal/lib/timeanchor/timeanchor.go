// Package timeanchor переводит локальное время завода (Asia/Jakarta, UTC+7, без перехода
// на летнее время) в UTC для хранения и обратно для отображения.
//
// Все суточные окна считаются в локальных сутках, а в базе лежит UTC, поэтому любая
// граница запроса должна строиться здесь: локальная полночь это 17:00 UTC предыдущего дня.
package timeanchor

import (
	"fmt"
	"time"

	"prod-tracker/internal/lib/apperr"
)

const (
	DateLayout = "2006-01-02"
	HourLayout = "2006-01-02 15:00"

	offsetSeconds = 7 * 60 * 60
)

// Location фиксированная зона без tzdata, DST у Джакарты нет
var Location = time.FixedZone("Asia/Jakarta", offsetSeconds)

// Date возвращает локальную полночь для календарной даты
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, Location)
}

// LocalDate отбрасывает время, оставляя локальную календарную дату
func LocalDate(t time.Time) time.Time {
	l := t.In(Location)
	return Date(l.Year(), l.Month(), l.Day())
}

func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, Location)
	if err != nil {
		return time.Time{}, apperr.InvalidArgument("date %q must be YYYY-MM-DD", s)
	}
	return d, nil
}

func FormatDate(d time.Time) string {
	return d.In(Location).Format(DateLayout)
}

// ToStorageHour локальная дата + час суток -> UTC с обнуленными минутами и секундами
func ToStorageHour(localDate time.Time, hourOfDay int) (time.Time, error) {
	if hourOfDay < 0 || hourOfDay > 23 {
		return time.Time{}, apperr.InvalidArgument("hour of day %d is outside 0..23", hourOfDay)
	}

	d := LocalDate(localDate)
	local := time.Date(d.Year(), d.Month(), d.Day(), hourOfDay, 0, 0, 0, Location)

	return local.UTC(), nil
}

// LocalDateRangeToUTC границы локальных суток 00:00:00 и 23:59:59 в UTC, обе включительно
func LocalDateRangeToUTC(localDate time.Time) (time.Time, time.Time) {
	d := LocalDate(localDate)
	start := d.UTC()
	end := d.Add(24*time.Hour - time.Second).UTC()

	return start, end
}

// UTCToLocalDisplay обратное преобразование: локальная дата и час
func UTCToLocalDisplay(ts time.Time) (time.Time, int) {
	l := ts.In(Location)
	return Date(l.Year(), l.Month(), l.Day()), l.Hour()
}

// HourLabel метка часового бакета в локальном времени
func HourLabel(ts time.Time) string {
	return ts.In(Location).Truncate(time.Hour).Format(HourLayout)
}

// DatesBetween все локальные даты от from до to включительно
func DatesBetween(from, to time.Time) []time.Time {
	from, to = LocalDate(from), LocalDate(to)
	if to.Before(from) {
		return nil
	}

	var dates []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// WeekRange неделя понедельник-воскресенье, содержащая дату
func WeekRange(localDate time.Time) (time.Time, time.Time) {
	d := LocalDate(localDate)
	shift := (int(d.Weekday()) + 6) % 7
	monday := d.AddDate(0, 0, -shift)

	return monday, monday.AddDate(0, 0, 6)
}

// Range диапазон локальных дат, преобразуемый в UTC-границы для запросов
type Range struct {
	From time.Time
	To   time.Time
}

func NewRange(from, to time.Time) (Range, error) {
	from, to = LocalDate(from), LocalDate(to)
	if to.Before(from) {
		return Range{}, apperr.InvalidArgument("range end %s is before start %s", FormatDate(to), FormatDate(from))
	}
	return Range{From: from, To: to}, nil
}

func (r Range) UTC() (time.Time, time.Time) {
	start, _ := LocalDateRangeToUTC(r.From)
	_, end := LocalDateRangeToUTC(r.To)
	return start, end
}

func (r Range) String() string {
	return fmt.Sprintf("%s..%s", FormatDate(r.From), FormatDate(r.To))
}
