package importer

import (
	"math"
	"time"

	"prod-tracker/internal/lib/timeanchor"
)

// порядок важен: 01/02/2026 читается как d/m/Y
// 1 и 2 в раскладке принимают и 5, и 05
var dateTimeLayouts = []string{
	"2006-1-2 15:04",
	"2006-1-2 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"2006/1/2 15:04",
	"2006/1/2 15:04:05",
	"2-1-2006 15:04",
	"2-1-2006 15:04:05",
}

const (
	// serialEpochOffset дней между 1899-12-30 и 1970-01-01
	serialEpochOffset = 25569
	// maxSerial 9999-12-31
	maxSerial = 2958465
)

// ParseDateTime локальное время из текста или serial-даты таблицы
func ParseDateTime(c Cell) (time.Time, bool) {
	if c.Empty() {
		return time.Time{}, false
	}

	if serial, ok := c.Float(); ok {
		return fromSerial(serial)
	}

	s := c.String()
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, timeanchor.Location); err == nil {
			return storable(t)
		}
	}

	return time.Time{}, false
}

// fromSerial настенное время serial-даты считается локальным
func fromSerial(serial float64) (time.Time, bool) {
	if serial <= 0 || serial >= maxSerial+1 {
		return time.Time{}, false
	}

	secs := math.Round((serial - serialEpochOffset) * 86400)
	u := time.Unix(int64(secs), 0).UTC()

	return storable(time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), 0, timeanchor.Location))
}

// storable MySQL DATETIME хранит только 1..9999 год
func storable(t time.Time) (time.Time, bool) {
	if y := t.UTC().Year(); y < 1 || y > 9999 {
		return time.Time{}, false
	}
	return t, true
}
