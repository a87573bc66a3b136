package timeanchor

import "time"

// Clock источник текущего времени, передается явно вместо time.Now()
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// Today локальная дата по часам
func Today(c Clock) time.Time {
	return LocalDate(c.Now())
}
