package performance

import (
	"fmt"
	"strings"
	"time"

	"github.com/aristath/wealth/internal/domain"
)

// Period codes accepted by ParsePeriod.
const (
	Period1M  = "1M"
	Period3M  = "3M"
	Period6M  = "6M"
	PeriodYTD = "YTD"
	Period1Y  = "1Y"
	Period2Y  = "2Y"
	Period5Y  = "5Y"
	PeriodAll = "ALL"
)

// Period is a closed date range. A zero Start means "since the first snapshot".
type Period struct {
	Code  string    `json:"code"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ParsePeriod resolves a period code relative to now. Besides the fixed codes
// it accepts an explicit "YYYY-MM-DD..YYYY-MM-DD" range. An empty code is ALL.
func ParsePeriod(code string, now time.Time) (Period, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = PeriodAll
	}

	end := day(now)
	p := Period{Code: code, End: end}

	switch code {
	case Period1M:
		p.Start = monthsBack(end, 1)
	case Period3M:
		p.Start = monthsBack(end, 3)
	case Period6M:
		p.Start = monthsBack(end, 6)
	case PeriodYTD:
		p.Start = time.Date(end.Year(), time.January, 1, 0, 0, 0, 0, end.Location())
	case Period1Y:
		p.Start = monthsBack(end, 12)
	case Period2Y:
		p.Start = monthsBack(end, 24)
	case Period5Y:
		p.Start = monthsBack(end, 60)
	case PeriodAll:
	default:
		return parseRange(code, now.Location())
	}

	return p, nil
}

func parseRange(code string, loc *time.Location) (Period, error) {
	parts := strings.Split(code, "..")
	if len(parts) != 2 {
		return Period{}, fmt.Errorf("%w: unknown period %q", domain.ErrInvalidInput, code)
	}

	start, err := time.ParseInLocation(domain.DateLayout, strings.TrimSpace(parts[0]), loc)
	if err != nil {
		return Period{}, fmt.Errorf("%w: invalid period start %q", domain.ErrInvalidInput, parts[0])
	}
	end, err := time.ParseInLocation(domain.DateLayout, strings.TrimSpace(parts[1]), loc)
	if err != nil {
		return Period{}, fmt.Errorf("%w: invalid period end %q", domain.ErrInvalidInput, parts[1])
	}
	if end.Before(start) {
		return Period{}, fmt.Errorf("%w: period ends before it starts", domain.ErrInvalidInput)
	}

	return Period{Code: code, Start: start, End: end}, nil
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// monthsBack moves t back n calendar months, clamping the day to the length
// of the target month (2026-03-31 minus one month is 2026-02-28).
func monthsBack(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()-time.Month(n), 1, 0, 0, 0, 0, t.Location())
	d := t.Day()
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}
