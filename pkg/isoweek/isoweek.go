// Package isoweek handles ISO-8601 week identifiers of the form 2025-W07.
package isoweek

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	pkgerrors "github.com/scoutledger/backend/pkg/errors"
)

var weekRe = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// Week is an ISO year and week number. The zero value is invalid.
type Week struct {
	Year int
	Num  int
}

// Parse validates raw and returns the week. Errors carry CodeValidation.
func Parse(raw string) (Week, error) {
	m := weekRe.FindStringSubmatch(raw)
	if m == nil {
		return Week{}, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid iso week %q", raw)
	}
	year, _ := strconv.Atoi(m[1])
	num, _ := strconv.Atoi(m[2])
	if num < 1 || num > WeeksInYear(year) {
		return Week{}, pkgerrors.Newf(pkgerrors.CodeValidation, "iso week %q out of range", raw)
	}
	return Week{Year: year, Num: num}, nil
}

// MustParse is Parse for constants and tests.
func MustParse(raw string) Week {
	w, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return w
}

// Of returns the ISO week containing t.
func Of(t time.Time) Week {
	year, num := t.UTC().ISOWeek()
	return Week{Year: year, Num: num}
}

// LastClosed returns the most recent week that has fully ended at now.
func LastClosed(now time.Time) Week {
	return Of(now).Prev()
}

// WeeksInYear reports 52 or 53 for the ISO year.
func WeeksInYear(year int) int {
	_, num := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return num
}

func (w Week) String() string {
	return fmt.Sprintf("%04d-W%02d", w.Year, w.Num)
}

func (w Week) IsZero() bool {
	return w.Year == 0 && w.Num == 0
}

// Start returns Monday 00:00 UTC of the week.
func (w Week) Start() time.Time {
	// Jan 4th is always in week 1.
	jan4 := time.Date(w.Year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset)
	return monday.AddDate(0, 0, (w.Num-1)*7)
}

// End returns the instant the following week starts.
func (w Week) End() time.Time {
	return w.Start().AddDate(0, 0, 7)
}

func (w Week) Add(n int) Week {
	return Of(w.Start().AddDate(0, 0, 7*n))
}

func (w Week) Next() Week {
	return w.Add(1)
}

func (w Week) Prev() Week {
	return w.Add(-1)
}

// Sub returns the number of weeks from other to w.
func (w Week) Sub(other Week) int {
	return int(w.Start().Sub(other.Start()).Hours() / (24 * 7))
}

func (w Week) Before(other Week) bool {
	return w.Start().Before(other.Start())
}

func (w Week) After(other Week) bool {
	return w.Start().After(other.Start())
}

// Range returns count consecutive weeks starting at w.
func (w Week) Range(count int) []Week {
	out := make([]Week, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, w.Add(i))
	}
	return out
}
