package fine

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MonthDay is a fixed holiday recurring every year.
type MonthDay struct {
	Month time.Month
	Day   int
}

// FloatingHoliday is a rule such as "second Saturday of every month".
// Month 0 applies the rule to every month; Nth -1 means the last one.
type FloatingHoliday struct {
	Name    string
	Month   time.Month
	Weekday time.Weekday
	Nth     int
}

type CalendarConfig struct {
	Weekend         []time.Weekday
	ExcludeWeekends bool
	Fixed           []MonthDay
	Floating        []FloatingHoliday
	Closed          []time.Time
}

// Calendar answers which days the library is open. All checks work on the
// UTC calendar date of the argument.
type Calendar struct {
	weekend         map[time.Weekday]bool
	excludeWeekends bool
	fixed           map[MonthDay]bool
	floating        []FloatingHoliday
	closed          map[string]bool
}

func NewCalendar(cfg CalendarConfig) *Calendar {
	c := &Calendar{
		weekend:         map[time.Weekday]bool{},
		excludeWeekends: cfg.ExcludeWeekends,
		fixed:           map[MonthDay]bool{},
		floating:        cfg.Floating,
		closed:          map[string]bool{},
	}
	weekend := cfg.Weekend
	if len(weekend) == 0 {
		weekend = []time.Weekday{time.Saturday, time.Sunday}
	}
	for _, d := range weekend {
		c.weekend[d] = true
	}
	for _, md := range cfg.Fixed {
		c.fixed[md] = true
	}
	for _, d := range cfg.Closed {
		c.closed[dateKey(d)] = true
	}
	return c
}

func (c *Calendar) IsWeekend(t time.Time) bool { return c.weekend[dateOnly(t).Weekday()] }

func (c *Calendar) IsHoliday(t time.Time) bool {
	d := dateOnly(t)
	if c.fixed[MonthDay{Month: d.Month(), Day: d.Day()}] {
		return true
	}
	for _, f := range c.floating {
		if f.matches(d) {
			return true
		}
	}
	return false
}

func (c *Calendar) IsLibraryClosed(t time.Time) bool {
	if c.IsHoliday(t) {
		return true
	}
	if c.excludeWeekends && c.IsWeekend(t) {
		return true
	}
	return c.closed[dateKey(t)]
}

// BusinessDaysBetween counts open days in [start, end).
func (c *Calendar) BusinessDaysBetween(start, end time.Time) int {
	s, e := dateOnly(start), dateOnly(end)
	n := 0
	for d := s; d.Before(e); d = d.AddDate(0, 0, 1) {
		if !c.IsLibraryClosed(d) {
			n++
		}
	}
	return n
}

func (f FloatingHoliday) matches(d time.Time) bool {
	if f.Month != 0 && d.Month() != f.Month {
		return false
	}
	if d.Weekday() != f.Weekday {
		return false
	}
	switch {
	case f.Nth > 0:
		return (d.Day()-1)/7+1 == f.Nth
	case f.Nth == -1:
		return d.AddDate(0, 0, 7).Month() != d.Month()
	}
	return false
}

func dateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func dateKey(t time.Time) string { return dateOnly(t).Format(time.DateOnly) }

// calendarDays is the whole-day distance from a to b, negative when b is earlier.
func calendarDays(a, b time.Time) int {
	return int(dateOnly(b).Sub(dateOnly(a)).Hours() / 24)
}

// ParseMonthDays reads a comma separated "MM-DD" list.
func ParseMonthDays(csv string) ([]MonthDay, error) {
	var out []MonthDay
	for _, part := range splitCSV(csv) {
		t, err := time.Parse("01-02", part)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: want MM-DD", part)
		}
		out = append(out, MonthDay{Month: t.Month(), Day: t.Day()})
	}
	return out, nil
}

// ParseDates reads a comma separated "YYYY-MM-DD" list.
func ParseDates(csv string) ([]time.Time, error) {
	var out []time.Time
	for _, part := range splitCSV(csv) {
		t, err := time.Parse(time.DateOnly, part)
		if err != nil {
			return nil, fmt.Errorf("closed day %q: want YYYY-MM-DD", part)
		}
		out = append(out, t)
	}
	return out, nil
}

// ParseFloating reads "weekday:nth[:month]" rules, e.g. "sat:2" for the
// second Saturday of every month or "mon:-1:5" for the last Monday of May.
func ParseFloating(csv string) ([]FloatingHoliday, error) {
	var out []FloatingHoliday
	for _, part := range splitCSV(csv) {
		fields := strings.Split(part, ":")
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("floating holiday %q: want weekday:nth[:month]", part)
		}
		wd, ok := weekdays[strings.ToLower(fields[0])]
		if !ok {
			return nil, fmt.Errorf("floating holiday %q: unknown weekday", part)
		}
		nth, err := strconv.Atoi(fields[1])
		if err != nil || nth == 0 || nth < -1 || nth > 5 {
			return nil, fmt.Errorf("floating holiday %q: nth must be 1..5 or -1", part)
		}
		f := FloatingHoliday{Name: part, Weekday: wd, Nth: nth}
		if len(fields) == 3 {
			m, err := strconv.Atoi(fields[2])
			if err != nil || m < 1 || m > 12 {
				return nil, fmt.Errorf("floating holiday %q: bad month", part)
			}
			f.Month = time.Month(m)
		}
		out = append(out, f)
	}
	return out, nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
