package main

import (
	"fmt"

	"library-fines/internal/config"
	"library-fines/internal/domain/user"
	"library-fines/internal/usecase/fine"
)

// finePolicy maps configuration onto the fine rules; unset values keep the
// defaults.
func finePolicy(c config.Fine, currencySymbol string) fine.Policy {
	p := fine.DefaultPolicy()
	p.BaseDailyRate = c.BaseDailyRate
	p.SimpleDailyRate = c.SimpleDailyRate
	p.PerBookCap = c.PerBookCap
	p.MonthlyCap = c.MonthlyCap
	p.TotalCap = c.TotalCap
	p.GraceDays = map[user.Classification]int{
		user.Standard: c.GraceStandard,
		user.Student:  c.GraceStudent,
		user.Faculty:  c.GraceFaculty,
		user.Admin:    c.GraceAdmin,
	}
	p.FirstTimeDiscount = c.FirstTimeDiscount
	p.ExcellentHistoryDiscount = c.ExcellentHistoryDiscount
	p.FacultyDiscount = c.FacultyDiscount
	p.ExcludeClosedDays = c.ExcludeClosedDays
	if currencySymbol != "" {
		p.CurrencySymbol = currencySymbol
	}
	return p
}

func calendarConfig(c config.Fine) (fine.CalendarConfig, error) {
	fixed, err := fine.ParseMonthDays(c.Holidays)
	if err != nil {
		return fine.CalendarConfig{}, fmt.Errorf("LIBRARY_HOLIDAYS: %w", err)
	}
	floating, err := fine.ParseFloating(c.FloatingHolidays)
	if err != nil {
		return fine.CalendarConfig{}, fmt.Errorf("LIBRARY_FLOATING_HOLIDAYS: %w", err)
	}
	closed, err := fine.ParseDates(c.ClosedDays)
	if err != nil {
		return fine.CalendarConfig{}, fmt.Errorf("LIBRARY_CLOSED_DAYS: %w", err)
	}
	return fine.CalendarConfig{
		ExcludeWeekends: c.ExcludeWeekends,
		Fixed:           fixed,
		Floating:        floating,
		Closed:          closed,
	}, nil
}
