package leave

import (
	"time"

	"github.com/shopspring/decimal"

	"hrops/internal/domain/auth"
)

// DaySpan is one chargeable calendar date produced by the calculator.
type DaySpan struct {
	Date    Date
	DayType string
}

func (s DaySpan) Weight() decimal.Decimal {
	return dayWeight(s.DayType)
}

// HolidaySet holds the active holiday dates the calculator consults.
type HolidaySet map[Date]struct{}

func NewHolidaySet(dates []Date) HolidaySet {
	set := make(HolidaySet, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}

func (h HolidaySet) Contains(d Date) bool {
	_, ok := h[d]
	return ok
}

// CalculateLeaveDays materializes the chargeable days between start and end
// inclusive. Sundays never count. Saturdays count only for interns (a
// working day for them) or for LOP, which may span any date including
// holidays. Boundary dates carry the caller-supplied granularity weight;
// interior dates are full days. A single-day range uses the start
// granularity alone.
//
// Pure: deterministic for a given holiday set, no I/O.
func CalculateLeaveDays(start, end Date, startGran, endGran Granularity, leaveType LeaveType, role string, holidays HolidaySet) (decimal.Decimal, []DaySpan, error) {
	if end.Before(start) {
		return decimal.Zero, nil, Validationf("end date %s is before start date %s", end, start)
	}

	var days []DaySpan
	total := decimal.Zero
	for d := start; !d.After(end); d = d.AddDays(1) {
		if !chargeable(d, leaveType, role, holidays) {
			continue
		}
		gran := GranFull
		switch {
		case d.Equal(start):
			gran = startGran
		case d.Equal(end):
			gran = endGran
		}
		span := DaySpan{Date: d, DayType: gran.DayType()}
		days = append(days, span)
		total = total.Add(span.Weight())
	}
	return total, days, nil
}

// chargeable reports whether a date counts against leave. LOP spans
// weekends and holidays; everyone else skips Sundays, and Saturdays unless
// the employee is an intern.
func chargeable(d Date, leaveType LeaveType, role string, holidays HolidaySet) bool {
	if leaveType == TypeLOP {
		return true
	}
	switch d.Weekday() {
	case time.Sunday:
		return false
	case time.Saturday:
		if role != auth.RoleIntern {
			return false
		}
	}
	return !holidays.Contains(d)
}

// SumWeights adds up span weights; used to cross-check no_of_days.
func SumWeights(days []DaySpan) decimal.Decimal {
	total := decimal.Zero
	for _, d := range days {
		total = total.Add(d.Weight())
	}
	return total
}
