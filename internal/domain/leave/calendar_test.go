package leave

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrops/internal/domain/auth"
)

// 2026-06-01 is a Monday.
func june(day int) Date {
	return must(fmt.Sprintf("2026-06-%02d", day))
}

func must(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestCalculateLeaveDaysFullWeek(t *testing.T) {
	total, days, err := CalculateLeaveDays(june(1), june(5), GranFull, GranFull, TypeCasual, auth.RoleEmployee, nil)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(5)), "got %s", total)
	assert.Len(t, days, 5)
}

func TestCalculateLeaveDaysSkipsWeekend(t *testing.T) {
	// Fri 5th through Mon 8th: Sat and Sun drop out for an employee.
	total, days, err := CalculateLeaveDays(june(5), june(8), GranFull, GranFull, TypeCasual, auth.RoleEmployee, nil)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(2)), "got %s", total)
	require.Len(t, days, 2)
	assert.Equal(t, june(5), days[0].Date)
	assert.Equal(t, june(8), days[1].Date)
}

func TestCalculateLeaveDaysInternWorksSaturday(t *testing.T) {
	total, days, err := CalculateLeaveDays(june(5), june(8), GranFull, GranFull, TypeCasual, auth.RoleIntern, nil)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(3)), "got %s", total)
	assert.Len(t, days, 3)
}

func TestCalculateLeaveDaysLOPSpansEverything(t *testing.T) {
	holidays := NewHolidaySet([]Date{june(5)})
	total, days, err := CalculateLeaveDays(june(5), june(8), GranFull, GranFull, TypeLOP, auth.RoleEmployee, holidays)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(4)), "got %s", total)
	assert.Len(t, days, 4)
}

func TestCalculateLeaveDaysHolidayExcluded(t *testing.T) {
	holidays := NewHolidaySet([]Date{june(3)})
	total, _, err := CalculateLeaveDays(june(1), june(5), GranFull, GranFull, TypeSick, auth.RoleEmployee, holidays)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(4)), "got %s", total)
}

func TestCalculateLeaveDaysBoundaryHalves(t *testing.T) {
	total, days, err := CalculateLeaveDays(june(1), june(5), GranSecondHalf, GranFirstHalf, TypeCasual, auth.RoleEmployee, nil)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(4)), "got %s", total)
	require.Len(t, days, 5)
	assert.Equal(t, DayHalf, days[0].DayType)
	assert.Equal(t, DayFull, days[1].DayType)
	assert.Equal(t, DayHalf, days[4].DayType)
}

func TestCalculateLeaveDaysSingleDayUsesStartGranularity(t *testing.T) {
	total, days, err := CalculateLeaveDays(june(2), june(2), GranFirstHalf, GranFull, TypeCasual, auth.RoleEmployee, nil)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(0.5)), "got %s", total)
	require.Len(t, days, 1)
	assert.Equal(t, DayHalf, days[0].DayType)
}

func TestCalculateLeaveDaysExcludedBoundary(t *testing.T) {
	// Start lands on a Sunday: the granularity applies to nothing and the
	// remaining Monday counts at the end granularity.
	total, days, err := CalculateLeaveDays(june(7), june(8), GranFirstHalf, GranFull, TypeCasual, auth.RoleEmployee, nil)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(1)), "got %s", total)
	require.Len(t, days, 1)
	assert.Equal(t, june(8), days[0].Date)
}

func TestCalculateLeaveDaysInvertedRange(t *testing.T) {
	_, _, err := CalculateLeaveDays(june(5), june(1), GranFull, GranFull, TypeCasual, auth.RoleEmployee, nil)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestCalculateLeaveDaysAllExcluded(t *testing.T) {
	// Sat+Sun only, employee, casual: nothing chargeable.
	total, days, err := CalculateLeaveDays(june(6), june(7), GranFull, GranFull, TypeCasual, auth.RoleEmployee, nil)
	require.NoError(t, err)
	assert.True(t, total.IsZero())
	assert.Empty(t, days)
}

func TestSumWeightsMatchesTotal(t *testing.T) {
	total, days, err := CalculateLeaveDays(june(1), june(10), GranSecondHalf, GranFirstHalf, TypeCasual, auth.RoleEmployee, nil)
	require.NoError(t, err)
	assert.True(t, SumWeights(days).Equal(total))
}

func TestDateRoundTrip(t *testing.T) {
	d, err := ParseDate("2026-12-31")
	require.NoError(t, err)
	assert.Equal(t, "2026-12-31", d.String())
	assert.Equal(t, "2027-01-01", d.AddDays(1).String())
	assert.Equal(t, 3, d.DaysUntil(must("2027-01-03")))
	assert.Equal(t, "2026-12", d.MonthKey())
}
