package leave

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDateWindow(t *testing.T) {
	today := june(10)
	tests := []struct {
		name      string
		leaveType LeaveType
		start     Date
		ok        bool
	}{
		{"casual tomorrow", TypeCasual, june(11), true},
		{"casual today", TypeCasual, june(10), false},
		{"casual yesterday", TypeCasual, june(9), false},
		{"sick three days back", TypeSick, june(7), true},
		{"sick four days back", TypeSick, june(6), false},
		{"sick tomorrow", TypeSick, june(11), true},
		{"sick day after tomorrow", TypeSick, june(12), false},
		{"lop today", TypeLOP, june(10), true},
		{"lop yesterday", TypeLOP, june(9), false},
		{"permission today", TypePermission, june(10), true},
		{"permission yesterday", TypePermission, june(9), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDateWindow(tt.leaveType, tt.start, today)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, KindValidation, KindOf(err))
			}
		})
	}
}

func TestCasualNoticeDays(t *testing.T) {
	assert.Equal(t, 3, CasualNoticeDays(dec(0.5)))
	assert.Equal(t, 3, CasualNoticeDays(dec(2)))
	assert.Equal(t, 7, CasualNoticeDays(dec(2.5)))
	assert.Equal(t, 7, CasualNoticeDays(dec(5)))
	assert.Equal(t, 30, CasualNoticeDays(dec(5.5)))
}

func TestValidateCasualNotice(t *testing.T) {
	today := june(1)
	assert.NoError(t, ValidateCasualNotice(dec(2), june(4), today))
	assert.Error(t, ValidateCasualNotice(dec(2), june(3), today))
	assert.NoError(t, ValidateCasualNotice(dec(5), june(8), today))
	assert.Error(t, ValidateCasualNotice(dec(5), june(7), today))
	assert.Error(t, ValidateCasualNotice(dec(6), june(30), today))
}

func TestFindOverlap(t *testing.T) {
	existing := []LeaveDay{
		{Date: june(3), DayType: DayFull, Status: StatusPending},
		{Date: june(4), DayType: DayFull, Status: StatusRejected},
	}
	assert.NoError(t, FindOverlap(existing, []DaySpan{{Date: june(5), DayType: DayFull}}))

	// Rejected days do not block reapplication.
	assert.NoError(t, FindOverlap(existing, []DaySpan{{Date: june(4), DayType: DayFull}}))

	err := FindOverlap(existing, []DaySpan{{Date: june(3), DayType: DayHalf}})
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Contains(t, err.Error(), "2026-06-03")
}

func TestValidateMonthlyCap(t *testing.T) {
	capFive := decimal.NewFromInt(5)
	request := []DaySpan{
		{Date: june(10), DayType: DayFull},
		{Date: june(11), DayType: DayFull},
	}

	assert.NoError(t, ValidateMonthlyCap(TypeLOP, request, nil, capFive))
	assert.NoError(t, ValidateMonthlyCap(TypeLOP, request, map[string]decimal.Decimal{"2026-06": dec(3)}, capFive))

	err := ValidateMonthlyCap(TypeLOP, request, map[string]decimal.Decimal{"2026-06": dec(3.5)}, capFive)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestValidateMonthlyCapPerMonth(t *testing.T) {
	// A request straddling months is capped in each month independently.
	request := []DaySpan{
		{Date: must("2026-06-30"), DayType: DayFull},
		{Date: must("2026-07-01"), DayType: DayFull},
	}
	committed := map[string]decimal.Decimal{"2026-06": dec(4), "2026-07": dec(5)}
	err := ValidateMonthlyCap(TypeLOP, request, committed, decimal.NewFromInt(5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2026-07")
}

func TestValidatePermissionWindow(t *testing.T) {
	assert.NoError(t, ValidatePermissionWindow(TypePermission, "09:30", "11:00"))
	assert.Error(t, ValidatePermissionWindow(TypePermission, "", ""))
	assert.Error(t, ValidatePermissionWindow(TypePermission, "9:30", "11:00"))
	assert.Error(t, ValidatePermissionWindow(TypePermission, "24:00", "25:00"))
	assert.Error(t, ValidatePermissionWindow(TypePermission, "11:00", "09:30"))
	assert.Error(t, ValidatePermissionWindow(TypePermission, "11:00", "11:00"))
	assert.NoError(t, ValidatePermissionWindow(TypeCasual, "", ""))
	assert.Error(t, ValidatePermissionWindow(TypeCasual, "09:30", "11:00"))
}

func TestValidateEmployeeEligibility(t *testing.T) {
	assert.NoError(t, ValidateEmployeeEligibility("active", TypeCasual))
	assert.NoError(t, ValidateEmployeeEligibility("on_notice", TypeSick))
	assert.NoError(t, ValidateEmployeeEligibility("on_notice", TypeLOP))
	assert.NoError(t, ValidateEmployeeEligibility("on_notice", TypePermission))
	assert.Error(t, ValidateEmployeeEligibility("on_notice", TypeCasual))
}

func TestValidateSufficiency(t *testing.T) {
	assert.NoError(t, ValidateSufficiency(TypeCasual, dec(2), dec(2)))
	assert.NoError(t, ValidateSufficiency(TypeLOP, decimal.Zero, dec(5)))
	assert.NoError(t, ValidateSufficiency(TypePermission, decimal.Zero, dec(1)))

	err := ValidateSufficiency(TypeSick, dec(0.5), dec(1))
	require.Error(t, err)
	assert.Equal(t, KindInsufficientBalance, KindOf(err))
}

func TestErrorKinds(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFoundf("x")))
	assert.Equal(t, KindForbidden, KindOf(Forbiddenf("x")))
	assert.Equal(t, KindState, KindOf(Statef("x")))
	assert.Equal(t, KindUnknown, KindOf(assert.AnError))
}
