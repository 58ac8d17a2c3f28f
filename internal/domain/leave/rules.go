package leave

import (
	"regexp"

	"github.com/shopspring/decimal"
)

// Policy carries the configurable rule ceilings. Defaults mirror the
// legacy org policy.
type Policy struct {
	LOPBalanceCeiling    decimal.Decimal
	LOPMonthlyCap        decimal.Decimal
	CasualMonthlyCap     decimal.Decimal
	CasualBalanceCeiling decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		LOPBalanceCeiling:    decimal.NewFromInt(10),
		LOPMonthlyCap:        decimal.NewFromInt(5),
		CasualMonthlyCap:     decimal.NewFromInt(10),
		CasualBalanceCeiling: decimal.NewFromInt(99),
	}
}

// ValidateDateWindow enforces the per-type application window relative to
// the injected "today":
//
//	sick:       from 3 days back through tomorrow
//	lop:        today or later
//	permission: today or later
//	others:     strictly future
func ValidateDateWindow(leaveType LeaveType, start, today Date) error {
	switch leaveType {
	case TypeSick:
		earliest := today.AddDays(-3)
		latest := today.AddDays(1)
		if start.Before(earliest) || start.After(latest) {
			return Validationf("sick leave may start between %s and %s", earliest, latest)
		}
	case TypeLOP, TypePermission:
		if start.Before(today) {
			return Validationf("%s leave cannot start in the past", leaveType)
		}
	default:
		if !start.After(today) {
			return Validationf("%s leave must be applied for a future date", leaveType)
		}
	}
	return nil
}

// CasualNoticeDays returns the advance-notice requirement for a casual
// request of the given size: up to 2 days need 3 days notice, up to 5 need
// 7, anything longer needs 30.
func CasualNoticeDays(totalDays decimal.Decimal) int {
	switch {
	case totalDays.LessThanOrEqual(decimal.NewFromInt(2)):
		return 3
	case totalDays.LessThanOrEqual(decimal.NewFromInt(5)):
		return 7
	default:
		return 30
	}
}

func ValidateCasualNotice(totalDays decimal.Decimal, start, today Date) error {
	required := CasualNoticeDays(totalDays)
	if today.DaysUntil(start) < required {
		return Validationf("casual leave of %s days needs at least %d days prior notice", totalDays, required)
	}
	return nil
}

// FindOverlap rejects any requested date that already belongs to a
// non-rejected leave day. The error names the colliding date and its
// current status.
func FindOverlap(existing []LeaveDay, requested []DaySpan) error {
	byDate := make(map[Date]LeaveDay, len(existing))
	for _, d := range existing {
		if d.Status == StatusRejected {
			continue
		}
		byDate[d.Date] = d
	}
	for _, span := range requested {
		if day, ok := byDate[span.Date]; ok {
			return Conflictf("leave already exists on %s with status %s", span.Date, day.Status)
		}
	}
	return nil
}

// MonthlyWeights buckets requested day weights by calendar month.
func MonthlyWeights(days []DaySpan) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, d := range days {
		key := d.Date.MonthKey()
		out[key] = out[key].Add(d.Weight())
	}
	return out
}

// ValidateMonthlyCap checks the per-month ceiling for a leave type given
// the weights already committed in each touched month.
func ValidateMonthlyCap(leaveType LeaveType, requested []DaySpan, committed map[string]decimal.Decimal, cap decimal.Decimal) error {
	for month, weight := range MonthlyWeights(requested) {
		used := committed[month]
		if used.Add(weight).GreaterThan(cap) {
			return Validationf("%s leave in %s would reach %s days, monthly cap is %s", leaveType, month, used.Add(weight), cap)
		}
	}
	return nil
}

var clockTimeRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidatePermissionWindow requires a start/end clock time for permission
// requests and forbids it on every other type.
func ValidatePermissionWindow(leaveType LeaveType, startTime, endTime string) error {
	if leaveType == TypePermission {
		if startTime == "" || endTime == "" {
			return Validationf("permission requests need a start and end time")
		}
		if !clockTimeRe.MatchString(startTime) || !clockTimeRe.MatchString(endTime) {
			return Validationf("permission times must be HH:MM")
		}
		if endTime <= startTime {
			return Validationf("permission end time must be after start time")
		}
		return nil
	}
	if startTime != "" || endTime != "" {
		return Validationf("%s leave does not take a time window", leaveType)
	}
	return nil
}

// ValidateEmployeeEligibility limits employees serving notice to sick, LOP
// and permission requests.
func ValidateEmployeeEligibility(employeeStatus string, leaveType LeaveType) error {
	if employeeStatus != "on_notice" {
		return nil
	}
	switch leaveType {
	case TypeSick, TypeLOP, TypePermission:
		return nil
	}
	return Validationf("employees on notice may only apply sick, lop or permission leave")
}

// ValidateSufficiency is the pre-debit balance check. LOP is exempt: it
// exists precisely to represent unpaid leave, so a zero balance never
// blocks it. Permission requests never touch the ledger.
func ValidateSufficiency(leaveType LeaveType, available, requested decimal.Decimal) error {
	if leaveType == TypeLOP || leaveType == TypePermission {
		return nil
	}
	if available.LessThan(requested) {
		return InsufficientBalancef("insufficient %s balance: have %s, need %s", leaveType, available, requested)
	}
	return nil
}
