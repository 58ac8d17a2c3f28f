package leave

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func daysWith(statuses ...Status) []LeaveDay {
	days := make([]LeaveDay, len(statuses))
	for i, st := range statuses {
		days[i] = LeaveDay{DayType: DayFull, Status: st}
	}
	return days
}

func TestRecalculateStatus(t *testing.T) {
	tests := []struct {
		name string
		days []LeaveDay
		want Status
	}{
		{"no days", nil, StatusPending},
		{"all pending", daysWith(StatusPending, StatusPending), StatusPending},
		{"all approved", daysWith(StatusApproved, StatusApproved), StatusApproved},
		{"all rejected", daysWith(StatusRejected, StatusRejected), StatusRejected},
		{"approved and rejected", daysWith(StatusApproved, StatusRejected), StatusPartiallyApproved},
		{"approved and pending", daysWith(StatusApproved, StatusPending), StatusPartiallyApproved},
		{"rejected and pending", daysWith(StatusRejected, StatusPending), StatusPending},
		{"one of each", daysWith(StatusApproved, StatusRejected, StatusPending), StatusPartiallyApproved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RecalculateStatus(tt.days))
		})
	}
}

func TestRecalculateStatusIdempotent(t *testing.T) {
	days := daysWith(StatusApproved, StatusRejected, StatusPending)
	first := RecalculateStatus(days)
	assert.Equal(t, first, RecalculateStatus(days))
}

func TestWeightsByStatus(t *testing.T) {
	days := []LeaveDay{
		{DayType: DayHalf, Status: StatusApproved},
		{DayType: DayFull, Status: StatusApproved},
		{DayType: DayFull, Status: StatusPending},
		{DayType: DayHalf, Status: StatusRejected},
	}
	w := WeightsByStatus(days)
	assert.True(t, w.Approved.Equal(dec(1.5)), "approved %s", w.Approved)
	assert.True(t, w.Pending.Equal(dec(1)), "pending %s", w.Pending)
	assert.True(t, w.Rejected.Equal(dec(0.5)), "rejected %s", w.Rejected)
	assert.True(t, w.NonRejected().Equal(dec(2.5)))
	assert.True(t, w.Total().Equal(dec(3)))
}
