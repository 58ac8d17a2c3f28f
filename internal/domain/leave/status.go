package leave

import "github.com/shopspring/decimal"

// RecalculateStatus derives the aggregate request status from its day
// statuses. Pure function of the day-status multiset; idempotent; never
// consults balances.
func RecalculateStatus(days []LeaveDay) Status {
	if len(days) == 0 {
		return StatusPending
	}
	var approved, rejected, pending int
	for _, d := range days {
		switch d.Status {
		case StatusApproved:
			approved++
		case StatusRejected:
			rejected++
		default:
			pending++
		}
	}

	switch {
	case approved > 0 && pending == 0 && rejected == 0:
		return StatusApproved
	case approved == 0 && pending == 0:
		return StatusRejected
	case approved > 0:
		return StatusPartiallyApproved
	default:
		return StatusPending
	}
}

// StatusWeights sums day weights grouped by day status. Reject/refund math
// runs off these sums rather than the stored no_of_days, which stays fixed
// as the original commitment.
type StatusWeights struct {
	Approved decimal.Decimal
	Pending  decimal.Decimal
	Rejected decimal.Decimal
}

func (w StatusWeights) NonRejected() decimal.Decimal {
	return w.Approved.Add(w.Pending)
}

func (w StatusWeights) Total() decimal.Decimal {
	return w.Approved.Add(w.Pending).Add(w.Rejected)
}

func WeightsByStatus(days []LeaveDay) StatusWeights {
	w := StatusWeights{Approved: decimal.Zero, Pending: decimal.Zero, Rejected: decimal.Zero}
	for _, d := range days {
		switch d.Status {
		case StatusApproved:
			w.Approved = w.Approved.Add(d.Weight())
		case StatusRejected:
			w.Rejected = w.Rejected.Add(d.Weight())
		default:
			w.Pending = w.Pending.Add(d.Weight())
		}
	}
	return w
}
