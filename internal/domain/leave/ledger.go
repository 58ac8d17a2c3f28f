package leave

import (
	"context"

	"github.com/shopspring/decimal"

	"hrops/internal/platform/querier"
)

// Ledger mutates per-employee running balances. Every method runs against
// the caller's Querier so mutations join the surrounding transaction; each
// one bumps updated_at, the marker batch jobs use to skip same-day
// duplicate runs.
type Ledger struct {
	Policy Policy
}

func balanceColumn(t LeaveType) string {
	switch t {
	case TypeCasual:
		return "casual"
	case TypeSick:
		return "sick"
	case TypeLOP:
		return "lop"
	}
	return ""
}

// Debit charges a leave balance. Casual and sick debits fail with
// InsufficientBalance when the result would go negative; the guard lives
// in the WHERE clause so a concurrent debit cannot slip past it. LOP is
// never sufficiency-checked. Permission requests carry no balance.
func (l Ledger) Debit(ctx context.Context, q querier.Querier, employeeID string, t LeaveType, amount decimal.Decimal) error {
	column := balanceColumn(t)
	if column == "" || amount.IsZero() {
		return nil
	}
	if t == TypeLOP {
		_, err := q.Exec(ctx, `
      UPDATE leave_balances
      SET lop = lop - $1, updated_at = now()
      WHERE employee_id = $2
    `, amount, employeeID)
		return err
	}
	tag, err := q.Exec(ctx, `
    UPDATE leave_balances
    SET `+column+` = `+column+` - $1, updated_at = now()
    WHERE employee_id = $2 AND `+column+` >= $1
  `, amount, employeeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return InsufficientBalancef("insufficient %s balance for %s days", t, amount)
	}
	return nil
}

// Credit refunds a leave balance. LOP refunds clamp at the configured
// ceiling; any overflow is silently dropped, never carried over. Casual
// and sick refunds are not clamped here since their ceilings are a
// year-end batch concern.
func (l Ledger) Credit(ctx context.Context, q querier.Querier, employeeID string, t LeaveType, amount decimal.Decimal) error {
	column := balanceColumn(t)
	if column == "" || amount.IsZero() {
		return nil
	}
	if t == TypeLOP {
		_, err := q.Exec(ctx, `
      UPDATE leave_balances
      SET lop = LEAST(lop + $1, $2), updated_at = now()
      WHERE employee_id = $3
    `, amount, l.Policy.LOPBalanceCeiling, employeeID)
		return err
	}
	_, err := q.Exec(ctx, `
    UPDATE leave_balances
    SET `+column+` = `+column+` + $1, updated_at = now()
    WHERE employee_id = $2
  `, amount, employeeID)
	return err
}

// CreditCapped adds amount but clamps the result at cap; the batch accrual
// jobs use it for monthly and anniversary credits.
func (l Ledger) CreditCapped(ctx context.Context, q querier.Querier, employeeID string, t LeaveType, amount, cap decimal.Decimal) error {
	column := balanceColumn(t)
	if column == "" || amount.IsZero() {
		return nil
	}
	_, err := q.Exec(ctx, `
    UPDATE leave_balances
    SET `+column+` = LEAST(`+column+` + $1, $2), updated_at = now()
    WHERE employee_id = $3
  `, amount, cap, employeeID)
	return err
}
