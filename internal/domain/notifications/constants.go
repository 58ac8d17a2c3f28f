package notifications

const (
	TypeLeaveSubmitted = "leave_submitted"
	TypeLeaveEdited    = "leave_edited"
	TypeLeaveDecided   = "leave_decided"
	TypeLeaveConverted = "leave_converted"
	TypeBalanceCredit  = "balance_credit"
)
