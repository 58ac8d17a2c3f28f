package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

type LeaveType string

const (
	TypeCasual     LeaveType = "casual"
	TypeSick       LeaveType = "sick"
	TypeLOP        LeaveType = "lop"
	TypePermission LeaveType = "permission"
)

func (t LeaveType) Valid() bool {
	switch t {
	case TypeCasual, TypeSick, TypeLOP, TypePermission:
		return true
	}
	return false
}

// Granularity describes how much of a boundary date is taken. The
// first/second half distinction only matters for display and permission
// windows; both carry a 0.5 weight.
type Granularity string

const (
	GranFull       Granularity = "full"
	GranFirstHalf  Granularity = "first_half"
	GranSecondHalf Granularity = "second_half"
)

func (g Granularity) Valid() bool {
	switch g {
	case GranFull, GranFirstHalf, GranSecondHalf:
		return true
	}
	return false
}

func (g Granularity) Weight() decimal.Decimal {
	if g == GranFull {
		return decimal.NewFromInt(1)
	}
	return halfDay
}

func (g Granularity) DayType() string {
	if g == GranFull {
		return DayFull
	}
	return DayHalf
}

const (
	DayFull = "full"
	DayHalf = "half"
)

type Status string

const (
	StatusPending           Status = "pending"
	StatusApproved          Status = "approved"
	StatusRejected          Status = "rejected"
	StatusPartiallyApproved Status = "partially_approved"
)

var halfDay = decimal.NewFromFloat(0.5)

func dayWeight(dayType string) decimal.Decimal {
	if dayType == DayHalf {
		return halfDay
	}
	return decimal.NewFromInt(1)
}

type TierDecision struct {
	Status     Status     `json:"status,omitempty"`
	Comment    string     `json:"comment,omitempty"`
	ApproverID string     `json:"approverId,omitempty"`
	DecidedAt  *time.Time `json:"decidedAt,omitempty"`
}

func (d TierDecision) Acted() bool {
	return d.Status != "" && d.Status != StatusPending
}

type LeaveRequest struct {
	ID               string          `json:"id"`
	EmployeeID       string          `json:"employeeId"`
	Type             LeaveType       `json:"leaveType"`
	StartDate        Date            `json:"startDate"`
	EndDate          Date            `json:"endDate"`
	StartGranularity Granularity     `json:"startGranularity"`
	EndGranularity   Granularity     `json:"endGranularity"`
	Reason           string          `json:"reason"`
	NoOfDays         decimal.Decimal `json:"noOfDays"`
	PermissionStart  string          `json:"permissionStart,omitempty"`
	PermissionEnd    string          `json:"permissionEnd,omitempty"`
	CertificateKey   string          `json:"certificateKey,omitempty"`
	Status           Status          `json:"status"`
	Manager          TierDecision    `json:"manager"`
	HR               TierDecision    `json:"hr"`
	SuperAdmin       TierDecision    `json:"superAdmin"`
	LastActorID      string          `json:"lastActorId,omitempty"`
	LastActorRole    string          `json:"lastActorRole,omitempty"`
	Days             []LeaveDay      `json:"days,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

type LeaveDay struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"requestId"`
	EmployeeID string    `json:"employeeId"`
	Date       Date      `json:"date"`
	DayType    string    `json:"dayType"`
	LeaveType  LeaveType `json:"leaveType"`
	Status     Status    `json:"status"`
}

func (d LeaveDay) Weight() decimal.Decimal {
	return dayWeight(d.DayType)
}

type Balance struct {
	EmployeeID string          `json:"employeeId"`
	Casual     decimal.Decimal `json:"casual"`
	Sick       decimal.Decimal `json:"sick"`
	LOP        decimal.Decimal `json:"lop"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func (b Balance) ForType(t LeaveType) decimal.Decimal {
	switch t {
	case TypeCasual:
		return b.Casual
	case TypeSick:
		return b.Sick
	case TypeLOP:
		return b.LOP
	}
	return decimal.Zero
}

type Holiday struct {
	ID        string    `json:"id"`
	Date      Date      `json:"date"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}
