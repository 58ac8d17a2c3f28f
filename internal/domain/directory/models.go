package directory

import "time"

const (
	StatusActive   = "active"
	StatusOnNotice = "on_notice"
	StatusInactive = "inactive"
)

type Employee struct {
	ID                 string     `json:"id"`
	EmployeeNumber     string     `json:"employeeNumber"`
	FirstName          string     `json:"firstName"`
	LastName           string     `json:"lastName"`
	Email              string     `json:"email"`
	Role               string     `json:"role"`
	Status             string     `json:"status"`
	ReportingManagerID string     `json:"reportingManagerId,omitempty"`
	JoinDate           *time.Time `json:"joinDate,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func (e Employee) FullName() string {
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// Chain is the resolved approval chain for an employee: L1 is the
// reporting manager, L2 the manager's manager, L3 one level above that.
// Short chains leave the upper links nil.
type Chain struct {
	L1 *Employee
	L2 *Employee
	L3 *Employee
}

func (c Chain) Contains(employeeID string) bool {
	for _, link := range []*Employee{c.L1, c.L2, c.L3} {
		if link != nil && link.ID == employeeID {
			return true
		}
	}
	return false
}

// ContainsL1L2 restricts membership to the first two links, the scope HR
// approvals operate in.
func (c Chain) ContainsL1L2(employeeID string) bool {
	for _, link := range []*Employee{c.L1, c.L2} {
		if link != nil && link.ID == employeeID {
			return true
		}
	}
	return false
}

// HasEscalation reports whether anyone above L1 carries an hr or
// super_admin role, i.e. whether a manager approval still awaits a higher
// tier.
func (c Chain) HasEscalation() bool {
	for _, link := range []*Employee{c.L2, c.L3} {
		if link != nil && (link.Role == "hr" || link.Role == "super_admin") {
			return true
		}
	}
	return false
}
