package auth

const (
	RoleIntern     = "intern"
	RoleEmployee   = "employee"
	RoleManager    = "manager"
	RoleHR         = "hr"
	RoleSuperAdmin = "super_admin"
)

func ValidRole(role string) bool {
	switch role {
	case RoleIntern, RoleEmployee, RoleManager, RoleHR, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether the role carries the HR/Super-Admin override
// powers (force status, edit regardless of state, convert).
func IsAdmin(role string) bool {
	return role == RoleHR || role == RoleSuperAdmin
}

const (
	PermEmployeesRead  = "employees.read"
	PermEmployeesWrite = "employees.write"
	PermLeaveRead      = "leave.read"
	PermLeaveWrite     = "leave.write"
	PermLeaveApprove   = "leave.approve"
	PermLeaveAdmin     = "leave.admin"
	PermHolidaysWrite  = "holidays.write"
	PermReportsRead    = "reports.read"
)

var rolePermissions = map[string][]string{
	RoleIntern: {
		PermEmployeesRead,
		PermLeaveRead,
		PermLeaveWrite,
	},
	RoleEmployee: {
		PermEmployeesRead,
		PermLeaveRead,
		PermLeaveWrite,
	},
	RoleManager: {
		PermEmployeesRead,
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermReportsRead,
	},
	RoleHR: {
		PermEmployeesRead,
		PermEmployeesWrite,
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermLeaveAdmin,
		PermHolidaysWrite,
		PermReportsRead,
	},
	RoleSuperAdmin: {
		PermEmployeesRead,
		PermEmployeesWrite,
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermLeaveAdmin,
		PermHolidaysWrite,
		PermReportsRead,
	},
}

func HasPermission(role, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}
