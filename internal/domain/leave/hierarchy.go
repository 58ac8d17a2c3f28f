package leave

import (
	"hrops/internal/domain/auth"
	"hrops/internal/domain/directory"
)

// CanActOn is the approve/reject/edit authorization matrix. chain is the
// TARGET employee's resolved reporting chain.
//
//	super_admin: any employee except self
//	hr:          employees whose L1/L2 contains the actor, role intern/employee/manager
//	manager:     direct reports only
//
// Self-action is forbidden for every role.
func CanActOn(actor, target *directory.Employee, chain directory.Chain) error {
	if actor.ID == target.ID {
		return Forbiddenf("you cannot act on your own leave request")
	}
	switch actor.Role {
	case auth.RoleSuperAdmin:
		return nil
	case auth.RoleHR:
		switch target.Role {
		case auth.RoleIntern, auth.RoleEmployee, auth.RoleManager:
		default:
			return Forbiddenf("hr cannot act on %s requests", target.Role)
		}
		if !chain.ContainsL1L2(actor.ID) {
			return Forbiddenf("employee is not in your reporting chain")
		}
		return nil
	case auth.RoleManager:
		if target.ReportingManagerID != actor.ID {
			return Forbiddenf("only direct reports can be actioned")
		}
		return nil
	}
	return Forbiddenf("role %s cannot approve or reject leave", actor.Role)
}

// CanView mirrors CanActOn for reads, additionally letting any L1/L2/L3
// ancestor see the request. Unauthorized reads surface as NotFound so the
// request's existence is not leaked.
func CanView(actor, target *directory.Employee, chain directory.Chain) error {
	if actor.ID == target.ID {
		return nil
	}
	if actor.Role == auth.RoleSuperAdmin {
		return nil
	}
	if chain.Contains(actor.ID) {
		return nil
	}
	if err := CanActOn(actor, target, chain); err != nil {
		return NotFoundf("leave request not found")
	}
	return nil
}

// TerminalApproval reports whether an approval by this actor finalizes the
// request. HR and super_admin approvals always do. A manager approval
// finalizes only when nobody above in the target's chain carries an hr or
// super_admin role: every chain must terminate somewhere, so a manager at
// the top of an irregular chain is treated as the terminal tier rather
// than leaving the request pending forever.
func TerminalApproval(actorRole string, chain directory.Chain) bool {
	if auth.IsAdmin(actorRole) {
		return true
	}
	if actorRole == auth.RoleManager {
		return !chain.HasEscalation()
	}
	return false
}

// Tier maps an actor role to the approval tier its decision lands on.
func Tier(actorRole string) string {
	switch actorRole {
	case auth.RoleHR:
		return "hr"
	case auth.RoleSuperAdmin:
		return "super_admin"
	default:
		return "manager"
	}
}
