package leave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrops/internal/domain/auth"
	"hrops/internal/domain/directory"
)

func emp(id, role, managerID string) *directory.Employee {
	return &directory.Employee{ID: id, Role: role, Status: directory.StatusActive, ReportingManagerID: managerID}
}

func TestCanActOnSelf(t *testing.T) {
	admin := emp("a1", auth.RoleSuperAdmin, "")
	err := CanActOn(admin, admin, directory.Chain{})
	require.Error(t, err)
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestCanActOnSuperAdmin(t *testing.T) {
	sa := emp("sa", auth.RoleSuperAdmin, "")
	target := emp("e1", auth.RoleEmployee, "m1")
	assert.NoError(t, CanActOn(sa, target, directory.Chain{}))
}

func TestCanActOnManager(t *testing.T) {
	manager := emp("m1", auth.RoleManager, "hr1")
	report := emp("e1", auth.RoleEmployee, "m1")
	stranger := emp("e2", auth.RoleEmployee, "m2")

	assert.NoError(t, CanActOn(manager, report, directory.Chain{L1: manager}))

	err := CanActOn(manager, stranger, directory.Chain{})
	require.Error(t, err)
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestCanActOnHR(t *testing.T) {
	hr := emp("hr1", auth.RoleHR, "sa1")
	manager := emp("m1", auth.RoleManager, "hr1")
	report := emp("e1", auth.RoleEmployee, "m1")
	chain := directory.Chain{L1: manager, L2: hr}

	assert.NoError(t, CanActOn(hr, report, chain))
	assert.NoError(t, CanActOn(hr, manager, directory.Chain{L1: hr}))

	// Outside the chain.
	err := CanActOn(hr, emp("e9", auth.RoleEmployee, "m9"), directory.Chain{L1: emp("m9", auth.RoleManager, "")})
	require.Error(t, err)
	assert.Equal(t, KindForbidden, KindOf(err))

	// HR cannot act on peer hr or super_admin requests.
	err = CanActOn(hr, emp("hr2", auth.RoleHR, "sa1"), directory.Chain{L1: hr})
	require.Error(t, err)

	// L3 membership is not enough for HR.
	err = CanActOn(hr, report, directory.Chain{L1: manager, L2: emp("m0", auth.RoleManager, ""), L3: hr})
	require.Error(t, err)
}

func TestCanActOnEmployeeRole(t *testing.T) {
	employee := emp("e1", auth.RoleEmployee, "m1")
	err := CanActOn(employee, emp("e2", auth.RoleEmployee, "m1"), directory.Chain{})
	require.Error(t, err)
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestCanViewMasksAsNotFound(t *testing.T) {
	target := emp("e1", auth.RoleEmployee, "m1")
	chain := directory.Chain{L1: emp("m1", auth.RoleManager, "")}

	assert.NoError(t, CanView(target, target, chain))
	assert.NoError(t, CanView(emp("sa", auth.RoleSuperAdmin, ""), target, chain))
	assert.NoError(t, CanView(emp("m1", auth.RoleManager, ""), target, chain))

	err := CanView(emp("e2", auth.RoleEmployee, "m2"), target, chain)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestTerminalApproval(t *testing.T) {
	hrChain := directory.Chain{
		L1: emp("m1", auth.RoleManager, "hr1"),
		L2: emp("hr1", auth.RoleHR, "sa1"),
	}
	flatChain := directory.Chain{L1: emp("m1", auth.RoleManager, "")}

	assert.True(t, TerminalApproval(auth.RoleHR, hrChain))
	assert.True(t, TerminalApproval(auth.RoleSuperAdmin, hrChain))
	assert.False(t, TerminalApproval(auth.RoleManager, hrChain))
	assert.True(t, TerminalApproval(auth.RoleManager, flatChain))
	assert.False(t, TerminalApproval(auth.RoleEmployee, flatChain))
}

func TestTier(t *testing.T) {
	assert.Equal(t, "manager", Tier(auth.RoleManager))
	assert.Equal(t, "hr", Tier(auth.RoleHR))
	assert.Equal(t, "super_admin", Tier(auth.RoleSuperAdmin))
}
