package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParseToken(t *testing.T) {
	now := time.Now()
	token, err := SignToken("secret", "emp-1", RoleManager, now)
	require.NoError(t, err)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", claims.EmployeeID)
	assert.Equal(t, RoleManager, claims.Role)
	assert.Equal(t, "emp-1", claims.Subject)
	assert.WithinDuration(t, now.Add(TokenTTL), claims.ExpiresAt.Time, time.Second)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := SignToken("secret", "emp-1", RoleEmployee, time.Now())
	require.NoError(t, err)

	_, err = ParseToken("other-secret", token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := SignToken("secret", "emp-1", RoleEmployee, time.Now().Add(-2*TokenTTL))
	require.NoError(t, err)

	_, err = ParseToken("secret", token)
	assert.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	_, err := ParseToken("secret", "not-a-token")
	assert.Error(t, err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("Sup3rSecret!")
	require.NoError(t, err)
	assert.NotEqual(t, "Sup3rSecret!", hash)

	assert.NoError(t, CheckPassword(hash, "Sup3rSecret!"))
	assert.Error(t, CheckPassword(hash, "wrong"))
}

func TestHasPermission(t *testing.T) {
	assert.True(t, HasPermission(RoleSuperAdmin, PermLeaveAdmin))
	assert.True(t, HasPermission(RoleHR, PermEmployeesWrite))
	assert.True(t, HasPermission(RoleManager, PermLeaveApprove))
	assert.True(t, HasPermission(RoleEmployee, PermLeaveWrite))

	assert.False(t, HasPermission(RoleEmployee, PermLeaveApprove))
	assert.False(t, HasPermission(RoleManager, PermEmployeesWrite))
	assert.False(t, HasPermission(RoleIntern, PermLeaveAdmin))
	assert.False(t, HasPermission("unknown", PermLeaveRead))
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole(RoleIntern))
	assert.True(t, ValidRole(RoleSuperAdmin))
	assert.False(t, ValidRole("ceo"))
	assert.False(t, ValidRole(""))
}
