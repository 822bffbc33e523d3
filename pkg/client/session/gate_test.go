package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
)

func TestGateLoadingRendersNothing(t *testing.T) {
	gate := NewAdminGate(NewAdminStore(NewMemoryStorage()))
	assert.True(t, gate.Evaluate().IsLoading)
	assert.Equal(t, Decision{Loading: true}, gate.Decide())
}

func TestGateRedirectsByArea(t *testing.T) {
	storage := NewMemoryStorage()
	cases := []struct {
		gate  *Gate
		login string
	}{
		{NewAdminGate(NewAdminStore(storage)), AdminLoginPath},
		{NewOwnerGate(NewUserStore(storage)), NurseryLoginPath},
		{NewParentGate(NewUserStore(storage)), NurseryLoginPath},
	}
	for _, tc := range cases {
		tc.gate.Mount()
		d := tc.gate.Decide()
		assert.False(t, d.Render, "%s rendered", tc.gate.Area())
		assert.Equal(t, tc.login, d.Redirect)
		assert.True(t, d.Replace)
		tc.gate.Unmount()
	}
}

func TestGateIgnoresOtherDomain(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, NewAdminStore(storage).Set(Tokens{Access: testToken(t, time.Now().Add(time.Hour))}, adminUser()))

	parent := NewParentGate(NewUserStore(storage))
	parent.Mount()
	defer parent.Unmount()
	assert.Equal(t, NurseryLoginPath, parent.Decide().Redirect)

	admin := NewAdminGate(NewAdminStore(storage))
	admin.Mount()
	defer admin.Unmount()
	assert.True(t, admin.Decide().Render)
	assert.Equal(t, enums.RoleAdmin, admin.Evaluate().Role)
}

func TestGateRoleMismatchInsideUserDomain(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, NewUserStore(storage).Set(Tokens{Access: testToken(t, time.Now().Add(time.Hour))}, parentUser()))

	owner := NewOwnerGate(NewUserStore(storage))
	owner.Mount()
	defer owner.Unmount()
	assert.Equal(t, Decision{Redirect: NurseryLoginPath, Replace: true}, owner.Decide())

	parent := NewParentGate(NewUserStore(storage))
	parent.Mount()
	defer parent.Unmount()
	assert.True(t, parent.Decide().Render)
}

func TestGateFollowsExternalLogout(t *testing.T) {
	storage := NewMemoryStorage()
	tab := NewAdminStore(storage)
	require.NoError(t, tab.Set(Tokens{Access: testToken(t, time.Now().Add(time.Hour))}, adminUser()))

	gate := NewAdminGate(NewAdminStore(storage))
	gate.Mount()
	defer gate.Unmount()
	require.True(t, gate.Decide().Render)

	require.NoError(t, tab.Clear())
	assert.Equal(t, AdminLoginPath, gate.Decide().Redirect)
}
