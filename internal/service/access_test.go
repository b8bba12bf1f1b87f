package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvist/tradefarm/internal/database/repository"
)

func TestAllowed(t *testing.T) {
	t.Parallel()

	all := []Action{
		ActionView, ActionPlaceOrder, ActionCancelOrder,
		ActionManageAgents, ActionRunWorkflow, ActionManageCredentials, ActionReset,
	}

	for _, a := range all {
		require.True(t, Allowed(repository.RoleAdmin, a), "admin %s", a)
	}

	require.True(t, Allowed(repository.RoleOperator, ActionView))
	require.True(t, Allowed(repository.RoleOperator, ActionPlaceOrder))
	require.True(t, Allowed(repository.RoleOperator, ActionCancelOrder))
	require.True(t, Allowed(repository.RoleOperator, ActionManageAgents))
	require.True(t, Allowed(repository.RoleOperator, ActionRunWorkflow))
	require.False(t, Allowed(repository.RoleOperator, ActionManageCredentials))
	require.False(t, Allowed(repository.RoleOperator, ActionReset))

	require.True(t, Allowed(repository.RoleViewer, ActionView))
	for _, a := range all[1:] {
		require.False(t, Allowed(repository.RoleViewer, a), "viewer %s", a)
	}

	require.False(t, Allowed("intruder", ActionView))
}
