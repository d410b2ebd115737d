package rbac_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageroute/castflow/pkg/rbac"
)

const rolesYAML = `
candidate:
  capabilities: []
agent:
  capabilities:
    - application.can_reject_candidate
director:
  capabilities:
    - job.*
  inherits: [agent]
admin:
  capabilities: ["*"]
`

func TestAuthorizer_Can(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rolesYAML), 0o600))

	a, err := rbac.NewAuthorizer(context.Background(), rbac.YAMLSource{Path: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "agent", "candidate", "director"}, a.Roles())

	tests := []struct {
		role, capability string
		want             error
	}{
		{"agent", "application.can_reject_candidate", nil},
		{"director", "application.can_reject_candidate", nil},
		{"director", "job.close", nil},
		{"director", "jobs.close", rbac.ErrInsufficientPermissions},
		{"admin", "anything.at.all", nil},
		{"candidate", "application.can_reject_candidate", rbac.ErrInsufficientPermissions},
		{"ghost", "application.can_reject_candidate", rbac.ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.role+" "+tt.capability, func(t *testing.T) {
			t.Parallel()
			err := a.Can(tt.role, tt.capability)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewAuthorizer_RejectsBadRoleSets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := rbac.NewAuthorizer(ctx, rbac.StaticSource{
		"a": {Inherits: []string{"b"}},
		"b": {Inherits: []string{"a"}},
	})
	require.ErrorIs(t, err, rbac.ErrCircularInheritance)

	_, err = rbac.NewAuthorizer(ctx, rbac.StaticSource{"a": {Inherits: []string{"missing"}}})
	require.ErrorIs(t, err, rbac.ErrInvalidRole)

	_, err = rbac.NewAuthorizer(ctx, rbac.YAMLSource{Path: filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, err)

	_, err = rbac.ParseRoles([]byte("agent: [not, a, role"))
	require.Error(t, err)
}

func TestCapabilityChecker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a, err := rbac.NewAuthorizer(ctx, rbac.StaticSource{
		"agent": {Capabilities: []string{"application.can_reject_candidate"}},
	})
	require.NoError(t, err)

	agent, candidate, stranger, broken := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	roles := map[uuid.UUID]string{agent: "agent", candidate: "candidate"}
	resolver := rbac.RoleResolverFunc(func(_ context.Context, id uuid.UUID) (string, error) {
		if id == broken {
			return "", errors.New("directory down")
		}
		return roles[id], nil
	})
	checker := rbac.NewCapabilityChecker(a, resolver)

	ok, err := checker.HasCapability(ctx, agent, "application.can_reject_candidate")
	require.NoError(t, err)
	assert.True(t, ok)

	for _, id := range []uuid.UUID{candidate, stranger} {
		ok, err := checker.HasCapability(ctx, id, "application.can_reject_candidate")
		require.NoError(t, err)
		assert.False(t, ok)
	}

	_, err = checker.HasCapability(ctx, broken, "application.can_reject_candidate")
	require.Error(t, err)
}
