package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// RoleResolver finds the role of an actor.
type RoleResolver interface {
	RoleOf(ctx context.Context, actorID uuid.UUID) (string, error)
}

type RoleResolverFunc func(ctx context.Context, actorID uuid.UUID) (string, error)

func (f RoleResolverFunc) RoleOf(ctx context.Context, actorID uuid.UUID) (string, error) {
	return f(ctx, actorID)
}

// CapabilityChecker answers capability questions for actors by role.
type CapabilityChecker struct {
	authorizer *Authorizer
	roles      RoleResolver
}

func NewCapabilityChecker(a *Authorizer, roles RoleResolver) *CapabilityChecker {
	return &CapabilityChecker{authorizer: a, roles: roles}
}

// HasCapability reports whether the actor's role grants capability. Actors
// with no role or an unknown role have no capabilities.
func (c *CapabilityChecker) HasCapability(ctx context.Context, actorID uuid.UUID, capability string) (bool, error) {
	role, err := c.roles.RoleOf(ctx, actorID)
	if err != nil {
		return false, fmt.Errorf("resolve role: %w", err)
	}
	if role == "" {
		return false, nil
	}
	switch err := c.authorizer.Can(role, capability); {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrInsufficientPermissions), errors.Is(err, ErrInvalidRole):
		return false, nil
	default:
		return false, err
	}
}
