// Package rbac maps roles to capabilities.
//
// Capabilities are dot-separated names such as "application.can_reject_candidate".
// A role may grant a wildcard ("application.*" or "*") and inherit other roles:
//
//	agent:
//	  capabilities: [application.can_reject_candidate]
//	admin:
//	  capabilities: ["*"]
//	  inherits: [agent]
package rbac

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrInvalidRole             = errors.New("rbac.invalid_role")
	ErrInsufficientPermissions = errors.New("rbac.insufficient_permissions")
	ErrCircularInheritance     = errors.New("rbac.circular_inheritance")
)

// MaxInheritanceDepth bounds role inheritance chains.
const MaxInheritanceDepth = 8

type Role struct {
	Capabilities []string `yaml:"capabilities"`
	Inherits     []string `yaml:"inherits"`
}

// RoleSource provides role definitions.
type RoleSource interface {
	Load(ctx context.Context) (map[string]Role, error)
}

// Authorizer answers capability checks against a fixed role set.
type Authorizer struct {
	granted map[string][]string
}

// NewAuthorizer loads roles from source and flattens inheritance.
func NewAuthorizer(ctx context.Context, source RoleSource) (*Authorizer, error) {
	roles, err := source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}

	granted := make(map[string][]string, len(roles))
	for name := range roles {
		caps, err := collect(name, roles, nil)
		if err != nil {
			return nil, err
		}
		slices.Sort(caps)
		granted[name] = slices.Compact(caps)
	}
	return &Authorizer{granted: granted}, nil
}

func collect(name string, roles map[string]Role, path []string) ([]string, error) {
	if slices.Contains(path, name) {
		return nil, errors.Join(ErrCircularInheritance,
			fmt.Errorf("%s -> %s", strings.Join(path, " -> "), name))
	}
	if len(path) > MaxInheritanceDepth {
		return nil, errors.Join(ErrCircularInheritance,
			fmt.Errorf("inheritance deeper than %d at %s", MaxInheritanceDepth, name))
	}
	role, ok := roles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, name)
	}

	caps := slices.Clone(role.Capabilities)
	for _, parent := range role.Inherits {
		inherited, err := collect(parent, roles, append(path, name))
		if err != nil {
			return nil, err
		}
		caps = append(caps, inherited...)
	}
	return caps, nil
}

// Can returns nil when role grants capability.
func (a *Authorizer) Can(role, capability string) error {
	caps, ok := a.granted[role]
	if !ok {
		return ErrInvalidRole
	}
	for _, c := range caps {
		if matches(c, capability) {
			return nil
		}
	}
	return ErrInsufficientPermissions
}

// Roles lists known role names in sorted order.
func (a *Authorizer) Roles() []string {
	names := make([]string, 0, len(a.granted))
	for name := range a.granted {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func matches(granted, capability string) bool {
	if granted == "*" || granted == capability {
		return true
	}
	prefix, ok := strings.CutSuffix(granted, ".*")
	return ok && strings.HasPrefix(capability, prefix+".")
}
