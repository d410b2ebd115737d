package rbac

import (
	"context"
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"
)

// StaticSource serves roles from memory.
type StaticSource map[string]Role

func (s StaticSource) Load(context.Context) (map[string]Role, error) {
	return maps.Clone(s), nil
}

// YAMLSource reads a role file mapping role names to Role definitions.
type YAMLSource struct {
	Path string
}

func (s YAMLSource) Load(context.Context) (map[string]Role, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read role file: %w", err)
	}
	return ParseRoles(raw)
}

// ParseRoles decodes a YAML role document.
func ParseRoles(raw []byte) (map[string]Role, error) {
	var roles map[string]Role
	if err := yaml.Unmarshal(raw, &roles); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	if roles == nil {
		roles = map[string]Role{}
	}
	return roles, nil
}
