package statemachine

// Option configures a graph during construction.
type Option[S, E ~string] func(*Graph[S, E]) error

// EdgeOption configures a single edge.
type EdgeOption func(*edgeConfig)

type edgeConfig struct {
	permission string
}

// WithStates declares the closed set of states. States must be declared
// before edges referencing them are validated, which happens at the end of New,
// so option order does not matter.
func WithStates[S, E ~string](states ...S) Option[S, E] {
	return func(g *Graph[S, E]) error {
		for _, s := range states {
			if s == "" {
				return invalidGraph("empty state name")
			}
			if _, ok := g.states[s]; ok {
				return invalidGraph("state %q declared twice", s)
			}
			g.states[s] = struct{}{}
			g.stateOrder = append(g.stateOrder, s)
		}
		return nil
	}
}

// WithTerminal marks states that have no outgoing edges.
func WithTerminal[S, E ~string](states ...S) Option[S, E] {
	return func(g *Graph[S, E]) error {
		for _, s := range states {
			g.terminal[s] = struct{}{}
		}
		return nil
	}
}

// WithEdge adds a named transition from any of sources to target.
func WithEdge[S, E ~string](event E, target S, sources []S, opts ...EdgeOption) Option[S, E] {
	return func(g *Graph[S, E]) error {
		if event == "" {
			return invalidGraph("empty transition name")
		}
		if _, ok := g.edges[event]; ok {
			return invalidGraph("transition %q declared twice", event)
		}
		if len(sources) == 0 {
			return invalidGraph("transition %q has no source states", event)
		}

		cfg := &edgeConfig{}
		for _, opt := range opts {
			opt(cfg)
		}

		edge := Edge[S, E]{
			Event:      event,
			Target:     target,
			Sources:    append([]S(nil), sources...),
			Permission: cfg.permission,
		}
		g.edges[event] = edge
		g.edgeOrder = append(g.edgeOrder, event)
		return nil
	}
}

// WithPermission requires callers to hold the named capability to fire the edge.
func WithPermission(permission string) EdgeOption {
	return func(cfg *edgeConfig) {
		cfg.permission = permission
	}
}
