package statemachine

import (
	"fmt"
	"slices"
)

// Edge binds a transition name to its allowed sources, target and required permission.
type Edge[S, E ~string] struct {
	Event      E
	Target     S
	Sources    []S
	Permission string // empty when the edge is unguarded
}

// AllowsFrom reports whether the edge may fire from state.
func (e Edge[S, E]) AllowsFrom(state S) bool {
	return slices.Contains(e.Sources, state)
}

// RequiresPermission reports whether firing the edge needs a capability check.
func (e Edge[S, E]) RequiresPermission() bool {
	return e.Permission != ""
}

// Graph is an immutable transition table.
type Graph[S, E ~string] struct {
	initial    S
	states     map[S]struct{}
	stateOrder []S
	terminal   map[S]struct{}
	edges      map[E]Edge[S, E]
	edgeOrder  []E
	outgoing   map[S][]E
	incoming   map[S][]E
}

// New builds and validates a graph.
func New[S, E ~string](initial S, opts ...Option[S, E]) (*Graph[S, E], error) {
	g := &Graph[S, E]{
		initial:  initial,
		states:   make(map[S]struct{}),
		terminal: make(map[S]struct{}),
		edges:    make(map[E]Edge[S, E]),
		outgoing: make(map[S][]E),
		incoming: make(map[S][]E),
	}

	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}

	if err := g.validate(); err != nil {
		return nil, err
	}

	for _, name := range g.edgeOrder {
		edge := g.edges[name]
		for _, src := range edge.Sources {
			g.outgoing[src] = append(g.outgoing[src], name)
		}
		g.incoming[edge.Target] = append(g.incoming[edge.Target], name)
	}

	return g, nil
}

// MustNew is like New but panics on an invalid definition.
func MustNew[S, E ~string](initial S, opts ...Option[S, E]) *Graph[S, E] {
	g, err := New(initial, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to build state graph: %v", err))
	}
	return g
}

func (g *Graph[S, E]) validate() error {
	if !g.Contains(g.initial) {
		return invalidGraph("initial state %q is not declared", g.initial)
	}
	if g.IsTerminal(g.initial) {
		return invalidGraph("initial state %q cannot be terminal", g.initial)
	}
	for s := range g.terminal {
		if !g.Contains(s) {
			return invalidGraph("terminal state %q is not declared", s)
		}
	}
	for _, name := range g.edgeOrder {
		edge := g.edges[name]
		if !g.Contains(edge.Target) {
			return invalidGraph("transition %q targets undeclared state %q", name, edge.Target)
		}
		for _, src := range edge.Sources {
			if !g.Contains(src) {
				return invalidGraph("transition %q leaves undeclared state %q", name, src)
			}
			if g.IsTerminal(src) {
				return invalidGraph("transition %q leaves terminal state %q", name, src)
			}
		}
	}
	return nil
}

// Initial returns the state new entities start in.
func (g *Graph[S, E]) Initial() S { return g.initial }

// Contains reports whether s is a declared state.
func (g *Graph[S, E]) Contains(s S) bool {
	_, ok := g.states[s]
	return ok
}

// IsTerminal reports whether s has no outgoing edges by definition.
func (g *Graph[S, E]) IsTerminal(s S) bool {
	_, ok := g.terminal[s]
	return ok
}

// States returns the declared states in declaration order.
func (g *Graph[S, E]) States() []S {
	return slices.Clone(g.stateOrder)
}

// Edge looks up a transition by name.
func (g *Graph[S, E]) Edge(event E) (Edge[S, E], bool) {
	edge, ok := g.edges[event]
	return edge, ok
}

// Resolve returns the edge for event if it may fire from state.
func (g *Graph[S, E]) Resolve(from S, event E) (Edge[S, E], error) {
	edge, ok := g.edges[event]
	if !ok {
		return Edge[S, E]{}, fmt.Errorf("%w: %q", ErrUnknownTransition, event)
	}
	if !edge.AllowsFrom(from) {
		return edge, NewErrNoTransitionAvailable(string(from), string(event), string(edge.Target))
	}
	return edge, nil
}

// CanFire reports whether event is legal from state, ignoring permissions.
func (g *Graph[S, E]) CanFire(from S, event E) bool {
	_, err := g.Resolve(from, event)
	return err == nil
}

// Allowed returns the transitions legal from state, in declaration order.
func (g *Graph[S, E]) Allowed(from S) []E {
	return slices.Clone(g.outgoing[from])
}

// EdgesTo returns every edge ending at target, in declaration order.
func (g *Graph[S, E]) EdgesTo(target S) []Edge[S, E] {
	names := g.incoming[target]
	out := make([]Edge[S, E], 0, len(names))
	for _, name := range names {
		out = append(out, g.edges[name])
	}
	return out
}
