// Package statemachine provides an immutable, validated transition graph for
// finite state machines whose states and transitions are known at compile time.
//
// A Graph is a static table of named edges. Each edge binds a transition name
// to a set of allowed source states, a single target state and an optional
// permission that callers must hold to fire it. The graph holds no current
// state: the entity being moved stores its own state and the graph answers
// lookups such as "which edge is this", "may it fire from here" and "what is
// legal from this state".
//
// # Usage
//
//	type Status string
//	type Action string
//
//	g := statemachine.MustNew[Status, Action]("draft",
//	    statemachine.WithStates[Status, Action]("draft", "review", "published"),
//	    statemachine.WithEdge[Status, Action]("submit", "review", []Status{"draft"}),
//	    statemachine.WithEdge[Status, Action]("publish", "published", []Status{"review"},
//	        statemachine.WithPermission("posts.publish")),
//	    statemachine.WithTerminal[Status, Action]("published"),
//	)
//
//	edge, err := g.Resolve("draft", "publish")
//	if statemachine.IsNoTransitionAvailableError(err) { /* ... */ }
//
// # Validation
//
// New rejects graphs that reference undeclared states, declare the same
// transition twice or let an edge leave a terminal state. Lookups on a built
// graph never mutate it, so a Graph is safe for concurrent use without locks.
package statemachine
