/*
Package causegraph is the causality and governance core for multi-agent
runtimes: an append-only event ledger with explicit causal dependencies,
concurrency queries over the resulting graph, minimal-context projections
("causal cones"), and a multi-party approval gate for governed actions.

# Overview

The model is a trace monoid: a sequence of events plus an independence
relation. Two events with no dependency path between them are concurrent and
may be freely reordered; events connected by dependencies must respect their
order. The ledger records the sequence, the dependency graph records the
relation, and everything else is a query over the two.

  - Ledger: append events with explicit dependencies; linearize; project
    per-source views; join independent histories with a knot barrier.
  - DependencyGraph: cycle-rejecting DAG with transitive-closure caching,
    topological sort, and concurrency queries.
  - CausalCone: snapshot projection answering "what is the minimal history
    this agent needs before acting?"
  - turn: governed units of behavior with a closed kind set and governance
    predicates; YieldTurn for pending approvals.
  - approval: the blocking coordinator that suspends a yielding agent until
    a consensus strategy is satisfied, a veto arrives, or a deadline passes.

# Basic Usage

	rt := causegraph.NewRuntime[string]()

	a1, _ := rt.Append(ctx, "observe", "alice")
	b1, _ := rt.Append(ctx, "observe", "bob")
	a2, _ := rt.Append(ctx, "act", "alice", a1, b1)

	// Minimal context for alice: a1, b1, a2 - but nothing bob did since.
	events := rt.ProjectContext(ctx, "alice")

	// Gate an action behind approval from both operators.
	res, _ := rt.SubmitYield(ctx, "deploy", "alice", "prod deploy",
	    []string{"op-1", "op-2"},
	    causegraph.WithDependencies(a2),
	    causegraph.WithYieldTimeout(30*time.Second))

# Concurrency Model

Ledger, graph, and cone mutation is single-writer; reads may run
concurrently with each other. The approval handler is the only component
built for genuine multi-actor concurrency: many approvers and many
simultaneous requests operate against a shared table, each request with an
independent suspension primitive.
*/
package causegraph
