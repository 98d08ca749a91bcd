// Package nestbox sandboxes AI coding agents in containers and lets
// them recursively spawn subordinate helper agents, each in its own
// container, coordinated through a local broker (the hub).
//
// This root package holds the pure parts: the spawn topology that maps
// every agent to a unique number in an implicit B-ary tree, the spawn
// budget that caps depth and breadth per generation, and the config and
// path conventions shared by the hub and the CLI.
//
// # Spawn topology
//
// Agent 0 is the director. With breadth B, agent A owns the child slots
// [A*B+1, A*B+B]; the mapping from number to tree position is a pure
// function, so no central allocation state is needed:
//
//	first, last, _ := nestbox.ChildrenOf(0, 4) // 1, 4
//	parent, _ := nestbox.ParentOf(7, 4)        // 1
//	depth := nestbox.AgentDepth(7, 4)          // 2
//
// # Spawn budget
//
// Budgets resolve from a parent-written read-only config, then the host
// config, then CLI flags, then defaults. Children inherit breadth and
// one less depth:
//
//	budget := nestbox.ResolveSpawnBudget(ro, host, cliDepth, cliBreadth)
//	if err := nestbox.CheckSpawnAllowed(budget, children); err != nil {
//	    // depth or breadth exhausted
//	}
//	child := nestbox.ChildBudget(budget)
//
// # Architecture
//
// The main components are:
//
//   - hub: the Unix socket broker that registers helper connections,
//     launches and tears down helper containers, and routes messages
//   - container: the container runtime contract and its Docker backend
//   - internal/layout: the on-host helper directory structure
//   - cmd/nestbox: the CLI driving all of the above
//
// # Thread Safety
//
// The topology and budget functions are pure. The hub, message log, and
// client types use internal synchronization and are safe for concurrent
// use.
package nestbox
