package nestbox

import "fmt"

// Default spawn limits applied when neither a parent-written spawn
// config, the host config, nor CLI flags supply a value.
const (
	DefaultDepth   = 4
	DefaultBreadth = 4
)

// Unlimited is the sentinel for an unbounded budget dimension.
const Unlimited = -1

// SpawnBudget is the spawn quota for one agent. Either field may be
// Unlimited. Treat values as immutable; derive new budgets with
// ChildBudget instead of mutating.
type SpawnBudget struct {
	Depth   int
	Breadth int
}

// SpawnDeniedError reports which budget dimension blocked a spawn.
type SpawnDeniedError struct {
	Dimension string // "depth" or "breadth"
	Reason    string
}

func (e *SpawnDeniedError) Error() string {
	return e.Reason
}

// CheckSpawnAllowed reports whether an agent holding budget may spawn
// another child given how many it already has. A nil return means the
// spawn is allowed; otherwise the error names the exhausted dimension.
func CheckSpawnAllowed(budget SpawnBudget, currentChildren int) error {
	if budget.Depth == 0 {
		return &SpawnDeniedError{
			Dimension: "depth",
			Reason:    "spawn depth exhausted (depth=0)",
		}
	}
	if budget.Breadth != Unlimited && currentChildren >= budget.Breadth {
		return &SpawnDeniedError{
			Dimension: "breadth",
			Reason:    fmt.Sprintf("breadth limit reached (%d/%d)", currentChildren, budget.Breadth),
		}
	}
	return nil
}

// ChildBudget computes the budget a child inherits from parent: depth
// decremented by one (unlimited stays unlimited, never below zero),
// breadth passed through unchanged.
func ChildBudget(parent SpawnBudget) SpawnBudget {
	depth := parent.Depth
	if depth != Unlimited && depth > 0 {
		depth--
	}
	return SpawnBudget{Depth: depth, Breadth: parent.Breadth}
}

// ResolveSpawnBudget resolves the effective budget from its sources in
// precedence order: the read-only spawn config a parent wrote for this
// agent (highest), then the host config, then per-invocation CLI flags,
// then built-in defaults. CLI flags are partial: a supplied depth does
// not pull the breadth along with it.
func ResolveSpawnBudget(roConfig, hostConfig *SpawnBudget, cliDepth, cliBreadth *int) SpawnBudget {
	if roConfig != nil {
		return *roConfig
	}
	if hostConfig != nil {
		return *hostConfig
	}
	budget := SpawnBudget{Depth: DefaultDepth, Breadth: DefaultBreadth}
	if cliDepth != nil {
		budget.Depth = *cliDepth
	}
	if cliBreadth != nil {
		budget.Breadth = *cliBreadth
	}
	return budget
}
