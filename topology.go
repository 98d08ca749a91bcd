package nestbox

import "fmt"

// UnlimitedBreadth is the breadth used for tree numbering when the
// configured breadth is unlimited (-1). Large enough that child ranges
// never collide in practice; small enough to keep helper numbers readable.
const UnlimitedBreadth = 1 << 16

// EffectiveBreadth returns the breadth used for tree numbering.
// The -1 sentinel (unlimited) maps to UnlimitedBreadth; positive values
// pass through unchanged. Zero and values below -1 are invalid.
func EffectiveBreadth(breadth int) (int, error) {
	if breadth == -1 {
		return UnlimitedBreadth, nil
	}
	if breadth < 1 {
		return 0, fmt.Errorf("breadth must be positive or -1, got %d", breadth)
	}
	return breadth, nil
}

// ChildrenOf returns the inclusive (first, last) global numbers of the
// child slots owned by agent. Every agent owns exactly
// EffectiveBreadth(breadth) contiguous slots regardless of how many
// children are actually spawned, and ranges of distinct agents never
// overlap.
func ChildrenOf(agent, breadth int) (first, last int, err error) {
	b, err := EffectiveBreadth(breadth)
	if err != nil {
		return 0, 0, err
	}
	return agent*b + 1, agent*b + b, nil
}

// ParentOf returns the global number of agent's parent. The second
// return value is false for the director (agent 0), which has no parent.
func ParentOf(agent, breadth int) (int, bool) {
	if agent == 0 {
		return 0, false
	}
	b, err := EffectiveBreadth(breadth)
	if err != nil {
		return 0, false
	}
	return (agent - 1) / b, true
}

// AgentDepth returns the depth of agent in the spawn tree. The director
// is at depth 0.
func AgentDepth(agent, breadth int) int {
	depth := 0
	current := agent
	for current != 0 {
		parent, ok := ParentOf(current, breadth)
		if !ok {
			break
		}
		current = parent
		depth++
	}
	return depth
}

// NthChild returns the global number of agent's n-th child (0-indexed).
// It fails when n is out of range for the given breadth.
func NthChild(agent, n, breadth int) (int, error) {
	b, err := EffectiveBreadth(breadth)
	if err != nil {
		return 0, err
	}
	if n < 0 || n >= b {
		return 0, fmt.Errorf("child index %d out of range for breadth %d", n, b)
	}
	return agent*b + 1 + n, nil
}

// SiblingIndex returns the 0-based position of agent among its parent's
// children. The director has no siblings and returns 0 by convention.
func SiblingIndex(agent, breadth int) int {
	if agent == 0 {
		return 0
	}
	b, err := EffectiveBreadth(breadth)
	if err != nil {
		return 0
	}
	return (agent - 1) % b
}
