package nestbox

import "testing"

func TestEffectiveBreadth(t *testing.T) {
	tests := []struct {
		breadth int
		want    int
		wantErr bool
	}{
		{1, 1, false},
		{4, 4, false},
		{100, 100, false},
		{-1, UnlimitedBreadth, false},
		{0, 0, true},
		{-2, 0, true},
	}

	for _, tt := range tests {
		got, err := EffectiveBreadth(tt.breadth)
		if (err != nil) != tt.wantErr {
			t.Errorf("EffectiveBreadth(%d) error = %v, wantErr %v", tt.breadth, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("EffectiveBreadth(%d) = %d, want %d", tt.breadth, got, tt.want)
		}
	}
}

func TestChildrenOf(t *testing.T) {
	tests := []struct {
		agent, breadth int
		first, last    int
	}{
		{0, 4, 1, 4},
		{1, 4, 5, 8},
		{2, 4, 9, 12},
		{0, 1, 1, 1},
		{3, 1, 4, 4},
		{0, -1, 1, UnlimitedBreadth},
	}

	for _, tt := range tests {
		first, last, err := ChildrenOf(tt.agent, tt.breadth)
		if err != nil {
			t.Errorf("ChildrenOf(%d, %d) error = %v", tt.agent, tt.breadth, err)
			continue
		}
		if first != tt.first || last != tt.last {
			t.Errorf("ChildrenOf(%d, %d) = (%d, %d), want (%d, %d)",
				tt.agent, tt.breadth, first, last, tt.first, tt.last)
		}
	}
}

func TestParentOfDirector(t *testing.T) {
	if _, ok := ParentOf(0, 4); ok {
		t.Error("ParentOf(0, 4) ok = true, want false for the director")
	}
}

// Every child produced by NthChild must map back to its parent via
// ParentOf, and report the right sibling position, across breadths
// including the unlimited sentinel.
func TestTopologyInverses(t *testing.T) {
	breadths := []int{1, 2, 3, 4, 7, 16, -1}

	for _, breadth := range breadths {
		b, err := EffectiveBreadth(breadth)
		if err != nil {
			t.Fatalf("EffectiveBreadth(%d) error = %v", breadth, err)
		}
		// Probe the first few child slots plus the last one.
		probes := []int{0, 1, 2}
		if b > 3 {
			probes = append(probes, b-1)
		}

		for agent := 0; agent < 20; agent++ {
			for _, n := range probes {
				if n >= b {
					continue
				}
				child, err := NthChild(agent, n, breadth)
				if err != nil {
					t.Fatalf("NthChild(%d, %d, %d) error = %v", agent, n, breadth, err)
				}
				parent, ok := ParentOf(child, breadth)
				if !ok || parent != agent {
					t.Errorf("ParentOf(NthChild(%d, %d, %d)) = %d (ok=%v), want %d",
						agent, n, breadth, parent, ok, agent)
				}
				if got := SiblingIndex(child, breadth); got != n {
					t.Errorf("SiblingIndex(%d, %d) = %d, want %d", child, breadth, got, n)
				}
			}
		}
	}
}

// Child ranges of distinct parents never intersect.
func TestChildRangesDisjoint(t *testing.T) {
	for _, breadth := range []int{1, 2, 4, 9} {
		seen := make(map[int]int) // child number -> owning agent
		for agent := 0; agent < 50; agent++ {
			first, last, err := ChildrenOf(agent, breadth)
			if err != nil {
				t.Fatalf("ChildrenOf(%d, %d) error = %v", agent, breadth, err)
			}
			for c := first; c <= last; c++ {
				if owner, dup := seen[c]; dup {
					t.Fatalf("breadth %d: child %d owned by both agent %d and %d",
						breadth, c, owner, agent)
				}
				seen[c] = agent
			}
		}
	}
}

// With breadth 1 the tree degenerates to a chain, so depth equals the
// agent number.
func TestAgentDepthChain(t *testing.T) {
	for agent := 0; agent < 10; agent++ {
		if got := AgentDepth(agent, 1); got != agent {
			t.Errorf("AgentDepth(%d, 1) = %d, want %d", agent, got, agent)
		}
	}
}

func TestAgentDepth(t *testing.T) {
	tests := []struct {
		agent, breadth, want int
	}{
		{0, 4, 0},
		{1, 4, 1},
		{4, 4, 1},
		{5, 4, 2},
		{20, 4, 2},
		{21, 4, 3},
	}

	for _, tt := range tests {
		if got := AgentDepth(tt.agent, tt.breadth); got != tt.want {
			t.Errorf("AgentDepth(%d, %d) = %d, want %d", tt.agent, tt.breadth, got, tt.want)
		}
	}
}

func TestNthChildOutOfRange(t *testing.T) {
	if _, err := NthChild(0, -1, 4); err == nil {
		t.Error("NthChild(0, -1, 4) error = nil, want out-of-range error")
	}
	if _, err := NthChild(0, 4, 4); err == nil {
		t.Error("NthChild(0, 4, 4) error = nil, want out-of-range error")
	}
	if _, err := NthChild(0, 3, 4); err != nil {
		t.Errorf("NthChild(0, 3, 4) error = %v, want nil", err)
	}
}

func TestSiblingIndexRoot(t *testing.T) {
	if got := SiblingIndex(0, 4); got != 0 {
		t.Errorf("SiblingIndex(0, 4) = %d, want 0", got)
	}
}
