package texture

import "testing"

// makeChainGraph builds a linear chain of n faces, each connected to its
// immediate predecessor/successor only (slot 0 = prev, slot 1 = next).
func makeChainGraph(n int) *FaceGraph {
	neighbors := make([][4]int32, n)
	for i := range neighbors {
		neighbors[i] = [4]int32{-1, -1, -1, -1}
		if i > 0 {
			neighbors[i][0] = int32(i - 1)
		}
		if i < n-1 {
			neighbors[i][1] = int32(i + 1)
		}
	}
	return NewFaceGraph(neighbors)
}

func TestCutCoversAllFacesUnderBudget(t *testing.T) {
	g := makeChainGraph(10)
	unitCost := func(face int32) uint64 { return 1 }

	partitions := g.Cut(unitCost, 3)

	seen := make(map[int32]bool)
	for _, p := range partitions {
		for _, f := range p.Faces {
			seen[f] = true
		}
	}
	for i := int32(0); i < 10; i++ {
		if !seen[i] {
			t.Fatalf("face %d missing from any partition", i)
		}
	}
}

func TestCutRespectsBudget(t *testing.T) {
	g := makeChainGraph(20)
	cost := func(face int32) uint64 { return 5 }
	budget := uint64(12)

	for _, p := range g.Cut(cost, budget) {
		// The partition's core (pre-neighbour-expansion) cost must fit
		// budget; buildRemap may add up to 2 extra neighbour faces for
		// filtering which are not charged against budget, so the budget
		// check covers Core only. A single face is always admitted
		// (progress guarantee), so a one-face core is exempt.
		if len(p.Faces) == 0 {
			t.Fatalf("empty partition produced")
		}
		coreBytes := uint64(0)
		for _, f := range p.Core {
			coreBytes += cost(f)
		}
		if len(p.Core) > 1 && coreBytes > budget {
			t.Fatalf("partition core costs %d bytes, over budget %d", coreBytes, budget)
		}
	}
}

func TestCutProducesContiguousNewIDs(t *testing.T) {
	g := makeChainGraph(6)
	unitCost := func(face int32) uint64 { return 1 }

	for _, p := range g.Cut(unitCost, 100) {
		for newID, oldID := range p.Faces {
			if p.OldToNew[oldID] != int32(newID) {
				t.Fatalf("face %d: OldToNew[%d] = %d, want %d", newID, oldID, p.OldToNew[oldID], newID)
			}
		}
	}
}

func TestCutSingleFaceBudgetTerminates(t *testing.T) {
	g := makeChainGraph(5)
	cost := func(face int32) uint64 { return 1 }

	partitions := g.Cut(cost, 1)
	if len(partitions) == 0 {
		t.Fatalf("expected at least one partition")
	}
	total := 0
	for _, p := range partitions {
		total += len(p.Faces)
	}
	if total < 5 {
		t.Fatalf("expected every face covered across partitions, got %d face-slots for 5 faces", total)
	}
}
