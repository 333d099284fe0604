package evo

import (
	"testing"

	"polyfit/internal/model"
)

func TestEliteStackSeedsWithTwoFittest(t *testing.T) {
	stack := NewEliteStack()
	stack.Update(scoredCandidates(0.9, 0.8, 0.3))
	members := stack.Members()
	if len(members) != EliteCapacity {
		t.Fatalf("stack size %d, want %d", len(members), EliteCapacity)
	}
	if members[0].ID != 1 || members[1].ID != 2 {
		t.Fatalf("unexpected seeded members: %+v", members)
	}
}

func TestEliteStackReplacesFirstExceededSlot(t *testing.T) {
	stack := NewEliteStack()
	stack.Update([]model.Organism{{ID: 1, Fitness: 0.5}, {ID: 2, Fitness: 0.7}})

	// exceeds slot 1 (0.7) and slot 0 (0.5); slot 0 is checked first
	if !stack.Offer(model.Organism{ID: 3, Fitness: 0.8}) {
		t.Fatal("expected offer to replace a slot")
	}
	members := stack.Members()
	if members[0].ID != 3 || members[1].ID != 2 {
		t.Fatalf("expected slot 0 replaced, got %+v", members)
	}

	// 0.75 does not exceed slot 0 (0.8) but exceeds slot 1 (0.7)
	if !stack.Offer(model.Organism{ID: 4, Fitness: 0.75}) {
		t.Fatal("expected offer to replace slot 1")
	}
	members = stack.Members()
	if members[0].ID != 3 || members[1].ID != 4 {
		t.Fatalf("expected slot 1 replaced, got %+v", members)
	}

	if stack.Offer(model.Organism{ID: 5, Fitness: 0.75}) {
		t.Fatal("equal fitness must not replace a slot")
	}
}

func TestEliteStackIgnoresExistingMembers(t *testing.T) {
	stack := NewEliteStack()
	stack.Update([]model.Organism{{ID: 1, Fitness: 0.2}, {ID: 2, Fitness: 0.1}})
	if stack.Offer(model.Organism{ID: 2, Fitness: 0.95}) {
		t.Fatal("re-offered member must not displace another slot")
	}
	if !stack.Contains(1) || !stack.Contains(2) {
		t.Fatal("expected both members to remain")
	}
}

func TestEliteStackBestFitnessNeverRegresses(t *testing.T) {
	stack := NewEliteStack()
	stack.Update(scoredCandidates(0.6, 0.4))
	best := stack.BestFitness()
	for _, f := range []float64{0.3, 0.9, 0.1, 0.5, 0.95, 0.2} {
		stack.Update([]model.Organism{{ID: uint64(100 + int(f*100)), Fitness: f}})
		if stack.BestFitness() < best {
			t.Fatalf("best fitness regressed from %g to %g", best, stack.BestFitness())
		}
		best = stack.BestFitness()
	}
	if best != 0.95 {
		t.Fatalf("best fitness %g, want 0.95", best)
	}
}

func TestEliteStackMembersAreCopies(t *testing.T) {
	stack := NewEliteStack()
	stack.Update(scoredCandidates(0.9, 0.8))
	members := stack.Members()
	members[0].Coefficients[0] = -1
	if stack.Members()[0].Coefficients[0] == -1 {
		t.Fatal("members alias stack storage")
	}
	stack.Reset()
	if stack.Len() != 0 {
		t.Fatalf("reset left %d members", stack.Len())
	}
}
