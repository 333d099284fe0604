package evo

import "polyfit/internal/model"

// EliteCapacity is the number of organisms retained across generations.
const EliteCapacity = 2

// EliteStack keeps the best organisms seen so far in a fixed number of slots.
type EliteStack struct {
	slots []model.Organism
}

func NewEliteStack() *EliteStack {
	return &EliteStack{slots: make([]model.Organism, 0, EliteCapacity)}
}

func (s *EliteStack) Reset() {
	s.slots = s.slots[:0]
}

func (s *EliteStack) Len() int {
	return len(s.slots)
}

// Update seeds an empty stack with the fittest organisms of ranked and
// otherwise offers each ranked organism in order.
func (s *EliteStack) Update(ranked []model.Organism) {
	if len(s.slots) == 0 {
		for i := 0; i < len(ranked) && i < EliteCapacity; i++ {
			s.slots = append(s.slots, ranked[i].Clone())
		}
		return
	}
	for _, o := range ranked {
		s.Offer(o)
	}
}

// Offer places o in the first slot whose fitness it exceeds, scanning from
// slot 0. Organisms already on the stack are ignored. It reports whether a
// slot changed.
func (s *EliteStack) Offer(o model.Organism) bool {
	if s.Contains(o.ID) {
		return false
	}
	if len(s.slots) < EliteCapacity {
		s.slots = append(s.slots, o.Clone())
		return true
	}
	for i := range s.slots {
		if o.Fitness > s.slots[i].Fitness {
			s.slots[i] = o.Clone()
			return true
		}
	}
	return false
}

func (s *EliteStack) Contains(id uint64) bool {
	for _, slot := range s.slots {
		if slot.ID == id {
			return true
		}
	}
	return false
}

// Members returns copies of the slots in stack order.
func (s *EliteStack) Members() []model.Organism {
	out := make([]model.Organism, len(s.slots))
	for i, slot := range s.slots {
		out[i] = slot.Clone()
	}
	return out
}

// BestFitness is the highest fitness held, or 0 when empty.
func (s *EliteStack) BestFitness() float64 {
	best := 0.0
	for _, slot := range s.slots {
		if slot.Fitness > best {
			best = slot.Fitness
		}
	}
	return best
}
