package engine

import "sync"

// Direction tells the unwinder how a relationship is released: edges a
// resource is attached to are detached, sub-resources it owns are deleted.
type Direction int

const (
	AttachedTo Direction = iota
	Owns
)

// Relationship is a live link between the primary resource and a dependent
// one, discovered from the external system.
type Relationship struct {
	Kind      string
	From      string
	To        string
	Direction Direction
}

// Scratch is the ephemeral state shared by the steps of one invocation.
// Nothing in it outlives the invocation.
type Scratch struct {
	mu     sync.Mutex
	values map[string]string
	rels   []Relationship
}

// NewScratch returns an empty scratch area.
func NewScratch() *Scratch {
	return &Scratch{values: make(map[string]string)}
}

// Set stores a value produced by a step.
func (s *Scratch) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Get returns a value stored by an earlier step, or "".
func (s *Scratch) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// Has reports whether a non-empty value is stored under key.
func (s *Scratch) Has(key string) bool {
	return s.Get(key) != ""
}

// Relate records a discovered relationship.
func (s *Scratch) Relate(rel Relationship) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rels = append(s.rels, rel)
}

// Relations returns the discovered relationships of the given kind, in
// discovery order.
func (s *Scratch) Relations(kind string) []Relationship {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Relationship
	for _, r := range s.rels {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}
