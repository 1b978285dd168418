package profile

import (
	"errors"
	"fmt"
)

// ErrUnknownUnit is returned when a composition references an unregistered
// unit type.
var ErrUnknownUnit = errors.New("unknown unit type")

// Registry holds all loaded unit profiles. Registration order is preserved:
// DeclarationIndex is the casualty tie-break of last resort, so iteration
// and sorting over the registry are deterministic.
//
// Registry is not safe for concurrent mutation; load everything up front,
// then share it read-only (the combat engine only reads).
type Registry struct {
	byID  map[string]*UnitCombatProfile
	order []string
}

// NewRegistry creates an empty Registry.
//
// Postcondition: Returns a non-nil Registry ready for Register calls.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*UnitCombatProfile)}
}

// Register adds a validated profile to the registry.
//
// Precondition: p must have passed Validate.
// Postcondition: Returns an error if p.ID is already registered; otherwise
// the profile is retrievable via Get and appended to declaration order.
func (r *Registry) Register(p *UnitCombatProfile) error {
	if _, exists := r.byID[p.ID]; exists {
		return fmt.Errorf("unit profile %q: duplicate id", p.ID)
	}
	r.byID[p.ID] = p
	r.order = append(r.order, p.ID)
	return nil
}

// Get returns the profile for the given unit type ID.
//
// Postcondition: Returns the profile, or ErrUnknownUnit wrapped with the ID.
func (r *Registry) Get(id string) (*UnitCombatProfile, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, id)
	}
	return p, nil
}

// Has reports whether the unit type ID is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// All returns every registered profile in declaration order.
//
// Postcondition: The returned slice is a fresh copy; mutating it does not
// affect the registry.
func (r *Registry) All() []*UnitCombatProfile {
	out := make([]*UnitCombatProfile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// DeclarationIndex returns the position of the unit type in registration
// order, or -1 if unregistered.
func (r *Registry) DeclarationIndex(id string) int {
	for i, rid := range r.order {
		if rid == id {
			return i
		}
	}
	return -1
}

// Len returns the number of registered profiles.
func (r *Registry) Len() int { return len(r.order) }
