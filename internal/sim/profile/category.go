// Package profile defines per-unit-type combat constants, the ordered unit
// registry, and the research/commander bonus model consumed by the combat
// engine. Profiles are immutable after loading; bonuses are computed on
// demand and never stored on combat state.
package profile

import "fmt"

// Category classifies a unit type for phase participation and commander
// specialties. Declaration order is the documented casualty tie-break order
// and must not be reordered.
type Category int

const (
	Infantry Category = iota
	Ranged
	Cavalry
	Siege
)

// categoryNames maps Category to its YAML/display name.
var categoryNames = [...]string{"infantry", "ranged", "cavalry", "siege"}

// String returns the lowercase category name.
func (c Category) String() string {
	if c < Infantry || c > Siege {
		return "unknown"
	}
	return categoryNames[c]
}

// Valid reports whether c is a declared category.
func (c Category) Valid() bool { return c >= Infantry && c <= Siege }

// RangedCapable reports whether units of this category deal damage during
// the ranged exchange phase.
func (c Category) RangedCapable() bool { return c == Ranged || c == Siege }

// ParseCategory converts a YAML/display name into a Category.
//
// Postcondition: Returns a valid Category or a non-nil error.
func ParseCategory(s string) (Category, error) {
	for i, name := range categoryNames {
		if name == s {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("profile: unknown unit category %q", s)
}

// Categories returns all declared categories in declaration order.
func Categories() []Category {
	return []Category{Infantry, Ranged, Cavalry, Siege}
}
