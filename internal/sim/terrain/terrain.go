// Package terrain resolves terrain, elevation, entrenchment, and defensive
// building facts into the damage modifiers consumed by the combat engine.
// The resolver is a pure function over value inputs; the engine never sees
// hexes beyond this descriptor.
package terrain

import "fmt"

// Type identifies the terrain of the contested tile.
type Type int

const (
	Plains Type = iota
	Forest
	Hills
	Mountains
	Swamp
	Desert
)

var typeNames = [...]string{"plains", "forest", "hills", "mountains", "swamp", "desert"}

// String returns the lowercase terrain name.
func (t Type) String() string {
	if t < Plains || t > Desert {
		return "unknown"
	}
	return typeNames[t]
}

// Valid reports whether t is a declared terrain type.
func (t Type) Valid() bool { return t >= Plains && t <= Desert }

// ParseType converts a YAML/display name into a terrain Type.
//
// Postcondition: Returns a valid Type or a non-nil error.
func ParseType(s string) (Type, error) {
	for i, name := range typeNames {
		if name == s {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("terrain: unknown terrain type %q", s)
}

// Building identifies the defensive structure on the contested tile, if any.
type Building int

const (
	NoBuilding Building = iota
	Palisade
	Fort
	Castle
)

var buildingNames = [...]string{"none", "palisade", "fort", "castle"}

// String returns the lowercase building name.
func (b Building) String() string {
	if b < NoBuilding || b > Castle {
		return "unknown"
	}
	return buildingNames[b]
}

// Valid reports whether b is a declared building.
func (b Building) Valid() bool { return b >= NoBuilding && b <= Castle }

// ParseBuilding converts a YAML/display name into a Building. The empty
// string means no building.
//
// Postcondition: Returns a valid Building or a non-nil error.
func ParseBuilding(s string) (Building, error) {
	if s == "" {
		return NoBuilding, nil
	}
	for i, name := range buildingNames {
		if name == s {
			return Building(i), nil
		}
	}
	return 0, fmt.Errorf("terrain: unknown building type %q", s)
}

// Resolver constants. Fractions applied multiplicatively to damage; see
// Modifiers.
const (
	// EntrenchmentBonus is the flat defense bonus for an entrenched defender,
	// independent of terrain.
	EntrenchmentDefenseBonus = 0.15
	// ElevationBonusPerLevel is the extra defense per elevation level.
	ElevationBonusPerLevel = 0.03
	// MaxElevationLevel caps the elevation contribution.
	MaxElevationLevel = 3
	// MitigationCeiling caps combined defender mitigation so incoming damage
	// is never scaled below 10%, which would deadlock the ranged phase.
	MitigationCeiling = 0.9
)

// Modifiers are the resolved damage modifiers for one engagement. All
// fields are fractions >= 0. DefenseBonus and EntrenchmentBonus together
// scale damage into the defender by (1 - Mitigation()); AttackPenalty
// scales the attacker's outgoing damage by (1 - AttackPenalty).
type Modifiers struct {
	DefenseBonus      float64
	AttackPenalty     float64
	EntrenchmentBonus float64
}

// Mitigation returns the combined incoming-damage reduction for the
// defender, clamped to MitigationCeiling.
//
// Postcondition: Returns a value in [0, MitigationCeiling].
func (m Modifiers) Mitigation() float64 {
	combined := m.DefenseBonus + m.EntrenchmentBonus
	if combined > MitigationCeiling {
		return MitigationCeiling
	}
	if combined < 0 {
		return 0
	}
	return combined
}

// baseModifiers is the per-terrain table. Defense favors the holder of the
// tile; attack penalty reflects how badly the terrain hampers an assault.
var baseModifiers = map[Type]Modifiers{
	Plains:    {DefenseBonus: 0.00, AttackPenalty: 0.00},
	Forest:    {DefenseBonus: 0.15, AttackPenalty: 0.10},
	Hills:     {DefenseBonus: 0.20, AttackPenalty: 0.10},
	Mountains: {DefenseBonus: 0.30, AttackPenalty: 0.20},
	Swamp:     {DefenseBonus: 0.05, AttackPenalty: 0.25},
	Desert:    {DefenseBonus: 0.00, AttackPenalty: 0.05},
}

// buildingBonus is the defense added by a defensive structure.
var buildingBonus = map[Building]float64{
	NoBuilding: 0.00,
	Palisade:   0.10,
	Fort:       0.20,
	Castle:     0.35,
}

// Resolve maps (terrain, elevation, entrenched, building) to damage
// modifiers. Pure and order-independent: the same inputs always produce the
// same Modifiers.
//
// Precondition: t and b must be valid; elevation < 0 is treated as 0.
// Postcondition: All returned fields are >= 0; Mitigation() of the result
// never exceeds MitigationCeiling.
func Resolve(t Type, elevation int, entrenched bool, b Building) Modifiers {
	m := baseModifiers[t]

	if elevation < 0 {
		elevation = 0
	}
	if elevation > MaxElevationLevel {
		elevation = MaxElevationLevel
	}
	m.DefenseBonus += ElevationBonusPerLevel * float64(elevation)
	m.DefenseBonus += buildingBonus[b]

	if entrenched {
		m.EntrenchmentBonus = EntrenchmentDefenseBonus
	}
	return m
}
