package combat

import (
	"fmt"
	"sort"

	"github.com/cory-johannsen/crownfall/internal/sim/profile"
)

// unitBlock tracks one unit type inside a CombatantState. Blocks are sorted
// into casualty order at construction: lowest effective armor first, ties
// broken by registry declaration order.
type unitBlock struct {
	id       string
	name     string
	category profile.Category
	declIdx  int
	effArmor float64
	effHP    float64
	effDmg   float64
	cmdMult  float64
	initial  int
	current  int
}

// CombatantState is the mutable per-side tally of unit composition and hit
// points during one engagement. It is derived from an army/garrison snapshot
// plus profile and bonus lookups; applyDamage is the only mutation path.
//
// Invariants: current counts never exceed initial counts, CurrentTotalHP is
// non-increasing, and all decrements clamp at zero.
type CombatantState struct {
	registry *profile.Registry
	blocks   []*unitBlock

	initialUnits int
	initialHP    float64

	// carry is the partial damage already absorbed by the weakest remaining
	// unit type; always less than that type's effective HP.
	carry float64

	damageDealt map[string]float64
}

// NewCombatantState builds per-side state from a composition snapshot.
// Zero-count entries are dropped; the snapshot map is not retained.
//
// Precondition: reg must contain every unit type in composition.
// Postcondition: Returns a state whose initial totals reflect the snapshot
// with bonuses applied, or a non-nil error on unknown types or negative
// counts.
func NewCombatantState(reg *profile.Registry, composition map[string]int, bonuses profile.BonusSource, commander profile.Commander) (*CombatantState, error) {
	if bonuses == nil {
		bonuses = profile.NoBonuses{}
	}

	s := &CombatantState{
		registry:    reg,
		damageDealt: make(map[string]float64),
	}

	for id, count := range composition {
		if count < 0 {
			return nil, fmt.Errorf("combatant: unit type %q has negative count %d", id, count)
		}
		if count == 0 {
			continue
		}
		p, err := reg.Get(id)
		if err != nil {
			return nil, fmt.Errorf("combatant: %w", err)
		}
		bonus := bonuses.BonusFor(p)
		s.blocks = append(s.blocks, &unitBlock{
			id:       id,
			name:     p.Name,
			category: p.Category,
			declIdx:  reg.DeclarationIndex(id),
			effArmor: p.Armor + bonus.ArmorBonus,
			effHP:    p.EffectiveHP(bonus),
			effDmg:   p.EffectiveDamage(bonus),
			cmdMult:  commander.DamageMultiplier(p.Category),
			initial:  count,
			current:  count,
		})
	}

	sort.Slice(s.blocks, func(i, j int) bool {
		a, b := s.blocks[i], s.blocks[j]
		if a.effArmor != b.effArmor {
			return a.effArmor < b.effArmor
		}
		return a.declIdx < b.declIdx
	})

	for _, b := range s.blocks {
		s.initialUnits += b.initial
		s.initialHP += float64(b.initial) * b.effHP
	}
	return s, nil
}

// TotalUnits returns the number of units currently alive.
func (s *CombatantState) TotalUnits() int {
	total := 0
	for _, b := range s.blocks {
		total += b.current
	}
	return total
}

// InitialUnitCount returns the unit count at engagement start.
func (s *CombatantState) InitialUnitCount() int { return s.initialUnits }

// InitialTotalHP returns the effective hit point total at engagement start.
func (s *CombatantState) InitialTotalHP() float64 { return s.initialHP }

// CurrentTotalHP returns the current effective hit point total.
//
// Postcondition: Returns 0 when no units remain; otherwise a positive value
// never exceeding InitialTotalHP.
func (s *CombatantState) CurrentTotalHP() float64 {
	var hp float64
	for _, b := range s.blocks {
		hp += float64(b.current) * b.effHP
	}
	hp -= s.carry
	if hp < 0 {
		panic("combat: CurrentTotalHP went negative")
	}
	return hp
}

// Composition returns a copy of the current per-type unit counts. Types
// reduced to zero are included so conservation checks can see them.
func (s *CombatantState) Composition() map[string]int {
	out := make(map[string]int, len(s.blocks))
	for _, b := range s.blocks {
		out[b.id] = b.current
	}
	return out
}

// InitialComposition returns a copy of the per-type counts at start.
func (s *CombatantState) InitialComposition() map[string]int {
	out := make(map[string]int, len(s.blocks))
	for _, b := range s.blocks {
		out[b.id] = b.initial
	}
	return out
}

// CasualtiesByType returns a copy of cumulative losses per unit type.
func (s *CombatantState) CasualtiesByType() map[string]int {
	out := make(map[string]int, len(s.blocks))
	for _, b := range s.blocks {
		if lost := b.initial - b.current; lost > 0 {
			out[b.id] = lost
		}
	}
	return out
}

// UnitsOfCategory returns the live unit count in the given category.
func (s *CombatantState) UnitsOfCategory(cat profile.Category) int {
	total := 0
	for _, b := range s.blocks {
		if b.category == cat {
			total += b.current
		}
	}
	return total
}

// rangedCapableUnits returns live units that participate in the ranged
// exchange phase.
func (s *CombatantState) rangedCapableUnits() int {
	total := 0
	for _, b := range s.blocks {
		if b.category.RangedCapable() {
			total += b.current
		}
	}
	return total
}

// damageBudget returns the side's raw damage this tick before phase
// scaling, plus the per-type contributions used for attribution.
// When rangedOnly is set, only Ranged and Siege units contribute.
func (s *CombatantState) damageBudget(rangedOnly bool) (float64, map[string]float64) {
	byType := make(map[string]float64, len(s.blocks))
	var total float64
	for _, b := range s.blocks {
		if b.current == 0 {
			continue
		}
		if rangedOnly && !b.category.RangedCapable() {
			continue
		}
		contribution := float64(b.current) * b.effDmg * b.cmdMult
		if contribution == 0 {
			continue
		}
		byType[b.id] = contribution
		total += contribution
	}
	return total, byType
}

// creditDamage attributes inflicted damage to the unit types that produced
// it, proportional to their raw contributions.
func (s *CombatantState) creditDamage(inflicted, rawTotal float64, byType map[string]float64) {
	if inflicted <= 0 || rawTotal <= 0 {
		return
	}
	for id, raw := range byType {
		s.damageDealt[id] += inflicted * raw / rawTotal
	}
}

// damageDealtByType returns a copy of cumulative damage credited per type.
func (s *CombatantState) damageDealtByType() map[string]float64 {
	out := make(map[string]float64, len(s.damageDealt))
	for id, dmg := range s.damageDealt {
		out[id] = dmg
	}
	return out
}

// applyDamage absorbs dmg into the composition, converting accumulated
// damage into casualties weakest-armor-first. This is the only code path
// that decrements counts or hit points.
//
// Precondition: dmg >= 0 (negative damage panics — invariant violation).
// Postcondition: Returns the casualties caused by this application, keyed
// by unit type; counts clamp at zero.
func (s *CombatantState) applyDamage(dmg float64) map[string]int {
	if dmg < 0 {
		panic(fmt.Sprintf("combat: applyDamage called with negative damage %f", dmg))
	}

	casualties := make(map[string]int)
	pool := s.carry + dmg

	for _, b := range s.blocks {
		for b.current > 0 && pool >= b.effHP {
			pool -= b.effHP
			b.current--
			casualties[b.id]++
		}
		// The residual stays on the weakest surviving type; it never spills
		// past a standing block to kill a better-armored one behind it.
		if b.current > 0 {
			break
		}
	}

	if s.TotalUnits() == 0 {
		// Overkill damage evaporates with the army.
		s.carry = 0
	} else {
		s.carry = pool
	}
	return casualties
}
