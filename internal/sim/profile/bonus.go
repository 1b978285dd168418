package profile

import "fmt"

// UpgradeBonus holds the additive modifiers a unit type receives from
// completed research. Resolved per player per unit type on demand; never
// stored on combat state.
type UpgradeBonus struct {
	HPBonus     float64
	AttackBonus float64
	ArmorBonus  float64
}

// Add returns the component-wise sum of two bonuses.
func (b UpgradeBonus) Add(o UpgradeBonus) UpgradeBonus {
	return UpgradeBonus{
		HPBonus:     b.HPBonus + o.HPBonus,
		AttackBonus: b.AttackBonus + o.AttackBonus,
		ArmorBonus:  b.ArmorBonus + o.ArmorBonus,
	}
}

// BonusSource resolves the research bonus for a unit type. The zero-value
// NoBonuses implementation is used when a side has no research.
type BonusSource interface {
	// BonusFor returns the additive bonus applied to every unit of p's type.
	BonusFor(p *UnitCombatProfile) UpgradeBonus
}

// NoBonuses is a BonusSource granting nothing.
type NoBonuses struct{}

// BonusFor returns the zero bonus.
func (NoBonuses) BonusFor(*UnitCombatProfile) UpgradeBonus { return UpgradeBonus{} }

// ResearchTier is one completed research step granting a flat bonus to all
// units of a category.
type ResearchTier struct {
	Category Category
	Bonus    UpgradeBonus
}

// ResearchBonuses resolves bonuses from a player's completed research tiers.
// Tiers for the same category stack additively.
type ResearchBonuses struct {
	tiers []ResearchTier
}

// NewResearchBonuses builds a BonusSource from completed tiers.
//
// Postcondition: Returns a non-nil ResearchBonuses; the tier slice is copied.
func NewResearchBonuses(tiers []ResearchTier) *ResearchBonuses {
	copied := make([]ResearchTier, len(tiers))
	copy(copied, tiers)
	return &ResearchBonuses{tiers: copied}
}

// BonusFor sums every completed tier matching p's category.
//
// Postcondition: Returns the zero bonus when no tier matches.
func (r *ResearchBonuses) BonusFor(p *UnitCombatProfile) UpgradeBonus {
	var total UpgradeBonus
	for _, t := range r.tiers {
		if t.Category == p.Category {
			total = total.Add(t.Bonus)
		}
	}
	return total
}

// CommanderDamageBonusPerLevel is the outgoing damage bonus a commander
// grants per level to units matching their specialty.
const CommanderDamageBonusPerLevel = 0.02

// Commander is the subset of the commander stat bundle consumed by the
// combat core: specialty and level. Leadership, tactics, logistics,
// rationing, and endurance are collaborator-owned.
type Commander struct {
	Name      string
	Specialty Category
	Level     int
}

// Validate checks commander invariants.
//
// Postcondition: Returns nil iff Specialty is declared and Level >= 0.
func (c Commander) Validate() error {
	if !c.Specialty.Valid() {
		return fmt.Errorf("commander %q: invalid specialty", c.Name)
	}
	if c.Level < 0 {
		return fmt.Errorf("commander %q: level must not be negative", c.Name)
	}
	return nil
}

// DamageMultiplier returns the outgoing damage multiplier the commander
// grants to units of the given category.
//
// Postcondition: Returns 1.0 for non-specialty categories, and
// 1 + CommanderDamageBonusPerLevel*Level for the specialty.
func (c Commander) DamageMultiplier(cat Category) float64 {
	if cat != c.Specialty {
		return 1.0
	}
	return 1.0 + CommanderDamageBonusPerLevel*float64(c.Level)
}
