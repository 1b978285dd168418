// Package combat implements the phase-based battle resolution engine for
// Crownfall: per-side combatant state, the combat phase machine, the tiered
// stack coordinator, and the immutable combat record builder. The engine
// consumes composition snapshots and terrain facts and reports casualties
// and a winner; it never mutates world state.
package combat

// Tuning holds the balance constants of the phase machine. The numeric
// values are not recoverable from the game's UI layer; the defaults below
// are the documented project choice and can be overridden through the
// engine configuration section.
type Tuning struct {
	// TickSeconds is the battle time represented by one simulation tick.
	TickSeconds float64
	// RangedPhaseMaxTicks bounds the ranged exchange; the phase also ends
	// early once both sides are out of ranged-capable units.
	RangedPhaseMaxTicks int
	// CleanupTicks is the fixed duration of the cleanup phase.
	CleanupTicks int
	// StalemateCeilingTicks forces a Draw when a combat runs this long with
	// both sides still standing. Tick-based, never wall-clock.
	StalemateCeilingTicks int
	// DamagePerTickFraction scales a side's total damage into its per-tick
	// damage budget.
	DamagePerTickFraction float64
}

// DefaultTuning returns the project-default balance constants.
func DefaultTuning() Tuning {
	return Tuning{
		TickSeconds:           1.0,
		RangedPhaseMaxTicks:   10,
		CleanupTicks:          2,
		StalemateCeilingTicks: 600,
		DamagePerTickFraction: 0.1,
	}
}

// Validate checks the tuning invariants.
//
// Postcondition: Returns nil iff every field is positive.
func (t Tuning) Validate() error {
	switch {
	case t.TickSeconds <= 0:
		return errTuning("tick_seconds must be > 0")
	case t.RangedPhaseMaxTicks < 1:
		return errTuning("ranged_phase_max_ticks must be >= 1")
	case t.CleanupTicks < 1:
		return errTuning("cleanup_ticks must be >= 1")
	case t.StalemateCeilingTicks < 1:
		return errTuning("stalemate_ceiling_ticks must be >= 1")
	case t.DamagePerTickFraction <= 0 || t.DamagePerTickFraction > 1:
		return errTuning("damage_per_tick_fraction must be in (0, 1]")
	}
	return nil
}

type tuningError string

func errTuning(msg string) error { return tuningError(msg) }

func (e tuningError) Error() string { return "combat tuning: " + string(e) }
