package combat

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cory-johannsen/crownfall/internal/sim/profile"
	"github.com/cory-johannsen/crownfall/internal/sim/rng"
	"github.com/cory-johannsen/crownfall/internal/sim/terrain"
)

// Phase is one stage of a single engagement's lifecycle. Phases only move
// forward; a regression is a programming error and panics.
type Phase int

const (
	RangedExchange Phase = iota
	MeleeEngagement
	Cleanup
	Ended
)

// String returns the display label used by the combat panels.
func (p Phase) String() string {
	switch p {
	case RangedExchange:
		return "Ranged Exchange"
	case MeleeEngagement:
		return "Melee Engagement"
	case Cleanup:
		return "Cleanup"
	case Ended:
		return "Ended"
	default:
		return "unknown"
	}
}

// Winner is the outcome of an engagement, valid only once the combat has
// reached Ended.
type Winner int

const (
	WinnerUndecided Winner = iota
	AttackerVictory
	DefenderVictory
	Draw
)

// String returns a human-readable winner label.
func (w Winner) String() string {
	switch w {
	case AttackerVictory:
		return "attacker victory"
	case DefenderVictory:
		return "defender victory"
	case Draw:
		return "draw"
	default:
		return "undecided"
	}
}

// Coordinate locates the contested tile. The engine treats it as opaque
// identity; adjacency and pathing belong to collaborators.
type Coordinate struct {
	Q int
	R int
}

// String returns the "(q,r)" form used in logs and records.
func (c Coordinate) String() string { return fmt.Sprintf("(%d,%d)", c.Q, c.R) }

// ArmyRef is the identity and display metadata of one participating army.
type ArmyRef struct {
	ID        uuid.UUID
	Name      string
	Commander profile.Commander
}

// Site bundles the terrain facts of the contested tile.
type Site struct {
	Location   Coordinate
	Terrain    terrain.Type
	Elevation  int
	Entrenched bool
	Building   terrain.Building
}

// ActiveCombat is one live 1v1 engagement, advanced tick by tick until it
// reaches Ended. Create with NewActiveCombat, drive with Tick, then archive
// via BuildRecord.
type ActiveCombat struct {
	ID   uuid.UUID
	Site Site
	Mods terrain.Modifiers

	AttackerArmies []ArmyRef
	DefenderArmies []ArmyRef

	attacker *CombatantState
	defender *CombatantState

	tuning Tuning

	phase        Phase
	elapsedTicks int
	phaseTicks   int
	winner       Winner

	sealed []PhaseRecord
	open   PhaseRecord
}

// NewActiveCombat creates an engagement over the given site. Terrain
// modifiers are resolved once at creation; the engagement starts in
// RangedExchange with zero elapsed time.
//
// Precondition: attacker and defender states must be non-nil; tuning must
// validate.
// Postcondition: Returns a combat ready for Tick, or a non-nil error.
func NewActiveCombat(site Site, attackerArmies []ArmyRef, attacker *CombatantState, defenderArmies []ArmyRef, defender *CombatantState, tuning Tuning) (*ActiveCombat, error) {
	if attacker == nil || defender == nil {
		return nil, fmt.Errorf("combat: attacker and defender state must be non-nil")
	}
	if err := tuning.Validate(); err != nil {
		return nil, err
	}
	return &ActiveCombat{
		ID:             uuid.New(),
		Site:           site,
		Mods:           terrain.Resolve(site.Terrain, site.Elevation, site.Entrenched, site.Building),
		AttackerArmies: attackerArmies,
		DefenderArmies: defenderArmies,
		attacker:       attacker,
		defender:       defender,
		tuning:         tuning,
		phase:          RangedExchange,
		open:           newPhaseRecord(RangedExchange),
	}, nil
}

// Phase returns the current phase.
func (ac *ActiveCombat) Phase() Phase { return ac.phase }

// IsEnded reports whether the engagement reached its terminal phase.
func (ac *ActiveCombat) IsEnded() bool { return ac.phase == Ended }

// ElapsedTicks returns the number of ticks advanced so far.
func (ac *ActiveCombat) ElapsedTicks() int { return ac.elapsedTicks }

// ElapsedSeconds returns the battle time elapsed so far.
func (ac *ActiveCombat) ElapsedSeconds() float64 {
	return float64(ac.elapsedTicks) * ac.tuning.TickSeconds
}

// Winner returns the engagement outcome.
//
// Precondition: The combat must have reached Ended; before that the value
// is WinnerUndecided.
func (ac *ActiveCombat) Winner() Winner { return ac.winner }

// Attacker returns the attacking side's combatant state (read-only use).
func (ac *ActiveCombat) Attacker() *CombatantState { return ac.attacker }

// Defender returns the defending side's combatant state (read-only use).
func (ac *ActiveCombat) Defender() *CombatantState { return ac.defender }

// jitter draws the per-side per-tick damage variance factor in
// [0.95, 1.05] from the run's seeded source.
func jitter(src rng.Source) float64 {
	return 0.95 + float64(src.Intn(101))/1000
}

// Tick advances the engagement by exactly one tick, applying damage and
// casualties and updating the current phase record. Calling Tick on an
// ended combat panics: the caller owns the loop and must stop at Ended.
//
// Precondition: src must be non-nil; ac.phase != Ended.
func (ac *ActiveCombat) Tick(src rng.Source) {
	if ac.phase == Ended {
		panic("combat: Tick called on ended combat")
	}

	ac.elapsedTicks++
	ac.phaseTicks++
	ac.open.DurationTicks++

	switch ac.phase {
	case RangedExchange:
		ac.tickExchange(src, true)
	case MeleeEngagement:
		ac.tickExchange(src, false)
	case Cleanup:
		ac.tickCleanup()
	}
}

// tickExchange runs one simultaneous damage exchange. During the ranged
// phase only ranged-capable units contribute. Both sides compute damage
// from the same pre-tick state, so the exchange is symmetric.
func (ac *ActiveCombat) tickExchange(src rng.Source, rangedOnly bool) {
	atkRaw, atkByType := ac.attacker.damageBudget(rangedOnly)
	defRaw, defByType := ac.defender.damageBudget(rangedOnly)

	// Attacker outgoing suffers the terrain attack penalty; damage into the
	// defender is reduced by the clamped terrain+entrenchment mitigation.
	// The defender fires from prepared ground: no penalty, no mitigation
	// for the attacker.
	atkOut := atkRaw * ac.tuning.DamagePerTickFraction * jitter(src) * (1 - ac.Mods.AttackPenalty)
	defOut := defRaw * ac.tuning.DamagePerTickFraction * jitter(src)

	intoDefender := atkOut * (1 - ac.Mods.Mitigation())
	intoAttacker := defOut

	defLosses := ac.defender.applyDamage(intoDefender)
	atkLosses := ac.attacker.applyDamage(intoAttacker)

	ac.attacker.creditDamage(intoDefender, atkRaw, atkByType)
	ac.defender.creditDamage(intoAttacker, defRaw, defByType)

	ac.open.AttackerDamageDealt += intoDefender
	ac.open.DefenderDamageDealt += intoAttacker
	mergeCasualties(ac.open.DefenderCasualtiesByType, defLosses)
	mergeCasualties(ac.open.AttackerCasualtiesByType, atkLosses)

	atkAlive := ac.attacker.TotalUnits() > 0
	defAlive := ac.defender.TotalUnits() > 0

	switch {
	case !atkAlive && !defAlive:
		ac.transitionTo(Ended)
	case !atkAlive || !defAlive:
		ac.transitionTo(Cleanup)
	case ac.elapsedTicks >= ac.tuning.StalemateCeilingTicks:
		// Stalemate ceiling: forced wind-down, resolves to a Draw.
		ac.transitionTo(Cleanup)
	case rangedOnly && ac.rangedExchangeDone():
		ac.transitionTo(MeleeEngagement)
	}
}

// rangedExchangeDone reports whether the ranged phase should hand over to
// melee: both sides out of ranged-capable units, or the fixed phase
// duration elapsed — whichever occurs first.
func (ac *ActiveCombat) rangedExchangeDone() bool {
	if ac.attacker.rangedCapableUnits() == 0 && ac.defender.rangedCapableUnits() == 0 {
		return true
	}
	return ac.phaseTicks >= ac.tuning.RangedPhaseMaxTicks
}

// tickCleanup advances the fixed wind-down. No further casualties are
// applied: the defeated side's rout is already reflected and must not be
// reduced further.
func (ac *ActiveCombat) tickCleanup() {
	if ac.phaseTicks >= ac.tuning.CleanupTicks {
		ac.transitionTo(Ended)
	}
}

// transitionTo seals the open phase record and moves the machine forward.
//
// Precondition: next > current phase (regression panics).
// Postcondition: On Ended, the winner is computed and fixed.
func (ac *ActiveCombat) transitionTo(next Phase) {
	if next <= ac.phase {
		panic(fmt.Sprintf("combat: phase regression %s -> %s", ac.phase, next))
	}

	ac.sealed = append(ac.sealed, ac.open.clone())
	ac.phase = next
	ac.phaseTicks = 0

	if next == Ended {
		ac.winner = ac.resolveWinner()
		ac.open = PhaseRecord{}
		return
	}
	ac.open = newPhaseRecord(next)
}

// resolveWinner computes the outcome from surviving unit counts.
func (ac *ActiveCombat) resolveWinner() Winner {
	atk := ac.attacker.TotalUnits()
	def := ac.defender.TotalUnits()
	switch {
	case def == 0 && atk > 0:
		return AttackerVictory
	case atk == 0 && def > 0:
		return DefenderVictory
	default:
		// Both destroyed, or both standing at the stalemate ceiling.
		return Draw
	}
}

// PhaseRecords returns the sealed phase history plus a snapshot of the
// phase currently in progress, for live-progress display.
func (ac *ActiveCombat) PhaseRecords() []PhaseRecord {
	out := make([]PhaseRecord, 0, len(ac.sealed)+1)
	for _, r := range ac.sealed {
		out = append(out, r.clone())
	}
	if ac.phase != Ended {
		out = append(out, ac.open.clone())
	}
	return out
}

// Snapshot is the incremental view consumed by live combat panels.
type Snapshot struct {
	Phase          Phase
	ElapsedSeconds float64
	AttackerUnits  int
	DefenderUnits  int
	AttackerHP     float64
	DefenderHP     float64
}

// Snapshot returns the current live-progress view of the engagement.
func (ac *ActiveCombat) Snapshot() Snapshot {
	return Snapshot{
		Phase:          ac.phase,
		ElapsedSeconds: ac.ElapsedSeconds(),
		AttackerUnits:  ac.attacker.TotalUnits(),
		DefenderUnits:  ac.defender.TotalUnits(),
		AttackerHP:     ac.attacker.CurrentTotalHP(),
		DefenderHP:     ac.defender.CurrentTotalHP(),
	}
}

func mergeCasualties(dst, src map[string]int) {
	for id, n := range src {
		dst[id] += n
	}
}
