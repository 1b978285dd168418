package combat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/cory-johannsen/crownfall/internal/sim/profile"
	"github.com/cory-johannsen/crownfall/internal/sim/rng"
)

// Group is one army (or garrison) participating in a stack combat. Its
// Composition is updated between tiers as survivors feed forward.
type Group struct {
	ID          uuid.UUID
	Name        string
	Commander   profile.Commander
	Composition map[string]int
	Bonuses     profile.BonusSource
	// Arrival orders tie-breaks within a tier; earlier arrivals engage first.
	Arrival int
}

// aliveUnits returns the group's remaining unit count.
func (g *Group) aliveUnits() int {
	total := 0
	for _, n := range g.Composition {
		total += n
	}
	return total
}

// Pairing binds one attacker group against one defender group through a
// dedicated ActiveCombat. A group belongs to at most one active pairing.
type Pairing struct {
	Attacker *Group
	Defender *Group
	Combat   *ActiveCombat
}

// StackCombat resolves multiple armies occupying one location via tiered
// pairings: strongest groups engage first, survivors roll into the next
// tier, and the stack ends when one side has no groups remaining or a
// tier stalemates with both groups of a pairing still standing.
type StackCombat struct {
	Site Site

	registry *profile.Registry
	tuning   Tuning

	attackers []*Group
	defenders []*Group

	tier         int
	pairings     []*Pairing
	elapsedTicks int

	records []*DetailedCombatRecord
	winner  Winner
	ended   bool
}

// NewStackCombat creates a stack resolution over the given site. The first
// tier's pairings are formed immediately; a stack that starts with an empty
// side resolves on the first Tick.
//
// Precondition: reg must contain every unit type in every group; tuning
// must validate.
// Postcondition: Returns a stack ready for Tick, or a non-nil error.
func NewStackCombat(site Site, reg *profile.Registry, attackers, defenders []*Group, tuning Tuning) (*StackCombat, error) {
	if err := tuning.Validate(); err != nil {
		return nil, err
	}
	for _, g := range append(append([]*Group{}, attackers...), defenders...) {
		for id, n := range g.Composition {
			if n < 0 {
				return nil, fmt.Errorf("stack: group %q unit %q has negative count %d", g.Name, id, n)
			}
			if !reg.Has(id) {
				return nil, fmt.Errorf("stack: group %q: %w: %q", g.Name, profile.ErrUnknownUnit, id)
			}
		}
	}

	sc := &StackCombat{
		Site:      site,
		registry:  reg,
		tuning:    tuning,
		attackers: pruneDefeated(attackers),
		defenders: pruneDefeated(defenders),
	}
	if err := sc.formTier(); err != nil {
		return nil, err
	}
	return sc, nil
}

// IsEnded reports whether the stack has fully resolved.
func (sc *StackCombat) IsEnded() bool { return sc.ended }

// Winner returns the stack outcome, valid once IsEnded.
func (sc *StackCombat) Winner() Winner { return sc.winner }

// CurrentTier returns the tier currently being resolved. Tiers only
// increase.
func (sc *StackCombat) CurrentTier() int { return sc.tier }

// ElapsedTicks returns the ticks advanced across the whole stack.
func (sc *StackCombat) ElapsedTicks() int { return sc.elapsedTicks }

// Records returns the combat records emitted by finished pairings, in the
// order their combats ended.
func (sc *StackCombat) Records() []*DetailedCombatRecord {
	out := make([]*DetailedCombatRecord, len(sc.records))
	copy(out, sc.records)
	return out
}

// ActivePairings returns a snapshot of the current tier's pairings for
// live-progress display.
func (sc *StackCombat) ActivePairings() []*Pairing {
	out := make([]*Pairing, len(sc.pairings))
	copy(out, sc.pairings)
	return out
}

// Tick advances every active pairing by one tick. Pairings within a tier
// are logically simultaneous; iterating them once per tick keeps the
// resolution deterministic. The tier advances only when every pairing in
// it has reached Ended.
//
// Precondition: src must be non-nil; the stack must not be ended.
func (sc *StackCombat) Tick(src rng.Source) {
	if sc.ended {
		panic("combat: Tick called on ended stack")
	}
	sc.elapsedTicks++

	allEnded := true
	for _, p := range sc.pairings {
		if !p.Combat.IsEnded() {
			p.Combat.Tick(src)
		}
		if !p.Combat.IsEnded() {
			allEnded = false
		}
	}
	if !allEnded {
		return
	}

	// Tier complete: archive records, feed survivors forward, drop the
	// defeated, and form the next tier.
	stalemate := false
	for _, p := range sc.pairings {
		sc.records = append(sc.records, BuildRecord(p.Combat))
		p.Attacker.Composition = p.Combat.Attacker().Composition()
		p.Defender.Composition = p.Combat.Defender().Composition()
		if p.Combat.Winner() == Draw && p.Attacker.aliveUnits() > 0 && p.Defender.aliveUnits() > 0 {
			stalemate = true
		}
	}
	sc.attackers = pruneDefeated(sc.attackers)
	sc.defenders = pruneDefeated(sc.defenders)

	// A drawn pairing with both groups still standing would re-form
	// identically in the next tier; the whole stack is stalemated.
	if stalemate {
		sc.pairings = nil
		sc.ended = true
		sc.winner = Draw
		return
	}

	if err := sc.formTier(); err != nil {
		// formTier only fails on state the constructor already validated.
		panic("combat: reforming stack tier: " + err.Error())
	}
}

// formTier resolves the stack if a side is exhausted, otherwise sorts both
// sides strongest-first and pairs them index by index for the next tier.
// Unpaired groups wait for a later tier.
func (sc *StackCombat) formTier() error {
	sc.pairings = nil

	switch {
	case len(sc.attackers) == 0 && len(sc.defenders) == 0:
		sc.ended = true
		sc.winner = Draw
		return nil
	case len(sc.defenders) == 0:
		sc.ended = true
		sc.winner = AttackerVictory
		return nil
	case len(sc.attackers) == 0:
		sc.ended = true
		sc.winner = DefenderVictory
		return nil
	}

	sc.tier++
	sortByStrength(sc.attackers, sc.registry)
	sortByStrength(sc.defenders, sc.registry)

	n := len(sc.attackers)
	if len(sc.defenders) < n {
		n = len(sc.defenders)
	}

	for i := 0; i < n; i++ {
		atk, def := sc.attackers[i], sc.defenders[i]

		atkState, err := NewCombatantState(sc.registry, atk.Composition, atk.Bonuses, atk.Commander)
		if err != nil {
			return err
		}
		defState, err := NewCombatantState(sc.registry, def.Composition, def.Bonuses, def.Commander)
		if err != nil {
			return err
		}

		ac, err := NewActiveCombat(sc.Site,
			[]ArmyRef{{ID: atk.ID, Name: atk.Name, Commander: atk.Commander}}, atkState,
			[]ArmyRef{{ID: def.ID, Name: def.Name, Commander: def.Commander}}, defState,
			sc.tuning,
		)
		if err != nil {
			return err
		}
		sc.pairings = append(sc.pairings, &Pairing{Attacker: atk, Defender: def, Combat: ac})
	}
	return nil
}

// groupStrength is the group's total effective HP, the tiering metric.
func groupStrength(g *Group, reg *profile.Registry) float64 {
	bonuses := g.Bonuses
	if bonuses == nil {
		bonuses = profile.NoBonuses{}
	}
	var total float64
	for id, n := range g.Composition {
		if n <= 0 {
			continue
		}
		p, err := reg.Get(id)
		if err != nil {
			continue
		}
		total += float64(n) * p.EffectiveHP(bonuses.BonusFor(p))
	}
	return total
}

// sortByStrength orders groups strongest first; ties break by arrival
// order, then lexicographic ID so the ordering is fully deterministic.
func sortByStrength(groups []*Group, reg *profile.Registry) {
	sort.SliceStable(groups, func(i, j int) bool {
		si, sj := groupStrength(groups[i], reg), groupStrength(groups[j], reg)
		if si != sj {
			return si > sj
		}
		if groups[i].Arrival != groups[j].Arrival {
			return groups[i].Arrival < groups[j].Arrival
		}
		return strings.Compare(groups[i].ID.String(), groups[j].ID.String()) < 0
	})
}

func pruneDefeated(groups []*Group) []*Group {
	out := make([]*Group, 0, len(groups))
	for _, g := range groups {
		if g.aliveUnits() > 0 {
			out = append(out, g)
		}
	}
	return out
}
