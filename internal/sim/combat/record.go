package combat

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/cory-johannsen/crownfall/internal/sim/profile"
	"github.com/cory-johannsen/crownfall/internal/sim/terrain"
)

// PhaseRecord is the per-phase snapshot appended to a combat's history.
// Damage fields record damage inflicted BY the named side after all
// modifiers. Sealed records are never mutated again.
type PhaseRecord struct {
	Phase                    Phase
	DurationTicks            int
	AttackerDamageDealt      float64
	DefenderDamageDealt      float64
	AttackerCasualtiesByType map[string]int
	DefenderCasualtiesByType map[string]int
}

func newPhaseRecord(p Phase) PhaseRecord {
	return PhaseRecord{
		Phase:                    p,
		AttackerCasualtiesByType: make(map[string]int),
		DefenderCasualtiesByType: make(map[string]int),
	}
}

// clone returns a deep copy so sealed history cannot alias live maps.
func (r PhaseRecord) clone() PhaseRecord {
	out := r
	out.AttackerCasualtiesByType = make(map[string]int, len(r.AttackerCasualtiesByType))
	for id, n := range r.AttackerCasualtiesByType {
		out.AttackerCasualtiesByType[id] = n
	}
	out.DefenderCasualtiesByType = make(map[string]int, len(r.DefenderCasualtiesByType))
	for id, n := range r.DefenderCasualtiesByType {
		out.DefenderCasualtiesByType[id] = n
	}
	return out
}

// UnitBreakdown is the per-unit-type result line of one side.
type UnitBreakdown struct {
	UnitType     string
	Name         string
	Category     profile.Category
	InitialCount int
	FinalCount   int
	Casualties   int
	DamageDealt  float64
}

// ParticipantSummary aggregates one side of a finished engagement.
type ParticipantSummary struct {
	Armies          []ArmyRef
	InitialUnits    int
	FinalUnits      int
	InitialHP       float64
	FinalHP         float64
	TotalCasualties int
}

// DetailedCombatRecord is the terminal, immutable report of one engagement,
// consumable by UI panels or folded into Arena batch statistics. Created
// exactly once when a combat reaches Ended; never mutated afterward.
type DetailedCombatRecord struct {
	ID         uuid.UUID
	Location   Coordinate
	Terrain    terrain.Type
	Elevation  int
	Entrenched bool
	Building   terrain.Building
	Modifiers  terrain.Modifiers

	Attacker ParticipantSummary
	Defender ParticipantSummary

	AttackerUnits []UnitBreakdown
	DefenderUnits []UnitBreakdown

	Phases []PhaseRecord

	Winner        Winner
	DurationTicks int
	Duration      string
}

// BuildRecord assembles the immutable record for a terminal combat. The
// transformation is pure: unit breakdowns are ordered by category then
// registry declaration order, so two builds from the same terminal state
// are identical.
//
// Precondition: ac must have reached Ended (panics otherwise — emitting a
// record for a live combat is a programming error).
func BuildRecord(ac *ActiveCombat) *DetailedCombatRecord {
	if ac.phase != Ended {
		panic("combat: BuildRecord called before combat ended")
	}

	rec := &DetailedCombatRecord{
		ID:            ac.ID,
		Location:      ac.Site.Location,
		Terrain:       ac.Site.Terrain,
		Elevation:     ac.Site.Elevation,
		Entrenched:    ac.Site.Entrenched,
		Building:      ac.Site.Building,
		Modifiers:     ac.Mods,
		Attacker:      summarize(ac.AttackerArmies, ac.attacker),
		Defender:      summarize(ac.DefenderArmies, ac.defender),
		AttackerUnits: breakdown(ac.attacker),
		DefenderUnits: breakdown(ac.defender),
		Winner:        ac.winner,
		DurationTicks: ac.elapsedTicks,
		Duration:      FormatDuration(ac.elapsedTicks, ac.tuning.TickSeconds),
	}

	rec.Phases = make([]PhaseRecord, 0, len(ac.sealed))
	for _, r := range ac.sealed {
		rec.Phases = append(rec.Phases, r.clone())
	}
	return rec
}

func summarize(armies []ArmyRef, s *CombatantState) ParticipantSummary {
	refs := make([]ArmyRef, len(armies))
	copy(refs, armies)
	return ParticipantSummary{
		Armies:          refs,
		InitialUnits:    s.InitialUnitCount(),
		FinalUnits:      s.TotalUnits(),
		InitialHP:       s.InitialTotalHP(),
		FinalHP:         s.CurrentTotalHP(),
		TotalCasualties: s.InitialUnitCount() - s.TotalUnits(),
	}
}

func breakdown(s *CombatantState) []UnitBreakdown {
	dealt := s.damageDealtByType()
	out := make([]UnitBreakdown, 0, len(s.blocks))
	for _, b := range s.blocks {
		out = append(out, UnitBreakdown{
			UnitType:     b.id,
			Name:         b.name,
			Category:     b.category,
			InitialCount: b.initial,
			FinalCount:   b.current,
			Casualties:   b.initial - b.current,
			DamageDealt:  dealt[b.id],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return s.registry.DeclarationIndex(out[i].UnitType) < s.registry.DeclarationIndex(out[j].UnitType)
	})
	return out
}

// FormatDuration renders a tick count as battle time, e.g. "3m 42s" or
// "45s" under a minute.
func FormatDuration(ticks int, tickSeconds float64) string {
	total := int(float64(ticks) * tickSeconds)
	if total < 60 {
		return fmt.Sprintf("%ds", total)
	}
	return fmt.Sprintf("%dm %02ds", total/60, total%60)
}
