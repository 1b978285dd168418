package arena

import (
	"sort"

	"github.com/cory-johannsen/crownfall/internal/sim/combat"
)

// BatchStatistics aggregates the outcomes of one Arena batch. All averages
// and rates are over completed runs only.
type BatchStatistics struct {
	Scenario  string
	Runs      int
	Completed int
	// Partial is set when the batch stopped before Runs completed, either
	// through context cancellation or a run failure.
	Partial bool

	AttackerWins int
	DefenderWins int
	Draws        int

	AttackerWinRate float64
	DefenderWinRate float64
	DrawRate        float64

	AvgAttackerCasualties float64
	AvgDefenderCasualties float64
	AvgDurationTicks      float64

	// Survival rates are surviving units / initial units per unit type,
	// averaged across completed runs.
	AttackerSurvival map[string]float64
	DefenderSurvival map[string]float64
}

// runResult is the per-run contribution folded into BatchStatistics.
type runResult struct {
	winner        combat.Winner
	durationTicks int
	atkCasualties int
	defCasualties int
	atkSurvivors  map[string]int
	defSurvivors  map[string]int
}

// foldResults reduces run results into batch statistics. Results are walked
// in run order, so the floating-point accumulation order is fixed and two
// identical batches produce bit-identical statistics.
func foldResults(scenario *Scenario, runs int, results []*runResult) *BatchStatistics {
	stats := &BatchStatistics{
		Scenario:         scenario.Name,
		Runs:             runs,
		AttackerSurvival: make(map[string]float64),
		DefenderSurvival: make(map[string]float64),
	}

	atkInitial := sideInitial(scenario.attackerGroups())
	defInitial := sideInitial(scenario.defenderGroups())

	var totalAtkLost, totalDefLost, totalTicks float64
	for _, r := range results {
		if r == nil {
			continue
		}
		stats.Completed++
		switch r.winner {
		case combat.AttackerVictory:
			stats.AttackerWins++
		case combat.DefenderVictory:
			stats.DefenderWins++
		case combat.Draw:
			stats.Draws++
		}
		totalAtkLost += float64(r.atkCasualties)
		totalDefLost += float64(r.defCasualties)
		totalTicks += float64(r.durationTicks)

		accumulateSurvival(stats.AttackerSurvival, atkInitial, r.atkSurvivors)
		accumulateSurvival(stats.DefenderSurvival, defInitial, r.defSurvivors)
	}

	stats.Partial = stats.Completed < runs
	if stats.Completed == 0 {
		return stats
	}

	n := float64(stats.Completed)
	stats.AttackerWinRate = float64(stats.AttackerWins) / n
	stats.DefenderWinRate = float64(stats.DefenderWins) / n
	stats.DrawRate = float64(stats.Draws) / n
	stats.AvgAttackerCasualties = totalAtkLost / n
	stats.AvgDefenderCasualties = totalDefLost / n
	stats.AvgDurationTicks = totalTicks / n
	for id := range stats.AttackerSurvival {
		stats.AttackerSurvival[id] /= n
	}
	for id := range stats.DefenderSurvival {
		stats.DefenderSurvival[id] /= n
	}
	return stats
}

// sideInitial sums the initial composition across one side's groups.
func sideInitial(groups []*combat.Group) map[string]int {
	out := make(map[string]int)
	for _, g := range groups {
		for id, n := range g.Composition {
			out[id] += n
		}
	}
	return out
}

// accumulateSurvival adds one run's per-type survival fraction. Unit IDs
// are walked in sorted order to keep float accumulation deterministic.
func accumulateSurvival(dst map[string]float64, initial map[string]int, survivors map[string]int) {
	ids := make([]string, 0, len(initial))
	for id := range initial {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		n := initial[id]
		if n <= 0 {
			continue
		}
		dst[id] += float64(survivors[id]) / float64(n)
	}
}
