package combat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/crownfall/internal/sim/combat"
	"github.com/cory-johannsen/crownfall/internal/sim/profile"
	"github.com/cory-johannsen/crownfall/internal/sim/rng"
	"github.com/cory-johannsen/crownfall/internal/sim/terrain"
)

func TestBuildRecord_PanicsBeforeEnded(t *testing.T) {
	ac := newCombat(t, map[string]int{"swordsman": 5},
		map[string]int{"militia": 5}, plainsSite(), fastTuning())
	assert.Panics(t, func() { combat.BuildRecord(ac) })
}

func TestBuildRecord_Idempotent(t *testing.T) {
	ac := newCombat(t, map[string]int{"swordsman": 10, "archer": 5},
		map[string]int{"militia": 8, "knight": 3}, plainsSite(), fastTuning())
	runToEnd(ac, rng.NewSeeded(7))

	first := combat.BuildRecord(ac)
	second := combat.BuildRecord(ac)
	assert.Equal(t, first, second)
}

func TestBuildRecord_CarriesTerrainFacts(t *testing.T) {
	site := combat.Site{
		Location:   combat.Coordinate{Q: 1, R: 2},
		Terrain:    terrain.Hills,
		Elevation:  2,
		Entrenched: true,
		Building:   terrain.Fort,
	}
	ac := newCombat(t, map[string]int{"knight": 20},
		map[string]int{"militia": 5}, site, fastTuning())
	runToEnd(ac, rng.NewSeeded(11))

	rec := combat.BuildRecord(ac)
	assert.Equal(t, terrain.Hills, rec.Terrain)
	assert.Equal(t, 2, rec.Elevation)
	assert.True(t, rec.Entrenched)
	assert.Equal(t, terrain.Fort, rec.Building)
	assert.Equal(t, terrain.Resolve(terrain.Hills, 2, true, terrain.Fort), rec.Modifiers)
	assert.Equal(t, combat.Coordinate{Q: 1, R: 2}, rec.Location)
}

func TestBuildRecord_BreakdownOrderedByCategoryThenDeclaration(t *testing.T) {
	// Registry declaration order: militia, swordsman, archer, knight, catapult.
	ac := newCombat(t,
		map[string]int{"catapult": 2, "militia": 5, "archer": 5, "swordsman": 5, "knight": 5},
		map[string]int{"swordsman": 15},
		plainsSite(), fastTuning())
	runToEnd(ac, rng.NewSeeded(5))

	rec := combat.BuildRecord(ac)
	var order []string
	for _, u := range rec.AttackerUnits {
		order = append(order, u.UnitType)
	}
	assert.Equal(t, []string{"militia", "swordsman", "archer", "knight", "catapult"}, order)
}

func TestBuildRecord_ConservationAcrossPhases(t *testing.T) {
	ac := newCombat(t, map[string]int{"archer": 10, "swordsman": 10},
		map[string]int{"archer": 10, "militia": 10}, plainsSite(), fastTuning())
	runToEnd(ac, rng.NewSeeded(23))

	rec := combat.BuildRecord(ac)

	// Sum per-phase casualties and compare against the breakdown totals.
	atkByType := make(map[string]int)
	defByType := make(map[string]int)
	for _, ph := range rec.Phases {
		for id, n := range ph.AttackerCasualtiesByType {
			atkByType[id] += n
		}
		for id, n := range ph.DefenderCasualtiesByType {
			defByType[id] += n
		}
	}
	for _, u := range rec.AttackerUnits {
		assert.Equal(t, u.Casualties, atkByType[u.UnitType], "attacker %s", u.UnitType)
		assert.Equal(t, u.InitialCount-u.FinalCount, u.Casualties)
	}
	for _, u := range rec.DefenderUnits {
		assert.Equal(t, u.Casualties, defByType[u.UnitType], "defender %s", u.UnitType)
	}

	assert.Equal(t, rec.Attacker.InitialUnits-rec.Attacker.FinalUnits, rec.Attacker.TotalCasualties)
	assert.Equal(t, rec.Defender.InitialUnits-rec.Defender.FinalUnits, rec.Defender.TotalCasualties)
}

func TestBuildRecord_ArmyMetadata(t *testing.T) {
	reg := testRegistry(t)
	atkState := mustState(t, reg, map[string]int{"knight": 10})
	defState := mustState(t, reg, map[string]int{"militia": 10})

	atkRef := combat.ArmyRef{Name: "First Lance", Commander: profile.Commander{Name: "Aldric", Specialty: profile.Cavalry, Level: 4}}
	defRef := combat.ArmyRef{Name: "Town Watch", Commander: profile.Commander{Name: "Berta", Specialty: profile.Infantry, Level: 2}}

	ac, err := combat.NewActiveCombat(plainsSite(),
		[]combat.ArmyRef{atkRef}, atkState,
		[]combat.ArmyRef{defRef}, defState,
		fastTuning())
	require.NoError(t, err)
	runToEnd(ac, rng.NewSeeded(2))

	rec := combat.BuildRecord(ac)
	require.Len(t, rec.Attacker.Armies, 1)
	assert.Equal(t, "First Lance", rec.Attacker.Armies[0].Name)
	assert.Equal(t, "Aldric", rec.Attacker.Armies[0].Commander.Name)
	assert.Equal(t, "Berta", rec.Defender.Armies[0].Commander.Name)
	assert.NotEmpty(t, rec.Duration)
}

// --- duration formatting ---

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ticks       int
		tickSeconds float64
		want        string
	}{
		{0, 1.0, "0s"},
		{45, 1.0, "45s"},
		{60, 1.0, "1m 00s"},
		{222, 1.0, "3m 42s"},
		{90, 2.0, "3m 00s"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, combat.FormatDuration(tc.ticks, tc.tickSeconds), "ticks=%d", tc.ticks)
	}
}
