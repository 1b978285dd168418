package combat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/crownfall/internal/sim/combat"
	"github.com/cory-johannsen/crownfall/internal/sim/profile"
	"github.com/cory-johannsen/crownfall/internal/sim/rng"
	"github.com/cory-johannsen/crownfall/internal/sim/terrain"
)

// fastTuning keeps test battles short while preserving phase structure.
func fastTuning() combat.Tuning {
	return combat.Tuning{
		TickSeconds:           1.0,
		RangedPhaseMaxTicks:   3,
		CleanupTicks:          1,
		StalemateCeilingTicks: 500,
		DamagePerTickFraction: 0.25,
	}
}

func plainsSite() combat.Site {
	return combat.Site{
		Location: combat.Coordinate{Q: 4, R: -2},
		Terrain:  terrain.Plains,
	}
}

// fixedSource always returns val for any Intn call. val=50 makes the
// damage jitter exactly 1.0.
type fixedSource struct{ val int }

func (f *fixedSource) Intn(n int) int {
	if f.val >= n {
		return n - 1
	}
	return f.val
}

func newCombat(t testingT, atkComp, defComp map[string]int, site combat.Site, tuning combat.Tuning) *combat.ActiveCombat {
	t.Helper()
	reg := testRegistry(t)
	atk := mustState(t, reg, atkComp)
	def := mustState(t, reg, defComp)
	ac, err := combat.NewActiveCombat(site, nil, atk, nil, def, tuning)
	require.NoError(t, err)
	return ac
}

func runToEnd(ac *combat.ActiveCombat, src rng.Source) {
	for !ac.IsEnded() {
		ac.Tick(src)
	}
}

// --- phase progression ---

func TestPhases_StrictlyForward(t *testing.T) {
	ac := newCombat(t, map[string]int{"archer": 10, "swordsman": 10},
		map[string]int{"archer": 10, "swordsman": 10}, plainsSite(), fastTuning())

	src := rng.NewSeeded(3)
	last := ac.Phase()
	for !ac.IsEnded() {
		ac.Tick(src)
		assert.GreaterOrEqual(t, ac.Phase(), last)
		last = ac.Phase()
	}
	assert.Equal(t, combat.Ended, ac.Phase())
}

func TestRangedExchange_OnlyRangedUnitsDealDamage(t *testing.T) {
	// Melee-only armies: the ranged phase passes in a single bloodless tick.
	ac := newCombat(t, map[string]int{"swordsman": 10},
		map[string]int{"swordsman": 10}, plainsSite(), fastTuning())

	src := &fixedSource{val: 50}
	ac.Tick(src)
	assert.Equal(t, combat.MeleeEngagement, ac.Phase())
	assert.Equal(t, 10, ac.Attacker().TotalUnits())
	assert.Equal(t, 10, ac.Defender().TotalUnits())

	records := ac.PhaseRecords()
	require.NotEmpty(t, records)
	assert.Equal(t, combat.RangedExchange, records[0].Phase)
	assert.Zero(t, records[0].AttackerDamageDealt)
	assert.Zero(t, records[0].DefenderDamageDealt)
}

func TestRangedExchange_EndsAtTickLimit(t *testing.T) {
	// Both sides keep archers alive well past the limit; the fixed phase
	// duration must hand over to melee.
	tuning := fastTuning()
	ac := newCombat(t, map[string]int{"archer": 30},
		map[string]int{"archer": 30}, plainsSite(), tuning)

	src := &fixedSource{val: 50}
	for i := 0; i < tuning.RangedPhaseMaxTicks; i++ {
		assert.Equal(t, combat.RangedExchange, ac.Phase())
		ac.Tick(src)
	}
	assert.Equal(t, combat.MeleeEngagement, ac.Phase())
}

func TestMelee_DeterministicOutcome(t *testing.T) {
	// Fixed jitter makes the damage exchange exact: 10 swordsmen (12 dmg)
	// against 10 militia (8 dmg, 60 effective HP). The swordsmen win.
	ac := newCombat(t, map[string]int{"swordsman": 10},
		map[string]int{"militia": 10}, plainsSite(), fastTuning())

	src := &fixedSource{val: 50}
	runToEnd(ac, src)

	assert.Equal(t, combat.AttackerVictory, ac.Winner())
	assert.Equal(t, 0, ac.Defender().TotalUnits())
	assert.Greater(t, ac.Attacker().TotalUnits(), 0)
	assert.Equal(t, 10, ac.Defender().CasualtiesByType()["militia"])
}

func TestCleanup_FixedDurationNoFurtherCasualties(t *testing.T) {
	ac := newCombat(t, map[string]int{"knight": 30},
		map[string]int{"militia": 5}, plainsSite(), fastTuning())

	src := &fixedSource{val: 50}
	for ac.Phase() != combat.Cleanup {
		ac.Tick(src)
	}
	atkUnits, defUnits := ac.Attacker().TotalUnits(), ac.Defender().TotalUnits()
	for !ac.IsEnded() {
		ac.Tick(src)
	}
	assert.Equal(t, atkUnits, ac.Attacker().TotalUnits())
	assert.Equal(t, defUnits, ac.Defender().TotalUnits())
}

func TestStalemateCeiling_ResolvesToDraw(t *testing.T) {
	reg := profile.NewRegistry()
	pacifist := &profile.UnitCombatProfile{
		ID: "banner_guard", Name: "Banner Guard", RawCategory: "infantry",
		BaseHP: 100, Damage: 0, Armor: 0,
	}
	require.NoError(t, pacifist.Validate())
	require.NoError(t, reg.Register(pacifist))

	tuning := fastTuning()
	tuning.StalemateCeilingTicks = 20

	atk, err := combat.NewCombatantState(reg, map[string]int{"banner_guard": 5}, nil, profile.Commander{})
	require.NoError(t, err)
	def, err := combat.NewCombatantState(reg, map[string]int{"banner_guard": 5}, nil, profile.Commander{})
	require.NoError(t, err)

	ac, err := combat.NewActiveCombat(plainsSite(), nil, atk, nil, def, tuning)
	require.NoError(t, err)

	src := rng.NewSeeded(9)
	runToEnd(ac, src)

	assert.Equal(t, combat.Draw, ac.Winner())
	assert.Equal(t, 5, ac.Attacker().TotalUnits())
	assert.Equal(t, 5, ac.Defender().TotalUnits())
	assert.Equal(t, tuning.StalemateCeilingTicks+tuning.CleanupTicks, ac.ElapsedTicks())
}

func TestTick_PanicsAfterEnded(t *testing.T) {
	ac := newCombat(t, map[string]int{"knight": 30},
		map[string]int{"militia": 1}, plainsSite(), fastTuning())
	src := &fixedSource{val: 50}
	runToEnd(ac, src)
	assert.Panics(t, func() { ac.Tick(src) })
}

// --- terrain interaction ---

func TestEntrenchedCastle_ShieldsDefender(t *testing.T) {
	open := plainsSite()
	fortified := plainsSite()
	fortified.Entrenched = true
	fortified.Building = terrain.Castle

	mirror := map[string]int{"swordsman": 20}

	openCombat := newCombat(t, mirror, mirror, open, fastTuning())
	runToEnd(openCombat, &fixedSource{val: 50})

	fortCombat := newCombat(t, mirror, mirror, fortified, fastTuning())
	runToEnd(fortCombat, &fixedSource{val: 50})

	assert.Equal(t, combat.DefenderVictory, fortCombat.Winner())
	assert.Less(t,
		fortCombat.Defender().InitialUnitCount()-fortCombat.Defender().TotalUnits(),
		openCombat.Defender().InitialUnitCount()-openCombat.Defender().TotalUnits(),
	)
}

// --- invariants ---

func TestTick_Property_Monotonicity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		atkComp := map[string]int{
			"swordsman": rapid.IntRange(1, 20).Draw(rt, "atk_swordsman"),
			"archer":    rapid.IntRange(0, 10).Draw(rt, "atk_archer"),
		}
		defComp := map[string]int{
			"militia": rapid.IntRange(1, 20).Draw(rt, "def_militia"),
			"knight":  rapid.IntRange(0, 10).Draw(rt, "def_knight"),
		}
		ac := newCombat(rt, atkComp, defComp, plainsSite(), fastTuning())

		src := rng.NewSeeded(rapid.Uint64().Draw(rt, "seed"))
		prevAtkHP, prevDefHP := ac.Attacker().CurrentTotalHP(), ac.Defender().CurrentTotalHP()
		prevAtkUnits, prevDefUnits := ac.Attacker().TotalUnits(), ac.Defender().TotalUnits()

		for !ac.IsEnded() {
			ac.Tick(src)

			assert.LessOrEqual(rt, ac.Attacker().CurrentTotalHP(), prevAtkHP)
			assert.LessOrEqual(rt, ac.Defender().CurrentTotalHP(), prevDefHP)
			assert.LessOrEqual(rt, ac.Attacker().TotalUnits(), prevAtkUnits)
			assert.LessOrEqual(rt, ac.Defender().TotalUnits(), prevDefUnits)

			prevAtkHP, prevDefHP = ac.Attacker().CurrentTotalHP(), ac.Defender().CurrentTotalHP()
			prevAtkUnits, prevDefUnits = ac.Attacker().TotalUnits(), ac.Defender().TotalUnits()
		}

		if ac.Winner() == combat.AttackerVictory {
			assert.Zero(rt, ac.Defender().TotalUnits())
			assert.Greater(rt, ac.Attacker().TotalUnits(), 0)
		}
	})
}

func TestMirrorMatch_SymmetricCasualties(t *testing.T) {
	// Equal armies on open plains: a draw or a narrow-margin victory, with
	// casualties on both sides inside a tight symmetric band.
	mirror := map[string]int{"swordsman": 10}
	ac := newCombat(t, mirror, mirror, plainsSite(), fastTuning())
	runToEnd(ac, rng.NewSeeded(42))

	atkLost := ac.Attacker().InitialUnitCount() - ac.Attacker().TotalUnits()
	defLost := ac.Defender().InitialUnitCount() - ac.Defender().TotalUnits()
	assert.InDelta(t, atkLost, defLost, 2.0)
	assert.GreaterOrEqual(t, atkLost, 8)
	assert.GreaterOrEqual(t, defLost, 8)
}

func TestSnapshot_TracksLiveState(t *testing.T) {
	ac := newCombat(t, map[string]int{"swordsman": 10},
		map[string]int{"militia": 10}, plainsSite(), fastTuning())

	snap := ac.Snapshot()
	assert.Equal(t, combat.RangedExchange, snap.Phase)
	assert.Equal(t, 10, snap.AttackerUnits)
	assert.Equal(t, 0.0, snap.ElapsedSeconds)

	src := &fixedSource{val: 50}
	runToEnd(ac, src)

	snap = ac.Snapshot()
	assert.Equal(t, combat.Ended, snap.Phase)
	assert.Zero(t, snap.DefenderUnits)
	assert.Zero(t, snap.DefenderHP)
}
