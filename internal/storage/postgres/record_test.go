package postgres_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/crownfall/internal/sim/combat"
	"github.com/cory-johannsen/crownfall/internal/sim/profile"
	"github.com/cory-johannsen/crownfall/internal/sim/rng"
	"github.com/cory-johannsen/crownfall/internal/sim/terrain"
	"github.com/cory-johannsen/crownfall/internal/storage/postgres"
	"github.com/cory-johannsen/crownfall/internal/testutil"
)

func archiveRegistry(t *testing.T) *profile.Registry {
	t.Helper()
	reg := profile.NewRegistry()
	for _, spec := range []struct {
		id, name, cat  string
		hp, dmg, armor float64
	}{
		{"militia", "Militia", "infantry", 60, 8, 0},
		{"swordsman", "Swordsman", "infantry", 100, 12, 10},
		{"archer", "Archer", "ranged", 70, 15, 2},
	} {
		p := &profile.UnitCombatProfile{
			ID: spec.id, Name: spec.name, RawCategory: spec.cat,
			BaseHP: spec.hp, Damage: spec.dmg, Armor: spec.armor,
		}
		require.NoError(t, p.Validate())
		require.NoError(t, reg.Register(p))
	}
	return reg
}

// finishedRecord runs a real engagement to completion and builds its record.
func finishedRecord(t *testing.T, seed uint64) *combat.DetailedCombatRecord {
	t.Helper()
	reg := archiveRegistry(t)

	atk, err := combat.NewCombatantState(reg,
		map[string]int{"swordsman": 10, "archer": 5}, nil,
		profile.Commander{Name: "Aldric", Specialty: profile.Infantry, Level: 3})
	require.NoError(t, err)
	def, err := combat.NewCombatantState(reg,
		map[string]int{"militia": 12}, nil,
		profile.Commander{Specialty: profile.Infantry})
	require.NoError(t, err)

	site := combat.Site{
		Location:   combat.Coordinate{Q: 3, R: -1},
		Terrain:    terrain.Hills,
		Elevation:  1,
		Entrenched: true,
		Building:   terrain.Palisade,
	}
	ac, err := combat.NewActiveCombat(site, nil, atk, nil, def, combat.DefaultTuning())
	require.NoError(t, err)

	src := rng.NewSeeded(seed)
	for !ac.IsEnded() {
		ac.Tick(src)
	}
	return combat.BuildRecord(ac)
}

func TestRecordRepository_SaveAndGet(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewRecordRepository(pool)
	ctx := context.Background()

	rec := finishedRecord(t, 17)
	require.NoError(t, repo.Save(ctx, "hill-skirmish", rec))

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)

	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Location, got.Location)
	assert.Equal(t, terrain.Hills, got.Terrain)
	assert.Equal(t, 1, got.Elevation)
	assert.True(t, got.Entrenched)
	assert.Equal(t, terrain.Palisade, got.Building)
	assert.Equal(t, rec.Modifiers, got.Modifiers)
	assert.Equal(t, rec.Winner, got.Winner)
	assert.Equal(t, rec.DurationTicks, got.DurationTicks)
	assert.Equal(t, rec.Duration, got.Duration)

	assert.Equal(t, rec.Attacker.InitialUnits, got.Attacker.InitialUnits)
	assert.Equal(t, rec.Attacker.FinalUnits, got.Attacker.FinalUnits)
	assert.Equal(t, rec.Attacker.TotalCasualties, got.Attacker.TotalCasualties)
	assert.InDelta(t, rec.Defender.FinalHP, got.Defender.FinalHP, 1e-9)

	assert.Equal(t, rec.Phases, got.Phases)
	assert.Len(t, got.AttackerUnits, len(rec.AttackerUnits))
	assert.Len(t, got.DefenderUnits, len(rec.DefenderUnits))
	for i, u := range rec.AttackerUnits {
		assert.Equal(t, u.UnitType, got.AttackerUnits[i].UnitType)
		assert.Equal(t, u.Casualties, got.AttackerUnits[i].Casualties)
		assert.InDelta(t, u.DamageDealt, got.AttackerUnits[i].DamageDealt, 1e-9)
	}
}

func TestRecordRepository_GetMissing(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewRecordRepository(pool)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, postgres.ErrRecordNotFound)
}

func TestRecordRepository_ListRecent(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewRecordRepository(pool)
	ctx := context.Background()

	for i, seed := range []uint64{1, 2, 3} {
		rec := finishedRecord(t, seed)
		require.NoError(t, repo.Save(ctx, "batch", rec), "record %d", i)
	}

	summaries, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.Equal(t, "batch", s.Scenario)
		assert.NotEqual(t, combat.WinnerUndecided, s.Winner)
		assert.Greater(t, s.DurationTicks, 0)
		assert.False(t, s.CreatedAt.IsZero())
	}

	all, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecordRepository_DuplicateSaveFails(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewRecordRepository(pool)
	ctx := context.Background()

	rec := finishedRecord(t, 5)
	require.NoError(t, repo.Save(ctx, "dup", rec))
	assert.Error(t, repo.Save(ctx, "dup", rec))
}
