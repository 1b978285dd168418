package scripting_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/crownfall/internal/scripting"
	"github.com/cory-johannsen/crownfall/internal/sim/arena"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sweep.lua")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func baseScenario() arena.Scenario {
	return arena.Scenario{
		Name:     "baseline",
		Terrain:  "plains",
		Attacker: arena.SideSpec{Units: map[string]int{"swordsman": 10}},
		Defender: arena.SideSpec{Units: map[string]int{"swordsman": 10}},
	}
}

func TestSweeper_Variants(t *testing.T) {
	path := writeScript(t, `
function generate(base)
	local variants = {}
	for _, terrain in ipairs({"plains", "forest", "hills"}) do
		table.insert(variants, {
			name = base.name .. "-" .. terrain,
			terrain = terrain,
		})
	end
	table.insert(variants, {
		name = base.name .. "-fortified",
		entrenched = true,
		building = "castle",
	})
	return variants
end
`)

	base := baseScenario()
	variants, err := scripting.NewSweeper(nil, 0).Variants(path, base)
	require.NoError(t, err)
	require.Len(t, variants, 4)

	assert.Equal(t, "baseline-plains", variants[0].Name)
	assert.Equal(t, "forest", variants[1].Terrain)
	assert.Equal(t, "hills", variants[2].Terrain)
	assert.True(t, variants[3].Entrenched)
	assert.Equal(t, "castle", variants[3].Building)

	// Unspecified fields carry over from the base.
	for _, v := range variants {
		assert.Equal(t, map[string]int{"swordsman": 10}, v.Attacker.Units)
	}

	// The base is never mutated.
	assert.Equal(t, "baseline", base.Name)
	assert.False(t, base.Entrenched)
}

func TestSweeper_UnitOverridesReplaceWholeMap(t *testing.T) {
	path := writeScript(t, `
function generate(base)
	return {
		{ attacker = { units = { knight = 5 } } },
		{ defender = { commander = { level = 4 } } },
	}
end
`)

	variants, err := scripting.NewSweeper(nil, 0).Variants(path, baseScenario())
	require.NoError(t, err)
	require.Len(t, variants, 2)

	assert.Equal(t, map[string]int{"knight": 5}, variants[0].Attacker.Units)
	assert.Equal(t, map[string]int{"swordsman": 10}, variants[0].Defender.Units)
	assert.Equal(t, 4, variants[1].Defender.Commander.Level)
	assert.Equal(t, map[string]int{"swordsman": 10}, variants[1].Attacker.Units)
}

func TestSweeper_ReadsBaseValues(t *testing.T) {
	path := writeScript(t, `
function generate(base)
	local n = base.attacker.units.swordsman
	return {
		{ attacker = { units = { swordsman = n * 2 } } },
	}
end
`)

	variants, err := scripting.NewSweeper(nil, 0).Variants(path, baseScenario())
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, 20, variants[0].Attacker.Units["swordsman"])
}

func TestSweeper_Deterministic(t *testing.T) {
	path := writeScript(t, `
function generate(base)
	local out = {}
	for level = 0, 5 do
		table.insert(out, {
			name = base.name .. "-cmd" .. level,
			attacker = { commander = { specialty = "infantry", level = level } },
		})
	end
	return out
end
`)

	sw := scripting.NewSweeper(nil, 0)
	first, err := sw.Variants(path, baseScenario())
	require.NoError(t, err)
	second, err := sw.Variants(path, baseScenario())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSweeper_Errors(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"no generate", `local x = 1`},
		{"returns non-table", `function generate(base) return 42 end`},
		{"non-table variant", `function generate(base) return {1, 2} end`},
		{"unknown key", `function generate(base) return {{ moons = 2 }} end`},
		{"bad type", `function generate(base) return {{ elevation = "high" }} end`},
		{"runtime error", `function generate(base) error("boom") end`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeScript(t, tc.script)
			_, err := scripting.NewSweeper(nil, 0).Variants(path, baseScenario())
			assert.Error(t, err)
		})
	}
}

func TestSweeper_InstructionLimit(t *testing.T) {
	path := writeScript(t, `
function generate(base)
	while true do end
end
`)
	_, err := scripting.NewSweeper(nil, 100).Variants(path, baseScenario())
	assert.Error(t, err)
}
