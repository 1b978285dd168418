package scripting

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/crownfall/internal/sim/arena"
)

// Sweeper expands one base scenario into a family of variants through a Lua
// sweep script. The script defines a global
//
//	function generate(base) ... end
//
// receiving the base scenario as a table and returning an array of override
// tables. Each override is applied to a copy of the base; a key that is
// absent leaves the base value in place, and unit tables replace the whole
// map. Scripts run sandboxed with an instruction limit, so a sweep either
// produces its variants deterministically or fails.
type Sweeper struct {
	logger    *zap.Logger
	instLimit int
}

// NewSweeper creates a Sweeper. instLimit <= 0 selects the default
// instruction limit; a nil logger disables logging.
func NewSweeper(logger *zap.Logger, instLimit int) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{logger: logger, instLimit: instLimit}
}

// Variants runs the sweep script against the base scenario and returns the
// expanded variants in the order the script emitted them.
//
// Precondition: scriptPath must be a readable Lua file defining generate().
// Postcondition: Returns at least one scenario per override the script
// returned, or a non-nil error; the base scenario is never mutated.
func (s *Sweeper) Variants(scriptPath string, base arena.Scenario) ([]arena.Scenario, error) {
	L := NewSandboxedState(s.instLimit)
	defer L.Close()

	if err := L.DoFile(scriptPath); err != nil {
		return nil, fmt.Errorf("loading sweep script %q: %w", scriptPath, err)
	}

	fn, ok := L.GetGlobal("generate").(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("sweep script %q does not define generate()", scriptPath)
	}

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, scenarioToLua(L, base)); err != nil {
		return nil, fmt.Errorf("running generate() in %q: %w", scriptPath, err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	overrides, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("sweep script %q: generate() must return a table, got %s", scriptPath, ret.Type())
	}

	var variants []arena.Scenario
	n := overrides.Len()
	for i := 1; i <= n; i++ {
		entry := overrides.RawGetInt(i)
		tbl, ok := entry.(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("sweep script %q: variant %d is %s, want table", scriptPath, i, entry.Type())
		}
		variant := cloneScenario(base)
		if err := applyOverride(&variant, tbl); err != nil {
			return nil, fmt.Errorf("sweep script %q: variant %d: %w", scriptPath, i, err)
		}
		variants = append(variants, variant)
	}

	s.logger.Info("sweep expanded",
		zap.String("script", scriptPath),
		zap.String("base", base.Name),
		zap.Int("variants", len(variants)),
	)
	return variants, nil
}

// scenarioToLua renders the base scenario as a Lua table for generate().
func scenarioToLua(L *lua.LState, sc arena.Scenario) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("name", lua.LString(sc.Name))
	tbl.RawSetString("terrain", lua.LString(sc.Terrain))
	tbl.RawSetString("elevation", lua.LNumber(sc.Elevation))
	tbl.RawSetString("building", lua.LString(sc.Building))
	tbl.RawSetString("entrenched", lua.LBool(sc.Entrenched))

	stacking := L.NewTable()
	stacking.RawSetString("mode", lua.LString(sc.Stacking.Mode))
	stacking.RawSetString("count", lua.LNumber(sc.Stacking.Count))
	tbl.RawSetString("stacking", stacking)

	tbl.RawSetString("attacker", sideToLua(L, sc.Attacker))
	tbl.RawSetString("defender", sideToLua(L, sc.Defender))
	tbl.RawSetString("garrison", unitsToLua(L, sc.Garrison))
	return tbl
}

func sideToLua(L *lua.LState, side arena.SideSpec) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("units", unitsToLua(L, side.Units))
	cmd := L.NewTable()
	cmd.RawSetString("specialty", lua.LString(side.Commander.Specialty))
	cmd.RawSetString("level", lua.LNumber(side.Commander.Level))
	tbl.RawSetString("commander", cmd)
	return tbl
}

func unitsToLua(L *lua.LState, units map[string]int) *lua.LTable {
	tbl := L.NewTable()
	for id, n := range units {
		tbl.RawSetString(id, lua.LNumber(n))
	}
	return tbl
}

// applyOverride merges one override table into the variant.
func applyOverride(sc *arena.Scenario, tbl *lua.LTable) error {
	var err error
	tbl.ForEach(func(k, v lua.LValue) {
		if err != nil {
			return
		}
		key, ok := k.(lua.LString)
		if !ok {
			err = fmt.Errorf("override key %v is not a string", k)
			return
		}
		switch string(key) {
		case "name":
			sc.Name, err = asString(v, "name")
		case "terrain":
			sc.Terrain, err = asString(v, "terrain")
		case "elevation":
			sc.Elevation, err = asInt(v, "elevation")
		case "building":
			sc.Building, err = asString(v, "building")
		case "entrenched":
			b, ok := v.(lua.LBool)
			if !ok {
				err = fmt.Errorf("entrenched must be a boolean, got %s", v.Type())
				return
			}
			sc.Entrenched = bool(b)
		case "stacking":
			err = applyStacking(&sc.Stacking, v)
		case "attacker":
			err = applySide(&sc.Attacker, v)
		case "defender":
			err = applySide(&sc.Defender, v)
		case "garrison":
			sc.Garrison, err = luaToUnits(v, "garrison")
		default:
			err = fmt.Errorf("unknown override key %q", key)
		}
	})
	return err
}

func applyStacking(st *arena.StackingSpec, v lua.LValue) error {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return fmt.Errorf("stacking must be a table, got %s", v.Type())
	}
	var err error
	tbl.ForEach(func(k, val lua.LValue) {
		if err != nil {
			return
		}
		switch lua.LVAsString(k) {
		case "mode":
			st.Mode, err = asString(val, "stacking.mode")
		case "count":
			st.Count, err = asInt(val, "stacking.count")
		default:
			err = fmt.Errorf("unknown stacking key %q", lua.LVAsString(k))
		}
	})
	return err
}

func applySide(side *arena.SideSpec, v lua.LValue) error {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return fmt.Errorf("side must be a table, got %s", v.Type())
	}
	var err error
	tbl.ForEach(func(k, val lua.LValue) {
		if err != nil {
			return
		}
		switch lua.LVAsString(k) {
		case "units":
			side.Units, err = luaToUnits(val, "units")
		case "commander":
			err = applyCommander(&side.Commander, val)
		default:
			err = fmt.Errorf("unknown side key %q", lua.LVAsString(k))
		}
	})
	return err
}

func applyCommander(cmd *arena.CommanderSpec, v lua.LValue) error {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return fmt.Errorf("commander must be a table, got %s", v.Type())
	}
	var err error
	tbl.ForEach(func(k, val lua.LValue) {
		if err != nil {
			return
		}
		switch lua.LVAsString(k) {
		case "specialty":
			cmd.Specialty, err = asString(val, "commander.specialty")
		case "level":
			cmd.Level, err = asInt(val, "commander.level")
		default:
			err = fmt.Errorf("unknown commander key %q", lua.LVAsString(k))
		}
	})
	return err
}

func luaToUnits(v lua.LValue, field string) (map[string]int, error) {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%s must be a table, got %s", field, v.Type())
	}
	units := make(map[string]int)
	var err error
	tbl.ForEach(func(k, val lua.LValue) {
		if err != nil {
			return
		}
		id, ok := k.(lua.LString)
		if !ok {
			err = fmt.Errorf("%s key %v is not a string", field, k)
			return
		}
		var n int
		if n, err = asInt(val, field+"."+string(id)); err == nil {
			units[string(id)] = n
		}
	})
	if err != nil {
		return nil, err
	}
	return units, nil
}

func asString(v lua.LValue, field string) (string, error) {
	s, ok := v.(lua.LString)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %s", field, v.Type())
	}
	return string(s), nil
}

func asInt(v lua.LValue, field string) (int, error) {
	n, ok := v.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("%s must be a number, got %s", field, v.Type())
	}
	return int(n), nil
}

// cloneScenario deep-copies the maps so variants never alias the base.
func cloneScenario(sc arena.Scenario) arena.Scenario {
	out := sc
	out.Attacker.Units = copyCounts(sc.Attacker.Units)
	out.Defender.Units = copyCounts(sc.Defender.Units)
	out.Garrison = copyCounts(sc.Garrison)
	return out
}

func copyCounts(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
