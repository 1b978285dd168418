// Package arena drives headless batch simulations of the combat engine:
// a declarative scenario is expanded into N independent, seeded runs whose
// outcomes are folded into aggregate balance statistics.
package arena

import (
	"fmt"
	"os"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/crownfall/internal/sim/combat"
	"github.com/cory-johannsen/crownfall/internal/sim/profile"
	"github.com/cory-johannsen/crownfall/internal/sim/terrain"
)

// Stacking modes. Single fields one attacker army against the defense;
// Stacked splits the attacker across Count co-located groups engaging
// simultaneously; Adjacent staggers the same split so each group arrives a
// wave later than the previous one.
const (
	StackingSingle   = "single"
	StackingStacked  = "stacked"
	StackingAdjacent = "adjacent"
)

// ScenarioError reports an invalid scenario field before any simulation
// runs. Scenario problems are caller input errors, never panics.
type ScenarioError struct {
	Field  string
	Reason string
}

func (e *ScenarioError) Error() string {
	return fmt.Sprintf("scenario: %s: %s", e.Field, e.Reason)
}

// CommanderSpec selects the commander bonus applied to one side.
type CommanderSpec struct {
	Specialty string `yaml:"specialty"`
	Level     int    `yaml:"level"`
}

// SideSpec is one side's army: unit counts by profile ID plus commander.
type SideSpec struct {
	Units     map[string]int `yaml:"units"`
	Commander CommanderSpec  `yaml:"commander"`
}

// StackingSpec selects how the attacker's army is split into groups.
type StackingSpec struct {
	Mode  string `yaml:"mode"`
	Count int    `yaml:"count"`
}

// Scenario is the declarative input of one Arena batch. It is a pure value:
// two batches built from equal scenarios and equal seeds are identical.
type Scenario struct {
	Name       string         `yaml:"name"`
	Terrain    string         `yaml:"terrain"`
	Elevation  int            `yaml:"elevation"`
	Building   string         `yaml:"building"`
	Entrenched bool           `yaml:"entrenched"`
	Stacking   StackingSpec   `yaml:"stacking"`
	Attacker   SideSpec       `yaml:"attacker"`
	Defender   SideSpec       `yaml:"defender"`
	// Garrison is an optional second defending group holding the building.
	Garrison map[string]int `yaml:"garrison"`
}

// LoadScenario reads and validates a scenario YAML file.
//
// Precondition: path must be a readable YAML file; reg must hold every unit
// type the scenario references.
// Postcondition: Returns a validated scenario or a non-nil error.
func LoadScenario(path string, reg *profile.Registry) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %q: %w", path, err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario %q: %w", path, err)
	}
	if err := s.Validate(reg); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", path, err)
	}
	return &s, nil
}

// Validate fails fast on invalid input so a bad scenario never reaches the
// simulation loop and never silently resolves to a Draw.
//
// Postcondition: Returns nil, or a *ScenarioError naming the offending field.
func (s *Scenario) Validate(reg *profile.Registry) error {
	if s.Name == "" {
		return &ScenarioError{Field: "name", Reason: "must not be empty"}
	}
	if _, err := terrain.ParseType(s.Terrain); err != nil {
		return &ScenarioError{Field: "terrain", Reason: err.Error()}
	}
	if _, err := terrain.ParseBuilding(s.Building); err != nil {
		return &ScenarioError{Field: "building", Reason: err.Error()}
	}
	if s.Elevation < 0 {
		return &ScenarioError{Field: "elevation", Reason: "must not be negative"}
	}

	switch s.Stacking.Mode {
	case "", StackingSingle:
	case StackingStacked, StackingAdjacent:
		if s.Stacking.Count < 1 {
			return &ScenarioError{Field: "stacking.count", Reason: "must be >= 1"}
		}
	default:
		return &ScenarioError{
			Field:  "stacking.mode",
			Reason: fmt.Sprintf("unknown mode %q", s.Stacking.Mode),
		}
	}

	if err := validateUnits("attacker.units", s.Attacker.Units, reg); err != nil {
		return err
	}
	if err := validateUnits("defender.units", s.Defender.Units, reg); err != nil {
		return err
	}
	if err := validateUnits("garrison", s.Garrison, reg); err != nil {
		return err
	}
	if err := validateCommander("attacker.commander", s.Attacker.Commander); err != nil {
		return err
	}
	if err := validateCommander("defender.commander", s.Defender.Commander); err != nil {
		return err
	}

	if totalUnits(s.Attacker.Units) == 0 {
		return &ScenarioError{Field: "attacker.units", Reason: "attacker has no units"}
	}
	if totalUnits(s.Defender.Units)+totalUnits(s.Garrison) == 0 {
		return &ScenarioError{Field: "defender.units", Reason: "defender has no units"}
	}
	return nil
}

func validateUnits(field string, units map[string]int, reg *profile.Registry) error {
	for id, n := range units {
		if n < 0 {
			return &ScenarioError{
				Field:  field,
				Reason: fmt.Sprintf("unit %q has negative count %d", id, n),
			}
		}
		if !reg.Has(id) {
			return &ScenarioError{
				Field:  field,
				Reason: fmt.Sprintf("unknown unit type %q", id),
			}
		}
	}
	return nil
}

func validateCommander(field string, c CommanderSpec) error {
	if c.Level < 0 {
		return &ScenarioError{Field: field + ".level", Reason: "must not be negative"}
	}
	if c.Specialty != "" {
		if _, err := profile.ParseCategory(c.Specialty); err != nil {
			return &ScenarioError{Field: field + ".specialty", Reason: err.Error()}
		}
	}
	return nil
}

func totalUnits(units map[string]int) int {
	total := 0
	for _, n := range units {
		total += n
	}
	return total
}

// site resolves the scenario's terrain facts.
func (s *Scenario) site() combat.Site {
	t, _ := terrain.ParseType(s.Terrain)
	b, _ := terrain.ParseBuilding(s.Building)
	return combat.Site{
		Terrain:    t,
		Elevation:  s.Elevation,
		Entrenched: s.Entrenched,
		Building:   b,
	}
}

// commander resolves a CommanderSpec against a default infantry specialty.
func (c CommanderSpec) commander() profile.Commander {
	specialty := profile.Infantry
	if c.Specialty != "" {
		specialty, _ = profile.ParseCategory(c.Specialty)
	}
	return profile.Commander{Specialty: specialty, Level: c.Level}
}

// groupID derives a stable group identity from the scenario name and group
// role. Stable IDs keep group ordering, and therefore run outcomes,
// identical across executions of the same scenario.
func (s *Scenario) groupID(role string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(s.Name+"/"+role))
}

// attackerGroups expands the attacker side according to the stacking mode.
// Unit counts are split as evenly as possible; remainders go to the
// earliest groups so the split is deterministic.
func (s *Scenario) attackerGroups() []*combat.Group {
	count := 1
	staggered := false
	switch s.Stacking.Mode {
	case StackingStacked:
		count = s.Stacking.Count
	case StackingAdjacent:
		count = s.Stacking.Count
		staggered = true
	}

	cmd := s.Attacker.Commander.commander()
	groups := make([]*combat.Group, count)
	for i := range groups {
		arrival := 0
		if staggered {
			arrival = i
		}
		groups[i] = &combat.Group{
			ID:          s.groupID(fmt.Sprintf("attacker/%d", i)),
			Name:        fmt.Sprintf("Attacker %d", i+1),
			Commander:   cmd,
			Composition: make(map[string]int),
			Arrival:     arrival,
		}
	}
	for _, id := range sortedUnitIDs(s.Attacker.Units) {
		n := s.Attacker.Units[id]
		base, extra := n/count, n%count
		for i := range groups {
			share := base
			if i < extra {
				share++
			}
			if share > 0 {
				groups[i].Composition[id] = share
			}
		}
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g.Composition) > 0 {
			out = append(out, g)
		}
	}
	return out
}

// defenderGroups returns the defending army plus the optional garrison.
func (s *Scenario) defenderGroups() []*combat.Group {
	var groups []*combat.Group
	if totalUnits(s.Defender.Units) > 0 {
		groups = append(groups, &combat.Group{
			ID:          s.groupID("defender"),
			Name:        "Defender",
			Commander:   s.Defender.Commander.commander(),
			Composition: copyUnits(s.Defender.Units),
		})
	}
	if totalUnits(s.Garrison) > 0 {
		groups = append(groups, &combat.Group{
			ID:          s.groupID("garrison"),
			Name:        "Garrison",
			Composition: copyUnits(s.Garrison),
			Arrival:     1,
		})
	}
	return groups
}

// sortedUnitIDs fixes map iteration order for the group split.
func sortedUnitIDs(units map[string]int) []string {
	ids := make([]string, 0, len(units))
	for id := range units {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func copyUnits(units map[string]int) map[string]int {
	out := make(map[string]int, len(units))
	for id, n := range units {
		if n > 0 {
			out[id] = n
		}
	}
	return out
}
