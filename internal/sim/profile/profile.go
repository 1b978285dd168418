package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnitCombatProfile holds the combat constants for one unit type, loaded
// once from YAML and never mutated afterwards.
type UnitCombatProfile struct {
	// ID is the unit type key, e.g. "infantry_swordsman".
	ID string `yaml:"id"`
	// Name is the display name shown in combat records.
	Name string `yaml:"name"`
	// Category is parsed from the YAML "category" field.
	Category Category `yaml:"-"`
	// RawCategory is the YAML category name; resolved into Category by Validate.
	RawCategory string `yaml:"category"`
	// BaseHP is the hit points of a single unit before research bonuses.
	BaseHP float64 `yaml:"base_hp"`
	// Damage is the total damage of a single unit per damage budget unit.
	Damage float64 `yaml:"damage"`
	// Armor is the average armor rating; it extends effective HP and orders
	// casualty assignment (lowest armor dies first).
	Armor float64 `yaml:"armor"`
	// MoveSpeed is carried for collaborators (pathfinding); unused in combat math.
	MoveSpeed float64 `yaml:"move_speed"`
	// TrainingCost and TrainingTime are carried for collaborators (economy).
	TrainingCost int `yaml:"training_cost"`
	TrainingTime int `yaml:"training_time"`
}

// Validate checks the profile invariants and resolves RawCategory.
//
// Precondition: p must not be nil.
// Postcondition: Returns nil iff ID and Name are non-empty, the category is
// declared, BaseHP >= 1, Damage >= 0, and Armor >= 0; p.Category is set on
// success.
func (p *UnitCombatProfile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("unit profile: id must not be empty")
	}
	if p.Name == "" {
		return fmt.Errorf("unit profile %q: name must not be empty", p.ID)
	}
	cat, err := ParseCategory(p.RawCategory)
	if err != nil {
		return fmt.Errorf("unit profile %q: %w", p.ID, err)
	}
	p.Category = cat
	if p.BaseHP < 1 {
		return fmt.Errorf("unit profile %q: base_hp must be >= 1", p.ID)
	}
	if p.Damage < 0 {
		return fmt.Errorf("unit profile %q: damage must not be negative", p.ID)
	}
	if p.Armor < 0 {
		return fmt.Errorf("unit profile %q: armor must not be negative", p.ID)
	}
	return nil
}

// EffectiveHP returns the survivability of one unit after the given bonus:
// (BaseHP + HPBonus) scaled by armor. Armor is modelled as effective HP
// rather than flat soak so the damage pipeline stays a single
// multiplicative chain.
//
// Postcondition: Returns > 0 for a validated profile with HPBonus >= 0.
func (p *UnitCombatProfile) EffectiveHP(b UpgradeBonus) float64 {
	return (p.BaseHP + b.HPBonus) * (1 + (p.Armor+b.ArmorBonus)/100)
}

// EffectiveDamage returns one unit's damage contribution after the bonus.
//
// Postcondition: Returns >= 0 for a validated profile with AttackBonus >= 0.
func (p *UnitCombatProfile) EffectiveDamage(b UpgradeBonus) float64 {
	return p.Damage + b.AttackBonus
}

// LoadProfileFromBytes parses a single unit profile from raw YAML bytes.
//
// Precondition: data must be valid YAML for a single UnitCombatProfile.
// Postcondition: Returns a validated profile or a non-nil error.
func LoadProfileFromBytes(data []byte) (*UnitCombatProfile, error) {
	var p UnitCombatProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing unit profile YAML: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadProfiles reads all *.yaml files in dir (lexicographic order, which
// fixes registry declaration order across hosts) and returns a populated
// Registry.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a Registry with every parsed profile, or an error
// on the first parse, validate, or duplicate-ID failure.
func LoadProfiles(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading unit profile dir %q: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	reg := NewRegistry()
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		p, err := LoadProfileFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		if err := reg.Register(p); err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
	}
	return reg, nil
}
