package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int     `yaml:"tick_rate_hz"`
	CellSize   float64 `yaml:"cell_size"`

	StartingResources map[string]int `yaml:"starting_resources"`

	Base Base `yaml:"base"`

	// InitialZoneExpand grows the starting zone by this many cells after the
	// base has been placed.
	InitialZoneExpand int `yaml:"initial_zone_expand"`

	Obstacles [][2]int `yaml:"obstacles"`

	// PointerDebounce skips preview refreshes while the pointer stays in the
	// same cell.
	PointerDebounce bool `yaml:"pointer_debounce"`
}

type Base struct {
	Enabled      bool       `yaml:"enabled"`
	DefinitionID int        `yaml:"definition_id"`
	Pos          [3]float64 `yaml:"pos"`
	ZoneRadius   float64    `yaml:"zone_radius"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz: 20,
		CellSize:   1.0,
		StartingResources: map[string]int{
			"wood":  200,
			"stone": 100,
			"food":  50,
		},
		Base: Base{
			Enabled:    true,
			ZoneRadius: 30,
		},
		PointerDebounce: true,
	}
}

// Load reads path over Defaults. Missing keys keep their default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) validate() error {
	switch {
	case t.TickRateHz <= 0:
		return fmt.Errorf("tick_rate_hz must be > 0, got %d", t.TickRateHz)
	case t.CellSize <= 0:
		return fmt.Errorf("cell_size must be > 0, got %v", t.CellSize)
	case t.Base.ZoneRadius < 0:
		return fmt.Errorf("base.zone_radius must be >= 0, got %v", t.Base.ZoneRadius)
	case t.InitialZoneExpand < 0:
		return fmt.Errorf("initial_zone_expand must be >= 0, got %d", t.InitialZoneExpand)
	}
	return nil
}
