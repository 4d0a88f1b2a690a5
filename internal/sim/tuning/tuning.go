package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks" json:"snapshot_every_ticks"`
	InboxCapacity      int `yaml:"inbox_capacity" json:"inbox_capacity"`

	StockpileMaximum uint32 `yaml:"stockpile_maximum" json:"stockpile_maximum"`

	Population       Population        `yaml:"population" json:"population"`
	StarterBuildings []StarterBuilding `yaml:"starter_buildings" json:"starter_buildings"`

	Terrain    Terrain    `yaml:"terrain" json:"terrain"`
	RateLimits RateLimits `yaml:"rate_limits" json:"rate_limits"`
}

type Population struct {
	Idle    uint32 `yaml:"idle" json:"idle"`
	Total   uint32 `yaml:"total" json:"total"`
	Maximum uint32 `yaml:"maximum" json:"maximum"`
}

// StarterBuilding is granted to every newly registered player.
type StarterBuilding struct {
	Building uint8  `yaml:"building" json:"building"`
	X        int32  `yaml:"x" json:"x"`
	Y        int32  `yaml:"y" json:"y"`
	Amount   uint32 `yaml:"amount" json:"amount"`
}

type Terrain struct {
	Seed            int64  `yaml:"seed" json:"seed"`
	MaxSlotsPerTile uint32 `yaml:"max_slots_per_tile" json:"max_slots_per_tile"`
}

type RateLimits struct {
	CommandsPerSecond float64 `yaml:"commands_per_second" json:"commands_per_second"`
	CommandBurst      int     `yaml:"command_burst" json:"command_burst"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         5,
		SnapshotEveryTicks: 3000,
		InboxCapacity:      1024,
		StockpileMaximum:   100,
		Population:         Population{Idle: 5, Total: 5, Maximum: 10},
		Terrain:            Terrain{Seed: 1337, MaxSlotsPerTile: 6},
		RateLimits:         RateLimits{CommandsPerSecond: 20, CommandBurst: 40},
	}
}

// Load reads a tuning file on top of Defaults so omitted keys keep sane values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz < 1 || t.TickRateHz > 255 {
		return fmt.Errorf("tick_rate_hz must be in 1..255, got %d", t.TickRateHz)
	}
	if t.StockpileMaximum == 0 {
		return fmt.Errorf("stockpile_maximum must be positive")
	}
	p := t.Population
	if p.Idle > p.Total || p.Total > p.Maximum {
		return fmt.Errorf("population must satisfy idle <= total <= maximum, got %d/%d/%d", p.Idle, p.Total, p.Maximum)
	}
	if t.InboxCapacity < 0 || t.SnapshotEveryTicks < 0 {
		return fmt.Errorf("inbox_capacity and snapshot_every_ticks must not be negative")
	}
	for i, sb := range t.StarterBuildings {
		if sb.Amount == 0 {
			return fmt.Errorf("starter_buildings[%d]: amount must be positive", i)
		}
	}
	return nil
}
