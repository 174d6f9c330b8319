package game

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/amalg/go-gridchase/internal/grid"
	"github.com/amalg/go-gridchase/internal/pathfind"
)

// Layout names understood by Config.Layout. Anything else is a file path.
const (
	LayoutReference = "reference"
	LayoutGenerated = "generated"
)

// Duration is a time.Duration written in JSON as a Go duration string such as
// "250ms" or "3s".
type Duration struct {
	time.Duration
}

// MarshalJSON writes d as a duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts only duration strings; a bare number has no unit.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"250ms\", got %s", data)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// JSONSchema describes Duration as a string in the protocol schema.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Description: "Go duration string, e.g. 250ms",
	}
}

// Config holds configurable parameters for a game session. Durations are
// duration strings in JSON ("50ms", "3s").
type Config struct {
	TileSize          float64             `json:"tile_size"` // World units per tile
	TickRate          int                 `json:"tick_rate"` // Ticks per second
	MaxDT             Duration            `json:"max_dt"`    // Longest step simulated at once
	PlayerSpeed       float64             `json:"player_speed"`
	EnemySpeed        float64             `json:"enemy_speed"`
	RepathInterval    Duration            `json:"repath_interval"` // 0 re-plans every tick
	EnemyRespawnDelay Duration            `json:"enemy_respawn_delay"`
	BulletSpeed       float64             `json:"bullet_speed"`
	BulletSize        float64             `json:"bullet_size"` // Hitbox edge length
	MaxEnemies        int                 `json:"max_enemies"`
	MaxPlayers        int                 `json:"max_players"`
	ScoreLimit        int                 `json:"score_limit"` // 0 plays forever
	Layout            string              `json:"layout"`
	Generate          grid.GenerateConfig `json:"generate"`
	SearchMode        pathfind.Mode       `json:"search_mode"`
	MaxExpansions     int                 `json:"max_expansions"` // 0 is unbounded
}

// DefaultConfig returns the classic single-arena settings.
func DefaultConfig() Config {
	return Config{
		TileSize:          32,
		TickRate:          60,
		MaxDT:             Duration{50 * time.Millisecond},
		PlayerSpeed:       220,
		EnemySpeed:        110,
		RepathInterval:    Duration{250 * time.Millisecond},
		EnemyRespawnDelay: Duration{3 * time.Second},
		BulletSpeed:       600,
		BulletSize:        12,
		MaxEnemies:        5,
		MaxPlayers:        4,
		Layout:            LayoutReference,
		Generate: grid.GenerateConfig{
			Width:            21,
			Height:           15,
			BreakableDensity: 0.3,
			Enemies:          5,
		},
		SearchMode: pathfind.ModeFIFO,
	}
}

// LoadConfig overlays the JSON file at path on DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the simulation cannot run with.
func (c Config) Validate() error {
	switch {
	case c.TileSize <= 0:
		return fmt.Errorf("tile_size must be positive, got %v", c.TileSize)
	case c.TickRate <= 0:
		return fmt.Errorf("tick_rate must be positive, got %d", c.TickRate)
	case c.MaxDT.Duration <= 0:
		return fmt.Errorf("max_dt must be positive, got %v", c.MaxDT)
	case c.RepathInterval.Duration < 0:
		return fmt.Errorf("repath_interval must not be negative, got %v", c.RepathInterval)
	case c.EnemyRespawnDelay.Duration <= 0:
		return fmt.Errorf("enemy_respawn_delay must be positive, got %v", c.EnemyRespawnDelay)
	case c.PlayerSpeed <= 0 || c.EnemySpeed <= 0 || c.BulletSpeed <= 0:
		return fmt.Errorf("speeds must be positive")
	case c.MaxPlayers < 1:
		return fmt.Errorf("max_players must be at least 1, got %d", c.MaxPlayers)
	case c.MaxEnemies < 0:
		return fmt.Errorf("max_enemies must not be negative, got %d", c.MaxEnemies)
	case c.ScoreLimit < 0:
		return fmt.Errorf("score_limit must not be negative, got %d", c.ScoreLimit)
	case c.Layout == "":
		return fmt.Errorf("layout must be set")
	case c.Generate.Enemies < 0:
		return fmt.Errorf("generate.enemies must not be negative, got %d", c.Generate.Enemies)
	case c.Generate.BreakableDensity < 0 || c.Generate.BreakableDensity > 1:
		return fmt.Errorf("generate.breakable_density must be within [0,1], got %v", c.Generate.BreakableDensity)
	}
	return nil
}

// dtLimit is MaxDT in seconds.
func (c Config) dtLimit() float64 { return c.MaxDT.Seconds() }
