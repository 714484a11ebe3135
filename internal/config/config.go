package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a JSON and YAML friendly wrapper around time.Duration that
// accepts human readable strings such as "200ms" in configuration files while
// still allowing numeric representations when necessary.
type Duration time.Duration

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes the duration using the canonical string representation.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes a duration from either a string (e.g. "250ms") or a
// numeric value representing nanoseconds. Empty strings and null values decode
// to zero.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("duration: empty value")
	}
	if string(b) == "null" {
		*d = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("duration: decode string: %w", err)
		}
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*d = Duration(time.Duration(n))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*d = Duration(time.Duration(f))
		return nil
	}
	return fmt.Errorf("duration: invalid value %s", string(b))
}

// MarshalYAML encodes the duration as its string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration: expected scalar, got kind %d", value.Kind)
	}
	if value.Tag == "!!int" {
		var n int64
		if err := value.Decode(&n); err != nil {
			return fmt.Errorf("duration: decode int: %w", err)
		}
		*d = Duration(time.Duration(n))
		return nil
	}
	if value.Tag == "!!null" {
		*d = 0
		return nil
	}
	return d.parse(value.Value)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: parse %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config captures the tunable parameters of the grid, the search engine, the
// path geometry and the request dispatcher.
type Config struct {
	Grid     GridConfig     `json:"grid" yaml:"grid"`
	Search   SearchConfig   `json:"search" yaml:"search"`
	Path     PathConfig     `json:"path" yaml:"path"`
	Dispatch DispatchConfig `json:"dispatch" yaml:"dispatch"`
	Terrain  TerrainConfig  `json:"terrain" yaml:"terrain"`
}

// RectConfig is an axis-aligned world-space rectangle.
type RectConfig struct {
	MinX float64 `json:"minX" yaml:"min_x"`
	MinY float64 `json:"minY" yaml:"min_y"`
	MaxX float64 `json:"maxX" yaml:"max_x"`
	MaxY float64 `json:"maxY" yaml:"max_y"`
}

type GridConfig struct {
	Bounds          RectConfig     `json:"bounds" yaml:"bounds"`
	CellRadius      float64        `json:"cellRadius" yaml:"cell_radius"`
	BlurRadius      int            `json:"blurRadius" yaml:"blur_radius"`           // 0 disables smoothing
	ObstaclePenalty int            `json:"obstaclePenalty" yaml:"obstacle_penalty"` // base penalty of blocked cells before blur
	Obstacles       []RectConfig   `json:"obstacles" yaml:"obstacles"`
	Regions         []RegionConfig `json:"regions" yaml:"regions"`
}

// RegionConfig describes one terrain classification. A region matches either
// through its rectangles or, for synthetic terrain, through a noise band.
type RegionConfig struct {
	Name       string       `json:"name" yaml:"name"`
	TimeWeight int          `json:"timeWeight" yaml:"time_weight"`
	FuelWeight int          `json:"fuelWeight" yaml:"fuel_weight"`
	Priority   int          `json:"priority" yaml:"priority"` // higher wins where regions overlap
	Rects      []RectConfig `json:"rects,omitempty" yaml:"rects,omitempty"`
	MinNoise   float64      `json:"minNoise,omitempty" yaml:"min_noise,omitempty"`
	MaxNoise   float64      `json:"maxNoise,omitempty" yaml:"max_noise,omitempty"`
}

type SearchConfig struct {
	Algorithm     string `json:"algorithm" yaml:"algorithm"` // bfs, dijkstra, astar
	Priority      string `json:"priority" yaml:"priority"`   // distance, time, fuel
	MaxExpansions int    `json:"maxExpansions" yaml:"max_expansions"`
}

type PathConfig struct {
	TurnDistance     float64 `json:"turnDistance" yaml:"turn_distance"`
	StoppingDistance float64 `json:"stoppingDistance" yaml:"stopping_distance"`
	Simplify         bool    `json:"simplify" yaml:"simplify"`
}

type DispatchConfig struct {
	Workers        int      `json:"workers" yaml:"workers"`
	QueueSize      int      `json:"queueSize" yaml:"queue_size"`
	ReplanInterval Duration `json:"replanInterval" yaml:"replan_interval"` // e.g. "200ms"
	MoveThreshold  float64  `json:"moveThreshold" yaml:"move_threshold"`
}

type TerrainConfig struct {
	Seed              int64   `json:"seed" yaml:"seed"`
	Frequency         float64 `json:"frequency" yaml:"frequency"`
	Octaves           int     `json:"octaves" yaml:"octaves"`
	Persistence       float64 `json:"persistence" yaml:"persistence"`
	Lacunarity        float64 `json:"lacunarity" yaml:"lacunarity"`
	ObstacleThreshold float64 `json:"obstacleThreshold" yaml:"obstacle_threshold"`
}

// Load reads configuration from a JSON or YAML file if provided. An empty path
// returns defaults. Files ending in .yaml or .yml are decoded as YAML.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Grid: GridConfig{
			Bounds:          RectConfig{MinX: -50, MinY: -50, MaxX: 50, MaxY: 50},
			CellRadius:      0.5,
			BlurRadius:      0,
			ObstaclePenalty: 10,
			Obstacles:       []RectConfig{},
			Regions: []RegionConfig{
				{Name: "road", TimeWeight: 1, FuelWeight: 1, Priority: 2, Rects: []RectConfig{{MinX: -50, MinY: -2, MaxX: 50, MaxY: 2}}},
				{Name: "grass", TimeWeight: 3, FuelWeight: 2, Priority: 1, Rects: []RectConfig{{MinX: -50, MinY: -50, MaxX: 50, MaxY: 50}}},
			},
		},
		Search: SearchConfig{
			Algorithm:     "astar",
			Priority:      "distance",
			MaxExpansions: 0,
		},
		Path: PathConfig{
			TurnDistance:     5,
			StoppingDistance: 10,
			Simplify:         false,
		},
		Dispatch: DispatchConfig{
			Workers:        2,
			QueueSize:      64,
			ReplanInterval: Duration(200 * time.Millisecond),
			MoveThreshold:  0.5,
		},
		Terrain: TerrainConfig{
			Seed:              1337,
			Frequency:         0.08,
			Octaves:           3,
			Persistence:       0.5,
			Lacunarity:        2.0,
			ObstacleThreshold: 0.55,
		},
	}
}

func (c *Config) Validate() error {
	if err := validateRect("grid.bounds", c.Grid.Bounds); err != nil {
		return err
	}
	if c.Grid.CellRadius <= 0 {
		return errors.New("grid.cellRadius must be positive")
	}
	if c.Grid.BlurRadius < 0 {
		return errors.New("grid.blurRadius cannot be negative")
	}
	if c.Grid.ObstaclePenalty < 0 {
		return errors.New("grid.obstaclePenalty cannot be negative")
	}
	for i, rect := range c.Grid.Obstacles {
		if err := validateRect(fmt.Sprintf("grid.obstacles[%d]", i), rect); err != nil {
			return err
		}
	}
	for i, region := range c.Grid.Regions {
		if region.Name == "" {
			return fmt.Errorf("grid.regions[%d].name must be set", i)
		}
		if region.TimeWeight < 0 || region.FuelWeight < 0 {
			return fmt.Errorf("grid.regions[%d] weights cannot be negative", i)
		}
		if region.MaxNoise < region.MinNoise {
			return fmt.Errorf("grid.regions[%d].maxNoise must be >= minNoise", i)
		}
		for j, rect := range region.Rects {
			if err := validateRect(fmt.Sprintf("grid.regions[%d].rects[%d]", i, j), rect); err != nil {
				return err
			}
		}
	}
	if c.Search.MaxExpansions < 0 {
		return errors.New("search.maxExpansions cannot be negative")
	}
	if c.Path.TurnDistance < 0 || c.Path.StoppingDistance < 0 {
		return errors.New("path distances cannot be negative")
	}
	if c.Dispatch.Workers < 0 {
		return errors.New("dispatch.workers cannot be negative")
	}
	if c.Dispatch.QueueSize < 0 {
		return errors.New("dispatch.queueSize cannot be negative")
	}
	if c.Dispatch.MoveThreshold < 0 {
		return errors.New("dispatch.moveThreshold cannot be negative")
	}
	if c.Terrain.Octaves < 0 {
		return errors.New("terrain.octaves cannot be negative")
	}
	return nil
}

func validateRect(field string, r RectConfig) error {
	if r.MaxX <= r.MinX || r.MaxY <= r.MinY {
		return fmt.Errorf("%s must have positive area", field)
	}
	return nil
}

// WriteDefault writes the default configuration to the provided path as YAML.
func WriteDefault(path string) error {
	cfg := Default()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	return nil
}
