package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a loaded config cannot drive a run.
var ErrInvalidConfig = errors.New("invalid config")

// Simulation holds the whole navsim configuration.
type Simulation struct {
	LogLevel string `yaml:"log_level"`

	Grid        Grid        `yaml:"grid"`
	Obstacles   Obstacles   `yaml:"obstacles"`
	Fields      Fields      `yaml:"fields"`
	Agents      Agents      `yaml:"agents"`
	Timing      Timing      `yaml:"timing"`
	Pathfinding Pathfinding `yaml:"pathfinding"`

	Formations map[string]Formation `yaml:"formations"`
	Squads     []Squad              `yaml:"squads"`

	Database DatabaseConfig `yaml:"database"`
	Recorder Recorder       `yaml:"recorder"`
}

// Point is a world-space position.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Grid describes the navigable area.
type Grid struct {
	Origin     Point   `yaml:"origin"`
	Width      float64 `yaml:"width"`
	Height     float64 `yaml:"height"`
	CellRadius float64 `yaml:"cell_radius"`
}

// Rect is an axis-aligned box obstacle.
type Rect struct {
	Min Point `yaml:"min"`
	Max Point `yaml:"max"`
}

// Circle is a round obstacle.
type Circle struct {
	Center Point   `yaml:"center"`
	Radius float64 `yaml:"radius"`
}

// Obstacles lists the solid geometry. Cells blocks whole grid cells by
// index, which is handy for hand-written maps.
type Obstacles struct {
	Rects   []Rect   `yaml:"rects"`
	Circles []Circle `yaml:"circles"`
	Cells   [][2]int `yaml:"cells"`
}

// Fields holds potential field strengths and influence radii.
type Fields struct {
	GoalStrength      float64 `yaml:"goal_strength"`
	StaticStrength    float64 `yaml:"static_strength"`
	StaticRadius      float64 `yaml:"static_radius"`
	FormationStrength float64 `yaml:"formation_strength"`
	SlotValue         float64 `yaml:"slot_value"`
	FormationRadius   float64 `yaml:"formation_radius"`
	Margin            float64 `yaml:"hysteresis_margin"`
}

// Agents holds per-agent defaults.
type Agents struct {
	Mass                float64 `yaml:"mass"`
	AvoidanceRadius     float64 `yaml:"avoidance_radius"`
	Speed               float64 `yaml:"speed"`
	FollowerSpeedFactor float64 `yaml:"follower_speed_factor"`
}

// Timing holds the simulation clock and refresh intervals.
type Timing struct {
	PhysicsStep         time.Duration `yaml:"physics_step"`
	AvoidanceInterval   time.Duration `yaml:"avoidance_interval"`
	FormationInterval   time.Duration `yaml:"formation_interval"`
	PathRequestsPerStep int           `yaml:"path_requests_per_step"`
}

// Pathfinding holds A* options.
type Pathfinding struct {
	AllowDiagonal bool `yaml:"allow_diagonal"`
}

// Formation is a named layout: 0 empty, 1 follower, 2 leader.
type Formation struct {
	Mode string  `yaml:"mode"` // four_way or eight_way
	Rows [][]int `yaml:"rows"`
}

// Squad is a squad to spawn at startup.
type Squad struct {
	Name      string  `yaml:"name"`
	Formation string  `yaml:"formation"`
	Speed     float64 `yaml:"speed"` // 0 uses agents.speed
	Goal      *Point  `yaml:"goal"`
	Agents    []Agent `yaml:"agents"`
}

// Agent is one squad member. Zero mass or radius use the agents defaults.
type Agent struct {
	Position        Point   `yaml:"position"`
	Leader          bool    `yaml:"leader"`
	Mass            float64 `yaml:"mass"`
	AvoidanceRadius float64 `yaml:"avoidance_radius"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the run
// recorder.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Recorder controls what the run recorder stores.
type Recorder struct {
	RunName     string `yaml:"run_name"`
	SampleEvery int    `yaml:"sample_every"` // ticks between agent samples
	BatchSize   int    `yaml:"batch_size"`   // samples per COPY
}

// DefaultSimulation returns a 40x40 demo map with one wedge squad.
func DefaultSimulation() Simulation {
	return Simulation{
		LogLevel: "info",
		Grid: Grid{
			Origin:     Point{X: 20, Y: 20},
			Width:      40,
			Height:     40,
			CellRadius: 0.5,
		},
		Obstacles: Obstacles{
			Rects:   []Rect{{Min: Point{X: 14, Y: 10}, Max: Point{X: 16, Y: 28}}},
			Circles: []Circle{{Center: Point{X: 28, Y: 24}, Radius: 3}},
		},
		Fields: Fields{
			GoalStrength:      100,
			StaticStrength:    10,
			StaticRadius:      2,
			FormationStrength: 10,
			SlotValue:         20,
			FormationRadius:   30,
			Margin:            1,
		},
		Agents: Agents{
			Mass:                1.5,
			AvoidanceRadius:     2,
			Speed:               2,
			FollowerSpeedFactor: 2,
		},
		Timing: Timing{
			PhysicsStep:         20 * time.Millisecond,
			AvoidanceInterval:   50 * time.Millisecond,
			FormationInterval:   250 * time.Millisecond,
			PathRequestsPerStep: 1,
		},
		Pathfinding: Pathfinding{AllowDiagonal: true},
		Formations: map[string]Formation{
			"wedge": {
				Mode: "four_way",
				Rows: [][]int{
					{0, 0, 0},
					{1, 2, 1},
					{1, 0, 1},
				},
			},
		},
		Squads: []Squad{
			{
				Name:      "alpha",
				Formation: "wedge",
				Goal:      &Point{X: 34.5, Y: 34.5},
				Agents: []Agent{
					{Position: Point{X: 5.5, Y: 5.5}, Leader: true},
					{Position: Point{X: 4.5, Y: 5.5}},
					{Position: Point{X: 6.5, Y: 5.5}},
					{Position: Point{X: 4.5, Y: 6.5}},
					{Position: Point{X: 6.5, Y: 6.5}},
				},
			},
		},
		Database: DatabaseConfig{
			Enabled:  false,
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "squadnav",
			Password: "squadnav",
			DBName:   "squadnav",
			SSLMode:  "disable",
			MaxConns: 4,
		},
		Recorder: Recorder{
			RunName:     "navsim",
			SampleEvery: 10,
			BatchSize:   500,
		},
	}
}

// LoadSimulation loads the configuration from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadSimulation(path string) (Simulation, error) {
	cfg := DefaultSimulation()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects timing that the scheduler and tick manager cannot run.
func (c Simulation) Validate() error {
	intervals := []struct {
		name string
		d    time.Duration
	}{
		{"timing.physics_step", c.Timing.PhysicsStep},
		{"timing.avoidance_interval", c.Timing.AvoidanceInterval},
		{"timing.formation_interval", c.Timing.FormationInterval},
	}
	for _, iv := range intervals {
		if iv.d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidConfig, iv.name, iv.d)
		}
	}
	if c.Timing.PathRequestsPerStep < 0 {
		return fmt.Errorf("%w: timing.path_requests_per_step is negative", ErrInvalidConfig)
	}
	return nil
}
