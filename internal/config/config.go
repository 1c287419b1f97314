// Package config loads simulation settings from YAML with environment
// overrides layered on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ryandielhenn/dtngossip/pkg/gossip"
	"github.com/ryandielhenn/dtngossip/pkg/grid"
	"github.com/ryandielhenn/dtngossip/pkg/mobility"
)

// Policy names accepted in simulation.policy.
const (
	PolicyContagion = "contagion"
	PolicyCarryOnly = "carryonly"
)

// Mobility model names accepted in mobility.model.
const (
	ModelWalk   = "walk"
	ModelStatic = "static"
)

// Config is the top-level configuration.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Contagion  ContagionConfig  `yaml:"contagion"`
	Mobility   MobilityConfig   `yaml:"mobility"`
	Traffic    TrafficConfig    `yaml:"traffic"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logger     LoggerConfig     `yaml:"logger"`
}

type SimulationConfig struct {
	Agents   int     `yaml:"agents"`
	Delta    float64 `yaml:"delta"`
	Duration float64 `yaml:"duration"`
	Range    float64 `yaml:"range"`
	MaxRange float64 `yaml:"max_range"` // proximity cell width
	Seed     uint64  `yaml:"seed"`
	Policy   string  `yaml:"policy"` // "contagion" | "carryonly"
}

type ContagionConfig struct {
	InfectionRate  float64 `yaml:"infection_rate"`
	InfectDuration float64 `yaml:"infect_duration"`
	ImmuneDuration float64 `yaml:"immune_duration"`
	IndexCase      int     `yaml:"index_case"`
}

// Params converts the section into protocol parameters.
func (c ContagionConfig) Params() gossip.ContagionParams {
	return gossip.ContagionParams{
		InfectionRate:  c.InfectionRate,
		InfectDuration: c.InfectDuration,
		ImmuneDuration: c.ImmuneDuration,
		IndexCase:      gossip.NodeID(c.IndexCase),
	}
}

type MobilityConfig struct {
	Model     string  `yaml:"model"` // "walk" | "static"
	Field     float64 `yaml:"field"`
	MinSpeed  float64 `yaml:"min_speed"`
	MaxSpeed  float64 `yaml:"max_speed"`
	PauseProb float64 `yaml:"pause_prob"`
	PauseTime float64 `yaml:"pause_time"`
}

func (m MobilityConfig) WalkParams() mobility.WalkParams {
	return mobility.WalkParams{
		Field:     m.Field,
		MinSpeed:  m.MinSpeed,
		MaxSpeed:  m.MaxSpeed,
		PauseProb: m.PauseProb,
		PauseTime: m.PauseTime,
	}
}

type TrafficConfig struct {
	// Messages is the number of unicast messages seeded before a carry-only run.
	Messages int `yaml:"messages"`
}

// SweepConfig drives the persistence-threshold experiment.
type SweepConfig struct {
	From    float64 `yaml:"from"`
	To      float64 `yaml:"to"`
	Step    float64 `yaml:"step"`
	Trials  int     `yaml:"trials"`
	Tail    float64 `yaml:"tail"` // fraction of the run checked for persistence
	Workers int     `yaml:"workers"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" | "console"
}

// Defaults returns a Config with the reference experiment's settings.
func Defaults() *Config {
	cp := gossip.DefaultContagionParams()
	wp := mobility.DefaultWalkParams()
	return &Config{
		Simulation: SimulationConfig{
			Agents:   50,
			Delta:    100,
			Duration: 200000,
			Range:    grid.MaxRange,
			MaxRange: grid.MaxRange,
			Seed:     1,
			Policy:   PolicyContagion,
		},
		Contagion: ContagionConfig{
			InfectionRate:  cp.InfectionRate,
			InfectDuration: cp.InfectDuration,
			ImmuneDuration: cp.ImmuneDuration,
			IndexCase:      int(cp.IndexCase),
		},
		Mobility: MobilityConfig{
			Model:    ModelWalk,
			Field:    wp.Field,
			MinSpeed: wp.MinSpeed,
			MaxSpeed: wp.MaxSpeed,
		},
		Traffic: TrafficConfig{Messages: 100},
		Sweep: SweepConfig{
			From:    0,
			To:      1,
			Step:    0.05,
			Trials:  20,
			Tail:    0.1,
			Workers: 4,
		},
		Metrics: MetricsConfig{Addr: ":8080"},
		Logger:  LoggerConfig{Level: "info", Format: "console"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps INFECTION_RATE and DTNGOSSIP_* variables onto cfg.
// Unparsable numbers are reported rather than ignored.
func ApplyEnvOverrides(cfg *Config) error {
	floats := []struct {
		key string
		dst *float64
	}{
		{"INFECTION_RATE", &cfg.Contagion.InfectionRate},
		{"DTNGOSSIP_INFECTION_RATE", &cfg.Contagion.InfectionRate},
		{"DTNGOSSIP_INFECT_DURATION", &cfg.Contagion.InfectDuration},
		{"DTNGOSSIP_IMMUNE_DURATION", &cfg.Contagion.ImmuneDuration},
		{"DTNGOSSIP_RANGE", &cfg.Simulation.Range},
		{"DTNGOSSIP_MAX_RANGE", &cfg.Simulation.MaxRange},
		{"DTNGOSSIP_DELTA", &cfg.Simulation.Delta},
		{"DTNGOSSIP_DURATION", &cfg.Simulation.Duration},
		{"DTNGOSSIP_FIELD", &cfg.Mobility.Field},
	}
	for _, f := range floats {
		v := os.Getenv(f.key)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("env %s: %w", f.key, err)
		}
		*f.dst = n
	}

	if v := os.Getenv("DTNGOSSIP_AGENTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env DTNGOSSIP_AGENTS: %w", err)
		}
		cfg.Simulation.Agents = n
	}
	if v := os.Getenv("DTNGOSSIP_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("env DTNGOSSIP_SEED: %w", err)
		}
		cfg.Simulation.Seed = n
	}
	if v := os.Getenv("DTNGOSSIP_POLICY"); v != "" {
		cfg.Simulation.Policy = strings.ToLower(v)
	}
	if v := os.Getenv("DTNGOSSIP_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("DTNGOSSIP_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("DTNGOSSIP_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	return nil
}
