package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg and returns a *ValidationError listing every problem.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateSimulation(cfg, ve)
	validateContagion(cfg, ve)
	validateMobility(cfg, ve)
	validateSweep(cfg, ve)
	validateLogger(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateSimulation(cfg *Config, ve *ValidationError) {
	s := cfg.Simulation
	if s.Agents <= 0 {
		ve.Add("simulation.agents must be > 0")
	}
	if s.Delta <= 0 {
		ve.Add("simulation.delta must be > 0")
	}
	if s.Duration < 0 {
		ve.Add("simulation.duration must be >= 0")
	}
	if s.MaxRange <= 0 {
		ve.Add("simulation.max_range must be > 0")
	}
	if s.Range <= 0 || s.Range > s.MaxRange {
		ve.Add("simulation.range must be in (0, max_range], got %g", s.Range)
	}
	switch s.Policy {
	case PolicyContagion, PolicyCarryOnly:
	default:
		ve.Add("simulation.policy %q is not one of %q, %q", s.Policy, PolicyContagion, PolicyCarryOnly)
	}
	if s.Policy == PolicyCarryOnly && cfg.Traffic.Messages > 0 && s.Agents < 2 {
		ve.Add("traffic.messages needs at least two agents")
	}
}

func validateContagion(cfg *Config, ve *ValidationError) {
	c := cfg.Contagion
	if c.InfectionRate < 0 || c.InfectionRate > 1 {
		ve.Add("contagion.infection_rate must be in [0, 1], got %g", c.InfectionRate)
	}
	if c.InfectDuration < 0 {
		ve.Add("contagion.infect_duration must be >= 0")
	}
	if c.ImmuneDuration < 0 {
		ve.Add("contagion.immune_duration must be >= 0")
	}
	if cfg.Simulation.Policy == PolicyContagion && cfg.Simulation.Agents > 0 &&
		(c.IndexCase < 1 || c.IndexCase > cfg.Simulation.Agents) {
		ve.Add("contagion.index_case must name an agent in [1, %d], got %d", cfg.Simulation.Agents, c.IndexCase)
	}
}

func validateMobility(cfg *Config, ve *ValidationError) {
	m := cfg.Mobility
	switch m.Model {
	case ModelWalk:
		if m.Field <= 0 {
			ve.Add("mobility.field must be > 0")
		}
		if m.MinSpeed < 0 || m.MaxSpeed < m.MinSpeed {
			ve.Add("mobility speeds must satisfy 0 <= min_speed <= max_speed")
		}
		if m.PauseProb < 0 || m.PauseProb > 1 {
			ve.Add("mobility.pause_prob must be in [0, 1]")
		}
	case ModelStatic:
		if m.Field <= 0 {
			ve.Add("mobility.field must be > 0")
		}
	default:
		ve.Add("mobility.model %q is not one of %q, %q", m.Model, ModelWalk, ModelStatic)
	}
}

func validateSweep(cfg *Config, ve *ValidationError) {
	s := cfg.Sweep
	if s.Step <= 0 {
		ve.Add("sweep.step must be > 0")
	}
	if s.From < 0 || s.To > 1 || s.From > s.To {
		ve.Add("sweep range must satisfy 0 <= from <= to <= 1")
	}
	if s.Trials <= 0 {
		ve.Add("sweep.trials must be > 0")
	}
	if s.Tail <= 0 || s.Tail > 1 {
		ve.Add("sweep.tail must be in (0, 1]")
	}
	if s.Workers <= 0 {
		ve.Add("sweep.workers must be > 0")
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch cfg.Logger.Format {
	case "json", "console":
	default:
		ve.Add("logger.format %q is not one of \"json\", \"console\"", cfg.Logger.Format)
	}
}
