// Package experiment turns a config into runnable scenarios and runs the
// persistence-threshold sweep over infection rates.
package experiment

import (
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/ryandielhenn/dtngossip/internal/config"
	"github.com/ryandielhenn/dtngossip/pkg/gossip"
	"github.com/ryandielhenn/dtngossip/pkg/mobility"
	"github.com/ryandielhenn/dtngossip/pkg/sim"
)

// NewRand returns the generator a scenario with the given seed draws from.
// Every random choice in one run comes from this single stream.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Build validates cfg and creates a scheduler populated as it describes. Contagion runs get
// the SIRS policy; carry-only runs are seeded with unicast traffic.
func Build(cfg *config.Config, mon gossip.Monitor, log *zap.Logger) (*sim.Scheduler, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	r := NewRand(cfg.Simulation.Seed)

	var policy gossip.Policy
	switch cfg.Simulation.Policy {
	case config.PolicyContagion:
		c, err := gossip.NewContagion(cfg.Contagion.Params(), r)
		if err != nil {
			return nil, err
		}
		policy = c
	case config.PolicyCarryOnly:
		policy = gossip.CarryOnly
	default:
		return nil, fmt.Errorf("%w: unknown policy %q", sim.ErrBadConfig, cfg.Simulation.Policy)
	}

	s, err := sim.New(sim.Config{
		Delta:    cfg.Simulation.Delta,
		CellSize: cfg.Simulation.MaxRange,
		Range:    cfg.Simulation.Range,
		Policy:   policy,
	}, mon, log)
	if err != nil {
		return nil, err
	}

	wp := cfg.Mobility.WalkParams()
	for range cfg.Simulation.Agents {
		var m mobility.Model
		switch cfg.Mobility.Model {
		case config.ModelStatic:
			m = mobility.NewStatic(r.Float64()*wp.Field, r.Float64()*wp.Field)
		default:
			m = mobility.NewRandomWalk(wp, r)
		}
		if _, err := s.Spawn(m); err != nil {
			return nil, err
		}
	}

	if cfg.Simulation.Policy == config.PolicyCarryOnly {
		if err := s.SeedTraffic(cfg.Traffic.Messages, r); err != nil {
			return nil, err
		}
	}
	return s, nil
}
