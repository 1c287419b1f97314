package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/dtngossip/pkg/gossip"
	"github.com/ryandielhenn/dtngossip/pkg/grid"
	"github.com/ryandielhenn/dtngossip/pkg/mobility"
)

var ErrBadConfig = errors.New("sim: invalid scheduler config")

type Config struct {
	// Delta is the fixed tick length in simulation time.
	Delta float64
	// CellSize is the proximity index cell width and the largest usable range.
	CellSize float64
	// Range is the communication range given to spawned agents.
	Range float64
	// Policy is shared by every spawned agent. Nil means gossip.CarryOnly.
	Policy gossip.Policy
}

// Snapshot summarises the population after a tick. Delivered sums every
// agent's delivered tally, so one handover counts at both ends; Arrived
// counts each message once, at its destination. Arrived/Originated is the
// delivery ratio.
type Snapshot struct {
	Time        float64 `json:"time"`
	Ticks       uint64  `json:"ticks"`
	Agents      int     `json:"agents"`
	Susceptible int     `json:"susceptible"`
	Infected    int     `json:"infected"`
	Recovered   int     `json:"recovered"`
	Held        int     `json:"held"`
	Copies      int     `json:"copies"`
	Delivered   int     `json:"delivered"`
	Originated  int     `json:"originated"`
	Arrived     int     `json:"arrived"`
	Tx          uint64  `json:"tx"`
	Rx          uint64  `json:"rx"`
	Dup         uint64  `json:"dup"`
}

// TickMonitor is implemented by monitors that want a summary once per tick,
// after every agent has flushed.
type TickMonitor interface {
	TickDone(s Snapshot, took time.Duration)
}

// Scheduler is the discrete-time driver. It owns the clock, the agent
// registry (in registration order), each agent's movement process and the
// proximity index, and steps them in the order move, index, act, flush.
type Scheduler struct {
	mu      sync.RWMutex
	cfg     Config
	now     float64
	ticks   uint64
	agents  []*gossip.Agent
	moves   []mobility.Model
	index   *grid.Index[*gossip.Agent]
	monitor gossip.Monitor
	log     *zap.Logger
}

func New(cfg Config, mon gossip.Monitor, log *zap.Logger) (*Scheduler, error) {
	if cfg.Delta <= 0 {
		return nil, fmt.Errorf("%w: delta must be positive", ErrBadConfig)
	}
	if cfg.CellSize <= 0 {
		cfg.CellSize = grid.MaxRange
	}
	if mon == nil {
		return nil, fmt.Errorf("%w: monitor", gossip.ErrMissingCollaborator)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cfg:     cfg,
		index:   grid.New[*gossip.Agent](cfg.CellSize),
		monitor: mon,
		log:     log,
	}, nil
}

// clock lets agents read the time from inside Step without taking the lock.
type clock struct{ s *Scheduler }

func (c clock) Now() float64 { return c.s.now }

func (s *Scheduler) Now() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now
}

func (s *Scheduler) Delta() float64 { return s.cfg.Delta }

// Agents returns the registry in registration order.
func (s *Scheduler) Agents() []*gossip.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*gossip.Agent(nil), s.agents...)
}

// Spawn registers a new agent moved by m. Ids are assigned in registration
// order starting at 1.
func (s *Scheduler) Spawn(m mobility.Model) (*gossip.Agent, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: mobility", gossip.ErrMissingCollaborator)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := gossip.NewAgent(gossip.NodeID(len(s.agents)+1), gossip.Config{
		Range:    s.cfg.Range,
		MaxRange: s.cfg.CellSize,
		Clock:    clock{s},
		Mobility: m,
		Monitor:  s.monitor,
		Policy:   s.cfg.Policy,
		Logger:   s.log,
	})
	if err != nil {
		return nil, err
	}
	s.agents = append(s.agents, a)
	s.moves = append(s.moves, m)
	return a, nil
}

// Step runs one tick. An error means a protocol precondition was violated
// and the run cannot continue.
func (s *Scheduler) Step() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()

	for _, m := range s.moves {
		m.Move(s.cfg.Delta)
	}

	s.index.Reset()
	for _, a := range s.agents {
		s.index.Register(int(a.ID()), a.Position(), a)
	}

	t := gossip.Tick{Now: s.now, Index: s.index}
	for _, a := range s.agents {
		if err := a.Advance(t); err != nil {
			return fmt.Errorf("tick %d (t=%g): %w", s.ticks, s.now, err)
		}
	}
	for _, a := range s.agents {
		a.Flush()
	}

	if tm, ok := s.monitor.(TickMonitor); ok {
		tm.TickDone(s.snapshotLocked(), time.Since(start))
	}
	s.ticks++
	s.now += s.cfg.Delta
	return nil
}

// Run steps until the clock reaches until or ctx is done.
func (s *Scheduler) Run(ctx context.Context, until float64) error {
	s.log.Info("run starting",
		zap.Int("agents", len(s.Agents())),
		zap.Float64("delta", s.cfg.Delta),
		zap.Float64("until", until))
	for s.Now() < until {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.Step(); err != nil {
			return err
		}
	}
	snap := s.Snapshot()
	s.log.Info("run finished",
		zap.Uint64("ticks", snap.Ticks),
		zap.Int("infected", snap.Infected),
		zap.Uint64("tx", snap.Tx),
		zap.Uint64("dup", snap.Dup))
	return nil
}

// RunWhile steps until the clock reaches until, ctx is done, or keep
// returns false for the latest snapshot.
func (s *Scheduler) RunWhile(ctx context.Context, until float64, keep func(Snapshot) bool) error {
	for s.Now() < until {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Step(); err != nil {
			return err
		}
		if !keep(s.Snapshot()) {
			return nil
		}
	}
	return nil
}

func (s *Scheduler) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Scheduler) snapshotLocked() Snapshot {
	snap := Snapshot{Time: s.now, Ticks: s.ticks, Agents: len(s.agents)}
	for _, a := range s.agents {
		switch a.State() {
		case gossip.StateSusceptible:
			snap.Susceptible++
		case gossip.StateInfected:
			snap.Infected++
		case gossip.StateRecovered:
			snap.Recovered++
		}
		st := a.Status()
		snap.Held += st.Held
		snap.Copies += st.Copies
		snap.Delivered += st.Delivered
		snap.Originated += a.Originated()
		snap.Arrived += a.Arrived()
		snap.Tx += st.Counters.Tx
		snap.Rx += st.Counters.Rx
		snap.Dup += st.Counters.Dup
	}
	return snap
}

// IntN is the subset of *rand.Rand used to pick traffic endpoints.
type IntN interface {
	IntN(n int) int
}

// SeedTraffic originates n unicast messages between distinct random agents.
func (s *Scheduler) SeedTraffic(n int, r IntN) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		return nil
	}
	if len(s.agents) < 2 {
		return fmt.Errorf("%w: traffic needs at least two agents", ErrBadConfig)
	}
	for seq := 1; seq <= n; seq++ {
		src := r.IntN(len(s.agents))
		dst := r.IntN(len(s.agents) - 1)
		if dst >= src {
			dst++
		}
		if _, err := s.agents[src].Originate(s.agents[dst].ID(), seq); err != nil {
			return err
		}
	}
	s.log.Debug("traffic seeded", zap.Int("messages", n))
	return nil
}
