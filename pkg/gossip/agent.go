package gossip

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ryandielhenn/dtngossip/pkg/grid"
	"github.com/ryandielhenn/dtngossip/pkg/tally"
)

var (
	ErrInvalidID           = errors.New("gossip: agent id must be positive")
	ErrRangeExceeded       = errors.New("gossip: range must be in (0, max range]")
	ErrMissingCollaborator = errors.New("gossip: required collaborator not supplied")
)

// Policy decides what an agent does with the messages it holds. One Agent
// type serves every protocol; the policy is fixed at construction.
type Policy interface {
	Kind() Kind
	// Init runs once at the end of NewAgent.
	Init(a *Agent)
	// Accept files an incoming message. It reports true when the receipt
	// is a duplicate for reasons beyond the message already being held.
	Accept(a *Agent, from *Agent, m Message) (duplicate bool)
	// Forward is the per-tick protocol action.
	Forward(a *Agent, t Tick) error
}

type Config struct {
	Range float64
	// MaxRange is the proximity index cell size. Zero means grid.MaxRange.
	MaxRange float64

	Clock    Clock
	Mobility Mobility
	Monitor  Monitor
	// Policy defaults to CarryOnly.
	Policy Policy
	Logger *zap.Logger
}

type Agent struct {
	id       NodeID
	rng      float64
	clock    Clock
	mobility Mobility
	monitor  Monitor
	policy   Policy
	log      *zap.Logger

	held      *tally.Counter[Message]
	inbound   *tally.Counter[Message]
	delivered *tally.Counter[Message]
	contacts  ContactTracker

	tx, rx, dup uint64
	originated  int

	// contagion overlay, meaningful only for KindContagion
	state     State
	changedAt float64
	changed   bool
}

func NewAgent(id NodeID, cfg Config) (*Agent, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	maxRange := cfg.MaxRange
	if maxRange <= 0 {
		maxRange = grid.MaxRange
	}
	if cfg.Range <= 0 || cfg.Range > maxRange {
		return nil, fmt.Errorf("%w: range %g, max %g", ErrRangeExceeded, cfg.Range, maxRange)
	}
	switch {
	case cfg.Clock == nil:
		return nil, fmt.Errorf("%w: clock", ErrMissingCollaborator)
	case cfg.Mobility == nil:
		return nil, fmt.Errorf("%w: mobility", ErrMissingCollaborator)
	case cfg.Monitor == nil:
		return nil, fmt.Errorf("%w: monitor", ErrMissingCollaborator)
	}
	policy := cfg.Policy
	if policy == nil {
		policy = CarryOnly
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	a := &Agent{
		id:        id,
		rng:       cfg.Range,
		clock:     cfg.Clock,
		mobility:  cfg.Mobility,
		monitor:   cfg.Monitor,
		policy:    policy,
		log:       log.With(zap.Int("agent", int(id))),
		held:      tally.New[Message](),
		inbound:   tally.New[Message](),
		delivered: tally.New[Message](),
	}
	policy.Init(a)
	return a, nil
}

func (a *Agent) ID() NodeID           { return a.id }
func (a *Agent) Range() float64       { return a.rng }
func (a *Agent) Kind() Kind           { return a.policy.Kind() }
func (a *Agent) Position() grid.Point { return a.mobility.Position() }

// State is the contagion state, StateNone for relay-only agents.
func (a *Agent) State() State { return a.state }

// StateChangedAt is the time of the last transition; ok is false before the
// first one.
func (a *Agent) StateChangedAt() (t float64, ok bool) { return a.changedAt, a.changed }

func (a *Agent) Counters() Counters {
	return Counters{Tx: a.tx, Rx: a.rx, Dup: a.dup}
}

func (a *Agent) Status() Status {
	return Status{
		ID:        a.id,
		Kind:      a.policy.Kind(),
		State:     a.state,
		Position:  a.mobility.Position(),
		Waiting:   a.mobility.Waiting(),
		Held:      a.held.Len(),
		Copies:    a.held.Total(),
		Inbound:   a.inbound.Len(),
		Delivered: a.delivered.Len(),
		Counters:  a.Counters(),
	}
}

// Send hands m to peer. The message lands in peer's inbound queue and is
// not visible to peer's own logic until its next Flush.
func (a *Agent) Send(peer *Agent, m Message) {
	peer.Receive(a, m)
	a.tx++
	a.monitor.MessageForwarded(a.Status(), peer.Status(), m)
	a.monitor.AgentChanged(a.Status())
}

// Receive is invoked by the sender's Send. Duplicates are counted, not
// rejected: the same tag may arrive from several neighbours in one tick.
func (a *Agent) Receive(from *Agent, m Message) {
	a.rx++
	dup := a.held.Has(m)
	if a.policy.Accept(a, from, m) {
		dup = true
	}
	if dup {
		a.dup++
	}
	a.monitor.AgentChanged(a.Status())
}

// Flush merges the inbound queue into the held store. It must run for every
// agent after all agents have advanced and before the next tick. Messages
// already delivered by this agent are dropped rather than carried again.
func (a *Agent) Flush() {
	if a.inbound.Len() == 0 {
		return
	}
	for _, m := range a.inbound.Keys() {
		if a.delivered.Has(m) {
			a.inbound.Delete(m)
		}
	}
	a.inbound.MergeInto(a.held)
}

// Advance runs the per-tick protocol action.
func (a *Agent) Advance(t Tick) error {
	a.monitor.AgentMoved(a.Status())
	if err := a.policy.Forward(a, t); err != nil {
		return fmt.Errorf("agent %d: %w", a.id, err)
	}
	return nil
}

// Neighbors returns every agent currently within range.
func (a *Agent) Neighbors(t Tick) ([]*Agent, error) {
	if t.Index == nil {
		return nil, grid.ErrNotBuilt
	}
	return t.Index.Query(int(a.id), a.mobility.Position(), a.rng)
}

// Encounters returns the neighbours that were not in range at the previous
// call.
func (a *Agent) Encounters(t Tick) ([]*Agent, error) {
	nbrs, err := a.Neighbors(t)
	if err != nil {
		return nil, err
	}
	return a.contacts.Encounters(nbrs), nil
}

// Originate puts a new message into the held store.
func (a *Agent) Originate(dst NodeID, seq int) (Message, error) {
	m, err := NewMessage(a.id, dst, seq)
	if err != nil {
		return Message{}, err
	}
	a.held.Inc(m)
	a.originated++
	a.monitor.AgentChanged(a.Status())
	return m, nil
}

// Originated is the number of messages this agent created with Originate.
func (a *Agent) Originated() int { return a.originated }

// Arrived is the number of distinct messages delivered here as their
// destination. Handovers recorded on the sending side are not counted.
func (a *Agent) Arrived() int {
	n := 0
	a.delivered.Each(func(m Message, _ int) {
		if m.Destination == a.id {
			n++
		}
	})
	return n
}

// Holds reports whether m is currently carried (visible store only).
func (a *Agent) Holds(m Message) bool { return a.held.Has(m) }

// HeldCount is the carry count of m, zero when absent.
func (a *Agent) HeldCount(m Message) int { return a.held.Get(m) }

// InboundCount is the pending arrival count of m.
func (a *Agent) InboundCount(m Message) int { return a.inbound.Get(m) }

func (a *Agent) Delivered(m Message) bool { return a.delivered.Has(m) }

// ActiveMessages are the held messages with a positive carry count.
func (a *Agent) ActiveMessages() []Message {
	return a.held.Keys()
}

// PendingMessages are active messages still on their way somewhere else.
func (a *Agent) PendingMessages() []Message {
	var out []Message
	a.held.Each(func(m Message, _ int) {
		if m.Destination != a.id && !a.delivered.Has(m) {
			out = append(out, m)
		}
	})
	return out
}

// AcceptedMessages are the messages addressed to this agent, whether
// carried or already recorded as delivered here.
func (a *Agent) AcceptedMessages() []Message {
	var out []Message
	a.held.Each(func(m Message, _ int) {
		if m.Destination == a.id {
			out = append(out, m)
		}
	})
	a.delivered.Each(func(m Message, _ int) {
		if m.Destination == a.id && !a.held.Has(m) {
			out = append(out, m)
		}
	})
	return out
}

func (a *Agent) deliver(m Message) {
	a.held.Delete(m)
	a.delivered.Inc(m)
}

func (a *Agent) clearHeld() {
	a.held.Clear()
}

// setState records a transition and notifies the monitor. State and time
// always change together.
func (a *Agent) setState(s State, now float64) {
	prev := a.state
	a.state = s
	a.changedAt = now
	a.changed = true
	a.log.Debug("state transition",
		zap.Stringer("from", prev),
		zap.Stringer("to", s),
		zap.Float64("time", now))
	a.monitor.AgentChanged(a.Status())
}
