package gossip

import (
	"github.com/ryandielhenn/dtngossip/pkg/grid"
)

// Kind is the closed set of agent capabilities. Collaborators branch on it
// instead of probing for contagion state.
type Kind uint8

const (
	KindRelay Kind = iota
	KindContagion
)

func (k Kind) String() string {
	switch k {
	case KindRelay:
		return "relay"
	case KindContagion:
		return "contagion"
	default:
		return "unknown"
	}
}

// State is the contagion state of an agent. Relay-only agents report StateNone.
type State uint8

const (
	StateNone State = iota
	StateSusceptible
	StateInfected
	StateRecovered
)

func (s State) String() string {
	switch s {
	case StateSusceptible:
		return "S"
	case StateInfected:
		return "I"
	case StateRecovered:
		return "R"
	default:
		return "-"
	}
}

// Clock reports the current simulation time.
type Clock interface {
	Now() float64
}

// Mobility is the read side of an agent's movement process. The driver moves
// the agent; the protocol only reads where it ended up.
type Mobility interface {
	Position() grid.Point
	// Waiting reports a pause in movement. Display only.
	Waiting() bool
}

// Rand is the uniform [0,1) source used for transmission trials.
type Rand interface {
	Float64() float64
}

// Tick is what the driver hands every agent once per step. Index has been
// rebuilt for this tick and must be treated as read-only.
type Tick struct {
	Now   float64
	Index *grid.Index[*Agent]
}

type Counters struct {
	Tx  uint64
	Rx  uint64
	Dup uint64
}

// Status is the snapshot passed to a Monitor.
type Status struct {
	ID        NodeID
	Kind      Kind
	State     State
	Position  grid.Point
	Waiting   bool
	Held      int // distinct messages carried
	Copies    int // carry count summed over held messages
	Inbound   int
	Delivered int
	Counters  Counters
}

// Monitor receives notifications about agent activity. Implementations may
// render, aggregate or ignore them; the protocol never depends on what they do.
type Monitor interface {
	AgentMoved(s Status)
	AgentChanged(s Status)
	MessageForwarded(from, to Status, m Message)
}
