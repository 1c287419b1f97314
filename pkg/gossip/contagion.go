package gossip

import (
	"errors"
	"fmt"
)

var ErrInvalidParams = errors.New("gossip: invalid contagion parameters")

type ContagionParams struct {
	// InfectionRate is the success probability of one transmission trial.
	InfectionRate float64
	// InfectDuration is how long an agent stays infectious.
	InfectDuration float64
	// ImmuneDuration is how long a recovered agent stays immune.
	ImmuneDuration float64
	// IndexCase starts the run infected.
	IndexCase NodeID
}

func DefaultContagionParams() ContagionParams {
	return ContagionParams{
		InfectionRate:  1.0,
		InfectDuration: 1000,
		ImmuneDuration: 18000,
		IndexCase:      1,
	}
}

func (p ContagionParams) Validate() error {
	switch {
	case p.InfectionRate < 0 || p.InfectionRate > 1:
		return fmt.Errorf("%w: infection rate %g outside [0,1]", ErrInvalidParams, p.InfectionRate)
	case p.InfectDuration < 0:
		return fmt.Errorf("%w: negative infect duration", ErrInvalidParams)
	case p.ImmuneDuration < 0:
		return fmt.Errorf("%w: negative immune duration", ErrInvalidParams)
	}
	return nil
}

// Contagion is the SIRS overlay. Carried messages are infection tokens:
// receiving any of them while susceptible infects the receiver, and an
// infected agent rebroadcasts what it carries to every neighbour that is not
// immune, one Bernoulli trial per neighbour per tick.
//
//	S --receive--> I --InfectDuration--> R --ImmuneDuration--> S
//
// A tick that performs a timed transition does nothing else.
type Contagion struct {
	params ContagionParams
	rand   Rand
}

func NewContagion(p ContagionParams, r Rand) (*Contagion, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: rand", ErrMissingCollaborator)
	}
	return &Contagion{params: p, rand: r}, nil
}

func (c *Contagion) Params() ContagionParams { return c.params }

func (*Contagion) Kind() Kind { return KindContagion }

// Init starts every agent susceptible except the index case, which starts
// infected at the current time carrying its own carrier.
func (c *Contagion) Init(a *Agent) {
	if a.id != c.params.IndexCase {
		a.state = StateSusceptible
		return
	}
	a.held.Inc(Carrier(a.id))
	a.setState(StateInfected, a.clock.Now())
}

// Accept queues every message for carriage. Any receipt while susceptible
// is an infection, duplicate or not.
func (*Contagion) Accept(a *Agent, _ *Agent, m Message) bool {
	a.inbound.Inc(m)
	if a.state == StateSusceptible {
		a.setState(StateInfected, a.clock.Now())
	}
	return false
}

func (c *Contagion) Forward(a *Agent, t Tick) error {
	if c.transition(a, t.Now) {
		return nil
	}
	if a.state != StateInfected {
		return nil
	}

	carriers := a.ActiveMessages()
	if len(carriers) == 0 {
		m := Carrier(a.id)
		a.held.Inc(m)
		carriers = []Message{m}
	}

	peers, err := a.Neighbors(t)
	if err != nil {
		return err
	}
	for _, peer := range peers {
		if peer.state == StateRecovered {
			continue
		}
		if c.rand.Float64() >= c.params.InfectionRate {
			continue
		}
		for _, m := range carriers {
			if !peer.Holds(m) {
				a.Send(peer, m)
			}
		}
	}
	return nil
}

// transition applies the timed I->R and R->S rules and reports whether one
// fired.
func (c *Contagion) transition(a *Agent, now float64) bool {
	elapsed := now - a.changedAt
	switch a.state {
	case StateInfected:
		if elapsed >= c.params.InfectDuration {
			a.clearHeld()
			a.setState(StateRecovered, now)
			return true
		}
	case StateRecovered:
		if elapsed >= c.params.ImmuneDuration {
			a.clearHeld()
			a.setState(StateSusceptible, now)
			return true
		}
	}
	return false
}
