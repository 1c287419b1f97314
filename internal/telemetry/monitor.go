package telemetry

import (
	"time"

	"github.com/ryandielhenn/dtngossip/pkg/gossip"
	"github.com/ryandielhenn/dtngossip/pkg/sim"
)

// Monitor exports agent activity to the package registry. Per-agent
// notifications only touch counters; gauges are set once per tick.
type Monitor struct {
	// last totals seen, so Snapshot totals can be turned into counter deltas
	rx, dup uint64
}

func NewMonitor() *Monitor { return &Monitor{} }

func (*Monitor) AgentMoved(gossip.Status)   {}
func (*Monitor) AgentChanged(gossip.Status) {}

func (*Monitor) MessageForwarded(from, _ gossip.Status, _ gossip.Message) {
	MessagesForwarded.WithLabelValues(from.Kind.String()).Inc()
}

func (m *Monitor) TickDone(s sim.Snapshot, took time.Duration) {
	AgentsByState.WithLabelValues("S").Set(float64(s.Susceptible))
	AgentsByState.WithLabelValues("I").Set(float64(s.Infected))
	AgentsByState.WithLabelValues("R").Set(float64(s.Recovered))
	HeldMessages.Set(float64(s.Copies))
	SimTime.Set(s.Time)
	Ticks.Inc()
	TickDuration.Observe(took.Seconds())

	if s.Rx > m.rx {
		Receptions.Add(float64(s.Rx - m.rx))
		m.rx = s.Rx
	}
	if s.Dup > m.dup {
		Duplicates.Add(float64(s.Dup - m.dup))
		m.dup = s.Dup
	}
}
