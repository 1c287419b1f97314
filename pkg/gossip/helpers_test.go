package gossip

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ryandielhenn/dtngossip/pkg/grid"
)

type clock struct{ now float64 }

func (c *clock) Now() float64 { return c.now }

type fixed struct{ p grid.Point }

func (f *fixed) Position() grid.Point { return f.p }
func (f *fixed) Waiting() bool        { return false }

// constRand is a Rand that always draws the same value.
type constRand float64

func (r constRand) Float64() float64 { return float64(r) }

type forwardEvent struct {
	from, to NodeID
	m        Message
}

type recorder struct {
	moved    int
	changed  map[NodeID]int
	forwards []forwardEvent
}

func newRecorder() *recorder {
	return &recorder{changed: map[NodeID]int{}}
}

func (r *recorder) AgentMoved(Status)     { r.moved++ }
func (r *recorder) AgentChanged(s Status) { r.changed[s.ID]++ }
func (r *recorder) MessageForwarded(from, to Status, m Message) {
	r.forwards = append(r.forwards, forwardEvent{from: from.ID, to: to.ID, m: m})
}

// world is a minimal driver: static agents, one shared clock.
type world struct {
	t      *testing.T
	clock  *clock
	mon    *recorder
	agents []*Agent
	pos    []*fixed
	index  *grid.Index[*Agent]
}

func newWorld(t *testing.T) *world {
	return &world{
		t:     t,
		clock: &clock{},
		mon:   newRecorder(),
		index: grid.New[*Agent](grid.MaxRange),
	}
}

func (w *world) spawn(p grid.Point, rng float64, policy Policy) *Agent {
	w.t.Helper()
	f := &fixed{p: p}
	a, err := NewAgent(NodeID(len(w.agents)+1), Config{
		Range:    rng,
		Clock:    w.clock,
		Mobility: f,
		Monitor:  w.mon,
		Policy:   policy,
	})
	require.NoError(w.t, err)
	w.agents = append(w.agents, a)
	w.pos = append(w.pos, f)
	return a
}

func (w *world) tick() Tick {
	w.index.Reset()
	for _, a := range w.agents {
		w.index.Register(int(a.ID()), a.Position(), a)
	}
	return Tick{Now: w.clock.now, Index: w.index}
}

// step runs one full tick (advance all, flush all) and then moves the clock.
func (w *world) step(delta float64) {
	w.t.Helper()
	tk := w.tick()
	for _, a := range w.agents {
		require.NoError(w.t, a.Advance(tk))
	}
	for _, a := range w.agents {
		a.Flush()
	}
	w.clock.now += delta
}
