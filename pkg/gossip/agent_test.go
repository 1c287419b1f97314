package gossip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryandielhenn/dtngossip/pkg/grid"
)

func TestNewAgentValidation(t *testing.T) {
	c := &clock{}
	f := &fixed{}
	mon := newRecorder()

	type row struct {
		name string
		id   NodeID
		cfg  Config
		want error
	}
	rows := []row{
		{"zero id", 0, Config{Range: 10, Clock: c, Mobility: f, Monitor: mon}, ErrInvalidID},
		{"zero range", 1, Config{Range: 0, Clock: c, Mobility: f, Monitor: mon}, ErrRangeExceeded},
		{"range over max", 1, Config{Range: 51, Clock: c, Mobility: f, Monitor: mon}, ErrRangeExceeded},
		{"range over custom max", 1, Config{Range: 30, MaxRange: 20, Clock: c, Mobility: f, Monitor: mon}, ErrRangeExceeded},
		{"no clock", 1, Config{Range: 10, Mobility: f, Monitor: mon}, ErrMissingCollaborator},
		{"no mobility", 1, Config{Range: 10, Clock: c, Monitor: mon}, ErrMissingCollaborator},
		{"no monitor", 1, Config{Range: 10, Clock: c, Mobility: f}, ErrMissingCollaborator},
	}
	for _, r := range rows {
		t.Run(r.name, func(t *testing.T) {
			a, err := NewAgent(r.id, r.cfg)
			require.ErrorIs(t, err, r.want)
			assert.Nil(t, a)
		})
	}

	a, err := NewAgent(1, Config{Range: grid.MaxRange, Clock: c, Mobility: f, Monitor: mon})
	require.NoError(t, err)
	assert.Equal(t, KindRelay, a.Kind(), "policy should default to CarryOnly")
	assert.Equal(t, StateNone, a.State())
}

func TestSendQueuesUntilFlush(t *testing.T) {
	w := newWorld(t)
	a := w.spawn(grid.Point{}, 50, nil)
	b := w.spawn(grid.Point{X: 10}, 50, nil)
	m := Message{Source: 1, Destination: 9, Sequence: 1}

	a.Send(b, m)

	assert.Equal(t, uint64(1), a.Counters().Tx)
	assert.Equal(t, uint64(1), b.Counters().Rx)
	assert.False(t, b.Holds(m), "message visible before flush")
	assert.Equal(t, 1, b.InboundCount(m))
	require.Len(t, w.mon.forwards, 1)
	assert.Equal(t, forwardEvent{from: 1, to: 2, m: m}, w.mon.forwards[0])
	assert.Positive(t, w.mon.changed[1])
	assert.Positive(t, w.mon.changed[2])

	b.Flush()
	assert.True(t, b.Holds(m))
	assert.Equal(t, 0, b.InboundCount(m))
	assert.Equal(t, []Message{m}, b.PendingMessages())
}

func TestDuplicatesCountedOnlyWhenHeld(t *testing.T) {
	w := newWorld(t)
	a := w.spawn(grid.Point{}, 50, nil)
	b := w.spawn(grid.Point{X: 10}, 50, nil)
	c := w.spawn(grid.Point{X: 20}, 50, nil)
	m := Message{Source: 1, Destination: 9, Sequence: 1}

	// two arrivals in the same tick: neither is held yet
	a.Send(c, m)
	b.Send(c, m)
	assert.Equal(t, uint64(2), c.Counters().Rx)
	assert.Equal(t, uint64(0), c.Counters().Dup)

	c.Flush()
	assert.Equal(t, 2, c.HeldCount(m))

	a.Send(c, m)
	got := c.Counters()
	assert.Equal(t, uint64(3), got.Rx)
	assert.Equal(t, uint64(1), got.Dup)
	assert.GreaterOrEqual(t, got.Rx, got.Dup)
}

func TestFlushIdempotentWhenInboundEmpty(t *testing.T) {
	w := newWorld(t)
	a := w.spawn(grid.Point{}, 50, nil)
	m, err := a.Originate(2, 1)
	require.NoError(t, err)

	before := a.ActiveMessages()
	a.Flush()
	a.Flush()
	assert.Equal(t, before, a.ActiveMessages())
	assert.Equal(t, 1, a.HeldCount(m))
}

func TestForwardDeliversToDestinationOnEncounter(t *testing.T) {
	w := newWorld(t)
	for i := 1; i <= 7; i++ {
		p := grid.Point{X: float64(400 + 100*i), Y: 800}
		switch i {
		case 3:
			p = grid.Point{X: 100, Y: 100}
		case 7:
			p = grid.Point{X: 120, Y: 100}
		}
		w.spawn(p, 50, nil)
	}
	carrier, dest := w.agents[2], w.agents[6]
	m, err := carrier.Originate(7, 1)
	require.NoError(t, err)

	w.step(1)

	assert.False(t, carrier.Holds(m), "carrier still holds delivered message")
	assert.True(t, carrier.Delivered(m))
	assert.True(t, dest.Delivered(m))
	assert.False(t, dest.Holds(m), "destination must not carry the message onward")
	assert.Equal(t, []Message{m}, dest.AcceptedMessages())
	assert.Equal(t, uint64(1), carrier.Counters().Tx)
	assert.Equal(t, uint64(1), dest.Counters().Rx)

	assert.Equal(t, 1, carrier.Originated())
	assert.Equal(t, 0, carrier.Arrived(), "sender-side delivery record is not an arrival")
	assert.Equal(t, 1, dest.Arrived())
}

func TestForwardNeverFloodsToNonDestination(t *testing.T) {
	w := newWorld(t)
	a := w.spawn(grid.Point{X: 10, Y: 10}, 50, nil)
	b := w.spawn(grid.Point{X: 20, Y: 10}, 50, nil)
	w.spawn(grid.Point{X: 900, Y: 900}, 50, nil)
	m, err := a.Originate(3, 1)
	require.NoError(t, err)

	w.step(1)

	assert.True(t, a.Holds(m))
	assert.False(t, b.Holds(m))
	assert.Equal(t, uint64(0), a.Counters().Tx)
}

// A contact that persists across ticks is only one encounter: messages
// picked up mid-contact wait for the next meeting.
func TestForwardActsOncePerContact(t *testing.T) {
	w := newWorld(t)
	a := w.spawn(grid.Point{X: 10, Y: 10}, 50, nil)
	b := w.spawn(grid.Point{X: 20, Y: 10}, 50, nil)

	w.step(1) // first contact, nothing to deliver
	m, err := a.Originate(b.ID(), 1)
	require.NoError(t, err)

	w.step(1)
	assert.True(t, a.Holds(m), "delivered without a new encounter")

	w.pos[1].p = grid.Point{X: 300, Y: 300}
	w.step(1)
	assert.True(t, a.Holds(m))

	w.pos[1].p = grid.Point{X: 20, Y: 10}
	w.step(1)
	assert.False(t, a.Holds(m))
	assert.True(t, b.Delivered(m))
}

func TestRepeatDeliveryCountsAsDuplicate(t *testing.T) {
	w := newWorld(t)
	a := w.spawn(grid.Point{}, 50, nil)
	b := w.spawn(grid.Point{X: 10}, 50, nil)
	m := Message{Source: 1, Destination: 2, Sequence: 4}

	a.Send(b, m)
	a.Send(b, m)
	b.Flush()

	assert.Equal(t, uint64(2), b.Counters().Rx)
	assert.Equal(t, uint64(1), b.Counters().Dup)
	assert.False(t, b.Holds(m))
}

func TestFlushDropsAlreadyDelivered(t *testing.T) {
	w := newWorld(t)
	a := w.spawn(grid.Point{}, 50, nil)
	b := w.spawn(grid.Point{X: 10}, 50, nil)
	c := w.spawn(grid.Point{X: 20}, 50, nil)

	m, err := a.Originate(c.ID(), 1)
	require.NoError(t, err)
	a.deliver(m)

	b.Send(a, m)
	a.Flush()
	assert.False(t, a.Holds(m), "delivered message re-entered the carry set")
}

func TestAdvanceBeforeIndexBuilt(t *testing.T) {
	w := newWorld(t)
	a := w.spawn(grid.Point{}, 50, nil)

	err := a.Advance(Tick{Index: grid.New[*Agent](grid.MaxRange)})
	require.ErrorIs(t, err, grid.ErrNotBuilt)

	err = a.Advance(Tick{})
	require.ErrorIs(t, err, grid.ErrNotBuilt)
}

func TestStatusReportsOccupancy(t *testing.T) {
	w := newWorld(t)
	a := w.spawn(grid.Point{X: 5, Y: 6}, 40, nil)
	_, err := a.Originate(2, 1)
	require.NoError(t, err)
	_, err = a.Originate(3, 1)
	require.NoError(t, err)

	s := a.Status()
	assert.Equal(t, NodeID(1), s.ID)
	assert.Equal(t, KindRelay, s.Kind)
	assert.Equal(t, 2, s.Held)
	assert.Equal(t, 2, s.Copies)
	assert.Equal(t, grid.Point{X: 5, Y: 6}, s.Position)
}

func TestFlushAddsCopiesToHeld(t *testing.T) {
	w := newWorld(t)
	a := w.spawn(grid.Point{}, 50, nil)
	b := w.spawn(grid.Point{X: 10}, 50, nil)
	c := w.spawn(grid.Point{X: 20}, 50, nil)
	m := Message{Source: 1, Destination: 9, Sequence: 1}

	a.Send(c, m)
	b.Send(c, m)
	require.Equal(t, 2, c.InboundCount(m))

	c.Flush()
	assert.Equal(t, 0, c.InboundCount(m))
	assert.Equal(t, 2, c.HeldCount(m))
	assert.Equal(t, 1, c.Status().Held)
	assert.Equal(t, 2, c.Status().Copies)
}
