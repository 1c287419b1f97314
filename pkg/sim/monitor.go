package sim

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ryandielhenn/dtngossip/pkg/gossip"
)

// NullMonitor ignores everything.
type NullMonitor struct{}

func (NullMonitor) AgentMoved(gossip.Status)                                      {}
func (NullMonitor) AgentChanged(gossip.Status)                                    {}
func (NullMonitor) MessageForwarded(gossip.Status, gossip.Status, gossip.Message) {}

// Multi fans notifications out to several monitors, in order.
type Multi []gossip.Monitor

func (m Multi) AgentMoved(s gossip.Status) {
	for _, mon := range m {
		mon.AgentMoved(s)
	}
}

func (m Multi) AgentChanged(s gossip.Status) {
	for _, mon := range m {
		mon.AgentChanged(s)
	}
}

func (m Multi) MessageForwarded(from, to gossip.Status, msg gossip.Message) {
	for _, mon := range m {
		mon.MessageForwarded(from, to, msg)
	}
}

func (m Multi) TickDone(s Snapshot, took time.Duration) {
	for _, mon := range m {
		if tm, ok := mon.(TickMonitor); ok {
			tm.TickDone(s, took)
		}
	}
}

// Stats keeps the per-tick population series. It is safe to read while a
// run is in progress.
type Stats struct {
	mu       sync.RWMutex
	series   []Snapshot
	forwards uint64
	peak     int
}

func NewStats() *Stats { return &Stats{} }

func (*Stats) AgentMoved(gossip.Status)   {}
func (*Stats) AgentChanged(gossip.Status) {}

func (s *Stats) MessageForwarded(gossip.Status, gossip.Status, gossip.Message) {
	s.mu.Lock()
	s.forwards++
	s.mu.Unlock()
}

func (s *Stats) TickDone(snap Snapshot, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = append(s.series, snap)
	if snap.Infected > s.peak {
		s.peak = snap.Infected
	}
}

// Series returns a copy of every recorded snapshot.
func (s *Stats) Series() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Snapshot(nil), s.series...)
}

func (s *Stats) Forwards() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forwards
}

// PeakInfected is the largest infected count seen in any tick.
func (s *Stats) PeakInfected() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peak
}

// WriteSeries writes one "STAT <time> <infected>" line per tick.
func (s *Stats) WriteSeries(w io.Writer) error {
	for _, snap := range s.Series() {
		if _, err := fmt.Fprintf(w, "STAT %g %d\n", snap.Time, snap.Infected); err != nil {
			return err
		}
	}
	return nil
}
