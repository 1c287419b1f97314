package sim

import (
	"encoding/json"
	"net/http"
	"os"
	"time"
)

// Healthz returns 200 OK to indicate the simulation process is alive.
func (s *Scheduler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Info writes the process ID, wall clock and the latest population snapshot.
func (s *Scheduler) Info(w http.ResponseWriter, _ *http.Request) {
	type resp struct {
		PID      int       `json:"pid"`
		Now      time.Time `json:"now"`
		Snapshot Snapshot  `json:"snapshot"`
	}
	data, _ := json.Marshal(resp{PID: os.Getpid(), Now: time.Now(), Snapshot: s.Snapshot()})
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// AgentStatus is the JSON form of one agent's status.
type AgentStatus struct {
	ID        int     `json:"id"`
	Kind      string  `json:"kind"`
	State     string  `json:"state"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Waiting   bool    `json:"waiting"`
	Held      int     `json:"held"`
	Delivered int     `json:"delivered"`
	Tx        uint64  `json:"tx"`
	Rx        uint64  `json:"rx"`
	Dup       uint64  `json:"dup"`
}

// AgentList writes every agent's status in registration order.
func (s *Scheduler) AgentList(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	out := make([]AgentStatus, 0, len(s.agents))
	for _, a := range s.agents {
		st := a.Status()
		out = append(out, AgentStatus{
			ID:        int(st.ID),
			Kind:      st.Kind.String(),
			State:     st.State.String(),
			X:         st.Position.X,
			Y:         st.Position.Y,
			Waiting:   st.Waiting,
			Held:      st.Held,
			Delivered: st.Delivered,
			Tx:        st.Counters.Tx,
			Rx:        st.Counters.Rx,
			Dup:       st.Counters.Dup,
		})
	}
	s.mu.RUnlock()

	data, err := json.Marshal(out)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
