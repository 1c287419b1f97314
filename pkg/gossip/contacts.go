package gossip

// ContactTracker remembers who was in range at the previous query so that
// protocols can act once per contact instead of once per tick. The zero
// value is ready to use.
type ContactTracker struct {
	last map[NodeID]struct{}
}

// Encounters returns the members of current that were absent from the
// previous call, then remembers current for the next one. The first call
// returns all of current.
func (c *ContactTracker) Encounters(current []*Agent) []*Agent {
	next := make(map[NodeID]struct{}, len(current))
	var out []*Agent
	for _, a := range current {
		if _, seen := next[a.id]; seen {
			continue
		}
		next[a.id] = struct{}{}
		if _, ok := c.last[a.id]; !ok {
			out = append(out, a)
		}
	}
	c.last = next
	return out
}
