package gossip

// CarryOnly is the store-carry-forward policy: a message is handed over only
// to its final destination, on first contact, and dropped from the carrier
// once delivered. It never floods.
var CarryOnly Policy = carryOnly{}

type carryOnly struct{}

func (carryOnly) Kind() Kind { return KindRelay }

func (carryOnly) Init(*Agent) {}

// Accept records a message addressed to a as delivered instead of queueing
// it for carriage; a repeat delivery counts as a duplicate.
func (carryOnly) Accept(a *Agent, _ *Agent, m Message) bool {
	if m.Destination == a.id {
		dup := a.delivered.Has(m)
		a.delivered.Inc(m)
		return dup
	}
	a.inbound.Inc(m)
	return false
}

func (carryOnly) Forward(a *Agent, t Tick) error {
	peers, err := a.Encounters(t)
	if err != nil {
		return err
	}
	for _, peer := range peers {
		for _, m := range a.PendingMessages() {
			if m.Destination != peer.id {
				continue
			}
			a.Send(peer, m)
			a.deliver(m)
		}
	}
	return nil
}
