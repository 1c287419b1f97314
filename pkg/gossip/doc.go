// Package gossip implements epidemic-style message dissemination between
// mobile agents that only meet intermittently. Each Agent carries a message
// store and hands messages to the peers it meets; what it hands over, and to
// whom, is decided by a pluggable Policy.
//
// Two policies ship with the package: CarryOnly, the store-carry-forward
// rule that hands a message over only when the peer is its final
// destination, and Contagion, a timed SIRS automaton that treats a carried
// message as an infection token and rebroadcasts it to every neighbour.
//
// Agents are driven once per tick by an external scheduler:
//
//	for _, a := range agents { a.Advance(tick) }
//	for _, a := range agents { a.Flush() }
//
// Messages sent during a tick land in the receiver's inbound queue and only
// become visible after Flush, so nothing is relayed further in the tick it
// arrived.
package gossip
