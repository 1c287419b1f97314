package gossip

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CarrierSequence is the reserved sequence number of a contagion carrier.
// Carriers are never delivered, only carried.
const CarrierSequence = 9999

var ErrMalformedTag = errors.New("gossip: malformed message tag")

// NodeID identifies an agent for its whole lifetime. Valid ids are positive.
type NodeID int

// Message is an immutable (source, destination, sequence) tag. Two messages
// are the same message iff their tags are equal.
type Message struct {
	Source      NodeID
	Destination NodeID
	Sequence    int
}

// NewMessage validates the tag fields. Destination 0 is allowed and means
// "nobody"; it is never delivered.
func NewMessage(src, dst NodeID, seq int) (Message, error) {
	if src <= 0 || dst < 0 || seq < 0 {
		return Message{}, fmt.Errorf("%w: %d-%d-%d", ErrMalformedTag, src, dst, seq)
	}
	return Message{Source: src, Destination: dst, Sequence: seq}, nil
}

// ParseMessage reads the "src-dst-seq" form produced by String.
func ParseMessage(tag string) (Message, error) {
	parts := strings.Split(tag, "-")
	if len(parts) != 3 {
		return Message{}, fmt.Errorf("%w: %q has %d fields, want 3", ErrMalformedTag, tag, len(parts))
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Message{}, fmt.Errorf("%w: %q: %v", ErrMalformedTag, tag, err)
		}
		v[i] = n
	}
	return NewMessage(NodeID(v[0]), NodeID(v[1]), v[2])
}

// Carrier is the self-addressed infection token synthesized by agent id.
func Carrier(id NodeID) Message {
	return Message{Source: id, Destination: id, Sequence: CarrierSequence}
}

func (m Message) IsCarrier() bool {
	return m.Sequence == CarrierSequence
}

func (m Message) String() string {
	return fmt.Sprintf("%d-%d-%d", m.Source, m.Destination, m.Sequence)
}
