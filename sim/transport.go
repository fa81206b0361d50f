package sim

import (
	"math/rand"

	"github.com/kadsim/kadsim/sim/kad"
)

// Transport models the network between two nodes.
type Transport interface {
	// Sample returns the one-way latency of a message from src to dst in ticks
	// and whether the message survives the trip. The latency is meaningful even
	// for lost messages; senders use it to arm timeouts.
	Sample(src, dst kad.NodeID) (latency int64, delivered bool)
}

// UnreliableTransport draws latencies uniformly from [MinLatency, MaxLatency]
// and loses each message independently with probability DropRate.
type UnreliableTransport struct {
	MinLatency int64
	MaxLatency int64
	DropRate   float64
	rng        *rand.Rand
}

// NewUnreliableTransport creates a transport drawing from rng.
func NewUnreliableTransport(cfg TransportConfig, rng *rand.Rand) *UnreliableTransport {
	return &UnreliableTransport{
		MinLatency: cfg.MinLatency,
		MaxLatency: cfg.MaxLatency,
		DropRate:   cfg.DropRate,
		rng:        rng,
	}
}

func (t *UnreliableTransport) Sample(_, _ kad.NodeID) (int64, bool) {
	latency := t.MinLatency
	if span := t.MaxLatency - t.MinLatency; span > 0 {
		latency += t.rng.Int63n(span + 1)
	}
	if t.DropRate > 0 && t.rng.Float64() < t.DropRate {
		return latency, false
	}
	return latency, true
}
