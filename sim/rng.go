package sim

import (
	"encoding/binary"
	"math/rand"

	"github.com/zeebo/blake3"
)

// Random streams, one per subsystem. Each is seeded independently from the
// run seed, so drawing from one never shifts another: adding message loss
// does not change which keywords are queried.
const (
	SubsystemWorkload  = "workload"  // dataset synthesis, keyword draws, start nodes
	SubsystemNodeIDs   = "node_ids"  // node identifiers
	SubsystemBootstrap = "bootstrap" // initial routing-table contacts
	SubsystemTransport = "transport" // latencies and message loss
	SubsystemChurn     = "churn"     // nodes to fail and recover
)

// PartitionedRNG hands out one deterministic *rand.Rand per subsystem.
// Not safe for concurrent use.
type PartitionedRNG struct {
	seed    int64
	streams map[string]*rand.Rand
}

// NewPartitionedRNG creates the streams of a run seeded with seed.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{seed: seed, streams: make(map[string]*rand.Rand)}
}

// ForSubsystem returns the stream for name, creating it on first use.
// Repeated calls return the same instance.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.streams[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(deriveSeed(p.seed, name)))
	p.streams[name] = rng
	return rng
}

// Seed returns the run seed.
func (p *PartitionedRNG) Seed() int64 {
	return p.seed
}

// deriveSeed hashes the run seed together with the subsystem name.
func deriveSeed(seed int64, name string) int64 {
	buf := make([]byte, 8, 8+len(name))
	binary.BigEndian.PutUint64(buf, uint64(seed))
	sum := blake3.Sum256(append(buf, name...))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}
