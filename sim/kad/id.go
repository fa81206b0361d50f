// Package kad implements the Kademlia keyspace: node identifiers, XOR distance,
// k-buckets, the per-node routing table, the administrative directory used for
// cache placement, and the iterative FindOperation state machine.
//
// This package has no dependencies on sim/. It holds pure data structures that
// are driven by the protocol engine one handler at a time.
package kad

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/zeebo/blake3"
)

// NodeID is an identifier in the DHT keyspace. Only the low Params.Bits bits are significant.
type NodeID uint64

// String renders the id in hex, which is how ids appear in logs and traces.
func (id NodeID) String() string {
	return fmt.Sprintf("%#x", uint64(id))
}

// Params holds the Kademlia constants shared by every node of one simulation.
type Params struct {
	K     int `yaml:"k"`     // replication factor and closest-set size (must be > 0)
	Alpha int `yaml:"alpha"` // maximum outstanding probes per FindOperation (must be > 0)
	Bits  int `yaml:"bits"`  // keyspace width in bits, 1..64
}

// DefaultParams returns K=20, ALPHA=3, BITS=64.
func DefaultParams() Params {
	return Params{K: 20, Alpha: 3, Bits: 64}
}

// Validate returns an error describing the first invalid field.
func (p Params) Validate() error {
	if p.K <= 0 {
		return fmt.Errorf("kad: K must be > 0, got %d", p.K)
	}
	if p.Alpha <= 0 {
		return fmt.Errorf("kad: alpha must be > 0, got %d", p.Alpha)
	}
	if p.Bits <= 0 || p.Bits > 64 {
		return fmt.Errorf("kad: bits must be in [1, 64], got %d", p.Bits)
	}
	return nil
}

// Mask returns the bit mask selecting the significant bits of an id.
func (p Params) Mask() uint64 {
	if p.Bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(p.Bits)) - 1
}

// Clamp truncates an arbitrary 64-bit value into the keyspace.
func (p Params) Clamp(v uint64) NodeID {
	return NodeID(v & p.Mask())
}

// Distance returns the XOR distance between two ids.
func Distance(a, b NodeID) uint64 {
	return uint64(a ^ b)
}

// PrefixLen returns the number of leading bits a and b share within a keyspace
// of the given width. Identical ids share all of them.
func PrefixLen(a, b NodeID, width int) int {
	d := uint64(a ^ b)
	if d == 0 {
		return width
	}
	return width - bits.Len64(d)
}

// HashKey maps a keyword into the keyspace using the first 8 bytes of its BLAKE3 digest.
func HashKey(keyword string, p Params) NodeID {
	return HashBytes([]byte(keyword), p)
}

// HashBytes maps arbitrary bytes into the keyspace.
func HashBytes(data []byte, p Params) NodeID {
	sum := blake3.Sum256(data)
	return p.Clamp(binary.BigEndian.Uint64(sum[:8]))
}
