// Package trace provides per-operation trace recording for protocol analysis.
// This package has no dependencies on sim/ — it stores pure data types.
package trace

// Operation kinds.
const (
	KindLookup = "lookup" // FIND_NODE traffic
	KindStore  = "store"
	KindValue  = "value" // one part of a keyword query
	KindQuery  = "query" // a whole keyword query, after merging its parts
)

// OperationRecord captures how one resolved operation or query went.
type OperationRecord struct {
	OperationID uint64 `json:"operation_id,omitempty"` // 0 for KindQuery
	Kind        string `json:"kind"`
	Node        string `json:"node"`   // initiator
	Target      string `json:"target"` // key or node id looked up
	Keywords    string `json:"keywords,omitempty"`
	Clock       int64  `json:"clock"` // tick the operation resolved at
	Hops        int    `json:"hops"`
	Latency     int64  `json:"latency"`
	Success     bool   `json:"success"`
	FromCache   bool   `json:"from_cache"`
}
