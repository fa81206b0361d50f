package sim

import (
	"fmt"
	"math"

	"github.com/kadsim/kadsim/sim/cache"
	"github.com/kadsim/kadsim/sim/kad"
	"github.com/kadsim/kadsim/sim/trace"
)

// NodeConfig groups per-node resource limits.
type NodeConfig struct {
	CacheCapacity int   `yaml:"cache_capacity"` // result-cache entries per node (0 disables caching)
	StoreCapacity int64 `yaml:"store_capacity"` // storage units per node (must be > 0)
}

// TransportConfig groups network model parameters. Latencies are in ticks.
type TransportConfig struct {
	MinLatency    int64   `yaml:"min_latency"`    // lower bound of one-way latency (must be > 0)
	MaxLatency    int64   `yaml:"max_latency"`    // upper bound of one-way latency (>= MinLatency)
	DropRate      float64 `yaml:"drop_rate"`      // probability a message is lost, in [0, 1)
	TimeoutFactor int64   `yaml:"timeout_factor"` // probe timeout = factor * round-trip time (must be > 0)
}

// PresenceConfig selects the network-wide presence index.
type PresenceConfig struct {
	Kind     string `yaml:"kind"`     // "cuckoo" (default) or "exact"
	Capacity uint   `yaml:"capacity"` // expected number of distinct cached keys
}

// BootstrapConfig controls how routing tables are filled before the run.
type BootstrapConfig struct {
	// Contacts = 0 makes every node learn every other node in ascending id order.
	// Contacts > 0 makes every node learn that many random nodes plus that many nearest nodes.
	Contacts int `yaml:"contacts"`
}

// WorkloadConfig groups traffic generation parameters.
// All counts zero means no generated traffic; callers inject via InjectStore/InjectQuery/InjectLookup.
type WorkloadConfig struct {
	DatasetPath       string `yaml:"dataset"`            // CSV of keyword,"doc1, doc2",frequency (empty = synthetic)
	SyntheticKeywords int    `yaml:"synthetic_keywords"` // keywords in the synthetic dataset
	SyntheticDocs     int    `yaml:"synthetic_docs"`     // documents per synthetic keyword
	SyntheticCorpus   int    `yaml:"synthetic_corpus"`   // distinct documents the synthetic dataset draws from
	Stores            int    `yaml:"stores"`             // store requests to issue
	Queries           int    `yaml:"queries"`            // value queries to issue
	Lookups           int    `yaml:"lookups"`            // node lookups to issue
	StoreInterval     int64  `yaml:"store_interval"`     // ticks between store requests
	QueryInterval     int64  `yaml:"query_interval"`     // ticks between queries
	LookupInterval    int64  `yaml:"lookup_interval"`    // ticks between node lookups
	QueryStart        int64  `yaml:"query_start"`        // tick of the first query
	KeywordsPerQuery  int    `yaml:"keywords_per_query"` // keywords drawn per query
}

// ChurnConfig controls scheduled node failures and recoveries.
type ChurnConfig struct {
	Interval  int64 `yaml:"interval"`   // ticks between churn rounds (0 disables churn)
	Down      int   `yaml:"down"`       // nodes taken down per round
	Up        int   `yaml:"up"`         // down nodes brought back per round
	MinActive int   `yaml:"min_active"` // churn never takes the network below this many live nodes
}

// SimConfig holds every parameter of one simulation run.
type SimConfig struct {
	Seed      int64             `yaml:"seed"`
	Horizon   int64             `yaml:"horizon"` // ticks; events past the horizon are not executed
	Nodes     int               `yaml:"nodes"`
	Kad       kad.Params        `yaml:"kad"`
	Node      NodeConfig        `yaml:"node"`
	Transport TransportConfig   `yaml:"transport"`
	Presence  PresenceConfig    `yaml:"presence"`
	Bootstrap BootstrapConfig   `yaml:"bootstrap"`
	Workload  WorkloadConfig    `yaml:"workload"`
	Churn     ChurnConfig       `yaml:"churn"`
	Trace     trace.TraceConfig `yaml:"trace"`
}

// DefaultSimConfig returns the configuration used when no file or flag overrides a value.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Seed:    42,
		Horizon: math.MaxInt64,
		Nodes:   1000,
		Kad:     kad.DefaultParams(),
		Node: NodeConfig{
			CacheCapacity: 100,
			StoreCapacity: 10000,
		},
		Transport: TransportConfig{
			MinLatency:    100,
			MaxLatency:    100,
			TimeoutFactor: 4,
		},
		Presence: PresenceConfig{
			Kind:     cache.PresenceCuckoo,
			Capacity: 1 << 16,
		},
		Workload: WorkloadConfig{
			SyntheticKeywords: 500,
			SyntheticDocs:     20,
			SyntheticCorpus:   2000,
			Stores:            500,
			Queries:           1000,
			Lookups:           100,
			StoreInterval:     10,
			QueryInterval:     50,
			LookupInterval:    500,
			QueryStart:        20000,
			KeywordsPerQuery:  3,
		},
		Trace: trace.TraceConfig{Level: trace.TraceLevelNone},
	}
}

// Validate returns an error describing the first invalid field.
func (c SimConfig) Validate() error {
	if c.Nodes <= 0 {
		return fmt.Errorf("nodes must be > 0, got %d", c.Nodes)
	}
	if err := c.Kad.Validate(); err != nil {
		return err
	}
	if c.Kad.Bits < 64 && uint64(c.Nodes) > uint64(1)<<uint(c.Kad.Bits) {
		return fmt.Errorf("nodes (%d) exceed the %d-bit keyspace", c.Nodes, c.Kad.Bits)
	}
	if c.Horizon <= 0 {
		return fmt.Errorf("horizon must be > 0, got %d", c.Horizon)
	}
	if c.Node.CacheCapacity < 0 {
		return fmt.Errorf("node.cache_capacity must be >= 0, got %d", c.Node.CacheCapacity)
	}
	if c.Node.StoreCapacity <= 0 {
		return fmt.Errorf("node.store_capacity must be > 0, got %d", c.Node.StoreCapacity)
	}
	t := c.Transport
	if t.MinLatency <= 0 || t.MaxLatency < t.MinLatency {
		return fmt.Errorf("transport latency bounds must satisfy 0 < min <= max, got [%d, %d]", t.MinLatency, t.MaxLatency)
	}
	if t.DropRate < 0 || t.DropRate >= 1 {
		return fmt.Errorf("transport.drop_rate must be in [0, 1), got %v", t.DropRate)
	}
	if t.TimeoutFactor <= 0 {
		return fmt.Errorf("transport.timeout_factor must be > 0, got %d", t.TimeoutFactor)
	}
	if c.Presence.Kind != "" && c.Presence.Kind != cache.PresenceCuckoo && c.Presence.Kind != cache.PresenceExact {
		return fmt.Errorf("presence.kind must be %q or %q, got %q", cache.PresenceCuckoo, cache.PresenceExact, c.Presence.Kind)
	}
	if c.Bootstrap.Contacts < 0 {
		return fmt.Errorf("bootstrap.contacts must be >= 0, got %d", c.Bootstrap.Contacts)
	}
	w := c.Workload
	if w.Stores < 0 || w.Queries < 0 || w.Lookups < 0 {
		return fmt.Errorf("workload counts must be >= 0, got stores=%d queries=%d lookups=%d", w.Stores, w.Queries, w.Lookups)
	}
	if (w.Stores > 0 && w.StoreInterval <= 0) || (w.Queries > 0 && w.QueryInterval <= 0) || (w.Lookups > 0 && w.LookupInterval <= 0) {
		return fmt.Errorf("workload intervals must be > 0 for every enabled traffic kind")
	}
	if w.Queries > 0 && w.KeywordsPerQuery <= 0 {
		return fmt.Errorf("workload.keywords_per_query must be > 0, got %d", w.KeywordsPerQuery)
	}
	if w.DatasetPath == "" && w.Stores > 0 && (w.SyntheticKeywords <= 0 || w.SyntheticDocs <= 0 || w.SyntheticCorpus <= 0) {
		return fmt.Errorf("synthetic dataset sizes must be > 0 when no dataset file is given")
	}
	ch := c.Churn
	if ch.Interval < 0 || ch.Down < 0 || ch.Up < 0 || ch.MinActive < 0 {
		return fmt.Errorf("churn parameters must be >= 0")
	}
	if !trace.IsValidTraceLevel(string(c.Trace.Level)) {
		return fmt.Errorf("unknown trace level %q", c.Trace.Level)
	}
	return nil
}
