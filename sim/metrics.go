// Tracks protocol-level counters and per-operation samples such as:
// hop counts, latencies, cache hit ratios and store outcomes.

package sim

import (
	"fmt"
	"io"
	"sort"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/stat"

	"github.com/kadsim/kadsim/sim/kad"
)

// Metrics aggregates statistics about the simulation for final reporting.
// One instance belongs to one Simulator; nothing is shared across runs.
type Metrics struct {
	MessagesSent      int64 // handed to the transport
	MessagesDelivered int64 // reached a live destination
	MessagesLost      int64 // dropped by the transport
	MessagesDropped   int64 // destination was down on arrival

	FindOperations int64 // FindOperations created, of every kind
	Timeouts       int64 // ROUTE probes that went unanswered

	LookupsIssued    int64
	LookupsSucceeded int64 // target found in the converged closest set
	LookupsFailed    int64

	StoresIssued      int64
	StoresSucceeded   int64 // at least one replica accepted
	StoresFailed      int64
	StoreMessagesSent int64 // STORE commands sent
	ReplicasStored    int64 // STOREs accepted by a replica
	ReplicasRejected  int64 // STOREs refused for lack of space

	QueriesIssued    int64
	QueriesSucceeded int64
	QueriesFailed    int64
	QueriesSkipped   int64 // generated query ticks with nothing stored to ask for
	DuplicateQueries int64 // answered from the initiator's own cache or already in flight
	RepeatedQueries  int64 // generated keyword sets that were (probably) issued before
	QueryCacheHits   int64 // queries with at least one part answered from a cache
	QueryCacheMisses int64

	CacheHitsPerMsg      int64 // probes answered from a cache
	CacheMissesPerMsg    int64 // query probes that found nothing cached
	CacheWrites          int64 // storeResultInCache calls
	CacheEvictions       int64
	CloseNodeValExpected int64 // FINDVALUE requests received
	CloseNodeHadVal      int64 // FINDVALUE requests answered with a value

	NodeFailures   int64
	NodeRecoveries int64

	LookupHops    []float64
	LookupLatency []float64
	StoreHops     []float64
	StoreLatency  []float64
	StoreReplicas []float64 // replicas accepted per successful store
	QueryHops     []float64
	QueryLatency  []float64

	overloaded map[kad.NodeID]struct{}
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{overloaded: make(map[kad.NodeID]struct{})}
}

// RecordOverload marks id as having refused a store for lack of space.
func (m *Metrics) RecordOverload(id kad.NodeID) {
	m.overloaded[id] = struct{}{}
}

// OverloadedNodes returns how many distinct nodes refused at least one store.
func (m *Metrics) OverloadedNodes() int {
	return len(m.overloaded)
}

// Distribution summarizes a sample.
type Distribution struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	P99    float64 `json:"p99"`
	Max    float64 `json:"max"`
}

// Summarize computes the distribution of xs. Empty samples give the zero value.
func Summarize(xs []float64) Distribution {
	if len(xs) == 0 {
		return Distribution{}
	}
	sorted := slices.Clone(xs)
	sort.Float64s(sorted)
	d := Distribution{
		Count: len(sorted),
		Mean:  stat.Mean(sorted, nil),
		Min:   sorted[0],
		P50:   stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P90:   stat.Quantile(0.9, stat.Empirical, sorted, nil),
		P99:   stat.Quantile(0.99, stat.Empirical, sorted, nil),
		Max:   sorted[len(sorted)-1],
	}
	if len(sorted) > 1 {
		d.StdDev = stat.StdDev(sorted, nil)
	}
	return d
}

// Summary is the serializable end-of-run report.
type Summary struct {
	Clock int64 `json:"clock"`

	Messages struct {
		Sent      int64 `json:"sent"`
		Delivered int64 `json:"delivered"`
		Lost      int64 `json:"lost"`
		Dropped   int64 `json:"dropped"`
	} `json:"messages"`

	FindOperations int64 `json:"find_operations"`
	Timeouts       int64 `json:"timeouts"`

	Lookups struct {
		Issued    int64        `json:"issued"`
		Succeeded int64        `json:"succeeded"`
		Failed    int64        `json:"failed"`
		Hops      Distribution `json:"hops"`
		Latency   Distribution `json:"latency"`
	} `json:"lookups"`

	Stores struct {
		Issued           int64        `json:"issued"`
		Succeeded        int64        `json:"succeeded"`
		Failed           int64        `json:"failed"`
		StoreMessages    int64        `json:"store_messages"`
		ReplicasStored   int64        `json:"replicas_stored"`
		ReplicasRejected int64        `json:"replicas_rejected"`
		OverloadedNodes  int          `json:"overloaded_nodes"`
		Hops             Distribution `json:"hops"`
		Latency          Distribution `json:"latency"`
		Replicas         Distribution `json:"replicas"`
	} `json:"stores"`

	Queries struct {
		Issued     int64        `json:"issued"`
		Succeeded  int64        `json:"succeeded"`
		Failed     int64        `json:"failed"`
		Skipped    int64        `json:"skipped"`
		Duplicates int64        `json:"duplicates"`
		Repeated   int64        `json:"repeated"`
		CacheHits  int64        `json:"cache_hits"`
		CacheMiss  int64        `json:"cache_misses"`
		Hops       Distribution `json:"hops"`
		Latency    Distribution `json:"latency"`
	} `json:"queries"`

	Cache struct {
		HitsPerMsg      int64 `json:"hits_per_msg"`
		MissesPerMsg    int64 `json:"misses_per_msg"`
		Writes          int64 `json:"writes"`
		Evictions       int64 `json:"evictions"`
		CloseNodeAsked  int64 `json:"close_node_asked"`
		CloseNodeHadVal int64 `json:"close_node_had_value"`
	} `json:"cache"`

	Churn struct {
		Failures   int64 `json:"failures"`
		Recoveries int64 `json:"recoveries"`
	} `json:"churn"`
}

// Summary builds the end-of-run report.
func (m *Metrics) Summary(clock int64) *Summary {
	s := &Summary{Clock: clock}
	s.Messages.Sent = m.MessagesSent
	s.Messages.Delivered = m.MessagesDelivered
	s.Messages.Lost = m.MessagesLost
	s.Messages.Dropped = m.MessagesDropped
	s.FindOperations = m.FindOperations
	s.Timeouts = m.Timeouts

	s.Lookups.Issued = m.LookupsIssued
	s.Lookups.Succeeded = m.LookupsSucceeded
	s.Lookups.Failed = m.LookupsFailed
	s.Lookups.Hops = Summarize(m.LookupHops)
	s.Lookups.Latency = Summarize(m.LookupLatency)

	s.Stores.Issued = m.StoresIssued
	s.Stores.Succeeded = m.StoresSucceeded
	s.Stores.Failed = m.StoresFailed
	s.Stores.StoreMessages = m.StoreMessagesSent
	s.Stores.ReplicasStored = m.ReplicasStored
	s.Stores.ReplicasRejected = m.ReplicasRejected
	s.Stores.OverloadedNodes = m.OverloadedNodes()
	s.Stores.Hops = Summarize(m.StoreHops)
	s.Stores.Latency = Summarize(m.StoreLatency)
	s.Stores.Replicas = Summarize(m.StoreReplicas)

	s.Queries.Issued = m.QueriesIssued
	s.Queries.Succeeded = m.QueriesSucceeded
	s.Queries.Failed = m.QueriesFailed
	s.Queries.Skipped = m.QueriesSkipped
	s.Queries.Duplicates = m.DuplicateQueries
	s.Queries.Repeated = m.RepeatedQueries
	s.Queries.CacheHits = m.QueryCacheHits
	s.Queries.CacheMiss = m.QueryCacheMisses
	s.Queries.Hops = Summarize(m.QueryHops)
	s.Queries.Latency = Summarize(m.QueryLatency)

	s.Cache.HitsPerMsg = m.CacheHitsPerMsg
	s.Cache.MissesPerMsg = m.CacheMissesPerMsg
	s.Cache.Writes = m.CacheWrites
	s.Cache.Evictions = m.CacheEvictions
	s.Cache.CloseNodeAsked = m.CloseNodeValExpected
	s.Cache.CloseNodeHadVal = m.CloseNodeHadVal

	s.Churn.Failures = m.NodeFailures
	s.Churn.Recoveries = m.NodeRecoveries
	return s
}

// Print displays aggregated metrics at the end of the simulation.
func (m *Metrics) Print(w io.Writer, clock int64) {
	m.Summary(clock).Print(w)
}

// Print writes s in human-readable form. Traffic kinds that never ran are omitted.
func (s *Summary) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Simulated Time       : %d ticks\n", s.Clock)
	fmt.Fprintf(w, "Messages             : %d sent, %d delivered, %d lost, %d dropped\n",
		s.Messages.Sent, s.Messages.Delivered, s.Messages.Lost, s.Messages.Dropped)
	fmt.Fprintf(w, "Find Operations      : %d (%d probe timeouts)\n", s.FindOperations, s.Timeouts)
	if s.Lookups.Issued > 0 {
		fmt.Fprintf(w, "Lookups              : %d/%d succeeded, hops mean %.2f p99 %.0f\n",
			s.Lookups.Succeeded, s.Lookups.Issued, s.Lookups.Hops.Mean, s.Lookups.Hops.P99)
	}
	if s.Stores.Issued > 0 {
		fmt.Fprintf(w, "Stores               : %d/%d succeeded, %.2f replicas each, %d overloaded nodes\n",
			s.Stores.Succeeded, s.Stores.Issued, s.Stores.Replicas.Mean, s.Stores.OverloadedNodes)
	}
	if s.Queries.Issued > 0 {
		fmt.Fprintf(w, "Queries              : %d/%d succeeded, hops mean %.2f, latency mean %.2f ticks\n",
			s.Queries.Succeeded, s.Queries.Issued, s.Queries.Hops.Mean, s.Queries.Latency.Mean)
		fmt.Fprintf(w, "Query Cache          : %d hits, %d misses, %d duplicates\n",
			s.Queries.CacheHits, s.Queries.CacheMiss, s.Queries.Duplicates)
	}
	if s.Queries.Skipped > 0 || s.Queries.Repeated > 0 {
		fmt.Fprintf(w, "Generated Queries    : %d skipped, %d repeated\n", s.Queries.Skipped, s.Queries.Repeated)
	}
	fmt.Fprintf(w, "Cache Messages       : %d hits, %d misses, %d evictions\n",
		s.Cache.HitsPerMsg, s.Cache.MissesPerMsg, s.Cache.Evictions)
	if s.Churn.Failures > 0 || s.Churn.Recoveries > 0 {
		fmt.Fprintf(w, "Churn                : %d failures, %d recoveries\n", s.Churn.Failures, s.Churn.Recoveries)
	}
}
