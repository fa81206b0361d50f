package trace

// KindSummary aggregates the records of one operation kind.
type KindSummary struct {
	Count       int     `json:"count"`
	Succeeded   int     `json:"succeeded"`
	FromCache   int     `json:"from_cache"`
	MeanHops    float64 `json:"mean_hops"`
	MaxHops     int     `json:"max_hops"`
	MeanLatency float64 `json:"mean_latency"`
}

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalRecords    int                     `json:"total_records"`
	ByKind          map[string]*KindSummary `json:"by_kind"`
	InitiatorCounts map[string]int          `json:"initiator_counts"` // node -> records initiated
	UniqueTargets   int                     `json:"unique_targets"`
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		ByKind:          make(map[string]*KindSummary),
		InitiatorCounts: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalRecords = len(st.Operations)
	targets := make(map[string]bool)
	hopSums := make(map[string]int)
	latencySums := make(map[string]int64)
	for _, r := range st.Operations {
		ks, ok := summary.ByKind[r.Kind]
		if !ok {
			ks = &KindSummary{}
			summary.ByKind[r.Kind] = ks
		}
		ks.Count++
		if r.Success {
			ks.Succeeded++
		}
		if r.FromCache {
			ks.FromCache++
		}
		if r.Hops > ks.MaxHops {
			ks.MaxHops = r.Hops
		}
		hopSums[r.Kind] += r.Hops
		latencySums[r.Kind] += r.Latency
		summary.InitiatorCounts[r.Node]++
		targets[r.Target] = true
	}
	for kind, ks := range summary.ByKind {
		ks.MeanHops = float64(hopSums[kind]) / float64(ks.Count)
		ks.MeanLatency = float64(latencySums[kind]) / float64(ks.Count)
	}
	summary.UniqueTargets = len(targets)

	return summary
}
