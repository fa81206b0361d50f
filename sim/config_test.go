package sim

import (
	"testing"

	"github.com/kadsim/kadsim/sim/trace"
)

func TestDefaultSimConfig_Valid(t *testing.T) {
	if err := DefaultSimConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestSimConfig_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SimConfig)
	}{
		{"no nodes", func(c *SimConfig) { c.Nodes = 0 }},
		{"zero K", func(c *SimConfig) { c.Kad.K = 0 }},
		{"too many nodes for keyspace", func(c *SimConfig) { c.Kad.Bits = 4; c.Nodes = 17 }},
		{"zero horizon", func(c *SimConfig) { c.Horizon = 0 }},
		{"negative cache", func(c *SimConfig) { c.Node.CacheCapacity = -1 }},
		{"zero store capacity", func(c *SimConfig) { c.Node.StoreCapacity = 0 }},
		{"zero latency", func(c *SimConfig) { c.Transport.MinLatency = 0 }},
		{"inverted latency", func(c *SimConfig) { c.Transport.MaxLatency = c.Transport.MinLatency - 1 }},
		{"drop rate one", func(c *SimConfig) { c.Transport.DropRate = 1 }},
		{"zero timeout factor", func(c *SimConfig) { c.Transport.TimeoutFactor = 0 }},
		{"unknown presence", func(c *SimConfig) { c.Presence.Kind = "bloom" }},
		{"negative contacts", func(c *SimConfig) { c.Bootstrap.Contacts = -1 }},
		{"negative stores", func(c *SimConfig) { c.Workload.Stores = -1 }},
		{"zero query interval", func(c *SimConfig) { c.Workload.QueryInterval = 0 }},
		{"zero keywords per query", func(c *SimConfig) { c.Workload.KeywordsPerQuery = 0 }},
		{"empty synthetic dataset", func(c *SimConfig) { c.Workload.SyntheticKeywords = 0 }},
		{"negative churn", func(c *SimConfig) { c.Churn.Down = -1 }},
		{"unknown trace level", func(c *SimConfig) { c.Trace.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSimConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() accepted %s", tt.name)
			}
		})
	}
}

func TestSimConfig_Validate_Accepts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SimConfig)
	}{
		{"cache disabled", func(c *SimConfig) { c.Node.CacheCapacity = 0 }},
		{"exact presence", func(c *SimConfig) { c.Presence.Kind = "exact" }},
		{"full keyspace", func(c *SimConfig) { c.Kad.Bits = 4; c.Nodes = 16 }},
		{"no traffic", func(c *SimConfig) { c.Workload = WorkloadConfig{} }},
		{"dataset file skips synthetic sizes", func(c *SimConfig) {
			c.Workload.DatasetPath = "data.csv"
			c.Workload.SyntheticKeywords = 0
		}},
		{"operation tracing", func(c *SimConfig) { c.Trace.Level = trace.TraceLevelOperations }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSimConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}
