package trace

import (
	"testing"
)

func TestSimulationTrace_Record_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for operations
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelOperations})

	// WHEN an operation record is recorded
	st.Record(OperationRecord{
		OperationID: 7,
		Kind:        KindLookup,
		Node:        "0x80",
		Target:      "0x35",
		Clock:       1000,
		Hops:        4,
		Success:     true,
	})

	// THEN the trace contains one record with correct data
	if len(st.Operations) != 1 {
		t.Fatalf("expected 1 record, got %d", len(st.Operations))
	}
	if st.Operations[0].OperationID != 7 {
		t.Errorf("expected operation 7, got %d", st.Operations[0].OperationID)
	}
	if !st.Operations[0].Success {
		t.Error("expected success=true")
	}
}

func TestSimulationTrace_MultipleRecords_PreservesOrder(t *testing.T) {
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelOperations})

	st.Record(OperationRecord{OperationID: 1, Kind: KindStore, Clock: 100})
	st.Record(OperationRecord{OperationID: 2, Kind: KindValue, Clock: 200})
	st.Record(OperationRecord{Kind: KindQuery, Clock: 150})

	if len(st.Operations) != 3 {
		t.Fatalf("expected 3 records, got %d", len(st.Operations))
	}
	if st.Operations[2].Kind != KindQuery {
		t.Errorf("expected query last, got %s", st.Operations[2].Kind)
	}
}

func TestIsValidTraceLevel(t *testing.T) {
	tests := []struct {
		level string
		want  bool
	}{
		{"", true},
		{"none", true},
		{"operations", true},
		{"decisions", false},
		{"verbose", false},
	}
	for _, tt := range tests {
		if got := IsValidTraceLevel(tt.level); got != tt.want {
			t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestTraceConfig_Enabled(t *testing.T) {
	if (TraceConfig{}).Enabled() {
		t.Error("empty level must be disabled")
	}
	if !(TraceConfig{Level: TraceLevelOperations}).Enabled() {
		t.Error("operations level must be enabled")
	}
}
