package trace

// TraceLevel controls the verbosity of operation tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelOperations captures every resolved operation and query.
	TraceLevelOperations TraceLevel = "operations"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:       true,
	TraceLevelOperations: true,
	"":                   true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel `yaml:"level"`
}

// Enabled reports whether records should be collected.
func (c TraceConfig) Enabled() bool {
	return c.Level == TraceLevelOperations
}

// SimulationTrace collects operation records during a simulation.
type SimulationTrace struct {
	Config     TraceConfig
	Operations []OperationRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:     config,
		Operations: make([]OperationRecord, 0),
	}
}

// Record appends an operation record.
func (st *SimulationTrace) Record(record OperationRecord) {
	st.Operations = append(st.Operations, record)
}
