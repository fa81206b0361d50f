package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadsim/kadsim/sim"
	"github.com/kadsim/kadsim/sim/trace"
)

func TestLoadConfig_OverridesOnlyGivenFields(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata", "small.yaml"))
	require.NoError(t, err)

	defaults := sim.DefaultSimConfig()
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 24, cfg.Nodes)
	assert.Equal(t, 4, cfg.Kad.K)
	assert.Equal(t, int64(400), cfg.Node.StoreCapacity)
	assert.Equal(t, trace.TraceLevelOperations, cfg.Trace.Level)
	// untouched sections keep their defaults
	assert.Equal(t, defaults.Transport.TimeoutFactor, cfg.Transport.TimeoutFactor)
	assert.Equal(t, defaults.Presence, cfg.Presence)
	assert.Equal(t, defaults.Workload.StoreInterval, cfg.Workload.StoreInterval)
	assert.NoError(t, cfg.Validate())
}

func TestParseConfig_RejectsUnknownFields(t *testing.T) {
	_, err := ParseConfig([]byte("nodes: 10\nreplication: 3\n"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("kad:\n  kk: 3\n"))
	assert.Error(t, err)
}

func TestParseConfig_EmptyGivesDefaults(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, sim.DefaultSimConfig(), cfg)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodes: [1, 2\n"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}
