package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kadsim/kadsim/sim"
)

// LoadConfig reads a YAML simulation config. Fields the file omits keep their
// default values; unknown fields are an error so typos do not go unnoticed.
func LoadConfig(path string) (sim.SimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sim.SimConfig{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return sim.SimConfig{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes YAML over the defaults with strict field checking.
func ParseConfig(data []byte) (sim.SimConfig, error) {
	cfg := sim.DefaultSimConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return sim.SimConfig{}, fmt.Errorf("parsing YAML: %w", err)
	}
	return cfg, nil
}
