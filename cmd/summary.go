package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/kadsim/kadsim/sim"
	"github.com/kadsim/kadsim/sim/trace"
)

// Report is what a run writes to its summary file.
type Report struct {
	Summary *sim.Summary        `json:"summary"`
	Trace   *trace.TraceSummary `json:"trace,omitempty"`
}

// WriteReport writes r as indented JSON to path, zstd-compressed when path ends in .zst.
func WriteReport(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	if isCompressed(path) {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("creating zstd encoder: %w", err)
		}
		data = enc.EncodeAll(data, nil)
		if err := enc.Close(); err != nil {
			return fmt.Errorf("closing zstd encoder: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing summary %s: %w", path, err)
	}
	return nil
}

// ReadReport loads a summary file written by WriteReport.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading summary %s: %w", path, err)
	}
	if isCompressed(path) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer dec.Close()
		if data, err = dec.DecodeAll(data, nil); err != nil {
			return nil, fmt.Errorf("decompressing summary %s: %w", path, err)
		}
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding summary %s: %w", path, err)
	}
	if r.Summary == nil {
		return nil, fmt.Errorf("summary %s has no metrics", path)
	}
	return &r, nil
}

// PrintReport writes a human-readable rendering of r.
func PrintReport(w io.Writer, r *Report) {
	r.Summary.Print(w)
	if r.Trace == nil {
		return
	}
	fmt.Fprintln(w, "=== Trace Summary ===")
	fmt.Fprintf(w, "Records              : %d (%d distinct targets, %d initiators)\n",
		r.Trace.TotalRecords, r.Trace.UniqueTargets, len(r.Trace.InitiatorCounts))
	kinds := make([]string, 0, len(r.Trace.ByKind))
	for k := range r.Trace.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		ks := r.Trace.ByKind[k]
		fmt.Fprintf(w, "  %-8s: %d records, %d succeeded, %d from cache, hops mean %.2f max %d\n",
			k, ks.Count, ks.Succeeded, ks.FromCache, ks.MeanHops, ks.MaxHops)
	}
}

func isCompressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}
