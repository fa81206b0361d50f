package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kadsim/kadsim/sim"
	"github.com/kadsim/kadsim/sim/trace"
)

// runOptions holds the flags of the run command. Zero values never reach the
// config: only flags the user set override it.
type runOptions struct {
	configPath    string
	seed          int64
	horizon       int64
	nodes         int
	k             int
	alpha         int
	bits          int
	cacheCapacity int
	storeCapacity int64
	stores        int
	queries       int
	lookups       int
	datasetPath   string
	presence      string
	dropRate      float64
	traceLevel    string
	summaryOut    string
	logLevel      string
}

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "kadsim",
	Short: "Discrete-event simulator for Kademlia keyword search with result caching",
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation",
		Run: func(cmd *cobra.Command, args []string) {
			level, err := logrus.ParseLevel(opts.logLevel)
			if err != nil {
				logrus.Fatalf("Invalid log level: %s", opts.logLevel)
			}
			logrus.SetLevel(level)

			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			if err := runSimulation(cfg, cmd.OutOrStdout(), opts.summaryOut); err != nil {
				logrus.Fatalf("%v", err)
			}
		},
	}

	bindRunFlags(cmd, opts)
	return cmd
}

func bindRunFlags(cmd *cobra.Command, opts *runOptions) {
	defaults := sim.DefaultSimConfig()
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "YAML configuration file; flags override its values")
	f.Int64Var(&opts.seed, "seed", defaults.Seed, "Seed for every random stream of the run")
	f.Int64Var(&opts.horizon, "horizon", defaults.Horizon, "Total simulation horizon (in ticks)")
	f.IntVar(&opts.nodes, "nodes", defaults.Nodes, "Number of DHT nodes")
	f.IntVar(&opts.k, "k", defaults.Kad.K, "Replication factor and closest-set size")
	f.IntVar(&opts.alpha, "alpha", defaults.Kad.Alpha, "Maximum outstanding probes per lookup")
	f.IntVar(&opts.bits, "bits", defaults.Kad.Bits, "Keyspace width in bits (1-64)")
	f.IntVar(&opts.cacheCapacity, "cache-capacity", defaults.Node.CacheCapacity, "Result-cache entries per node (0 disables caching)")
	f.Int64Var(&opts.storeCapacity, "store-capacity", defaults.Node.StoreCapacity, "Storage units per node")
	f.IntVar(&opts.stores, "stores", defaults.Workload.Stores, "Number of generated store requests")
	f.IntVar(&opts.queries, "queries", defaults.Workload.Queries, "Number of generated keyword queries")
	f.IntVar(&opts.lookups, "lookups", defaults.Workload.Lookups, "Number of generated node lookups")
	f.StringVar(&opts.datasetPath, "dataset", "", "CSV dataset of keyword,\"doc1, doc2\",frequency rows (default synthetic)")
	f.StringVar(&opts.presence, "presence", defaults.Presence.Kind, "Presence index kind (cuckoo, exact)")
	f.Float64Var(&opts.dropRate, "drop-rate", defaults.Transport.DropRate, "Probability that a message is lost")
	f.StringVar(&opts.traceLevel, "trace", string(defaults.Trace.Level), "Trace level (none, operations)")
	f.StringVar(&opts.summaryOut, "summary-out", "", "Write the JSON summary to this path (zstd-compressed if it ends in .zst)")
	f.StringVar(&opts.logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
}

var summaryCmd = &cobra.Command{
	Use:   "summary <path>",
	Short: "Print a summary file written by run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := ReadReport(args[0])
		if err != nil {
			return err
		}
		PrintReport(cmd.OutOrStdout(), report)
		return nil
	},
}

// resolveConfig starts from the defaults or the config file and applies every flag the user set.
func resolveConfig(cmd *cobra.Command, opts *runOptions) (sim.SimConfig, error) {
	cfg := sim.DefaultSimConfig()
	if opts.configPath != "" {
		loaded, err := LoadConfig(opts.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("seed") {
		cfg.Seed = opts.seed
	}
	if changed("horizon") {
		cfg.Horizon = opts.horizon
	}
	if changed("nodes") {
		cfg.Nodes = opts.nodes
	}
	if changed("k") {
		cfg.Kad.K = opts.k
	}
	if changed("alpha") {
		cfg.Kad.Alpha = opts.alpha
	}
	if changed("bits") {
		cfg.Kad.Bits = opts.bits
	}
	if changed("cache-capacity") {
		cfg.Node.CacheCapacity = opts.cacheCapacity
	}
	if changed("store-capacity") {
		cfg.Node.StoreCapacity = opts.storeCapacity
	}
	if changed("stores") {
		cfg.Workload.Stores = opts.stores
	}
	if changed("queries") {
		cfg.Workload.Queries = opts.queries
	}
	if changed("lookups") {
		cfg.Workload.Lookups = opts.lookups
	}
	if changed("dataset") {
		cfg.Workload.DatasetPath = opts.datasetPath
	}
	if changed("presence") {
		cfg.Presence.Kind = opts.presence
	}
	if changed("drop-rate") {
		cfg.Transport.DropRate = opts.dropRate
	}
	if changed("trace") {
		cfg.Trace.Level = trace.TraceLevel(opts.traceLevel)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runSimulation runs one simulation, prints its metrics to out and writes the summary file if asked.
func runSimulation(cfg sim.SimConfig, out io.Writer, summaryPath string) error {
	started := time.Now()
	s, err := sim.NewSimulator(cfg)
	if err != nil {
		return err
	}
	s.Run()
	logrus.Infof("Simulation wall time: %s", time.Since(started))

	report := &Report{Summary: s.Summary()}
	if s.Trace() != nil {
		report.Trace = trace.Summarize(s.Trace())
	}
	PrintReport(out, report)
	if summaryPath == "" {
		return nil
	}
	if err := WriteReport(summaryPath, report); err != nil {
		return err
	}
	logrus.Infof("Summary written to %s", summaryPath)
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(summaryCmd)
}
