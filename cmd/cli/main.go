package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/limaJavier/satportfolio/pkg/config"
	"github.com/limaJavier/satportfolio/pkg/metrics"
	"github.com/limaJavier/satportfolio/pkg/portfolio"
	"github.com/limaJavier/satportfolio/pkg/sat"
	"github.com/limaJavier/satportfolio/pkg/sharing"
	"github.com/limaJavier/satportfolio/pkg/solver"
	"github.com/limaJavier/satportfolio/pkg/synclog"
)

const (
	exitSatisfiable   = 10
	exitUnsatisfiable = 20
	exitUnknown       = 0
	exitError         = 1

	// configFileName is looked up next to the executable when --config is not given.
	configFileName = "config.json"
)

type solveFlags struct {
	configPath  string
	adapters    int
	engines     []string
	strategy    string
	fanout      int
	clusterSize int
	timeout     time.Duration
	seed        int64
	noModel     bool
	verbose     bool
	jsonLog     bool
	metricsAddr string
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	exitCode := exitUnknown
	root := &cobra.Command{
		Use:           "portfolio",
		Short:         "Portfolio-parallel SAT solver with clause sharing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSolveCommand(stdout, stderr, &exitCode))
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "c error: %v\n", err)
		return exitError
	}
	return exitCode
}

func newSolveCommand(stdout, stderr io.Writer, exitCode *int) *cobra.Command {
	var flags solveFlags
	cmd := &cobra.Command{
		Use:   "solve [flags] FILE",
		Short: "Solve a DIMACS CNF formula",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			code, err := solve(cmd.Context(), cfg, flags, args[0], stdout, stderr)
			*exitCode = code
			return err
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", fmt.Sprintf("Path to a JSON or YAML configuration file; defaults to %s next to the executable when present", configFileName))
	cmd.Flags().IntVarP(&flags.adapters, "adapters", "c", 0, "Number of adapters, where 0 uses one per CPU")
	cmd.Flags().StringSliceVar(&flags.engines, "engines", nil, fmt.Sprintf("Engines cycled over the adapters. Allowed values are: %s", strings.Join(solver.Engines(), ", ")))
	cmd.Flags().StringVar(&flags.strategy, "strategy", "", fmt.Sprintf("Clause sharing strategy. Allowed values are: %s", strings.Join(lo.Map(sharing.Kinds, func(kind sharing.Kind, _ int) string { return string(kind) }), ", ")))
	cmd.Flags().IntVar(&flags.fanout, "fanout", 0, "Consumers reached by each clause under the fanout strategy")
	cmd.Flags().IntVar(&flags.clusterSize, "cluster-size", 0, "Adapters per cluster under the hierarchical strategy")
	cmd.Flags().DurationVarP(&flags.timeout, "timeout", "t", 0, "Wall-clock limit of the run, where 0 means none")
	cmd.Flags().Int64Var(&flags.seed, "seed", 0, "Diversification seed base")
	cmd.Flags().BoolVar(&flags.noModel, "no-model", false, "Do not print the model of satisfiable formulas")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log at debug level")
	cmd.Flags().BoolVar(&flags.jsonLog, "json-log", false, "Log as JSON")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

// loadConfig reads the configuration file and applies the flags the user set on top of it.
func loadConfig(cmd *cobra.Command, flags solveFlags) (config.Config, error) {
	cfg := config.Default()
	configPath := flags.configPath
	if configPath == "" {
		configPath = defaultConfigPath()
	}
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("adapters") {
		cfg.Adapters = flags.adapters
	}
	if changed("engines") {
		cfg.Engines = lo.Map(flags.engines, func(engine string, _ int) string { return strings.ToLower(engine) })
	}
	if changed("strategy") {
		cfg.Sharing.Kind = sharing.Kind(strings.ToLower(flags.strategy))
	}
	if changed("fanout") {
		cfg.Sharing.Fanout = flags.fanout
	}
	if changed("cluster-size") {
		cfg.Sharing.ClusterSize = flags.clusterSize
	}
	if changed("timeout") {
		cfg.Timeout = flags.timeout
	}
	if changed("seed") {
		cfg.SeedBase = flags.seed
	}
	if flags.verbose {
		cfg.LogLevel = logrus.DebugLevel.String()
	}
	return cfg, cfg.Validate()
}

// defaultConfigPath returns the config file beside the executable, or "" when there is none.
func defaultConfigPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	files, err := os.ReadDir(path.Dir(execPath))
	if err != nil {
		return ""
	}
	fileNames := lo.Map(files, func(file os.DirEntry, _ int) string { return file.Name() })
	if !slices.Contains(fileNames, configFileName) {
		return ""
	}
	return path.Join(path.Dir(execPath), configFileName)
}

func newLogger(cfg config.Config, jsonLog bool, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if jsonLog {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func solve(ctx context.Context, cfg config.Config, flags solveFlags, file string, stdout, stderr io.Writer) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	log := synclog.New(newLogger(cfg, flags.jsonLog, stderr))

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	if flags.metricsAddr != "" {
		server := &http.Server{
			Addr:              flags.metricsAddr,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("metrics server stopped: %v", err)
			}
		}()
		defer server.Close()
	}

	formula, err := sat.ReadDIMACSFile(file)
	if err != nil {
		return exitError, err
	}
	p, err := portfolio.Build(cfg, formula, log, m)
	if err != nil {
		return exitError, err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	result, err := p.Solve(ctx)
	if err != nil {
		return exitError, err
	}

	fmt.Fprintf(stdout, "c adapters %d, strategy %s, elapsed %v\n", len(p.Adapters()), cfg.Sharing.Kind, result.Elapsed.Round(time.Millisecond))
	if result.Winner != portfolio.NoWinner {
		fmt.Fprintf(stdout, "c winner %d (%s)\n", result.Winner, result.Engine)
	}
	fmt.Fprintf(stdout, "c clauses published %d, duplicates %d, rounds %d\n", result.Stats.Clauses.Published, result.Stats.Clauses.Duplicates, result.Stats.Rounds)

	switch result.Status {
	case solver.Sat:
		fmt.Fprintln(stdout, "s SATISFIABLE")
		if !flags.noModel {
			fmt.Fprintln(stdout, completeModel(result.Model, formula.Variables))
		}
		log.Model(result.Model.String())
		return exitSatisfiable, nil
	case solver.Unsat:
		fmt.Fprintln(stdout, "s UNSATISFIABLE")
		return exitUnsatisfiable, nil
	default:
		fmt.Fprintln(stdout, "s UNKNOWN")
		return exitUnknown, nil
	}
}

// completeModel assigns false to the variables a model leaves out, so every declared variable is printed.
func completeModel(model sat.Model, variables uint64) sat.Model {
	complete := make(sat.Model, variables)
	for variable := int64(1); variable <= int64(variables); variable++ {
		complete[variable] = model[variable]
	}
	return complete
}
