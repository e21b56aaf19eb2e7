package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/limaJavier/satportfolio/pkg/config"
	"github.com/limaJavier/satportfolio/pkg/portfolio"
	"github.com/limaJavier/satportfolio/pkg/sat"
	"github.com/limaJavier/satportfolio/pkg/sharing"
	"github.com/limaJavier/satportfolio/pkg/solver"
)

const (
	satisfiable   = "satisfiable"
	unsatisfiable = "unsatisfiable"
	timeout       = "timeout"
)

type Instance struct {
	Name      string
	Variables uint64
	Clauses   int
	formula   sat.SAT
}

type BenchmarkResult struct {
	Strategy   sharing.Kind
	Instance   Instance
	Adapters   int
	Duration   int64
	Published  uint64
	Duplicates uint64
	Rounds     int
	Winner     string
	Result     string
}

type benchmarkFlags struct {
	dir        string
	out        string
	timeout    time.Duration
	adapters   int
	engines    []string
	strategies []string
}

func main() {
	if err := newCommand().Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func newCommand() *cobra.Command {
	var flags benchmarkFlags
	cmd := &cobra.Command{
		Use:          "benchmark",
		Short:        "Run every sharing strategy over a directory of CNF files and write a CSV report",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			instances, err := getInstances(flags.dir)
			if err != nil {
				return err
			}
			strategies := lo.Map(flags.strategies, func(strategy string, _ int) sharing.Kind { return sharing.Kind(strategy) })

			results := make([]BenchmarkResult, 0, len(instances)*len(strategies))
			for _, instance := range instances {
				for _, strategy := range strategies {
					logrus.Infof("Benchmarking instance \"%v\" with strategy \"%v\"", instance.Name, strategy)
					cfg := config.Default()
					cfg.Adapters = flags.adapters
					cfg.Engines = flags.engines
					cfg.Timeout = flags.timeout
					cfg.LogLevel = logrus.WarnLevel.String()
					cfg.Sharing.Kind = strategy

					result, err := measure(cmd.Context(), cfg, instance)
					if err != nil {
						return errors.Wrapf(err, "instance %s with strategy %s", instance.Name, strategy)
					}
					results = append(results, result)
				}
			}
			return toCsv(flags.out, results)
		},
	}

	cmd.Flags().StringVar(&flags.dir, "dir", ".", "Directory holding the .cnf instances")
	cmd.Flags().StringVar(&flags.out, "out", "benchmark_results.csv", "Path of the CSV report")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 5*time.Minute, "Wall-clock limit per run")
	cmd.Flags().IntVar(&flags.adapters, "adapters", 0, "Number of adapters, where 0 uses one per CPU")
	cmd.Flags().StringSliceVar(&flags.engines, "engines", []string{"cdcl", "gini"}, "Engines cycled over the adapters")
	cmd.Flags().StringSliceVar(&flags.strategies, "strategies", lo.Map(sharing.Kinds, func(kind sharing.Kind, _ int) string { return string(kind) }), "Strategies to compare")
	return cmd
}

func getInstances(directory string) ([]Instance, error) {
	files, err := os.ReadDir(directory)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read directory")
	}

	instances := make([]Instance, 0)
	for _, file := range files {
		if file.IsDir() || !strings.EqualFold(filepath.Ext(file.Name()), ".cnf") {
			continue
		}
		filename := filepath.Join(directory, file.Name())
		formula, err := sat.ReadDIMACSFile(filename)
		if err != nil {
			return nil, err
		}
		instances = append(instances, Instance{
			Name:      filename,
			Variables: formula.Variables,
			Clauses:   len(formula.Clauses),
			formula:   formula,
		})
	}
	return instances, nil
}

func measure(ctx context.Context, cfg config.Config, instance Instance) (BenchmarkResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	p, err := portfolio.Build(cfg, instance.formula, nil, nil)
	if err != nil {
		return BenchmarkResult{}, err
	}
	result, err := p.Solve(ctx)
	if err != nil {
		return BenchmarkResult{}, err
	}

	benchmark := BenchmarkResult{
		Strategy:   cfg.Sharing.Kind,
		Instance:   instance,
		Adapters:   len(p.Adapters()),
		Duration:   result.Elapsed.Milliseconds(),
		Published:  result.Stats.Clauses.Published,
		Duplicates: result.Stats.Clauses.Duplicates,
		Rounds:     result.Stats.Rounds,
		Result:     timeout,
	}
	if result.Winner != portfolio.NoWinner {
		benchmark.Winner = fmt.Sprintf("%d:%s", result.Winner, result.Engine)
	}
	switch result.Status {
	case solver.Sat:
		benchmark.Result = satisfiable
	case solver.Unsat:
		benchmark.Result = unsatisfiable
	}
	return benchmark, nil
}

func toCsv(path string, results []BenchmarkResult) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "cannot create CSV file")
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"Strategy", "Instance", "Variables", "Clauses", "Adapters", "Duration(ms)", "Published", "Duplicates", "Rounds", "Winner", "Result"}
	if err := writer.Write(header); err != nil {
		return errors.Wrap(err, "cannot write CSV header")
	}

	for _, result := range results {
		record := []string{
			string(result.Strategy),
			result.Instance.Name,
			fmt.Sprintf("%d", result.Instance.Variables),
			fmt.Sprintf("%d", result.Instance.Clauses),
			fmt.Sprintf("%d", result.Adapters),
			fmt.Sprintf("%d", result.Duration),
			fmt.Sprintf("%d", result.Published),
			fmt.Sprintf("%d", result.Duplicates),
			fmt.Sprintf("%d", result.Rounds),
			result.Winner,
			result.Result,
		}
		if err := writer.Write(record); err != nil {
			return errors.Wrap(err, "cannot write CSV record")
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "cannot flush CSV file")
}
