package solver

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/limaJavier/satportfolio/pkg/clause"
	"github.com/limaJavier/satportfolio/pkg/sat"
)

// externalEngine describes how to drive a competition solver binary.
type externalEngine struct {
	binary string
	args   func(seed int64) []string
	// fileInput engines read the formula from a file given as first argument instead of stdin.
	fileInput bool
	// modelFile engines write "SAT" and the model to a file given after the input file.
	modelFile bool
}

var externalEngines = map[string]externalEngine{
	"kissat": {
		binary: "kissat",
		args: func(seed int64) []string {
			return []string{"-q", "--relaxed", fmt.Sprintf("--seed=%d", seed)}
		},
	},
	"cadical": {
		binary: "cadical",
		args: func(seed int64) []string {
			return []string{"-q", fmt.Sprintf("--seed=%d", seed)}
		},
	},
	"cryptominisat": {
		binary: "cryptominisat5",
		args: func(seed int64) []string {
			return []string{"--verb", "0", "--random", strconv.FormatInt(seed, 10)}
		},
	},
	"minisat": {
		binary: "minisat",
		args: func(seed int64) []string {
			return []string{"-verb=0", fmt.Sprintf("-rnd-seed=%d", seed+1)}
		},
		fileInput: true,
		modelFile: true,
	},
	"glucose": {
		binary: "glucose-simp",
		args: func(seed int64) []string {
			return []string{"-verb=0", fmt.Sprintf("-rnd-seed=%d", seed+1)}
		},
		fileInput: true,
		modelFile: true,
	},
	"slime": {
		binary:    "slime",
		args:      func(int64) []string { return nil },
		fileInput: true,
	},
	"ortoolsat": {
		binary:    "ortoolsat",
		args:      func(int64) []string { return nil },
		fileInput: true,
	},
}

// externalSolver runs a solver binary as a child process that is killed on interrupt. Imports are
// dropped and nothing is exported: the process is opaque once started.
type externalSolver struct {
	base
	launch externalEngine

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewExternalSolver(engine string, id int, opts Options) Adapter {
	s := &externalSolver{launch: externalEngines[engine]}
	s.setup(id, engine, opts)
	return s
}

// Executable resolves the binary of the engine: the configured path or the default name looked up
// in PATH.
func Executable(engine string, executables map[string]string) (string, error) {
	launch, ok := externalEngines[engine]
	if !ok {
		return "", errors.Wrapf(ErrUnknownEngine, "%q is not an external engine", engine)
	}
	path := launch.binary
	if configured, ok := executables[engine]; ok && configured != "" {
		path = configured
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", errors.Wrapf(ErrExecutableMissing, "%s: %v", path, err)
	}
	return resolved, nil
}

func (s *externalSolver) Interrupt() {
	s.base.Interrupt()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *externalSolver) ImportClauses([]*clause.Clause) {}

func (s *externalSolver) Solve() Verdict {
	return s.run(func() Verdict {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		s.mu.Lock()
		s.cancel = cancel
		s.mu.Unlock()
		if s.stopped() {
			return Verdict{Status: Interrupted}
		}

		path, err := Executable(s.engine, s.opts.Executables)
		if err != nil {
			return s.fault(err)
		}
		s.log.AdapterStarted(s.id, s.engine, s.seed)

		verdict, err := s.execute(ctx, path)
		if s.stopped() {
			return Verdict{Status: Interrupted}
		}
		if err != nil {
			return s.fault(err)
		}
		return verdict
	})
}

func (s *externalSolver) execute(ctx context.Context, path string) (Verdict, error) {
	dimacs := s.formula.ToDIMACS() // Transform SAT into DIMACS-CNF string format
	seed := s.seed & 0x7fffffff

	cmd := exec.CommandContext(ctx, path, s.launch.args(seed)...)
	var outputFile string
	if s.launch.fileInput {
		inputFile, err := writeTempFile("dimacs-*.cnf", dimacs)
		if err != nil {
			return Verdict{}, err
		}
		defer os.Remove(inputFile)
		cmd.Args = append(cmd.Args, inputFile)

		if s.launch.modelFile {
			outputFile, err = writeTempFile(s.engine+"_output-*.txt", "")
			if err != nil {
				return Verdict{}, err
			}
			defer os.Remove(outputFile)
			cmd.Args = append(cmd.Args, outputFile)
		}
	} else {
		cmd.Stdin = strings.NewReader(dimacs) // Feed dimacs into the solver's standard input
	}

	var stdOut bytes.Buffer
	cmd.Stdout = &stdOut
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if cmd.ProcessState == nil {
		return Verdict{}, errors.Wrapf(err, "cannot start %s", s.engine)
	}
	// Exit-code of 10 stands for satisfiable and exit-code 20 stands for unsatisfiable
	switch cmd.ProcessState.ExitCode() {
	case 10:
	case 20:
		return Verdict{Status: Unsat}, nil
	default:
		return Verdict{}, errors.Errorf("%s execution failed: %v: %s", s.engine, err, stderr.String())
	}

	var solution sat.SATSolution
	if s.launch.modelFile {
		output, err := os.ReadFile(outputFile)
		if err != nil {
			return Verdict{}, errors.Wrap(err, "failed to read output file")
		}
		solution, err = parseModelFile(string(output))
		if err != nil {
			return Verdict{}, err
		}
	} else {
		solution, err = parseSolution(stdOut.String())
		if err != nil {
			return Verdict{}, err
		}
	}
	return Verdict{Status: Sat, Model: sat.ModelFromSolution(solution)}, nil
}

func writeTempFile(pattern, content string) (string, error) {
	file, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", errors.Wrap(err, "failed to create temporary file")
	}
	if _, err := file.WriteString(content); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", errors.Wrap(err, "failed to write temporary file")
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", errors.Wrap(err, "failed to close temporary file")
	}
	return file.Name(), nil
}

// parseSolution collects the literals of the competition "v" lines, up to the terminating 0.
func parseSolution(solverOutput string) (sat.SATSolution, error) {
	fields := lo.Reduce(
		lo.Filter(strings.Split(solverOutput, "\n"), func(line string, _ int) bool {
			return len(line) > 0 && line[0] == 'v'
		}),
		func(values []string, line string, _ int) []string {
			return append(values, strings.Fields(line[1:])...)
		},
		[]string{},
	)
	return parseLiterals(fields)
}

// parseModelFile reads the minisat result format: a status line followed by the literals.
func parseModelFile(output string) (sat.SATSolution, error) {
	fields := strings.Fields(output)
	if len(fields) > 0 && fields[0] == "SAT" {
		fields = fields[1:]
	}
	return parseLiterals(fields)
}

func parseLiterals(fields []string) (sat.SATSolution, error) {
	solution := make(sat.SATSolution, 0, len(fields))
	for _, field := range fields {
		value, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid literal %q in solver output", field)
		}
		if value == 0 {
			break
		}
		solution = append(solution, value)
	}
	return solution, nil
}
