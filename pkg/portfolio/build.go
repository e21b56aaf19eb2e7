package portfolio

import (
	"github.com/pkg/errors"

	"github.com/limaJavier/satportfolio/pkg/config"
	"github.com/limaJavier/satportfolio/pkg/metrics"
	"github.com/limaJavier/satportfolio/pkg/sat"
	"github.com/limaJavier/satportfolio/pkg/solver"
	"github.com/limaJavier/satportfolio/pkg/synclog"
)

// Build validates cfg and formula and creates the configured adapters, cycling cfg.Engines. An
// adapter's role is its index among the adapters of the same engine, its seed SeedBase plus its id.
func Build(cfg config.Config, formula sat.SAT, log *synclog.Log, m *metrics.Metrics) (*Portfolio, error) {
	if log == nil {
		log = synclog.Discard()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := formula.Validate(); err != nil {
		return nil, err
	}

	count := cfg.AdapterCount()
	opts := cfg.SolverOptions(log)
	adapters := make([]solver.Adapter, 0, count)
	roles := make(map[string]int)
	for id := range count {
		engine := cfg.Engines[id%len(cfg.Engines)]
		adapter, err := solver.New(engine, id, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot create adapter %d", id)
		}
		if err := adapter.LoadFormula(formula); err != nil {
			return nil, err
		}
		adapter.Diversify(cfg.SeedBase+int64(id), roles[engine])
		roles[engine]++
		adapters = append(adapters, adapter)
	}

	return New(formula, adapters, Options{
		Timeout:          cfg.Timeout,
		InterruptTimeout: cfg.InterruptTimeout,
		Sharing:          cfg.Sharing,
	}, log, m), nil
}
