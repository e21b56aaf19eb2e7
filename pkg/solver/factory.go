package solver

import (
	"slices"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

type Factory func(id int, opts Options) Adapter

var engines = map[string]Factory{
	"cdcl":          NewCDCLSolver,
	"gini":          NewGiniSolver,
	"walksat":       NewWalkSATSolver,
	"kissat":        externalFactory("kissat"),
	"cadical":       externalFactory("cadical"),
	"cryptominisat": externalFactory("cryptominisat"),
	"minisat":       externalFactory("minisat"),
	"glucose":       externalFactory("glucose"),
	"slime":         externalFactory("slime"),
	"ortoolsat":     externalFactory("ortoolsat"),
}

// New creates an adapter running the named engine.
func New(engine string, id int, opts Options) (Adapter, error) {
	factory, ok := engines[engine]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEngine, "%q", engine)
	}
	return factory(id, opts), nil
}

// Engines lists the engine names New accepts.
func Engines() []string {
	names := lo.Keys(engines)
	slices.Sort(names)
	return names
}

func externalFactory(engine string) Factory {
	return func(id int, opts Options) Adapter {
		return NewExternalSolver(engine, id, opts)
	}
}
