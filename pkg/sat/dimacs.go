package sat

import (
	"io"
	"os"

	"github.com/go-air/gini/dimacs"
	"github.com/go-air/gini/z"
	"github.com/pkg/errors"
)

// Capacity hint gini passes to Init when the document has no problem line.
const headerlessVariables = 8192

// cnfVisitor collects the clauses reported by the gini DIMACS reader.
type cnfVisitor struct {
	sat      SAT
	declared uint64
	current  []int64
}

func (v *cnfVisitor) Init(variables, clauses int) {
	if variables != headerlessVariables || clauses != headerlessVariables*5 {
		v.declared = uint64(max(variables, 0))
	}
	v.sat.Clauses = make([][]int64, 0, max(min(clauses, 1<<20), 0))
}

func (v *cnfVisitor) Add(m z.Lit) {
	if m == z.LitNull {
		clause := v.current
		if clause == nil {
			clause = []int64{}
		}
		v.sat.Clauses = append(v.sat.Clauses, clause)
		v.current = nil
		return
	}
	literal := int64(m.Dimacs())
	if uint64(abs(literal)) > v.sat.Variables {
		v.sat.Variables = uint64(abs(literal))
	}
	v.current = append(v.current, literal)
}

func (v *cnfVisitor) Eof() {
	v.flush()
}

// flush closes a last clause that lacks its terminating zero and applies the declared variable count.
func (v *cnfVisitor) flush() {
	if len(v.current) > 0 {
		v.sat.Clauses = append(v.sat.Clauses, v.current)
		v.current = nil
	}
	v.sat.Variables = max(v.sat.Variables, v.declared)
}

// ReadDIMACS parses a DIMACS-CNF document.
func ReadDIMACS(r io.Reader) (SAT, error) {
	visitor := &cnfVisitor{}
	if err := dimacs.ReadCnf(r, visitor); err != nil {
		return SAT{}, &FormulaError{Reason: err.Error()}
	}
	visitor.flush()
	if err := visitor.sat.Validate(); err != nil {
		return SAT{}, err
	}
	return visitor.sat, nil
}

func ReadDIMACSFile(fileName string) (SAT, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return SAT{}, errors.Wrapf(err, "could not open file %q", fileName)
	}
	defer file.Close()

	sat, err := ReadDIMACS(file)
	if err != nil {
		return SAT{}, errors.Wrapf(err, "could not parse %q", fileName)
	}
	return sat, nil
}
