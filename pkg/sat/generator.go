package sat

import "math/rand/v2"

// GenerateKSAT builds a uniform random k-SAT formula from a fixed seed, so callers can reproduce it.
func GenerateKSAT(variables uint64, clauses, k int, seed uint64) SAT {
	random := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	satInstance := SAT{
		Variables: variables,
		Clauses:   make([][]int64, clauses),
	}

	for i := range clauses {
		chosen := make(map[int64]bool, k)
		clause := make([]int64, 0, k)
		for len(clause) < k && uint64(len(clause)) < variables {
			variable := 1 + random.Int64N(int64(variables))
			if chosen[variable] {
				continue
			}
			chosen[variable] = true
			if random.IntN(2) == 0 {
				variable = -variable
			}
			clause = append(clause, variable)
		}
		satInstance.Clauses[i] = clause
	}

	return satInstance
}

// Pigeonhole encodes placing every pigeon in a hole with at most one pigeon per hole. It is
// unsatisfiable when pigeons outnumber holes and hard for resolution as both grow.
func Pigeonhole(pigeons, holes int) SAT {
	variable := func(p, h int) int64 { return int64(p*holes + h + 1) }
	satInstance := SAT{Variables: uint64(pigeons * holes)}
	for p := range pigeons {
		clause := make([]int64, 0, holes)
		for h := range holes {
			clause = append(clause, variable(p, h))
		}
		satInstance.Clauses = append(satInstance.Clauses, clause)
	}
	for h := range holes {
		for p := range pigeons {
			for q := p + 1; q < pigeons; q++ {
				satInstance.Clauses = append(satInstance.Clauses, []int64{-variable(p, h), -variable(q, h)})
			}
		}
	}
	return satInstance
}
