package cdcl

import "math"

type RestartPolicy int

const (
	RestartLuby RestartPolicy = iota
	RestartGeometric
)

func (p RestartPolicy) String() string {
	if p == RestartGeometric {
		return "geometric"
	}
	return "luby"
}

const maxRestartBudget = 1 << 30

// luby returns the i-th term (1-based) of the Luby sequence 1 1 2 1 1 2 4 ...
func luby(i uint) uint {
	for k := 1; k < 32; k++ {
		if i == (1<<k)-1 {
			return 1 << (k - 1)
		}
	}
	k := 1
	for {
		if (1<<(k-1)) <= i && i < (1<<k)-1 {
			return luby(i - (1 << (k - 1)) + 1)
		}
		k++
	}
}

// conflictBudget is the number of conflicts allowed before the given restart.
func conflictBudget(policy RestartPolicy, base int, restart int) int {
	var budget float64
	switch policy {
	case RestartGeometric:
		budget = float64(base) * math.Pow(1.5, float64(restart))
	default:
		budget = float64(base) * float64(luby(uint(restart)+1))
	}
	if budget > maxRestartBudget {
		return maxRestartBudget
	}
	return int(budget)
}
