package clause

import (
	"encoding/binary"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes the literal set: the result does not depend on literal order or repetition.
// It places clauses in dedup buckets only; Equal is the final arbiter.
func Fingerprint(literals []int64) uint64 {
	if slices.IsSortedFunc(literals, compareLiterals) {
		return fingerprintSorted(slices.Compact(slices.Clone(literals)))
	}
	return fingerprintSorted(Normalize(literals))
}

func fingerprintSorted(literals []int64) uint64 {
	digest := xxhash.New()
	var buffer [8]byte
	for _, literal := range literals {
		binary.LittleEndian.PutUint64(buffer[:], uint64(literal))
		digest.Write(buffer[:])
	}
	return digest.Sum64()
}
