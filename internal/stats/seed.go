package stats

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

// DeterministicSeed derives a uint64 seed from an experiment id and a UTC
// date. Identical inputs on the same day always yield the same seed; the
// date component re-randomizes the allocation daily.
func DeterministicSeed(experimentID string, date time.Time) uint64 {
	input := fmt.Sprintf("%s_%s", experimentID, date.UTC().Format("2006-01-02"))
	sum := sha256.Sum256([]byte(input))
	// low 32 bits of the digest, per the source algorithm.
	low32 := binary.BigEndian.Uint32(sum[len(sum)-4:])
	return uint64(low32)
}
