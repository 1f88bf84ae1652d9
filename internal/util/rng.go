package util

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"time"
)

// NewRNG creates a seeded pseudo-random source. A seed of 0 selects a
// random seed from OS entropy, so repeated runs differ unless the caller
// pins the seed explicitly.
func NewRNG(seed uint64) *rand.Rand {
	if seed == 0 {
		var b [8]byte
		if _, err := crand.Read(b[:]); err == nil {
			seed = binary.LittleEndian.Uint64(b[:])
		} else {
			seed = uint64(time.Now().UnixNano())
		}
	}
	return rand.New(rand.NewPCG(seed, seed))
}
