package sdruntime

import (
	"crypto/rand"
	"encoding/binary"
	"math"
)

// RandomSeed returns a non-negative seed that fits in 32 bits, the range
// every supported backend accepts.
func RandomSeed() int64 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 42
	}
	return int64(binary.LittleEndian.Uint32(buf[:]) & math.MaxInt32)
}
