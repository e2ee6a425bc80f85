// Package rng draws cryptographically uniform integers and strings from
// the OS entropy source, free of modulo bias.
package rng

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// max63 is the largest value a 63-bit unsigned draw can produce.
const max63 = 1<<63 - 1

// UniformIn returns an integer drawn uniformly from [lo, hi]. lo and hi
// must satisfy 0 <= lo <= hi; if lo == hi the draw degenerates to that
// value without touching the entropy source, mirroring kloak's
// random_between short-circuit.
func UniformIn(lo, hi int64) (int64, error) {
	if lo < 0 || hi < lo {
		return 0, fmt.Errorf("rng: invalid range [%d, %d]", lo, hi)
	}
	if lo == hi {
		return lo, nil
	}
	span := hi - lo + 1
	limit := max63 - (max63 % span)
	for {
		v, err := draw63()
		if err != nil {
			return 0, fmt.Errorf("rng: read entropy source: %w", err)
		}
		if v >= limit {
			continue
		}
		return lo + v%span, nil
	}
}

// RandomAlpha returns an n-character string drawn uniformly from
// [A-Za-z], using the same rejection strategy as UniformIn.
func RandomAlpha(n int) (string, error) {
	out := make([]byte, n)
	for i := range out {
		idx, err := UniformIn(0, int64(len(alphabet)-1))
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx]
	}
	return string(out), nil
}

// draw63 reads 8 bytes from the OS entropy source and returns them as a
// non-negative 63-bit value (the top bit is cleared).
func draw63() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(buf[:])
	return int64(v &^ (1 << 63)), nil
}
