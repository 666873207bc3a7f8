// Package randcode produces short codes that are easy to read back and type:
// digits and letters without 0, 1, l, o, I and O.
package randcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const Alphabet = "23456789abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"

var alphabetLen = big.NewInt(int64(len(Alphabet)))

// Generate returns n symbols drawn uniformly from Alphabet.
func Generate(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("randcode: invalid length %d", n)
	}
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("randcode: %w", err)
		}
		out[i] = Alphabet[idx.Int64()]
	}
	return string(out), nil
}

// Generator binds a fixed length so callers can inject it.
type Generator struct {
	Length int
}

func (g Generator) Next() (string, error) {
	return Generate(g.Length)
}
