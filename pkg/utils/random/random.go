package random

import (
	"crypto/rand"
	"math/big"
)

// Ambiguous characters (0/O, 1/I) are excluded so codes survive being read
// out loud.
const letters = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Code returns a human-shareable code of the given length.
func Code(length int) string {
	if length <= 0 {
		return ""
	}
	max := big.NewInt(int64(len(letters)))
	runes := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			runes[i] = letters[0]
			continue
		}
		runes[i] = letters[n.Int64()]
	}
	return string(runes)
}
