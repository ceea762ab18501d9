package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const numberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newOrderNumber builds a human-readable reference such as ORD-7GK2M9XQ4T.
// The alphabet drops easily confused characters (0/O, 1/I).
func newOrderNumber(prefix string, length int) (string, error) {
	if length <= 0 {
		length = 10
	}
	var sb strings.Builder
	max := big.NewInt(int64(len(numberAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating order number: %w", err)
		}
		sb.WriteByte(numberAlphabet[n.Int64()])
	}
	return prefix + "-" + sb.String(), nil
}
