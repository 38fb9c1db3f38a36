package generator

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// ShareTokenLength is the length of public link tokens.
const ShareTokenLength = 15

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Token returns a random string of length characters drawn from [a-zA-Z0-9].
func Token(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid token length %d", length)
	}

	max := big.NewInt(int64(len(tokenAlphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = tokenAlphabet[n.Int64()]
	}

	return string(b), nil
}

// ShareToken returns a new public link token.
func ShareToken() (string, error) {
	return Token(ShareTokenLength)
}
