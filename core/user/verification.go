package user

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"
)

const codeDigits = 6

var codeUpperBound = big.NewInt(1_000_000)

// generateCode returns a random, zero-padded 6-digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeUpperBound)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

func codesEqual(expected, given string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}

// canResend reports whether a new code may be sent for ev, and how long to wait otherwise.
func (ev EmailVerification) canResend(now time.Time, interval time.Duration) (bool, time.Duration) {
	next := ev.SentAt.Add(interval)
	if now.Before(next) {
		return false, next.Sub(now)
	}
	return true, 0
}
