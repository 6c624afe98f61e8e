package user

import (
	"strings"
	"time"
)

// LoginPolicy holds the login rate-limit settings.
type LoginPolicy struct {
	MaxAttempts   int
	BlockDuration time.Duration
	ResetAfter    time.Duration
}

// AttemptIdentifier builds the rate-limit key of a login: the lowercased login name and the client IP.
func AttemptIdentifier(login, ip string) string {
	return strings.ToLower(strings.TrimSpace(login)) + "|" + ip
}

// IsBlocked reports whether the identifier is still blocked at `now`.
func (la LoginAttempt) IsBlocked(now time.Time) bool {
	return now.Before(la.BlockedUntil)
}

// registerFailure returns the attempt updated with one more failure at `now`.
func (la LoginAttempt) registerFailure(now time.Time, policy LoginPolicy) LoginAttempt {
	if la.Attempts > 0 && now.Sub(la.LastAttemptAt) >= policy.ResetAfter {
		la.Attempts = 0
	}
	if !la.BlockedUntil.IsZero() && !la.IsBlocked(now) {
		// a finished block starts a fresh window
		la.Attempts = 0
		la.BlockedUntil = time.Time{}
	}
	la.Attempts++
	la.LastAttemptAt = now
	if la.Attempts >= policy.MaxAttempts {
		la.BlockedUntil = now.Add(policy.BlockDuration)
	}
	return la
}
