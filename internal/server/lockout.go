// lockout.go - Account lockout after repeated failed logins.
//
// State is in-memory and keyed by normalized email; a restart clears it.
// Lockout responses use the same 401 message as a wrong password so the
// endpoint stays silent about which accounts exist.
package server

import (
	"sync"
	"time"
)

type loginAttempt struct {
	count       int
	lastAttempt time.Time
	lockedUntil time.Time
}

// accountLockout counts failed logins per email inside a sliding window and
// locks the account once the threshold is hit.
type accountLockout struct {
	mu          sync.RWMutex
	attempts    map[string]*loginAttempt
	maxAttempts int
	lockFor     time.Duration
	window      time.Duration
}

func newAccountLockout(maxAttempts int, lockFor, window time.Duration) *accountLockout {
	al := &accountLockout{
		attempts:    make(map[string]*loginAttempt),
		maxAttempts: maxAttempts,
		lockFor:     lockFor,
		window:      window,
	}
	go al.cleanup()
	return al
}

// recordFailure registers a failed login and reports whether the account is
// now locked.
func (al *accountLockout) recordFailure(email string) bool {
	al.mu.Lock()
	defer al.mu.Unlock()

	now := time.Now()
	a, ok := al.attempts[email]
	if !ok {
		a = &loginAttempt{}
		al.attempts[email] = a
	}

	if now.Sub(a.lastAttempt) > al.window {
		a.count = 0
	}
	a.count++
	a.lastAttempt = now

	if a.count >= al.maxAttempts {
		a.lockedUntil = now.Add(al.lockFor)
		return true
	}
	return false
}

// recordSuccess clears the failure history for an email.
func (al *accountLockout) recordSuccess(email string) {
	al.mu.Lock()
	defer al.mu.Unlock()
	delete(al.attempts, email)
}

// isLocked reports whether the account is currently locked out.
func (al *accountLockout) isLocked(email string) bool {
	al.mu.RLock()
	defer al.mu.RUnlock()

	a, ok := al.attempts[email]
	if !ok {
		return false
	}
	return !a.lockedUntil.IsZero() && time.Now().Before(a.lockedUntil)
}

// cleanup drops stale entries so the map does not grow with every email ever
// tried.
func (al *accountLockout) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		al.mu.Lock()
		now := time.Now()
		for email, a := range al.attempts {
			if (a.lockedUntil.IsZero() || now.After(a.lockedUntil)) &&
				now.Sub(a.lastAttempt) > 2*al.window {
				delete(al.attempts, email)
			}
		}
		al.mu.Unlock()
	}
}
