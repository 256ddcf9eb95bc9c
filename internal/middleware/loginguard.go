// loginguard.go implements the per-account failed-login guard. Unlike the
// request rate limiter, this is keyed by the submitted email so an attacker
// rotating source IPs still locks out after the attempt budget. The login
// handler consults the guard before any password verification, so a locked
// account costs no bcrypt work.
package middleware

import (
	"strings"
	"sync"
	"time"

	"github.com/portal-boost/portal/internal/telemetry"
)

// LoginGuardConfig holds configuration for the failed-attempt guard.
type LoginGuardConfig struct {
	// MaxAttempts is the number of failed logins allowed per window.
	MaxAttempts int
	// Window is how long failures count against the budget.
	Window time.Duration
}

// DefaultLoginGuardConfig returns the portal default: 5 failed attempts per
// 15 minutes per account.
func DefaultLoginGuardConfig() LoginGuardConfig {
	return LoginGuardConfig{
		MaxAttempts: 5,
		Window:      15 * time.Minute,
	}
}

// LoginGuard tracks failed login attempts per email address.
type LoginGuard struct {
	config   LoginGuardConfig
	mu       sync.Mutex
	attempts map[string][]time.Time
	stopCh   chan struct{}
}

// NewLoginGuard creates a guard and starts its cleanup goroutine.
func NewLoginGuard(config LoginGuardConfig) *LoginGuard {
	g := &LoginGuard{
		config:   config,
		attempts: make(map[string][]time.Time),
		stopCh:   make(chan struct{}),
	}
	go g.cleanup()
	return g
}

// cleanup periodically drops emails whose failures have all aged out.
func (g *LoginGuard) cleanup() {
	ticker := time.NewTicker(g.config.Window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.mu.Lock()
			cutoff := time.Now().Add(-g.config.Window)
			for email, times := range g.attempts {
				recent := pruneBefore(times, cutoff)
				if len(recent) == 0 {
					delete(g.attempts, email)
				} else {
					g.attempts[email] = recent
				}
			}
			g.mu.Unlock()
		case <-g.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine.
func (g *LoginGuard) Stop() {
	close(g.stopCh)
}

// Blocked reports whether the account has exhausted its attempt budget.
// A blocked check also increments the locked_out metric.
func (g *LoginGuard) Blocked(email string) bool {
	key := normalizeEmail(email)

	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := time.Now().Add(-g.config.Window)
	recent := pruneBefore(g.attempts[key], cutoff)
	g.attempts[key] = recent

	if len(recent) >= g.config.MaxAttempts {
		telemetry.LoginAttemptsTotal.WithLabelValues("locked_out").Inc()
		return true
	}
	return false
}

// RecordFailure registers one failed attempt for the account.
func (g *LoginGuard) RecordFailure(email string) {
	key := normalizeEmail(email)

	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := time.Now().Add(-g.config.Window)
	g.attempts[key] = append(pruneBefore(g.attempts[key], cutoff), time.Now())
}

// Clear wipes the account's failure history after a successful login.
func (g *LoginGuard) Clear(email string) {
	key := normalizeEmail(email)

	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.attempts, key)
}

// normalizeEmail folds case so the guard key matches the case-insensitive
// email matching used by login itself.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	recent := times[:0:0]
	for _, t := range times {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	return recent
}
