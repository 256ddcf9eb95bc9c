package middleware

import (
	"testing"
	"time"
)

func newTestGuard(max int, window time.Duration) *LoginGuard {
	return NewLoginGuard(LoginGuardConfig{MaxAttempts: max, Window: window})
}

func TestLoginGuard_BlocksAfterMaxFailures(t *testing.T) {
	g := newTestGuard(3, time.Minute)
	defer g.Stop()

	for i := 0; i < 3; i++ {
		if g.Blocked("alice@example.com") {
			t.Fatalf("should not be blocked after %d failures", i)
		}
		g.RecordFailure("alice@example.com")
	}
	if !g.Blocked("alice@example.com") {
		t.Error("should be blocked after 3 failures")
	}
}

func TestLoginGuard_CaseInsensitiveKey(t *testing.T) {
	g := newTestGuard(2, time.Minute)
	defer g.Stop()

	g.RecordFailure("Alice@Example.com")
	g.RecordFailure("ALICE@EXAMPLE.COM")
	if !g.Blocked("alice@example.com") {
		t.Error("failures on case variants should count against one account")
	}
}

func TestLoginGuard_ClearResetsBudget(t *testing.T) {
	g := newTestGuard(2, time.Minute)
	defer g.Stop()

	g.RecordFailure("alice@example.com")
	g.RecordFailure("alice@example.com")
	if !g.Blocked("alice@example.com") {
		t.Fatal("should be blocked")
	}

	g.Clear("alice@example.com")
	if g.Blocked("alice@example.com") {
		t.Error("Clear should reset the failure history")
	}
}

func TestLoginGuard_FailuresAgeOut(t *testing.T) {
	g := newTestGuard(1, 30*time.Millisecond)
	defer g.Stop()

	g.RecordFailure("alice@example.com")
	if !g.Blocked("alice@example.com") {
		t.Fatal("should be blocked inside the window")
	}

	time.Sleep(40 * time.Millisecond)

	if g.Blocked("alice@example.com") {
		t.Error("failures outside the window should not count")
	}
}

func TestLoginGuard_AccountsAreIndependent(t *testing.T) {
	g := newTestGuard(1, time.Minute)
	defer g.Stop()

	g.RecordFailure("alice@example.com")
	if g.Blocked("bob@example.com") {
		t.Error("failures must not bleed across accounts")
	}
}
