// session_sweeper.go implements the SessionSweeper background job, which
// periodically deletes expired session rows and refreshes the active-session
// gauge. Expired sessions are also rejected (and lazily deleted) at validation
// time, so the sweeper exists to keep the sessions table from accumulating
// rows for clients that simply stopped sending their cookie.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/portal-boost/portal/internal/db/repositories"
	"github.com/portal-boost/portal/internal/telemetry"
)

// SessionSweeper periodically purges expired sessions.
type SessionSweeper struct {
	sessions *repositories.SessionRepository
	interval time.Duration
	stopChan chan struct{}
}

// NewSessionSweeper creates a new SessionSweeper.
// interval controls how often the purge runs (default 1h).
func NewSessionSweeper(sessions *repositories.SessionRepository, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SessionSweeper{
		sessions: sessions,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background sweep loop.
// It runs an initial sweep immediately, then repeats on the configured interval.
// The loop exits when ctx is cancelled or Stop() is called.
func (s *SessionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("Session sweeper started (interval: %v)", s.interval)

	// Run once immediately on startup
	s.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-s.stopChan:
			log.Println("Session sweeper stopped")
			return
		case <-ctx.Done():
			log.Println("Session sweeper context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (s *SessionSweeper) Stop() {
	close(s.stopChan)
}

// runSweep deletes expired sessions and updates the active-session gauge.
func (s *SessionSweeper) runSweep(ctx context.Context) {
	now := time.Now().UTC()

	deleted, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		log.Printf("Session sweeper: failed to delete expired sessions: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("Session sweeper: deleted %d expired sessions", deleted)
	}

	active, err := s.sessions.CountActive(ctx, now)
	if err != nil {
		log.Printf("Session sweeper: failed to count active sessions: %v", err)
		return
	}
	telemetry.SessionsActive.Set(float64(active))
}
