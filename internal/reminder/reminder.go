// Package reminder runs the periodic scan that flips pending service
// reminders to due once their date arrives. The scan is scheduled by cron in
// the server entrypoint and can also be triggered by hand via the API.
package reminder

import (
	"context"
	"log"
	"time"

	"bengkelpos/backend/internal/store"
)

type Scanner struct {
	repo store.Repository
	loc  *time.Location
}

func NewScanner(repo store.Repository, loc *time.Location) *Scanner {
	if loc == nil {
		loc = time.UTC
	}
	return &Scanner{repo: repo, loc: loc}
}

// Scan marks reminders whose due date has passed as of now. Returns the
// number of reminders flipped.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	now := time.Now().In(s.loc)
	n, err := s.repo.MarkRemindersDue(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("[reminder] marked %d reminder(s) due", n)
	}
	return n, nil
}

// Run adapts Scan to a cron job func. Errors are logged, not propagated;
// the next tick retries.
func (s *Scanner) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.Scan(ctx); err != nil {
		log.Printf("[reminder] scan failed: %v", err)
	}
}
