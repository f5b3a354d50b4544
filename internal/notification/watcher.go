package notification

import (
	"context"
	"log"
	"time"

	"attendance-dashboard-backend/internal/store"
)

// Dispatcher accepts warning jobs. Dispatch reports whether the job was queued.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) bool
}

// ExpiryWatcher polls for sessions entering their warning window and hands them to the
// worker pool.
type ExpiryWatcher struct {
	accounts   store.AccountStore
	dispatcher Dispatcher
	interval   time.Duration
	now        func() time.Time
}

// NewExpiryWatcher creates a watcher that checks every interval.
func NewExpiryWatcher(accounts store.AccountStore, dispatcher Dispatcher, interval time.Duration) *ExpiryWatcher {
	return &ExpiryWatcher{
		accounts:   accounts,
		dispatcher: dispatcher,
		interval:   interval,
		now:        time.Now,
	}
}

// Run checks until ctx is cancelled.
func (w *ExpiryWatcher) Run(ctx context.Context) {
	log.Println("Starting session expiry watcher...")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Session expiry watcher shutting down.")
			return
		case <-ticker.C:
			if _, err := w.CheckOnce(ctx); err != nil {
				log.Printf("Error checking sessions for expiry: %v", err)
			}
		}
	}
}

// CheckOnce dispatches every session that became due since the last check and returns
// how many were queued. Claimed sessions are not claimed again, so a job that cannot be
// queued is logged and its warning is lost.
func (w *ExpiryWatcher) CheckOnce(ctx context.Context) (int, error) {
	due, err := w.accounts.ClaimSessionsDueForWarning(ctx, w.now().UTC())
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, session := range due {
		if !w.dispatcher.Dispatch(ctx, Job{SessionID: session.ID, UserID: session.UserID}) {
			log.Printf("Session %s was claimed but its expiry warning was not queued: %v", session.ID, ctx.Err())
			continue
		}
		queued++
	}
	return queued, nil
}
