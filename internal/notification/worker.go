package notification

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"attendance-dashboard-backend/internal/model"
	"attendance-dashboard-backend/internal/store"
)

// ExpiryMessage is the text shown by the browser when a session is about to end.
const ExpiryMessage = "Your session will expire soon"

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Job asks the pool to warn one session's owner.
type Job struct {
	SessionID string
	UserID    int64
}

// payload is the JSON body delivered to the service worker.
type payload struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size     int
	jobs     chan Job
	accounts store.AccountStore
	webpush  *webpush.Options
	sender   NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, accounts store.AccountStore, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:     size,
		jobs:     make(chan Job, size), // Buffered channel
		accounts: accounts,
		webpush:  webpushOptions,
		sender:   &WebPushSender{}, // Use the real sender by default
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			log.Printf("Worker %d warning session %s", id, job.SessionID)
			wp.sendExpiryWarning(ctx, job)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch sends a job to the worker pool. It blocks while the pool is saturated and
// returns false if ctx ends first.
func (wp *WorkerPool) Dispatch(ctx context.Context, job Job) bool {
	select {
	case wp.jobs <- job:
		return true
	case <-ctx.Done():
		return false
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Job {
	return wp.jobs
}

// sendExpiryWarning pushes the expiry warning to every browser the user subscribed.
func (wp *WorkerPool) sendExpiryWarning(ctx context.Context, job Job) {
	subscriptions, err := wp.accounts.SubscriptionsForUser(ctx, job.UserID)
	if err != nil {
		log.Printf("Error fetching subscriptions for user %d: %v", job.UserID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	body, err := json.Marshal(payload{Type: "session_expiring", Message: ExpiryMessage, SessionID: job.SessionID})
	if err != nil {
		log.Printf("Error encoding notification for session %s: %v", job.SessionID, err)
		return
	}

	log.Printf("Sending %d notifications for session %s", len(subscriptions), job.SessionID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, body)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.accounts.DeleteSubscriptionByEndpoint(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
