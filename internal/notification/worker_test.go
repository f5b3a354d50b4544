package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"attendance-dashboard-backend/internal/model"
	"attendance-dashboard-backend/internal/store"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (store.Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return store.NewGormStore(gormDB), mock
}

func emptyResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString("")),
	}
}

func TestWorkerPool_Dispatch(t *testing.T) {
	s, _ := newTestDB(t)
	wp := NewWorkerPool(1, s, &webpush.Options{})

	assert.True(t, wp.Dispatch(context.Background(), Job{SessionID: "abc", UserID: 123}))

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, Job{SessionID: "abc", UserID: 123}, job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DispatchReturnsOnCancel(t *testing.T) {
	s, _ := newTestDB(t)
	wp := NewWorkerPool(1, s, &webpush.Options{})
	wp.Dispatch(context.Background(), Job{SessionID: "fills-buffer"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan bool)
	go func() {
		done <- wp.Dispatch(ctx, Job{SessionID: "dropped"})
	}()

	select {
	case queued := <-done:
		assert.False(t, queued)
	case <-time.After(1 * time.Second):
		t.Fatal("Dispatch blocked after cancellation")
	}
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	s, mock := newTestDB(t)
	wp := NewWorkerPool(1, s, &webpush.Options{TTL: 60})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("sends expiry warning for one subscription", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				defer wg.Done()
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "test_p256dh", sub.Keys.P256dh)
				assert.Equal(t, 60, options.TTL)

				var body map[string]string
				assert.NoError(t, json.Unmarshal(payload, &body))
				assert.Equal(t, ExpiryMessage, body["message"])
				assert.Equal(t, "session-1", body["session_id"])
				return emptyResponse(http.StatusCreated), nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE user_id = \$1`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "user_id", "created_at"}).
				AddRow("https://example.com/push", "test_p256dh", "test_auth", 7, time.Now()))

		wp.sendExpiryWarning(ctx, Job{SessionID: "session-1", UserID: 7})
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return emptyResponse(http.StatusGone), nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE user_id = \$1`).
			WithArgs(int64(8)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "user_id", "created_at"}).
				AddRow("https://example.com/expired", "p", "a", 8, time.Now()))

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = \$1`).
			WithArgs("https://example.com/expired").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		wp.sendExpiryWarning(ctx, Job{SessionID: "session-2", UserID: 8})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips users without subscriptions", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				t.Error("sender should not be called")
				return emptyResponse(http.StatusCreated), nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE user_id = \$1`).
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "user_id", "created_at"}))

		wp.sendExpiryWarning(ctx, Job{SessionID: "session-3", UserID: 9})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("keeps going when a send fails", func(t *testing.T) {
		var mu sync.Mutex
		var sent []string
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				mu.Lock()
				defer mu.Unlock()
				sent = append(sent, sub.Endpoint)
				if strings.HasSuffix(sub.Endpoint, "/broken") {
					return nil, fmt.Errorf("connection refused")
				}
				return emptyResponse(http.StatusCreated), nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE user_id = \$1`).
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "user_id", "created_at"}).
				AddRow("https://example.com/broken", "p", "a", 10, time.Now()).
				AddRow("https://example.com/ok", "p", "a", 10, time.Now()))

		wp.sendExpiryWarning(ctx, Job{SessionID: "session-4", UserID: 10})
		assert.Equal(t, []string{"https://example.com/broken", "https://example.com/ok"}, sent)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWorkerPool_StartProcessesJobs(t *testing.T) {
	s, mock := newTestDB(t)
	wp := NewWorkerPool(2, s, &webpush.Options{})

	var wg sync.WaitGroup
	wg.Add(1)
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			wg.Done()
			return emptyResponse(http.StatusCreated), nil
		},
	}
	mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE user_id = \$1`).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "user_id", "created_at"}).
			AddRow("https://example.com/push", "p", "a", 11, time.Now()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	wp.Dispatch(ctx, Job{SessionID: "session-5", UserID: 11})
	wg.Wait()
	assert.NoError(t, mock.ExpectationsWereMet())
}

// recordingDispatcher collects dispatched jobs, or turns them all away when full is set.
type recordingDispatcher struct {
	jobs []Job
	full bool
}

func (r *recordingDispatcher) Dispatch(ctx context.Context, job Job) bool {
	if r.full {
		return false
	}
	r.jobs = append(r.jobs, job)
	return true
}

func newSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gormDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&model.User{}, &model.Session{}, &model.PushSubscription{}))
	sqlDB, _ := gormDB.DB()
	t.Cleanup(func() { sqlDB.Close() })
	return store.NewGormStore(gormDB)
}

func TestExpiryWatcher_CheckOnce(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "ops@example.com", "hash")
	require.NoError(t, err)

	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	sessions := []*model.Session{
		// warning window open
		{ID: "due", UserID: user.ID, IssuedAt: now.Add(-30 * time.Minute), WarnAt: now.Add(-10 * time.Second), ExpiresAt: now.Add(20 * time.Second)},
		// not yet
		{ID: "early", UserID: user.ID, IssuedAt: now, WarnAt: now.Add(29*time.Minute + 30*time.Second), ExpiresAt: now.Add(30 * time.Minute)},
		// already over
		{ID: "expired", UserID: user.ID, IssuedAt: now.Add(-time.Hour), WarnAt: now.Add(-31 * time.Minute), ExpiresAt: now.Add(-30 * time.Minute)},
	}
	for _, session := range sessions {
		require.NoError(t, s.CreateSession(ctx, session))
	}
	revokedAt := now.Add(-time.Second)
	require.NoError(t, s.CreateSession(ctx, &model.Session{
		ID: "revoked", UserID: user.ID, IssuedAt: now.Add(-30 * time.Minute),
		WarnAt: now.Add(-5 * time.Second), ExpiresAt: now.Add(25 * time.Second), RevokedAt: &revokedAt,
	}))

	dispatcher := &recordingDispatcher{}
	w := NewExpiryWatcher(s, dispatcher, time.Second)
	w.now = func() time.Time { return now }

	n, err := w.CheckOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []Job{{SessionID: "due", UserID: user.ID}}, dispatcher.jobs)

	// A session is warned only once.
	n, err = w.CheckOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, dispatcher.jobs, 1)
}

func TestExpiryWatcher_CheckOnceLogsUnqueuedWarnings(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "ops@example.com", "hash")
	require.NoError(t, err)
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateSession(ctx, &model.Session{
		ID: "due", UserID: user.ID, IssuedAt: now.Add(-30 * time.Minute),
		WarnAt: now.Add(-10 * time.Second), ExpiresAt: now.Add(20 * time.Second),
	}))

	var logs bytes.Buffer
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	dispatcher := &recordingDispatcher{full: true}
	w := NewExpiryWatcher(s, dispatcher, time.Second)
	w.now = func() time.Time { return now }

	n, err := w.CheckOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, dispatcher.jobs)
	assert.Contains(t, logs.String(), "Session due was claimed but its expiry warning was not queued")
}

func TestExpiryWatcher_RunStopsOnCancel(t *testing.T) {
	s := newSQLiteStore(t)
	w := NewExpiryWatcher(s, &recordingDispatcher{}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
