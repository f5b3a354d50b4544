package source

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"attendance-dashboard-backend/config"
	"attendance-dashboard-backend/internal/attendance"
	"attendance-dashboard-backend/internal/store"
)

// ErrPurgeInProgress is returned when a purge is requested while another is running.
var ErrPurgeInProgress = errors.New("a purge is already in progress")

// Upstream is the remote table the service mirrors.
type Upstream interface {
	FetchPage(ctx context.Context, offset, limit int) ([]Row, error)
	DeleteAll(ctx context.Context) error
}

// SyncResult summarizes one sync cycle.
type SyncResult struct {
	Fetched  int   `json:"fetched"`
	Upserted int   `json:"upserted"`
	Skipped  int   `json:"skipped"`
	Removed  int64 `json:"removed"`
}

// Service keeps the local record table in step with the upstream table.
type Service struct {
	cfg      config.SourceConfig
	store    store.RecordStore
	upstream Upstream
	onChange func()

	mu      sync.Mutex // serializes sync and purge
	purging sync.Mutex // at most one purge in flight
}

// NewService creates a source service. upstream may be nil when no upstream is configured;
// purges then only clear the local table.
func NewService(cfg config.SourceConfig, records store.RecordStore, upstream Upstream) *Service {
	return &Service{
		cfg:      cfg,
		store:    records,
		upstream: upstream,
		onChange: func() {},
	}
}

// OnChange registers a callback run after the local table changes (used to drop cached
// responses).
func (s *Service) OnChange(fn func()) {
	if fn == nil {
		fn = func() {}
	}
	s.onChange = fn
}

// Run syncs once and then on every interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled || s.upstream == nil {
		log.Println("Source sync is disabled. Not starting.")
		return
	}
	log.Println("Starting source sync service...")

	s.syncAndLog(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Source sync service shutting down.")
			return
		case <-timer.C:
			s.syncAndLog(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

func (s *Service) syncAndLog(ctx context.Context) {
	if _, err := s.SyncOnce(ctx); err != nil {
		log.Printf("Error syncing attendance records: %v", err)
	}
}

// SyncOnce pulls every upstream row and upserts the valid ones. When every page was fetched,
// local records whose IDs are no longer upstream are removed as well.
func (s *Service) SyncOnce(ctx context.Context) (SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncLocked(ctx)
}

func (s *Service) syncLocked(ctx context.Context) (SyncResult, error) {
	var result SyncResult
	if s.upstream == nil {
		return result, nil
	}
	log.Println("Executing sync cycle...")

	pageSize := s.cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}

	var rows []Row
	var fetchErr error
	for offset := 0; ; offset += pageSize {
		page, err := s.upstream.FetchPage(ctx, offset, pageSize)
		if err != nil {
			log.Printf("Error fetching rows at offset %d: %v", offset, err)
			fetchErr = err
			break
		}
		rows = append(rows, page...)
		if len(page) < pageSize {
			break
		}
	}
	result.Fetched = len(rows)

	// A failed fetch with nothing retrieved leaves the local table untouched.
	if fetchErr != nil && len(rows) == 0 {
		return result, fmt.Errorf("sync aborted: %w", fetchErr)
	}

	records := make([]attendance.Record, 0, len(rows))
	upstreamIDs := make([]int64, 0, len(rows))
	for _, row := range rows {
		upstreamIDs = append(upstreamIDs, row.ID)
		r, err := attendance.NewRecord(row.ID, row.EmpID, row.EmpName, row.Date, row.Time)
		if err != nil {
			log.Printf("Warning: skipping upstream row: %v", err)
			result.Skipped++
			continue
		}
		records = append(records, r)
	}

	// A partial fetch only upserts; deletions are applied once the full ID set is known.
	if fetchErr != nil {
		n, err := s.store.UpsertRecords(ctx, records)
		if err != nil {
			return result, err
		}
		result.Upserted = n
	} else {
		n, removed, err := s.store.ReplaceRecords(ctx, records, upstreamIDs)
		if err != nil {
			return result, err
		}
		result.Upserted = n
		result.Removed = removed
	}
	if result.Upserted > 0 || result.Removed > 0 {
		s.onChange()
	}

	log.Printf("Sync cycle finished: fetched %d, upserted %d, skipped %d, removed %d.",
		result.Fetched, result.Upserted, result.Skipped, result.Removed)
	return result, fetchErr
}

// Purge deletes every record upstream and locally, then resyncs. Only one purge runs at a
// time and no sync overlaps it.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	if !s.purging.TryLock() {
		return 0, ErrPurgeInProgress
	}
	defer s.purging.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.upstream != nil {
		if err := s.upstream.DeleteAll(ctx); err != nil {
			return 0, fmt.Errorf("failed to delete upstream records: %w", err)
		}
	}

	deleted, err := s.store.DeleteAllRecords(ctx)
	if err != nil {
		return 0, err
	}
	s.onChange()
	log.Printf("Purged %d attendance records.", deleted)

	if _, err := s.syncLocked(ctx); err != nil {
		log.Printf("Error refetching after purge: %v", err)
	}
	return deleted, nil
}
