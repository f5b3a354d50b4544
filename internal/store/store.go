package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"attendance-dashboard-backend/internal/attendance"
	"attendance-dashboard-backend/internal/model"
)

const upsertBatchSize = 500

// RecordStore reads and writes attendance records.
type RecordStore interface {
	ListRecords(ctx context.Context) ([]attendance.Record, error)
	UpsertRecords(ctx context.Context, records []attendance.Record) (int, error)
	ReplaceRecords(ctx context.Context, records []attendance.Record, keepIDs []int64) (int, int64, error)
	DeleteAllRecords(ctx context.Context) (int64, error)
}

// AccountStore persists users, sessions and their push subscriptions.
type AccountStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)

	CreateSession(ctx context.Context, session *model.Session) error
	FindSession(ctx context.Context, id string) (*model.Session, error)
	RevokeSession(ctx context.Context, id string, at time.Time) error
	ClaimSessionsDueForWarning(ctx context.Context, now time.Time) ([]model.Session, error)

	SaveSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, userID int64, endpoint string) error
	DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error
	SubscriptionsForUser(ctx context.Context, userID int64) ([]model.PushSubscription, error)
}

// Store defines the interface for all database operations.
type Store interface {
	RecordStore
	AccountStore
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db, now: time.Now}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// ListRecords returns every record, newest upstream ID first. Rows are validated on the
// way out so callers only ever see well-formed records.
func (s *gormStore) ListRecords(ctx context.Context) ([]attendance.Record, error) {
	var rows []model.AttendanceRecord
	if err := s.db.WithContext(ctx).Order("id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list attendance records: %w", err)
	}

	records := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		r, err := attendance.NewRecord(row.ID, row.EmpID, row.EmpName, row.Date, row.Time)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// UpsertRecords inserts new records and refreshes existing ones by ID.
func (s *gormStore) UpsertRecords(ctx context.Context, records []attendance.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	rows := s.recordRows(records)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertRows(tx, rows)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upsert %d attendance records: %w", len(rows), err)
	}
	return len(rows), nil
}

// ReplaceRecords upserts records and deletes every local record whose ID is not in keepIDs,
// in one transaction. It returns the number of upserted and removed records.
func (s *gormStore) ReplaceRecords(ctx context.Context, records []attendance.Record, keepIDs []int64) (int, int64, error) {
	rows := s.recordRows(records)
	keep := make(map[int64]struct{}, len(keepIDs))
	for _, id := range keepIDs {
		keep[id] = struct{}{}
	}

	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			if err := upsertRows(tx, rows); err != nil {
				return err
			}
		}

		var localIDs []int64
		if err := tx.Model(&model.AttendanceRecord{}).Pluck("id", &localIDs).Error; err != nil {
			return err
		}
		stale := make([]int64, 0)
		for _, id := range localIDs {
			if _, ok := keep[id]; !ok {
				stale = append(stale, id)
			}
		}

		for start := 0; start < len(stale); start += upsertBatchSize {
			end := min(start+upsertBatchSize, len(stale))
			res := tx.Where("id IN ?", stale[start:end]).Delete(&model.AttendanceRecord{})
			if res.Error != nil {
				return res.Error
			}
			removed += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to replace attendance records: %w", err)
	}
	return len(rows), removed, nil
}

func (s *gormStore) recordRows(records []attendance.Record) []model.AttendanceRecord {
	syncedAt := s.now().UTC()
	rows := make([]model.AttendanceRecord, len(records))
	for i, r := range records {
		rows[i] = model.AttendanceRecord{
			ID:       r.ID,
			EmpID:    r.EmpID,
			EmpName:  r.EmpName,
			Date:     r.Date,
			Time:     r.Time,
			SyncedAt: syncedAt,
		}
	}
	return rows
}

func upsertRows(tx *gorm.DB, rows []model.AttendanceRecord) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"emp_id", "emp_name", "date", "time", "synced_at"}),
	}).CreateInBatches(&rows, upsertBatchSize).Error
}

// DeleteAllRecords removes every local record.
func (s *gormStore) DeleteAllRecords(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&model.AttendanceRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete attendance records: %w", res.Error)
	}
	return res.RowsAffected, nil
}
