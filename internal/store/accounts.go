package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"attendance-dashboard-backend/internal/model"
)

func (s *gormStore) CreateUser(ctx context.Context, email, passwordHash string) (*model.User, error) {
	user := model.User{
		Email:        normalizeEmail(email),
		PasswordHash: passwordHash,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", user.Email, err)
	}
	return &user, nil
}

func (s *gormStore) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

func (s *gormStore) CreateSession(ctx context.Context, session *model.Session) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *gormStore) FindSession(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session %s: %w", id, err)
	}
	return &session, nil
}

func (s *gormStore) RevokeSession(ctx context.Context, id string, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at)
	if res.Error != nil {
		return fmt.Errorf("failed to revoke session %s: %w", id, res.Error)
	}
	return nil
}

// ClaimSessionsDueForWarning marks live sessions whose warning time has passed as warned and
// returns them. A session is claimed at most once.
func (s *gormStore) ClaimSessionsDueForWarning(ctx context.Context, now time.Time) ([]model.Session, error) {
	var due []model.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("warn_at <= ? AND expires_at > ? AND warned_at IS NULL AND revoked_at IS NULL", now, now).
			Order("warn_at").
			Find(&due).Error; err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}

		ids := make([]string, len(due))
		for i, session := range due {
			ids[i] = session.ID
		}
		return tx.Model(&model.Session{}).Where("id IN ?", ids).Update("warned_at", now).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim sessions due for warning: %w", err)
	}
	return due, nil
}

// SaveSubscription creates a subscription keyed by its endpoint, or refreshes the keys of one
// the same user already owns. An endpoint owned by another user yields ErrSubscriptionTaken.
func (s *gormStore) SaveSubscription(ctx context.Context, sub *model.PushSubscription) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.PushSubscription
		err := tx.Where("endpoint = ?", sub.Endpoint).Take(&existing).Error
		switch {
		case err == nil && existing.UserID != sub.UserID:
			return ErrSubscriptionTaken
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(sub).Error
	})
	if errors.Is(err, ErrSubscriptionTaken) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, userID int64, endpoint string) error {
	res := s.db.WithContext(ctx).
		Where("endpoint = ? AND user_id = ?", endpoint, userID).
		Delete(&model.PushSubscription{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("failed to delete subscription %s: %w", endpoint, err)
	}
	return nil
}

func (s *gormStore) SubscriptionsForUser(ctx context.Context, userID int64) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for user %d: %w", userID, err)
	}
	return subs, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
