package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"diesel-manager-web/internal/model"
)

// ErrNotFound is returned when no session record exists for an id.
var ErrNotFound = errors.New("session not found")

// Store defines the persistence operations for session records.
type Store interface {
	GetSession(ctx context.Context, id string) (model.SessionRecord, error)
	UpdateSession(ctx context.Context, id string, mutate func(*model.SessionRecord) error) error
	DeleteSession(ctx context.Context, id string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// GetSession loads one record by id.
func (s *gormStore) GetSession(ctx context.Context, id string) (model.SessionRecord, error) {
	var rec model.SessionRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.SessionRecord{}, ErrNotFound
	}
	if err != nil {
		return model.SessionRecord{}, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return rec, nil
}

// UpdateSession applies mutate to the record inside a transaction, creating
// the record when it does not exist yet.
func (s *gormStore) UpdateSession(ctx context.Context, id string, mutate func(*model.SessionRecord) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec model.SessionRecord
		err := tx.Where("id = ?", id).First(&rec).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec = model.SessionRecord{ID: id}
		case err != nil:
			return fmt.Errorf("failed to load session %s: %w", id, err)
		}

		if err := mutate(&rec); err != nil {
			return err
		}
		rec.UpdatedAt = time.Now().UTC()

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"is_authenticated", "access_token", "refresh_token", "user_json", "profile_json", "updated_at",
			}),
		}).Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to save session %s: %w", id, err)
		}
		return nil
	})
}

// DeleteSession removes a record. Deleting a missing record is not an error.
func (s *gormStore) DeleteSession(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.SessionRecord{}).Error; err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}
