package repository

import (
	"context"
	"errors"

	"github.com/brroMonta/gifting/internal/app/model"
	"github.com/brroMonta/gifting/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrVersionConflict is returned when a version-guarded write finds the row
// changed since it was read.
var ErrVersionConflict = errors.New("gift map was modified concurrently")

type GiftMapRepository interface {
	WithTx(tx *gorm.DB) GiftMapRepository
	FindByOwnerAndPerson(ctx context.Context, ownerID, personID string) (*model.GiftMap, error)
	CreateIfAbsent(ctx context.Context, giftMap *model.GiftMap) (*model.GiftMap, error)
	UpdateVersioned(ctx context.Context, giftMap *model.GiftMap) error
	Delete(ctx context.Context, ownerID, personID string) error
}

type giftMapRepository struct {
	db *gorm.DB
}

func NewGiftMapRepository(db *gorm.DB) GiftMapRepository {
	return &giftMapRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *giftMapRepository) WithTx(tx *gorm.DB) GiftMapRepository {
	return &giftMapRepository{db: tx}
}

func (r *giftMapRepository) FindByOwnerAndPerson(ctx context.Context, ownerID, personID string) (*model.GiftMap, error) {
	logger.Debug("Finding gift map in database", map[string]interface{}{
		"owner_id":  ownerID,
		"person_id": personID,
	})

	var giftMap model.GiftMap
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND person_id = ?", ownerID, personID).
		First(&giftMap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Debug("Gift map not found in database", map[string]interface{}{
				"owner_id":  ownerID,
				"person_id": personID,
			})
		} else {
			logger.Error("Failed to find gift map in database", err, map[string]interface{}{
				"owner_id":  ownerID,
				"person_id": personID,
			})
		}
		return nil, err
	}

	return &giftMap, nil
}

// CreateIfAbsent inserts giftMap unless a row with the same key exists, then
// returns whatever is stored.
func (r *giftMapRepository) CreateIfAbsent(ctx context.Context, giftMap *model.GiftMap) (*model.GiftMap, error) {
	logger.Debug("Creating gift map in database if absent", map[string]interface{}{
		"owner_id":  giftMap.OwnerID,
		"person_id": giftMap.PersonID,
	})

	if giftMap.Items == nil {
		giftMap.Items = model.GiftMapItems{}
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(giftMap).Error
	if err != nil {
		logger.Error("Failed to create gift map in database", err, map[string]interface{}{
			"owner_id":  giftMap.OwnerID,
			"person_id": giftMap.PersonID,
		})
		return nil, err
	}

	return r.FindByOwnerAndPerson(ctx, giftMap.OwnerID, giftMap.PersonID)
}

// UpdateVersioned writes every mutable column if the stored version still
// equals giftMap.Version, and advances giftMap.Version on success. The
// caller sets UpdatedAt; it is written as given.
func (r *giftMapRepository) UpdateVersioned(ctx context.Context, giftMap *model.GiftMap) error {
	expected := giftMap.Version
	next := *giftMap
	next.Version = expected + 1
	if next.Items == nil {
		next.Items = model.GiftMapItems{}
	}

	result := r.db.WithContext(ctx).
		Model(&model.GiftMap{}).
		Where("owner_id = ? AND person_id = ? AND version = ?", giftMap.OwnerID, giftMap.PersonID, expected).
		Select("person_name", "share_token", "is_shared", "items", "version", "updated_at").
		UpdateColumns(&next)
	if result.Error != nil {
		logger.Error("Failed to update gift map in database", result.Error, map[string]interface{}{
			"owner_id":  giftMap.OwnerID,
			"person_id": giftMap.PersonID,
			"version":   expected,
		})
		return result.Error
	}

	if result.RowsAffected == 0 {
		logger.Debug("Gift map version conflict", map[string]interface{}{
			"owner_id":  giftMap.OwnerID,
			"person_id": giftMap.PersonID,
			"version":   expected,
		})
		return ErrVersionConflict
	}

	giftMap.Version = next.Version
	return nil
}

func (r *giftMapRepository) Delete(ctx context.Context, ownerID, personID string) error {
	logger.Debug("Deleting gift map from database", map[string]interface{}{
		"owner_id":  ownerID,
		"person_id": personID,
	})

	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND person_id = ?", ownerID, personID).
		Delete(&model.GiftMap{}).Error
	if err != nil {
		logger.Error("Failed to delete gift map from database", err, map[string]interface{}{
			"owner_id":  ownerID,
			"person_id": personID,
		})
		return err
	}
	return nil
}
