package repository

import (
	"context"
	"errors"

	"github.com/brroMonta/gifting/internal/app/model"
	"github.com/brroMonta/gifting/pkg/logger"
	"github.com/brroMonta/gifting/pkg/sharelink"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SharedGiftMapRepository interface {
	WithTx(tx *gorm.DB) SharedGiftMapRepository
	FindByToken(ctx context.Context, token string) (*model.SharedGiftMap, error)
	Replace(ctx context.Context, shared *model.SharedGiftMap) error
	DeleteByToken(ctx context.Context, token string) error
	DeleteByGiftMap(ctx context.Context, ownerID, giftMapID string) ([]string, error)
	ListAfter(ctx context.Context, afterToken string, limit int) ([]model.SharedGiftMap, error)
}

type sharedGiftMapRepository struct {
	db *gorm.DB
}

func NewSharedGiftMapRepository(db *gorm.DB) SharedGiftMapRepository {
	return &sharedGiftMapRepository{db: db}
}

func (r *sharedGiftMapRepository) WithTx(tx *gorm.DB) SharedGiftMapRepository {
	return &sharedGiftMapRepository{db: tx}
}

func (r *sharedGiftMapRepository) FindByToken(ctx context.Context, token string) (*model.SharedGiftMap, error) {
	var shared model.SharedGiftMap
	err := r.db.WithContext(ctx).
		Where("share_token = ?", token).
		First(&shared).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find shared gift map in database", err, map[string]interface{}{
				"share_token": sharelink.Redact(token),
			})
		}
		return nil, err
	}
	return &shared, nil
}

// Replace writes the whole projection, creating it if needed. Nothing from a
// previous version of the row survives.
func (r *sharedGiftMapRepository) Replace(ctx context.Context, shared *model.SharedGiftMap) error {
	logger.Debug("Replacing shared gift map in database", map[string]interface{}{
		"share_token": sharelink.Redact(shared.ShareToken),
		"owner_id":    shared.OwnerID,
		"person_id":   shared.GiftMapID,
		"item_count":  len(shared.Items),
	})

	if shared.Items == nil {
		shared.Items = model.GiftMapItems{}
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "share_token"}},
			DoUpdates: clause.AssignmentColumns([]string{"owner_id", "gift_map_id", "person_name", "items", "expires_at", "updated_at"}),
		}).
		Create(shared).Error
	if err != nil {
		logger.Error("Failed to replace shared gift map in database", err, map[string]interface{}{
			"share_token": sharelink.Redact(shared.ShareToken),
			"owner_id":    shared.OwnerID,
			"person_id":   shared.GiftMapID,
		})
		return err
	}
	return nil
}

// DeleteByToken removes the projection. A missing row is not an error.
func (r *sharedGiftMapRepository) DeleteByToken(ctx context.Context, token string) error {
	err := r.db.WithContext(ctx).
		Where("share_token = ?", token).
		Delete(&model.SharedGiftMap{}).Error
	if err != nil {
		logger.Error("Failed to delete shared gift map from database", err, map[string]interface{}{
			"share_token": sharelink.Redact(token),
		})
		return err
	}
	return nil
}

// DeleteByGiftMap removes every projection pointing at the gift map and
// returns their tokens.
func (r *sharedGiftMapRepository) DeleteByGiftMap(ctx context.Context, ownerID, giftMapID string) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).
		Model(&model.SharedGiftMap{}).
		Where("owner_id = ? AND gift_map_id = ?", ownerID, giftMapID).
		Pluck("share_token", &tokens).Error
	if err != nil {
		logger.Error("Failed to list shared gift maps for gift map", err, map[string]interface{}{
			"owner_id":  ownerID,
			"person_id": giftMapID,
		})
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	err = r.db.WithContext(ctx).
		Where("share_token IN ?", tokens).
		Delete(&model.SharedGiftMap{}).Error
	if err != nil {
		logger.Error("Failed to delete shared gift maps for gift map", err, map[string]interface{}{
			"owner_id":  ownerID,
			"person_id": giftMapID,
		})
		return nil, err
	}
	return tokens, nil
}

// ListAfter pages through projections ordered by token.
func (r *sharedGiftMapRepository) ListAfter(ctx context.Context, afterToken string, limit int) ([]model.SharedGiftMap, error) {
	var shared []model.SharedGiftMap
	err := r.db.WithContext(ctx).
		Where("share_token > ?", afterToken).
		Order("share_token ASC").
		Limit(limit).
		Find(&shared).Error
	if err != nil {
		logger.Error("Failed to list shared gift maps", err, map[string]interface{}{
			"limit": limit,
		})
		return nil, err
	}
	return shared, nil
}
