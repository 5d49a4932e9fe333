package repository

import (
	"context"
	"errors"

	"github.com/brroMonta/gifting/internal/app/model"
	"github.com/brroMonta/gifting/pkg/logger"
	"gorm.io/gorm"
)

type PersonRepository interface {
	WithTx(tx *gorm.DB) PersonRepository
	Create(ctx context.Context, person *model.Person) error
	FindByID(ctx context.Context, ownerID, id string) (*model.Person, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Person, error)
	Update(ctx context.Context, person *model.Person) error
	Delete(ctx context.Context, ownerID, id string) error
}

type personRepository struct {
	db *gorm.DB
}

func NewPersonRepository(db *gorm.DB) PersonRepository {
	return &personRepository{db: db}
}

func (r *personRepository) WithTx(tx *gorm.DB) PersonRepository {
	return &personRepository{db: tx}
}

func (r *personRepository) Create(ctx context.Context, person *model.Person) error {
	logger.Debug("Creating person in database", map[string]interface{}{
		"owner_id":  person.OwnerID,
		"person_id": person.ID,
	})

	if err := r.db.WithContext(ctx).Create(person).Error; err != nil {
		logger.Error("Failed to create person in database", err, map[string]interface{}{
			"owner_id":  person.OwnerID,
			"person_id": person.ID,
		})
		return err
	}
	return nil
}

func (r *personRepository) FindByID(ctx context.Context, ownerID, id string) (*model.Person, error) {
	var person model.Person
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&person).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find person in database", err, map[string]interface{}{
				"owner_id":  ownerID,
				"person_id": id,
			})
		}
		return nil, err
	}
	return &person, nil
}

func (r *personRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Person, error) {
	logger.Debug("Listing people in database", map[string]interface{}{
		"owner_id": ownerID,
	})

	var people []model.Person
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("name ASC").
		Find(&people).Error
	if err != nil {
		logger.Error("Failed to list people in database", err, map[string]interface{}{
			"owner_id": ownerID,
		})
		return nil, err
	}

	logger.Debug("People listed from database", map[string]interface{}{
		"owner_id": ownerID,
		"count":    len(people),
	})
	return people, nil
}

func (r *personRepository) Update(ctx context.Context, person *model.Person) error {
	logger.Debug("Updating person in database", map[string]interface{}{
		"owner_id":  person.OwnerID,
		"person_id": person.ID,
	})

	if err := r.db.WithContext(ctx).Save(person).Error; err != nil {
		logger.Error("Failed to update person in database", err, map[string]interface{}{
			"owner_id":  person.OwnerID,
			"person_id": person.ID,
		})
		return err
	}
	return nil
}

// Delete removes the person. Returns gorm.ErrRecordNotFound if nothing matched.
func (r *personRepository) Delete(ctx context.Context, ownerID, id string) error {
	result := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Delete(&model.Person{})
	if result.Error != nil {
		logger.Error("Failed to delete person from database", result.Error, map[string]interface{}{
			"owner_id":  ownerID,
			"person_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
