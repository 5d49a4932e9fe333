package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brroMonta/gifting/internal/app/model"
	"github.com/brroMonta/gifting/internal/app/repository"
	"github.com/brroMonta/gifting/internal/metrics"
	"github.com/brroMonta/gifting/pkg/logger"
	"github.com/brroMonta/gifting/pkg/sharelink"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxItemNameLength = 200

// PersonDirectory resolves the people gift maps belong to.
type PersonDirectory interface {
	LookupPerson(ctx context.Context, ownerID, personID string) (*model.Person, error)
}

// ItemInput is a new gift idea.
type ItemInput struct {
	Name  string
	URL   string
	Notes string
}

// ItemPatch holds the fields to merge into an existing item. Nil fields are left alone.
type ItemPatch struct {
	Name       *string
	URL        *string
	Notes      *string
	IsReserved *bool
	Order      *int
}

type GiftMapService interface {
	Get(ctx context.Context, ownerID, personID string) (*model.GiftMap, error)
	CreateIfAbsent(ctx context.Context, ownerID, personID, personName string) (*model.GiftMap, error)
	GetOrCreate(ctx context.Context, ownerID, personID string) (*model.GiftMap, error)
	AddItem(ctx context.Context, ownerID, personID string, input ItemInput) (string, error)
	UpdateItem(ctx context.Context, ownerID, personID, itemID string, patch ItemPatch) error
	DeleteItem(ctx context.Context, ownerID, personID, itemID string) error
	EnableSharing(ctx context.Context, ownerID, personID string) (string, error)
	DisableSharing(ctx context.Context, ownerID, personID string) error
}

type giftMapService struct {
	giftMapRepo repository.GiftMapRepository
	directory   PersonDirectory
	engine      *syncEngine
}

func NewGiftMapService(
	db *gorm.DB,
	giftMapRepo repository.GiftMapRepository,
	sharedRepo repository.SharedGiftMapRepository,
	directory PersonDirectory,
	notifier *ProjectionNotifier,
	maxAttempts int,
) GiftMapService {
	return &giftMapService{
		giftMapRepo: giftMapRepo,
		directory:   directory,
		engine:      newSyncEngine(db, giftMapRepo, sharedRepo, notifier, maxAttempts),
	}
}

func (s *giftMapService) Get(ctx context.Context, ownerID, personID string) (*model.GiftMap, error) {
	giftMap, err := s.giftMapRepo.FindByOwnerAndPerson(ctx, ownerID, personID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGiftMapNotFound
		}
		return nil, err
	}
	giftMap.Items = giftMap.Items.Sorted()
	return giftMap, nil
}

// CreateIfAbsent never refreshes the name of an existing map.
func (s *giftMapService) CreateIfAbsent(ctx context.Context, ownerID, personID, personName string) (*model.GiftMap, error) {
	giftMap, err := s.giftMapRepo.CreateIfAbsent(ctx, &model.GiftMap{
		OwnerID:    ownerID,
		PersonID:   personID,
		PersonName: personName,
		Items:      model.GiftMapItems{},
	})
	if err != nil {
		return nil, err
	}
	giftMap.Items = giftMap.Items.Sorted()
	return giftMap, nil
}

func (s *giftMapService) GetOrCreate(ctx context.Context, ownerID, personID string) (*model.GiftMap, error) {
	giftMap, err := s.Get(ctx, ownerID, personID)
	if err == nil {
		return giftMap, nil
	}
	if !errors.Is(err, ErrGiftMapNotFound) {
		return nil, err
	}

	person, err := s.directory.LookupPerson(ctx, ownerID, personID)
	if err != nil {
		return nil, err
	}

	logger.Info("Creating gift map for person", map[string]interface{}{
		"owner_id":  ownerID,
		"person_id": personID,
	})
	return s.CreateIfAbsent(ctx, ownerID, personID, person.Name)
}

func (s *giftMapService) loadOwned(ownerID, personID string) loadFunc {
	return func(ctx context.Context, giftMaps repository.GiftMapRepository, _ repository.SharedGiftMapRepository) (*model.GiftMap, error) {
		giftMap, err := giftMaps.FindByOwnerAndPerson(ctx, ownerID, personID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrGiftMapNotFound
			}
			return nil, err
		}
		return giftMap, nil
	}
}

func validateItemName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidItemInput)
	}
	if len(name) > maxItemNameLength {
		return "", fmt.Errorf("%w: name must be at most %d characters", ErrInvalidItemInput, maxItemNameLength)
	}
	return name, nil
}

func (s *giftMapService) AddItem(ctx context.Context, ownerID, personID string, input ItemInput) (string, error) {
	name, err := validateItemName(input.Name)
	if err != nil {
		return "", err
	}

	itemID := uuid.New().String()
	_, err = s.engine.apply(ctx, metrics.OwnerToPublic, s.loadOwned(ownerID, personID), func(giftMap *model.GiftMap) error {
		giftMap.Items = append(giftMap.Items, model.GiftMapItem{
			ID:    itemID,
			Name:  name,
			URL:   strings.TrimSpace(input.URL),
			Notes: input.Notes,
			Order: len(giftMap.Items),
		})
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrGiftMapNotFound) {
			logger.Error("Failed to add gift item", err, map[string]interface{}{
				"owner_id":  ownerID,
				"person_id": personID,
			})
		}
		return "", err
	}

	logger.Info("Gift item added", map[string]interface{}{
		"owner_id":  ownerID,
		"person_id": personID,
		"item_id":   itemID,
	})
	return itemID, nil
}

func (s *giftMapService) UpdateItem(ctx context.Context, ownerID, personID, itemID string, patch ItemPatch) error {
	var name string
	if patch.Name != nil {
		validated, err := validateItemName(*patch.Name)
		if err != nil {
			return err
		}
		name = validated
	}

	_, err := s.engine.apply(ctx, metrics.OwnerToPublic, s.loadOwned(ownerID, personID), func(giftMap *model.GiftMap) error {
		idx := giftMap.Items.IndexOf(itemID)
		if idx < 0 {
			return ErrGiftMapItemNotFound
		}
		item := &giftMap.Items[idx]
		if patch.Name != nil {
			item.Name = name
		}
		if patch.URL != nil {
			item.URL = strings.TrimSpace(*patch.URL)
		}
		if patch.Notes != nil {
			item.Notes = *patch.Notes
		}
		if patch.Order != nil {
			item.Order = *patch.Order
		}
		if patch.IsReserved != nil {
			item.SetReserved(*patch.IsReserved, s.engine.now())
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrGiftMapItemNotFound) && !errors.Is(err, ErrGiftMapNotFound) {
			logger.Error("Failed to update gift item", err, map[string]interface{}{
				"owner_id":  ownerID,
				"person_id": personID,
				"item_id":   itemID,
			})
		}
		return err
	}

	logger.Info("Gift item updated", map[string]interface{}{
		"owner_id":  ownerID,
		"person_id": personID,
		"item_id":   itemID,
	})
	return nil
}

// DeleteItem is a no-op for an unknown item.
func (s *giftMapService) DeleteItem(ctx context.Context, ownerID, personID, itemID string) error {
	result, err := s.engine.apply(ctx, metrics.OwnerToPublic, s.loadOwned(ownerID, personID), func(giftMap *model.GiftMap) error {
		idx := giftMap.Items.IndexOf(itemID)
		if idx < 0 {
			return errNoChange
		}
		items := make(model.GiftMapItems, 0, len(giftMap.Items)-1)
		items = append(items, giftMap.Items[:idx]...)
		giftMap.Items = append(items, giftMap.Items[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}

	if result.changed {
		logger.Info("Gift item deleted", map[string]interface{}{
			"owner_id":  ownerID,
			"person_id": personID,
			"item_id":   itemID,
		})
	}
	return nil
}

// EnableSharing returns the existing token if the map is already shared.
func (s *giftMapService) EnableSharing(ctx context.Context, ownerID, personID string) (string, error) {
	token, err := sharelink.NewToken()
	if err != nil {
		return "", err
	}

	result, err := s.engine.apply(ctx, metrics.OwnerToPublic, s.loadOwned(ownerID, personID), func(giftMap *model.GiftMap) error {
		if giftMap.IsShared && giftMap.ShareToken != nil {
			return errNoChange
		}
		giftMap.ShareToken = &token
		giftMap.IsShared = true
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrGiftMapNotFound) {
			logger.Error("Failed to enable sharing", err, map[string]interface{}{
				"owner_id":  ownerID,
				"person_id": personID,
			})
		}
		return "", err
	}

	current := *result.giftMap.ShareToken
	if result.changed {
		logger.Info("Sharing enabled", map[string]interface{}{
			"owner_id":    ownerID,
			"person_id":   personID,
			"share_token": sharelink.Redact(current),
		})
	}
	return current, nil
}

// DisableSharing removes the projection and clears the token in one
// transaction. It is a no-op if the map is not shared.
func (s *giftMapService) DisableSharing(ctx context.Context, ownerID, personID string) error {
	_, err := s.engine.apply(ctx, metrics.OwnerToPublic, s.loadOwned(ownerID, personID), func(giftMap *model.GiftMap) error {
		if !giftMap.IsShared && giftMap.ShareToken == nil {
			return errNoChange
		}
		giftMap.ShareToken = nil
		giftMap.IsShared = false
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrGiftMapNotFound) {
			logger.Error("Failed to disable sharing", err, map[string]interface{}{
				"owner_id":  ownerID,
				"person_id": personID,
			})
		}
		return err
	}
	return nil
}
