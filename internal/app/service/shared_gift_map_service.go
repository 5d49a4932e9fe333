package service

import (
	"context"
	"errors"

	"github.com/brroMonta/gifting/internal/app/model"
	"github.com/brroMonta/gifting/internal/app/repository"
	"github.com/brroMonta/gifting/internal/metrics"
	"github.com/brroMonta/gifting/pkg/logger"
	"github.com/brroMonta/gifting/pkg/sharelink"
	"gorm.io/gorm"
)

// SharedGiftMapService is the unauthenticated side of a share link. Nothing
// about who reserved an item is accepted, stored or returned.
type SharedGiftMapService interface {
	GetByToken(ctx context.Context, token string) (*model.PublicGiftMap, error)
	Snapshot(ctx context.Context, token string) (*model.PublicGiftMap, error)
	Reserve(ctx context.Context, token, itemID string) (*model.PublicGiftMap, error)
	Unreserve(ctx context.Context, token, itemID string) (*model.PublicGiftMap, error)
}

type sharedGiftMapService struct {
	sharedRepo repository.SharedGiftMapRepository
	notifier   *ProjectionNotifier
	engine     *syncEngine
}

func NewSharedGiftMapService(
	db *gorm.DB,
	giftMapRepo repository.GiftMapRepository,
	sharedRepo repository.SharedGiftMapRepository,
	notifier *ProjectionNotifier,
	maxAttempts int,
) SharedGiftMapService {
	return &sharedGiftMapService{
		sharedRepo: sharedRepo,
		notifier:   notifier,
		engine:     newSyncEngine(db, giftMapRepo, sharedRepo, notifier, maxAttempts),
	}
}

// GetByToken returns ErrSharedGiftMapNotFound for unknown or revoked tokens;
// a map with no items is returned as an empty list.
func (s *sharedGiftMapService) GetByToken(ctx context.Context, token string) (*model.PublicGiftMap, error) {
	if !sharelink.ValidToken(token) {
		return nil, ErrSharedGiftMapNotFound
	}

	if view, ok := s.notifier.cached(ctx, token); ok {
		return view, nil
	}

	gen, cacheable := s.notifier.generation(ctx, token)
	view, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.notifier.store(ctx, token, gen, view)
	}
	return view, nil
}

// Snapshot reads the public view from the database, bypassing the cache.
func (s *sharedGiftMapService) Snapshot(ctx context.Context, token string) (*model.PublicGiftMap, error) {
	if !sharelink.ValidToken(token) {
		return nil, ErrSharedGiftMapNotFound
	}
	return s.load(ctx, token)
}

func (s *sharedGiftMapService) load(ctx context.Context, token string) (*model.PublicGiftMap, error) {
	shared, err := s.sharedRepo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSharedGiftMapNotFound
		}
		return nil, err
	}
	return shared.Public(), nil
}

func (s *sharedGiftMapService) Reserve(ctx context.Context, token, itemID string) (*model.PublicGiftMap, error) {
	return s.setReserved(ctx, token, itemID, true)
}

func (s *sharedGiftMapService) Unreserve(ctx context.Context, token, itemID string) (*model.PublicGiftMap, error) {
	return s.setReserved(ctx, token, itemID, false)
}

// loadByToken follows the projection's back-references to the owner's map.
// A map that is no longer shared under token is treated as absent.
func loadByToken(token string) loadFunc {
	return func(ctx context.Context, giftMaps repository.GiftMapRepository, shared repository.SharedGiftMapRepository) (*model.GiftMap, error) {
		projection, err := shared.FindByToken(ctx, token)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrSharedGiftMapNotFound
			}
			return nil, err
		}

		giftMap, err := giftMaps.FindByOwnerAndPerson(ctx, projection.OwnerID, projection.GiftMapID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrSharedGiftMapNotFound
			}
			return nil, err
		}

		if !giftMap.IsShared || giftMap.ShareToken == nil || *giftMap.ShareToken != token {
			return nil, ErrSharedGiftMapNotFound
		}
		return giftMap, nil
	}
}

// setReserved toggles one item. Asking for the state the item is already in
// is a no-op that returns the current view.
func (s *sharedGiftMapService) setReserved(ctx context.Context, token, itemID string, reserved bool) (*model.PublicGiftMap, error) {
	action := "unreserve"
	if reserved {
		action = "reserve"
	}

	if !sharelink.ValidToken(token) {
		metrics.Reservations.WithLabelValues(action, "not_found").Inc()
		return nil, ErrSharedGiftMapNotFound
	}

	result, err := s.engine.apply(ctx, metrics.PublicToOwner, loadByToken(token), func(giftMap *model.GiftMap) error {
		idx := giftMap.Items.IndexOf(itemID)
		if idx < 0 {
			return ErrGiftMapItemNotFound
		}
		if !giftMap.Items[idx].SetReserved(reserved, s.engine.now()) {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrSharedGiftMapNotFound), errors.Is(err, ErrGiftMapItemNotFound):
			metrics.Reservations.WithLabelValues(action, "not_found").Inc()
		default:
			metrics.Reservations.WithLabelValues(action, "error").Inc()
			logger.Error("Failed to change reservation", err, map[string]interface{}{
				"share_token": sharelink.Redact(token),
				"item_id":     itemID,
				"action":      action,
			})
		}
		return nil, err
	}

	if !result.changed {
		metrics.Reservations.WithLabelValues(action, "noop").Inc()
		return projectionOf(result.giftMap).Public(), nil
	}

	metrics.Reservations.WithLabelValues(action, "changed").Inc()
	logger.Info("Reservation changed", map[string]interface{}{
		"share_token": sharelink.Redact(token),
		"item_id":     itemID,
		"action":      action,
	})
	return result.projection.Public(), nil
}
