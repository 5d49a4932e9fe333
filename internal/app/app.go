// Package app assembles repositories and services for the server and CLI.
package app

import (
	"time"

	"github.com/brroMonta/gifting/config"
	"github.com/brroMonta/gifting/internal/app/repository"
	"github.com/brroMonta/gifting/internal/app/service"
	"gorm.io/gorm"
)

// Services bundles everything the transports need.
type Services struct {
	People      service.PersonService
	GiftMaps    service.GiftMapService
	Shared      service.SharedGiftMapService
	Reconcile   service.ReconcileService
	URLMetadata service.URLMetadataService
	Notifier    *service.ProjectionNotifier
}

// NewServices wires the service layer. cache and publisher may be nil.
func NewServices(db *gorm.DB, cfg *config.Config, cache service.ProjectionCache, publisher service.ProjectionPublisher) *Services {
	personRepo := repository.NewPersonRepository(db)
	giftMapRepo := repository.NewGiftMapRepository(db)
	sharedRepo := repository.NewSharedGiftMapRepository(db)

	notifier := service.NewProjectionNotifier(cache, cfg.Share.CacheTTL, publisher)
	people := service.NewPersonService(db, personRepo, giftMapRepo, sharedRepo, notifier)

	return &Services{
		People:      people,
		GiftMaps:    service.NewGiftMapService(db, giftMapRepo, sharedRepo, people, notifier, cfg.Share.SyncMaxAttempts),
		Shared:      service.NewSharedGiftMapService(db, giftMapRepo, sharedRepo, notifier, cfg.Share.SyncMaxAttempts),
		Reconcile:   service.NewReconcileService(db, giftMapRepo, sharedRepo, notifier),
		URLMetadata: service.NewURLMetadataService(metadataTimeout(cfg), cache, cfg.Metadata.CacheTTL),
		Notifier:    notifier,
	}
}

func metadataTimeout(cfg *config.Config) time.Duration {
	if cfg.Metadata.Timeout > 0 {
		return cfg.Metadata.Timeout
	}
	return 5 * time.Second
}
