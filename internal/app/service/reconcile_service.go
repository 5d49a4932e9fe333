package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/brroMonta/gifting/internal/app/model"
	"github.com/brroMonta/gifting/internal/app/repository"
	"github.com/brroMonta/gifting/internal/metrics"
	"github.com/brroMonta/gifting/pkg/logger"
	"github.com/brroMonta/gifting/pkg/sharelink"
	"gorm.io/gorm"
)

const reconcileBatchSize = 100

// ReconcileReport summarises one reconciliation pass.
type ReconcileReport struct {
	Scanned        int `json:"scanned"`
	OrphansRemoved int `json:"orphans_removed"`
	Resynced       int `json:"resynced"`
}

// ReconcileService repairs projections that no longer match their owner map.
type ReconcileService interface {
	Run(ctx context.Context) (*ReconcileReport, error)
}

type reconcileService struct {
	db          *gorm.DB
	giftMapRepo repository.GiftMapRepository
	sharedRepo  repository.SharedGiftMapRepository
	notifier    *ProjectionNotifier
	now         func() time.Time
}

func NewReconcileService(
	db *gorm.DB,
	giftMapRepo repository.GiftMapRepository,
	sharedRepo repository.SharedGiftMapRepository,
	notifier *ProjectionNotifier,
) ReconcileService {
	return &reconcileService{
		db:          db,
		giftMapRepo: giftMapRepo,
		sharedRepo:  sharedRepo,
		notifier:    notifier,
		now:         time.Now,
	}
}

type reconcileAction int

const (
	reconcileNone reconcileAction = iota
	reconcileOrphan
	reconcileResync
)

func (s *reconcileService) Run(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}
	after := ""

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		batch, err := s.sharedRepo.ListAfter(ctx, after, reconcileBatchSize)
		if err != nil {
			return report, err
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			report.Scanned++
			metrics.ReconcileActions.WithLabelValues("scanned").Inc()

			action, projection, err := s.reconcileOne(ctx, &batch[i])
			if err != nil {
				logger.Error("Failed to reconcile shared gift map", err, map[string]interface{}{
					"share_token": sharelink.Redact(batch[i].ShareToken),
				})
				return report, err
			}

			switch action {
			case reconcileOrphan:
				report.OrphansRemoved++
				metrics.ReconcileActions.WithLabelValues("orphan_removed").Inc()
				s.notifier.Revoked(ctx, batch[i].ShareToken)
			case reconcileResync:
				report.Resynced++
				metrics.ReconcileActions.WithLabelValues("resynced").Inc()
				s.notifier.Changed(ctx, projection)
			}
		}
		after = batch[len(batch)-1].ShareToken
	}

	logger.Info("Shared gift map reconciliation finished", map[string]interface{}{
		"scanned":         report.Scanned,
		"orphans_removed": report.OrphansRemoved,
		"resynced":        report.Resynced,
	})
	return report, nil
}

// reconcileOne removes a projection whose owner map is gone or no longer
// shared under its token, and rewrites one that drifted from the owner map.
// The owner row is version-bumped before the projection is rewritten so a
// concurrent owner sync cannot be overwritten with older items.
func (s *reconcileService) reconcileOne(ctx context.Context, stale *model.SharedGiftMap) (reconcileAction, *model.SharedGiftMap, error) {
	action := reconcileNone
	var written *model.SharedGiftMap

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		giftMaps := s.giftMapRepo.WithTx(tx)
		shared := s.sharedRepo.WithTx(tx)

		giftMap, err := giftMaps.FindByOwnerAndPerson(ctx, stale.OwnerID, stale.GiftMapID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if giftMap == nil || !giftMap.IsShared || giftMap.ShareToken == nil || *giftMap.ShareToken != stale.ShareToken {
			action = reconcileOrphan
			return shared.DeleteByToken(ctx, stale.ShareToken)
		}

		if giftMap.PersonName == stale.PersonName && sameItems(giftMap.Items, stale.Items) {
			return nil
		}

		giftMap.UpdatedAt = s.now()
		if err := giftMaps.UpdateVersioned(ctx, giftMap); err != nil {
			return err
		}
		written = projectionOf(giftMap)
		if err := shared.Replace(ctx, written); err != nil {
			return err
		}
		action = reconcileResync
		return nil
	})

	if errors.Is(err, repository.ErrVersionConflict) {
		// The owner map changed underneath us and its own sync rewrote the projection.
		return reconcileNone, nil, nil
	}
	if err != nil {
		return reconcileNone, nil, err
	}
	return action, written, nil
}

func sameItems(a, b model.GiftMapItems) bool {
	left, errA := json.Marshal(a)
	right, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(left) == string(right)
}
