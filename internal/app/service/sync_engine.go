package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/brroMonta/gifting/internal/app/model"
	"github.com/brroMonta/gifting/internal/app/repository"
	"github.com/brroMonta/gifting/internal/metrics"
	"github.com/brroMonta/gifting/pkg/logger"
	"github.com/brroMonta/gifting/pkg/sharelink"
	"gorm.io/gorm"
)

const (
	baseBackoff = 5 * time.Millisecond
	maxBackoff  = 200 * time.Millisecond
)

// errNoChange tells the engine a mutation is already satisfied and nothing
// needs to be written.
var errNoChange = errors.New("no change")

// loadFunc reads the gift map to mutate using transaction-bound repositories.
type loadFunc func(ctx context.Context, giftMaps repository.GiftMapRepository, shared repository.SharedGiftMapRepository) (*model.GiftMap, error)

// mutateFunc edits giftMap in place. Return errNoChange to skip the write.
type mutateFunc func(giftMap *model.GiftMap) error

// syncResult describes a committed (or skipped) change.
type syncResult struct {
	giftMap      *model.GiftMap
	projection   *model.SharedGiftMap // written projection, nil if not shared
	revokedToken string               // projection deleted in this change
	changed      bool
}

// syncEngine applies a mutation to a gift map and its projection in one
// transaction. The owner row is written first with a version check, then the
// projection is replaced with the same items; a version conflict rolls both
// back and the whole read-modify-write is retried.
type syncEngine struct {
	db          *gorm.DB
	giftMaps    repository.GiftMapRepository
	shared      repository.SharedGiftMapRepository
	notifier    *ProjectionNotifier
	maxAttempts int
	now         func() time.Time
}

func newSyncEngine(
	db *gorm.DB,
	giftMaps repository.GiftMapRepository,
	shared repository.SharedGiftMapRepository,
	notifier *ProjectionNotifier,
	maxAttempts int,
) *syncEngine {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &syncEngine{
		db:          db,
		giftMaps:    giftMaps,
		shared:      shared,
		notifier:    notifier,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// projectionOf builds the full public copy of giftMap.
func projectionOf(giftMap *model.GiftMap) *model.SharedGiftMap {
	return &model.SharedGiftMap{
		ShareToken: *giftMap.ShareToken,
		OwnerID:    giftMap.OwnerID,
		GiftMapID:  giftMap.PersonID,
		PersonName: giftMap.PersonName,
		Items:      giftMap.Items.Clone(),
		UpdatedAt:  giftMap.UpdatedAt,
	}
}

func (e *syncEngine) apply(ctx context.Context, direction string, load loadFunc, mutate mutateFunc) (*syncResult, error) {
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		metrics.SyncAttempts.WithLabelValues(direction).Inc()

		result, err := e.attempt(ctx, load, mutate)
		switch {
		case err == nil:
			if result.changed {
				metrics.SyncOutcomes.WithLabelValues(direction, "committed").Inc()
				e.afterCommit(ctx, result)
			} else {
				metrics.SyncOutcomes.WithLabelValues(direction, "noop").Inc()
			}
			return result, nil

		case errors.Is(err, repository.ErrVersionConflict):
			metrics.SyncConflicts.WithLabelValues(direction).Inc()
			logger.Debug("Retrying gift map sync after version conflict", map[string]interface{}{
				"direction": direction,
				"attempt":   attempt,
			})
			if attempt < e.maxAttempts {
				if err := sleepBackoff(ctx, attempt); err != nil {
					metrics.SyncOutcomes.WithLabelValues(direction, "error").Inc()
					return nil, err
				}
			}

		default:
			metrics.SyncOutcomes.WithLabelValues(direction, "error").Inc()
			return nil, err
		}
	}

	metrics.SyncOutcomes.WithLabelValues(direction, "exhausted").Inc()
	logger.Warn("Gift map sync gave up after repeated conflicts", map[string]interface{}{
		"direction":    direction,
		"max_attempts": e.maxAttempts,
	})
	return nil, fmt.Errorf("%w after %d attempts", ErrConflictRetryExhausted, e.maxAttempts)
}

func (e *syncEngine) attempt(ctx context.Context, load loadFunc, mutate mutateFunc) (*syncResult, error) {
	result := &syncResult{}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		giftMaps := e.giftMaps.WithTx(tx)
		shared := e.shared.WithTx(tx)

		giftMap, err := load(ctx, giftMaps, shared)
		if err != nil {
			return err
		}
		result.giftMap = giftMap

		var previousToken string
		if giftMap.ShareToken != nil {
			previousToken = *giftMap.ShareToken
		}

		if err := mutate(giftMap); err != nil {
			return err
		}
		giftMap.UpdatedAt = e.now()

		if err := giftMaps.UpdateVersioned(ctx, giftMap); err != nil {
			return err
		}

		if previousToken != "" && (giftMap.ShareToken == nil || *giftMap.ShareToken != previousToken) {
			if err := shared.DeleteByToken(ctx, previousToken); err != nil {
				return err
			}
			result.revokedToken = previousToken
		}

		if giftMap.IsShared && giftMap.ShareToken != nil {
			projection := projectionOf(giftMap)
			if err := shared.Replace(ctx, projection); err != nil {
				return err
			}
			result.projection = projection
		}

		result.changed = true
		return nil
	})

	if errors.Is(err, errNoChange) {
		result.changed = false
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *syncEngine) afterCommit(ctx context.Context, result *syncResult) {
	if result.revokedToken != "" {
		logger.Info("Shared gift map revoked", map[string]interface{}{
			"owner_id":    result.giftMap.OwnerID,
			"person_id":   result.giftMap.PersonID,
			"share_token": sharelink.Redact(result.revokedToken),
		})
		e.notifier.Revoked(ctx, result.revokedToken)
	}
	if result.projection != nil {
		e.notifier.Changed(ctx, result.projection)
	}
}

func sleepBackoff(ctx context.Context, attempt int) error {
	d := baseBackoff << uint(attempt-1)
	if d > maxBackoff {
		d = maxBackoff
	}
	d = d/2 + time.Duration(rand.Int63n(int64(d/2)+1))

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
