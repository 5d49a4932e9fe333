package service

import (
	"context"
	"time"

	"github.com/brroMonta/gifting/internal/app/model"
	"github.com/brroMonta/gifting/pkg/logger"
	"github.com/brroMonta/gifting/pkg/sharelink"
)

const (
	projectionCachePrefix      = "shared_gift_map:"
	projectionGenerationPrefix = "shared_gift_map_gen:"

	// Outlives any read that could still be racing an invalidation.
	projectionGenerationTTL = 24 * time.Hour
)

// Cache is a JSON key/value cache. pkg/redis.Client satisfies it.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
}

// ProjectionCache adds generation-guarded writes: a fill that started before
// an invalidation cannot land after it.
type ProjectionCache interface {
	Cache
	Generation(ctx context.Context, genKey string) (int64, error)
	SetJSONIfGeneration(ctx context.Context, genKey string, gen int64, key string, v interface{}, ttl time.Duration) (bool, error)
	BumpGeneration(ctx context.Context, genKey string, genTTL time.Duration, keys ...string) error
}

// ProjectionPublisher pushes committed projection changes to live viewers.
type ProjectionPublisher interface {
	PublishSnapshot(token string, view *model.PublicGiftMap)
	PublishRevoked(token string)
}

// ProjectionNotifier runs the side effects of a committed projection change:
// cache invalidation and live viewer updates. Both collaborators are optional
// and failures are logged, never returned.
type ProjectionNotifier struct {
	cache     ProjectionCache
	cacheTTL  time.Duration
	publisher ProjectionPublisher
}

func NewProjectionNotifier(cache ProjectionCache, cacheTTL time.Duration, publisher ProjectionPublisher) *ProjectionNotifier {
	return &ProjectionNotifier{
		cache:     cache,
		cacheTTL:  cacheTTL,
		publisher: publisher,
	}
}

func projectionCacheKey(token string) string {
	return projectionCachePrefix + token
}

func projectionGenerationKey(token string) string {
	return projectionGenerationPrefix + token
}

func (n *ProjectionNotifier) cached(ctx context.Context, token string) (*model.PublicGiftMap, bool) {
	if n == nil || n.cache == nil {
		return nil, false
	}
	var view model.PublicGiftMap
	hit, err := n.cache.GetJSON(ctx, projectionCacheKey(token), &view)
	if err != nil {
		logger.Warn("Projection cache read failed", map[string]interface{}{
			"share_token": sharelink.Redact(token),
			"error":       err.Error(),
		})
		return nil, false
	}
	if !hit {
		return nil, false
	}
	return &view, true
}

// generation must be read before the database read whose result is passed to
// store. ok is false when the result should not be cached.
func (n *ProjectionNotifier) generation(ctx context.Context, token string) (int64, bool) {
	if n == nil || n.cache == nil || n.cacheTTL <= 0 {
		return 0, false
	}
	gen, err := n.cache.Generation(ctx, projectionGenerationKey(token))
	if err != nil {
		logger.Warn("Projection cache generation read failed", map[string]interface{}{
			"share_token": sharelink.Redact(token),
			"error":       err.Error(),
		})
		return 0, false
	}
	return gen, true
}

func (n *ProjectionNotifier) store(ctx context.Context, token string, gen int64, view *model.PublicGiftMap) {
	if n == nil || n.cache == nil || n.cacheTTL <= 0 {
		return
	}
	written, err := n.cache.SetJSONIfGeneration(ctx, projectionGenerationKey(token), gen, projectionCacheKey(token), view, n.cacheTTL)
	if err != nil {
		logger.Warn("Projection cache write failed", map[string]interface{}{
			"share_token": sharelink.Redact(token),
			"error":       err.Error(),
		})
		return
	}
	if !written {
		logger.Debug("Projection changed during read, not caching", map[string]interface{}{
			"share_token": sharelink.Redact(token),
		})
	}
}

func (n *ProjectionNotifier) invalidate(ctx context.Context, token string) {
	if n == nil || n.cache == nil {
		return
	}
	err := n.cache.BumpGeneration(ctx, projectionGenerationKey(token), projectionGenerationTTL, projectionCacheKey(token))
	if err != nil {
		logger.Warn("Projection cache invalidation failed", map[string]interface{}{
			"share_token": sharelink.Redact(token),
			"error":       err.Error(),
		})
	}
}

// Changed is called after a projection was rewritten.
func (n *ProjectionNotifier) Changed(ctx context.Context, shared *model.SharedGiftMap) {
	if n == nil {
		return
	}
	n.invalidate(ctx, shared.ShareToken)
	if n.publisher != nil {
		n.publisher.PublishSnapshot(shared.ShareToken, shared.Public())
	}
}

// Revoked is called after a projection was deleted.
func (n *ProjectionNotifier) Revoked(ctx context.Context, token string) {
	if n == nil {
		return
	}
	n.invalidate(ctx, token)
	if n.publisher != nil {
		n.publisher.PublishRevoked(token)
	}
}
