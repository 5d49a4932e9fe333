package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/brroMonta/gifting/pkg/logger"
	"github.com/brroMonta/gifting/pkg/urlmeta"
)

const urlMetadataCachePrefix = "url_metadata:"

type URLMetadataService interface {
	Lookup(ctx context.Context, rawURL string) (*urlmeta.Metadata, error)
}

type urlMetadataService struct {
	client   *http.Client
	cache    Cache
	cacheTTL time.Duration
}

// NewURLMetadataService builds the service. cache may be nil.
func NewURLMetadataService(timeout time.Duration, cache Cache, cacheTTL time.Duration) URLMetadataService {
	return &urlMetadataService{
		client:   &http.Client{Timeout: timeout},
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

func urlMetadataCacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return urlMetadataCachePrefix + hex.EncodeToString(sum[:])
}

func (s *urlMetadataService) Lookup(ctx context.Context, rawURL string) (*urlmeta.Metadata, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !urlmeta.IsValidURL(rawURL) {
		return nil, urlmeta.ErrInvalidURL
	}

	key := urlMetadataCacheKey(rawURL)
	if s.cache != nil {
		var md urlmeta.Metadata
		hit, err := s.cache.GetJSON(ctx, key, &md)
		if err != nil {
			logger.Warn("URL metadata cache read failed", map[string]interface{}{
				"error": err.Error(),
			})
		} else if hit {
			return &md, nil
		}
	}

	md, err := urlmeta.Fetch(ctx, s.client, rawURL)
	if err != nil {
		logger.Warn("URL metadata fetch failed", map[string]interface{}{
			"url":   rawURL,
			"error": err.Error(),
		})
		return nil, err
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.SetJSON(ctx, key, md, s.cacheTTL); err != nil {
			logger.Warn("URL metadata cache write failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return md, nil
}
