package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/gradesync-api/internal/models"
	appErrors "github.com/noah-isme/gradesync-api/pkg/errors"
)

// CacheRepository abstracts the key-value store behind the grade cache.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// GradeCacheKey returns the cache key of an assessment's persisted grades.
func GradeCacheKey(assessmentID string) string {
	return "grades:assessment:" + assessmentID
}

// GradeCache caches persisted grades per assessment. Cache failures are logged
// and treated as misses; they never fail the caller.
type GradeCache struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewGradeCache constructs a grade cache.
func NewGradeCache(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *GradeCache {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeCache{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (c *GradeCache) Enabled() bool {
	return c != nil && c.enabled && c.repo != nil
}

// Load returns cached grades for an assessment and whether the cache was hit.
func (c *GradeCache) Load(ctx context.Context, assessmentID string) ([]models.GradeRecord, bool) {
	if !c.Enabled() {
		return nil, false
	}
	start := time.Now()
	var grades []models.GradeRecord
	err := c.repo.Get(ctx, GradeCacheKey(assessmentID), &grades)
	c.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			c.logger.Warn("grade cache get failed", zap.String("assessment_id", assessmentID), zap.Error(err))
		}
		return nil, false
	}
	return grades, true
}

// Store caches grades for an assessment.
func (c *GradeCache) Store(ctx context.Context, assessmentID string, grades []models.GradeRecord) {
	if !c.Enabled() {
		return
	}
	if err := c.repo.Set(ctx, GradeCacheKey(assessmentID), grades, c.ttl); err != nil {
		c.logger.Warn("grade cache set failed", zap.String("assessment_id", assessmentID), zap.Error(err))
	}
}

// Invalidate drops the cached grades of an assessment.
func (c *GradeCache) Invalidate(ctx context.Context, assessmentID string) {
	if !c.Enabled() {
		return
	}
	if err := c.repo.Delete(ctx, GradeCacheKey(assessmentID)); err != nil {
		c.logger.Warn("grade cache invalidate failed", zap.String("assessment_id", assessmentID), zap.Error(err))
	}
}
