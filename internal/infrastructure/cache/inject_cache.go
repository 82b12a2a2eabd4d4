package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/escalation"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/inject"
)

// InjectCache is the read-side cache in front of the publish history and the
// latest escalation snapshots. Reads are hot (dashboards poll them); the
// cache is invalidated on every publish so it can serve stale data for at
// most one TTL window after a miss-free write.
type InjectCache struct {
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewInjectCache(cache Cache, ttl time.Duration, logger *zap.Logger) *InjectCache {
	return &InjectCache{cache: cache, ttl: ttl, logger: logger}
}

func publishedKey(exerciseID uuid.UUID) string {
	return fmt.Sprintf("exercise:%s:published", exerciseID)
}

func factorsKey(exerciseID uuid.UUID) string {
	return fmt.Sprintf("exercise:%s:factors:latest", exerciseID)
}

// GetPublished returns the cached publish history, or a miss.
func (c *InjectCache) GetPublished(ctx context.Context, exerciseID uuid.UUID) ([]*inject.PublishedEvent, error) {
	var events []*inject.PublishedEvent
	if err := c.cache.GetJSON(ctx, publishedKey(exerciseID), &events); err != nil {
		return nil, err
	}
	return events, nil
}

// SetPublished caches the publish history for an exercise.
func (c *InjectCache) SetPublished(ctx context.Context, exerciseID uuid.UUID, events []*inject.PublishedEvent) {
	if err := c.cache.SetJSON(ctx, publishedKey(exerciseID), events, c.ttl); err != nil {
		c.logger.Warn("failed to cache published events",
			zap.String("exercise_id", exerciseID.String()),
			zap.Error(err))
	}
}

// InvalidatePublished drops the cached history after a publish or
// cancellation so the next read sees the new event.
func (c *InjectCache) InvalidatePublished(ctx context.Context, exerciseID uuid.UUID) {
	if err := c.cache.Delete(ctx, publishedKey(exerciseID)); err != nil {
		c.logger.Warn("failed to invalidate published events cache",
			zap.String("exercise_id", exerciseID.String()),
			zap.Error(err))
	}
}

// GetLatestFactors returns the cached latest factor snapshot, or a miss.
func (c *InjectCache) GetLatestFactors(ctx context.Context, exerciseID uuid.UUID) (*escalation.FactorSnapshot, error) {
	var snapshot escalation.FactorSnapshot
	if err := c.cache.GetJSON(ctx, factorsKey(exerciseID), &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// SetLatestFactors caches the newest factor snapshot after a cycle completes.
func (c *InjectCache) SetLatestFactors(ctx context.Context, snapshot *escalation.FactorSnapshot) {
	if err := c.cache.SetJSON(ctx, factorsKey(snapshot.ExerciseID), snapshot, c.ttl); err != nil {
		c.logger.Warn("failed to cache factor snapshot",
			zap.String("exercise_id", snapshot.ExerciseID.String()),
			zap.Error(err))
	}
}
