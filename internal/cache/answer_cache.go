package cache

import (
	"context"
	"strconv"

	"github.com/aasprep/practest-backend/internal/config"
	"github.com/aasprep/practest-backend/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AnswerCache keeps the live answer state of open sessions in a Redis hash.
// It is the fast lane for answer selection; durable persistence happens
// asynchronously through the answer worker queue.
type AnswerCache struct {
	rdb *redis.Client
}

// NewAnswerCache creates a new AnswerCache.
func NewAnswerCache(rdb *redis.Client) *AnswerCache {
	return &AnswerCache{rdb: rdb}
}

// Save upserts a single answer selection. Last write wins.
func (c *AnswerCache) Save(ctx context.Context, sessionID uuid.UUID, questionID int64, optionIndex int) error {
	key := config.CacheKey.SessionAnswersKey(sessionID.String())
	return c.rdb.HSet(ctx, key, strconv.FormatInt(questionID, 10), optionIndex).Err()
}

// Snapshot returns the full live answer map for a session.
// Entries with malformed keys or values are skipped rather than failing
// the whole read.
func (c *AnswerCache) Snapshot(ctx context.Context, sessionID uuid.UUID) (model.AnswerMap, error) {
	key := config.CacheKey.SessionAnswersKey(sessionID.String())
	raw, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	answers := make(model.AnswerMap, len(raw))
	for field, value := range raw {
		questionID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		optionIndex, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		answers[questionID] = optionIndex
	}
	return answers, nil
}

// Clear removes the live hash once a session reaches its terminal state.
func (c *AnswerCache) Clear(ctx context.Context, sessionID uuid.UUID) error {
	key := config.CacheKey.SessionAnswersKey(sessionID.String())
	return c.rdb.Del(ctx, key).Err()
}
