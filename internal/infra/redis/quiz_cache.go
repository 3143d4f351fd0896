package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"pharma-quiz-service/internal/domain"
)

// BundleLoader fetches quiz bundles from a backing store.
type BundleLoader interface {
	LoadBundle(ctx context.Context, quizID string) (domain.QuizBundle, error)
}

// QuizCache keeps quiz bundles in Redis (one JSON value per quiz) and
// falls back to the loader on a miss:
//
//	SET quiz:{quizID}:bundle {json} EX ttl
//
// The full bundle is cached, not just answer keys, because the attempt
// engine needs question text and options.
type QuizCache struct {
	client *redis.Client
	loader BundleLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuizCache(client *redis.Client, loader BundleLoader, ttl time.Duration) *QuizCache {
	return &QuizCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuizCache) GetBundle(ctx context.Context, quizID string) (domain.QuizBundle, error) {
	key := c.key(quizID)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil && len(raw) > 0 {
		var bundle domain.QuizBundle
		if err := json.Unmarshal(raw, &bundle); err == nil {
			return bundle, nil
		}
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil && len(raw) > 0 {
			var bundle domain.QuizBundle
			if err := json.Unmarshal(raw, &bundle); err == nil {
				return bundle, nil
			}
		}

		bundle, err := c.loader.LoadBundle(ctx, quizID)
		if err != nil {
			return domain.QuizBundle{}, err
		}

		if raw, err := json.Marshal(bundle); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return bundle, nil
	})
	if err != nil {
		return domain.QuizBundle{}, err
	}
	return result.(domain.QuizBundle), nil
}

func (c *QuizCache) key(quizID string) string {
	return "quiz:" + quizID + ":bundle"
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
