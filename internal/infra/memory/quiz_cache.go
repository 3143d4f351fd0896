package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pharma-quiz-service/internal/domain"
)

// BundleLoader fetches quiz bundles from a backing store.
type BundleLoader interface {
	LoadBundle(ctx context.Context, quizID string) (domain.QuizBundle, error)
}

// QuizCache caches quiz bundles with TTL to avoid repeated store hits
// during attempts and submissions.
type QuizCache struct {
	loader BundleLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedBundle
}

type cachedBundle struct {
	bundle    domain.QuizBundle
	expiresAt time.Time
}

func NewQuizCache(loader BundleLoader, ttl time.Duration) *QuizCache {
	return &QuizCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedBundle),
	}
}

func (c *QuizCache) GetBundle(ctx context.Context, quizID string) (domain.QuizBundle, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.bundle, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.bundle, nil
		}
		c.mu.RUnlock()

		bundle, err := c.loader.LoadBundle(ctx, quizID)
		if err != nil {
			return domain.QuizBundle{}, err
		}

		c.mu.Lock()
		c.cache[quizID] = cachedBundle{
			bundle:    bundle,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return bundle, nil
	})
	if err != nil {
		return domain.QuizBundle{}, err
	}
	return result.(domain.QuizBundle), nil
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
