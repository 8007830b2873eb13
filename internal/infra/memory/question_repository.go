package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"faceoff-match-service/internal/content"
	"faceoff-match-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// QuestionRepository caches question batches with TTL so a match's content is
// produced once no matter how many handlers ask for it.
type QuestionRepository struct {
	loader content.Provider
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedBatch
}

type cachedBatch struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader content.Provider, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedBatch),
	}
}

func (r *QuestionRepository) QuestionBatch(ctx context.Context, phaseName string, cfg domain.MatchConfig, count int, seed int64) ([]domain.Question, error) {
	key := content.BatchKey(phaseName, cfg, count, seed)
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.questions, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.questions, nil
		}
		r.mu.RUnlock()

		batch, err := r.loader.QuestionBatch(ctx, phaseName, cfg, count, seed)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[key] = cachedBatch{
			questions: batch,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return batch, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
