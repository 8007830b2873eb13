package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"faceoff-match-service/internal/content"
	"faceoff-match-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionRepository caches question batches in Redis (one JSON value per
// batch key) and falls back to the underlying provider on a cache miss, so
// every instance serving the same session resolves identical content.
type QuestionRepository struct {
	client *redis.Client
	loader content.Provider
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader content.Provider, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) QuestionBatch(ctx context.Context, phaseName string, cfg domain.MatchConfig, count int, seed int64) ([]domain.Question, error) {
	key := content.BatchKey(phaseName, cfg, count, seed)

	if batch, ok := r.fromCache(ctx, key); ok {
		return batch, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if batch, ok := r.fromCache(ctx, key); ok {
			return batch, nil
		}

		batch, err := r.loader.QuestionBatch(ctx, phaseName, cfg, count, seed)
		if err != nil {
			return nil, err
		}

		raw, err := json.Marshal(batch)
		if err != nil {
			return nil, err
		}
		_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
		return batch, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) fromCache(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	var batch []domain.Question
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, false
	}
	return batch, true
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
