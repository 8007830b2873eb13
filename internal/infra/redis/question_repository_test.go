package redis

import (
	"context"
	"testing"
	"time"

	"faceoff-match-service/internal/content"
	"faceoff-match-service/internal/domain"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestQuestionRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	loader := &countingProvider{Provider: content.NewStaticProvider(samplePools())}
	repo := NewQuestionRepository(client, loader, time.Minute)

	cfg := domain.MatchConfig{Role: "backend"}
	batch, err := repo.QuestionBatch(context.Background(), "behavioural", cfg, 2, 7)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(batch))
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}

	// Second call should come from redis, loader not incremented.
	again, err := repo.QuestionBatch(context.Background(), "behavioural", cfg, 2, 7)
	if err != nil {
		t.Fatalf("batch 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if len(again) != len(batch) || again[0].ID != batch[0].ID {
		t.Fatalf("cached batch differs: %+v vs %+v", again, batch)
	}
}

type countingProvider struct {
	content.Provider
	calls int
}

func (p *countingProvider) QuestionBatch(ctx context.Context, phaseName string, cfg domain.MatchConfig, count int, seed int64) ([]domain.Question, error) {
	p.calls++
	return p.Provider.QuestionBatch(ctx, phaseName, cfg, count, seed)
}

func samplePools() map[string][]domain.Question {
	return map[string][]domain.Question{
		"behavioural": {
			{ID: "b1", Prompt: "Tell us about a conflict", Keywords: []string{"listen"}},
			{ID: "b2", Prompt: "Tell us about a failure", Keywords: []string{"learn"}},
		},
	}
}
