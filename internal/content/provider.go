// Package content serves question batches for match phases. Providers are
// deterministic with respect to the seed so every participant in a session
// sees the same question set without a per-participant round-trip.
package content

import (
	"context"
	"errors"
	"fmt"

	"faceoff-match-service/internal/domain"
)

// ErrNoQuestions indicates a phase has no pool for the requested config.
var ErrNoQuestions = errors.New("no questions available for phase")

// Provider returns up to count questions for a phase. It may serve fewer than
// requested; callers must refresh their completion requirement from the
// returned length.
type Provider interface {
	QuestionBatch(ctx context.Context, phaseName string, cfg domain.MatchConfig, count int, seed int64) ([]domain.Question, error)
}

// BatchKey derives a stable cache key for a batch request. Seed and count are
// part of the identity: the same match always resolves to the same batch.
func BatchKey(phaseName string, cfg domain.MatchConfig, count int, seed int64) string {
	return fmt.Sprintf("content:batch:%s:%s:%s:%d:%d", phaseName, cfg.Role, cfg.Level, count, seed)
}
