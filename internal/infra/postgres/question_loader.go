package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"faceoff-match-service/internal/domain"

	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionPoolLoader loads per-phase question pools from Postgres jsonb.
type QuestionPoolLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionPoolLoader(pool *pgxpool.Pool) *QuestionPoolLoader {
	return &QuestionPoolLoader{pool: pool}
}

// LoadPools returns all phase pools keyed by phase name.
func (l *QuestionPoolLoader) LoadPools(ctx context.Context) (map[string][]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT phase, data FROM question_pools`)
	if err != nil {
		return nil, fmt.Errorf("load question pools: %w", err)
	}
	defer rows.Close()

	pools := make(map[string][]domain.Question)
	for rows.Next() {
		var phase string
		var raw []byte
		if err := rows.Scan(&phase, &raw); err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		var questions []domain.Question
		if err := json.Unmarshal(raw, &questions); err != nil {
			return nil, fmt.Errorf("unmarshal pool %s: %w", phase, err)
		}
		pools[phase] = questions
	}
	return pools, rows.Err()
}
