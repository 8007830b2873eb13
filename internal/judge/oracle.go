// Package judge defines the scoring-oracle boundary. Oracles are black boxes
// with a bounded-timeout contract: a failed or slow call degrades that one
// contribution to zero, it never blocks phase advancement for the rest of the
// match.
package judge

import (
	"context"
	"time"

	"faceoff-match-service/internal/domain"
)

// Verdict scores one free-text answer.
type Verdict struct {
	Points    int    `json:"points"`
	Rationale string `json:"rationale"`
}

// ChoiceVerdict scores one fixed-choice answer with fixed points per correct.
type ChoiceVerdict struct {
	Points  int  `json:"points"`
	Correct bool `json:"correct"`
}

// PracticalVerdict scores a multi-part practical submission.
type PracticalVerdict struct {
	Subscores map[string]int `json:"subscores"`
	Rationale string         `json:"rationale"`
}

// Points sums the subscores.
func (v PracticalVerdict) Points() int {
	total := 0
	for _, n := range v.Subscores {
		total += n
	}
	return total
}

// Oracle judges answers. Implementations may be slow or remote; callers must
// never invoke them while holding the match lock.
type Oracle interface {
	ScoreFreeText(ctx context.Context, question domain.Question, answer string) (Verdict, error)
	ScoreChoice(ctx context.Context, question domain.Question, optionID string) (ChoiceVerdict, error)
	ScorePractical(ctx context.Context, question domain.Question, parts map[string]string) (PracticalVerdict, error)
}

// Bounded wraps an oracle with a per-call timeout.
type Bounded struct {
	inner   Oracle
	timeout time.Duration
}

// NewBounded enforces timeout on every call to inner.
func NewBounded(inner Oracle, timeout time.Duration) *Bounded {
	return &Bounded{inner: inner, timeout: timeout}
}

func (b *Bounded) ScoreFreeText(ctx context.Context, question domain.Question, answer string) (Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.ScoreFreeText(ctx, question, answer)
}

func (b *Bounded) ScoreChoice(ctx context.Context, question domain.Question, optionID string) (ChoiceVerdict, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.ScoreChoice(ctx, question, optionID)
}

func (b *Bounded) ScorePractical(ctx context.Context, question domain.Question, parts map[string]string) (PracticalVerdict, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.ScorePractical(ctx, question, parts)
}
