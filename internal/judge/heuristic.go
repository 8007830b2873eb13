package judge

import (
	"context"
	"fmt"
	"strings"

	"faceoff-match-service/internal/domain"
)

const (
	defaultFreeTextMax = 10
	defaultChoicePts   = 5
	defaultPartPts     = 4
)

// Heuristic is the built-in deterministic oracle: keyword coverage for
// free-text answers, answer-key lookup for fixed-choice, per-part credit for
// practical submissions. It stands in for the remote judges in development
// and tests.
type Heuristic struct{}

// NewHeuristic returns the default oracle.
func NewHeuristic() *Heuristic { return &Heuristic{} }

func (h *Heuristic) ScoreFreeText(ctx context.Context, question domain.Question, answer string) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}
	max := question.Points
	if max == 0 {
		max = defaultFreeTextMax
	}
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return Verdict{Points: 0, Rationale: "no answer given"}, nil
	}
	if len(question.Keywords) == 0 {
		// Without keywords, any substantive answer earns half credit.
		return Verdict{Points: max / 2, Rationale: "answer recorded, no rubric keywords"}, nil
	}
	lower := strings.ToLower(trimmed)
	hits := 0
	for _, kw := range question.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			hits++
		}
	}
	points := max * hits / len(question.Keywords)
	return Verdict{
		Points:    points,
		Rationale: fmt.Sprintf("matched %d of %d rubric keywords", hits, len(question.Keywords)),
	}, nil
}

func (h *Heuristic) ScoreChoice(ctx context.Context, question domain.Question, optionID string) (ChoiceVerdict, error) {
	if err := ctx.Err(); err != nil {
		return ChoiceVerdict{}, err
	}
	points := question.Points
	if points == 0 {
		points = defaultChoicePts
	}
	for _, opt := range question.Options {
		if opt.ID == optionID {
			if opt.Correct {
				return ChoiceVerdict{Points: points, Correct: true}, nil
			}
			return ChoiceVerdict{}, nil
		}
	}
	return ChoiceVerdict{}, domain.ErrQuestionOutOfRange
}

func (h *Heuristic) ScorePractical(ctx context.Context, question domain.Question, parts map[string]string) (PracticalVerdict, error) {
	if err := ctx.Err(); err != nil {
		return PracticalVerdict{}, err
	}
	subscores := make(map[string]int, len(parts))
	for name, content := range parts {
		trimmed := strings.TrimSpace(content)
		switch {
		case trimmed == "":
			subscores[name] = 0
		case len(trimmed) < 20:
			subscores[name] = defaultPartPts / 2
		default:
			subscores[name] = defaultPartPts
		}
	}
	return PracticalVerdict{
		Subscores: subscores,
		Rationale: fmt.Sprintf("scored %d submission parts", len(parts)),
	}, nil
}
