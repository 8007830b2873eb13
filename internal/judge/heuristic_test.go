package judge

import (
	"context"
	"testing"
	"time"

	"faceoff-match-service/internal/domain"
)

func TestFreeTextKeywordCoverage(t *testing.T) {
	oracle := NewHeuristic()
	question := domain.Question{
		ID:       "q1",
		Prompt:   "Explain caching",
		Keywords: []string{"ttl", "eviction"},
	}

	verdict, err := oracle.ScoreFreeText(context.Background(), question, "Set a TTL and an eviction policy")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if verdict.Points != 10 {
		t.Fatalf("full coverage should earn max, got %d", verdict.Points)
	}

	verdict, _ = oracle.ScoreFreeText(context.Background(), question, "Set a ttl")
	if verdict.Points != 5 {
		t.Fatalf("half coverage should earn half, got %d", verdict.Points)
	}

	verdict, _ = oracle.ScoreFreeText(context.Background(), question, "   ")
	if verdict.Points != 0 {
		t.Fatalf("blank answer scored: %d", verdict.Points)
	}
}

func TestChoiceAnswerKey(t *testing.T) {
	oracle := NewHeuristic()
	question := domain.Question{
		ID:     "q1",
		Points: 3,
		Options: []domain.Option{
			{ID: "a", Text: "Right", Correct: true},
			{ID: "b", Text: "Wrong"},
		},
	}

	verdict, err := oracle.ScoreChoice(context.Background(), question, "a")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if !verdict.Correct || verdict.Points != 3 {
		t.Fatalf("expected 3 points for the key, got %+v", verdict)
	}

	verdict, _ = oracle.ScoreChoice(context.Background(), question, "b")
	if verdict.Correct || verdict.Points != 0 {
		t.Fatalf("wrong option scored: %+v", verdict)
	}

	if _, err := oracle.ScoreChoice(context.Background(), question, "zz"); err != domain.ErrQuestionOutOfRange {
		t.Fatalf("expected error for unknown option, got %v", err)
	}
}

func TestPracticalPartCredit(t *testing.T) {
	oracle := NewHeuristic()
	verdict, err := oracle.ScorePractical(context.Background(), domain.Question{ID: "p1"}, map[string]string{
		"design":  "a token bucket refilled on a schedule",
		"failure": "degrade",
		"empty":   "  ",
	})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if verdict.Subscores["design"] != 4 || verdict.Subscores["failure"] != 2 || verdict.Subscores["empty"] != 0 {
		t.Fatalf("unexpected subscores: %+v", verdict.Subscores)
	}
	if verdict.Points() != 6 {
		t.Fatalf("expected summed points 6, got %d", verdict.Points())
	}
}

func TestBoundedPropagatesExpiredContext(t *testing.T) {
	oracle := NewBounded(NewHeuristic(), -time.Second)

	question := domain.Question{ID: "q1", Keywords: []string{"x"}}
	if _, err := oracle.ScoreFreeText(context.Background(), question, "x"); err == nil {
		t.Fatalf("expected timeout error")
	}
}
