package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"faceoff-match-service/internal/app"
	"faceoff-match-service/internal/domain"
	"faceoff-match-service/internal/infra/memory"
	"faceoff-match-service/internal/judge"

	"go.uber.org/zap"
)

func ledgerFixture(t *testing.T) (*app.ScoreLedger, *memory.MatchStore, *domain.Match, []domain.Question) {
	t.Helper()
	store := memory.NewMatchStore()
	ledger := app.NewScoreLedger(store, judge.NewHeuristic(), zap.NewNop())

	match := &domain.Match{
		ID:          "m1",
		SessionCode: "ABC123",
		Type:        domain.MatchTypeStandard,
		Scores:      map[string]int{"p1": 0, "p2": 0},
		CreatedAt:   time.Now(),
	}
	if err := store.CreateMatch(context.Background(), match); err != nil {
		t.Fatalf("create match: %v", err)
	}

	questions := []domain.Question{
		{ID: "q1", Prompt: "Pick", Options: []domain.Option{
			{ID: "a", Text: "Right", Correct: true},
			{ID: "b", Text: "Wrong"},
		}},
	}
	record := func(pid, optionID string) {
		t.Helper()
		err := store.AppendSubmission(context.Background(), domain.Submission{
			MatchID:       "m1",
			ParticipantID: pid,
			Phase:         "round",
			QuestionIndex: 0,
			Answer:        domain.Answer{OptionID: optionID},
			CreatedAt:     time.Now(),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	record("p1", "a")
	record("p2", "b")
	return ledger, store, match, questions
}

func TestMergeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger, store, match, questions := ledgerFixture(t)
	participants := []string{"p1", "p2"}

	first, err := ledger.ComputeAndMergePhaseScore(ctx, match, "round", participants, questions)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if first.Scores["p1"] != 5 || first.Scores["p2"] != 0 {
		t.Fatalf("unexpected scores: %+v", first.Scores)
	}
	if first.PreviousScores["p1"] != 0 {
		t.Fatalf("unexpected previous scores: %+v", first.PreviousScores)
	}

	second, err := ledger.ComputeAndMergePhaseScore(ctx, match, "round", participants, questions)
	if err != nil {
		t.Fatalf("repeat merge: %v", err)
	}
	if second.Scores["p1"] != 5 {
		t.Fatalf("repeat merge changed scores: %+v", second.Scores)
	}

	state, err := store.ReadState(ctx, match.ID)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if got := state.IntMap(domain.StateScores); got["p1"] != 5 {
		t.Fatalf("persisted scores double counted: %+v", got)
	}
}

func TestConcurrentMergeCountsOnce(t *testing.T) {
	ctx := context.Background()
	ledger, store, match, questions := ledgerFixture(t)
	participants := []string{"p1", "p2"}

	var wg sync.WaitGroup
	results := make([]app.MergeResult, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ledger.ComputeAndMergePhaseScore(ctx, match, "round", participants, questions)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("merge %d: %v", i, err)
		}
		if results[i].Scores["p1"] != 5 {
			t.Fatalf("merge %d returned wrong scores: %+v", i, results[i].Scores)
		}
	}

	state, err := store.ReadState(ctx, match.ID)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if got := state.IntMap(domain.StateScores); got["p1"] != 5 || got["p2"] != 0 {
		t.Fatalf("concurrent merges double counted: %+v", got)
	}
	if contribution, done := state.PhaseContribution("round"); !done || contribution["p1"] != 5 {
		t.Fatalf("missing phase contribution marker: %+v done=%v", contribution, done)
	}
}

func TestMergeTracksResubmission(t *testing.T) {
	ctx := context.Background()
	ledger, store, match, questions := ledgerFixture(t)

	// p2 corrects their answer before the phase merges; last write wins.
	err := store.AppendSubmission(ctx, domain.Submission{
		MatchID:       "m1",
		ParticipantID: "p2",
		Phase:         "round",
		QuestionIndex: 0,
		Answer:        domain.Answer{OptionID: "a"},
		CreatedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	result, err := ledger.ComputeAndMergePhaseScore(ctx, match, "round", []string{"p1", "p2"}, questions)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if result.Scores["p2"] != 5 {
		t.Fatalf("resubmission ignored: %+v", result.Scores)
	}
}
