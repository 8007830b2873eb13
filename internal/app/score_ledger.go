package app

import (
	"context"
	"sync"

	"faceoff-match-service/internal/domain"
	"faceoff-match-service/internal/judge"
	"faceoff-match-service/internal/phase"

	"go.uber.org/zap"
)

// ScoreLedger owns the cumulative per-participant scores of a match and the
// locked read-modify-write protocol that merges a phase's contribution into
// them exactly once.
type ScoreLedger struct {
	store  MatchStore
	oracle judge.Oracle
	log    *zap.Logger
}

// NewScoreLedger builds a ledger over a store and a judging oracle.
func NewScoreLedger(store MatchStore, oracle judge.Oracle, log *zap.Logger) *ScoreLedger {
	return &ScoreLedger{store: store, oracle: oracle, log: log}
}

// MergeResult is the outcome of one phase merge.
type MergeResult struct {
	Scores         map[string]int
	PreviousScores map[string]int
	Contribution   map[string]int
}

// ComputeAndMergePhaseScore scores a completed phase and folds the
// contribution into the cumulative ledger.
//
// The fast path returns the persisted result when the phase was already
// merged, making duplicate triggers harmless. Two near-simultaneous triggers
// can both miss the fast path and both recompute; the lock below makes the
// second merge a no-op, so the race wastes work but stays correct.
//
// Oracle calls run before the lock is taken and per participant: a failure
// degrades that participant's contribution to zero without blocking the rest.
func (l *ScoreLedger) ComputeAndMergePhaseScore(ctx context.Context, match *domain.Match, phaseName string, participants []string, questions []domain.Question) (MergeResult, error) {
	state, err := l.store.ReadState(ctx, match.ID)
	if err != nil {
		return MergeResult{}, err
	}
	if contribution, done := state.PhaseContribution(phaseName); done {
		return MergeResult{
			Scores:         state.IntMap(domain.StateScores),
			PreviousScores: state.IntMap(domain.StatePreviousScores),
			Contribution:   contribution,
		}, nil
	}

	contribution, err := l.scorePhase(ctx, match, phaseName, participants, questions)
	if err != nil {
		return MergeResult{}, err
	}

	var result MergeResult
	err = l.store.WithMatchLock(ctx, match.ID, func(tx StateTx) error {
		latest, err := tx.Read()
		if err != nil {
			return err
		}
		// Another trigger may have merged while we were scoring.
		if existing, done := latest.PhaseContribution(phaseName); done {
			result = MergeResult{
				Scores:         latest.IntMap(domain.StateScores),
				PreviousScores: latest.IntMap(domain.StatePreviousScores),
				Contribution:   existing,
			}
			return nil
		}

		previous := latest.IntMap(domain.StateScores)
		for _, pid := range participants {
			if _, ok := previous[pid]; !ok {
				previous[pid] = 0
			}
		}
		updated := make(map[string]int, len(previous))
		for pid, score := range previous {
			updated[pid] = score + contribution[pid]
		}

		delta := domain.GameState{
			domain.StateScores:         intMapAny(updated),
			domain.StatePreviousScores: intMapAny(previous),
			domain.StatePhaseScores: map[string]any{
				phaseName: intMapAny(contribution),
			},
		}
		if err := tx.Merge(delta); err != nil {
			return err
		}
		result = MergeResult{Scores: updated, PreviousScores: previous, Contribution: contribution}
		return nil
	})
	if err != nil {
		return MergeResult{}, err
	}
	return result, nil
}

// scorePhase judges every participant's latest answers for the phase
// concurrently, with no lock held.
func (l *ScoreLedger) scorePhase(ctx context.Context, match *domain.Match, phaseName string, participants []string, questions []domain.Question) (map[string]int, error) {
	submissions, err := l.store.ListSubmissions(ctx, match.ID)
	if err != nil {
		return nil, err
	}
	latest := latestAnswers(submissions, phaseName)

	var mu sync.Mutex
	contribution := make(map[string]int, len(participants))
	var wg sync.WaitGroup
	for _, pid := range participants {
		contribution[pid] = 0
		wg.Add(1)
		go func(pid string) {
			defer wg.Done()
			points := 0
			for index, question := range questions {
				answer, ok := latest[answerKey{pid, index}]
				if !ok || answer.TimedOut {
					continue
				}
				earned, err := l.scoreAnswer(ctx, phaseName, question, answer)
				if err != nil {
					l.log.Warn("oracle failed, contribution degraded to zero for item",
						zap.String("matchId", match.ID),
						zap.String("phase", phaseName),
						zap.String("participantId", pid),
						zap.Int("questionIndex", index),
						zap.Error(err))
					continue
				}
				points += earned
			}
			mu.Lock()
			contribution[pid] = points
			mu.Unlock()
		}(pid)
	}
	wg.Wait()
	return contribution, nil
}

func (l *ScoreLedger) scoreAnswer(ctx context.Context, phaseName string, question domain.Question, answer domain.Answer) (int, error) {
	switch {
	case len(question.Options) > 0:
		verdict, err := l.oracle.ScoreChoice(ctx, question, answer.OptionID)
		if err != nil {
			return 0, err
		}
		return verdict.Points, nil
	case phaseName == phase.Practical:
		verdict, err := l.oracle.ScorePractical(ctx, question, answer.Parts)
		if err != nil {
			return 0, err
		}
		return verdict.Points(), nil
	default:
		verdict, err := l.oracle.ScoreFreeText(ctx, question, answer.Text)
		if err != nil {
			return 0, err
		}
		return verdict.Points, nil
	}
}

type answerKey struct {
	participantID string
	index         int
}

// latestAnswers resolves duplicate resubmissions: last write wins.
func latestAnswers(submissions []domain.Submission, phaseName string) map[answerKey]domain.Answer {
	out := make(map[answerKey]domain.Answer)
	for _, sub := range submissions {
		if sub.Phase != phaseName {
			continue
		}
		out[answerKey{sub.ParticipantID, sub.QuestionIndex}] = sub.Answer
	}
	return out
}

func intMapAny(in map[string]int) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
