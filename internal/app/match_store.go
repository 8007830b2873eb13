package app

import (
	"context"

	"faceoff-match-service/internal/domain"
)

// StateTx is the view of a match's game state inside the match-scoped lock.
type StateTx interface {
	// Read returns the latest persisted state.
	Read() (domain.GameState, error)
	// Merge folds the delta's touched sub-trees into the persisted state.
	Merge(delta domain.GameState) error
}

// MatchStore persists matches, the append-only submission log, and the game
// state tree. MergeState re-reads the latest persisted value before merging so
// concurrent writers never clobber sibling sub-trees; WithMatchLock provides
// the match-scoped pessimistic lock the score merge runs under.
type MatchStore interface {
	CreateMatch(ctx context.Context, match *domain.Match) error
	GetMatch(ctx context.Context, matchID string) (*domain.Match, error)
	GetMatchBySession(ctx context.Context, sessionCode string) (*domain.Match, error)
	UpdateMatch(ctx context.Context, match *domain.Match) error

	AppendSubmission(ctx context.Context, sub domain.Submission) error
	ListSubmissions(ctx context.Context, matchID string) ([]domain.Submission, error)

	ReadState(ctx context.Context, matchID string) (domain.GameState, error)
	MergeState(ctx context.Context, matchID string, delta domain.GameState) error
	WithMatchLock(ctx context.Context, matchID string, fn func(tx StateTx) error) error
}
