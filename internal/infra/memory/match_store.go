package memory

import (
	"context"
	"sync"

	"faceoff-match-service/internal/app"
	"faceoff-match-service/internal/domain"
)

// MatchStore is the in-memory implementation of app.MatchStore, used in
// tests and redis/postgres-less deployments. Each match record carries its
// own mutex: MergeState serializes read-modify-write cycles per match, and
// WithMatchLock holds the same mutex across the caller's whole critical
// section, mirroring the row lock the postgres store takes.
type MatchStore struct {
	mu      sync.RWMutex
	matches map[string]*matchRecord
}

type matchRecord struct {
	mu          sync.Mutex
	match       domain.Match
	state       domain.GameState
	submissions []domain.Submission
}

func NewMatchStore() *MatchStore {
	return &MatchStore{matches: make(map[string]*matchRecord)}
}

func (s *MatchStore) CreateMatch(_ context.Context, match *domain.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[match.ID] = &matchRecord{match: *match, state: domain.GameState{}}
	return nil
}

func (s *MatchStore) GetMatch(_ context.Context, matchID string) (*domain.Match, error) {
	rec, err := s.record(matchID)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	m := rec.match
	return &m, nil
}

func (s *MatchStore) GetMatchBySession(_ context.Context, sessionCode string) (*domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *matchRecord
	for _, rec := range s.matches {
		rec.mu.Lock()
		if rec.match.SessionCode == sessionCode {
			if found == nil || rec.match.CreatedAt.After(found.match.CreatedAt) {
				found = rec
			}
		}
		rec.mu.Unlock()
	}
	if found == nil {
		return nil, domain.ErrMatchNotFound
	}
	found.mu.Lock()
	defer found.mu.Unlock()
	m := found.match
	return &m, nil
}

func (s *MatchStore) UpdateMatch(_ context.Context, match *domain.Match) error {
	rec, err := s.record(match.ID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.match = *match
	return nil
}

func (s *MatchStore) AppendSubmission(_ context.Context, sub domain.Submission) error {
	rec, err := s.record(sub.MatchID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.submissions = append(rec.submissions, sub)
	return nil
}

func (s *MatchStore) ListSubmissions(_ context.Context, matchID string) ([]domain.Submission, error) {
	rec, err := s.record(matchID)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]domain.Submission, len(rec.submissions))
	copy(out, rec.submissions)
	return out, nil
}

func (s *MatchStore) ReadState(_ context.Context, matchID string) (domain.GameState, error) {
	rec, err := s.record(matchID)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.state.Clone(), nil
}

func (s *MatchStore) MergeState(_ context.Context, matchID string, delta domain.GameState) error {
	rec, err := s.record(matchID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.state = domain.MergeState(rec.state, delta.Clone())
	return nil
}

func (s *MatchStore) WithMatchLock(_ context.Context, matchID string, fn func(tx app.StateTx) error) error {
	rec, err := s.record(matchID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return fn(&memoryTx{rec: rec})
}

func (s *MatchStore) record(matchID string) (*matchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.matches[matchID]
	if !ok {
		return nil, domain.ErrMatchNotFound
	}
	return rec, nil
}

// memoryTx operates on a record whose mutex the caller already holds.
type memoryTx struct {
	rec *matchRecord
}

func (tx *memoryTx) Read() (domain.GameState, error) {
	return tx.rec.state.Clone(), nil
}

func (tx *memoryTx) Merge(delta domain.GameState) error {
	tx.rec.state = domain.MergeState(tx.rec.state, delta.Clone())
	return nil
}
