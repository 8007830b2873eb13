package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"faceoff-match-service/internal/app"
	"faceoff-match-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// MatchStore is the durable implementation of app.MatchStore. The game state
// lives as one jsonb column per match; every write re-reads the latest row
// under a `FOR UPDATE` lock and merges only the delta's sub-trees, so
// concurrent handlers for the same match never clobber each other's writes.
type MatchStore struct {
	pool *pgxpool.Pool
}

func NewMatchStore(pool *pgxpool.Pool) *MatchStore {
	return &MatchStore{pool: pool}
}

func (s *MatchStore) CreateMatch(ctx context.Context, match *domain.Match) error {
	config, err := json.Marshal(match.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	scores, err := json.Marshal(match.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO matches (id, session_code, match_type, config, scores, state, created_at)
		VALUES ($1, $2, $3, $4, $5, '{}'::jsonb, $6)`,
		match.ID, match.SessionCode, string(match.Type), config, scores, match.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

func (s *MatchStore) GetMatch(ctx context.Context, matchID string) (*domain.Match, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, session_code, match_type, config, scores, created_at, started_at, completed_at, winner_id
		FROM matches WHERE id=$1`, matchID)
	return scanMatch(row)
}

func (s *MatchStore) GetMatchBySession(ctx context.Context, sessionCode string) (*domain.Match, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, session_code, match_type, config, scores, created_at, started_at, completed_at, winner_id
		FROM matches WHERE session_code=$1 ORDER BY created_at DESC LIMIT 1`, sessionCode)
	return scanMatch(row)
}

func (s *MatchStore) UpdateMatch(ctx context.Context, match *domain.Match) error {
	scores, err := json.Marshal(match.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	winner := any(nil)
	if match.WinnerID != "" {
		winner = match.WinnerID
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE matches SET scores=$2, started_at=$3, completed_at=$4, winner_id=$5 WHERE id=$1`,
		match.ID, scores, match.StartedAt, match.CompletedAt, winner)
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	return nil
}

func (s *MatchStore) AppendSubmission(ctx context.Context, sub domain.Submission) error {
	answer, err := json.Marshal(sub.Answer)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO submissions (match_id, participant_id, phase, question_index, answer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sub.MatchID, sub.ParticipantID, sub.Phase, sub.QuestionIndex, answer, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *MatchStore) ListSubmissions(ctx context.Context, matchID string) ([]domain.Submission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT match_id, participant_id, phase, question_index, answer, created_at
		FROM submissions WHERE match_id=$1 ORDER BY id`, matchID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []domain.Submission
	for rows.Next() {
		var sub domain.Submission
		var answer []byte
		if err := rows.Scan(&sub.MatchID, &sub.ParticipantID, &sub.Phase, &sub.QuestionIndex, &answer, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if err := json.Unmarshal(answer, &sub.Answer); err != nil {
			return nil, fmt.Errorf("unmarshal answer: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *MatchStore) ReadState(ctx context.Context, matchID string) (domain.GameState, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM matches WHERE id=$1`, matchID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	return unmarshalState(raw)
}

func (s *MatchStore) MergeState(ctx context.Context, matchID string, delta domain.GameState) error {
	return s.WithMatchLock(ctx, matchID, func(tx app.StateTx) error {
		return tx.Merge(delta)
	})
}

// WithMatchLock runs fn while holding the match's row lock: a transaction
// with `SELECT ... FOR UPDATE` on the match row, the single-row pessimistic
// lock behind the score-merge protocol.
func (s *MatchStore) WithMatchLock(ctx context.Context, matchID string, fn func(tx app.StateTx) error) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer pgtx.Rollback(ctx)

	var raw []byte
	err = pgtx.QueryRow(ctx, `SELECT state FROM matches WHERE id=$1 FOR UPDATE`, matchID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrMatchNotFound
	}
	if err != nil {
		return fmt.Errorf("lock match: %w", err)
	}
	state, err := unmarshalState(raw)
	if err != nil {
		return err
	}

	tx := &pgStateTx{ctx: ctx, tx: pgtx, matchID: matchID, state: state}
	if err := fn(tx); err != nil {
		return err
	}
	return pgtx.Commit(ctx)
}

type pgStateTx struct {
	ctx     context.Context
	tx      pgx.Tx
	matchID string
	state   domain.GameState
}

func (t *pgStateTx) Read() (domain.GameState, error) {
	return t.state.Clone(), nil
}

func (t *pgStateTx) Merge(delta domain.GameState) error {
	t.state = domain.MergeState(t.state, delta.Clone())
	raw, err := json.Marshal(t.state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if _, err := t.tx.Exec(t.ctx, `UPDATE matches SET state=$2 WHERE id=$1`, t.matchID, raw); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

func scanMatch(row pgx.Row) (*domain.Match, error) {
	var m domain.Match
	var matchType string
	var config, scores []byte
	var winner *string
	err := row.Scan(&m.ID, &m.SessionCode, &matchType, &config, &scores, &m.CreatedAt, &m.StartedAt, &m.CompletedAt, &winner)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan match: %w", err)
	}
	m.Type = domain.MatchType(matchType)
	if err := json.Unmarshal(config, &m.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := json.Unmarshal(scores, &m.Scores); err != nil {
		return nil, fmt.Errorf("unmarshal scores: %w", err)
	}
	if winner != nil {
		m.WinnerID = *winner
	}
	return &m, nil
}

func unmarshalState(raw []byte) (domain.GameState, error) {
	if len(raw) == 0 {
		return domain.GameState{}, nil
	}
	var state domain.GameState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return state, nil
}
