package app

import (
	"crypto/rand"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"faceoff-match-service/internal/domain"

	"github.com/google/uuid"
)

// SessionRepository abstracts how live sessions are stored (in-memory, Redis-
// marked, etc). Codes are stored uppercase; callers normalize via NormalizeCode.
type SessionRepository interface {
	Create(code string) *Session
	Get(code string) (*Session, bool)
	DeleteIfEmpty(code string)
}

// Session is a joinable lobby: a roster of participants, an owner, and a
// lifecycle status. Transport connections are tracked by the gateway, not
// here.
type Session struct {
	code      string
	createdAt time.Time
	now       func() time.Time

	mu           sync.RWMutex
	status       domain.SessionStatus
	ownerID      string
	order        []string
	participants map[string]*domain.Participant
	matchID      string
}

// NewSession is exported for repository implementations.
func NewSession(code string) *Session {
	return NewSessionWithClock(code, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(code string, now func() time.Time) *Session {
	return &Session{
		code:         code,
		createdAt:    now(),
		now:          now,
		status:       domain.SessionWaiting,
		participants: make(map[string]*domain.Participant),
	}
}

// Code returns the session's join code.
func (s *Session) Code() string { return s.code }

// Join adds a participant. Display names are unique within a session; the
// first joiner becomes owner.
func (s *Session) Join(displayName string) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.participants {
		if strings.EqualFold(p.DisplayName, displayName) {
			return domain.Participant{}, domain.ErrNameTaken
		}
	}
	p := &domain.Participant{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		JoinedAt:    s.now(),
	}
	s.participants[p.ID] = p
	s.order = append(s.order, p.ID)
	if s.ownerID == "" {
		s.ownerID = p.ID
	}
	return *p, nil
}

// Leave removes a participant. If the owner leaves, ownership transfers to
// the next participant in join order.
func (s *Session) Leave(participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(participantID)
}

// Kick removes target from the session; owner only.
func (s *Session) Kick(byID, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if byID != s.ownerID {
		return domain.ErrNotOwner
	}
	return s.removeLocked(targetID)
}

// TransferOwnership hands the session to another participant; owner only.
func (s *Session) TransferOwnership(byID, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if byID != s.ownerID {
		return domain.ErrNotOwner
	}
	if _, ok := s.participants[targetID]; !ok {
		return domain.ErrParticipantNotFound
	}
	s.ownerID = targetID
	return nil
}

func (s *Session) removeLocked(participantID string) error {
	if _, ok := s.participants[participantID]; !ok {
		return domain.ErrParticipantNotFound
	}
	delete(s.participants, participantID)
	for i, id := range s.order {
		if id == participantID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.ownerID == participantID {
		s.ownerID = ""
		if len(s.order) > 0 {
			s.ownerID = s.order[0]
		}
	}
	return nil
}

// Has reports whether a participant belongs to the session.
func (s *Session) Has(participantID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.participants[participantID]
	return ok
}

// Roster returns participants in join order.
func (s *Session) Roster() []domain.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Participant, 0, len(s.order))
	for _, id := range s.order {
		if p, ok := s.participants[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// RosterIDs returns participant ids in join order.
func (s *Session) RosterIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// OwnerID returns the current owner.
func (s *Session) OwnerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ownerID
}

// Status returns the lifecycle status.
func (s *Session) Status() domain.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetStatus updates the lifecycle status.
func (s *Session) SetStatus(status domain.SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// BeginStart moves waiting -> starting; only the owner may trigger it and
// only once.
func (s *Session) BeginStart(byID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if byID != s.ownerID {
		return domain.ErrNotOwner
	}
	if s.status != domain.SessionWaiting {
		return domain.ErrMatchAlreadyStarted
	}
	s.status = domain.SessionStarting
	return nil
}

// MatchID returns the running match's id, empty before start.
func (s *Session) MatchID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matchID
}

// SetMatchID binds the session to its match.
func (s *Session) SetMatchID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matchID = id
}

// IsEmpty reports whether the session has no participants.
func (s *Session) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participants) == 0
}

// RosterPayload snapshots the roster for events, sorted by join order.
func (s *Session) RosterPayload() domain.RosterPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	participants := make([]domain.Participant, 0, len(s.order))
	for _, id := range s.order {
		if p, ok := s.participants[id]; ok {
			participants = append(participants, *p)
		}
	}
	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})
	return domain.RosterPayload{
		Participants: participants,
		OwnerID:      s.ownerID,
		Status:       s.status,
	}
}

// NormalizeCode uppercases a human-entered join code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateCode produces a 6-character join code.
func GenerateCode() (string, error) {
	code := make([]byte, 6)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[n.Int64()]
	}
	return string(code), nil
}
