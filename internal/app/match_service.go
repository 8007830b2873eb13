package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"faceoff-match-service/internal/content"
	"faceoff-match-service/internal/domain"
	"faceoff-match-service/internal/phase"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MatchService is the session coordinator: it owns the authoritative phase
// sequence of every match and is the only component that raises
// phase-transition events. It holds no transport state; every operation
// returns the events the caller should hand to the broadcast gateway.
type MatchService struct {
	sessions SessionRepository
	store    MatchStore
	provider content.Provider
	registry *phase.Registry
	ledger   *ScoreLedger
	log      *zap.Logger

	mu       sync.Mutex
	runtimes map[string]*matchRuntime // session code -> live match runtime
}

// matchRuntime is the in-memory tracking state for one running match. It is
// a cache over persisted submissions: after a restart it is rebuilt from the
// submission log before any completion evaluation is trusted.
type matchRuntime struct {
	mu          sync.Mutex
	match       *domain.Match
	trackers    *phase.Set
	questions   map[string][]domain.Question
	fired       map[string]bool // aggregation claimed per phase
	advanced    map[string]int  // highest within-phase index announced
	suddenDeath bool
	finalized   bool
}

// NewMatchService wires the coordinator.
func NewMatchService(sessions SessionRepository, store MatchStore, provider content.Provider, registry *phase.Registry, ledger *ScoreLedger, log *zap.Logger) *MatchService {
	return &MatchService{
		sessions: sessions,
		store:    store,
		provider: provider,
		registry: registry,
		ledger:   ledger,
		log:      log,
		runtimes: make(map[string]*matchRuntime),
	}
}

// CreateSession opens a new lobby and joins the creator as its owner.
func (s *MatchService) CreateSession(ctx context.Context, displayName string) (*Session, domain.Participant, error) {
	var code string
	for {
		c, err := GenerateCode()
		if err != nil {
			return nil, domain.Participant{}, fmt.Errorf("generate code: %w", err)
		}
		if _, taken := s.sessions.Get(c); !taken {
			code = c
			break
		}
	}
	session := s.sessions.Create(code)
	owner, err := session.Join(displayName)
	if err != nil {
		return nil, domain.Participant{}, err
	}
	s.log.Info("session created", zap.String("code", code), zap.String("ownerId", owner.ID))
	return session, owner, nil
}

// JoinSession adds a participant by case-insensitive code.
func (s *MatchService) JoinSession(ctx context.Context, code, displayName string) (*Session, domain.Participant, []domain.Event, error) {
	session, ok := s.sessions.Get(NormalizeCode(code))
	if !ok {
		return nil, domain.Participant{}, nil, domain.ErrSessionNotFound
	}
	p, err := session.Join(displayName)
	if err != nil {
		return nil, domain.Participant{}, nil, err
	}
	return session, p, []domain.Event{rosterEvent(session)}, nil
}

// LeaveSession removes a participant. During a running match the leaver is
// marked eliminated so the remaining participants' phases can still complete.
func (s *MatchService) LeaveSession(ctx context.Context, code, participantID string) ([]domain.Event, error) {
	code = NormalizeCode(code)
	session, ok := s.sessions.Get(code)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if err := session.Leave(participantID); err != nil {
		return nil, err
	}
	if err := s.excuseFromMatch(ctx, code, participantID); err != nil {
		return nil, err
	}
	if session.IsEmpty() {
		s.sessions.DeleteIfEmpty(code)
		s.evictRuntime(code)
		return nil, nil
	}
	return []domain.Event{rosterEvent(session)}, nil
}

// KickParticipant removes target from the session; owner only. The target
// receives a targeted kicked event before the roster update goes out.
func (s *MatchService) KickParticipant(ctx context.Context, code, byID, targetID string) ([]domain.Event, error) {
	code = NormalizeCode(code)
	session, ok := s.sessions.Get(code)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if err := session.Kick(byID, targetID); err != nil {
		return nil, err
	}
	if err := s.excuseFromMatch(ctx, code, targetID); err != nil {
		return nil, err
	}
	events := []domain.Event{
		{Type: domain.EventKicked, SessionCode: code, TargetID: targetID, Payload: domain.KickedPayload{Reason: "removed by owner"}},
		rosterEvent(session),
	}
	return events, nil
}

// TransferOwnership hands the session to another participant; owner only.
func (s *MatchService) TransferOwnership(ctx context.Context, code, byID, targetID string) ([]domain.Event, error) {
	session, ok := s.sessions.Get(NormalizeCode(code))
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if err := session.TransferOwnership(byID, targetID); err != nil {
		return nil, err
	}
	return []domain.Event{rosterEvent(session)}, nil
}

// StartMatch creates the match for a waiting session. Owner only, exactly
// once: the cumulative score map is seeded with a zero entry for every
// participant in the roster at creation time.
func (s *MatchService) StartMatch(ctx context.Context, code, byID string, matchType domain.MatchType, cfg domain.MatchConfig) (*domain.Match, []domain.Event, error) {
	code = NormalizeCode(code)
	session, ok := s.sessions.Get(code)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	if err := session.BeginStart(byID); err != nil {
		return nil, nil, err
	}

	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	match := &domain.Match{
		ID:          uuid.NewString(),
		SessionCode: code,
		Type:        matchType,
		Config:      cfg,
		Scores:      make(map[string]int),
		CreatedAt:   time.Now(),
	}
	for _, pid := range session.RosterIDs() {
		match.Scores[pid] = 0
	}

	rt, optionOrder, err := s.buildRuntime(ctx, match)
	if err != nil {
		session.SetStatus(domain.SessionWaiting)
		return nil, nil, err
	}

	if err := s.store.CreateMatch(ctx, match); err != nil {
		session.SetStatus(domain.SessionWaiting)
		return nil, nil, fmt.Errorf("persist match: %w", err)
	}
	initial := domain.GameState{
		domain.StateScores:         intMapAny(match.Scores),
		domain.StatePreviousScores: intMapAny(match.Scores),
		domain.StateCurrentPhase:   s.registry.Sequence()[0],
		domain.StateOptionOrder:    optionOrder,
	}
	if err := s.store.MergeState(ctx, match.ID, initial); err != nil {
		return nil, nil, fmt.Errorf("seed state: %w", err)
	}

	now := time.Now()
	match.StartedAt = &now
	if err := s.store.UpdateMatch(ctx, match); err != nil {
		return nil, nil, fmt.Errorf("mark started: %w", err)
	}

	session.SetMatchID(match.ID)
	session.SetStatus(domain.SessionRunning)

	s.mu.Lock()
	s.runtimes[code] = rt
	s.mu.Unlock()

	s.log.Info("match started",
		zap.String("code", code),
		zap.String("matchId", match.ID),
		zap.String("matchType", string(matchType)))

	events := []domain.Event{
		rosterEvent(session),
		{Type: domain.EventMatchStarted, SessionCode: code, Payload: domain.MatchStartedPayload{
			MatchID: match.ID,
			Type:    matchType,
			Phases:  s.registry.Sequence(),
		}},
	}
	return match, events, nil
}

// HandleSubmission runs the per-submission protocol: validate, persist the
// raw answer append-only, record it in the phase tracker, then evaluate which
// transition (if any) the submission triggered. Timer expiry flows through
// here as a forced no-answer record.
func (s *MatchService) HandleSubmission(ctx context.Context, code, participantID, phaseName string, questionIndex int, answer domain.Answer) ([]domain.Event, error) {
	code = NormalizeCode(code)
	if _, ok := s.sessions.Get(code); !ok {
		return nil, domain.ErrSessionNotFound
	}
	rt, err := s.runtimeFor(ctx, code)
	if err != nil {
		return nil, err
	}
	if _, ok := rt.match.Scores[participantID]; !ok {
		return nil, domain.ErrParticipantNotFound
	}
	def, err := s.registry.Get(phaseName)
	if err != nil {
		return nil, err
	}
	if len(def.SubPhases()) > 0 {
		// Composite phases are completed through their sub-phases.
		return nil, domain.ErrPhaseUnknown
	}
	tracker, err := rt.trackers.Tracker(phaseName)
	if err != nil {
		return nil, err
	}
	if questionIndex < 0 || questionIndex >= tracker.Required() {
		return nil, domain.ErrQuestionOutOfRange
	}

	sub := domain.Submission{
		MatchID:       rt.match.ID,
		ParticipantID: participantID,
		Phase:         phaseName,
		QuestionIndex: questionIndex,
		Answer:        answer,
		CreatedAt:     time.Now(),
	}
	if err := s.store.AppendSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("persist submission: %w", err)
	}
	if _, err := rt.trackers.Record(phaseName, participantID, questionIndex); err != nil {
		return nil, err
	}

	return s.evaluate(ctx, code, rt, phaseName, questionIndex)
}

// evaluate decides which transition a recorded submission triggered and
// performs the aggregation for at most one trigger. The runtime mutex only
// guards the decision; slow scoring work happens after it is released.
func (s *MatchService) evaluate(ctx context.Context, code string, rt *matchRuntime, phaseName string, questionIndex int) ([]domain.Event, error) {
	state, err := s.store.ReadState(ctx, rt.match.ID)
	if err != nil {
		return nil, err
	}
	active := matchParticipants(rt.match)
	excused := state.Eliminated()

	def, err := s.registry.Get(phaseName)
	if err != nil {
		return nil, err
	}
	tracker, err := rt.trackers.Tracker(phaseName)
	if err != nil {
		return nil, err
	}

	var events []domain.Event
	aggregate := false

	rt.mu.Lock()
	if rt.finalized {
		rt.mu.Unlock()
		return nil, nil
	}
	done := tracker.Complete(active, excused)
	if !done {
		// Terminal sub-question check: the question just answered may now be
		// fully covered with more questions still ahead in the same phase.
		next := questionIndex + 1
		if next < tracker.Required() &&
			rt.advanced[phaseName] < next &&
			tracker.Covered(questionIndex, active, excused) {
			rt.advanced[phaseName] = next
			events = append(events, domain.Event{
				Type:        domain.EventPhaseAdvance,
				SessionCode: code,
				Payload:     domain.PhaseAdvancePayload{Phase: phaseName, QuestionIndex: next},
			})
		}
		rt.mu.Unlock()
		return events, nil
	}
	if !rt.fired[phaseName] {
		rt.fired[phaseName] = true
		aggregate = true
	}
	rt.mu.Unlock()

	if !aggregate {
		// A concurrent submission already claimed this completion.
		return nil, nil
	}

	result, err := s.ledger.ComputeAndMergePhaseScore(ctx, rt.match, phaseName, active, rt.questions[phaseName])
	if err != nil {
		// Release the claim so the next submission retries the merge; the
		// ledger's fast path keeps a repeat over an already-merged phase
		// harmless.
		s.unclaim(rt, phaseName)
		return nil, err
	}

	topPhase := phaseName
	if link, ok := def.Parent(); ok {
		parentDone, err := rt.trackers.Complete(link.Name, active, excused)
		if err != nil {
			s.unclaim(rt, phaseName)
			return nil, err
		}
		if !parentDone {
			parentDef, _ := s.registry.Get(link.Name)
			events = append(events, domain.Event{
				Type:        domain.EventSubphaseAdvance,
				SessionCode: code,
				Payload: domain.SubphaseAdvancePayload{
					Parent:    link.Name,
					Completed: phaseName,
					Next:      nextSibling(parentDef, phaseName),
				},
			})
			return events, nil
		}
		claimed := false
		rt.mu.Lock()
		if !rt.fired[link.Name] {
			rt.fired[link.Name] = true
			claimed = true
		}
		rt.mu.Unlock()
		if !claimed {
			return events, nil
		}
		topPhase = link.Name
	}

	events = append(events, domain.Event{
		Type:        domain.EventPhaseComplete,
		SessionCode: code,
		Payload: domain.PhaseCompletePayload{
			Phase:          topPhase,
			Scores:         result.Scores,
			PreviousScores: result.PreviousScores,
		},
	})

	more, err := s.advanceSequence(ctx, code, rt, topPhase, result, excused)
	if err != nil {
		s.unclaim(rt, phaseName)
		if topPhase != phaseName {
			s.unclaim(rt, topPhase)
		}
		return nil, err
	}
	return append(events, more...), nil
}

// unclaim drops a claimed phase transition after a failed merge or advance so
// a later submission can retry it.
func (s *MatchService) unclaim(rt *matchRuntime, name string) {
	rt.mu.Lock()
	delete(rt.fired, name)
	rt.mu.Unlock()
}

// advanceSequence moves the match past a completed top-level phase: to the
// next phase, into sudden death on a tie at the end, or to finalization.
func (s *MatchService) advanceSequence(ctx context.Context, code string, rt *matchRuntime, completed string, result MergeResult, excused map[string]struct{}) ([]domain.Event, error) {
	sequence := s.registry.Sequence()
	for i, name := range sequence {
		if name != completed {
			continue
		}
		if i+1 < len(sequence) {
			next := sequence[i+1]
			delta := domain.GameState{domain.StateCurrentPhase: next}
			if err := s.store.MergeState(ctx, rt.match.ID, delta); err != nil {
				return nil, err
			}
			return nil, nil
		}
		break
	}

	leaders := topScorers(result.Scores, excused)
	if len(leaders) > 1 && completed != phase.SuddenDeath {
		return s.enterSuddenDeath(ctx, code, rt, result.Scores, leaders)
	}

	winner := ""
	if len(leaders) == 1 {
		winner = leaders[0]
	}
	return s.finalize(ctx, code, rt, winner, result.Scores)
}

// enterSuddenDeath eliminates the trailing participants and opens the
// tie-break phase for the leaders.
func (s *MatchService) enterSuddenDeath(ctx context.Context, code string, rt *matchRuntime, scores map[string]int, leaders []string) ([]domain.Event, error) {
	rt.mu.Lock()
	if rt.suddenDeath {
		rt.mu.Unlock()
		return nil, nil
	}
	rt.suddenDeath = true
	rt.mu.Unlock()

	leaderSet := make(map[string]struct{}, len(leaders))
	for _, pid := range leaders {
		leaderSet[pid] = struct{}{}
	}
	eliminated := make(map[string]any)
	for pid := range scores {
		if _, lead := leaderSet[pid]; !lead {
			eliminated[pid] = true
		}
	}

	questions, err := s.provider.QuestionBatch(ctx, phase.SuddenDeath, rt.match.Config, s.requiredFor(phase.SuddenDeath), rt.match.Config.Seed)
	if err != nil {
		return nil, fmt.Errorf("sudden death content: %w", err)
	}
	rt.questions[phase.SuddenDeath] = questions
	if tracker, err := rt.trackers.Tracker(phase.SuddenDeath); err == nil {
		tracker.SetRequired(len(questions))
	}

	delta := domain.GameState{
		domain.StateCurrentPhase: phase.SuddenDeath,
		domain.StateEliminated:   eliminated,
	}
	if err := s.store.MergeState(ctx, rt.match.ID, delta); err != nil {
		return nil, err
	}

	s.log.Info("sudden death", zap.String("code", code), zap.Strings("leaders", leaders))
	return []domain.Event{{
		Type:        domain.EventPhaseAdvance,
		SessionCode: code,
		Payload:     domain.PhaseAdvancePayload{Phase: phase.SuddenDeath, QuestionIndex: 0},
	}}, nil
}

// ForceComplete finalizes the match on demand with the currently persisted
// scores. Any participant of the match may trigger it; repeat calls are
// no-ops.
func (s *MatchService) ForceComplete(ctx context.Context, code, participantID string) ([]domain.Event, error) {
	code = NormalizeCode(code)
	if _, ok := s.sessions.Get(code); !ok {
		return nil, domain.ErrSessionNotFound
	}
	rt, err := s.runtimeFor(ctx, code)
	if err != nil {
		return nil, err
	}
	if _, ok := rt.match.Scores[participantID]; !ok {
		return nil, domain.ErrParticipantNotFound
	}
	state, err := s.store.ReadState(ctx, rt.match.ID)
	if err != nil {
		return nil, err
	}
	scores := state.IntMap(domain.StateScores)
	leaders := topScorers(scores, state.Eliminated())
	winner := ""
	if len(leaders) == 1 {
		winner = leaders[0]
	}
	return s.finalize(ctx, code, rt, winner, scores)
}

// finalize completes the match exactly once and evicts its runtime.
func (s *MatchService) finalize(ctx context.Context, code string, rt *matchRuntime, winner string, scores map[string]int) ([]domain.Event, error) {
	rt.mu.Lock()
	if rt.finalized {
		rt.mu.Unlock()
		return nil, nil
	}
	rt.finalized = true
	rt.mu.Unlock()

	now := time.Now()
	rt.match.CompletedAt = &now
	rt.match.WinnerID = winner
	rt.match.Scores = scores
	if err := s.store.UpdateMatch(ctx, rt.match); err != nil {
		return nil, fmt.Errorf("finalize match: %w", err)
	}
	if session, ok := s.sessions.Get(code); ok {
		session.SetStatus(domain.SessionCompleted)
	}
	s.evictRuntime(code)

	s.log.Info("match complete",
		zap.String("code", code),
		zap.String("matchId", rt.match.ID),
		zap.String("winnerId", winner))

	return []domain.Event{{
		Type:        domain.EventMatchComplete,
		SessionCode: code,
		Payload:     domain.MatchCompletePayload{WinnerID: winner, Scores: scores},
	}}, nil
}

// SnapshotPayload is the full current state sent to a (re)connecting client.
type SnapshotPayload struct {
	Roster         domain.RosterPayload         `json:"roster"`
	Match          *domain.Match                `json:"match,omitempty"`
	CurrentPhase   string                       `json:"currentPhase,omitempty"`
	Scores         map[string]int               `json:"scores,omitempty"`
	PreviousScores map[string]int               `json:"previousScores,omitempty"`
	Questions      map[string][]domain.Question `json:"questions,omitempty"`
}

// Snapshot assembles the catch-up state for a session. A reconnecting client
// receives exactly what a never-disconnected client currently sees.
func (s *MatchService) Snapshot(ctx context.Context, code string) (SnapshotPayload, error) {
	code = NormalizeCode(code)
	session, ok := s.sessions.Get(code)
	if !ok {
		return SnapshotPayload{}, domain.ErrSessionNotFound
	}
	snap := SnapshotPayload{Roster: session.RosterPayload()}
	rt, err := s.runtimeFor(ctx, code)
	if err != nil {
		return snap, nil // no match yet: roster-only snapshot
	}
	state, err := s.store.ReadState(ctx, rt.match.ID)
	if err != nil {
		return SnapshotPayload{}, err
	}
	snap.Match = rt.match
	snap.CurrentPhase = state.CurrentPhase()
	snap.Scores = state.IntMap(domain.StateScores)
	snap.PreviousScores = state.IntMap(domain.StatePreviousScores)
	snap.Questions = rt.questions
	return snap, nil
}

// HasSession reports whether a session exists under the code.
func (s *MatchService) HasSession(code string) bool {
	_, ok := s.sessions.Get(NormalizeCode(code))
	return ok
}

// SessionSnapshot returns the current roster payload.
func (s *MatchService) SessionSnapshot(code string) (domain.RosterPayload, error) {
	session, ok := s.sessions.Get(NormalizeCode(code))
	if !ok {
		return domain.RosterPayload{}, domain.ErrSessionNotFound
	}
	return session.RosterPayload(), nil
}

// runtimeFor returns the live runtime for a session's match, reconstructing
// it from the persisted submission log after a restart.
func (s *MatchService) runtimeFor(ctx context.Context, code string) (*matchRuntime, error) {
	s.mu.Lock()
	if rt, ok := s.runtimes[code]; ok {
		s.mu.Unlock()
		return rt, nil
	}
	s.mu.Unlock()

	match, err := s.store.GetMatchBySession(ctx, code)
	if err != nil {
		return nil, err
	}
	rt, _, err := s.buildRuntime(ctx, match)
	if err != nil {
		return nil, err
	}

	submissions, err := s.store.ListSubmissions(ctx, match.ID)
	if err != nil {
		return nil, err
	}
	if err := rt.trackers.Rebuild(submissions); err != nil {
		return nil, err
	}
	state, err := s.store.ReadState(ctx, match.ID)
	if err != nil {
		return nil, err
	}
	// Phases already merged must not aggregate again.
	for _, name := range s.leafPhases() {
		if _, done := state.PhaseContribution(name); done {
			rt.fired[name] = true
		}
	}
	rt.finalized = match.Completed()
	rt.suddenDeath = state.CurrentPhase() == phase.SuddenDeath
	if rt.suddenDeath {
		// The tie-break batch is not part of the base sequence, so a restart
		// mid sudden death must reload it. The provider is seed-deterministic
		// and serves the same questions the pre-restart process did.
		batch, err := s.provider.QuestionBatch(ctx, phase.SuddenDeath, match.Config, s.requiredFor(phase.SuddenDeath), match.Config.Seed)
		if err != nil {
			return nil, fmt.Errorf("sudden death content: %w", err)
		}
		rt.questions[phase.SuddenDeath] = batch
		if tracker, err := rt.trackers.Tracker(phase.SuddenDeath); err == nil {
			tracker.SetRequired(len(batch))
		}
		if _, done := state.PhaseContribution(phase.SuddenDeath); done {
			rt.fired[phase.SuddenDeath] = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.runtimes[code]; ok {
		return existing, nil
	}
	s.runtimes[code] = rt
	return rt, nil
}

// buildRuntime loads the deterministic question batches for every leaf phase
// and sizes the trackers from what the provider actually served, never below
// what has already been observed.
func (s *MatchService) buildRuntime(ctx context.Context, match *domain.Match) (*matchRuntime, map[string]any, error) {
	rt := &matchRuntime{
		match:     match,
		trackers:  phase.NewSet(s.registry),
		questions: make(map[string][]domain.Question),
		fired:     make(map[string]bool),
		advanced:  make(map[string]int),
	}
	optionOrder := make(map[string]any)
	for _, name := range s.leafPhases() {
		batch, err := s.provider.QuestionBatch(ctx, name, match.Config, s.requiredFor(name), match.Config.Seed)
		if err != nil {
			return nil, nil, fmt.Errorf("content for %s: %w", name, err)
		}
		rt.questions[name] = batch
		tracker, err := rt.trackers.Tracker(name)
		if err != nil {
			return nil, nil, err
		}
		tracker.SetRequired(len(batch))

		order := make(map[string]any)
		for _, q := range batch {
			if len(q.Options) == 0 {
				continue
			}
			ids := make([]any, len(q.Options))
			for i, opt := range q.Options {
				ids[i] = opt.ID
			}
			order[q.ID] = ids
		}
		if len(order) > 0 {
			optionOrder[name] = order
		}
	}
	return rt, optionOrder, nil
}

// leafPhases lists the submittable phases of the base sequence.
func (s *MatchService) leafPhases() []string {
	var out []string
	for _, name := range s.registry.Sequence() {
		def, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		if subs := def.SubPhases(); len(subs) > 0 {
			out = append(out, subs...)
			continue
		}
		out = append(out, name)
	}
	return out
}

func (s *MatchService) requiredFor(name string) int {
	def, err := s.registry.Get(name)
	if err != nil {
		return 1
	}
	return def.RequiredCount()
}

// excuseFromMatch marks a departed participant as eliminated so phases stop
// waiting on them.
func (s *MatchService) excuseFromMatch(ctx context.Context, code, participantID string) error {
	s.mu.Lock()
	rt, ok := s.runtimes[code]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if _, inMatch := rt.match.Scores[participantID]; !inMatch {
		return nil
	}
	delta := domain.GameState{
		domain.StateEliminated: map[string]any{participantID: true},
	}
	return s.store.MergeState(ctx, rt.match.ID, delta)
}

func (s *MatchService) evictRuntime(code string) {
	s.mu.Lock()
	delete(s.runtimes, code)
	s.mu.Unlock()
}

func rosterEvent(session *Session) domain.Event {
	return domain.Event{
		Type:        domain.EventRosterChanged,
		SessionCode: session.Code(),
		Payload:     session.RosterPayload(),
	}
}

// matchParticipants returns the match's participant ids in stable order.
func matchParticipants(match *domain.Match) []string {
	out := make([]string, 0, len(match.Scores))
	for pid := range match.Scores {
		out = append(out, pid)
	}
	sort.Strings(out)
	return out
}

// topScorers returns the non-excused participants holding the highest score.
func topScorers(scores map[string]int, excused map[string]struct{}) []string {
	best := 0
	first := true
	for pid, score := range scores {
		if _, skip := excused[pid]; skip {
			continue
		}
		if first || score > best {
			best = score
			first = false
		}
	}
	if first {
		return nil
	}
	var leaders []string
	for pid, score := range scores {
		if _, skip := excused[pid]; skip {
			continue
		}
		if score == best {
			leaders = append(leaders, pid)
		}
	}
	sort.Strings(leaders)
	return leaders
}

func nextSibling(parent phase.Definition, completed string) string {
	if parent == nil {
		return ""
	}
	subs := parent.SubPhases()
	for i, name := range subs {
		if name == completed && i+1 < len(subs) {
			return subs[i+1]
		}
	}
	return ""
}
