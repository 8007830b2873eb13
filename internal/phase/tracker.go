package phase

import (
	"sort"
	"sync"

	"faceoff-match-service/internal/domain"
)

// Tracker accumulates which participant answered which question index of one
// phase. It is a pure in-memory cache over submissions persisted elsewhere;
// after a restart it must be rebuilt from the submission log (see Set.Rebuild)
// before completion evaluation is trusted.
type Tracker struct {
	mu            sync.Mutex
	required      int
	allMustSubmit bool
	byParticipant map[string]map[int]struct{}
	byQuestion    map[int]map[string]struct{}
}

// Status is a read-only snapshot for diagnostics and tests.
type Status struct {
	Required       int
	AllMustSubmit  bool
	PerParticipant map[string][]int
	PerQuestion    map[int][]string
}

// NewTracker builds a tracker for a phase requiring the given question count.
func NewTracker(required int, allMustSubmit bool) *Tracker {
	return &Tracker{
		required:      required,
		allMustSubmit: allMustSubmit,
		byParticipant: make(map[string]map[int]struct{}),
		byQuestion:    make(map[int]map[string]struct{}),
	}
}

// Record marks (participant, index) as submitted. Re-recording the same pair
// is a no-op; the return value reports whether the pair was new.
func (t *Tracker) Record(participantID string, index int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byParticipant[participantID]; !ok {
		t.byParticipant[participantID] = make(map[int]struct{})
	}
	if _, dup := t.byParticipant[participantID][index]; dup {
		return false
	}
	t.byParticipant[participantID][index] = struct{}{}

	if _, ok := t.byQuestion[index]; !ok {
		t.byQuestion[index] = make(map[string]struct{})
	}
	t.byQuestion[index][participantID] = struct{}{}
	return true
}

// SetRequired refreshes the requirement when the content provider served a
// different count than the nominal one. It never lowers the requirement below
// the number of question indices already observed.
func (t *Tracker) SetRequired(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < len(t.byQuestion) {
		n = len(t.byQuestion)
	}
	if n < 1 {
		n = 1
	}
	t.required = n
}

// Required returns the current question requirement.
func (t *Tracker) Required() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.required
}

// Complete evaluates the completion invariant against the current active
// roster and exclusion set. It is computed fresh on every call; exclusion
// sets can change between evaluations. A phase with zero active non-excused
// participants is vacuously complete.
func (t *Tracker) Complete(active []string, excused map[string]struct{}) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	needed := remaining(active, excused)
	if len(needed) == 0 {
		return true
	}
	if len(t.byQuestion) < t.required {
		return false
	}
	if !t.allMustSubmit {
		return true
	}
	for index := 0; index < t.required; index++ {
		if !coveredLocked(t.byQuestion[index], needed) {
			return false
		}
	}
	return true
}

// Covered reports whether one question index has submissions from every
// active non-excused participant.
func (t *Tracker) Covered(index int, active []string, excused map[string]struct{}) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	needed := remaining(active, excused)
	if len(needed) == 0 {
		return true
	}
	if !t.allMustSubmit {
		_, any := t.byQuestion[index]
		return any && len(t.byQuestion[index]) > 0
	}
	return coveredLocked(t.byQuestion[index], needed)
}

// Status snapshots the tracker.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := Status{
		Required:       t.required,
		AllMustSubmit:  t.allMustSubmit,
		PerParticipant: make(map[string][]int, len(t.byParticipant)),
		PerQuestion:    make(map[int][]string, len(t.byQuestion)),
	}
	for pid, indices := range t.byParticipant {
		list := make([]int, 0, len(indices))
		for i := range indices {
			list = append(list, i)
		}
		sort.Ints(list)
		st.PerParticipant[pid] = list
	}
	for index, pids := range t.byQuestion {
		list := make([]string, 0, len(pids))
		for pid := range pids {
			list = append(list, pid)
		}
		sort.Strings(list)
		st.PerQuestion[index] = list
	}
	return st
}

func remaining(active []string, excused map[string]struct{}) []string {
	out := make([]string, 0, len(active))
	for _, pid := range active {
		if _, skip := excused[pid]; skip {
			continue
		}
		out = append(out, pid)
	}
	return out
}

func coveredLocked(submitted map[string]struct{}, needed []string) bool {
	if submitted == nil {
		return false
	}
	for _, pid := range needed {
		if _, ok := submitted[pid]; !ok {
			return false
		}
	}
	return true
}

// Set is the per-match collection of trackers, created lazily per phase on
// first reference. Recording into a sub-phase also mirrors the submission
// into its composite parent under the configured index mapping.
type Set struct {
	mu       sync.Mutex
	registry *Registry
	trackers map[string]*Tracker
}

// NewSet builds an empty tracker set over a registry.
func NewSet(registry *Registry) *Set {
	return &Set{registry: registry, trackers: make(map[string]*Tracker)}
}

// Tracker returns (lazily creating) the tracker for a phase.
func (s *Set) Tracker(name string) (*Tracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackerLocked(name)
}

func (s *Set) trackerLocked(name string) (*Tracker, error) {
	if t, ok := s.trackers[name]; ok {
		return t, nil
	}
	def, err := s.registry.Get(name)
	if err != nil {
		return nil, err
	}
	t := NewTracker(def.RequiredCount(), def.AllMustSubmit())
	s.trackers[name] = t
	return t, nil
}

// Record registers a submission against a phase and mirrors it into the
// composite parent when the phase has one. The return value reports whether
// the (participant, index) pair was new for the phase itself.
func (s *Set) Record(phaseName, participantID string, index int) (bool, error) {
	s.mu.Lock()
	tracker, err := s.trackerLocked(phaseName)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	def, _ := s.registry.Get(phaseName)
	var parent *Tracker
	var link ParentLink
	if l, ok := def.Parent(); ok {
		link = l
		parent, err = s.trackerLocked(l.Name)
		if err != nil {
			s.mu.Unlock()
			return false, err
		}
	}
	s.mu.Unlock()

	fresh := tracker.Record(participantID, index)
	if parent != nil {
		parent.Record(participantID, link.Index)
	}
	return fresh, nil
}

// Complete evaluates a phase. Composite phases are complete only when every
// sub-phase is complete.
func (s *Set) Complete(phaseName string, active []string, excused map[string]struct{}) (bool, error) {
	def, err := s.registry.Get(phaseName)
	if err != nil {
		return false, err
	}
	if subs := def.SubPhases(); len(subs) > 0 {
		for _, sub := range subs {
			done, err := s.Complete(sub, active, excused)
			if err != nil {
				return false, err
			}
			if !done {
				return false, nil
			}
		}
		return true, nil
	}
	tracker, err := s.Tracker(phaseName)
	if err != nil {
		return false, err
	}
	return tracker.Complete(active, excused), nil
}

// Rebuild replays persisted submissions into fresh trackers after a restart.
func (s *Set) Rebuild(submissions []domain.Submission) error {
	s.mu.Lock()
	s.trackers = make(map[string]*Tracker)
	s.mu.Unlock()
	for _, sub := range submissions {
		if _, err := s.Record(sub.Phase, sub.ParticipantID, sub.QuestionIndex); err != nil {
			return err
		}
	}
	return nil
}
