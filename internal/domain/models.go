package domain

import "time"

// SessionStatus tracks where a lobby is in its lifecycle.
type SessionStatus string

const (
	SessionWaiting   SessionStatus = "waiting"
	SessionStarting  SessionStatus = "starting"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
)

// Participant is a member of a session. IDs are opaque; display names are
// unique within a session.
type Participant struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// MatchType selects where match content comes from.
type MatchType string

const (
	MatchTypeStandard MatchType = "standard" // static question pools
	MatchTypeTailored MatchType = "tailored" // pools filtered by role/level or job text
)

// MatchConfig carries the content-selection inputs chosen by the owner.
type MatchConfig struct {
	Role    string `json:"role,omitempty" yaml:"role"`
	Level   string `json:"level,omitempty" yaml:"level"`
	JobText string `json:"jobText,omitempty" yaml:"jobText"`
	Seed    int64  `json:"seed,omitempty" yaml:"seed"`
}

// Match is one run of the phased question sequence for a session.
type Match struct {
	ID          string         `json:"id"`
	SessionCode string         `json:"sessionCode"`
	Type        MatchType      `json:"type"`
	Config      MatchConfig    `json:"config"`
	Scores      map[string]int `json:"scores"`
	CreatedAt   time.Time      `json:"createdAt"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	WinnerID    string         `json:"winnerId,omitempty"`
}

// Completed reports whether the match has been finalized.
func (m *Match) Completed() bool { return m.CompletedAt != nil }

// Submission is an append-only record of one answer from one participant.
// Duplicate resubmission for the same (participant, phase, index) appends a
// new row; the latest row wins for content, the first for completion tracking.
type Submission struct {
	MatchID       string    `json:"matchId"`
	ParticipantID string    `json:"participantId"`
	Phase         string    `json:"phase"`
	QuestionIndex int       `json:"questionIndex"`
	Answer        Answer    `json:"answer"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Answer is the payload of a submission. Exactly one of the content fields is
// meaningful depending on the phase kind; TimedOut marks a forced no-answer
// record injected on timer expiry.
type Answer struct {
	Text     string            `json:"text,omitempty"`
	OptionID string            `json:"optionId,omitempty"`
	Parts    map[string]string `json:"parts,omitempty"`
	TimedOut bool              `json:"timedOut,omitempty"`
}

// Option is a fixed-choice answer for a theory question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question is served by the content provider. Options are only set for
// fixed-choice content; Keywords guide the heuristic judge for free-text
// content.
type Question struct {
	ID       string   `json:"id"`
	Prompt   string   `json:"prompt"`
	Options  []Option `json:"options,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Points   int      `json:"points"` // zero means the judge's default scale
}
