package domain

// EventType names the session events the coordinator can raise.
type EventType string

const (
	EventRosterChanged   EventType = "rosterChanged"
	EventMatchStarted    EventType = "matchStarted"
	EventPhaseAdvance    EventType = "phaseAdvance"
	EventSubphaseAdvance EventType = "subphaseAdvance"
	EventPhaseComplete   EventType = "phaseComplete"
	EventMatchComplete   EventType = "matchComplete"
	EventRendezvous      EventType = "rendezvous"
	EventKicked          EventType = "kicked"
)

// Event is raised by coordinator operations and dispatched by the caller.
// The coordinator holds no transport state; the gateway fans events out to
// every live connection of the session (or only to TargetID when set).
type Event struct {
	Type        EventType `json:"type"`
	SessionCode string    `json:"sessionCode"`
	TargetID    string    `json:"targetId,omitempty"`
	Payload     any       `json:"payload,omitempty"`
}

// RosterPayload accompanies rosterChanged events and reconnect snapshots.
type RosterPayload struct {
	Participants []Participant `json:"participants"`
	OwnerID      string        `json:"ownerId"`
	Status       SessionStatus `json:"status"`
}

// MatchStartedPayload announces a freshly created match.
type MatchStartedPayload struct {
	MatchID string    `json:"matchId"`
	Type    MatchType `json:"matchType"`
	Phases  []string  `json:"phases"`
}

// PhaseAdvancePayload moves clients to the next question inside one phase.
type PhaseAdvancePayload struct {
	Phase         string `json:"phase"`
	QuestionIndex int    `json:"questionIndex"`
}

// SubphaseAdvancePayload moves clients from one sub-phase to its sibling.
type SubphaseAdvancePayload struct {
	Parent    string `json:"parent"`
	Completed string `json:"completed"`
	Next      string `json:"next,omitempty"`
}

// PhaseCompletePayload carries the freshly merged scores for a reveal.
type PhaseCompletePayload struct {
	Phase          string         `json:"phase"`
	Scores         map[string]int `json:"scores"`
	PreviousScores map[string]int `json:"previousScores"`
}

// MatchCompletePayload finalizes the match for all clients.
type MatchCompletePayload struct {
	WinnerID string         `json:"winnerId,omitempty"`
	Scores   map[string]int `json:"scores"`
}

// RendezvousPayload fires when every active participant reached a named
// synchronization point (score reveal ready, countdown done, ...).
type RendezvousPayload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// KickedPayload is delivered only to the removed participant.
type KickedPayload struct {
	Reason string `json:"reason,omitempty"`
}
