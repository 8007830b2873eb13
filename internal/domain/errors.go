package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no session exists under a code.
	ErrSessionNotFound = errors.New("session not found")
	// ErrParticipantNotFound is returned when a participant id is not in the session roster.
	ErrParticipantNotFound = errors.New("participant not found in session")
	// ErrNameTaken is returned when a display name is already used in the session.
	ErrNameTaken = errors.New("display name already taken")
	// ErrNotOwner is returned when a non-owner attempts an owner-only operation.
	ErrNotOwner = errors.New("operation requires session owner")
	// ErrMatchNotFound indicates no match exists (yet) for a session.
	ErrMatchNotFound = errors.New("match not found")
	// ErrMatchAlreadyStarted is returned on a second start attempt.
	ErrMatchAlreadyStarted = errors.New("match already started")
	// ErrPhaseUnknown indicates a submission referenced an unregistered phase.
	ErrPhaseUnknown = errors.New("unknown phase")
	// ErrQuestionOutOfRange indicates a submission index beyond the phase requirement.
	ErrQuestionOutOfRange = errors.New("question index out of range")
)
