package models

import "errors"

// Task state machine errors. Services re-export these so callers can match
// them with errors.Is regardless of which layer produced them.
var (
	// ErrNotParticipant is returned when the acting user is not part of the task.
	ErrNotParticipant = errors.New("user is not a participant of the task")

	// ErrTaskTerminal is returned when a terminal task is mutated.
	ErrTaskTerminal = errors.New("task is already resolved")

	// ErrProofAlreadySubmitted is returned when a proof slot is written twice.
	ErrProofAlreadySubmitted = errors.New("proof already submitted")

	// ErrVerdictAlreadySubmitted is returned when a verdict is written twice.
	ErrVerdictAlreadySubmitted = errors.New("verdict already submitted")

	// ErrNoProof is returned when a verdict targets an empty proof slot.
	ErrNoProof = errors.New("no proof to review")

	// ErrInvalidVerdict is returned for a verdict other than approved or rejected.
	ErrInvalidVerdict = errors.New("verdict must be approved or rejected")
)
