package service

import (
	"errors"
	"fmt"

	"github.com/ad-tracker/engagement-exchange-go/internal/db"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"
)

// Errors returned by the exchange services. Match them with errors.Is.
var (
	ErrNotEligible      = errors.New("user is not eligible")
	ErrNotAuthorized    = errors.New("not authorized")
	ErrAlreadySubmitted = errors.New("already submitted")
	ErrAlreadyResolved  = errors.New("task already resolved")
	ErrNoProofToReview  = errors.New("no proof to review")
	ErrNotFound         = db.ErrNotFound
	ErrInvalidInput     = errors.New("invalid input")
	ErrVideoLimit       = errors.New("active video limit reached")
)

// IneligibleReason explains why a user cannot enter the pool.
type IneligibleReason string

// IneligibleReason values
const (
	ReasonBanned        IneligibleReason = "banned"
	ReasonPaused        IneligibleReason = "paused"
	ReasonNoVideo       IneligibleReason = "no_video"
	ReasonAlreadyActive IneligibleReason = "already_active"
)

// NotEligibleError is returned by Ready. It matches ErrNotEligible.
type NotEligibleError struct {
	UserID int64
	Reason IneligibleReason
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("user %d is not eligible: %s", e.UserID, e.Reason)
}

// Is makes errors.Is(err, ErrNotEligible) succeed.
func (e *NotEligibleError) Is(target error) bool {
	return target == ErrNotEligible
}

func notEligible(userID int64, reason IneligibleReason) error {
	return &NotEligibleError{UserID: userID, Reason: reason}
}

// IneligibilityReason extracts the reason from err, if it is a NotEligibleError.
func IneligibilityReason(err error) (IneligibleReason, bool) {
	var ne *NotEligibleError
	if errors.As(err, &ne) {
		return ne.Reason, true
	}
	return "", false
}

// translateTaskError maps state machine errors onto service errors, keeping
// the original in the chain.
func translateTaskError(err error) error {
	var kind error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrNotParticipant):
		kind = ErrNotAuthorized
	case errors.Is(err, models.ErrTaskTerminal):
		kind = ErrAlreadyResolved
	case errors.Is(err, models.ErrProofAlreadySubmitted), errors.Is(err, models.ErrVerdictAlreadySubmitted):
		kind = ErrAlreadySubmitted
	case errors.Is(err, models.ErrNoProof):
		kind = ErrNoProofToReview
	case errors.Is(err, models.ErrInvalidVerdict):
		kind = ErrInvalidInput
	default:
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
