package draft

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrDraftNotActive      = errors.New("draft is not active")
	ErrNotYourTurn         = errors.New("not this participant's turn")
	ErrTeamAlreadyDrafted  = errors.New("team already drafted")
	ErrUnknownTeam         = errors.New("team is not in this league's pool")
	ErrNotParticipant      = errors.New("user is not a participant in this league")
	ErrDraftAlreadyStarted = errors.New("draft already started")
	ErrInvalidLeague       = errors.New("league is not ready to draft")
	ErrLeagueNotFound      = errors.New("league not found")
	ErrLeagueExists        = errors.New("league already exists")
	ErrEmptyPool           = errors.New("no undrafted teams remain")
)

// Rejection reasons returned to callers of user-facing operations.
const (
	ReasonDraftNotActive      = "draft_not_active"
	ReasonNotYourTurn         = "not_your_turn"
	ReasonTeamAlreadyDrafted  = "team_already_drafted"
	ReasonUnknownTeam         = "unknown_team"
	ReasonNotParticipant      = "not_a_participant"
	ReasonDraftAlreadyStarted = "draft_already_started"
	ReasonInvalidLeague       = "invalid_league"
)

var rejectionReasons = map[error]string{
	ErrDraftNotActive:      ReasonDraftNotActive,
	ErrNotYourTurn:         ReasonNotYourTurn,
	ErrTeamAlreadyDrafted:  ReasonTeamAlreadyDrafted,
	ErrUnknownTeam:         ReasonUnknownTeam,
	ErrNotParticipant:      ReasonNotParticipant,
	ErrDraftAlreadyStarted: ReasonDraftAlreadyStarted,
	ErrInvalidLeague:       ReasonInvalidLeague,
}

// RejectionError is returned when a request is refused without any state change.
type RejectionError struct {
	Reason string
	Err    error
}

func (e *RejectionError) Error() string {
	return e.Err.Error()
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

func reject(err error) error {
	return &RejectionError{Reason: rejectionReasons[err], Err: err}
}

// AsRejection unwraps a RejectionError from err.
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// IntegrityError reports a corrupted draft invariant. It must reach an operator;
// retrying will not fix it.
type IntegrityError struct {
	LeagueID  uuid.UUID
	PickIndex int
	Detail    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("draft integrity violation in league %s at pick %d: %s", e.LeagueID, e.PickIndex, e.Detail)
}

// IsIntegrity reports whether err carries an IntegrityError.
func IsIntegrity(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
