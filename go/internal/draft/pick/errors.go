package pick

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when a league, captain, player or pick row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRaceLost means another actor advanced the turn first. Callers re-read and re-validate.
	ErrRaceLost = errors.New("race lost: turn already advanced")

	// ErrPickExists is returned by stores on a (league_id, pick_number) unique violation.
	ErrPickExists = errors.New("pick already recorded for this slot")

	// ErrPlayerTaken means the conditional drafted-player update matched no row.
	ErrPlayerTaken = errors.New("player already drafted")

	// ErrPickOutOfRange is returned by the order function for an index outside the pick sequence.
	ErrPickOutOfRange = errors.New("pick index out of range")

	// ErrNothingToUndo is returned when a league has no committed pick to undo.
	ErrNothingToUndo = errors.New("no pick to undo")

	// ErrInvalidRequest is returned for malformed requests such as nil ids.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUndoIncomplete means the pointer was rewound but the pick row could not be removed.
	ErrUndoIncomplete = errors.New("undo left the pick in place")
)

// RejectionReason is a stable, machine-readable rejection code.
type RejectionReason string

const (
	ReasonLeagueNotActive   RejectionReason = "league_not_active"
	ReasonWrongTurn         RejectionReason = "wrong_turn"
	ReasonCaptainNotFound   RejectionReason = "captain_not_found"
	ReasonPlayerNotFound    RejectionReason = "player_not_found"
	ReasonPlayerWrongLeague RejectionReason = "player_wrong_league"
	ReasonAlreadyDrafted    RejectionReason = "already_drafted"
	ReasonTimeBarred        RejectionReason = "time_barred"
	ReasonRaceLost          RejectionReason = "race_lost"
)

// Rejection is an expected, non-fatal validation outcome.
type Rejection struct {
	Reason RejectionReason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("pick rejected: %s", r.Reason)
	}
	return fmt.Sprintf("pick rejected: %s: %s", r.Reason, r.Detail)
}

func reject(reason RejectionReason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// CommitStep identifies which sub-step of a commit failed.
type CommitStep int

const (
	StepInsertPick CommitStep = iota + 1
	StepMarkPlayer
	StepAdvanceTurn
)

func (s CommitStep) String() string {
	switch s {
	case StepInsertPick:
		return "insert_pick"
	case StepMarkPlayer:
		return "mark_player"
	case StepAdvanceTurn:
		return "advance_turn"
	default:
		return "unknown"
	}
}

// CommitError is an unexpected store failure during a commit. RolledBack reports whether the
// steps that had already landed were undone successfully.
type CommitError struct {
	Step       CommitStep
	RolledBack bool
	Err        error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit failed at %s (rolled back: %t): %v", e.Step, e.RolledBack, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}
