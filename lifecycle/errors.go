package lifecycle

import (
	"errors"
	"fmt"

	"Gin_postgres_redis_equipment_loans/models"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrTransitionRejected = errors.New("transition rejected")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidWindow      = errors.New("invalid window")
	ErrNoEligibleMembers  = errors.New("no eligible group members")
	// ErrConflict signals a concurrent write; the operation left no trace and
	// may be retried.
	ErrConflict = errors.New("concurrent modification")
	// ErrEquipmentUnavailable is returned when a loan is requested for
	// equipment in a terminal status.
	ErrEquipmentUnavailable = errors.New("equipment unavailable")
)

// TransitionError is returned when a borrow is not in a state from which the
// requested transition is allowed. It matches ErrTransitionRejected.
type TransitionError struct {
	LoanID  string
	Current models.BorrowStatus
	Target  models.BorrowStatus
	Reason  string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("loan %s: cannot move from %s to %s", e.LoanID, e.Current, e.Target)
	if e.Target == "" {
		msg = fmt.Sprintf("loan %s in status %s", e.LoanID, e.Current)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Is(target error) bool { return target == ErrTransitionRejected }
