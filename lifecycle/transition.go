package lifecycle

import (
	"fmt"
	"slices"
	"time"

	"Gin_postgres_redis_equipment_loans/models"
)

// Transition names one edge family of the borrow state machine.
type Transition string

const (
	Approve        Transition = "approve"
	Reject         Transition = "reject"
	Cancel         Transition = "cancel"
	Checkout       Transition = "checkout"
	RequestReturn  Transition = "request-return"
	FinalizeReturn Transition = "finalize-return"
	MarkOverdue    Transition = "mark-overdue"
)

type guard int

const (
	privilegedOnly guard = iota
	ownerOrPrivileged
	systemOnly
)

type rule struct {
	from  []models.BorrowStatus
	to    models.BorrowStatus
	allow guard
}

var table = map[Transition]rule{
	Approve:        {from: []models.BorrowStatus{models.BorrowPending}, to: models.BorrowApproved, allow: privilegedOnly},
	Reject:         {from: []models.BorrowStatus{models.BorrowPending, models.BorrowApproved}, to: models.BorrowRejected, allow: privilegedOnly},
	Cancel:         {from: []models.BorrowStatus{models.BorrowPending, models.BorrowApproved}, to: models.BorrowCancelled, allow: ownerOrPrivileged},
	Checkout:       {from: []models.BorrowStatus{models.BorrowApproved}, to: models.BorrowActive, allow: ownerOrPrivileged},
	RequestReturn:  {from: []models.BorrowStatus{models.BorrowActive, models.BorrowOverdue}, to: models.BorrowPendingReturn, allow: ownerOrPrivileged},
	FinalizeReturn: {from: []models.BorrowStatus{models.BorrowPendingReturn}, to: models.BorrowCompleted, allow: privilegedOnly},
	MarkOverdue:    {from: []models.BorrowStatus{models.BorrowActive}, to: models.BorrowOverdue, allow: systemOnly},
}

// Params carries the inputs a transition may need besides the actor.
type Params struct {
	Now time.Time
	// Window overrides the requested window on Approve.
	Window *Window
	// Deficient closes a FinalizeReturn as RETURNED instead of COMPLETED.
	Deficient bool
	// CheckoutGrace lets Checkout happen this long before the approved start.
	CheckoutGrace time.Duration
}

func ParseTransition(s string) (Transition, bool) {
	t := Transition(s)
	_, ok := table[t]
	return t, ok
}

// Sources returns the statuses a borrow may be in for t to apply.
func (t Transition) Sources() []models.BorrowStatus {
	return slices.Clone(table[t].from)
}

// Target returns the status t moves a borrow into.
func (t Transition) Target(p Params) models.BorrowStatus {
	if t == FinalizeReturn && p.Deficient {
		return models.BorrowReturned
	}
	return table[t].to
}

// Accepts reports whether a borrow in status s is eligible for t.
func (t Transition) Accepts(s models.BorrowStatus) bool {
	return slices.Contains(table[t].from, s)
}

// Apply validates t against the guards and mutates b on success. On error b
// is left untouched.
func Apply(b *models.Borrow, t Transition, actor Actor, p Params) error {
	r, ok := table[t]
	if !ok {
		return fmt.Errorf("unknown transition %q", t)
	}
	if err := authorize(r.allow, actor, b, t); err != nil {
		return err
	}
	target := t.Target(p)
	if !slices.Contains(r.from, b.Status) {
		return &TransitionError{LoanID: b.ID, Current: b.Status, Target: target}
	}

	switch t {
	case Approve:
		w := Window{Start: b.RequestedStart, End: b.RequestedEnd}
		if p.Window != nil {
			if err := p.Window.Validate(); err != nil {
				return err
			}
			w = *p.Window
		}
		approver := actor.ID
		b.ApprovedStart, b.ApprovedEnd = &w.Start, &w.End
		b.ApproverID = &approver
		b.RejectedByRole = nil
	case Reject:
		approver, role := actor.ID, actor.Role
		b.ApprovedStart, b.ApprovedEnd = nil, nil
		b.ApproverID = &approver
		b.RejectedByRole = &role
	case Checkout:
		start, _ := b.Window()
		if p.Now.Add(p.CheckoutGrace).Before(start) {
			return &TransitionError{LoanID: b.ID, Current: b.Status, Target: target,
				Reason: "approved window starts at " + start.Format(time.RFC3339)}
		}
		now := p.Now
		b.CheckoutTime = &now
	case FinalizeReturn:
		now := p.Now
		b.ActualReturnTime = &now
	case MarkOverdue:
		if b.ApprovedEnd == nil || !p.Now.After(*b.ApprovedEnd) {
			return &TransitionError{LoanID: b.ID, Current: b.Status, Target: target,
				Reason: "approved window has not ended"}
		}
	}
	b.Status = target
	return nil
}

func authorize(g guard, actor Actor, b *models.Borrow, t Transition) error {
	switch g {
	case privilegedOnly:
		if actor.Privileged() {
			return nil
		}
	case ownerOrPrivileged:
		if actor.Privileged() || actor.Owns(b) {
			return nil
		}
	case systemOnly:
		if actor.Role == models.RoleSystem {
			return nil
		}
	}
	return fmt.Errorf("%w: %s on loan %s is not allowed for role %q", ErrForbidden, t, b.ID, actor.Role)
}

// CanSubmit checks that actor may open a request on behalf of requesterID.
func CanSubmit(actor Actor, requesterID string) error {
	if actor.ID == "" || requesterID == "" {
		return fmt.Errorf("%w: anonymous submission", ErrForbidden)
	}
	if actor.ID != requesterID && !actor.Privileged() {
		return fmt.Errorf("%w: cannot submit on behalf of another user", ErrForbidden)
	}
	return nil
}

// CanDelete allows the hard delete of a PENDING borrow by its owner or
// privileged staff.
func CanDelete(b *models.Borrow, actor Actor) error {
	if !actor.Privileged() && !actor.Owns(b) {
		return fmt.Errorf("%w: delete on loan %s is not allowed for role %q", ErrForbidden, b.ID, actor.Role)
	}
	if b.Status != models.BorrowPending {
		return &TransitionError{LoanID: b.ID, Current: b.Status, Reason: "only pending loans can be deleted"}
	}
	return nil
}

// EffectiveStatus reports ACTIVE borrows past their approved end as OVERDUE.
// The stored status is not changed.
func EffectiveStatus(b *models.Borrow, now time.Time) models.BorrowStatus {
	if b.Status == models.BorrowActive && b.ApprovedEnd != nil && now.After(*b.ApprovedEnd) {
		return models.BorrowOverdue
	}
	return b.Status
}
