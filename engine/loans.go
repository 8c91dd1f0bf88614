package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"Gin_postgres_redis_equipment_loans/lifecycle"
	"Gin_postgres_redis_equipment_loans/models"
)

type SubmitRequest struct {
	EquipmentID string
	RequesterID string
	ClassID     *string
	Window      lifecycle.Window
	Note        string
}

type GroupItem struct {
	EquipmentID string
	Window      lifecycle.Window
	Note        string
}

// GroupRequest submits several loans at once. They share requester, class
// and a fresh group id.
type GroupRequest struct {
	RequesterID string
	ClassID     *string
	Items       []GroupItem
}

// Submit opens a PENDING request.
func (e *Engine) Submit(ctx context.Context, actor lifecycle.Actor, req SubmitRequest) (*models.Borrow, error) {
	created, err := e.SubmitGroup(ctx, actor, GroupRequest{
		RequesterID: req.RequesterID,
		ClassID:     req.ClassID,
		Items:       []GroupItem{{EquipmentID: req.EquipmentID, Window: req.Window, Note: req.Note}},
	})
	if err != nil {
		return nil, err
	}
	return &created[0], nil
}

// SubmitGroup opens one PENDING request per item. More than one item makes
// a group; a single item gets no group id. Items on the same equipment must
// not overlap. Either all are created or none.
func (e *Engine) SubmitGroup(ctx context.Context, actor lifecycle.Actor, req GroupRequest) ([]models.Borrow, error) {
	if err := lifecycle.CanSubmit(actor, req.RequesterID); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidRequest)
	}
	ids := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		if strings.TrimSpace(it.EquipmentID) == "" {
			return nil, fmt.Errorf("%w: equipment id is required", ErrInvalidRequest)
		}
		if err := it.Window.Validate(); err != nil {
			return nil, err
		}
		ids = append(ids, it.EquipmentID)
	}
	// overlapping items on one equipment would auto-reject each other on approval
	for i := range req.Items {
		for j := i + 1; j < len(req.Items); j++ {
			a, b := req.Items[i], req.Items[j]
			if a.EquipmentID == b.EquipmentID && a.Window.Overlaps(b.Window) {
				return nil, fmt.Errorf("%w: items %d and %d overlap on equipment %s",
					lifecycle.ErrInvalidWindow, i, j, a.EquipmentID)
			}
		}
	}

	var groupID *string
	if len(req.Items) > 1 {
		g := uuid.NewString()
		groupID = &g
	}

	var created []models.Borrow
	err := e.run(ctx, "submit", func(ctx context.Context, tx Tx, _ touchSet) error {
		created = created[:0]
		if err := lockEquipment(ctx, tx, ids); err != nil {
			return err
		}
		for _, it := range req.Items {
			eq, err := tx.LockEquipment(ctx, it.EquipmentID)
			if err != nil {
				return err
			}
			if eq.Status.IsTerminal() {
				return fmt.Errorf("equipment %s is %s: %w", eq.ID, eq.Status, lifecycle.ErrEquipmentUnavailable)
			}
			b := models.Borrow{
				ID:             uuid.NewString(),
				GroupID:        groupID,
				EquipmentID:    it.EquipmentID,
				RequesterID:    req.RequesterID,
				ClassID:        req.ClassID,
				RequestedStart: it.Window.Start,
				RequestedEnd:   it.Window.End,
				Status:         models.BorrowPending,
				Note:           it.Note,
			}
			if err := tx.CreateBorrow(ctx, &b); err != nil {
				return err
			}
			created = append(created, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.InfoContext(ctx, "loan request submitted",
		"requester", req.RequesterID, "group_id", deref(groupID), "items", len(created))
	return created, nil
}

// Delete hard-deletes a PENDING borrow.
func (e *Engine) Delete(ctx context.Context, loanID string, actor lifecycle.Actor) error {
	err := e.run(ctx, "delete", func(ctx context.Context, tx Tx, touched touchSet) error {
		members, err := lockTargets(ctx, tx, Loan(loanID), lifecycle.Cancel)
		if err != nil {
			return err
		}
		b := &members[0]
		if err := lifecycle.CanDelete(b, actor); err != nil {
			return err
		}
		if err := tx.DeleteBorrow(ctx, b.ID); err != nil {
			return err
		}
		touched.add(b.EquipmentID)
		_, err = e.syncEquipment(ctx, tx, touched.list(), e.now())
		return err
	})
	if err != nil {
		return err
	}
	e.log.InfoContext(ctx, "loan request deleted", "loan_id", loanID, "actor", actor.ID)
	return nil
}

// ReportDeficiency attaches a deficiency to a loan that is being returned or
// already closed. The loan status does not change.
func (e *Engine) ReportDeficiency(ctx context.Context, loanID string, actor lifecycle.Actor, info DeficiencyInfo) (*models.Deficiency, error) {
	if err := info.validate(); err != nil {
		return nil, err
	}
	var d *models.Deficiency
	err := e.run(ctx, "report-deficiency", func(ctx context.Context, tx Tx, _ touchSet) error {
		b, err := tx.FindBorrow(ctx, loanID)
		if err != nil {
			return err
		}
		if !actor.Privileged() && !actor.Owns(b) {
			return fmt.Errorf("%w: deficiency on loan %s", lifecycle.ErrForbidden, loanID)
		}
		switch b.Status {
		case models.BorrowPendingReturn, models.BorrowReturned, models.BorrowCompleted:
		default:
			return &lifecycle.TransitionError{LoanID: b.ID, Current: b.Status,
				Reason: "deficiencies are recorded on return"}
		}
		d, err = createDeficiency(ctx, tx, b, actor, info)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.log.InfoContext(ctx, "deficiency reported", "loan_id", loanID, "deficiency_id", d.ID, "severity", d.Severity)
	return d, nil
}

func createDeficiency(ctx context.Context, tx Tx, b *models.Borrow, actor lifecycle.Actor, info DeficiencyInfo) (*models.Deficiency, error) {
	severity := strings.ToLower(strings.TrimSpace(info.Severity))
	if severity == "" {
		severity = "minor"
	}
	d := &models.Deficiency{
		ID:          uuid.NewString(),
		BorrowID:    b.ID,
		EquipmentID: b.EquipmentID,
		ReportedBy:  actor.ID,
		Severity:    severity,
		Description: strings.TrimSpace(info.Description),
	}
	if err := tx.CreateDeficiency(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// SweepOverdue persists ACTIVE -> OVERDUE for every loan past its approved
// end and returns how many were flipped. Reads already report these loans as
// OVERDUE; the sweep only makes it durable.
func (e *Engine) SweepOverdue(ctx context.Context) (int, error) {
	active, err := e.store.ListBorrows(ctx, BorrowFilter{Statuses: []models.BorrowStatus{models.BorrowActive}})
	if err != nil {
		return 0, err
	}
	now := e.now()
	flipped := 0
	for i := range active {
		b := &active[i]
		if lifecycle.EffectiveStatus(b, now) != models.BorrowOverdue {
			continue
		}
		_, err := e.transition(ctx, Loan(b.ID), lifecycle.MarkOverdue, lifecycle.System, lifecycle.Params{}, nil)
		switch {
		case err == nil:
			flipped++
		case isStale(err):
			// returned or flipped concurrently
		default:
			return flipped, err
		}
	}
	return flipped, nil
}

// GetBorrow returns a loan with OVERDUE computed at read time.
func (e *Engine) GetBorrow(ctx context.Context, id string) (*models.Borrow, error) {
	b, err := e.store.FindBorrow(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Status = lifecycle.EffectiveStatus(b, e.now())
	return b, nil
}

// ListBorrows filters on the effective status, so asking for OVERDUE also
// finds ACTIVE loans past their end that no sweep has flipped yet.
func (e *Engine) ListBorrows(ctx context.Context, f BorrowFilter) ([]models.Borrow, error) {
	want := f.Statuses
	if hasStatus(want, models.BorrowOverdue) && !hasStatus(want, models.BorrowActive) {
		f.Statuses = append(append([]models.BorrowStatus(nil), want...), models.BorrowActive)
	}
	bs, err := e.store.ListBorrows(ctx, f)
	if err != nil {
		return nil, err
	}
	now := e.now()
	out := bs[:0]
	for i := range bs {
		bs[i].Status = lifecycle.EffectiveStatus(&bs[i], now)
		if len(want) > 0 && !hasStatus(want, bs[i].Status) {
			continue
		}
		out = append(out, bs[i])
	}
	return out, nil
}

func hasStatus(list []models.BorrowStatus, s models.BorrowStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (e *Engine) Deficiencies(ctx context.Context, loanID string) ([]models.Deficiency, error) {
	if _, err := e.store.FindBorrow(ctx, loanID); err != nil {
		return nil, err
	}
	return e.store.ListDeficiencies(ctx, loanID)
}

// Now exposes the engine clock.
func (e *Engine) Now() time.Time { return e.now() }
