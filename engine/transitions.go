package engine

import (
	"context"
	"fmt"
	"time"

	"Gin_postgres_redis_equipment_loans/lifecycle"
	"Gin_postgres_redis_equipment_loans/models"
)

// DeficiencyInfo describes a condition issue found on return.
type DeficiencyInfo struct {
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

func (d *DeficiencyInfo) validate() error {
	if d.Description == "" {
		return fmt.Errorf("%w: deficiency description is required", ErrInvalidRequest)
	}
	return nil
}

// Approve moves PENDING loans to APPROVED. window, when set, replaces the
// requested window. Every other PENDING request on the same equipment whose
// requested window overlaps the approved one is rejected in the same
// transaction. A group approval that would reject one of its own members
// fails with ErrInvalidWindow and changes nothing.
func (e *Engine) Approve(ctx context.Context, target Target, actor lifecycle.Actor, window *lifecycle.Window) (Result, error) {
	return e.transition(ctx, target, lifecycle.Approve, actor, lifecycle.Params{Window: window}, nil)
}

func (e *Engine) Reject(ctx context.Context, target Target, actor lifecycle.Actor) (Result, error) {
	return e.transition(ctx, target, lifecycle.Reject, actor, lifecycle.Params{}, nil)
}

func (e *Engine) Cancel(ctx context.Context, target Target, actor lifecycle.Actor) (Result, error) {
	return e.transition(ctx, target, lifecycle.Cancel, actor, lifecycle.Params{}, nil)
}

func (e *Engine) Checkout(ctx context.Context, target Target, actor lifecycle.Actor) (Result, error) {
	return e.transition(ctx, target, lifecycle.Checkout, actor, lifecycle.Params{CheckoutGrace: e.checkoutGrace}, nil)
}

func (e *Engine) RequestReturn(ctx context.Context, target Target, actor lifecycle.Actor) (Result, error) {
	return e.transition(ctx, target, lifecycle.RequestReturn, actor, lifecycle.Params{}, nil)
}

// FinalizeReturn closes PENDING_RETURN loans. With info the loan closes as
// RETURNED and a Deficiency is stored; otherwise it closes as COMPLETED.
// Deficiency info is only accepted for a single loan.
func (e *Engine) FinalizeReturn(ctx context.Context, target Target, actor lifecycle.Actor, info *DeficiencyInfo) (Result, error) {
	if info == nil {
		return e.transition(ctx, target, lifecycle.FinalizeReturn, actor, lifecycle.Params{}, nil)
	}
	if target.IsGroup() {
		return Result{}, fmt.Errorf("%w: deficiency info needs a single loan", ErrInvalidRequest)
	}
	if err := info.validate(); err != nil {
		return Result{}, err
	}
	record := func(ctx context.Context, tx Tx, b *models.Borrow) error {
		_, err := createDeficiency(ctx, tx, b, actor, *info)
		return err
	}
	return e.transition(ctx, target, lifecycle.FinalizeReturn, actor, lifecycle.Params{Deficient: true}, record)
}

// transition applies tr to every borrow addressed by target inside one
// transaction. A guard failure on any member aborts the whole batch.
func (e *Engine) transition(
	ctx context.Context,
	target Target,
	tr lifecycle.Transition,
	actor lifecycle.Actor,
	p lifecycle.Params,
	after func(ctx context.Context, tx Tx, b *models.Borrow) error,
) (Result, error) {
	var res Result
	var from []models.BorrowStatus

	err := e.run(ctx, string(tr), func(ctx context.Context, tx Tx, touched touchSet) error {
		res = Result{}
		p.Now = e.now()

		members, err := lockTargets(ctx, tx, target, tr)
		if err != nil {
			return err
		}
		from = make([]models.BorrowStatus, len(members))
		batch := make(map[string]bool, len(members))
		for i := range members {
			batch[members[i].ID] = true
		}

		for i := range members {
			b := &members[i]
			from[i] = b.Status
			if err := lifecycle.Apply(b, tr, actor, p); err != nil {
				return err
			}
			if err := tx.UpdateBorrow(ctx, b); err != nil {
				return err
			}
			touched.add(b.EquipmentID)

			if tr == lifecycle.Approve {
				ids, err := rejectOverlapping(ctx, tx, b, actor, p.Now)
				if err != nil {
					return err
				}
				// a member rejected here would be approved from a stale copy later in the batch
				for _, id := range ids {
					if batch[id] {
						return fmt.Errorf("%w: approving %s would reject %s of the same group",
							lifecycle.ErrInvalidWindow, b.ID, id)
					}
				}
				res.AutoRejectedIDs = append(res.AutoRejectedIDs, ids...)
			}
			if after != nil {
				if err := after(ctx, tx, b); err != nil {
					return err
				}
			}
		}

		if _, err := e.syncEquipment(ctx, tx, touched.list(), p.Now); err != nil {
			return err
		}
		res.Updated = members
		res.AutoRejectedCount = len(res.AutoRejectedIDs)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	for i, b := range res.Updated {
		e.log.InfoContext(ctx, "loan transitioned",
			"loan_id", b.ID, "group_id", deref(b.GroupID), "equipment_id", b.EquipmentID,
			"from", from[i], "to", b.Status, "actor", actor.ID, "role", actor.Role)
	}
	if res.AutoRejectedCount > 0 {
		e.log.InfoContext(ctx, "overlapping requests auto-rejected",
			"target", target.String(), "count", res.AutoRejectedCount, "loan_ids", res.AutoRejectedIDs)
	}
	return res, nil
}

// lockTargets locks the equipment behind target and returns the borrows tr
// should act on, read after the lock was taken. A single loan is returned
// whatever its status so the guard can report it; a group is narrowed to the
// members eligible for tr.
func lockTargets(ctx context.Context, tx Tx, target Target, tr lifecycle.Transition) ([]models.Borrow, error) {
	if !target.IsGroup() {
		b, err := tx.FindBorrow(ctx, target.LoanID)
		if err != nil {
			return nil, err
		}
		if _, err := tx.LockEquipment(ctx, b.EquipmentID); err != nil {
			return nil, err
		}
		if b, err = tx.FindBorrow(ctx, target.LoanID); err != nil {
			return nil, err
		}
		return []models.Borrow{*b}, nil
	}

	all, err := tx.ListBorrows(ctx, BorrowFilter{GroupID: target.GroupID})
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("group %s: %w", target.GroupID, lifecycle.ErrNotFound)
	}
	if err := lockEquipment(ctx, tx, equipmentIDs(all)); err != nil {
		return nil, err
	}

	members, err := tx.ListBorrows(ctx, BorrowFilter{GroupID: target.GroupID, Statuses: tr.Sources()})
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("group %s, %s: %w", target.GroupID, tr, lifecycle.ErrNoEligibleMembers)
	}
	return members, nil
}

// rejectOverlapping is the overlap resolver. It rejects, as actor, every
// other PENDING borrow of the same equipment whose requested window overlaps
// the approved window of b, siblings in its group included. Remaining free
// units are not consulted.
func rejectOverlapping(ctx context.Context, tx Tx, b *models.Borrow, actor lifecycle.Actor, now time.Time) ([]string, error) {
	pending, err := tx.ListBorrows(ctx, BorrowFilter{
		EquipmentID: b.EquipmentID,
		Statuses:    []models.BorrowStatus{models.BorrowPending},
	})
	if err != nil {
		return nil, err
	}

	aStart, aEnd := b.Window()
	var rejected []string
	for i := range pending {
		p := &pending[i]
		if p.ID == b.ID {
			continue
		}
		if !lifecycle.Overlaps(p.RequestedStart, p.RequestedEnd, aStart, aEnd) {
			continue
		}
		if err := lifecycle.Apply(p, lifecycle.Reject, actor, lifecycle.Params{Now: now}); err != nil {
			return nil, err
		}
		if err := tx.UpdateBorrow(ctx, p); err != nil {
			return nil, err
		}
		rejected = append(rejected, p.ID)
	}
	return rejected, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
