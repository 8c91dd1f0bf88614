package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Gin_postgres_redis_equipment_loans/models"
)

var (
	owner    = Actor{ID: "u-owner", Role: models.RoleStudent}
	stranger = Actor{ID: "u-other", Role: models.RoleStudent}
	staff    = Actor{ID: "u-staff", Role: models.RoleStaff}
	faculty  = Actor{ID: "u-faculty", Role: models.RoleFaculty}
)

func pendingBorrow() *models.Borrow {
	return &models.Borrow{
		ID:             "b-1",
		EquipmentID:    "e-1",
		RequesterID:    owner.ID,
		RequestedStart: at(10, 0),
		RequestedEnd:   at(12, 0),
		Status:         models.BorrowPending,
	}
}

func TestApply_ApproveDefaultsToRequestedWindow(t *testing.T) {
	b := pendingBorrow()

	require.NoError(t, Apply(b, Approve, staff, Params{Now: at(9, 0)}))

	assert.Equal(t, models.BorrowApproved, b.Status)
	require.NotNil(t, b.ApprovedStart)
	require.NotNil(t, b.ApprovedEnd)
	assert.Equal(t, at(10, 0), *b.ApprovedStart)
	assert.Equal(t, at(12, 0), *b.ApprovedEnd)
	require.NotNil(t, b.ApproverID)
	assert.Equal(t, staff.ID, *b.ApproverID)
}

func TestApply_ApproveWithCustomWindow(t *testing.T) {
	b := pendingBorrow()
	w := Window{Start: at(13, 0), End: at(14, 0)}

	require.NoError(t, Apply(b, Approve, faculty, Params{Now: at(9, 0), Window: &w}))
	assert.Equal(t, at(13, 0), *b.ApprovedStart)
	assert.Equal(t, at(14, 0), *b.ApprovedEnd)
}

func TestApply_ApproveInvalidWindowLeavesBorrowUntouched(t *testing.T) {
	b := pendingBorrow()
	w := Window{Start: at(14, 0), End: at(13, 0)}

	err := Apply(b, Approve, staff, Params{Now: at(9, 0), Window: &w})
	assert.ErrorIs(t, err, ErrInvalidWindow)
	assert.Equal(t, models.BorrowPending, b.Status)
	assert.Nil(t, b.ApprovedStart)
	assert.Nil(t, b.ApproverID)
}

func TestApply_RoleGuards(t *testing.T) {
	tests := []struct {
		name   string
		status models.BorrowStatus
		tr     Transition
		actor  Actor
		ok     bool
	}{
		{"student cannot approve", models.BorrowPending, Approve, owner, false},
		{"staff approves", models.BorrowPending, Approve, staff, true},
		{"student cannot reject", models.BorrowPending, Reject, owner, false},
		{"owner cancels", models.BorrowPending, Cancel, owner, true},
		{"stranger cannot cancel", models.BorrowApproved, Cancel, stranger, false},
		{"faculty cancels", models.BorrowApproved, Cancel, faculty, true},
		{"owner checks out", models.BorrowApproved, Checkout, owner, true},
		{"stranger cannot check out", models.BorrowApproved, Checkout, stranger, false},
		{"owner requests return", models.BorrowActive, RequestReturn, owner, true},
		{"owner returns overdue", models.BorrowOverdue, RequestReturn, owner, true},
		{"owner cannot finalize", models.BorrowPendingReturn, FinalizeReturn, owner, false},
		{"staff finalizes", models.BorrowPendingReturn, FinalizeReturn, staff, true},
		{"staff cannot mark overdue", models.BorrowActive, MarkOverdue, staff, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := pendingBorrow()
			b.Status = tc.status
			start, end := at(8, 0), at(9, 0)
			b.ApprovedStart, b.ApprovedEnd = &start, &end

			err := Apply(b, tc.tr, tc.actor, Params{Now: at(10, 0)})
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrForbidden)
			assert.Equal(t, tc.status, b.Status)
		})
	}
}

func TestApply_CheckoutOutsideApprovedFails(t *testing.T) {
	for _, s := range []models.BorrowStatus{
		models.BorrowPending, models.BorrowActive, models.BorrowRejected, models.BorrowCompleted,
	} {
		b := pendingBorrow()
		b.Status = s

		err := Apply(b, Checkout, staff, Params{Now: at(11, 0)})

		var te *TransitionError
		require.True(t, errors.As(err, &te), "status %s", s)
		assert.Equal(t, s, te.Current)
		assert.Equal(t, models.BorrowActive, te.Target)
		assert.ErrorIs(t, err, ErrTransitionRejected)
	}
}

func TestApply_CheckoutBeforeWindowStart(t *testing.T) {
	b := pendingBorrow()
	require.NoError(t, Apply(b, Approve, staff, Params{Now: at(8, 0)}))

	err := Apply(b, Checkout, owner, Params{Now: at(9, 30)})
	assert.ErrorIs(t, err, ErrTransitionRejected)
	assert.Nil(t, b.CheckoutTime)

	require.NoError(t, Apply(b, Checkout, owner, Params{Now: at(9, 30), CheckoutGrace: time.Hour}))
	assert.Equal(t, models.BorrowActive, b.Status)
	assert.Equal(t, at(9, 30), *b.CheckoutTime)
}

func TestApply_RejectRecordsRoleAndClearsWindow(t *testing.T) {
	b := pendingBorrow()
	require.NoError(t, Apply(b, Approve, staff, Params{Now: at(8, 0)}))

	require.NoError(t, Apply(b, Reject, faculty, Params{Now: at(8, 30)}))

	assert.Equal(t, models.BorrowRejected, b.Status)
	assert.Nil(t, b.ApprovedStart)
	assert.Nil(t, b.ApprovedEnd)
	require.NotNil(t, b.RejectedByRole)
	assert.Equal(t, models.RoleFaculty, *b.RejectedByRole)
	assert.Equal(t, faculty.ID, *b.ApproverID)

	err := Apply(b, Approve, staff, Params{Now: at(9, 0)})
	assert.ErrorIs(t, err, ErrTransitionRejected)
}

func TestApply_FullLifecycle(t *testing.T) {
	b := pendingBorrow()
	p := Params{Now: at(10, 0)}

	require.NoError(t, Apply(b, Approve, staff, p))
	require.NoError(t, Apply(b, Checkout, owner, p))
	assert.Nil(t, b.ActualReturnTime)

	p.Now = at(12, 30)
	assert.Equal(t, models.BorrowOverdue, EffectiveStatus(b, p.Now))
	require.NoError(t, Apply(b, MarkOverdue, System, p))
	require.NoError(t, Apply(b, RequestReturn, owner, p))
	assert.Nil(t, b.ActualReturnTime)

	require.NoError(t, Apply(b, FinalizeReturn, staff, p))
	assert.Equal(t, models.BorrowCompleted, b.Status)
	require.NotNil(t, b.ActualReturnTime)
}

func TestApply_FinalizeDeficientClosesAsReturned(t *testing.T) {
	b := pendingBorrow()
	b.Status = models.BorrowPendingReturn

	require.NoError(t, Apply(b, FinalizeReturn, staff, Params{Now: at(12, 0), Deficient: true}))
	assert.Equal(t, models.BorrowReturned, b.Status)
}

func TestApply_MarkOverdueRequiresEndedWindow(t *testing.T) {
	b := pendingBorrow()
	require.NoError(t, Apply(b, Approve, staff, Params{Now: at(10, 0)}))
	require.NoError(t, Apply(b, Checkout, owner, Params{Now: at(10, 0)}))

	err := Apply(b, MarkOverdue, System, Params{Now: at(12, 0)})
	assert.ErrorIs(t, err, ErrTransitionRejected)
	assert.Equal(t, models.BorrowActive, EffectiveStatus(b, at(12, 0)))
}

func TestCanDelete(t *testing.T) {
	b := pendingBorrow()
	assert.NoError(t, CanDelete(b, owner))
	assert.NoError(t, CanDelete(b, staff))
	assert.ErrorIs(t, CanDelete(b, stranger), ErrForbidden)

	b.Status = models.BorrowApproved
	assert.ErrorIs(t, CanDelete(b, owner), ErrTransitionRejected)
}

func TestCanSubmit(t *testing.T) {
	assert.NoError(t, CanSubmit(owner, owner.ID))
	assert.NoError(t, CanSubmit(staff, owner.ID))
	assert.ErrorIs(t, CanSubmit(stranger, owner.ID), ErrForbidden)
	assert.ErrorIs(t, CanSubmit(Actor{}, owner.ID), ErrForbidden)
}

func TestParseTransition(t *testing.T) {
	tr, ok := ParseTransition("request-return")
	assert.True(t, ok)
	assert.Equal(t, RequestReturn, tr)
	assert.True(t, tr.Accepts(models.BorrowOverdue))

	_, ok = ParseTransition("teleport")
	assert.False(t, ok)
}
