package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Gin_postgres_redis_equipment_loans/engine"
	"Gin_postgres_redis_equipment_loans/lifecycle"
	"Gin_postgres_redis_equipment_loans/models"
)

var t0 = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store) (*models.Equipment, *models.Borrow) {
	t.Helper()
	eq := &models.Equipment{ID: "eq-1", Serial: "SN-1", Name: "Camera", Units: 1, Status: models.EquipmentAvailable}
	b := &models.Borrow{
		ID: "loan-1", EquipmentID: eq.ID, RequesterID: "u-1",
		RequestedStart: t0, RequestedEnd: t0.Add(2 * time.Hour), Status: models.BorrowPending,
	}
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx engine.Tx) error {
		if err := tx.CreateEquipment(ctx, eq); err != nil {
			return err
		}
		return tx.CreateBorrow(ctx, b)
	})
	require.NoError(t, err)
	return eq, b
}

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	s := New().WithClock(func() time.Time { return t0 })
	eq, b := seed(t, s)

	got, err := s.FindBorrow(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BorrowPending, got.Status)
	assert.Equal(t, t0, got.CreatedAt)

	stored, err := s.FindEquipment(context.Background(), eq.ID)
	require.NoError(t, err)
	assert.Equal(t, "SN-1", stored.Serial)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := New()
	_, b := seed(t, s)
	boom := errors.New("boom")

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx engine.Tx) error {
		cur, err := tx.FindBorrow(ctx, b.ID)
		require.NoError(t, err)
		cur.Status = models.BorrowApproved
		require.NoError(t, tx.UpdateBorrow(ctx, cur))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.FindBorrow(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BorrowPending, got.Status)
}

func TestWithinTx_RollsBackWhenContextEnds(t *testing.T) {
	s := New()
	_, b := seed(t, s)
	ctx, cancel := context.WithCancel(context.Background())

	err := s.WithinTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		require.NoError(t, tx.DeleteBorrow(ctx, b.ID))
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = s.FindBorrow(context.Background(), b.ID)
	assert.NoError(t, err)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	s := New()
	_, b := seed(t, s)

	got, err := s.FindBorrow(context.Background(), b.ID)
	require.NoError(t, err)
	got.Status = models.BorrowCancelled

	again, err := s.FindBorrow(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BorrowPending, again.Status)
}

func TestListBorrows_Filters(t *testing.T) {
	s := New()
	eq, _ := seed(t, s)
	group := "g-1"
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx engine.Tx) error {
		return tx.CreateBorrow(ctx, &models.Borrow{
			ID: "loan-2", GroupID: &group, EquipmentID: eq.ID, RequesterID: "u-2",
			RequestedStart: t0, RequestedEnd: t0.Add(time.Hour), Status: models.BorrowApproved,
		})
	})
	require.NoError(t, err)

	ctx := context.Background()
	all, err := s.ListBorrows(ctx, engine.BorrowFilter{EquipmentID: eq.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	held, err := s.ListBorrows(ctx, engine.BorrowFilter{Statuses: models.UnitHoldingStatuses})
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, "loan-2", held[0].ID)

	grouped, err := s.ListBorrows(ctx, engine.BorrowFilter{GroupID: group})
	require.NoError(t, err)
	assert.Len(t, grouped, 1)

	mine, err := s.ListBorrows(ctx, engine.BorrowFilter{RequesterID: "u-1"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "loan-1", mine[0].ID)
}

func TestCreateRejectsDuplicatesAndUnknownEquipment(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		return tx.CreateEquipment(ctx, &models.Equipment{ID: "eq-2", Serial: "sn-1", Name: "Dup", Units: 1})
	})
	assert.ErrorIs(t, err, engine.ErrDuplicate)

	err = s.WithinTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		return tx.CreateBorrow(ctx, &models.Borrow{ID: "loan-x", EquipmentID: "nope"})
	})
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	_, err = s.FindEquipment(ctx, "nope")
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestUsers(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u-1", Username: "alice", DisplayName: "Alice", Role: models.RoleStudent}))
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u-2", Username: "bob", DisplayName: "Bob", Role: models.RoleStudent}))
	assert.ErrorIs(t, s.CreateUser(ctx, &models.User{ID: "u-3", Username: "ALICE"}), engine.ErrDuplicate)

	u, err := s.FindUserByUsername(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)

	require.NoError(t, s.SetUserRole(ctx, "u-2", models.RoleStaff))
	u, err = s.FindUserByID(ctx, "u-2")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, u.Role)

	require.NoError(t, s.TouchUserSeen(ctx, "u-1"))
	u, err = s.FindUserByID(ctx, "u-1")
	require.NoError(t, err)
	assert.NotNil(t, u.LastSeenAt)

	list, total, err := s.ListUsers(ctx, "bo", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "bob", list[0].Username)

	list, total, err = s.ListUsers(ctx, "", 2, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, s.SetUserRole(ctx, "missing", models.RoleAdmin), lifecycle.ErrNotFound)
}
