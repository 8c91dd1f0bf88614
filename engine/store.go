package engine

import (
	"context"
	"time"

	"Gin_postgres_redis_equipment_loans/models"
)

// BorrowFilter narrows ListBorrows. Empty fields do not filter.
type BorrowFilter struct {
	EquipmentID string
	RequesterID string
	GroupID     string
	Statuses    []models.BorrowStatus
}

// Reader is the read side shared by the store and its transactions.
type Reader interface {
	FindEquipment(ctx context.Context, id string) (*models.Equipment, error)
	ListEquipment(ctx context.Context) ([]models.Equipment, error)
	FindBorrow(ctx context.Context, id string) (*models.Borrow, error)
	ListBorrows(ctx context.Context, f BorrowFilter) ([]models.Borrow, error)
	ListDeficiencies(ctx context.Context, borrowID string) ([]models.Deficiency, error)
}

// Tx is one atomic unit of work. Every borrow write must be preceded by
// LockEquipment on the borrow's equipment, which serialises all writers of
// that equipment's loan set until the transaction ends.
type Tx interface {
	Reader

	LockEquipment(ctx context.Context, id string) (*models.Equipment, error)
	CreateEquipment(ctx context.Context, eq *models.Equipment) error
	UpdateEquipmentStatus(ctx context.Context, id string, status models.EquipmentStatus, nextReservedFrom *time.Time) error

	CreateBorrow(ctx context.Context, b *models.Borrow) error
	UpdateBorrow(ctx context.Context, b *models.Borrow) error
	DeleteBorrow(ctx context.Context, id string) error

	CreateDeficiency(ctx context.Context, d *models.Deficiency) error
}

// Store runs fn inside one transaction. A nil return commits; any error, or
// a cancelled ctx, rolls everything back. Lookups of unknown ids return an
// error matching lifecycle.ErrNotFound; detected write races return one
// matching lifecycle.ErrConflict.
type Store interface {
	Reader
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
