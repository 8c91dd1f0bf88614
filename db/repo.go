package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"Gin_postgres_redis_equipment_loans/engine"
	"Gin_postgres_redis_equipment_loans/models"
)

// Repo is the Postgres engine.Store. Writers serialise on the equipment row
// lock taken by LockEquipment (SELECT ... FOR UPDATE).
type Repo struct {
	DB *gorm.DB
	// LockTimeout is applied with SET LOCAL to every transaction; 0 waits forever.
	LockTimeout time.Duration
}

func NewRepo(db *gorm.DB, lockTimeout time.Duration) *Repo {
	return &Repo{DB: db, LockTimeout: lockTimeout}
}

var (
	_ engine.Store = (*Repo)(nil)
	_ engine.Tx    = (*txRepo)(nil)
)

// txRepo runs every call on one gorm handle, a transaction or the pool.
type txRepo struct{ db *gorm.DB }

func (r *Repo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx engine.Tx) error) error {
	err := r.DB.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		if r.LockTimeout > 0 {
			// SET LOCAL 不支持参数占位
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.LockTimeout.Milliseconds())
			if err := gtx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(ctx, &txRepo{db: gtx})
	})
	return translateErr(err)
}

func (r *Repo) reader(ctx context.Context) *txRepo { return &txRepo{db: r.DB.WithContext(ctx)} }

func (r *Repo) FindEquipment(ctx context.Context, id string) (*models.Equipment, error) {
	return r.reader(ctx).FindEquipment(ctx, id)
}

func (r *Repo) ListEquipment(ctx context.Context) ([]models.Equipment, error) {
	return r.reader(ctx).ListEquipment(ctx)
}

func (r *Repo) FindBorrow(ctx context.Context, id string) (*models.Borrow, error) {
	return r.reader(ctx).FindBorrow(ctx, id)
}

func (r *Repo) ListBorrows(ctx context.Context, f engine.BorrowFilter) ([]models.Borrow, error) {
	return r.reader(ctx).ListBorrows(ctx, f)
}

func (r *Repo) ListDeficiencies(ctx context.Context, borrowID string) ([]models.Deficiency, error) {
	return r.reader(ctx).ListDeficiencies(ctx, borrowID)
}
