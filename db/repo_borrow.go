package db

import (
	"context"

	"Gin_postgres_redis_equipment_loans/engine"
	"Gin_postgres_redis_equipment_loans/models"
)

func (t *txRepo) FindBorrow(_ context.Context, id string) (*models.Borrow, error) {
	var b models.Borrow
	if err := t.db.First(&b, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &b, nil
}

func (t *txRepo) ListBorrows(_ context.Context, f engine.BorrowFilter) ([]models.Borrow, error) {
	q := t.db.Model(&models.Borrow{}).Order("created_at ASC, id ASC")
	if f.EquipmentID != "" {
		q = q.Where("equipment_id = ?", f.EquipmentID)
	}
	if f.RequesterID != "" {
		q = q.Where("requester_id = ?", f.RequesterID)
	}
	if f.GroupID != "" {
		q = q.Where("group_id = ?", f.GroupID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	var bs []models.Borrow
	if err := q.Find(&bs).Error; err != nil {
		return nil, translateErr(err)
	}
	return bs, nil
}

func (t *txRepo) CreateBorrow(_ context.Context, b *models.Borrow) error {
	return translateErr(t.db.Create(b).Error)
}

// UpdateBorrow writes every column, nil pointers included, so cleared
// approval fields reach the row.
func (t *txRepo) UpdateBorrow(_ context.Context, b *models.Borrow) error {
	res := t.db.Model(b).Select("*").Omit("id", "created_at").Updates(b)
	if res.Error != nil {
		return translateErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("loan", b.ID)
	}
	return nil
}

func (t *txRepo) DeleteBorrow(_ context.Context, id string) error {
	res := t.db.Where("id = ?", id).Delete(&models.Borrow{})
	if res.Error != nil {
		return translateErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("loan", id)
	}
	return nil
}

func (t *txRepo) ListDeficiencies(_ context.Context, borrowID string) ([]models.Deficiency, error) {
	var ds []models.Deficiency
	err := t.db.Where("borrow_id = ?", borrowID).Order("created_at ASC").Find(&ds).Error
	return ds, translateErr(err)
}

func (t *txRepo) CreateDeficiency(_ context.Context, d *models.Deficiency) error {
	return translateErr(t.db.Create(d).Error)
}
