package db

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"Gin_postgres_redis_equipment_loans/models"
)

func (t *txRepo) FindEquipment(_ context.Context, id string) (*models.Equipment, error) {
	var eq models.Equipment
	if err := t.db.First(&eq, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &eq, nil
}

// LockEquipment reads the row FOR UPDATE; the lock lasts until commit.
func (t *txRepo) LockEquipment(_ context.Context, id string) (*models.Equipment, error) {
	var eq models.Equipment
	if err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&eq, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &eq, nil
}

func (t *txRepo) ListEquipment(_ context.Context) ([]models.Equipment, error) {
	var items []models.Equipment
	err := t.db.Order("created_at DESC").Find(&items).Error
	return items, translateErr(err)
}

func (t *txRepo) CreateEquipment(_ context.Context, eq *models.Equipment) error {
	return translateErr(t.db.Create(eq).Error)
}

func (t *txRepo) UpdateEquipmentStatus(_ context.Context, id string, status models.EquipmentStatus, next *time.Time) error {
	res := t.db.Model(&models.Equipment{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "next_reserved_from": next})
	if res.Error != nil {
		return translateErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("equipment", id)
	}
	return nil
}
