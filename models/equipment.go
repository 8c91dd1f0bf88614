// models/equipment.go
package models

import "time"

const EquipmentTable = "lsb_equipment"

type EquipmentStatus string

const (
	EquipmentAvailable        EquipmentStatus = "AVAILABLE"
	EquipmentReserved         EquipmentStatus = "RESERVED"
	EquipmentBorrowed         EquipmentStatus = "BORROWED"
	EquipmentUnderMaintenance EquipmentStatus = "UNDER_MAINTENANCE"
	EquipmentDefective        EquipmentStatus = "DEFECTIVE"
	EquipmentOutOfService     EquipmentStatus = "OUT_OF_SERVICE"
	EquipmentArchived         EquipmentStatus = "ARCHIVED"
)

// IsTerminal reports whether the status is set by staff and must never be
// overwritten by loan aggregation.
func (s EquipmentStatus) IsTerminal() bool {
	switch s {
	case EquipmentUnderMaintenance, EquipmentDefective, EquipmentOutOfService, EquipmentArchived:
		return true
	}
	return false
}

func (s EquipmentStatus) Valid() bool {
	switch s {
	case EquipmentAvailable, EquipmentReserved, EquipmentBorrowed:
		return true
	}
	return s.IsTerminal()
}

type Equipment struct {
	ID     string          `gorm:"type:uuid;primaryKey" json:"id"`
	Serial string          `gorm:"size:120;uniqueIndex;not null" json:"serial"`
	Name   string          `gorm:"size:200;not null" json:"name"`
	Units  int             `gorm:"not null;default:1;check:units >= 1" json:"units"`
	Status EquipmentStatus `gorm:"size:20;not null;default:'AVAILABLE'" json:"status"`

	// 最早的未来已批准借用开始时间，仅用于展示
	NextReservedFrom *time.Time `json:"nextReservedFrom,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Equipment) TableName() string { return EquipmentTable }
