package models

import (
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
	// RoleSystem is never stored; it marks time-driven transitions.
	RoleSystem Role = "system"
)

// Privileged roles may approve, reject and close loans of other users.
func (r Role) Privileged() bool {
	switch r {
	case RoleStaff, RoleFaculty, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleStaff, RoleFaculty, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Username    string `gorm:"uniqueIndex;size:255;not null" json:"username"`
	DisplayName string `gorm:"size:255;not null" json:"displayName"`
	Role        Role   `gorm:"size:20;not null;default:'student'" json:"role"`

	LastSeenAt *time.Time `gorm:"index" json:"lastSeenAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "lsb_users"
}
