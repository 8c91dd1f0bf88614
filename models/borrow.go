// models/borrow.go
package models

import "time"

const BorrowTable = "lsb_borrows"
const DeficiencyTable = "lsb_deficiencies"

type BorrowStatus string

const (
	BorrowPending       BorrowStatus = "PENDING"
	BorrowApproved      BorrowStatus = "APPROVED"
	BorrowActive        BorrowStatus = "ACTIVE"
	BorrowOverdue       BorrowStatus = "OVERDUE"
	BorrowPendingReturn BorrowStatus = "PENDING_RETURN"
	BorrowReturned      BorrowStatus = "RETURNED"
	BorrowCompleted     BorrowStatus = "COMPLETED"
	BorrowRejected      BorrowStatus = "REJECTED"
	BorrowCancelled     BorrowStatus = "CANCELLED"
)

// HoldsUnit reports whether a borrow in this status still occupies one unit
// of its equipment.
func (s BorrowStatus) HoldsUnit() bool {
	switch s {
	case BorrowApproved, BorrowActive, BorrowOverdue, BorrowPendingReturn:
		return true
	}
	return false
}

func (s BorrowStatus) IsTerminal() bool {
	switch s {
	case BorrowReturned, BorrowCompleted, BorrowRejected, BorrowCancelled:
		return true
	}
	return false
}

func (s BorrowStatus) Valid() bool {
	switch s {
	case BorrowPending, BorrowApproved, BorrowActive, BorrowOverdue, BorrowPendingReturn:
		return true
	}
	return s.IsTerminal()
}

// UnitHoldingStatuses lists every status for which HoldsUnit is true.
var UnitHoldingStatuses = []BorrowStatus{BorrowApproved, BorrowActive, BorrowOverdue, BorrowPendingReturn}

type Borrow struct {
	ID          string  `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID     *string `gorm:"type:uuid;index" json:"groupId,omitempty"`
	EquipmentID string  `gorm:"type:uuid;index;not null" json:"equipmentId"`
	RequesterID string  `gorm:"type:uuid;index;not null" json:"requesterId"`
	ClassID     *string `gorm:"size:64" json:"classId,omitempty"`

	RequestedStart time.Time  `gorm:"not null" json:"requestedStart"`
	RequestedEnd   time.Time  `gorm:"not null" json:"requestedEnd"`
	ApprovedStart  *time.Time `json:"approvedStart,omitempty"`
	ApprovedEnd    *time.Time `json:"approvedEnd,omitempty"`

	CheckoutTime     *time.Time `json:"checkoutTime,omitempty"`
	ActualReturnTime *time.Time `json:"actualReturnTime,omitempty"`

	Status         BorrowStatus `gorm:"size:20;index;not null;default:'PENDING'" json:"status"`
	ApproverID     *string      `gorm:"type:uuid" json:"approverId,omitempty"`
	RejectedByRole *Role        `gorm:"size:20" json:"rejectedByRole,omitempty"`

	Note      string    `gorm:"size:255" json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Borrow) TableName() string { return BorrowTable }

// Window returns the approved window when present, else the requested one.
func (b *Borrow) Window() (time.Time, time.Time) {
	if b.ApprovedStart != nil && b.ApprovedEnd != nil {
		return *b.ApprovedStart, *b.ApprovedEnd
	}
	return b.RequestedStart, b.RequestedEnd
}

func (b *Borrow) InGroup(groupID string) bool {
	return groupID != "" && b.GroupID != nil && *b.GroupID == groupID
}

// Deficiency records a condition issue found at or after return. It is
// written once and never changes.
type Deficiency struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	BorrowID    string    `gorm:"type:uuid;index;not null" json:"borrowId"`
	EquipmentID string    `gorm:"type:uuid;index;not null" json:"equipmentId"`
	ReportedBy  string    `gorm:"type:uuid;not null" json:"reportedBy"`
	Severity    string    `gorm:"size:20;not null;default:'minor'" json:"severity"`
	Description string    `gorm:"type:text;not null" json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (Deficiency) TableName() string { return DeficiencyTable }
