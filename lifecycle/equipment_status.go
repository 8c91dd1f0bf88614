package lifecycle

import (
	"time"

	"Gin_postgres_redis_equipment_loans/models"
)

// Derivation is the outcome of recomputing an equipment's coarse status.
type Derivation struct {
	Status           models.EquipmentStatus
	NextReservedFrom *time.Time
	ActiveNow        int
	CommittedNow     int
}

// DeriveEquipmentStatus computes the coarse status of eq from its borrows at
// instant now. A terminal status on eq always stands. The result depends only
// on its inputs, so recomputing over an unchanged loan set is idempotent.
func DeriveEquipmentStatus(eq *models.Equipment, loans []models.Borrow, now time.Time) Derivation {
	if eq.Status.IsTerminal() {
		return Derivation{Status: eq.Status}
	}

	d := Derivation{
		NextReservedFrom: NextReservationStart(loans, now, models.BorrowApproved),
	}
	for i := range loans {
		b := &loans[i]
		switch b.Status {
		case models.BorrowActive, models.BorrowOverdue:
			d.ActiveNow++
		case models.BorrowApproved:
			if b.ApprovedStart == nil || b.ApprovedEnd == nil {
				d.CommittedNow++
				continue
			}
			if (Window{Start: *b.ApprovedStart, End: *b.ApprovedEnd}).Contains(now) {
				d.CommittedNow++
			}
		}
	}

	units := eq.Units
	if units < 1 {
		units = 1
	}
	switch {
	case d.ActiveNow >= units:
		d.Status = models.EquipmentBorrowed
	case d.ActiveNow+d.CommittedNow >= units:
		d.Status = models.EquipmentReserved
	default:
		d.Status = models.EquipmentAvailable
	}
	return d
}
