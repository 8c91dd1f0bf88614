package lifecycle

import "Gin_postgres_redis_equipment_loans/models"

// Actor is the identity a caller acts as. The role is resolved by the caller;
// this package never looks up sessions.
type Actor struct {
	ID   string
	Role models.Role
}

// System is the actor used for time-driven transitions.
var System = Actor{Role: models.RoleSystem}

func (a Actor) Privileged() bool { return a.Role.Privileged() }

func (a Actor) Owns(b *models.Borrow) bool {
	return a.ID != "" && a.ID == b.RequesterID
}
