package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"Gin_postgres_redis_equipment_loans/lifecycle"
	"Gin_postgres_redis_equipment_loans/models"
)

// Availability answers how many units are free during Window.
type Availability struct {
	EquipmentID      string                 `json:"equipmentId"`
	Window           lifecycle.Window       `json:"window"`
	Units            int                    `json:"units"`
	FreeUnits        int                    `json:"freeUnits"`
	Status           models.EquipmentStatus `json:"status"`
	NextReservedFrom *time.Time             `json:"nextReservedFrom,omitempty"`
}

// Availability computes the free units of an equipment during w from the
// committed loan set. Equipment in a terminal status has no free units.
// Answers may come from the configured cache.
func (e *Engine) Availability(ctx context.Context, equipmentID string, w lifecycle.Window) (*Availability, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	var version int64
	if e.cache != nil {
		cached, v, ok := e.cache.Get(ctx, equipmentID, w)
		if ok {
			return cached, nil
		}
		version = v
	}
	a, err := e.computeAvailability(ctx, equipmentID, w)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(ctx, equipmentID, w, version, a)
	}
	return a, nil
}

// CurrentAvailability is the free unit count at this instant. It always
// reads the store.
func (e *Engine) CurrentAvailability(ctx context.Context, equipmentID string) (*Availability, error) {
	now := e.now()
	return e.computeAvailability(ctx, equipmentID, lifecycle.Window{Start: now, End: now.Add(time.Nanosecond)})
}

func (e *Engine) computeAvailability(ctx context.Context, equipmentID string, w lifecycle.Window) (*Availability, error) {
	eq, err := e.store.FindEquipment(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	a := &Availability{EquipmentID: eq.ID, Window: w, Units: eq.Units, Status: eq.Status}
	if eq.Status.IsTerminal() {
		return a, nil
	}
	loans, err := e.store.ListBorrows(ctx, BorrowFilter{EquipmentID: eq.ID, Statuses: models.UnitHoldingStatuses})
	if err != nil {
		return nil, err
	}
	a.Status = lifecycle.DeriveEquipmentStatus(eq, loans, e.now()).Status
	a.FreeUnits = lifecycle.FreeUnits(eq.Units, w, loans)
	a.NextReservedFrom = lifecycle.NextReservationStart(loans, w.Start, models.UnitHoldingStatuses...)
	return a, nil
}

type NewEquipment struct {
	Serial string
	Name   string
	Units  int
}

func (e *Engine) CreateEquipment(ctx context.Context, actor lifecycle.Actor, in NewEquipment) (*models.Equipment, error) {
	if !actor.Privileged() {
		return nil, fmt.Errorf("%w: creating equipment", lifecycle.ErrForbidden)
	}
	in.Serial, in.Name = strings.TrimSpace(in.Serial), strings.TrimSpace(in.Name)
	if in.Serial == "" || in.Name == "" {
		return nil, fmt.Errorf("%w: serial and name are required", ErrInvalidRequest)
	}
	if in.Units == 0 {
		in.Units = 1
	}
	if in.Units < 1 {
		return nil, fmt.Errorf("%w: units must be at least 1", ErrInvalidRequest)
	}

	eq := &models.Equipment{
		ID:     uuid.NewString(),
		Serial: in.Serial,
		Name:   in.Name,
		Units:  in.Units,
		Status: models.EquipmentAvailable,
	}
	err := e.run(ctx, "create-equipment", func(ctx context.Context, tx Tx, _ touchSet) error {
		return tx.CreateEquipment(ctx, eq)
	})
	if err != nil {
		return nil, err
	}
	e.log.InfoContext(ctx, "equipment created", "equipment_id", eq.ID, "serial", eq.Serial, "units", eq.Units)
	return eq, nil
}

// SetCondition sets a terminal status on an equipment, or clears it when
// status is AVAILABLE, after which the status is derived from loans again.
func (e *Engine) SetCondition(ctx context.Context, actor lifecycle.Actor, equipmentID string, status models.EquipmentStatus) (*models.Equipment, error) {
	if !actor.Privileged() {
		return nil, fmt.Errorf("%w: changing equipment condition", lifecycle.ErrForbidden)
	}
	if !status.IsTerminal() && status != models.EquipmentAvailable {
		return nil, fmt.Errorf("%w: %q is derived from loans and cannot be set", ErrInvalidRequest, status)
	}

	var out *models.Equipment
	err := e.run(ctx, "set-condition", func(ctx context.Context, tx Tx, touched touchSet) error {
		if _, err := tx.LockEquipment(ctx, equipmentID); err != nil {
			return err
		}
		if err := tx.UpdateEquipmentStatus(ctx, equipmentID, status, nil); err != nil {
			return err
		}
		touched.add(equipmentID)
		if _, err := e.syncEquipment(ctx, tx, []string{equipmentID}, e.now()); err != nil {
			return err
		}
		var err error
		out, err = tx.LockEquipment(ctx, equipmentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.log.InfoContext(ctx, "equipment condition set", "equipment_id", equipmentID, "status", out.Status, "actor", actor.ID)
	return out, nil
}

// Resync recomputes the derived status of one equipment.
func (e *Engine) Resync(ctx context.Context, equipmentID string) (*models.Equipment, error) {
	var out *models.Equipment
	err := e.run(ctx, "resync", func(ctx context.Context, tx Tx, touched touchSet) error {
		changed, err := e.syncEquipment(ctx, tx, []string{equipmentID}, e.now())
		if err != nil {
			return err
		}
		for _, id := range changed {
			touched.add(id)
		}
		out, err = tx.LockEquipment(ctx, equipmentID)
		return err
	})
	return out, err
}

// ResyncAll recomputes every non-terminal equipment. Used by the overdue
// sweep so time-driven changes (a window starting) reach the stored status.
func (e *Engine) ResyncAll(ctx context.Context) (int, error) {
	items, err := e.store.ListEquipment(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, eq := range items {
		if eq.Status.IsTerminal() {
			continue
		}
		if _, err := e.Resync(ctx, eq.ID); err != nil {
			if errors.Is(err, lifecycle.ErrNotFound) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

// GetEquipment returns an equipment with its status derived at read time,
// like OVERDUE on loans. The stored row catches up on the next write or sweep.
func (e *Engine) GetEquipment(ctx context.Context, id string) (*models.Equipment, error) {
	eq, err := e.store.FindEquipment(ctx, id)
	if err != nil {
		return nil, err
	}
	if eq.Status.IsTerminal() {
		return eq, nil
	}
	loans, err := e.store.ListBorrows(ctx, BorrowFilter{EquipmentID: eq.ID, Statuses: models.UnitHoldingStatuses})
	if err != nil {
		return nil, err
	}
	derive(eq, loans, e.now())
	return eq, nil
}

func (e *Engine) ListEquipment(ctx context.Context) ([]models.Equipment, error) {
	items, err := e.store.ListEquipment(ctx)
	if err != nil {
		return nil, err
	}
	holding, err := e.store.ListBorrows(ctx, BorrowFilter{Statuses: models.UnitHoldingStatuses})
	if err != nil {
		return nil, err
	}
	byEquipment := make(map[string][]models.Borrow)
	for _, b := range holding {
		byEquipment[b.EquipmentID] = append(byEquipment[b.EquipmentID], b)
	}
	now := e.now()
	for i := range items {
		derive(&items[i], byEquipment[items[i].ID], now)
	}
	return items, nil
}

// derive overwrites the coarse status of eq with the one it has at now.
func derive(eq *models.Equipment, loans []models.Borrow, now time.Time) {
	d := lifecycle.DeriveEquipmentStatus(eq, loans, now)
	eq.Status, eq.NextReservedFrom = d.Status, d.NextReservedFrom
}

func isStale(err error) bool {
	return errors.Is(err, lifecycle.ErrTransitionRejected) || errors.Is(err, lifecycle.ErrNotFound)
}
