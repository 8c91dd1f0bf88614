package engine_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"Gin_postgres_redis_equipment_loans/engine"
	"Gin_postgres_redis_equipment_loans/lifecycle"
	"Gin_postgres_redis_equipment_loans/memstore"
	"Gin_postgres_redis_equipment_loans/models"
)

var monday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func at(hour int) time.Time { return monday.Add(time.Duration(hour) * time.Hour) }

func window(from, to int) lifecycle.Window {
	return lifecycle.Window{Start: at(from), End: at(to)}
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

var (
	alice = lifecycle.Actor{ID: "11111111-1111-1111-1111-111111111111", Role: models.RoleStudent}
	bob   = lifecycle.Actor{ID: "22222222-2222-2222-2222-222222222222", Role: models.RoleStudent}
	staff = lifecycle.Actor{ID: "33333333-3333-3333-3333-333333333333", Role: models.RoleStaff}
)

type fixture struct {
	eng   *engine.Engine
	store *memstore.Store
	clock *clock
}

func newFixture(t *testing.T, opts ...engine.Option) *fixture {
	t.Helper()
	c := &clock{t: at(8)}
	store := memstore.New().WithClock(c.Now)
	base := []engine.Option{
		engine.WithClock(c.Now),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithRetry(engine.WithBaseDelay(time.Millisecond)),
	}
	eng, err := engine.New(store, append(base, opts...)...)
	require.NoError(t, err)
	return &fixture{eng: eng, store: store, clock: c}
}

func (f *fixture) equipment(t *testing.T, units int) *models.Equipment {
	t.Helper()
	eq, err := f.eng.CreateEquipment(context.Background(), staff, engine.NewEquipment{
		Serial: fmt.Sprintf("SN-%d-%d", units, time.Now().UnixNano()),
		Name:   "Camera",
		Units:  units,
	})
	require.NoError(t, err)
	return eq
}

func (f *fixture) submit(t *testing.T, who lifecycle.Actor, equipmentID string, w lifecycle.Window) *models.Borrow {
	t.Helper()
	b, err := f.eng.Submit(context.Background(), who, engine.SubmitRequest{
		EquipmentID: equipmentID,
		RequesterID: who.ID,
		Window:      w,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) borrow(t *testing.T, id string) *models.Borrow {
	t.Helper()
	b, err := f.store.FindBorrow(context.Background(), id)
	require.NoError(t, err)
	return b
}

func (f *fixture) equipmentStatus(t *testing.T, id string) models.EquipmentStatus {
	t.Helper()
	eq, err := f.store.FindEquipment(context.Background(), id)
	require.NoError(t, err)
	return eq.Status
}
