// Package memstore is an in-process engine.Store. A transaction works on a
// private copy of the data which replaces the shared copy only on commit, and
// transactions are serialised by one mutex, so it gives the same
// all-or-nothing and equipment-scoped isolation guarantees as the Postgres
// store for tests and single-node development.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"Gin_postgres_redis_equipment_loans/engine"
	"Gin_postgres_redis_equipment_loans/lifecycle"
	"Gin_postgres_redis_equipment_loans/models"
)

type data struct {
	equipment    map[string]models.Equipment
	borrows      map[string]models.Borrow
	deficiencies map[string]models.Deficiency
	users        map[string]models.User
}

func newData() *data {
	return &data{
		equipment:    map[string]models.Equipment{},
		borrows:      map[string]models.Borrow{},
		deficiencies: map[string]models.Deficiency{},
		users:        map[string]models.User{},
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.equipment {
		c.equipment[k] = v
	}
	for k, v := range d.borrows {
		c.borrows[k] = v
	}
	for k, v := range d.deficiencies {
		c.deficiencies[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	return c
}

type Store struct {
	mu   sync.Mutex
	data *data
	now  func() time.Time
}

var (
	_ engine.Store = (*Store)(nil)
	_ engine.Tx    = (*tx)(nil)
)

func New() *Store {
	return &Store{data: newData(), now: func() time.Time { return time.Now().UTC() }}
}

// WithClock makes the store stamp CreatedAt/UpdatedAt from now.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx engine.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := &tx{data: s.data.clone(), now: s.now}
	if err := fn(ctx, work); err != nil {
		return err
	}
	// 超时或取消：整体回滚
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = work.data
	return nil
}

func (s *Store) FindEquipment(ctx context.Context, id string) (*models.Equipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{data: s.data}).FindEquipment(ctx, id)
}

func (s *Store) ListEquipment(ctx context.Context) ([]models.Equipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{data: s.data}).ListEquipment(ctx)
}

func (s *Store) FindBorrow(ctx context.Context, id string) (*models.Borrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{data: s.data}).FindBorrow(ctx, id)
}

func (s *Store) ListBorrows(ctx context.Context, f engine.BorrowFilter) ([]models.Borrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{data: s.data}).ListBorrows(ctx, f)
}

func (s *Store) ListDeficiencies(ctx context.Context, borrowID string) ([]models.Deficiency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{data: s.data}).ListDeficiencies(ctx, borrowID)
}

type tx struct {
	data *data
	now  func() time.Time
}

func (t *tx) stamp() time.Time {
	if t.now == nil {
		return time.Now().UTC()
	}
	return t.now()
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, lifecycle.ErrNotFound)
}

func (t *tx) FindEquipment(_ context.Context, id string) (*models.Equipment, error) {
	eq, ok := t.data.equipment[id]
	if !ok {
		return nil, notFound("equipment", id)
	}
	return &eq, nil
}

func (t *tx) ListEquipment(_ context.Context) ([]models.Equipment, error) {
	out := make([]models.Equipment, 0, len(t.data.equipment))
	for _, eq := range t.data.equipment {
		out = append(out, eq)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) FindBorrow(_ context.Context, id string) (*models.Borrow, error) {
	b, ok := t.data.borrows[id]
	if !ok {
		return nil, notFound("loan", id)
	}
	return &b, nil
}

func (t *tx) ListBorrows(_ context.Context, f engine.BorrowFilter) ([]models.Borrow, error) {
	out := make([]models.Borrow, 0)
	for _, b := range t.data.borrows {
		if f.EquipmentID != "" && b.EquipmentID != f.EquipmentID {
			continue
		}
		if f.RequesterID != "" && b.RequesterID != f.RequesterID {
			continue
		}
		if f.GroupID != "" && !b.InGroup(f.GroupID) {
			continue
		}
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, b.Status) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func hasStatus(list []models.BorrowStatus, s models.BorrowStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (t *tx) ListDeficiencies(_ context.Context, borrowID string) ([]models.Deficiency, error) {
	out := make([]models.Deficiency, 0)
	for _, d := range t.data.deficiencies {
		if d.BorrowID == borrowID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *tx) LockEquipment(ctx context.Context, id string) (*models.Equipment, error) {
	return t.FindEquipment(ctx, id)
}

func (t *tx) CreateEquipment(_ context.Context, eq *models.Equipment) error {
	if _, ok := t.data.equipment[eq.ID]; ok {
		return fmt.Errorf("equipment %s: %w", eq.ID, engine.ErrDuplicate)
	}
	for _, other := range t.data.equipment {
		if strings.EqualFold(other.Serial, eq.Serial) {
			return fmt.Errorf("equipment serial %q: %w", eq.Serial, engine.ErrDuplicate)
		}
	}
	now := t.stamp()
	eq.CreatedAt, eq.UpdatedAt = now, now
	t.data.equipment[eq.ID] = *eq
	return nil
}

func (t *tx) UpdateEquipmentStatus(_ context.Context, id string, status models.EquipmentStatus, next *time.Time) error {
	eq, ok := t.data.equipment[id]
	if !ok {
		return notFound("equipment", id)
	}
	eq.Status = status
	eq.NextReservedFrom = next
	eq.UpdatedAt = t.stamp()
	t.data.equipment[id] = eq
	return nil
}

func (t *tx) CreateBorrow(_ context.Context, b *models.Borrow) error {
	if _, ok := t.data.borrows[b.ID]; ok {
		return fmt.Errorf("loan %s: %w", b.ID, engine.ErrDuplicate)
	}
	if _, ok := t.data.equipment[b.EquipmentID]; !ok {
		return notFound("equipment", b.EquipmentID)
	}
	now := t.stamp()
	b.CreatedAt, b.UpdatedAt = now, now
	t.data.borrows[b.ID] = *b
	return nil
}

func (t *tx) UpdateBorrow(_ context.Context, b *models.Borrow) error {
	if _, ok := t.data.borrows[b.ID]; !ok {
		return notFound("loan", b.ID)
	}
	b.UpdatedAt = t.stamp()
	t.data.borrows[b.ID] = *b
	return nil
}

func (t *tx) DeleteBorrow(_ context.Context, id string) error {
	if _, ok := t.data.borrows[id]; !ok {
		return notFound("loan", id)
	}
	delete(t.data.borrows, id)
	return nil
}

func (t *tx) CreateDeficiency(_ context.Context, d *models.Deficiency) error {
	if _, ok := t.data.borrows[d.BorrowID]; !ok {
		return notFound("loan", d.BorrowID)
	}
	d.CreatedAt = t.stamp()
	t.data.deficiencies[d.ID] = *d
	return nil
}
