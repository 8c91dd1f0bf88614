// Package engine runs the equipment loan operations: submission, the role
// gated lifecycle transitions on single loans or whole groups, the overlap
// resolver run on approval, equipment status synchronisation and the
// availability query. Every mutating operation is one store transaction
// retried on lifecycle.ErrConflict.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"Gin_postgres_redis_equipment_loans/lifecycle"
	"Gin_postgres_redis_equipment_loans/models"
)

var (
	// ErrInvalidRequest marks malformed input that is not a window problem.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrDuplicate is returned by stores when a unique key is taken.
	ErrDuplicate = errors.New("already exists")
)

// Target addresses either one loan or every member of a loan group.
type Target struct {
	LoanID  string
	GroupID string
}

func Loan(id string) Target  { return Target{LoanID: id} }
func Group(id string) Target { return Target{GroupID: id} }

func (t Target) IsGroup() bool { return t.GroupID != "" }

func (t Target) String() string {
	if t.IsGroup() {
		return "group " + t.GroupID
	}
	return "loan " + t.LoanID
}

// Result is what a lifecycle operation reports back.
type Result struct {
	Updated []models.Borrow `json:"updated"`
	// AutoRejectedIDs lists pending requests the overlap resolver rejected.
	AutoRejectedIDs   []string `json:"autoRejectedIds,omitempty"`
	AutoRejectedCount int      `json:"autoRejectedCount"`
}

// CommitHook observes the equipment ids touched by a committed operation.
type CommitHook func(ctx context.Context, equipmentIDs []string)

// AvailabilityCache memoises Availability answers between writes. Get
// returns the equipment's cache version even on a miss; Set stores under
// that version so an answer computed across an invalidation is never served.
type AvailabilityCache interface {
	Get(ctx context.Context, equipmentID string, w lifecycle.Window) (a *Availability, version int64, ok bool)
	Set(ctx context.Context, equipmentID string, w lifecycle.Window, version int64, a *Availability)
	Invalidate(ctx context.Context, equipmentIDs ...string)
}

type Engine struct {
	store         Store
	now           func() time.Time
	log           *slog.Logger
	retry         retryConfig
	checkoutGrace time.Duration
	txTimeout     time.Duration
	cache         AvailabilityCache
	hooks         []CommitHook
}

type Option func(*Engine) error

func WithClock(now func() time.Time) Option {
	return func(e *Engine) error {
		e.now = now
		return nil
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) error {
		e.log = l
		return nil
	}
}

func WithRetry(opts ...RetryOption) Option {
	return func(e *Engine) error {
		for _, o := range opts {
			if err := o(&e.retry); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithCheckoutGrace allows checkout up to d before the approved start.
func WithCheckoutGrace(d time.Duration) Option {
	return func(e *Engine) error {
		e.checkoutGrace = d
		return nil
	}
}

// WithTxTimeout bounds every mutating operation, retries included.
func WithTxTimeout(d time.Duration) Option {
	return func(e *Engine) error {
		e.txTimeout = d
		return nil
	}
}

func WithAvailabilityCache(c AvailabilityCache) Option {
	return func(e *Engine) error {
		e.cache = c
		return nil
	}
}

func WithCommitHook(h CommitHook) Option {
	return func(e *Engine) error {
		e.hooks = append(e.hooks, h)
		return nil
	}
}

func New(store Store, opts ...Option) (*Engine, error) {
	e := &Engine{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		log:   slog.Default(),
		retry: defaultRetryConfig(),
	}
	for _, o := range opts {
		if err := o(e); err != nil {
			return nil, err
		}
	}
	e.log = e.log.With("component", "engine")
	return e, nil
}

type touchSet map[string]struct{}

func (s touchSet) add(id string) { s[id] = struct{}{} }

func (s touchSet) list() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// run executes fn in one transaction, retrying conflicts, then notifies the
// cache and hooks about the equipment fn touched.
func (e *Engine) run(ctx context.Context, op string, fn func(ctx context.Context, tx Tx, touched touchSet) error) error {
	if e.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.txTimeout)
		defer cancel()
	}

	var touched touchSet
	onRetry := func(attempt int, err error) {
		e.log.WarnContext(ctx, "write conflict, retrying", "op", op, "attempt", attempt, "error", err)
	}
	err := retryOnConflict(ctx, e.retry, onRetry, func(ctx context.Context) error {
		touched = touchSet{}
		return e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			return fn(ctx, tx, touched)
		})
	})
	if err != nil {
		return err
	}

	ids := touched.list()
	if len(ids) == 0 {
		return nil
	}
	notifyCtx := context.WithoutCancel(ctx)
	if e.cache != nil {
		e.cache.Invalidate(notifyCtx, ids...)
	}
	for _, h := range e.hooks {
		h(notifyCtx, ids)
	}
	return nil
}

// lockEquipment locks ids in sorted order so concurrent group operations
// cannot deadlock on each other.
func lockEquipment(ctx context.Context, tx Tx, ids []string) error {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	for _, id := range sorted {
		if _, err := tx.LockEquipment(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func equipmentIDs(bs []models.Borrow) []string {
	set := touchSet{}
	for i := range bs {
		set.add(bs[i].EquipmentID)
	}
	return set.list()
}

// syncEquipment recomputes and stores the coarse status of each equipment.
// It returns the ids whose stored row actually changed.
func (e *Engine) syncEquipment(ctx context.Context, tx Tx, ids []string, now time.Time) ([]string, error) {
	var changed []string
	for _, id := range ids {
		eq, err := tx.LockEquipment(ctx, id)
		if err != nil {
			return nil, err
		}
		loans, err := tx.ListBorrows(ctx, BorrowFilter{EquipmentID: id, Statuses: models.UnitHoldingStatuses})
		if err != nil {
			return nil, err
		}
		d := lifecycle.DeriveEquipmentStatus(eq, loans, now)
		if d.Status == eq.Status && sameInstant(d.NextReservedFrom, eq.NextReservedFrom) {
			continue
		}
		if err := tx.UpdateEquipmentStatus(ctx, id, d.Status, d.NextReservedFrom); err != nil {
			return nil, err
		}
		changed = append(changed, id)
		e.log.DebugContext(ctx, "equipment status synced", "equipment_id", id, "from", eq.Status, "to", d.Status,
			"active_now", d.ActiveNow, "committed_now", d.CommittedNow)
	}
	return changed, nil
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
