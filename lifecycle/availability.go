package lifecycle

import (
	"sort"
	"time"

	"Gin_postgres_redis_equipment_loans/models"
)

type boundary struct {
	at    time.Time
	delta int
}

// MaxConcurrent sweeps the start/end boundaries of every unit-holding borrow
// that overlaps q and returns the highest number held at one instant inside
// q. Borrows ending exactly when another starts do not compete.
func MaxConcurrent(q Window, loans []models.Borrow) int {
	events := make([]boundary, 0, 2*len(loans))
	for i := range loans {
		b := &loans[i]
		if !b.Status.HoldsUnit() {
			continue
		}
		start, end := b.Window()
		if !Overlaps(start, end, q.Start, q.End) {
			continue
		}
		if start.Before(q.Start) {
			start = q.Start
		}
		if end.After(q.End) {
			end = q.End
		}
		events = append(events, boundary{at: start, delta: 1}, boundary{at: end, delta: -1})
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].at.Equal(events[j].at) {
			return events[i].at.Before(events[j].at)
		}
		// 同一时刻先释放再占用（半开区间）
		return events[i].delta < events[j].delta
	})

	cur, peak := 0, 0
	for _, e := range events {
		cur += e.delta
		if cur > peak {
			peak = cur
		}
	}
	return peak
}

// FreeUnits is units minus MaxConcurrent, clamped to [0, units].
func FreeUnits(units int, q Window, loans []models.Borrow) int {
	if units <= 0 {
		return 0
	}
	free := units - MaxConcurrent(q, loans)
	if free < 0 {
		return 0
	}
	return free
}

// NextReservationStart returns the earliest window start at or after from
// among borrows whose status is one of statuses, or nil.
func NextReservationStart(loans []models.Borrow, from time.Time, statuses ...models.BorrowStatus) *time.Time {
	var next *time.Time
	for i := range loans {
		b := &loans[i]
		if !containsStatus(statuses, b.Status) {
			continue
		}
		start, _ := b.Window()
		if start.Before(from) {
			continue
		}
		if next == nil || start.Before(*next) {
			s := start
			next = &s
		}
	}
	return next
}

func containsStatus(list []models.BorrowStatus, s models.BorrowStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
