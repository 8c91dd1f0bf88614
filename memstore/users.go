package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"Gin_postgres_redis_equipment_loans/engine"
	"Gin_postgres_redis_equipment_loans/models"
)

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.data.users {
		if strings.EqualFold(other.Username, u.Username) {
			return fmt.Errorf("username %q: %w", u.Username, engine.ErrDuplicate)
		}
	}
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	s.data.users[u.ID] = *u
	return nil
}

func (s *Store) FindUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return &u, nil
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.data.users {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, notFound("user", username)
}

func (s *Store) TouchUserSeen(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data.users[id]
	if !ok {
		return notFound("user", id)
	}
	now := s.now()
	u.LastSeenAt = &now
	s.data.users[id] = u
	return nil
}

func (s *Store) SetUserRole(_ context.Context, id string, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data.users[id]
	if !ok {
		return notFound("user", id)
	}
	u.Role = role
	u.UpdatedAt = s.now()
	s.data.users[id] = u
	return nil
}

func (s *Store) ListUsers(_ context.Context, q string, page, size int) ([]models.User, int64, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	q = strings.ToLower(strings.TrimSpace(q))
	all := make([]models.User, 0, len(s.data.users))
	for _, u := range s.data.users {
		if q != "" && !strings.Contains(strings.ToLower(u.Username), q) &&
			!strings.Contains(strings.ToLower(u.DisplayName), q) {
			continue
		}
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].Username < all[j].Username
	})

	total := int64(len(all))
	from := (page - 1) * size
	if from >= len(all) {
		return []models.User{}, total, nil
	}
	to := min(from+size, len(all))
	return all[from:to], total, nil
}

