package db

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"Gin_postgres_redis_equipment_loans/models"
)

func (r *Repo) CreateUser(ctx context.Context, u *models.User) error {
	return translateErr(r.DB.WithContext(ctx).Create(u).Error)
}

func (r *Repo) TouchUserSeen(ctx context.Context, userID string) error {
	return translateErr(r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_seen_at", gorm.Expr("NOW()")).Error)
}

// 按 ID 查
func (r *Repo) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &u, nil
}

func (r *Repo) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).Where("LOWER(username) = ?", strings.ToLower(username)).First(&u).Error; err != nil {
		return nil, translateErr(err)
	}
	return &u, nil
}

func (r *Repo) SetUserRole(ctx context.Context, userID string, role models.Role) error {
	res := r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("role", role)
	if res.Error != nil {
		return translateErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("user", userID)
	}
	return nil
}

// 列表（分页 + 关键词，关键词匹配用户名/显示名）
func (r *Repo) ListUsers(ctx context.Context, q string, page, size int) ([]models.User, int64, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	tx := r.DB.WithContext(ctx).Model(&models.User{})
	if q = strings.TrimSpace(q); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("LOWER(username) LIKE ? OR LOWER(display_name) LIKE ?", like, like)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, translateErr(err)
	}

	var users []models.User
	if err := tx.
		Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&users).Error; err != nil {
		return nil, 0, translateErr(err)
	}
	return users, total, nil
}
