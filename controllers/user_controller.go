package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"Gin_postgres_redis_equipment_loans/app"
	"Gin_postgres_redis_equipment_loans/lifecycle"
	"Gin_postgres_redis_equipment_loans/models"
)

type UserController struct{ *Srv }

func GetUserController(s *Srv) *UserController { return &UserController{Srv: s} }

// GET /api/users?q=alice&page=1&size=20
func (uc *UserController) ListUsers(c *gin.Context) {
	q := c.Query("q")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	users, total, err := uc.Users.ListUsers(c.Request.Context(), q, page, size)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{
		"total": total,
		"users": users,
	})
}

// GET /api/users/:id
func (uc *UserController) GetUser(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil { // 校验 UUID 格式
		app.AbortWithError(c, fmt.Errorf("%w: invalid uuid", app.ErrBadRequest))
		return
	}
	user, err := uc.Users.FindUserByID(c.Request.Context(), id)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": user})
}

// PUT /api/users/:id/role
func (uc *UserController) SetRole(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		app.AbortWithError(c, fmt.Errorf("%w: invalid uuid", app.ErrBadRequest))
		return
	}
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := bindJSON(c, &req, false); err != nil {
		app.AbortWithError(c, err)
		return
	}
	role := models.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if !role.Valid() {
		app.AbortWithError(c, fmt.Errorf("%w: unknown role %q", app.ErrBadRequest, req.Role))
		return
	}
	// 不允许修改自己的角色，避免管理员把自己降级后锁死
	if app.Actor(c).ID == id {
		app.AbortWithError(c, fmt.Errorf("%w: cannot change your own role", lifecycle.ErrForbidden))
		return
	}

	if err := uc.Users.SetUserRole(c.Request.Context(), id, role); err != nil {
		app.AbortWithError(c, err)
		return
	}
	uc.Log.Info("role changed", "user_id", id, "role", role, "by", app.Actor(c).ID)
	c.JSON(http.StatusOK, app.H{"ok": true, "role": role})
}
