package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"Gin_postgres_redis_equipment_loans/config"
	"Gin_postgres_redis_equipment_loans/lifecycle"
	"Gin_postgres_redis_equipment_loans/models"
	"Gin_postgres_redis_equipment_loans/session"
)

const (
	ctxUserID   = "userID"
	ctxUsername = "username"
	ctxRole     = "role"
)

// sessionID reads the session cookie, falling back to a bearer token.
func sessionID(c *gin.Context, cookie string) string {
	if ck, err := c.Request.Cookie(cookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func AuthRequired(sessions SessionStore, users UserDirectory, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := sessionID(c, cfg.Session.Cookie)
		if sid == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		as, err := sessions.Get(c.Request.Context(), sid)
		if err != nil {
			if !errors.Is(err, session.ErrNoSession) {
				AbortWithError(c, fmt.Errorf("session lookup: %w", err))
				return
			}
			AbortWithError(c, fmt.Errorf("%w: invalid session", ErrUnauthorized))
			return
		}

		// 确认用户仍存在，角色每次从库里读
		u, err := users.FindUserByID(c.Request.Context(), as.UserID)
		if err != nil {
			_ = sessions.Delete(c.Request.Context(), sid)
			AbortWithError(c, ErrUnauthorized)
			return
		}
		role := u.Role
		if !role.Valid() {
			role = models.RoleStudent
		}
		if cfg.IsAdminEmail(u.Username) {
			role = models.RoleAdmin
		}
		SetActor(c, u.ID, u.Username, role)
		c.Next()
	}
}

// SetActor records the authenticated caller on the context.
func SetActor(c *gin.Context, userID, username string, role models.Role) {
	c.Set(ctxUserID, userID)
	c.Set(ctxUsername, username)
	c.Set(ctxRole, string(role))
}

// Actor is the caller set by AuthRequired.
func Actor(c *gin.Context) lifecycle.Actor {
	return lifecycle.Actor{ID: c.GetString(ctxUserID), Role: models.Role(c.GetString(ctxRole))}
}

// PrivilegedOnly lets staff, faculty and admins through.
func PrivilegedOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Actor(c).Privileged() {
			AbortWithError(c, lifecycle.ErrForbidden)
			return
		}
		c.Next()
	}
}

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Actor(c).Role != models.RoleAdmin {
			AbortWithError(c, lifecycle.ErrForbidden)
			return
		}
		c.Next()
	}
}
