// controllers/srv.go
package controllers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"Gin_postgres_redis_equipment_loans/app"
	"Gin_postgres_redis_equipment_loans/config"
	"Gin_postgres_redis_equipment_loans/engine"
	"Gin_postgres_redis_equipment_loans/lifecycle"
)

type Srv struct {
	Engine   *engine.Engine
	Users    app.UserDirectory
	Sessions app.SessionStore
	Cfg      *config.Config
	Log      *slog.Logger
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		Engine:   a.Engine,
		Users:    a.Users,
		Sessions: a.Sessions,
		Cfg:      a.Config,
		Log:      a.Log.With("component", "http"),
	}
}

// --- helpers ---

// bindJSON decodes the body into dst; an empty body is allowed when
// optional is set.
func bindJSON(c *gin.Context, dst any, optional bool) error {
	if optional && c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		return fmt.Errorf("%w: %s", app.ErrBadRequest, err.Error())
	}
	return nil
}

type windowIn struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w windowIn) window() lifecycle.Window { return lifecycle.Window{Start: w.Start, End: w.End} }

// windowQuery reads ?start=&end= as RFC 3339.
func windowQuery(c *gin.Context) (lifecycle.Window, bool, error) {
	rawStart, rawEnd := c.Query("start"), c.Query("end")
	if rawStart == "" && rawEnd == "" {
		return lifecycle.Window{}, false, nil
	}
	start, err := time.Parse(time.RFC3339, rawStart)
	if err != nil {
		return lifecycle.Window{}, false, fmt.Errorf("%w: start must be RFC 3339", app.ErrBadRequest)
	}
	end, err := time.Parse(time.RFC3339, rawEnd)
	if err != nil {
		return lifecycle.Window{}, false, fmt.Errorf("%w: end must be RFC 3339", app.ErrBadRequest)
	}
	return lifecycle.Window{Start: start, End: end}, true, nil
}

// 登出：删 Redis 会话，Cookie 置空
func (s *Srv) Logout(c *gin.Context) {
	if ck, err := c.Request.Cookie(s.Cfg.Session.Cookie); err == nil && ck.Value != "" {
		_ = s.Sessions.Delete(c.Request.Context(), ck.Value)
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     s.Cfg.Session.Cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   strings.HasPrefix(s.Cfg.HTTP.WebOrigin, "https://"),
	})
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// whoami
func (s *Srv) Me(c *gin.Context) {
	actor := app.Actor(c)
	u, err := s.Users.FindUserByID(c.Request.Context(), actor.ID)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": u, "role": actor.Role})
}
