package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Gin_postgres_redis_equipment_loans/config"
	"Gin_postgres_redis_equipment_loans/memstore"
	"Gin_postgres_redis_equipment_loans/models"
	"Gin_postgres_redis_equipment_loans/session"
)

type fakeSessions map[string]string

func (f fakeSessions) Get(_ context.Context, id string) (*session.AppSession, error) {
	uid, ok := f[id]
	if !ok {
		return nil, session.ErrNoSession
	}
	return &session.AppSession{UserID: uid}, nil
}

func (f fakeSessions) Delete(_ context.Context, id string) error {
	delete(f, id)
	return nil
}

func authRouter(t *testing.T) (*gin.Engine, fakeSessions) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := memstore.New()
	for _, u := range []models.User{
		{ID: "u-student", Username: "alice@lab.edu", Role: models.RoleStudent},
		{ID: "u-odd", Username: "mallory@lab.edu", Role: models.Role("wizard")},
		{ID: "u-boss", Username: "Boss@Lab.edu", Role: models.RoleStudent},
	} {
		u := u
		require.NoError(t, users.CreateUser(context.Background(), &u))
	}
	sessions := fakeSessions{"s1": "u-student", "s2": "u-odd", "s3": "u-boss", "gone": "u-deleted"}

	cfg := &config.Config{AdminEmails: []string{"boss@lab.edu"}}
	cfg.Session.Cookie = "app_session"

	r := gin.New()
	r.Use(ErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil))))
	auth := r.Group("", AuthRequired(sessions, users, cfg))
	auth.GET("/whoami", func(c *gin.Context) {
		a := Actor(c)
		c.JSON(http.StatusOK, H{"id": a.ID, "role": a.Role})
	})
	auth.GET("/admin", AdminOnly(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	auth.GET("/staff", PrivilegedOnly(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r, sessions
}

func get(r *gin.Engine, path string, with func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if with != nil {
		with(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func cookie(v string) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "app_session", Value: v}) }
}

func bearer(v string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+v) }
}

func TestAuthRequired(t *testing.T) {
	r, sessions := authRouter(t)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/whoami", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/whoami", cookie("nope")).Code)

	w := get(r, "/whoami", cookie("s1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"u-student","role":"student"}`, w.Body.String())

	w = get(r, "/whoami", bearer("s1"))
	assert.Equal(t, http.StatusOK, w.Code)

	// unknown stored role falls back to student
	w = get(r, "/whoami", cookie("s2"))
	assert.JSONEq(t, `{"id":"u-odd","role":"student"}`, w.Body.String())

	// admin_emails match case-insensitively
	w = get(r, "/whoami", cookie("s3"))
	assert.JSONEq(t, `{"id":"u-boss","role":"admin"}`, w.Body.String())

	// a session for a deleted user is dropped
	assert.Equal(t, http.StatusUnauthorized, get(r, "/whoami", cookie("gone")).Code)
	_, ok := sessions["gone"]
	assert.False(t, ok)
}

func TestRoleGuards(t *testing.T) {
	r, _ := authRouter(t)

	assert.Equal(t, http.StatusForbidden, get(r, "/admin", cookie("s1")).Code)
	assert.Equal(t, http.StatusForbidden, get(r, "/staff", cookie("s1")).Code)
	assert.Equal(t, http.StatusNoContent, get(r, "/admin", cookie("s3")).Code)
	assert.Equal(t, http.StatusNoContent, get(r, "/staff", cookie("s3")).Code)
}
