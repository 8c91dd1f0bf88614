package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"Gin_postgres_redis_equipment_loans/cache"
	"Gin_postgres_redis_equipment_loans/config"
	"Gin_postgres_redis_equipment_loans/db"
	"Gin_postgres_redis_equipment_loans/engine"
	"Gin_postgres_redis_equipment_loans/memstore"
	"Gin_postgres_redis_equipment_loans/models"
	"Gin_postgres_redis_equipment_loans/session"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// UserDirectory is the user side of storage: lookups for the auth
// middleware and the admin directory.
type UserDirectory interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	TouchUserSeen(ctx context.Context, id string) error
	SetUserRole(ctx context.Context, id string, role models.Role) error
	ListUsers(ctx context.Context, q string, page, size int) ([]models.User, int64, error)
}

var (
	_ UserDirectory = (*db.Repo)(nil)
	_ UserDirectory = (*memstore.Store)(nil)
)

// SessionStore resolves session ids issued by the login service.
type SessionStore interface {
	Get(ctx context.Context, id string) (*session.AppSession, error)
	Delete(ctx context.Context, id string) error
}

// App 聚合各依赖
type App struct {
	Router   *gin.Engine
	DB       *gorm.DB // nil when storage.type is memory
	RDB      *redis.Client
	Engine   *engine.Engine
	Users    UserDirectory
	Sessions SessionStore
	Config   *config.Config
	Log      *slog.Logger
}

// Storage is the opened persistence layer.
type Storage struct {
	Store engine.Store
	Users UserDirectory
	DB    *gorm.DB
}

// OpenStorage opens the backend named by storage.type. Postgres is migrated
// when migrate is set.
func OpenStorage(cfg *config.Config, log *slog.Logger, migrate bool) (*Storage, error) {
	if cfg.Storage.Type == config.StorageMemory {
		ms := memstore.New()
		log.Warn("using in-memory storage, data is lost on exit")
		return &Storage{Store: ms, Users: ms}, nil
	}

	conn, err := db.Connect(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := db.Migrate(conn); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	repo := db.NewRepo(conn, cfg.Database.LockTimeout)
	return &Storage{Store: repo, Users: repo, DB: conn}, nil
}

func (s *Storage) Close() {
	if s.DB == nil {
		return
	}
	if sqlDB, err := s.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// NewEngine builds the engine with the engine.* settings. avail may be nil.
func NewEngine(store engine.Store, cfg *config.Config, log *slog.Logger, avail engine.AvailabilityCache) (*engine.Engine, error) {
	opts := []engine.Option{
		engine.WithLogger(log),
		engine.WithRetry(
			engine.WithMaxAttempts(cfg.Engine.RetryAttempts),
			engine.WithBaseDelay(cfg.Engine.RetryBaseDelay),
		),
		engine.WithCheckoutGrace(cfg.Engine.CheckoutGrace),
		engine.WithTxTimeout(cfg.Engine.TxTimeout),
	}
	if avail != nil {
		opts = append(opts, engine.WithAvailabilityCache(avail))
	}
	return engine.New(store, opts...)
}

// NewRedis connects and pings redis.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rdb, nil
}

// New wires storage, redis, the engine and the router.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	rdb, err := NewRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	st, err := OpenStorage(cfg, log, true)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}

	var avail engine.AvailabilityCache
	if cfg.Availability.CacheTTL > 0 {
		avail = cache.NewAvailabilityCache(rdb, cfg.Availability.CacheTTL, log)
	}
	eng, err := NewEngine(st.Store, cfg, log, avail)
	if err != nil {
		st.Close()
		_ = rdb.Close()
		return nil, err
	}

	a := &App{
		Router:   NewRouter(cfg, log),
		DB:       st.DB,
		RDB:      rdb,
		Engine:   eng,
		Users:    st.Users,
		Sessions: session.NewAppSessionStore(rdb, cfg.Session.TTL),
		Config:   cfg,
		Log:      log,
	}
	return a, nil
}

// NewRouter is a bare gin engine with recovery, CORS and error rendering.
func NewRouter(cfg *config.Config, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	useCORS(r, cfg.HTTP.WebOrigin)
	r.Use(ErrorHandler(log.With("component", "http")))
	return r
}

func (a *App) Close() {
	if a.RDB != nil {
		_ = a.RDB.Close()
	}
	if a.DB != nil {
		(&Storage{DB: a.DB}).Close()
	}
}
