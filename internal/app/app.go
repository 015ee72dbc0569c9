package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"taskmanager/internal/config"
	"taskmanager/internal/repo"
	"taskmanager/migrations"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type App struct {
	cfg    config.Config
	log    *slog.Logger
	db     *pgxpool.Pool
	gormDB *gorm.DB
	redis  *redis.Client
	router *gin.Engine
}

// Stores bundles the credential and task stores selected by STORE_DRIVER.
type Stores struct {
	Users repo.UserRepo
	Tasks repo.TaskRepo
}

func New(cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{cfg: cfg, log: log}

	stores, err := a.openStores()
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Enabled() {
		rdb, err := newRedis(cfg.Redis)
		if err != nil {
			_ = a.Close(context.Background())
			return nil, err
		}
		a.redis = rdb
	} else {
		log.Warn("redis not configured: sessions, list cache and rate limiting are disabled")
	}

	router, err := newRouter(cfg, log, stores, a.redis)
	if err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	a.router = router
	return a, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Close(ctx context.Context) error {
	_ = ctx
	var errs []error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.gormDB != nil {
		if sqlDB, err := a.gormDB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("sqlite close: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}

func (a *App) openStores() (Stores, error) {
	switch a.cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := newPostgres(a.cfg.PG.DSN)
		if err != nil {
			return Stores{}, err
		}
		if err := runMigrations(a.cfg.PG.DSN); err != nil {
			db.Close()
			return Stores{}, err
		}
		a.db = db
		a.log.Info("store ready", "driver", config.DriverPostgres)
		return Stores{Users: repo.NewPGUserRepo(db), Tasks: repo.NewPGTaskRepo(db)}, nil

	case config.DriverSQLite:
		db, err := repo.OpenSQLite(a.cfg.Store.SQLitePath)
		if err != nil {
			return Stores{}, err
		}
		a.gormDB = db
		a.log.Info("store ready", "driver", config.DriverSQLite, "path", a.cfg.Store.SQLitePath)
		return Stores{Users: repo.NewGormUserRepo(db), Tasks: repo.NewGormTaskRepo(db)}, nil

	case config.DriverMemory:
		s := repo.NewMemoryStore()
		a.log.Info("store ready", "driver", config.DriverMemory)
		return Stores{Users: s.Users(), Tasks: s.Tasks()}, nil
	}
	return Stores{}, fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
}

func newPostgres(dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg parse config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}

	return pool, nil
}

func newRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return rdb, nil
}

// runMigrations applies the embedded goose migrations.
func runMigrations(dsn string) error {
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("goose open db: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
