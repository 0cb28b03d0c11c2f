package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lumia-app/lumia/internal/config"
	"github.com/lumia-app/lumia/internal/db"
	"github.com/lumia-app/lumia/internal/middleware"
	"github.com/lumia-app/lumia/internal/repository"
	"github.com/lumia-app/lumia/internal/service"
	"github.com/lumia-app/lumia/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	authRequestsPerWindow   = 10
	uploadRequestsPerWindow = 60
)

type App struct {
	Cfg   *config.Config
	DB    *sqlx.DB
	Store *repository.Store
	Redis *redis.Client

	Thumbnails *storage.ThumbnailCache

	AuthService     *service.AuthService
	UserService     *service.UserService
	EmailService    *service.EmailService
	AlbumService    *service.AlbumService
	CircleService   *service.CircleService
	MediaService    *service.MediaService
	TimelineService *service.TimelineService

	// nil when Google credentials are not configured
	GoogleProvider service.IdentityProvider

	GeneralLimiter middleware.Limiter
	AuthLimiter    middleware.Limiter
	UploadLimiter  middleware.Limiter

	closers []func()
}

func New(cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	a := &App{
		Cfg:   cfg,
		DB:    database,
		Store: repository.NewStore(database),
	}

	// Storage
	blobs, err := newStorage(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize storage: %v", err)
	}

	a.Thumbnails, err = storage.NewThumbnailCache(cfg.ThumbnailCacheBytes)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize thumbnail cache: %v", err)
	}
	a.closers = append(a.closers, a.Thumbnails.Close)

	// Services
	a.EmailService = service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.ClientURL,
		cfg.AppName,
		cfg.IsDevelopment(),
	)
	a.AuthService = service.NewAuthService(a.Store.Users, cfg.JWTSecret, cfg.JWTExpiry, cfg.IsProduction())
	a.UserService = service.NewUserService(a.Store, a.EmailService)
	a.AlbumService = service.NewAlbumService(a.Store)
	a.CircleService = service.NewCircleService(a.Store, a.EmailService)
	a.TimelineService = service.NewTimelineService(a.Store)
	a.MediaService = service.NewMediaService(a.Store, blobs, a.AlbumService, service.MediaOptions{
		Cache: a.Thumbnails,
	})

	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		provider, err := service.NewGoogleProvider(ctx, service.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
		cancel()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize google login: %v", err)
		}
		a.GoogleProvider = provider
	} else {
		slog.Warn("google login disabled", "hint", "set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
	}

	if err := a.initLimiters(); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func newStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case "memory":
		slog.Warn("using in-memory storage, uploads are lost on restart")
		return storage.NewMemoryStorage(), nil
	case "s3":
		return storage.New(cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// initLimiters shares counters through Redis when REDIS_URL is set so
// limits hold across instances.
func (a *App) initLimiters() error {
	cfg := a.Cfg

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %v", err)
		}
		a.Redis = redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			slog.Warn("redis not reachable, rate limits fail open until it is", "error", err)
		}

		a.GeneralLimiter = middleware.NewRedisLimiter(a.Redis, cfg.RateLimitRequests, cfg.RateLimitWindow)
		a.AuthLimiter = middleware.NewRedisLimiter(a.Redis, authRequestsPerWindow, time.Minute)
		a.UploadLimiter = middleware.NewRedisLimiter(a.Redis, uploadRequestsPerWindow, time.Minute)
		return nil
	}

	general := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	auth := middleware.NewRateLimiter(authRequestsPerWindow, time.Minute)
	upload := middleware.NewRateLimiter(uploadRequestsPerWindow, time.Minute)
	a.closers = append(a.closers, general.Close, auth.Close, upload.Close)

	a.GeneralLimiter = general
	a.AuthLimiter = auth
	a.UploadLimiter = upload
	return nil
}

func (a *App) Close() error {
	for _, closeFn := range a.closers {
		closeFn()
	}
	a.closers = nil

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
