package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	appControllers "github.com/yigit/placementdesk/internal/app/controllers"
	appMigrations "github.com/yigit/placementdesk/internal/app/migrations"
	"github.com/yigit/placementdesk/internal/app/models"
	appRepos "github.com/yigit/placementdesk/internal/app/repositories"
	"github.com/yigit/placementdesk/internal/app/repositories/memory"
	appRoutes "github.com/yigit/placementdesk/internal/app/routes"
	appServices "github.com/yigit/placementdesk/internal/app/services"
	"github.com/yigit/placementdesk/internal/config"
	"github.com/yigit/placementdesk/internal/db"
	appMiddleware "github.com/yigit/placementdesk/internal/middleware"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
	pkgAuth "github.com/yigit/placementdesk/internal/pkg/auth"
	"github.com/yigit/placementdesk/internal/pkg/changefeed"
	"github.com/yigit/placementdesk/internal/pkg/filestorage"
	"github.com/yigit/placementdesk/internal/pkg/logger"
	"github.com/yigit/placementdesk/internal/pkg/websocket"
	"github.com/yigit/placementdesk/internal/seed"
	"github.com/yigit/placementdesk/internal/worker"
)

// Store modes reported by the health endpoint
const (
	StoreModeDatabase = "database"
	StoreModeDemo     = "demo"
)

// reconcileTimeout bounds one scheduled reconciliation sweep.
const reconcileTimeout = 5 * time.Minute

// StoreSetup is the record store chosen at startup
type StoreSetup struct {
	Store appRepos.Store
	Mode  string

	// Database is nil in demo mode
	Database *db.PostgresDB
	// Demo is the in-memory store, nil when a database is in use
	Demo *memory.DB
}

// Close releases the database pool, if any
func (s *StoreSetup) Close() {
	if s.Database != nil {
		s.Database.Close()
	}
}

// Dependencies holds all the application dependencies
type Dependencies struct {
	Config     *config.Config
	Store      *StoreSetup
	Services   *appServices.Services
	Hub        *changefeed.Hub
	RedisFeed  *changefeed.RedisFeed // nil unless redis.enabled
	Feed       changefeed.Feed
	Objects    filestorage.ObjectStore
	Pool       *worker.Pool
	Scheduler  *worker.Scheduler
	JWTService *pkgAuth.JWTService

	AuthMiddleware *appMiddleware.AuthMiddleware
	Controllers    appRoutes.Controllers
	WSHandler      *websocket.Handler

	Logger zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := filepath.Join("configs", "config.yaml")
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		configPath = path
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.LogLevel(strings.ToLower(cfg.Logging.Level))
	prettyLog := strings.ToLower(cfg.Logging.Format) == "text"

	logger.Configure(logger.Config{
		Level:  logLevel,
		Pretty: prettyLog,
	})

	lgr := logger.Get()
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupStore connects to PostgreSQL and applies migrations. When the database
// is unreachable and database.fallback_to_demo is set, an in-memory store is
// used instead; it is seeded and then made read-only by BuildDependencies.
func SetupStore(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*StoreSetup, error) {
	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(ctx, cfg)
	if err != nil {
		if cfg.Database.FallbackToDemo && errors.Is(err, apperrors.ErrUpstreamUnavailable) {
			lgr.Warn().Err(err).Msg("Database unreachable, running on the read-only demo store")
			demo := memory.New()
			return &StoreSetup{Store: demo, Mode: StoreModeDemo, Demo: demo}, nil
		}
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	lgr.Info().Msg("Running database migrations...")
	migrationsDir := cfg.Database.MigrationsDir
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		database.Close()
		lgr.Error().Str("path", migrationsDir).Msg("Migrations directory not found")
		return nil, fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}

	migrator := appMigrations.NewMigrator(database.Pool, lgr)
	if err := migrator.MigrateFromDirectory(ctx, migrationsDir); err != nil {
		database.Close()
		lgr.Error().Err(err).Msg("Database migration error")
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Msg("Database migrations successfully applied.")

	return &StoreSetup{
		Store:    appRepos.NewRepositories(database),
		Mode:     StoreModeDatabase,
		Database: database,
	}, nil
}

// BuildDependencies initializes the change feed, object store, worker pool,
// services, controllers and the reconciliation scheduler. Nothing is started;
// see Start.
func BuildDependencies(ctx context.Context, cfg *config.Config, store *StoreSetup, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg, Store: store, Logger: lgr}

	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, fmt.Errorf("invalid assignment catalog: %w", err)
	}

	// Change feed: local hub, relayed through Redis when enabled
	deps.Hub = changefeed.NewHub(lgr)
	deps.Feed = deps.Hub
	if cfg.Redis.Enabled {
		deps.RedisFeed, err = changefeed.NewRedisFeed(ctx, cfg, deps.Hub, lgr)
		if err != nil {
			lgr.Error().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
			return nil, fmt.Errorf("failed to setup redis change feed: %w", err)
		}
		deps.Feed = deps.RedisFeed
	}

	deps.Objects, err = filestorage.New(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to initialize file storage")
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}

	deps.Pool = worker.NewPool(cfg.Workflow.UploadWorkers, lgr)

	deps.Services = appServices.NewServices(appServices.Deps{
		Store:               store.Store,
		Catalog:             catalog,
		Feed:                deps.Feed,
		Objects:             deps.Objects,
		Pool:                deps.Pool,
		Logger:              lgr,
		Bucket:              cfg.Storage.Bucket,
		CreditsPerAward:     cfg.Workflow.CreditsPerInternship,
		RecentNotifications: cfg.Workflow.RecentNotifications,
		MaxUploadBytes:      cfg.Workflow.MaxUploadBytes,
	})

	deps.Scheduler, err = worker.NewScheduler(cfg.Workflow.ReconcileSchedule, deps.Services.Gate, reconcileTimeout, lgr)
	if err != nil {
		return nil, err
	}

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:      cfg.JWT.Secret,
		AccessTokenExp: config.Duration(cfg.JWT.AccessTokenExpiration, 24*time.Hour),
		TokenIssuer:    cfg.JWT.Issuer,
	})
	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService)

	deps.Controllers = appRoutes.Controllers{
		Student:      appControllers.NewStudentController(deps.Services.Students),
		Submission:   appControllers.NewSubmissionController(deps.Services.Ledger, deps.Services.Gate, deps.Services.Uploads),
		Event:        appControllers.NewEventController(deps.Services.Events, deps.Services.Tracker),
		Application:  appControllers.NewApplicationController(deps.Services.Tracker, deps.Services.Uploads),
		Notification: appControllers.NewNotificationController(deps.Services.Notifications),
		Health:       appControllers.NewHealthController(store.Store, store.Mode),
	}

	allowedOrigins := cfg.Server.AllowedOrigins
	deps.WSHandler = websocket.NewHandler(deps.Feed, studentClassLookup(store.Store), func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || appMiddleware.OriginAllowed(allowedOrigins, origin)
	}, lgr)

	return deps, nil
}

func studentClassLookup(store appRepos.Store) websocket.ClassLookup {
	return func(ctx context.Context, studentID int64) (models.StudentClass, error) {
		student, err := store.GetStudentByID(ctx, studentID)
		if err != nil {
			return "", err
		}
		return student.Class, nil
	}
}

// Start launches the background workers: the change feed hub, the Redis
// relay, the upload pool and the reconciliation schedule. It then seeds demo
// data outside production; the demo store is switched to read-only afterwards.
func (d *Dependencies) Start(ctx context.Context) {
	go d.Hub.Run(ctx)
	if d.RedisFeed != nil {
		go func() {
			if err := d.RedisFeed.Relay(ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.Logger.Error().Err(err).Msg("Redis change feed relay stopped")
			}
		}()
	}
	d.Pool.Start(ctx)

	if d.Store.Demo != nil || !d.Config.IsProduction() {
		students, err := seed.CreateDefaultData(ctx, d.Store.Store, d.Services, d.Logger)
		if err != nil {
			// Log the error but don't fail the startup
			d.Logger.Error().Err(err).Msg("Failed to create default data, proceeding anyway...")
		}
		if !d.Config.IsProduction() {
			if err := seed.LogDevTokens(d.JWTService, students, d.Logger); err != nil {
				d.Logger.Error().Err(err).Msg("Failed to sign development tokens")
			}
		}
	}
	if d.Store.Demo != nil {
		d.Store.Demo.SetReadOnly(true)
	} else {
		// Repair flags left stale while the service was down.
		go d.Scheduler.RunOnce(ctx)
	}

	d.Scheduler.Start()
}

// Close stops the background workers and releases connections. The context
// passed to Start should be cancelled first.
func (d *Dependencies) Close(ctx context.Context) error {
	var errs error

	select {
	case <-d.Scheduler.Stop().Done():
	case <-ctx.Done():
		errs = errors.Join(errs, fmt.Errorf("reconciliation still running: %w", ctx.Err()))
	}

	d.Pool.Stop()

	if d.RedisFeed != nil {
		if err := d.RedisFeed.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}

	d.Store.Close()
	return errs
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) (*gin.Engine, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	if err := appMiddleware.RegisterValidators(); err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(appMiddleware.RequestLogger(lgr))
	router.Use(appMiddleware.CORS(cfg.Server.AllowedOrigins))
	if cfg.Workflow.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = cfg.Workflow.MaxUploadBytes
	}

	appRoutes.SetupRouter(router, deps.Controllers, deps.AuthMiddleware, deps.WSHandler)

	if strings.EqualFold(cfg.Storage.Driver, "local") || cfg.Storage.Driver == "" {
		setupStaticFileServing(router, cfg, lgr)
	}

	return router, nil
}

// setupStaticFileServing serves locally stored uploads under /uploads
func setupStaticFileServing(router *gin.Engine, cfg *config.Config, lgr zerolog.Logger) {
	uploadPath := cfg.Server.StoragePath

	if _, err := os.Stat(uploadPath); os.IsNotExist(err) {
		if err := os.MkdirAll(uploadPath, os.ModePerm); err != nil {
			lgr.Error().Err(err).Str("path", uploadPath).Msg("Failed to create uploads directory")
			return
		}
	}

	router.Static("/uploads", uploadPath)
	lgr.Info().Str("path", uploadPath).Msg("Static file serving configured for uploads directory")
}
