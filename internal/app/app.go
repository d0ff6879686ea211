package app

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/draftly/server/internal/module/asset"
	"github.com/draftly/server/internal/module/auth"
	"github.com/draftly/server/internal/module/design"
	"github.com/draftly/server/internal/module/gateway"
	"github.com/draftly/server/internal/module/ledger"
	"github.com/draftly/server/internal/module/payment"
	"github.com/draftly/server/internal/module/user"
	sharedcache "github.com/draftly/server/internal/shared/cache"
	"github.com/draftly/server/internal/shared/config"
	"github.com/draftly/server/internal/shared/database"
	"github.com/draftly/server/internal/shared/logger"
	"github.com/draftly/server/internal/shared/metrics"
	"github.com/draftly/server/internal/shared/middleware"
)

// App wires configuration, storage and modules into one HTTP surface.
type App struct {
	config    *config.Config
	db        *gorm.DB
	redis     redis.UniversalClient
	router    *gin.Engine
	logger    *logger.Logger
	zapLogger *zap.Logger
	metrics   *metrics.Metrics

	verifier *auth.JWTVerifier
	limiter  *sharedcache.RateLimiter

	userHandler    *user.Handler
	ledgerHandler  *ledger.Handler
	designHandler  *design.Handler
	paymentHandler *payment.Handler
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	log := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	zapLog, err := logger.NewZapLogger(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("init zap logger: %w", err)
	}

	app := &App{
		config:    cfg,
		logger:    log,
		zapLogger: zapLog,
		metrics:   metrics.New("draftly", prometheus.DefaultRegisterer),
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	app.db = db

	if err := app.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	// Redis only backs rate limiting; the app runs without it.
	if cfg.Redis.Address != "" {
		redisClient, err := sharedcache.NewRedisClient(&cfg.Redis)
		if err != nil {
			zapLog.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
		} else {
			app.redis = redisClient
			app.limiter = sharedcache.NewRateLimiter(redisClient)
		}
	}

	if err := app.initModules(); err != nil {
		return nil, fmt.Errorf("init modules: %w", err)
	}

	app.router = app.setupRouter()
	return app, nil
}

// migrate applies the schema for all module models.
func (a *App) migrate() error {
	return a.db.AutoMigrate(
		&user.Account{},
		&ledger.Entry{},
		&design.Design{},
		&payment.WebhookEvent{},
	)
}

// initModules builds every module and its cross-module dependencies.
func (a *App) initModules() error {
	a.verifier = auth.NewJWTVerifier(&a.config.Auth)

	ledgerRepo := ledger.NewRepository(a.db)
	ledgerService := ledger.NewService(ledgerRepo, a.metrics, a.zapLogger)
	a.ledgerHandler = ledger.NewHandler(ledgerService)

	userRepo := user.NewRepository(a.db)
	userService := user.NewService(userRepo, ledgerService, a.config.Credits.SignupGrant, a.zapLogger)
	a.userHandler = user.NewHandler(userService)

	modelGateway := gateway.New(&a.config.Models, a.metrics, a.zapLogger)

	archiver, err := asset.NewArchiver(&a.config.Storage, a.zapLogger)
	if err != nil {
		return fmt.Errorf("init archiver: %w", err)
	}

	designRepo := design.NewRepository(a.db)
	validator := design.NewValidator(ledgerService, a.config.Credits.CostPerGeneration)
	var designArchiver design.Archiver
	if archiver != nil {
		designArchiver = archiver
	}
	designService := design.NewService(
		validator,
		modelGateway,
		designRepo,
		ledgerService,
		designArchiver,
		a.metrics,
		a.zapLogger,
	)
	a.designHandler = design.NewHandler(designService, design.NewTranscoder(), a.zapLogger)

	paymentRepo := payment.NewRepository(a.db)
	paymentService := payment.NewService(paymentRepo, ledgerService, userService, &a.config.Stripe, a.zapLogger)
	a.paymentHandler = payment.NewHandler(paymentService, a.metrics, a.zapLogger)

	return nil
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Metrics(a.metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Webhooks verify their own signatures instead of bearer tokens.
	webhooks := r.Group("/webhooks")
	a.paymentHandler.RegisterWebhookRoutes(webhooks)

	api := r.Group("/api/v1")
	api.Use(middleware.Auth(a.verifier))
	if a.limiter != nil {
		api.Use(middleware.RateLimitByUser(a.limiter, 120, time.Minute))
	}
	// Accounts come into existence on first authenticated access, so any
	// endpoint can be a fresh token's first call.
	api.Use(a.userHandler.Provision())

	a.userHandler.RegisterRoutes(api)
	a.ledgerHandler.RegisterRoutes(api)
	a.designHandler.RegisterRoutes(api)
	a.paymentHandler.RegisterRoutes(api)

	return r
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop releases application resources.
func (a *App) Stop() {
	if a.redis != nil {
		if err := sharedcache.Close(a.redis); err != nil {
			a.zapLogger.Warn("close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.zapLogger.Warn("close database", zap.Error(err))
		}
	}
	_ = a.zapLogger.Sync()
}
