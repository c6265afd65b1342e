package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/vivo/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/vivo/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/vivo/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/vivo/internal/database"
	"github.com/saturnino-fabrica-de-software/vivo/internal/liveness"
	"github.com/saturnino-fabrica-de-software/vivo/internal/provider"
	"github.com/saturnino-fabrica-de-software/vivo/internal/service"
	"github.com/saturnino-fabrica-de-software/vivo/internal/webhook"
	"github.com/saturnino-fabrica-de-software/vivo/internal/ws"
)

type Dependencies struct {
	DB          database.Pinger
	SessionRepo service.LivenessSessionRepositoryInterface
	EventRepo   service.LivenessEventRepositoryInterface
	Detector    provider.FaceDetector
	Engine      *liveness.Engine
	Liveness    service.LivenessConfig

	CleanupInterval time.Duration
	WebhookURL      string
	WebhookSecret   string

	// SessionRateLimit caps session creation per client IP per minute. Zero uses the default.
	SessionRateLimit int
}

type Router struct {
	app             *fiber.App
	logger          *slog.Logger
	deps            *Dependencies
	rateLimiter     *middleware.RateLimiter
	wsHub           *ws.Hub
	webhookWorker   *webhook.Worker
	livenessService *service.LivenessService
	cancelWorker    context.CancelFunc
	cancelHub       context.CancelFunc
	cancelCleanup   context.CancelFunc
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Vivo Liveness API",
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Swagger documentation
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	var db database.Pinger
	if r.deps != nil {
		db = r.deps.DB
	}
	healthHandler := handler.NewHealthHandler(db, r.logger)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	v1 := r.app.Group("/v1")

	// Only configure liveness routes if dependencies were provided
	if r.deps == nil {
		return
	}

	engine := r.deps.Engine
	if engine == nil {
		engine = liveness.NewEngine(liveness.MustDefaultCatalog())
	}

	// WebSocket hub
	r.wsHub = ws.NewHub()
	hubCtx, hubCancel := context.WithCancel(context.Background())
	r.cancelHub = hubCancel
	go r.wsHub.Run(hubCtx)

	// Completion webhook, only when a target is configured
	var notifier service.Notifier
	if r.deps.WebhookURL != "" {
		webhookService := webhook.NewService(r.deps.WebhookURL, r.deps.WebhookSecret)
		r.webhookWorker = webhook.NewWorker(webhookService, r.logger.With("component", "webhook_worker"))

		ctx, cancel := context.WithCancel(context.Background())
		r.cancelWorker = cancel
		go r.webhookWorker.Run(ctx)

		notifier = r.webhookWorker
	}

	r.livenessService = service.NewLivenessService(
		r.deps.SessionRepo,
		r.deps.EventRepo,
		engine,
		r.deps.Detector,
		r.wsHub,
		notifier,
		r.logger,
		r.deps.Liveness,
	)

	// Session cleanup worker
	cleanupWorker := service.NewCleanupWorker(r.livenessService, r.logger.With("component", "cleanup_worker"), r.deps.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	r.cancelCleanup = cleanupCancel
	go cleanupWorker.Run(cleanupCtx)

	livenessHandler := handler.NewLivenessHandler(r.livenessService, engine.Catalog(), r.logger)

	// Session creation is limited per client IP
	limiterCfg := middleware.DefaultRateLimiterConfig()
	limiterCfg.Max = r.deps.SessionRateLimit
	r.rateLimiter = middleware.NewRateLimiter(limiterCfg)

	sessions := v1.Group("/liveness/sessions")
	sessions.Post("/", r.rateLimiter.Handler(), livenessHandler.CreateSession)
	sessions.Get("/:id", livenessHandler.GetSession)
	sessions.Post("/:id/frames", livenessHandler.SubmitFrame)
	sessions.Post("/:id/image", livenessHandler.SubmitImage)
	sessions.Post("/:id/close", livenessHandler.CloseSession)
	sessions.Get("/:id/events", livenessHandler.ListEvents)

	// WebSocket endpoint
	sessions.Get("/:id/ws", ws.UpgradeMiddleware(), ws.Handler(r.wsHub))
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// Stop session cleanup
	if r.cancelCleanup != nil {
		r.cancelCleanup()
	}

	// Stop WebSocket hub
	if r.cancelHub != nil {
		r.cancelHub()
	}

	// Stop webhook worker
	if r.cancelWorker != nil {
		r.cancelWorker()
	}

	// Stop rate limiter cleanup goroutine
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
