package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jackc/pgx/v5/pgxpool"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/iranverse/avatar-engine/internal/api/docs"
	"github.com/iranverse/avatar-engine/internal/api/handler"
	"github.com/iranverse/avatar-engine/internal/api/middleware"
	"github.com/iranverse/avatar-engine/internal/avatar"
	"github.com/iranverse/avatar-engine/internal/backend"
	"github.com/iranverse/avatar-engine/internal/cache"
	"github.com/iranverse/avatar-engine/internal/channel"
	"github.com/iranverse/avatar-engine/internal/config"
	"github.com/iranverse/avatar-engine/internal/repository"
	"github.com/iranverse/avatar-engine/internal/session"
	syncpkg "github.com/iranverse/avatar-engine/internal/sync"
	"github.com/iranverse/avatar-engine/internal/ws"
)

type Dependencies struct {
	Config *config.Config
	DB     *pgxpool.Pool
}

type Router struct {
	app          *fiber.App
	logger       *slog.Logger
	deps         *Dependencies
	manager      *session.Manager
	wsHub        *ws.Hub
	syncWorker   *syncpkg.Worker
	cancelWorker context.CancelFunc
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Avatar Engine API",
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	v1 := r.app.Group("/v1")

	if r.deps == nil {
		healthHandler := handler.NewHealthHandler(nil)
		r.app.Get("/health", healthHandler.Health)
		r.app.Get("/ready", healthHandler.Ready)
		return
	}

	cfg := r.deps.Config

	healthHandler := handler.NewHealthHandler(r.deps.DB)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	// Domain plumbing shared by sessions and the sync worker.
	stateRepo := repository.NewAvatarStateRepository(r.deps.DB)
	stateCache := cache.NewStateCache(r.deps.DB)
	syncQueue := syncpkg.NewQueue(r.deps.DB)

	backendCfg := backend.DefaultConfig()
	backendCfg.BaseURL = cfg.BackendURL
	backendCfg.Token = cfg.BackendToken
	backendClient := backend.NewClient(backendCfg)

	// The hub is both the session's outbound sink and the worker's
	// notifier; the manager is the hub's inbound relay. The hub is
	// created first and wired to the manager right after.
	r.manager = session.NewManager(session.Deps{
		Adapter:  channel.NewAdapter(cfg.ProviderDomainList()),
		Parser:   avatar.NewParser(cfg.MorphTargetList()),
		Store:    stateRepo,
		Cache:    stateCache,
		Queue:    syncQueue,
		Fallback: avatar.NewFallbackProvider(avatar.FallbackConfig{
			MaleURL:      cfg.FallbackMaleURL,
			FemaleURL:    cfg.FallbackFemaleURL,
			NonBinaryURL: cfg.FallbackNonBinaryURL,
		}),
		Logger:  r.logger,
		Timeout: cfg.SessionTimeout,
	})
	r.wsHub = ws.NewHub(r.manager)
	r.manager.SetSink(r.wsHub)
	go r.wsHub.Run()

	r.syncWorker = syncpkg.NewWorker(r.deps.DB, backendClient, r.wsHub, r.logger)
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	r.cancelWorker = cancelWorker
	go r.syncWorker.Run(workerCtx)

	sessionHandler := handler.NewSessionHandler(r.manager, r.logger)
	avatarHandler := handler.NewAvatarHandler(stateRepo, stateCache, r.logger)

	// Session lifecycle
	v1.Post("/sessions", sessionHandler.Create)
	v1.Get("/sessions/:id", sessionHandler.Get)
	v1.Post("/sessions/:id/messages", sessionHandler.Message)
	v1.Post("/sessions/:id/retry", sessionHandler.Retry)
	v1.Post("/sessions/:id/skip", sessionHandler.Skip)
	v1.Delete("/sessions/:id", sessionHandler.Delete)

	// Message channel (websocket relay)
	v1.Get("/sessions/:id/channel", ws.UpgradeMiddleware(), ws.Handler(r.wsHub))

	// Avatar records
	v1.Get("/avatars/:rpmId", avatarHandler.Get)
	v1.Get("/avatars/:rpmId/resolve", avatarHandler.Resolve)
	v1.Get("/users/:userId/avatar-url", avatarHandler.ResumeURL)
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	if r.manager != nil {
		r.manager.Shutdown()
	}

	if r.cancelWorker != nil {
		r.cancelWorker()
	}
	if r.syncWorker != nil {
		r.syncWorker.Stop()
	}

	return r.app.Shutdown()
}
