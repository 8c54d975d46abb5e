package handler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"challenge-hub-backend/pkg/authz"
	"challenge-hub-backend/pkg/config"
	"challenge-hub-backend/pkg/database"
	"challenge-hub-backend/pkg/handlers"
	"challenge-hub-backend/pkg/logger"
	"challenge-hub-backend/pkg/metrics"
	customMiddleware "challenge-hub-backend/pkg/middleware"
	"challenge-hub-backend/pkg/services"
	"challenge-hub-backend/pkg/utils"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes 请求体上限
const maxBodyBytes = 1 << 20

// Deps 路由依赖
type Deps struct {
	Config   *config.Config
	DB       database.DatabaseInterface
	Services *services.Services
	Metrics  *metrics.Metrics
	Logger   *log.Logger
}

// NewDeps builds the authorization enforcer, metrics and services on top of db.
func NewDeps(cfg *config.Config, db database.DatabaseInterface, logger *log.Logger) (*Deps, error) {
	enforcer, err := authz.NewEnforcer(logger.WithPrefix("authz"))
	if err != nil {
		return nil, err
	}
	m := metrics.New()
	svc, err := services.New(services.Options{
		DB:      db,
		Authz:   enforcer,
		Metrics: m,
		Logger:  logger,
	}, cfg.JWTSecret, cfg.PartnerCacheSize)
	if err != nil {
		return nil, err
	}
	return &Deps{Config: cfg, DB: db, Services: svc, Metrics: m, Logger: logger}, nil
}

// Vercel 冷启动后复用同一个路由器
var (
	routerMu   sync.Mutex
	routerDB   database.DatabaseInterface
	routerHTTP http.Handler
)

// Handler 是Vercel函数的入口点
// 这个函数实现了"单体路由模式"，将所有API端点集中在一个Chi路由器中管理
func Handler(w http.ResponseWriter, r *http.Request) {
	// 加载配置
	cfg, err := config.GetCached()
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}

	router, err := serverlessRouter(r.Context(), cfg)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Initialization error: "+err.Error())
		return
	}

	// 将请求传递给Chi路由器处理
	router.ServeHTTP(w, r)
}

func serverlessRouter(ctx context.Context, cfg *config.Config) (http.Handler, error) {
	// 连接由连接池管理，无需手动关闭
	db, err := database.GetDatabase(ctx, cfg.DatabaseConfig())
	if err != nil {
		return nil, err
	}

	routerMu.Lock()
	defer routerMu.Unlock()
	if routerHTTP != nil && routerDB == db {
		return routerHTTP, nil
	}

	l, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	deps, err := NewDeps(cfg, db, l)
	if err != nil {
		return nil, err
	}
	routerDB, routerHTTP = db, NewRouter(deps)
	return routerHTTP, nil
}

// NewRouter 创建Chi路由器
func NewRouter(deps *Deps) http.Handler {
	router := chi.NewRouter()

	// 设置全局中间件
	setupMiddleware(router, deps)

	// 设置路由
	setupRoutes(router, deps)

	return router
}

// setupMiddleware 设置全局中间件
func setupMiddleware(router *chi.Mux, deps *Deps) {
	cfg := deps.Config

	// 基础中间件
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.Logger(deps.Logger, deps.Metrics))
	router.Use(customMiddleware.Recovery(cfg))

	// CORS中间件
	router.Use(customMiddleware.CORS(cfg))

	// 超时中间件（Vercel函数有时间限制）
	router.Use(middleware.Timeout(25 * time.Second)) // 留5秒缓冲

	router.Use(customMiddleware.RateLimitByIP(cfg.RateLimitPerMinute))

	// 开发环境额外中间件
	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

// setupRoutes 设置所有API路由
func setupRoutes(router *chi.Mux, deps *Deps) {
	cfg, svc := deps.Config, deps.Services

	// 创建处理器
	authHandler := handlers.NewAuthHandler(cfg, deps.DB, svc.Auth)
	partnersHandler := handlers.NewPartnersHandler(svc.Partners)
	challengesHandler := handlers.NewChallengesHandler(svc.Challenges)
	projectsHandler := handlers.NewProjectsHandler(svc.Projects)
	teamsHandler := handlers.NewTeamsHandler(svc.Teams)
	dashboardHandler := handlers.NewDashboardHandler(svc.Dashboard)

	// 健康检查端点
	router.Get("/", authHandler.HealthCheck)
	router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	// 数据库连接池状态端点（调试用）
	if cfg.IsDevelopment() {
		router.Get("/debug/db-pool", func(w http.ResponseWriter, r *http.Request) {
			stats := database.GetConnectionStats()
			stats["serverless"] = database.IsServerlessEnvironment()
			utils.WriteSuccessResponse(w, stats)
		})
	}

	jwt := svc.Auth.JWT()

	// API路由组
	router.Route("/api", func(r chi.Router) {
		r.Use(customMiddleware.ContentTypeJSON)
		r.Use(customMiddleware.MaxBodySize(maxBodyBytes))

		// 公开路由（不需要认证）
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.RefreshToken)
		})

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.OptionalAuthMiddleware(jwt))
			r.Get("/challenges", challengesHandler.List)
			r.Get("/challenges/{id}", challengesHandler.Get)
			r.Get("/profiles/{id}", dashboardHandler.PublicProfile)
		})

		// 需要认证的路由
		r.Group(func(r chi.Router) {
			// 应用认证中间件
			r.Use(customMiddleware.AuthMiddleware(jwt))

			r.Route("/admin/partners", func(r chi.Router) {
				r.Get("/", partnersHandler.AdminList)
				r.Post("/{id}/status", partnersHandler.AdminSetStatus)
			})

			r.Route("/partners", func(r chi.Router) {
				r.Post("/apply", partnersHandler.Apply)
				r.Get("/{id}", partnersHandler.Get)
			})

			r.Post("/challenges", challengesHandler.Create)
			r.Post("/challenges/{id}/join", challengesHandler.Join)

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectsHandler.List)
				r.Post("/", projectsHandler.Create)
				r.Get("/{id}", projectsHandler.Get)
				r.Post("/{id}/start", projectsHandler.Start)
				r.Post("/{id}/submit", projectsHandler.Submit)
			})

			r.Route("/teams", func(r chi.Router) {
				r.Post("/", teamsHandler.Create)
				r.Get("/{id}", teamsHandler.Get)
				r.Post("/{id}/invitations", teamsHandler.Invite)
			})

			// Invitations
			r.Route("/invitations", func(r chi.Router) {
				r.Get("/my", teamsHandler.MyInvitations)
				r.Post("/accept", teamsHandler.Accept)
				r.Post("/decline", teamsHandler.Decline)
			})

			r.Get("/dashboard", dashboardHandler.Participant)
		})
	})

	// 404处理
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	// 405处理
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}
