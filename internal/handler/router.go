package handler

import (
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/despesas/internal/metrics"
	"github.com/hitoshi/despesas/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	TrustedProxies    []netip.Prefix // 空の場合X-Forwarded-Forを無視する
	RateLimiter       *middleware.RateLimiter
	CSRFEnabled       bool
	CSRFConfig        middleware.CSRFConfig
	HSTS              bool
	Metrics           metrics.Recorder
	MetricsHandler    http.Handler // nilの場合 /metrics を公開しない
	Storage           StorageReporter
	StaticDir         string // 空の場合ダッシュボードを配信しない

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメイン
	UserService    UserServiceInterface
	ExpenseService ExpenseServiceInterface
	StatsService   StatsServiceInterface
	BillingService BillingServiceInterface
	UploadService  UploadServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RealIP(信頼済みプロキシのみ) → Logging → Metrics → SecurityHeaders → CORS → [CSRF] →
//	Session → RateLimit(General) → [RequireAdmin]
//
// ログイン・ログアウト・CSRFトークン取得はセッションの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewRealIPMiddleware(deps.TrustedProxies))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(rec))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)
	expenseHandler := NewExpenseHandler(deps.ExpenseService)
	statsHandler := NewStatsHandler(deps.StatsService)
	billingHandler := NewBillingHandler(deps.BillingService)
	uploadHandler := NewUploadHandler(deps.UploadService)

	// --- 認証不要のルート ---

	if deps.Storage != nil {
		r.Get("/health", NewHealthHandler(deps.Storage))
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		if deps.CSRFEnabled {
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		}

		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Session → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/auth/me", authHandler.Me)
			r.With(middleware.RequireAdmin).Post("/auth/signup", authHandler.Signup)

			r.Route("/users", func(r chi.Router) {
				r.With(middleware.RequireAdmin).Get("/", userHandler.ListUsers)
				r.Get("/{id}", userHandler.GetUser)
			})

			r.Post("/upload", uploadHandler.Upload)

			r.Route("/expenses", func(r chi.Router) {
				r.Get("/", expenseHandler.List)
				r.Post("/", expenseHandler.Create)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", expenseHandler.Get)
					r.With(middleware.RequireAdmin).Put("/", expenseHandler.Update)
					r.With(middleware.RequireAdmin).Delete("/", expenseHandler.Delete)
					// 所有者チェックはサービス層で行う
					r.Patch("/cancel", expenseHandler.Cancel)
				})
			})

			r.Route("/stats", func(r chi.Router) {
				r.Get("/", statsHandler.Overview)
				r.Get("/categories", statsHandler.Categories)
				r.Get("/payment-methods", statsHandler.PaymentMethods)
				r.Get("/monthly", statsHandler.Monthly)
				r.Get("/contracts", statsHandler.Contracts)
			})

			r.Route("/billing", func(r chi.Router) {
				r.Get("/", billingHandler.List)
				r.Post("/", billingHandler.Create)

				// 管理者専用
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin)
					r.Get("/stats", billingHandler.Stats)
					r.Patch("/{id}", billingHandler.Update)
					r.Patch("/{id}/cancel", billingHandler.Cancel)
					r.Delete("/{id}", billingHandler.Delete)
				})
			})
		})
	})

	if deps.StaticDir != "" {
		r.NotFound(NewStaticHandler(deps.StaticDir).ServeHTTP)
	}

	return r
}
