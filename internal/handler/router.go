package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/invoiceadmin/internal/middleware"
	"github.com/hitoshi/invoiceadmin/internal/role"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 認証
	AuthService    AuthServiceInterface
	SessionClearer SessionClearer
	CookieConfig   CookieConfig

	// バックエンドゲートウェイ
	UserGateway    UserGatewayInterface
	InvoiceGateway InvoiceGatewayInterface

	// コレクションキャッシュ
	Cache CollectionCache

	// メトリクス（nil可）
	CacheMetrics   CacheMetricsRecorder
	LogoutMetrics  ForcedLogoutRecorder
	MetricsHandler http.Handler

	// アバタープロキシ
	AvatarFetcher AvatarFetcherInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → CSRF
//
// 画面ルートと/authはセッション任意、/api/*はセッション必須とし、
// /api/*にはロール許可リストとレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	errorResponder := newUpstreamErrorResponder(deps.SessionClearer, deps.LogoutMetrics, deps.CookieConfig)

	authHandler := NewAuthHandler(deps.AuthService, errorResponder, deps.CookieConfig)
	userHandler := NewUserHandler(deps.UserGateway, deps.Cache, deps.CacheMetrics, errorResponder)
	invoiceHandler := NewInvoiceHandler(deps.InvoiceGateway, deps.Cache, deps.CacheMetrics, errorResponder)
	pageHandler := NewPageHandler()
	avatarHandler := NewAvatarHandler(deps.AvatarFetcher)

	optionalSession := middleware.NewOptionalSessionMiddleware(deps.SessionFinder)

	// --- 運用系ルート ---

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 画面ルート（セッション任意、ガード判定はハンドラー内） ---

	r.Group(func(r chi.Router) {
		r.Use(optionalSession)

		r.Get("/", pageHandler.LoginPage)
		r.Get(role.PathDashboard, pageHandler.Dashboard)
		r.Get(role.PathInvoice, pageHandler.Invoice)
		r.Get(role.PathUnauthorized, pageHandler.Unauthorized)
	})

	// --- 認証ルート ---

	r.Route("/auth", func(r chi.Router) {
		// ログインは未認証アクセスのため接続元IPでレート制限する
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(optionalSession)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})
	})

	// --- 認証が必要なAPIルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ユーザー管理（USERロールは不可）
		r.Route("/api/users", func(r chi.Router) {
			r.Use(middleware.RequireRoles(role.SuperAdmin, role.Admin, role.UnitManager))

			r.Get("/", userHandler.List)
			r.Post("/", userHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", userHandler.Delete)

				// ロール変更はSUPER_ADMIN専用
				r.With(middleware.RequireRoles(role.SuperAdmin)).Post("/role", userHandler.UpdateRole)
			})
		})

		// 請求書管理（全ロール）
		r.Route("/api/invoices", func(r chi.Router) {
			r.Use(middleware.RequireRoles(role.SuperAdmin, role.Admin, role.UnitManager, role.User))

			r.Get("/", invoiceHandler.List)
			r.Post("/", invoiceHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", invoiceHandler.Update)
				r.Delete("/", invoiceHandler.Delete)
			})
		})

		// アバタープロキシ
		r.Get("/api/avatar", avatarHandler.Proxy)
	})

	return r
}
