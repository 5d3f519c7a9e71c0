package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/nua/internal/metrics"
	"github.com/hitoshi/nua/internal/middleware"
)

// SetupAuthRoutes は認証関連のルーティングを設定したchi.Routerを返す。
func SetupAuthRoutes(service AuthServiceInterface, config AuthHandlerConfig) http.Handler {
	r := chi.NewRouter()
	h := NewAuthHandler(service, config)

	r.Route("/auth", func(r chi.Router) {
		// OAuthフロー
		r.Get("/google/login", h.Login)
		r.Get("/google/callback", h.Callback)

		// セッション管理
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})

	return r
}

// HealthPinger はヘルスチェックでの死活確認インターフェース。
// *sql.DB がそのまま満たす。
type HealthPinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	StatusRecorder    middleware.HTTPStatusRecorder

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 検索・エンリッチ
	SearchService SearchServiceInterface
	EnrichService EnrichServiceInterface

	// 記録
	EntryService EntryServiceInterface

	// ユーザー
	UserService UserServiceInterface

	// リアルタイム配信（GET /api/events）。nilの場合はルートを登録しない。
	EventsHandler http.Handler

	// 運用エンドポイント
	HealthPinger    HealthPinger
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → ( CSRF → Session → RateLimit(General) )
//
// 認証ルート（/auth/*）と運用ルート（/health, /metrics, /api/csrf-token）は
// 認証チェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())

	// CORS ミドルウェアを全ルートに適用
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	searchHandler := NewSearchHandler(deps.SearchService, deps.EnrichService)
	entryHandler := NewEntryHandler(deps.EntryService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	// 運用エンドポイント
	r.Get("/health", newHealthHandler(deps.HealthPinger))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: CSRF → Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 作品検索・エンリッチ
		r.Route("/api/search", func(r chi.Router) {
			r.Get("/", searchHandler.Search)

			// POST /api/search/enrich - 外部AI呼び出しのため専用レート制限を追加
			r.With(deps.RateLimiter.EnrichmentMiddleware()).Post("/enrich", searchHandler.Enrich)
		})

		// 記録管理
		r.Route("/api/entries", func(r chi.Router) {
			r.Get("/", entryHandler.ListEntries)
			r.Post("/", entryHandler.CreateEntry)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", entryHandler.UpdateEntry)
				r.Delete("/", entryHandler.DeleteEntry)
			})
		})

		// 集計
		r.Get("/api/stats", entryHandler.GetStats)

		// リアルタイム配信
		if deps.EventsHandler != nil {
			r.Handle("/api/events", deps.EventsHandler)
		}

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Delete("/me", userHandler.Withdraw)
		})
	})

	return r
}

// newHealthHandler はDB死活確認つきのヘルスチェックハンドラーを返す。
// pingerがnilの場合はプロセス生存のみを報告する。
func newHealthHandler(pinger HealthPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := pinger.PingContext(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "unavailable",
				})
				return
			}
		}

		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
		})
	}
}
