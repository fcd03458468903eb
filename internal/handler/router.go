package handler

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cyberclock/server/internal/metrics"
	"github.com/cyberclock/server/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.Authenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// メトリクス
	Collector *metrics.Collector
	Gatherer  prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	DeviceFlow  DeviceFlowInterface
	AuthConfig  AuthHandlerConfig

	// カウンター
	CounterService CounterServiceInterface

	// ヘルスチェック
	DB *sql.DB
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → RequestID → Logging → Recovery → Metrics → Auth
//
// 認証ミドルウェアは公開パス（/auth/*、/healthz、/metrics）を素通りさせ、
// レート制限は認証済みAPIルートにのみ適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Collector != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Collector))
	}
	r.Use(middleware.NewAuthMiddleware(deps.Authenticator))

	var pollRecorder DevicePollRecorder
	if deps.Collector != nil {
		pollRecorder = deps.Collector
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.DeviceFlow, pollRecorder, deps.AuthConfig)
	counterHandler := NewCounterHandler(deps.CounterService)
	healthHandler := NewHealthHandler(deps.DB)

	// --- 認証不要のルート（公開パス） ---

	r.Route("/auth", func(r chi.Router) {
		// OAuth認可コードフロー
		r.Get("/{provider}/signin", authHandler.SignIn)
		r.Get("/{provider}/callback", authHandler.Callback)

		// デバイス認可フロー
		r.Post("/device/initiate", authHandler.DeviceInitiate)
		r.Post("/device/poll", authHandler.DevicePoll)

		// セッション管理
		r.Post("/signout", authHandler.SignOut)
		r.Get("/login", authHandler.LoginEntry)
		r.Get("/me", authHandler.Me)
	})

	r.Get("/healthz", healthHandler.Check)

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証が必要なルート ---
	// 認証ミドルウェアを通過済み。レート制限を追加で適用する。
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Route("/api/v1/counter", func(r chi.Router) {
			r.Get("/", counterHandler.Get)
			r.Post("/increment", counterHandler.Increment)
			r.Post("/decrement", counterHandler.Decrement)
		})
	})

	return r
}
