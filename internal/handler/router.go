package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/blogman/internal/feed"
	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	// RateLimiter がnilの場合はレート制限を行わない。
	RateLimiter     *middleware.RateLimiter
	MetricsRecorder middleware.HTTPRecorder
	Logger          *slog.Logger

	// 認証
	AuthService AuthServiceInterface

	// 投稿
	PostService PostServiceInterface
	FeedChannel feed.Channel

	// 運用
	HealthChecker  repository.HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → Metrics → SecurityHeaders → CORS
//
// /auth/* と /posts/* は /api 配下にも同じ構成でマウントする。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	if deps.MetricsRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.MetricsRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	mountAPI(r, deps)
	r.Route("/api", func(r chi.Router) {
		mountAPI(r, deps)
	})

	return r
}

// mountAPI は認証と投稿のルートをrに登録する。
func mountAPI(r chi.Router, deps *RouterDeps) {
	authHandler := NewAuthHandler(deps.AuthService)
	postHandler := NewPostHandler(deps.PostService, deps.FeedChannel)

	general := passthrough
	authLimit := passthrough
	if deps.RateLimiter != nil {
		general = deps.RateLimiter.GeneralMiddleware()
		authLimit = deps.RateLimiter.AuthMiddleware()
	}
	requireToken := middleware.NewAuthMiddleware(deps.TokenVerifier)

	// --- 認証不要のルート ---
	r.Group(func(r chi.Router) {
		r.With(authLimit).Post("/auth/register", authHandler.Register)
		r.With(authLimit).Post("/auth/login", authHandler.Login)

		r.With(general).Get("/posts", postHandler.List)
		r.With(general).Get("/posts/feed.xml", postHandler.Feed)
		r.With(general).Get("/posts/{id}", postHandler.Get)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(requireToken)
		r.Use(general)

		r.Get("/auth/me", authHandler.Me)
		r.Post("/auth/logout", authHandler.Logout)

		r.Post("/posts", postHandler.Create)
		r.Get("/posts/my", postHandler.Mine)
		r.Put("/posts/{id}", postHandler.Update)
		r.Delete("/posts/{id}", postHandler.Delete)
	})
}

func passthrough(next http.Handler) http.Handler { return next }
