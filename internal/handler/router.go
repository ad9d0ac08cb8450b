package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/socialsync/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	RateLimiter *middleware.RateLimiter
	Logger      *slog.Logger

	// 同期
	AccountLister AccountListerInterface
	BatchSyncer   BatchSyncerInterface

	// コンテンツ
	ProfileLister ProfileListerInterface
	PostLister    PostListerInterface

	// プラットフォーム・ヘルスチェック
	PlatformLister PlatformListerInterface
	Pinger         Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → SecurityHeadersMiddleware → LoggingMiddleware
//	→ （ユーザールートのみ）UserContextMiddleware → RateLimitMiddleware
//
// ヘルスチェックとプラットフォーム一覧はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	syncHandler := NewSyncHandler(deps.AccountLister, deps.BatchSyncer)
	profileHandler := NewProfileHandler(deps.ProfileLister)
	postHandler := NewPostHandler(deps.PostLister)
	platformHandler := NewPlatformHandler(deps.PlatformLister, deps.Pinger)

	// --- ユーザーIDを必要としないルート ---

	r.Get("/health", platformHandler.Health)
	r.Get("/api/platforms", platformHandler.ListPlatforms)

	// --- ユーザールート ---
	// ミドルウェアスタック: UserContext → RateLimit(General)
	r.Route("/api/users/{userID}", func(r chi.Router) {
		r.Use(middleware.NewUserContextMiddleware())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// POST /api/users/:userID/sync - 同期トリガー（専用レート制限を追加）
		r.With(deps.RateLimiter.SyncMiddleware()).Post("/sync", syncHandler.TriggerSync)

		r.Get("/profiles", profileHandler.ListProfiles)
		r.Get("/posts", postHandler.ListPosts)
	})

	return r
}
