package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/hitoshi/socialsync/internal/auth"
	"github.com/hitoshi/socialsync/internal/config"
	"github.com/hitoshi/socialsync/internal/database"
	"github.com/hitoshi/socialsync/internal/handler"
	"github.com/hitoshi/socialsync/internal/logger"
	"github.com/hitoshi/socialsync/internal/metrics"
	"github.com/hitoshi/socialsync/internal/middleware"
	"github.com/hitoshi/socialsync/internal/platform"
	"github.com/hitoshi/socialsync/internal/platform/instagram"
	"github.com/hitoshi/socialsync/internal/platform/mastodon"
	"github.com/hitoshi/socialsync/internal/platform/opensea"
	"github.com/hitoshi/socialsync/internal/platform/podcast"
	"github.com/hitoshi/socialsync/internal/platform/steam"
	"github.com/hitoshi/socialsync/internal/platform/youtube"
	"github.com/hitoshi/socialsync/internal/record"
	"github.com/hitoshi/socialsync/internal/repository"
	"github.com/hitoshi/socialsync/internal/security"
	syncer "github.com/hitoshi/socialsync/internal/sync"
	"github.com/hitoshi/socialsync/internal/worker/cleanup"
	"github.com/hitoshi/socialsync/internal/worker/syncjob"
)

// googleTokenURL はYouTube（Google OAuth）のトークンリフレッシュエンドポイント。
const googleTokenURL = "https://oauth2.googleapis.com/token"

// maxAPIResponseSize はSSRF防止クライアントのレスポンスサイズ上限。
const maxAPIResponseSize = 10 * 1024 * 1024

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// syncPipeline は同期パイプラインの共通依存をまとめた構造体。
// APIサーバーとワーカーの両方で同じワイヤリングを使う。
type syncPipeline struct {
	accountRepo  *repository.PostgresAccountRepo
	profileRepo  *repository.PostgresProfileRepo
	postRepo     *repository.PostgresPostRepo
	registry     *platform.Registry
	orchestrator *syncer.Orchestrator
}

// buildSyncPipeline はリポジトリからオーケストレータまでの同期パイプラインを構築する。
// 全アダプタをレジストリに登録し、メトリクスを指定レジストリに登録する。
func buildSyncPipeline(cfg *config.Config, db *sql.DB, promReg prometheus.Registerer) *syncPipeline {
	accountRepo := repository.NewPostgresAccountRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)

	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// プラットフォームAPI用クライアント。インスタンスURL・フィードURLなど
	// ユーザー指定のURLへ向かうアダプタにはSSRF防止クライアントを使う。
	apiClient := &http.Client{Timeout: cfg.FetchTimeout}
	safeClient := ssrfGuard.NewSafeClient(cfg.FetchTimeout, maxAPIResponseSize)

	// YouTubeのOAuthクライアント。資格情報が未設定の場合は
	// リフレッシュなしでアクセストークンをそのまま使う。
	var refresher auth.TokenRefresher = auth.IdentityRefresher{}
	if cfg.YouTubeClientID != "" {
		refresher = auth.NewOAuthRefresher(&oauth2.Config{
			ClientID:     cfg.YouTubeClientID,
			ClientSecret: cfg.YouTubeClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: googleTokenURL},
		}, accountRepo)
	}

	registry := platform.NewRegistry(
		instagram.New(apiClient),
		youtube.New(apiClient, refresher),
		mastodon.New(safeClient, ssrfGuard),
		steam.New(apiClient, cfg.SteamAPIKey),
		opensea.New(apiClient, cfg.OpenSeaAPIKey),
		podcast.New(safeClient, ssrfGuard),
	)

	sink := record.NewUpsertService(profileRepo, postRepo, sanitizer)
	syncMetrics := metrics.NewSyncMetrics(promReg)
	dispatcher := syncer.NewDispatcher(registry, sink, cfg.SyncTimeout, syncMetrics)
	orchestrator := syncer.NewOrchestrator(dispatcher, cfg.SyncMaxConcurrent)

	return &syncPipeline{
		accountRepo:  accountRepo,
		profileRepo:  profileRepo,
		postRepo:     postRepo,
		registry:     registry,
		orchestrator: orchestrator,
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. 同期パイプラインの構築
	promReg := prometheus.NewRegistry()
	pipeline := buildSyncPipeline(cfg, db, promReg)

	// 3. レート制限の構築（configはreq/min単位）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.SyncRate = rate.Limit(float64(cfg.RateLimitSync) / 60.0)
	rateLimiterCfg.SyncBurst = cfg.RateLimitSync
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 4. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		RateLimiter:    rateLimiter,
		Logger:         slog.Default(),
		AccountLister:  pipeline.accountRepo,
		BatchSyncer:    pipeline.orchestrator,
		ProfileLister:  pipeline.profileRepo,
		PostLister:     pipeline.postRepo,
		PlatformLister: pipeline.registry,
		Pinger:         db,
	})

	// 5. /metricsと統合したハンドラの構築
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(promReg))
	mux.Handle("/", router)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * cfg.SyncTimeout, // 同期トリガーはアダプタの完了を待つ
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、同期スケジューラとクリーンアップジョブを起動する。
// メトリクスは専用の/metricsサーバーで公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. 同期パイプラインの構築
	promReg := prometheus.NewRegistry()
	pipeline := buildSyncPipeline(cfg, db, promReg)

	// 3. スケジューラの構築
	scheduler := syncjob.NewScheduler(
		pipeline.accountRepo, pipeline.orchestrator, slog.Default(),
		cfg.SyncInterval, cfg.SyncBatchSize,
	)

	// 4. クリーンアップジョブの構築
	cleanupJob := cleanup.NewCleanupJob(pipeline.profileRepo, pipeline.postRepo, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("tick_interval", cfg.SyncTickInterval),
		slog.Int("max_concurrent", cfg.SyncMaxConcurrent),
	)

	// メトリクスサーバーをバックグラウンドで起動
	metricsServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: metrics.SetupMetricsRoute(promReg),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()
	defer metricsServer.Close()

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 同期スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.SyncTickInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
