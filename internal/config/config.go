package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Sync
	SyncTimeout       time.Duration // 1アカウントの同期タイムアウト
	SyncMaxConcurrent int           // バッチ同期の最大並列数
	SyncInterval      time.Duration // 成功アカウントの次回同期までの間隔
	SyncTickInterval  time.Duration // スケジューラのティック間隔
	SyncBatchSize     int           // 1サイクルで処理するアカウント数の上限

	// Fetch
	FetchTimeout time.Duration // プラットフォームAPIへのHTTPタイムアウト

	// Rate Limit
	RateLimitGeneral int // API全般 req/min/user
	RateLimitSync    int // 同期トリガー req/min/user

	// Platform API credentials（未設定のプラットフォームは連携時にエラーになる）
	SteamAPIKey         string
	OpenSeaAPIKey       string
	YouTubeClientID     string
	YouTubeClientSecret string

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SyncTimeout = getEnvDuration("SYNC_TIMEOUT", 60*time.Second)
	cfg.SyncMaxConcurrent = getEnvInt("SYNC_MAX_CONCURRENT", 5)
	cfg.SyncInterval = getEnvDuration("SYNC_INTERVAL", time.Hour)
	cfg.SyncTickInterval = getEnvDuration("SYNC_TICK_INTERVAL", 5*time.Minute)
	cfg.SyncBatchSize = getEnvInt("SYNC_BATCH_SIZE", 100)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSync = getEnvInt("RATE_LIMIT_SYNC", 10)
	cfg.SteamAPIKey = getEnvString("STEAM_API_KEY", "")
	cfg.OpenSeaAPIKey = getEnvString("OPENSEA_API_KEY", "")
	cfg.YouTubeClientID = getEnvString("YOUTUBE_CLIENT_ID", "")
	cfg.YouTubeClientSecret = getEnvString("YOUTUBE_CLIENT_SECRET", "")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
