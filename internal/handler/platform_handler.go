package handler

import (
	"context"
	"encoding/json"
	"net/http"
)

// PlatformListerInterface は対応プラットフォーム一覧の取得インターフェース。
// platform.Registryが本番実装。
type PlatformListerInterface interface {
	Platforms() []string
}

// Pinger はヘルスチェックで使用するDB疎通確認のインターフェース。
// sql.DBのPingContextを満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PlatformHandler は対応プラットフォーム一覧とヘルスチェックのHTTPハンドラー。
type PlatformHandler struct {
	platforms PlatformListerInterface
	pinger    Pinger // nil可
}

// NewPlatformHandler はPlatformHandlerを生成する。
func NewPlatformHandler(platforms PlatformListerInterface, pinger Pinger) *PlatformHandler {
	return &PlatformHandler{
		platforms: platforms,
		pinger:    pinger,
	}
}

// platformListResponse は対応プラットフォーム一覧のレスポンス。
type platformListResponse struct {
	Platforms []string `json:"platforms"`
}

// ListPlatforms は登録済みのプラットフォーム名一覧をソート済みで返す。
// GET /api/platforms
func (h *PlatformHandler) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(platformListResponse{Platforms: h.platforms.Platforms()})
}

// Health はサービスの稼働状態を返す。
// GET /health
// DBに疎通できない場合は503を返す。
func (h *PlatformHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.pinger != nil {
		if err := h.pinger.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
			return
		}
	}

	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
