// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/socialsync/internal/middleware"
	"github.com/hitoshi/socialsync/internal/model"
	syncer "github.com/hitoshi/socialsync/internal/sync"
)

// AccountListerInterface は同期ハンドラーが必要とするアカウント取得インターフェース。
// repository.AccountRepositoryの部分集合として定義する。
type AccountListerInterface interface {
	ListByUserID(ctx context.Context, userID string) ([]*model.Account, error)
}

// BatchSyncerInterface はバッチ同期の実行インターフェース。
// sync.Orchestratorが本番実装で、テストではフェイクに差し替える。
type BatchSyncerInterface interface {
	SyncAccounts(ctx context.Context, pairs []syncer.Pair) []model.SyncResult
}

// SyncHandler はユーザー単位の同期トリガーのHTTPハンドラー。
type SyncHandler struct {
	accounts AccountListerInterface
	batch    BatchSyncerInterface
}

// NewSyncHandler はSyncHandlerを生成する。
func NewSyncHandler(accounts AccountListerInterface, batch BatchSyncerInterface) *SyncHandler {
	return &SyncHandler{
		accounts: accounts,
		batch:    batch,
	}
}

// syncRequest は同期トリガーリクエストのボディ（省略可）。
type syncRequest struct {
	// Platforms が空でない場合、指定プラットフォームのアカウントのみ同期する。
	Platforms []string `json:"platforms,omitempty"`
}

// TriggerSync はユーザーの連携アカウントを一括同期する。
// POST /api/users/:userID/sync
// ボディで対象プラットフォームを絞り込める。結果は常に200で、
// アカウントごとの成否はレスポンス内の各要素が表す。
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, "UNAUTHORIZED", "user ID is required")
		return
	}

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteBadRequest(w, "invalid request body")
		return
	}

	accounts, err := h.accounts.ListByUserID(r.Context(), userID)
	if err != nil {
		slog.Error("アカウント一覧の取得に失敗しました",
			"user_id", userID,
			"error", err,
		)
		middleware.WriteInternalServerError(w)
		return
	}

	pairs := buildPairs(accounts, req.Platforms)
	results := h.batch.SyncAccounts(r.Context(), pairs)
	if results == nil {
		results = []model.SyncResult{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// buildPairs は連携アカウントを同期ペアに変換する。
// platformsが空でない場合は指定プラットフォームのみ残す（大文字小文字は無視）。
func buildPairs(accounts []*model.Account, platforms []string) []syncer.Pair {
	var filter map[string]bool
	if len(platforms) > 0 {
		filter = make(map[string]bool, len(platforms))
		for _, p := range platforms {
			filter[strings.ToLower(p)] = true
		}
	}

	pairs := make([]syncer.Pair, 0, len(accounts))
	for _, account := range accounts {
		if filter != nil && !filter[strings.ToLower(account.Platform)] {
			continue
		}
		pairs = append(pairs, syncer.Pair{
			Platform: account.Platform,
			Account:  *account,
		})
	}
	return pairs
}
