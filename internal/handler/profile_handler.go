package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/socialsync/internal/middleware"
	"github.com/hitoshi/socialsync/internal/model"
)

// ProfileListerInterface はプロフィールハンドラーが必要とする取得インターフェース。
// repository.ProfileRepositoryの部分集合として定義する。
type ProfileListerInterface interface {
	ListByUserID(ctx context.Context, userID string) ([]*model.Profile, error)
}

// ProfileHandler はプロフィール取得のHTTPハンドラー。
type ProfileHandler struct {
	profiles ProfileListerInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(profiles ProfileListerInterface) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// profileListResponse はプロフィール一覧のレスポンス。
type profileListResponse struct {
	Profiles []*model.Profile `json:"profiles"`
}

// ListProfiles はユーザーの全プラットフォームのプロフィール一覧を取得する。
// GET /api/users/:userID/profiles
func (h *ProfileHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, "UNAUTHORIZED", "user ID is required")
		return
	}

	profiles, err := h.profiles.ListByUserID(r.Context(), userID)
	if err != nil {
		slog.Error("プロフィール一覧の取得に失敗しました",
			"user_id", userID,
			"error", err,
		)
		middleware.WriteInternalServerError(w)
		return
	}
	if profiles == nil {
		profiles = []*model.Profile{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profileListResponse{Profiles: profiles})
}
