package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/socialsync/internal/middleware"
	"github.com/hitoshi/socialsync/internal/model"
)

// defaultPostsPerPage は投稿一覧の1回の取得件数（デフォルト）。
const defaultPostsPerPage = 50

// maxPostsPerPage は投稿一覧の1回の取得件数の上限。
const maxPostsPerPage = 100

// PostListerInterface は投稿ハンドラーが必要とする取得インターフェース。
// repository.PostRepositoryの部分集合として定義する。
type PostListerInterface interface {
	ListByUser(ctx context.Context, userID, platform string, cursor time.Time, limit int) ([]*model.Post, error)
}

// PostHandler は投稿取得のHTTPハンドラー。
type PostHandler struct {
	posts PostListerInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(posts PostListerInterface) *PostHandler {
	return &PostHandler{posts: posts}
}

// postListResponse は投稿一覧のレスポンス。
type postListResponse struct {
	Posts      []*model.Post `json:"posts"`
	NextCursor string        `json:"next_cursor,omitempty"`
	HasMore    bool          `json:"has_more"`
}

// ListPosts はユーザーの投稿一覧をposted_at降順で取得する。
// GET /api/users/:userID/posts?platform=xxx&cursor=RFC3339&limit=50
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, "UNAUTHORIZED", "user ID is required")
		return
	}

	platform := r.URL.Query().Get("platform")

	var cursor time.Time
	if cursorStr := r.URL.Query().Get("cursor"); cursorStr != "" {
		cursor, err = time.Parse(time.RFC3339, cursorStr)
		if err != nil {
			middleware.WriteBadRequest(w, "cursor must be RFC3339 format")
			return
		}
	}

	limit := defaultPostsPerPage
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			middleware.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		if limit > maxPostsPerPage {
			limit = maxPostsPerPage
		}
	}

	// has_more判定のため1件余分に取得する
	posts, err := h.posts.ListByUser(r.Context(), userID, platform, cursor, limit+1)
	if err != nil {
		slog.Error("投稿一覧の取得に失敗しました",
			"user_id", userID,
			"platform", platform,
			"error", err,
		)
		middleware.WriteInternalServerError(w)
		return
	}

	resp := postListResponse{HasMore: len(posts) > limit}
	if resp.HasMore {
		posts = posts[:limit]
	}
	resp.Posts = posts
	if resp.Posts == nil {
		resp.Posts = []*model.Post{}
	}
	if resp.HasMore && len(posts) > 0 {
		resp.NextCursor = posts[len(posts)-1].PostedAt.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
