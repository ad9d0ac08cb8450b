package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/socialsync/internal/middleware"
	"github.com/hitoshi/socialsync/internal/model"
)

// fakePostLister はテスト用の投稿取得実装。クエリ引数を記録する。
type fakePostLister struct {
	posts    []*model.Post
	err      error
	platform string
	cursor   time.Time
	limit    int
}

func (f *fakePostLister) ListByUser(ctx context.Context, userID, platform string, cursor time.Time, limit int) ([]*model.Post, error) {
	f.platform = platform
	f.cursor = cursor
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	if len(f.posts) > limit {
		return f.posts[:limit], nil
	}
	return f.posts, nil
}

func makePosts(n int) []*model.Post {
	posts := make([]*model.Post, n)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := range posts {
		posts[i] = &model.Post{
			ID:       "id-" + string(rune('a'+i)),
			UserID:   "user-1",
			Platform: "instagram",
			PostID:   "post-" + string(rune('a'+i)),
			PostedAt: base.Add(-time.Duration(i) * time.Hour),
		}
	}
	return posts
}

func postsRequest(query string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/users/user-1/posts"+query, nil)
	return req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
}

// TestListPosts_Default はデフォルトパラメータでの投稿一覧取得を検証する。
func TestListPosts_Default(t *testing.T) {
	lister := &fakePostLister{posts: makePosts(3)}
	h := NewPostHandler(lister)

	w := httptest.NewRecorder()
	h.ListPosts(w, postsRequest(""))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	// has_more判定のため limit+1 件要求される
	if lister.limit != defaultPostsPerPage+1 {
		t.Errorf("limit = %d, want %d", lister.limit, defaultPostsPerPage+1)
	}

	var resp postListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Posts) != 3 {
		t.Errorf("posts = %d, want 3", len(resp.Posts))
	}
	if resp.HasMore {
		t.Error("HasMore = true, want false")
	}
}

// TestListPosts_Pagination はhas_moreとnext_cursorの算出を検証する。
func TestListPosts_Pagination(t *testing.T) {
	lister := &fakePostLister{posts: makePosts(3)}
	h := NewPostHandler(lister)

	w := httptest.NewRecorder()
	h.ListPosts(w, postsRequest("?limit=2"))

	var resp postListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Posts) != 2 {
		t.Fatalf("posts = %d, want 2", len(resp.Posts))
	}
	if !resp.HasMore {
		t.Error("HasMore = false, want true")
	}
	want := resp.Posts[1].PostedAt.Format(time.RFC3339)
	if resp.NextCursor != want {
		t.Errorf("NextCursor = %q, want %q", resp.NextCursor, want)
	}
}

// TestListPosts_PlatformAndCursor はプラットフォーム絞り込みとカーソルの伝播を検証する。
func TestListPosts_PlatformAndCursor(t *testing.T) {
	lister := &fakePostLister{}
	h := NewPostHandler(lister)

	w := httptest.NewRecorder()
	h.ListPosts(w, postsRequest("?platform=mastodon&cursor=2026-08-01T00:00:00Z"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if lister.platform != "mastodon" {
		t.Errorf("platform = %q, want mastodon", lister.platform)
	}
	wantCursor := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if !lister.cursor.Equal(wantCursor) {
		t.Errorf("cursor = %v, want %v", lister.cursor, wantCursor)
	}
}

// TestListPosts_InvalidCursor は不正なカーソルで400が返ることを検証する。
func TestListPosts_InvalidCursor(t *testing.T) {
	h := NewPostHandler(&fakePostLister{})

	w := httptest.NewRecorder()
	h.ListPosts(w, postsRequest("?cursor=yesterday"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// TestListPosts_LimitClamp は上限超過のlimitが補正されることを検証する。
func TestListPosts_LimitClamp(t *testing.T) {
	lister := &fakePostLister{}
	h := NewPostHandler(lister)

	w := httptest.NewRecorder()
	h.ListPosts(w, postsRequest("?limit=500"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if lister.limit != maxPostsPerPage+1 {
		t.Errorf("limit = %d, want %d", lister.limit, maxPostsPerPage+1)
	}
}

// TestListPosts_Empty は投稿0件で空配列が返ることを検証する。
func TestListPosts_Empty(t *testing.T) {
	h := NewPostHandler(&fakePostLister{})

	w := httptest.NewRecorder()
	h.ListPosts(w, postsRequest(""))

	var resp postListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Posts == nil || len(resp.Posts) != 0 {
		t.Errorf("Posts = %v, want empty non-nil slice", resp.Posts)
	}
}
