package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakePlatformLister はテスト用のプラットフォーム一覧実装。
type fakePlatformLister struct {
	platforms []string
}

func (f *fakePlatformLister) Platforms() []string { return f.platforms }

// fakePinger はテスト用のDB疎通確認実装。
type fakePinger struct {
	err error
}

func (f *fakePinger) PingContext(ctx context.Context) error { return f.err }

// TestListPlatforms は対応プラットフォーム一覧の取得を検証する。
func TestListPlatforms(t *testing.T) {
	h := NewPlatformHandler(&fakePlatformLister{platforms: []string{"instagram", "mastodon", "youtube"}}, nil)

	w := httptest.NewRecorder()
	h.ListPlatforms(w, httptest.NewRequest(http.MethodGet, "/api/platforms", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp platformListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Platforms) != 3 {
		t.Errorf("platforms = %v, want 3 entries", resp.Platforms)
	}
}

// TestHealth_OK は正常時のヘルスチェックを検証する。
func TestHealth_OK(t *testing.T) {
	h := NewPlatformHandler(&fakePlatformLister{}, &fakePinger{})

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestHealth_DBDown はDB疎通失敗時に503が返ることを検証する。
func TestHealth_DBDown(t *testing.T) {
	h := NewPlatformHandler(&fakePlatformLister{}, &fakePinger{err: errors.New("connection refused")})

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}
