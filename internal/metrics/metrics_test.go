package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/socialsync/internal/model"
)

// TestObserveSync_Success は成功結果がoutcome=successで記録されることを検証する。
func TestObserveSync_Success(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSyncMetrics(reg)

	m.ObserveSync("instagram", model.NewSuccessResult("instagram", 5), 200*time.Millisecond)
	m.ObserveSync("instagram", model.NewSuccessResult("instagram", 3), 100*time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	var syncTotal, postsTotal float64
	for _, mf := range metrics {
		switch mf.GetName() {
		case "socialsync_sync_total":
			for _, metric := range mf.GetMetric() {
				syncTotal += metric.GetCounter().GetValue()
				for _, label := range metric.GetLabel() {
					if label.GetName() == "outcome" && label.GetValue() != "success" {
						t.Errorf("outcome = %q, want %q", label.GetValue(), "success")
					}
				}
			}
		case "socialsync_posts_upserted_total":
			postsTotal = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}

	if syncTotal != 2 {
		t.Errorf("sync_total = %v, want 2", syncTotal)
	}
	if postsTotal != 8 {
		t.Errorf("posts_upserted_total = %v, want 8", postsTotal)
	}
}

// TestObserveSync_Failure は失敗結果がエラー種別のoutcomeで記録されることを検証する。
func TestObserveSync_Failure(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSyncMetrics(reg)

	m.ObserveSync("youtube",
		model.NewFailureResult("youtube", model.NewMissingCredentialError("access token")),
		10*time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() != "socialsync_sync_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == "credential" {
					found = true
				}
			}
		}
	}
	if !found {
		t.Error("socialsync_sync_total with outcome=credential not found")
	}
}

// TestObserveSync_ZeroPostsNotCounted は0件の投稿がカウンタに記録されないことを検証する。
func TestObserveSync_ZeroPostsNotCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSyncMetrics(reg)

	m.ObserveSync("steam", model.NewSuccessResult("steam", 0), 50*time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() == "socialsync_posts_upserted_total" && len(mf.GetMetric()) > 0 {
			t.Error("posts_upserted_total should have no samples for zero posts")
		}
	}
}

// TestObserveSync_ObservesDuration は同期時間がヒストグラムに記録されることを検証する。
func TestObserveSync_ObservesDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSyncMetrics(reg)

	m.ObserveSync("mastodon", model.NewSuccessResult("mastodon", 1), 100*time.Millisecond)
	m.ObserveSync("mastodon", model.NewSuccessResult("mastodon", 1), 2*time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "socialsync_sync_duration_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("socialsync_sync_duration_seconds metric not found")
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSyncMetrics(reg)

	m.ObserveSync("instagram", model.NewSuccessResult("instagram", 2), 500*time.Millisecond)
	m.ObserveSync("opensea",
		model.NewFailureResult("opensea", model.NewFetchError("API error", nil)),
		100*time.Millisecond)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"socialsync_sync_total",
		"socialsync_posts_upserted_total",
		"socialsync_sync_duration_seconds",
	}
	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleSyncMetrics_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleSyncMetrics_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	m1 := NewSyncMetrics(reg1)
	m2 := NewSyncMetrics(reg2)

	m1.ObserveSync("instagram", model.NewSuccessResult("instagram", 1), time.Millisecond)
	m2.ObserveSync("instagram", model.NewSuccessResult("instagram", 1), time.Millisecond)
	m2.ObserveSync("instagram", model.NewSuccessResult("instagram", 1), time.Millisecond)

	count := func(reg *prometheus.Registry) float64 {
		metrics, _ := reg.Gather()
		for _, mf := range metrics {
			if mf.GetName() == "socialsync_sync_total" {
				return mf.GetMetric()[0].GetCounter().GetValue()
			}
		}
		return 0
	}

	if got := count(reg1); got != 1 {
		t.Errorf("reg1 sync_total = %v, want 1", got)
	}
	if got := count(reg2); got != 2 {
		t.Errorf("reg2 sync_total = %v, want 2", got)
	}
}
