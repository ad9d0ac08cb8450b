// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/socialsync/internal/model"
)

// outcomeSuccess は成功した同期のoutcomeラベル値。
// 失敗時はSyncErrorKindの文字列がそのまま入る。
const outcomeSuccess = "success"

// SyncMetrics は同期結果のPrometheusメトリクスを収集する。
type SyncMetrics struct {
	syncTotal     *prometheus.CounterVec
	postsUpserted *prometheus.CounterVec
	syncDuration  *prometheus.HistogramVec
}

// NewSyncMetrics は新しいSyncMetricsを生成し、指定されたレジストリにメトリクスを登録する。
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	m := &SyncMetrics{
		syncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialsync_sync_total",
			Help: "プラットフォーム別・結果別の同期実行数",
		}, []string{"platform", "outcome"}),
		postsUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialsync_posts_upserted_total",
			Help: "アップサートされた投稿の合計数",
		}, []string{"platform"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "socialsync_sync_duration_seconds",
			Help:    "1アカウントの同期にかかった時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"platform"}),
	}

	reg.MustRegister(
		m.syncTotal,
		m.postsUpserted,
		m.syncDuration,
	)

	return m
}

// ObserveSync は1アカウントの同期結果を記録する。
func (m *SyncMetrics) ObserveSync(platform string, result model.SyncResult, duration time.Duration) {
	outcome := outcomeSuccess
	if !result.Updated {
		outcome = string(result.ErrorKind)
	}
	m.syncTotal.WithLabelValues(platform, outcome).Inc()
	if result.PostsCount > 0 {
		m.postsUpserted.WithLabelValues(platform).Add(float64(result.PostsCount))
	}
	m.syncDuration.WithLabelValues(platform).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
