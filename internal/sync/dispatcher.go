// Package sync は同期のディスパッチとバッチ実行を提供する。
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/hitoshi/socialsync/internal/model"
	"github.com/hitoshi/socialsync/internal/platform"
)

// Metrics は同期結果の計測インターフェース。
// metrics.SyncMetricsが本番実装で、テストではフェイクに差し替える。
type Metrics interface {
	ObserveSync(platform string, result model.SyncResult, duration time.Duration)
}

// Dispatcher は1アカウントの同期を失敗境界付きで実行する。
// Dispatchは決してエラーを返さず、panicも漏らさない。
// すべての失敗はSyncResultとして表現され、他アカウントの同期を阻害しない。
type Dispatcher struct {
	registry *platform.Registry
	sink     platform.Sink
	timeout  time.Duration
	metrics  Metrics // nil可
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
// timeoutは1アカウントの同期に許す最大時間（0の場合は無制限）。
func NewDispatcher(registry *platform.Registry, sink platform.Sink, timeout time.Duration, metrics Metrics) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		sink:     sink,
		timeout:  timeout,
		metrics:  metrics,
	}
}

// Dispatch は指定プラットフォームの同期を実行する。
//   - 未登録プラットフォーム: unsupported_platformの失敗結果
//   - スキームの必須フィールド不足: アダプタを呼ばずに資格情報エラーの失敗結果
//   - アダプタのエラー・panic・タイムアウト: 対応する失敗結果
func (d *Dispatcher) Dispatch(ctx context.Context, platformName string, account model.Account) model.SyncResult {
	start := time.Now()
	result := d.dispatch(ctx, platformName, account)
	duration := time.Since(start)

	if result.Updated {
		slog.Info("同期が完了しました",
			"platform", result.Platform,
			"user_id", account.UserID,
			"posts_count", result.PostsCount,
			"duration_ms", duration.Milliseconds(),
		)
	} else {
		slog.Warn("同期が失敗しました",
			"platform", result.Platform,
			"user_id", account.UserID,
			"error_kind", string(result.ErrorKind),
			"error", result.Error,
			"duration_ms", duration.Milliseconds(),
		)
	}

	if d.metrics != nil {
		d.metrics.ObserveSync(result.Platform, result, duration)
	}

	return result
}

func (d *Dispatcher) dispatch(ctx context.Context, platformName string, account model.Account) model.SyncResult {
	adapter, serr := d.registry.Resolve(platformName)
	if serr != nil {
		return model.NewFailureResult(platformName, serr)
	}

	// アダプタ呼び出し前のスキーム検証。不足時はアダプタを起動しない。
	if serr := model.ValidateScheme(account, adapter.Scheme()); serr != nil {
		return model.NewFailureResult(adapter.Platform(), serr)
	}

	result, err := d.invoke(ctx, adapter, account)
	if err != nil {
		return model.FailureResultFromError(adapter.Platform(), err)
	}
	return result
}

// invoke はアダプタをrecover境界とタイムアウト付きで実行する。
// panicはエラーに変換され、呼び出し元で失敗結果になる。
func (d *Dispatcher) invoke(ctx context.Context, adapter platform.Adapter, account model.Account) (result model.SyncResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("アダプタがpanicしました",
				"platform", adapter.Platform(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = model.NewFetchError(fmt.Sprintf("Adapter panic: %v", r), nil)
		}
	}()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	return adapter.Sync(ctx, account, d.sink)
}
