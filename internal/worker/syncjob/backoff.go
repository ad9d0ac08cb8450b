package syncjob

import (
	"time"

	"github.com/hitoshi/socialsync/internal/model"
)

const (
	// initialBackoff は指数バックオフの初回遅延（30分）。
	initialBackoff = 30 * time.Minute
	// maxBackoff は指数バックオフの最大遅延（12時間）。
	maxBackoff = 12 * time.Hour
)

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回30分、2倍ずつ増加、最大12時間。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// ApplySuccess は同期成功時にアカウントの状態をリセットする。
// 連続エラー回数を0にし、エラーメッセージをクリアし、
// intervalに基づいてnext_sync_atを設定する。
func ApplySuccess(account *model.Account, interval time.Duration) {
	now := time.Now()
	account.ConsecutiveErrors = 0
	account.LastSyncError = ""
	account.LastSyncedAt = &now
	account.NextSyncAt = now.Add(interval)
	account.UpdatedAt = now
}

// ApplyBackoff は一時的な失敗（取得・保存エラー）にバックオフ戦略を適用する。
// 連続エラー回数をインクリメントし、指数バックオフでnext_sync_atを設定する。
func ApplyBackoff(account *model.Account, reason string) {
	account.ConsecutiveErrors++
	account.LastSyncError = reason
	delay := CalculateBackoff(account.ConsecutiveErrors - 1)
	account.NextSyncAt = time.Now().Add(delay)
	account.UpdatedAt = time.Now()
}

// ApplyNeedsReauth は再認証が必要な失敗でアカウントを退避させる。
// statusをneeds_reauthにすることで定期同期の対象から外れ、
// ユーザーが再連携するまで自動リトライされない。
func ApplyNeedsReauth(account *model.Account, reason string) {
	account.Status = model.AccountStatusNeedsReauth
	account.LastSyncError = reason
	account.UpdatedAt = time.Now()
}

// IsReauthKind は再認証退避の対象となるエラー種別かを判定する。
// 一時的でない失敗（資格情報・リフレッシュ・未対応プラットフォーム）は
// リトライしても回復しないため退避させる。
func IsReauthKind(kind model.SyncErrorKind) bool {
	switch kind {
	case model.SyncErrorKindCredential, model.SyncErrorKindRefresh, model.SyncErrorKindUnsupported:
		return true
	default:
		return false
	}
}
