package platform

import (
	"context"
	"time"
)

// APIResult はプラットフォームAPIのHTTPステータスに基づく結果分類。
type APIResult int

const (
	// APIResultOK は取得成功（2xx）。
	APIResultOK APIResult = iota
	// APIResultAuthError は認証エラー（401/403）。リトライせず資格情報エラーとする。
	APIResultAuthError
	// APIResultNotFound は対象不在（404/410）。リトライ対象外。
	APIResultNotFound
	// APIResultRateLimited はレート制限（429）。リトライ対象。
	APIResultRateLimited
	// APIResultTransient は一時的障害（5xx）。リトライ対象。
	APIResultTransient
	// APIResultUnknown は上記以外のステータス。
	APIResultUnknown
)

const (
	// maxAttempts は同期呼び出し内でのAPIリトライ上限。
	maxAttempts = 3
	// initialRetryDelay は初回リトライまでの待機時間。以降は2倍ずつ増加する。
	initialRetryDelay = 500 * time.Millisecond
)

// ClassifyHTTPStatus はHTTPステータスコードをAPI結果に分類する。
func ClassifyHTTPStatus(statusCode int) APIResult {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return APIResultOK
	case statusCode == 401 || statusCode == 403:
		return APIResultAuthError
	case statusCode == 404 || statusCode == 410:
		return APIResultNotFound
	case statusCode == 429:
		return APIResultRateLimited
	case statusCode >= 500:
		return APIResultTransient
	default:
		return APIResultUnknown
	}
}

// Retryable はAPI結果が同期呼び出し内リトライの対象かを返す。
// 認証エラーと対象不在はリトライしても結果が変わらないため対象外。
func Retryable(result APIResult) bool {
	return result == APIResultRateLimited || result == APIResultTransient
}

// Retry はfnを最大maxAttempts回まで実行する。
// fnがretryable=falseを返した時点、または成功した時点で打ち切る。
// 待機は指数バックオフ（500ms、1s、2s...）で、コンテキストのキャンセルを尊重する。
func Retry(ctx context.Context, fn func() (retryable bool, err error)) error {
	delay := initialRetryDelay
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		retryable, err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}

	return lastErr
}
