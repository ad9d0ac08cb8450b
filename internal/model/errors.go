package model

import "fmt"

// SyncErrorKind は同期エラーの分類を表す。
// 呼び出し側（スケジューラ、メトリクス）が文字列照合なしで分岐できるようにする。
type SyncErrorKind string

const (
	// SyncErrorKindCredential は資格情報の不足・不正。自動リトライの対象外。
	SyncErrorKindCredential SyncErrorKind = "credential"
	// SyncErrorKindRefresh はトークンリフレッシュの恒久的失敗。再認可が必要。
	SyncErrorKindRefresh SyncErrorKind = "refresh"
	// SyncErrorKindFetch は外部API取得の失敗。一時的な可能性があり、バックオフの対象。
	SyncErrorKindFetch SyncErrorKind = "fetch"
	// SyncErrorKindPersist は永続化の失敗。
	SyncErrorKindPersist SyncErrorKind = "persist"
	// SyncErrorKindUnsupported は未登録プラットフォームの指定。
	SyncErrorKindUnsupported SyncErrorKind = "unsupported_platform"
)

// SyncError は同期処理の分類付きエラーを表す。
// Messageはそのまま SyncResult.Error としてユーザーに返せる形式を保つ。
type SyncError struct {
	Kind    SyncErrorKind
	Message string
	Err     error // 元エラー（あれば）
}

// Error はerrorインターフェースを実装する。
func (e *SyncError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap はerrors.Is/As連鎖のために元エラーを返す。
func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewMissingCredentialError は資格情報不足エラーを生成する。
// fieldは "access token" のような不足フィールドの英語名。
func NewMissingCredentialError(field string) *SyncError {
	return &SyncError{
		Kind:    SyncErrorKindCredential,
		Message: fmt.Sprintf("Missing %s", field),
	}
}

// NewCredentialError は資格情報エラーを任意メッセージで生成する。
func NewCredentialError(message string) *SyncError {
	return &SyncError{
		Kind:    SyncErrorKindCredential,
		Message: message,
	}
}

// NewUnsupportedPlatformError は未登録プラットフォームエラーを生成する。
func NewUnsupportedPlatformError(platform string) *SyncError {
	return &SyncError{
		Kind:    SyncErrorKindUnsupported,
		Message: fmt.Sprintf("Unsupported platform: %s", platform),
	}
}

// NewRefreshError はトークンリフレッシュの恒久的失敗エラーを生成する。
func NewRefreshError(message string, err error) *SyncError {
	return &SyncError{
		Kind:    SyncErrorKindRefresh,
		Message: message,
		Err:     err,
	}
}

// NewFetchError は外部API取得失敗エラーを生成する。
func NewFetchError(message string, err error) *SyncError {
	return &SyncError{
		Kind:    SyncErrorKindFetch,
		Message: message,
		Err:     err,
	}
}

// NewPersistError は永続化失敗エラーを生成する。
func NewPersistError(message string, err error) *SyncError {
	return &SyncError{
		Kind:    SyncErrorKindPersist,
		Message: message,
		Err:     err,
	}
}

// KindOf はエラーからSyncErrorKindを取り出す。
// SyncErrorでない場合はfetch扱いとする（外部要因の失敗とみなす）。
func KindOf(err error) SyncErrorKind {
	if se, ok := err.(*SyncError); ok {
		return se.Kind
	}
	return SyncErrorKindFetch
}
