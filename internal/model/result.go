package model

// SyncResult は1アカウントの同期結果を表す。
// バッチ同期では部分的な失敗が定常状態なので、失敗もこの構造体で表現し、
// エラーとしては伝播させない。
type SyncResult struct {
	Platform   string        `json:"platform"`
	Updated    bool          `json:"updated"`
	PostsCount int           `json:"posts_count"`
	Error      string        `json:"error,omitempty"`
	ErrorKind  SyncErrorKind `json:"error_kind,omitempty"`
}

// NewSuccessResult は成功結果を生成する。
func NewSuccessResult(platform string, postsCount int) SyncResult {
	return SyncResult{
		Platform:   platform,
		Updated:    true,
		PostsCount: postsCount,
	}
}

// NewFailureResult は失敗結果を生成する。
// SyncErrorのMessageをそのままErrorフィールドに載せる。
func NewFailureResult(platform string, err *SyncError) SyncResult {
	return SyncResult{
		Platform:  platform,
		Updated:   false,
		Error:     err.Message,
		ErrorKind: err.Kind,
	}
}

// FailureResultFromError は任意のエラーから失敗結果を生成する。
// SyncErrorでない場合はfetchエラーとして包む。
func FailureResultFromError(platform string, err error) SyncResult {
	if se, ok := err.(*SyncError); ok {
		return NewFailureResult(platform, se)
	}
	return NewFailureResult(platform, NewFetchError(err.Error(), err))
}
