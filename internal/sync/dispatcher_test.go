package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/socialsync/internal/model"
	"github.com/hitoshi/socialsync/internal/platform"
)

// fakeAdapter はテスト用のアダプタ実装。
type fakeAdapter struct {
	platform string
	scheme   model.AuthScheme
	syncFunc func(ctx context.Context, account model.Account, sink platform.Sink) (model.SyncResult, error)
	calls    int
}

func (f *fakeAdapter) Platform() string         { return f.platform }
func (f *fakeAdapter) Scheme() model.AuthScheme { return f.scheme }
func (f *fakeAdapter) Sync(ctx context.Context, account model.Account, sink platform.Sink) (model.SyncResult, error) {
	f.calls++
	if f.syncFunc != nil {
		return f.syncFunc(ctx, account, sink)
	}
	return model.NewSuccessResult(f.platform, 3), nil
}

// fakeSink はテスト用のSink実装。
type fakeSink struct{}

func (f *fakeSink) UpsertProfile(ctx context.Context, account model.Account, profile model.ParsedProfile) error {
	return nil
}

func (f *fakeSink) UpsertPosts(ctx context.Context, account model.Account, posts []model.ParsedPost) (int, error) {
	return len(posts), nil
}

// fakeMetrics はテスト用のMetrics実装。
type fakeMetrics struct {
	observations []model.SyncResult
}

func (f *fakeMetrics) ObserveSync(platform string, result model.SyncResult, duration time.Duration) {
	f.observations = append(f.observations, result)
}

func tokenAccount() model.Account {
	return model.Account{UserID: "user-1", Platform: "instagram", AccessToken: "tok"}
}

// TestDispatch_Success は正常系の同期を検証する。
func TestDispatch_Success(t *testing.T) {
	adapter := &fakeAdapter{platform: "instagram", scheme: model.AuthSchemeToken}
	metrics := &fakeMetrics{}
	d := NewDispatcher(platform.NewRegistry(adapter), &fakeSink{}, 0, metrics)

	result := d.Dispatch(context.Background(), "instagram", tokenAccount())

	if !result.Updated || result.PostsCount != 3 {
		t.Errorf("result = %+v, want updated with 3 posts", result)
	}
	if adapter.calls != 1 {
		t.Errorf("adapter calls = %d, want 1", adapter.calls)
	}
	if len(metrics.observations) != 1 {
		t.Errorf("metrics observations = %d, want 1", len(metrics.observations))
	}
}

// TestDispatch_UnsupportedPlatform は未登録プラットフォームの失敗結果を検証する。
func TestDispatch_UnsupportedPlatform(t *testing.T) {
	d := NewDispatcher(platform.NewRegistry(), &fakeSink{}, 0, nil)

	result := d.Dispatch(context.Background(), "myspace", tokenAccount())

	if result.Updated {
		t.Error("Updated = true, want false")
	}
	if result.Error != "Unsupported platform: myspace" {
		t.Errorf("Error = %q, want %q", result.Error, "Unsupported platform: myspace")
	}
	if result.ErrorKind != model.SyncErrorKindUnsupported {
		t.Errorf("ErrorKind = %q, want %q", result.ErrorKind, model.SyncErrorKindUnsupported)
	}
}

// TestDispatch_SchemeMismatch はスキーム不足時にアダプタが起動しないことを検証する。
func TestDispatch_SchemeMismatch(t *testing.T) {
	adapter := &fakeAdapter{platform: "opensea", scheme: model.AuthSchemeWallet}
	d := NewDispatcher(platform.NewRegistry(adapter), &fakeSink{}, 0, nil)

	// トークンしか持たないアカウントでウォレットスキームのアダプタを呼ぶ
	result := d.Dispatch(context.Background(), "opensea", tokenAccount())

	if result.Error != "Missing wallet address" {
		t.Errorf("Error = %q, want %q", result.Error, "Missing wallet address")
	}
	if adapter.calls != 0 {
		t.Errorf("adapter calls = %d, want 0 (rejected before invocation)", adapter.calls)
	}
}

// TestDispatch_AdapterError はアダプタのエラーが失敗結果に変換されることを検証する。
func TestDispatch_AdapterError(t *testing.T) {
	adapter := &fakeAdapter{
		platform: "instagram",
		scheme:   model.AuthSchemeToken,
		syncFunc: func(ctx context.Context, account model.Account, sink platform.Sink) (model.SyncResult, error) {
			return model.SyncResult{}, model.NewFetchError("platform API returned status 503", nil)
		},
	}
	d := NewDispatcher(platform.NewRegistry(adapter), &fakeSink{}, 0, nil)

	result := d.Dispatch(context.Background(), "instagram", tokenAccount())

	if result.Updated {
		t.Error("Updated = true, want false")
	}
	if result.ErrorKind != model.SyncErrorKindFetch {
		t.Errorf("ErrorKind = %q, want %q", result.ErrorKind, model.SyncErrorKindFetch)
	}
}

// TestDispatch_AdapterPanic はアダプタのpanicが失敗結果に変換されることを検証する。
func TestDispatch_AdapterPanic(t *testing.T) {
	adapter := &fakeAdapter{
		platform: "instagram",
		scheme:   model.AuthSchemeToken,
		syncFunc: func(ctx context.Context, account model.Account, sink platform.Sink) (model.SyncResult, error) {
			panic("nil pointer dereference in parser")
		},
	}
	d := NewDispatcher(platform.NewRegistry(adapter), &fakeSink{}, 0, nil)

	result := d.Dispatch(context.Background(), "instagram", tokenAccount())

	if result.Updated {
		t.Error("Updated = true, want false")
	}
	if result.ErrorKind != model.SyncErrorKindFetch {
		t.Errorf("ErrorKind = %q, want %q", result.ErrorKind, model.SyncErrorKindFetch)
	}
	if result.Error == "" {
		t.Error("Error should describe the panic")
	}
}

// TestDispatch_Timeout はタイムアウトがアダプタのコンテキストに伝わることを検証する。
func TestDispatch_Timeout(t *testing.T) {
	adapter := &fakeAdapter{
		platform: "instagram",
		scheme:   model.AuthSchemeToken,
		syncFunc: func(ctx context.Context, account model.Account, sink platform.Sink) (model.SyncResult, error) {
			select {
			case <-ctx.Done():
				return model.SyncResult{}, model.NewFetchError("request failed: "+ctx.Err().Error(), ctx.Err())
			case <-time.After(5 * time.Second):
				return model.NewSuccessResult("instagram", 0), nil
			}
		},
	}
	d := NewDispatcher(platform.NewRegistry(adapter), &fakeSink{}, 10*time.Millisecond, nil)

	result := d.Dispatch(context.Background(), "instagram", tokenAccount())

	if result.Updated {
		t.Error("Updated = true, want false (timed out)")
	}
	if result.ErrorKind != model.SyncErrorKindFetch {
		t.Errorf("ErrorKind = %q, want %q", result.ErrorKind, model.SyncErrorKindFetch)
	}
}

// TestDispatch_NonSyncError はSyncError以外のエラーもfetch結果になることを検証する。
func TestDispatch_NonSyncError(t *testing.T) {
	adapter := &fakeAdapter{
		platform: "instagram",
		scheme:   model.AuthSchemeToken,
		syncFunc: func(ctx context.Context, account model.Account, sink platform.Sink) (model.SyncResult, error) {
			return model.SyncResult{}, errors.New("unexpected EOF")
		},
	}
	d := NewDispatcher(platform.NewRegistry(adapter), &fakeSink{}, 0, nil)

	result := d.Dispatch(context.Background(), "instagram", tokenAccount())

	if result.ErrorKind != model.SyncErrorKindFetch {
		t.Errorf("ErrorKind = %q, want %q", result.ErrorKind, model.SyncErrorKindFetch)
	}
	if result.Error != "unexpected EOF" {
		t.Errorf("Error = %q, want %q", result.Error, "unexpected EOF")
	}
}
