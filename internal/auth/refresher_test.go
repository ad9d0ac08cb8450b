package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/hitoshi/socialsync/internal/model"
)

// fakeTokenSource はテスト用のoauth2.TokenSource実装。
type fakeTokenSource struct {
	token *oauth2.Token
	err   error
}

func (f *fakeTokenSource) Token() (*oauth2.Token, error) {
	return f.token, f.err
}

// fakeSaver はテスト用のTokenSaver実装。
type fakeSaver struct {
	saveFunc func(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error
	calls    int
	savedID  string
	savedAT  string
	savedRT  string
}

func (f *fakeSaver) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error {
	f.calls++
	f.savedID = id
	f.savedAT = accessToken
	f.savedRT = refreshToken
	if f.saveFunc != nil {
		return f.saveFunc(ctx, id, accessToken, refreshToken, expiresAt)
	}
	return nil
}

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestRefresher(source *fakeTokenSource, saver TokenSaver) *OAuthRefresher {
	r := NewOAuthRefresher(&oauth2.Config{ClientID: "id", ClientSecret: "secret"}, saver)
	r.now = func() time.Time { return testNow }
	r.tokenSource = func(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
		return source
	}
	return r
}

// TestOAuthRefresher_ValidTokenPassesThrough は有効なトークンがリフレッシュされないことを検証する。
func TestOAuthRefresher_ValidTokenPassesThrough(t *testing.T) {
	source := &fakeTokenSource{err: errors.New("should not be called")}
	r := newTestRefresher(source, nil)

	expires := testNow.Add(time.Hour)
	account := model.Account{
		ID:             "acct-1",
		AccessToken:    "valid-token",
		RefreshToken:   "ref",
		TokenExpiresAt: &expires,
	}

	got, serr := r.Refresh(context.Background(), account)
	if serr != nil {
		t.Fatalf("Refresh() error = %v, want nil", serr)
	}
	if got.AccessToken != "valid-token" {
		t.Errorf("AccessToken = %q, want unchanged", got.AccessToken)
	}
}

// TestOAuthRefresher_RefreshesExpiringToken はスキューウィンドウ内のトークンがリフレッシュされることを検証する。
func TestOAuthRefresher_RefreshesExpiringToken(t *testing.T) {
	newExpiry := testNow.Add(time.Hour)
	source := &fakeTokenSource{token: &oauth2.Token{
		AccessToken: "new-token",
		Expiry:      newExpiry,
	}}
	saver := &fakeSaver{}
	r := newTestRefresher(source, saver)

	expires := testNow.Add(time.Minute) // スキュー(5分)以内
	account := model.Account{
		ID:             "acct-1",
		Platform:       "youtube",
		AccessToken:    "old-token",
		RefreshToken:   "ref-token",
		TokenExpiresAt: &expires,
	}

	got, serr := r.Refresh(context.Background(), account)
	if serr != nil {
		t.Fatalf("Refresh() error = %v, want nil", serr)
	}
	if got.AccessToken != "new-token" {
		t.Errorf("AccessToken = %q, want %q", got.AccessToken, "new-token")
	}
	// ローテーションなしの場合は元のリフレッシュトークンを維持
	if got.RefreshToken != "ref-token" {
		t.Errorf("RefreshToken = %q, want %q", got.RefreshToken, "ref-token")
	}
	if saver.calls != 1 {
		t.Errorf("saver calls = %d, want 1", saver.calls)
	}
	if saver.savedAT != "new-token" {
		t.Errorf("saved access token = %q, want %q", saver.savedAT, "new-token")
	}
	// 元のアカウント値は変更されない
	if account.AccessToken != "old-token" {
		t.Error("original account was mutated")
	}
}

// TestOAuthRefresher_RotatedRefreshTokenPersisted はローテーションされた
// リフレッシュトークンが採用・永続化されることを検証する。
func TestOAuthRefresher_RotatedRefreshTokenPersisted(t *testing.T) {
	source := &fakeTokenSource{token: &oauth2.Token{
		AccessToken:  "new-token",
		RefreshToken: "rotated-ref",
		Expiry:       testNow.Add(time.Hour),
	}}
	saver := &fakeSaver{}
	r := newTestRefresher(source, saver)

	account := model.Account{
		ID:           "acct-1",
		RefreshToken: "old-ref",
	}

	got, serr := r.Refresh(context.Background(), account)
	if serr != nil {
		t.Fatalf("Refresh() error = %v, want nil", serr)
	}
	if got.RefreshToken != "rotated-ref" {
		t.Errorf("RefreshToken = %q, want %q", got.RefreshToken, "rotated-ref")
	}
	if saver.savedRT != "rotated-ref" {
		t.Errorf("saved refresh token = %q, want %q", saver.savedRT, "rotated-ref")
	}
}

// TestOAuthRefresher_MissingRefreshToken はリフレッシュトークン欠損時の資格情報エラーを検証する。
func TestOAuthRefresher_MissingRefreshToken(t *testing.T) {
	r := newTestRefresher(&fakeTokenSource{}, nil)

	account := model.Account{ID: "acct-1"} // トークン類が全て空

	_, serr := r.Refresh(context.Background(), account)
	if serr == nil {
		t.Fatal("Refresh() error = nil, want credential error")
	}
	if serr.Kind != model.SyncErrorKindCredential {
		t.Errorf("Kind = %q, want %q", serr.Kind, model.SyncErrorKindCredential)
	}
	if serr.Message != "Missing refresh token" {
		t.Errorf("Message = %q, want %q", serr.Message, "Missing refresh token")
	}
}

// TestOAuthRefresher_PermanentFailure は恒久的失敗がrefreshエラーに分類されることを検証する。
func TestOAuthRefresher_PermanentFailure(t *testing.T) {
	source := &fakeTokenSource{err: errors.New(`oauth2: "invalid_grant" "Token has been expired or revoked."`)}
	r := newTestRefresher(source, nil)

	account := model.Account{ID: "acct-1", RefreshToken: "dead-ref"}

	_, serr := r.Refresh(context.Background(), account)
	if serr == nil {
		t.Fatal("Refresh() error = nil, want refresh error")
	}
	if serr.Kind != model.SyncErrorKindRefresh {
		t.Errorf("Kind = %q, want %q", serr.Kind, model.SyncErrorKindRefresh)
	}
}

// TestOAuthRefresher_TransientFailure は一時的失敗がfetchエラーに分類されることを検証する。
func TestOAuthRefresher_TransientFailure(t *testing.T) {
	source := &fakeTokenSource{err: errors.New("connection timeout")}
	r := newTestRefresher(source, nil)

	account := model.Account{ID: "acct-1", RefreshToken: "ref"}

	_, serr := r.Refresh(context.Background(), account)
	if serr == nil {
		t.Fatal("Refresh() error = nil, want fetch error")
	}
	if serr.Kind != model.SyncErrorKindFetch {
		t.Errorf("Kind = %q, want %q", serr.Kind, model.SyncErrorKindFetch)
	}
}

// TestIsPermanentRefreshError は恒久的失敗の判定を検証する。
func TestIsPermanentRefreshError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "invalid_grant", err: errors.New("oauth2: invalid_grant"), want: true},
		{name: "invalid_client", err: errors.New("oauth2: invalid_client"), want: true},
		{name: "unauthorized_client", err: errors.New("unauthorized_client"), want: true},
		{name: "expired or revoked", err: errors.New("Token has been expired or revoked."), want: true},
		{name: "ネットワークエラー", err: errors.New("dial tcp: connection refused"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanentRefreshError(tt.err); got != tt.want {
				t.Errorf("IsPermanentRefreshError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// TestIdentityRefresher はno-op実装がアカウントをそのまま返すことを検証する。
func TestIdentityRefresher(t *testing.T) {
	account := model.Account{ID: "acct-1", AccessToken: "tok"}

	got, serr := IdentityRefresher{}.Refresh(context.Background(), account)
	if serr != nil {
		t.Fatalf("Refresh() error = %v, want nil", serr)
	}
	if got.AccessToken != "tok" {
		t.Errorf("AccessToken = %q, want unchanged", got.AccessToken)
	}
}
