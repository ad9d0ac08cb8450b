// Package auth はプラットフォームトークンのリフレッシュ機能を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/hitoshi/socialsync/internal/model"
)

// refreshSkew は有効期限のこの時間前からリフレッシュを開始する。
// 同期処理の途中でトークンが切れるのを避けるためのマージン。
const refreshSkew = 5 * time.Minute

// TokenSaver はリフレッシュ後のトークンを永続化するインターフェース。
// リフレッシュトークンがローテーションされるプラットフォームがあるため、
// 新しいリフレッシュトークンも必ず保存する。
type TokenSaver interface {
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error
}

// TokenRefresher は同期前にアクセストークンの有効性を保証するインターフェース。
// 戻り値は有効なトークンを持つ新しいアカウント値（元の値は変更しない）。
type TokenRefresher interface {
	Refresh(ctx context.Context, account model.Account) (model.Account, *model.SyncError)
}

// IdentityRefresher は有効期限のないトークンを使うプラットフォーム向けのno-op実装。
type IdentityRefresher struct{}

// Refresh はアカウントをそのまま返す。
func (IdentityRefresher) Refresh(ctx context.Context, account model.Account) (model.Account, *model.SyncError) {
	return account, nil
}

// OAuthRefresher はOAuth 2.0リフレッシュトークンフローによるTokenRefresher実装。
type OAuthRefresher struct {
	config *oauth2.Config
	saver  TokenSaver
	now    func() time.Time // テスト用に差し替え可能

	// tokenSource はテストでoauth2エンドポイントへの実通信を避けるためのフック。
	// nilの場合はconfig.TokenSourceを使用する。
	tokenSource func(ctx context.Context, token *oauth2.Token) oauth2.TokenSource
}

// NewOAuthRefresher はOAuthRefresherの新しいインスタンスを生成する。
// saverはnil可（その場合ローテーション後のトークンは永続化されない）。
func NewOAuthRefresher(config *oauth2.Config, saver TokenSaver) *OAuthRefresher {
	return &OAuthRefresher{
		config: config,
		saver:  saver,
		now:    time.Now,
	}
}

// Refresh はアクセストークンが失効済みまたは失効間近の場合にリフレッシュする。
// 有効なトークンを持つ場合はネットワーク呼び出しなしでそのまま返す。
// 恒久的な失敗（invalid_grant等）はrefreshエラー、一時的な失敗はfetchエラーに分類する。
func (r *OAuthRefresher) Refresh(ctx context.Context, account model.Account) (model.Account, *model.SyncError) {
	if account.AccessToken != "" && !r.needsRefresh(account) {
		return account, nil
	}

	if account.RefreshToken == "" {
		return account, model.NewMissingCredentialError("refresh token")
	}

	current := &oauth2.Token{
		AccessToken:  account.AccessToken,
		RefreshToken: account.RefreshToken,
	}
	if account.TokenExpiresAt != nil {
		current.Expiry = *account.TokenExpiresAt
	} else {
		// 有効期限不明のトークンは失効済みとして扱い、必ずリフレッシュさせる
		current.Expiry = r.now().Add(-time.Hour)
	}

	fresh, err := r.newTokenSource(ctx, current).Token()
	if err != nil {
		if IsPermanentRefreshError(err) {
			slog.Warn("トークンリフレッシュが恒久的に失敗しました",
				"account_id", account.ID,
				"platform", account.Platform,
				"error", err,
			)
			return account, model.NewRefreshError(fmt.Sprintf("Failed to refresh access token: %v", err), err)
		}
		return account, model.NewFetchError(fmt.Sprintf("Token refresh request failed: %v", err), err)
	}

	refreshed := account
	refreshed.AccessToken = fresh.AccessToken
	if !fresh.Expiry.IsZero() {
		expiry := fresh.Expiry
		refreshed.TokenExpiresAt = &expiry
	}
	// リフレッシュトークンのローテーション: 新しい値が返された場合のみ差し替える
	if fresh.RefreshToken != "" {
		refreshed.RefreshToken = fresh.RefreshToken
	}

	if r.saver != nil {
		if err := r.saver.UpdateTokens(ctx, account.ID, refreshed.AccessToken, refreshed.RefreshToken, refreshed.TokenExpiresAt); err != nil {
			return account, model.NewPersistError(fmt.Sprintf("Failed to save refreshed tokens: %v", err), err)
		}
	}

	slog.Info("アクセストークンをリフレッシュしました",
		"account_id", account.ID,
		"platform", account.Platform,
	)

	return refreshed, nil
}

// needsRefresh は有効期限がスキューウィンドウ内に入っているかを返す。
func (r *OAuthRefresher) needsRefresh(account model.Account) bool {
	if account.TokenExpiresAt == nil {
		// 有効期限不明はリフレッシュ対象とする
		return true
	}
	return account.TokenExpiresAt.Before(r.now().Add(refreshSkew))
}

// newTokenSource はoauth2のTokenSourceを生成する。
func (r *OAuthRefresher) newTokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	if r.tokenSource != nil {
		return r.tokenSource(ctx, token)
	}
	return r.config.TokenSource(ctx, token)
}

// permanentRefreshMarkers はリトライしても回復しないリフレッシュ失敗を示す文字列。
// OAuthプロバイダのエラーレスポンスに含まれるerrorコードおよび説明文。
var permanentRefreshMarkers = []string{
	"invalid_grant",
	"invalid_client",
	"unauthorized_client",
	"token has been expired or revoked",
	"revoked",
}

// IsPermanentRefreshError はリフレッシュ失敗が恒久的（再認可が必要）かを判定する。
// 恒久的な失敗を一時的エラーとしてリトライし続けると、プロバイダ側で
// アカウントがロックされる恐れがあるため、この判定で早期にneeds_reauthへ送る。
func IsPermanentRefreshError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range permanentRefreshMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
