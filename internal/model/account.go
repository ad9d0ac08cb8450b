// Package model はドメインモデルを定義する。
package model

import "time"

// AuthScheme はプラットフォームが要求する認証情報の種類を表す。
// 各アダプタはSchemeメソッドで自身の要求スキームを宣言し、
// ディスパッチャがアダプタ呼び出し前にValidateSchemeで検証する。
type AuthScheme string

const (
	// AuthSchemeToken はOAuthアクセストークンによる認証。
	AuthSchemeToken AuthScheme = "token"
	// AuthSchemeUsername はユーザー名のみの公開情報取得。
	AuthSchemeUsername AuthScheme = "username"
	// AuthSchemeWallet はウォレットアドレスによるオンチェーン照会。
	AuthSchemeWallet AuthScheme = "wallet"
	// AuthSchemeInstance はインスタンスURL + アクセストークンによる認証（連合型プラットフォーム）。
	AuthSchemeInstance AuthScheme = "instance"
	// AuthSchemeFeed はフィードURLによる公開フィード取得（ポッドキャストホスト等）。
	AuthSchemeFeed AuthScheme = "feed"
)

// AccountStatus はアカウントの同期スケジューリング状態を表す。
type AccountStatus string

const (
	// AccountStatusActive は定期同期の対象となるアクティブ状態。
	AccountStatusActive AccountStatus = "active"
	// AccountStatusNeedsReauth は認証情報の再取得が必要な状態。
	// 資格情報エラーおよびリフレッシュの恒久的失敗で遷移し、自動リトライされない。
	AccountStatusNeedsReauth AccountStatus = "needs_reauth"
	// AccountStatusDisconnected はユーザーが連携を解除した状態。
	AccountStatusDisconnected AccountStatus = "disconnected"
)

// Account は全プラットフォーム共通の資格情報エンベロープを表す。
// 認証フィールドは全認証スキームのスーパーセットであり、
// プラットフォームごとに必要なフィールドのみが設定される。
// 値として扱い、トークンリフレッシュ後は新しい値を生成する（インプレース更新しない）。
type Account struct {
	ID        string
	UserID    string
	Platform  string
	AccountID string // 1ユーザー1アカウントのプラットフォームでは空文字列

	// 認証フィールド（スキームごとのサブセットのみ設定される）
	Username       string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *time.Time
	InstanceURL    string
	WalletAddress  string

	// 同期スケジューリング状態（syncjobワーカーが管理する）
	Status            AccountStatus
	ConsecutiveErrors int
	LastSyncError     string
	NextSyncAt        time.Time
	LastSyncedAt      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TokenAuth はトークン認証スキームの資格情報ビュー。
type TokenAuth struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// UsernameAuth はユーザー名スキームの資格情報ビュー。
type UsernameAuth struct {
	Username string
}

// WalletAuth はウォレットスキームの資格情報ビュー。
type WalletAuth struct {
	Address string
}

// InstanceAuth はインスタンススキームの資格情報ビュー。
type InstanceAuth struct {
	AccessToken string
	InstanceURL string
}

// FeedAuth はフィードスキームの資格情報ビュー。
type FeedAuth struct {
	FeedURL string
}

// TokenAuth はトークン認証の資格情報を抽出する。
// アクセストークンが未設定の場合は資格情報エラーを返す。
func (a Account) TokenAuth() (TokenAuth, *SyncError) {
	if a.AccessToken == "" {
		return TokenAuth{}, NewMissingCredentialError("access token")
	}
	return TokenAuth{
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		ExpiresAt:    a.TokenExpiresAt,
	}, nil
}

// UsernameAuth はユーザー名スキームの資格情報を抽出する。
func (a Account) UsernameAuth() (UsernameAuth, *SyncError) {
	if a.Username == "" {
		return UsernameAuth{}, NewMissingCredentialError("username")
	}
	return UsernameAuth{Username: a.Username}, nil
}

// WalletAuth はウォレットスキームの資格情報を抽出する。
func (a Account) WalletAuth() (WalletAuth, *SyncError) {
	if a.WalletAddress == "" {
		return WalletAuth{}, NewMissingCredentialError("wallet address")
	}
	return WalletAuth{Address: a.WalletAddress}, nil
}

// InstanceAuth はインスタンススキームの資格情報を抽出する。
// インスタンスURLとアクセストークンの両方が必要。
func (a Account) InstanceAuth() (InstanceAuth, *SyncError) {
	if a.InstanceURL == "" {
		return InstanceAuth{}, NewMissingCredentialError("instance URL")
	}
	if a.AccessToken == "" {
		return InstanceAuth{}, NewMissingCredentialError("access token")
	}
	return InstanceAuth{
		AccessToken: a.AccessToken,
		InstanceURL: a.InstanceURL,
	}, nil
}

// FeedAuth はフィードスキームの資格情報を抽出する。
// フィードURLはInstanceURLフィールドに格納される。
func (a Account) FeedAuth() (FeedAuth, *SyncError) {
	if a.InstanceURL == "" {
		return FeedAuth{}, NewMissingCredentialError("feed URL")
	}
	return FeedAuth{FeedURL: a.InstanceURL}, nil
}

// ValidateScheme はアカウントが指定スキームの必須フィールドを満たすかを検証する。
// ディスパッチャがアダプタ呼び出し前に使用し、不足時は資格情報エラーを返す。
// ネットワーク呼び出しは一切行わない。
func ValidateScheme(a Account, scheme AuthScheme) *SyncError {
	switch scheme {
	case AuthSchemeToken:
		_, err := a.TokenAuth()
		return err
	case AuthSchemeUsername:
		_, err := a.UsernameAuth()
		return err
	case AuthSchemeWallet:
		_, err := a.WalletAuth()
		return err
	case AuthSchemeInstance:
		_, err := a.InstanceAuth()
		return err
	case AuthSchemeFeed:
		_, err := a.FeedAuth()
		return err
	default:
		return NewMissingCredentialError("credentials")
	}
}
