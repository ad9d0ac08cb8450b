package model

import "time"

// ParsedProfile はアダプタが取得・正規化した未保存のプロフィールスナップショット。
// 保存時のID付与・タイムスタンプ設定はrecordパッケージが行う。
type ParsedProfile struct {
	Username     string
	DisplayName  string
	Bio          string
	AvatarURL    string
	Followers    int
	Following    int
	PostsCount   int
	ProfileURL   string
}

// Profile は保存済みのプロフィールスナップショットを表す。
// (UserID, Platform, AccountID) が正規キーで、同期のたびに上書きされる。
type Profile struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Platform    string    `json:"platform"`
	AccountID   string    `json:"account_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	AvatarURL   string    `json:"avatar_url"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	PostsCount  int       `json:"posts_count"`
	ProfileURL  string    `json:"profile_url"`
	SyncedAt    time.Time `json:"synced_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
