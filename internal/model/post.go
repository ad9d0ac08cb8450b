package model

import "time"

// ParsedPost はアダプタが取得・正規化した未保存の投稿を表す。
// PostIDはプラットフォーム側の投稿識別子で、正規キーの一部になる。
// 欠損フィールドのデフォルト補完（カウント0、空URL等）はrecordパッケージが行う。
type ParsedPost struct {
	PostID   string
	Caption  string
	MediaURL string
	PostURL  string
	Likes    int
	Comments int
	PostedAt *time.Time
}

// Post は保存済みの投稿を表す。
// (UserID, Platform, PostID) が正規キーで、再同期時は上書き、削除はされない。
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Platform  string    `json:"platform"`
	AccountID string    `json:"account_id"`
	PostID    string    `json:"post_id"`
	Caption   string    `json:"caption"`
	MediaURL  string    `json:"media_url"`
	PostURL   string    `json:"post_url"`
	Likes     int       `json:"likes"`
	Comments  int       `json:"comments"`
	PostedAt  time.Time `json:"posted_at"`
	SyncedAt  time.Time `json:"synced_at"`
	CreatedAt time.Time `json:"created_at"`
}
