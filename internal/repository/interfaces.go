// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/socialsync/internal/model"
)

// AccountRepository は連携アカウントの永続化インターフェース。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// ListByUserID はユーザーの連携アカウント一覧を返す。
	// 同期トリガー時の「このユーザーはどのアカウントを持つか」の入口になる。
	ListByUserID(ctx context.Context, userID string) ([]*model.Account, error)

	// ListDueForSync は同期対象のアカウントを取得する。
	// next_sync_at <= now() かつ status = 'active' のアカウントを
	// FOR UPDATE SKIP LOCKEDで排他的に取得する。
	ListDueForSync(ctx context.Context, limit int) ([]*model.Account, error)

	// UpdateSyncState はアカウントの同期状態を更新する。
	// status、consecutive_errors、last_sync_error、next_sync_at、last_synced_atを更新する。
	UpdateSyncState(ctx context.Context, account *model.Account) error

	// UpdateTokens はリフレッシュ後のトークンを永続化する。
	// リフレッシュトークンのローテーションに対応するため、refresh_tokenも上書きする。
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error
}

// ProfileRepository はプロフィールスナップショットの永続化インターフェース。
type ProfileRepository interface {
	// Upsert はプロフィールを(user_id, platform, account_id)キーで冪等にUPSERTする。
	Upsert(ctx context.Context, profile *model.Profile) error

	// ListByUserID はユーザーの全プラットフォームのプロフィール一覧を返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Profile, error)

	// DeleteOrphaned は連携解除済みアカウントに紐づくプロフィールを削除する。
	// 削除件数を返す。
	DeleteOrphaned(ctx context.Context) (int64, error)
}

// PostRepository は投稿の永続化インターフェース。
type PostRepository interface {
	// UpsertMany は投稿を(user_id, platform, post_id)キーで冪等にUPSERTする。
	// 同期は投稿を上書きするだけで削除はしない。upsertした件数を返す。
	UpsertMany(ctx context.Context, posts []*model.Post) (int, error)

	// ListByUser はユーザーの投稿一覧をposted_at降順で返す。
	// platformが空でない場合はプラットフォームで絞り込む。
	// cursorがゼロ値の場合は先頭から取得する。
	ListByUser(ctx context.Context, userID, platform string, cursor time.Time, limit int) ([]*model.Post, error)

	// DeleteOrphaned は連携解除済みアカウントに紐づく投稿を削除する。
	// 削除件数を返す。
	DeleteOrphaned(ctx context.Context) (int64, error)
}
