package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/socialsync/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// Upsert はプロフィールを(user_id, platform, account_id)キーで冪等にUPSERTする。
// 既存行がある場合はスナップショットを上書きし、created_atは維持する。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, profile *model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, user_id, platform, account_id, username, display_name,
		                       bio, avatar_url, followers, following, posts_count,
		                       profile_url, synced_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (user_id, platform, account_id) DO UPDATE SET
		    username = EXCLUDED.username,
		    display_name = EXCLUDED.display_name,
		    bio = EXCLUDED.bio,
		    avatar_url = EXCLUDED.avatar_url,
		    followers = EXCLUDED.followers,
		    following = EXCLUDED.following,
		    posts_count = EXCLUDED.posts_count,
		    profile_url = EXCLUDED.profile_url,
		    synced_at = EXCLUDED.synced_at,
		    updated_at = EXCLUDED.updated_at`,
		profile.ID, profile.UserID, profile.Platform, profile.AccountID,
		profile.Username, profile.DisplayName, profile.Bio, profile.AvatarURL,
		profile.Followers, profile.Following, profile.PostsCount,
		profile.ProfileURL, profile.SyncedAt, profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("プロフィールのupsertに失敗しました: %w", err)
	}
	return nil
}

// ListByUserID はユーザーの全プラットフォームのプロフィール一覧を返す。
func (r *PostgresProfileRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, platform, account_id, username, display_name,
		        bio, avatar_url, followers, following, posts_count,
		        profile_url, synced_at, created_at, updated_at
		 FROM profiles
		 WHERE user_id = $1
		 ORDER BY platform ASC, account_id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィール一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var profiles []*model.Profile
	for rows.Next() {
		p := &model.Profile{}
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.Platform, &p.AccountID, &p.Username, &p.DisplayName,
			&p.Bio, &p.AvatarURL, &p.Followers, &p.Following, &p.PostsCount,
			&p.ProfileURL, &p.SyncedAt, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("プロフィールの読み取りに失敗しました: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("プロフィール一覧の走査に失敗しました: %w", err)
	}

	return profiles, nil
}

// DeleteOrphaned は連携解除済みアカウントに紐づくプロフィールを削除する。
// 対応するactive/needs_reauthなsocial_accounts行が存在しないプロフィールが対象。
func (r *PostgresProfileRepo) DeleteOrphaned(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM profiles p
		 WHERE NOT EXISTS (
		    SELECT 1 FROM social_accounts a
		    WHERE a.user_id = p.user_id
		      AND a.platform = p.platform
		      AND a.account_id = p.account_id
		      AND a.status != 'disconnected'
		 )`)
	if err != nil {
		return 0, fmt.Errorf("孤立プロフィールの削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
