package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/socialsync/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// UpsertMany は投稿を(user_id, platform, post_id)キーで冪等にUPSERTする。
// 同期は投稿を上書きするだけで削除はしない。全件を同一トランザクションで処理し、
// 途中で失敗した場合は1件もコミットしない。
func (r *PostgresPostRepo) UpsertMany(ctx context.Context, posts []*model.Post) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	count := 0
	for _, post := range posts {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO posts (id, user_id, platform, account_id, post_id, caption,
			                    media_url, post_url, likes, comments, posted_at,
			                    synced_at, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 ON CONFLICT (user_id, platform, post_id) DO UPDATE SET
			    caption = EXCLUDED.caption,
			    media_url = EXCLUDED.media_url,
			    post_url = EXCLUDED.post_url,
			    likes = EXCLUDED.likes,
			    comments = EXCLUDED.comments,
			    posted_at = EXCLUDED.posted_at,
			    synced_at = EXCLUDED.synced_at`,
			post.ID, post.UserID, post.Platform, post.AccountID, post.PostID,
			post.Caption, post.MediaURL, post.PostURL, post.Likes, post.Comments,
			post.PostedAt, post.SyncedAt, post.CreatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("投稿のupsertに失敗しました: %w", err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return count, nil
}

// ListByUser はユーザーの投稿一覧をposted_at降順で返す。
// platformが空でない場合はプラットフォームで絞り込む。
// cursorがゼロ値の場合は先頭から取得する。
func (r *PostgresPostRepo) ListByUser(ctx context.Context, userID, platform string, cursor time.Time, limit int) ([]*model.Post, error) {
	query := `SELECT id, user_id, platform, account_id, post_id, caption,
	                 media_url, post_url, likes, comments, posted_at,
	                 synced_at, created_at
	          FROM posts
	          WHERE user_id = $1`
	args := []any{userID}

	if platform != "" {
		args = append(args, platform)
		query += fmt.Sprintf(" AND platform = $%d", len(args))
	}
	if !cursor.IsZero() {
		args = append(args, cursor)
		query += fmt.Sprintf(" AND posted_at < $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY posted_at DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var posts []*model.Post
	for rows.Next() {
		p := &model.Post{}
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.Platform, &p.AccountID, &p.PostID, &p.Caption,
			&p.MediaURL, &p.PostURL, &p.Likes, &p.Comments, &p.PostedAt,
			&p.SyncedAt, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("投稿の読み取りに失敗しました: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿一覧の走査に失敗しました: %w", err)
	}

	return posts, nil
}

// DeleteOrphaned は連携解除済みアカウントに紐づく投稿を削除する。
func (r *PostgresPostRepo) DeleteOrphaned(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM posts p
		 WHERE NOT EXISTS (
		    SELECT 1 FROM social_accounts a
		    WHERE a.user_id = p.user_id
		      AND a.platform = p.platform
		      AND a.account_id = p.account_id
		      AND a.status != 'disconnected'
		 )`)
	if err != nil {
		return 0, fmt.Errorf("孤立投稿の削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
