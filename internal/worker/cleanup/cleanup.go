// Package cleanup は孤立データの自動削除ジョブを提供する。
// 連携解除済みアカウントに紐づくプロフィールと投稿を日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// OrphanDeleter は孤立レコードの削除インターフェース。
// repository.ProfileRepository / PostRepositoryの部分集合として定義する。
type OrphanDeleter interface {
	DeleteOrphaned(ctx context.Context) (int64, error)
}

// CleanupJob は連携解除済みアカウントに紐づくデータの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	profiles OrphanDeleter
	posts    OrphanDeleter
	logger   *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(profiles, posts OrphanDeleter, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		profiles: profiles,
		posts:    posts,
		logger:   logger,
	}
}

// Run は連携解除済みアカウントに紐づくプロフィールと投稿を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	profileCount, err := j.profiles.DeleteOrphaned(ctx)
	if err != nil {
		j.logger.Error("孤立プロフィールの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("孤立プロフィールの削除に失敗: %w", err)
	}

	postCount, err := j.posts.DeleteOrphaned(ctx)
	if err != nil {
		j.logger.Error("孤立投稿の削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("孤立投稿の削除に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_profiles", profileCount),
		slog.Int64("deleted_posts", postCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
