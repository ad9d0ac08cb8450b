// Package record は正規化済みレコードの保存処理を提供する。
package record

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/socialsync/internal/model"
	"github.com/hitoshi/socialsync/internal/repository"
	"github.com/hitoshi/socialsync/internal/security"
)

// UpsertService はアダプタが正規化したプロフィール・投稿を保存する。
// platform.Sinkの本番実装。キャプションのサニタイズ、欠損フィールドの
// デフォルト補完、ID付与を行った上でリポジトリにupsertする。
type UpsertService struct {
	profileRepo repository.ProfileRepository
	postRepo    repository.PostRepository
	sanitizer   security.ContentSanitizerService
	now         func() time.Time // テスト用に差し替え可能
}

// NewUpsertService はUpsertServiceの新しいインスタンスを生成する。
func NewUpsertService(
	profileRepo repository.ProfileRepository,
	postRepo repository.PostRepository,
	sanitizer security.ContentSanitizerService,
) *UpsertService {
	return &UpsertService{
		profileRepo: profileRepo,
		postRepo:    postRepo,
		sanitizer:   sanitizer,
		now:         time.Now,
	}
}

// UpsertProfile はプロフィールスナップショットを保存する。
// (user_id, platform, account_id)キーで冪等にupsertされ、同一入力の
// 再実行は行数を増やさない。
func (s *UpsertService) UpsertProfile(ctx context.Context, account model.Account, parsed model.ParsedProfile) error {
	now := s.now()

	profile := &model.Profile{
		ID:          uuid.New().String(),
		UserID:      account.UserID,
		Platform:    account.Platform,
		AccountID:   account.AccountID,
		Username:    parsed.Username,
		DisplayName: parsed.DisplayName,
		Bio:         s.sanitizer.Sanitize(parsed.Bio),
		AvatarURL:   parsed.AvatarURL,
		Followers:   clampNonNegative(parsed.Followers),
		Following:   clampNonNegative(parsed.Following),
		PostsCount:  clampNonNegative(parsed.PostsCount),
		ProfileURL:  parsed.ProfileURL,
		SyncedAt:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.profileRepo.Upsert(ctx, profile); err != nil {
		slog.Error("プロフィールの保存でエラー",
			"user_id", account.UserID,
			"platform", account.Platform,
			"error", err,
		)
		return model.NewPersistError(fmt.Sprintf("Failed to save profile: %v", err), err)
	}

	return nil
}

// UpsertPosts は正規化済み投稿を保存する。
// (user_id, platform, post_id)キーで冪等にupsertされ、投稿は上書きされるだけで
// 削除はされない。upsertした件数を返す。
// 空リストで呼ばれないことが契約だが、呼ばれた場合も安全に0を返す。
func (s *UpsertService) UpsertPosts(ctx context.Context, account model.Account, parsed []model.ParsedPost) (int, error) {
	if len(parsed) == 0 {
		return 0, nil
	}

	now := s.now()

	posts := make([]*model.Post, 0, len(parsed))
	for _, p := range parsed {
		post := &model.Post{
			ID:        uuid.New().String(),
			UserID:    account.UserID,
			Platform:  account.Platform,
			AccountID: account.AccountID,
			PostID:    p.PostID,
			Caption:   s.sanitizer.Sanitize(p.Caption),
			MediaURL:  p.MediaURL,
			PostURL:   p.PostURL,
			Likes:     clampNonNegative(p.Likes),
			Comments:  clampNonNegative(p.Comments),
			SyncedAt:  now,
			CreatedAt: now,
		}

		// posted_at未設定の場合は同期時刻を代用する
		if p.PostedAt != nil {
			post.PostedAt = *p.PostedAt
		} else {
			post.PostedAt = now
		}

		posts = append(posts, post)
	}

	count, err := s.postRepo.UpsertMany(ctx, posts)
	if err != nil {
		slog.Error("投稿の保存でエラー",
			"user_id", account.UserID,
			"platform", account.Platform,
			"post_count", len(posts),
			"error", err,
		)
		return 0, model.NewPersistError(fmt.Sprintf("Failed to save posts: %v", err), err)
	}

	slog.Info("投稿upsert完了",
		"user_id", account.UserID,
		"platform", account.Platform,
		"upserted", count,
	)

	return count, nil
}

// clampNonNegative は負のカウント値を0に丸める。
// プラットフォームAPIが欠損を-1で表現するケースへの防御。
func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
