package podcast

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/socialsync/internal/model"
	"github.com/hitoshi/socialsync/internal/platform"
)

// maxEpisodes は1回の同期で取得するエピソードの上限。
const maxEpisodes = 50

// URLValidator はユーザー指定のフィードURLの事前検証インターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Adapter はポッドキャストのプラットフォームアダプタ。
// フィードURL（または番組ページURL）からRSSを取得し、番組情報をプロフィール、
// エピソードを投稿として正規化する。購読者数は公開されないためフォロワー数は0になる。
type Adapter struct {
	client    *platform.Client
	validator URLValidator
	parser    *gofeed.Parser
}

// New はAdapterの新しいインスタンスを生成する。
func New(doer platform.HTTPDoer, validator URLValidator) *Adapter {
	return &Adapter{
		client:    platform.NewClient(doer),
		validator: validator,
		parser:    gofeed.NewParser(),
	}
}

// Platform はプラットフォーム識別子を返す。
func (a *Adapter) Platform() string { return "podcast" }

// Scheme は要求する認証スキームを返す。
func (a *Adapter) Scheme() model.AuthScheme { return model.AuthSchemeFeed }

// Sync はフィードを取得・パースしてシンクに保存する。
func (a *Adapter) Sync(ctx context.Context, account model.Account, sink platform.Sink) (model.SyncResult, error) {
	auth, serr := account.FeedAuth()
	if serr != nil {
		return model.NewFailureResult(a.Platform(), serr), nil
	}

	if a.validator != nil {
		if err := a.validator.ValidateURL(auth.FeedURL); err != nil {
			return model.NewFailureResult(a.Platform(),
				model.NewCredentialError(fmt.Sprintf("Invalid feed URL: %v", err))), nil
		}
	}

	feedURL, body, serr := detectFeedURL(ctx, a.client, auth.FeedURL)
	if serr != nil {
		return model.SyncResult{}, serr
	}

	feed, err := a.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return model.SyncResult{}, model.NewFetchError(fmt.Sprintf("Failed to parse podcast feed: %v", err), err)
	}

	profile := model.ParsedProfile{
		DisplayName: feed.Title,
		Bio:         feed.Description,
		PostsCount:  len(feed.Items),
		ProfileURL:  feed.Link,
	}
	if feed.Image != nil {
		profile.AvatarURL = feed.Image.URL
	}
	if profile.ProfileURL == "" {
		profile.ProfileURL = feedURL
	}
	if err := sink.UpsertProfile(ctx, account, profile); err != nil {
		return model.SyncResult{}, err
	}

	items := feed.Items
	if len(items) > maxEpisodes {
		items = items[:maxEpisodes]
	}

	posts := make([]model.ParsedPost, 0, len(items))
	for _, item := range items {
		post := model.ParsedPost{
			Caption:  item.Title,
			PostURL:  item.Link,
			PostedAt: item.PublishedParsed,
			// ポッドキャストにいいね・コメント概念はないため0のまま
		}
		// GUIDがないフィードはリンクで代用する
		if item.GUID != "" {
			post.PostID = item.GUID
		} else {
			post.PostID = item.Link
		}
		if len(item.Enclosures) > 0 {
			post.MediaURL = item.Enclosures[0].URL
		}
		if post.PostID == "" {
			continue
		}
		posts = append(posts, post)
	}

	count := 0
	if len(posts) > 0 {
		var upsertErr error
		count, upsertErr = sink.UpsertPosts(ctx, account, posts)
		if upsertErr != nil {
			return model.SyncResult{}, upsertErr
		}
	}

	return model.NewSuccessResult(a.Platform(), count), nil
}

// compile-time interface check
var _ platform.Adapter = (*Adapter)(nil)
