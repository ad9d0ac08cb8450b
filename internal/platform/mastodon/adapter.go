// Package mastodon はMastodon互換インスタンスのアダプタを提供する。
package mastodon

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/socialsync/internal/model"
	"github.com/hitoshi/socialsync/internal/platform"
)

// maxStatuses は1回の同期で取得するトゥートの上限。
const maxStatuses = 40

// URLValidator はユーザー指定のインスタンスURLの事前検証インターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Adapter はMastodonのプラットフォームアダプタ。
// インスタンスURLはユーザーが指定するため、リクエスト前にSSRF検証を行う。
type Adapter struct {
	client    *platform.Client
	validator URLValidator
}

// New はAdapterの新しいインスタンスを生成する。
func New(doer platform.HTTPDoer, validator URLValidator) *Adapter {
	return &Adapter{
		client:    platform.NewClient(doer),
		validator: validator,
	}
}

// Platform はプラットフォーム識別子を返す。
func (a *Adapter) Platform() string { return "mastodon" }

// Scheme は要求する認証スキームを返す。
func (a *Adapter) Scheme() model.AuthScheme { return model.AuthSchemeInstance }

// accountResponse は/api/v1/accounts/verify_credentialsレスポンス。
type accountResponse struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	DisplayName    string `json:"display_name"`
	Note           string `json:"note"`
	Avatar         string `json:"avatar"`
	URL            string `json:"url"`
	FollowersCount int    `json:"followers_count"`
	FollowingCount int    `json:"following_count"`
	StatusesCount  int    `json:"statuses_count"`
}

// status は/api/v1/accounts/{id}/statusesの1要素。
type status struct {
	ID               string `json:"id"`
	Content          string `json:"content"`
	URL              string `json:"url"`
	CreatedAt        string `json:"created_at"`
	FavouritesCount  int    `json:"favourites_count"`
	RepliesCount     int    `json:"replies_count"`
	MediaAttachments []struct {
		URL string `json:"url"`
	} `json:"media_attachments"`
}

// Sync はインスタンスのアカウント情報とトゥート一覧を取得してシンクに保存する。
func (a *Adapter) Sync(ctx context.Context, account model.Account, sink platform.Sink) (model.SyncResult, error) {
	auth, serr := account.InstanceAuth()
	if serr != nil {
		return model.NewFailureResult(a.Platform(), serr), nil
	}

	instanceURL := strings.TrimSuffix(auth.InstanceURL, "/")
	if a.validator != nil {
		if err := a.validator.ValidateURL(instanceURL); err != nil {
			return model.NewFailureResult(a.Platform(),
				model.NewCredentialError(fmt.Sprintf("Invalid instance URL: %v", err))), nil
		}
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+auth.AccessToken)

	var me accountResponse
	if serr := a.client.GetJSON(ctx, instanceURL+"/api/v1/accounts/verify_credentials", header, &me); serr != nil {
		return model.SyncResult{}, serr
	}

	profile := model.ParsedProfile{
		Username:    me.Username,
		DisplayName: me.DisplayName,
		Bio:         me.Note,
		AvatarURL:   me.Avatar,
		Followers:   me.FollowersCount,
		Following:   me.FollowingCount,
		PostsCount:  me.StatusesCount,
		ProfileURL:  me.URL,
	}
	if err := sink.UpsertProfile(ctx, account, profile); err != nil {
		return model.SyncResult{}, err
	}

	var statuses []status
	statusesURL := fmt.Sprintf("%s/api/v1/accounts/%s/statuses?limit=%d&exclude_reblogs=true", instanceURL, me.ID, maxStatuses)
	if serr := a.client.GetJSON(ctx, statusesURL, header, &statuses); serr != nil {
		return model.SyncResult{}, serr
	}

	posts := make([]model.ParsedPost, 0, len(statuses))
	for _, s := range statuses {
		post := model.ParsedPost{
			PostID:  s.ID,
			Caption: s.Content, // HTML断片は保存側のサニタイザでプレーンテキスト化される
			PostURL: s.URL,
			// favourites_countをいいね数、replies_countをコメント数として正規化する
			Likes:    s.FavouritesCount,
			Comments: s.RepliesCount,
		}
		if len(s.MediaAttachments) > 0 {
			post.MediaURL = s.MediaAttachments[0].URL
		}
		if t, err := time.Parse(time.RFC3339, s.CreatedAt); err == nil {
			post.PostedAt = &t
		}
		posts = append(posts, post)
	}

	count := 0
	if len(posts) > 0 {
		var err error
		count, err = sink.UpsertPosts(ctx, account, posts)
		if err != nil {
			return model.SyncResult{}, err
		}
	}

	return model.NewSuccessResult(a.Platform(), count), nil
}

// compile-time interface check
var _ platform.Adapter = (*Adapter)(nil)
