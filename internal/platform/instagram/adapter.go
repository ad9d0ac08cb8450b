// Package instagram はInstagram Graph APIのアダプタを提供する。
package instagram

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/hitoshi/socialsync/internal/model"
	"github.com/hitoshi/socialsync/internal/platform"
)

const defaultBaseURL = "https://graph.instagram.com"

// Adapter はInstagramのプラットフォームアダプタ。
// Basic Display APIでプロフィールとメディア一覧を取得する。
type Adapter struct {
	client  *platform.Client
	baseURL string
}

// New はAdapterの新しいインスタンスを生成する。
func New(doer platform.HTTPDoer) *Adapter {
	return &Adapter{
		client:  platform.NewClient(doer),
		baseURL: defaultBaseURL,
	}
}

// Platform はプラットフォーム識別子を返す。
func (a *Adapter) Platform() string { return "instagram" }

// Scheme は要求する認証スキームを返す。
func (a *Adapter) Scheme() model.AuthScheme { return model.AuthSchemeToken }

// userResponse は/meレスポンス。
type userResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	MediaCount int    `json:"media_count"`
}

// mediaResponse は/me/mediaレスポンス。
type mediaResponse struct {
	Data []mediaItem `json:"data"`
}

type mediaItem struct {
	ID            string `json:"id"`
	Caption       string `json:"caption"`
	MediaURL      string `json:"media_url"`
	Permalink     string `json:"permalink"`
	LikeCount     int    `json:"like_count"`
	CommentsCount int    `json:"comments_count"`
	Timestamp     string `json:"timestamp"`
}

// Sync はプロフィールとメディア一覧を取得してシンクに保存する。
func (a *Adapter) Sync(ctx context.Context, account model.Account, sink platform.Sink) (model.SyncResult, error) {
	auth, serr := account.TokenAuth()
	if serr != nil {
		return model.NewFailureResult(a.Platform(), serr), nil
	}

	var user userResponse
	userURL := fmt.Sprintf("%s/me?fields=id,username,media_count&access_token=%s",
		a.baseURL, url.QueryEscape(auth.AccessToken))
	if serr := a.client.GetJSON(ctx, userURL, nil, &user); serr != nil {
		return model.SyncResult{}, serr
	}

	var media mediaResponse
	mediaURL := fmt.Sprintf("%s/me/media?fields=id,caption,media_url,permalink,like_count,comments_count,timestamp&limit=50&access_token=%s",
		a.baseURL, url.QueryEscape(auth.AccessToken))
	if serr := a.client.GetJSON(ctx, mediaURL, nil, &media); serr != nil {
		return model.SyncResult{}, serr
	}

	profile := model.ParsedProfile{
		Username:   user.Username,
		PostsCount: user.MediaCount,
		ProfileURL: fmt.Sprintf("https://www.instagram.com/%s/", user.Username),
	}
	if err := sink.UpsertProfile(ctx, account, profile); err != nil {
		return model.SyncResult{}, err
	}

	posts := make([]model.ParsedPost, 0, len(media.Data))
	for _, m := range media.Data {
		post := model.ParsedPost{
			PostID:   m.ID,
			Caption:  m.Caption,
			MediaURL: m.MediaURL,
			PostURL:  m.Permalink,
			Likes:    m.LikeCount,
			Comments: m.CommentsCount,
		}
		if t, err := time.Parse("2006-01-02T15:04:05-0700", m.Timestamp); err == nil {
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
