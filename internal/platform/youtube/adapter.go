// Package youtube はYouTube Data API v3のアダプタを提供する。
package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/socialsync/internal/auth"
	"github.com/hitoshi/socialsync/internal/model"
	"github.com/hitoshi/socialsync/internal/platform"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// maxVideos は1回の同期で取得する動画の上限。
const maxVideos = 50

// Adapter はYouTubeのプラットフォームアダプタ。
// アクセストークンが失効間近の場合は同期前にリフレッシュする。
type Adapter struct {
	client    *platform.Client
	refresher auth.TokenRefresher
	baseURL   string
}

// New はAdapterの新しいインスタンスを生成する。
func New(doer platform.HTTPDoer, refresher auth.TokenRefresher) *Adapter {
	return &Adapter{
		client:    platform.NewClient(doer),
		refresher: refresher,
		baseURL:   defaultBaseURL,
	}
}

// Platform はプラットフォーム識別子を返す。
func (a *Adapter) Platform() string { return "youtube" }

// Scheme は要求する認証スキームを返す。
func (a *Adapter) Scheme() model.AuthScheme { return model.AuthSchemeToken }

// channelsResponse はchannels.listレスポンス。
type channelsResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			CustomURL   string `json:"customUrl"`
			Thumbnails  struct {
				Default struct {
					URL string `json:"url"`
				} `json:"default"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		Statistics struct {
			SubscriberCount string `json:"subscriberCount"`
			VideoCount      string `json:"videoCount"`
		} `json:"statistics"`
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// playlistItemsResponse はplaylistItems.listレスポンス。
type playlistItemsResponse struct {
	Items []struct {
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// videosResponse はvideos.listレスポンス。
type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
			Thumbnails  struct {
				High struct {
					URL string `json:"url"`
				} `json:"high"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		Statistics struct {
			LikeCount    string `json:"likeCount"`
			ViewCount    string `json:"viewCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// Sync はチャンネル情報とアップロード動画を取得してシンクに保存する。
func (a *Adapter) Sync(ctx context.Context, account model.Account, sink platform.Sink) (model.SyncResult, error) {
	if _, serr := account.TokenAuth(); serr != nil {
		return model.NewFailureResult(a.Platform(), serr), nil
	}

	refreshed, serr := a.refresher.Refresh(ctx, account)
	if serr != nil {
		return model.SyncResult{}, serr
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+refreshed.AccessToken)

	var channels channelsResponse
	channelURL := a.baseURL + "/channels?part=snippet,statistics,contentDetails&mine=true"
	if serr := a.client.GetJSON(ctx, channelURL, header, &channels); serr != nil {
		return model.SyncResult{}, serr
	}
	if len(channels.Items) == 0 {
		return model.SyncResult{}, model.NewFetchError("No YouTube channel found for this account", nil)
	}
	channel := channels.Items[0]

	profile := model.ParsedProfile{
		Username:    strings.TrimPrefix(channel.Snippet.CustomURL, "@"),
		DisplayName: channel.Snippet.Title,
		Bio:         channel.Snippet.Description,
		AvatarURL:   channel.Snippet.Thumbnails.Default.URL,
		// subscriberCountをフォロワー数として正規化する
		Followers:  parseCount(channel.Statistics.SubscriberCount),
		PostsCount: parseCount(channel.Statistics.VideoCount),
		ProfileURL: "https://www.youtube.com/channel/" + channel.ID,
	}
	if err := sink.UpsertProfile(ctx, refreshed, profile); err != nil {
		return model.SyncResult{}, err
	}

	posts, serr := a.fetchUploads(ctx, header, channel.ContentDetails.RelatedPlaylists.Uploads)
	if serr != nil {
		return model.SyncResult{}, serr
	}

	count := 0
	if len(posts) > 0 {
		var err error
		count, err = sink.UpsertPosts(ctx, refreshed, posts)
		if err != nil {
			return model.SyncResult{}, err
		}
	}

	return model.NewSuccessResult(a.Platform(), count), nil
}

// fetchUploads はアップロードプレイリストの動画を統計情報付きで取得する。
func (a *Adapter) fetchUploads(ctx context.Context, header http.Header, playlistID string) ([]model.ParsedPost, *model.SyncError) {
	if playlistID == "" {
		return nil, nil
	}

	var playlist playlistItemsResponse
	playlistURL := fmt.Sprintf("%s/playlistItems?part=contentDetails&playlistId=%s&maxResults=%d",
		a.baseURL, url.QueryEscape(playlistID), maxVideos)
	if serr := a.client.GetJSON(ctx, playlistURL, header, &playlist); serr != nil {
		return nil, serr
	}

	videoIDs := make([]string, 0, len(playlist.Items))
	for _, item := range playlist.Items {
		if item.ContentDetails.VideoID != "" {
			videoIDs = append(videoIDs, item.ContentDetails.VideoID)
		}
	}
	if len(videoIDs) == 0 {
		return nil, nil
	}

	var videos videosResponse
	videosURL := fmt.Sprintf("%s/videos?part=snippet,statistics&id=%s",
		a.baseURL, url.QueryEscape(strings.Join(videoIDs, ",")))
	if serr := a.client.GetJSON(ctx, videosURL, header, &videos); serr != nil {
		return nil, serr
	}

	posts := make([]model.ParsedPost, 0, len(videos.Items))
	for _, v := range videos.Items {
		post := model.ParsedPost{
			PostID:   v.ID,
			Caption:  v.Snippet.Title,
			MediaURL: v.Snippet.Thumbnails.High.URL,
			PostURL:  "https://www.youtube.com/watch?v=" + v.ID,
			Comments: parseCount(v.Statistics.CommentCount),
		}
		// likeCountが非公開の動画はviewCountで代用する
		if v.Statistics.LikeCount != "" {
			post.Likes = parseCount(v.Statistics.LikeCount)
		} else {
			post.Likes = parseCount(v.Statistics.ViewCount)
		}
		if t, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt); err == nil {
			post.PostedAt = &t
		}
		posts = append(posts, post)
	}

	return posts, nil
}

// parseCount はYouTube APIが文字列で返す数値をintに変換する。
// パース不能な値は0として扱う。
func parseCount(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// compile-time interface check
var _ platform.Adapter = (*Adapter)(nil)
