// Package steam はSteam Web APIのアダプタを提供する。
// Steamは公開プロフィールをAPIキー + SteamID/バニティ名で照会する。
package steam

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/hitoshi/socialsync/internal/model"
	"github.com/hitoshi/socialsync/internal/platform"
)

const defaultBaseURL = "https://api.steampowered.com"

// Adapter はSteamのプラットフォームアダプタ。
// 最近プレイしたゲームを投稿として、2週間プレイ時間をいいね数として正規化する。
// フォロワー概念がないためフォロワー数は常に0になる。
type Adapter struct {
	client  *platform.Client
	apiKey  string
	baseURL string
}

// New はAdapterの新しいインスタンスを生成する。
// apiKeyはSteam Web APIキー（全ユーザー共通のアプリ資格情報）。
func New(doer platform.HTTPDoer, apiKey string) *Adapter {
	return &Adapter{
		client:  platform.NewClient(doer),
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
	}
}

// Platform はプラットフォーム識別子を返す。
func (a *Adapter) Platform() string { return "steam" }

// Scheme は要求する認証スキームを返す。
func (a *Adapter) Scheme() model.AuthScheme { return model.AuthSchemeUsername }

// vanityResponse はResolveVanityURLレスポンス。
type vanityResponse struct {
	Response struct {
		Success int    `json:"success"`
		SteamID string `json:"steamid"`
	} `json:"response"`
}

// summariesResponse はGetPlayerSummariesレスポンス。
type summariesResponse struct {
	Response struct {
		Players []struct {
			SteamID     string `json:"steamid"`
			PersonaName string `json:"personaname"`
			ProfileURL  string `json:"profileurl"`
			Avatar      string `json:"avatarfull"`
		} `json:"players"`
	} `json:"response"`
}

// recentGamesResponse はGetRecentlyPlayedGamesレスポンス。
type recentGamesResponse struct {
	Response struct {
		TotalCount int `json:"total_count"`
		Games      []struct {
			AppID           int    `json:"appid"`
			Name            string `json:"name"`
			Playtime2Weeks  int    `json:"playtime_2weeks"`
			PlaytimeForever int    `json:"playtime_forever"`
			ImgIconURL      string `json:"img_icon_url"`
		} `json:"games"`
	} `json:"response"`
}

// Sync は公開プロフィールと最近プレイしたゲームを取得してシンクに保存する。
func (a *Adapter) Sync(ctx context.Context, account model.Account, sink platform.Sink) (model.SyncResult, error) {
	auth, serr := account.UsernameAuth()
	if serr != nil {
		return model.NewFailureResult(a.Platform(), serr), nil
	}

	steamID, serr := a.resolveSteamID(ctx, auth.Username)
	if serr != nil {
		return model.SyncResult{}, serr
	}

	var summaries summariesResponse
	summariesURL := fmt.Sprintf("%s/ISteamUser/GetPlayerSummaries/v2/?key=%s&steamids=%s",
		a.baseURL, url.QueryEscape(a.apiKey), url.QueryEscape(steamID))
	if serr := a.client.GetJSON(ctx, summariesURL, nil, &summaries); serr != nil {
		return model.SyncResult{}, serr
	}
	if len(summaries.Response.Players) == 0 {
		return model.SyncResult{}, model.NewFetchError(fmt.Sprintf("Steam profile not found: %s", auth.Username), nil)
	}
	player := summaries.Response.Players[0]

	profile := model.ParsedProfile{
		Username:    auth.Username,
		DisplayName: player.PersonaName,
		AvatarURL:   player.Avatar,
		ProfileURL:  player.ProfileURL,
		// Steamにフォロワー概念はないため0のまま
	}

	var recent recentGamesResponse
	recentURL := fmt.Sprintf("%s/IPlayerService/GetRecentlyPlayedGames/v1/?key=%s&steamid=%s&count=20",
		a.baseURL, url.QueryEscape(a.apiKey), url.QueryEscape(steamID))
	if serr := a.client.GetJSON(ctx, recentURL, nil, &recent); serr != nil {
		return model.SyncResult{}, serr
	}
	profile.PostsCount = recent.Response.TotalCount

	if err := sink.UpsertProfile(ctx, account, profile); err != nil {
		return model.SyncResult{}, err
	}

	now := time.Now()
	posts := make([]model.ParsedPost, 0, len(recent.Response.Games))
	for _, g := range recent.Response.Games {
		posts = append(posts, model.ParsedPost{
			PostID:  fmt.Sprintf("%d", g.AppID),
			Caption: g.Name,
			MediaURL: fmt.Sprintf("https://media.steampowered.com/steamcommunity/public/images/apps/%d/%s.jpg",
				g.AppID, g.ImgIconURL),
			PostURL: fmt.Sprintf("https://store.steampowered.com/app/%d", g.AppID),
			// 2週間プレイ時間（分）をいいね数として正規化する
			Likes:    g.Playtime2Weeks,
			PostedAt: &now, // SteamはプレイセッションのタイムスタンプをAPIで公開しない
		})
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

// resolveSteamID はバニティ名をSteamID64に解決する。
// 入力がすでに数値ID（17桁）の場合はそのまま使用する。
func (a *Adapter) resolveSteamID(ctx context.Context, username string) (string, *model.SyncError) {
	if isNumericID(username) {
		return username, nil
	}

	var vanity vanityResponse
	vanityURL := fmt.Sprintf("%s/ISteamUser/ResolveVanityURL/v1/?key=%s&vanityurl=%s",
		a.baseURL, url.QueryEscape(a.apiKey), url.QueryEscape(username))
	if serr := a.client.GetJSON(ctx, vanityURL, nil, &vanity); serr != nil {
		return "", serr
	}
	if vanity.Response.Success != 1 || vanity.Response.SteamID == "" {
		return "", model.NewFetchError(fmt.Sprintf("Steam vanity URL not found: %s", username), nil)
	}
	return vanity.Response.SteamID, nil
}

// isNumericID は文字列がSteamID64形式（数字のみ）かを返す。
func isNumericID(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// compile-time interface check
var _ platform.Adapter = (*Adapter)(nil)
