// Package opensea はOpenSea API v2のアダプタを提供する。
// ウォレットアドレスで所有NFTを照会し、投稿として正規化する。
package opensea

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/socialsync/internal/model"
	"github.com/hitoshi/socialsync/internal/platform"
)

const defaultBaseURL = "https://api.opensea.io/api/v2"

// maxNFTs は1回の同期で取得するNFTの上限。
const maxNFTs = 50

// Adapter はOpenSeaのプラットフォームアダプタ。
// NFTにはいいね・コメント概念がないため、両カウントは常に0になる。
type Adapter struct {
	client  *platform.Client
	apiKey  string
	baseURL string
}

// New はAdapterの新しいインスタンスを生成する。
// apiKeyはOpenSeaのAPIキー（全ユーザー共通のアプリ資格情報）。
func New(doer platform.HTTPDoer, apiKey string) *Adapter {
	return &Adapter{
		client:  platform.NewClient(doer),
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
	}
}

// Platform はプラットフォーム識別子を返す。
func (a *Adapter) Platform() string { return "opensea" }

// Scheme は要求する認証スキームを返す。
func (a *Adapter) Scheme() model.AuthScheme { return model.AuthSchemeWallet }

// accountResponse は/accounts/{address}レスポンス。
type accountResponse struct {
	Username     string `json:"username"`
	Bio          string `json:"bio"`
	ProfileImage string `json:"profile_image_url"`
	Website      string `json:"website"`
}

// nftsResponse は/chain/ethereum/account/{address}/nftsレスポンス。
type nftsResponse struct {
	NFTs []struct {
		Identifier  string `json:"identifier"`
		Contract    string `json:"contract"`
		Name        string `json:"name"`
		Description string `json:"description"`
		ImageURL    string `json:"image_url"`
		OpenseaURL  string `json:"opensea_url"`
	} `json:"nfts"`
}

// Sync はウォレットのアカウント情報と所有NFT一覧を取得してシンクに保存する。
func (a *Adapter) Sync(ctx context.Context, account model.Account, sink platform.Sink) (model.SyncResult, error) {
	auth, serr := account.WalletAuth()
	if serr != nil {
		return model.NewFailureResult(a.Platform(), serr), nil
	}

	address := strings.ToLower(auth.Address)
	header := http.Header{}
	if a.apiKey != "" {
		header.Set("X-API-KEY", a.apiKey)
	}

	var osAccount accountResponse
	accountURL := fmt.Sprintf("%s/accounts/%s", a.baseURL, url.PathEscape(address))
	if serr := a.client.GetJSON(ctx, accountURL, header, &osAccount); serr != nil {
		return model.SyncResult{}, serr
	}

	var nfts nftsResponse
	nftsURL := fmt.Sprintf("%s/chain/ethereum/account/%s/nfts?limit=%d", a.baseURL, url.PathEscape(address), maxNFTs)
	if serr := a.client.GetJSON(ctx, nftsURL, header, &nfts); serr != nil {
		return model.SyncResult{}, serr
	}

	profile := model.ParsedProfile{
		Username:    osAccount.Username,
		Bio:         osAccount.Bio,
		AvatarURL:   osAccount.ProfileImage,
		PostsCount:  len(nfts.NFTs),
		ProfileURL:  "https://opensea.io/" + address,
	}
	if err := sink.UpsertProfile(ctx, account, profile); err != nil {
		return model.SyncResult{}, err
	}

	posts := make([]model.ParsedPost, 0, len(nfts.NFTs))
	for _, nft := range nfts.NFTs {
		caption := nft.Name
		if nft.Description != "" {
			caption = nft.Name + "\n" + nft.Description
		}
		posts = append(posts, model.ParsedPost{
			// コントラクトとトークンIDの組で一意になる
			PostID:   nft.Contract + ":" + nft.Identifier,
			Caption:  caption,
			MediaURL: nft.ImageURL,
			PostURL:  nft.OpenseaURL,
			// NFTにいいね・コメント概念はないため0のまま
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

// compile-time interface check
var _ platform.Adapter = (*Adapter)(nil)
