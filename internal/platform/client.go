package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hitoshi/socialsync/internal/model"
)

// maxResponseBody はプラットフォームAPIレスポンスの最大読み取りサイズ（10MB）。
const maxResponseBody = 10 * 1024 * 1024

// HTTPDoer はHTTPリクエスト実行の抽象。
// 本番ではSSRF防止付きの*http.Clientを渡し、テストではフェイクに差し替える。
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client はプラットフォームAPI呼び出し共通のJSONクライアント。
// 一時的障害（429/5xx）はリトライし、認証エラーは資格情報エラーに分類する。
type Client struct {
	http      HTTPDoer
	userAgent string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(doer HTTPDoer) *Client {
	return &Client{
		http:      doer,
		userAgent: "SocialSync/1.0",
	}
}

// GetJSON はURLへGETリクエストを送り、JSONレスポンスをvにデコードする。
// 一時的障害はリトライし、それでも失敗した場合は分類済みのSyncErrorを返す。
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, v any) *model.SyncError {
	var body []byte

	err := Retry(ctx, func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return false, model.NewFetchError(fmt.Sprintf("invalid request URL: %v", err), err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		for key, values := range header {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			// ネットワークエラーは一時的とみなしてリトライする
			return true, model.NewFetchError(fmt.Sprintf("request failed: %v", err), err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return true, model.NewFetchError(fmt.Sprintf("failed to read response: %v", err), err)
		}

		switch result := ClassifyHTTPStatus(resp.StatusCode); result {
		case APIResultOK:
			body = data
			return false, nil
		case APIResultAuthError:
			return false, model.NewCredentialError(fmt.Sprintf("Authentication rejected by platform API (status %d)", resp.StatusCode))
		default:
			return Retryable(result), model.NewFetchError(fmt.Sprintf("platform API returned status %d", resp.StatusCode), nil)
		}
	})
	if err != nil {
		if se, ok := err.(*model.SyncError); ok {
			return se
		}
		return model.NewFetchError(err.Error(), err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return model.NewFetchError(fmt.Sprintf("failed to parse platform API response: %v", err), err)
	}
	return nil
}

// Get はURLへGETリクエストを送り、生のボディとContent-Typeを返す。
// フィード検出のようにJSON以外のレスポンスを扱う呼び出し向け。
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, string, *model.SyncError) {
	var body []byte
	var contentType string

	err := Retry(ctx, func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return false, model.NewFetchError(fmt.Sprintf("invalid request URL: %v", err), err)
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			return true, model.NewFetchError(fmt.Sprintf("request failed: %v", err), err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return true, model.NewFetchError(fmt.Sprintf("failed to read response: %v", err), err)
		}

		switch result := ClassifyHTTPStatus(resp.StatusCode); result {
		case APIResultOK:
			body = data
			contentType = resp.Header.Get("Content-Type")
			return false, nil
		case APIResultAuthError:
			return false, model.NewCredentialError(fmt.Sprintf("Authentication rejected by platform API (status %d)", resp.StatusCode))
		default:
			return Retryable(result), model.NewFetchError(fmt.Sprintf("platform API returned status %d", resp.StatusCode), nil)
		}
	})
	if err != nil {
		if se, ok := err.(*model.SyncError); ok {
			return nil, "", se
		}
		return nil, "", model.NewFetchError(err.Error(), err)
	}

	return body, contentType, nil
}
