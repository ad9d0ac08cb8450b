// Package podcast はポッドキャストフィードのアダプタを提供する。
// 番組ページのURLが指定された場合はHTMLのheadタグからRSSリンクを自動検出する。
package podcast

import (
	"bytes"
	"context"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/hitoshi/socialsync/internal/model"
	"github.com/hitoshi/socialsync/internal/platform"
)

// feedContentTypes はフィードとして認識するContent-Typeのリスト。
var feedContentTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
}

// xmlContentTypes はXMLとして認識するContent-Type（ボディ解析が必要）。
var xmlContentTypes = []string{
	"text/xml",
	"application/xml",
}

// feedCandidate はHTMLから検出されたフィード候補を表す。
type feedCandidate struct {
	url   string
	title string
}

// isDirectFeed はContent-Typeとボディを解析して、
// レスポンスがRSS/Atomフィードかどうかを判定する。
func isDirectFeed(contentType string, body []byte) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)

	for _, feedCT := range feedContentTypes {
		if mediaType == feedCT {
			return true
		}
	}

	// 汎用XML Content-Typeの場合はボディ解析が必要
	isXML := false
	for _, xmlCT := range xmlContentTypes {
		if mediaType == xmlCT {
			isXML = true
			break
		}
	}
	if !isXML || len(body) == 0 {
		return false
	}

	return isRSSOrAtomXML(body)
}

// isRSSOrAtomXML はXMLボディの先頭部分を解析してRSS/Atomフィードかを判定する。
func isRSSOrAtomXML(body []byte) bool {
	// 先頭4KBを検査（XMLプロローグ + ルート要素が含まれるのに十分）
	checkSize := 4096
	if len(body) < checkSize {
		checkSize = len(body)
	}
	prefix := strings.ToLower(string(body[:checkSize]))

	if strings.Contains(prefix, "<rss") {
		return true
	}
	if strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	if strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom") {
		return true
	}
	return false
}

// parseFeedLinksFromHTML はHTMLのheadタグからRSS/Atomフィードリンクを解析・検出する。
// 相対URLはbaseURLを基準に絶対URLに解決される。
func parseFeedLinksFromHTML(htmlBody []byte, baseURL string) []feedCandidate {
	var candidates []feedCandidate

	baseU, err := url.Parse(baseURL)
	if err != nil {
		return candidates
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return candidates

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "head" {
				inHead = true
				continue
			}
			if tagName == "body" {
				// bodyに入ったらheadの解析を終了
				return candidates
			}
			if !inHead || tagName != "link" || !hasAttr {
				continue
			}

			var rel, linkType, href, title string
			for {
				key, val, more := tokenizer.TagAttr()
				k := strings.ToLower(string(key))
				v := string(val)
				switch k {
				case "rel":
					rel = strings.ToLower(v)
				case "type":
					linkType = strings.ToLower(v)
				case "href":
					href = v
				case "title":
					title = v
				}
				if !more {
					break
				}
			}

			// rel="alternate" かつ RSS/Atom Content-Type のリンクのみ対象
			if rel != "alternate" || href == "" {
				continue
			}
			isFeedType := false
			for _, feedCT := range feedContentTypes {
				if linkType == feedCT {
					isFeedType = true
					break
				}
			}
			if !isFeedType {
				continue
			}

			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			candidates = append(candidates, feedCandidate{
				url:   baseU.ResolveReference(ref).String(),
				title: title,
			})

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return candidates
			}
		}
	}
}

// detectFeedURL はURLがフィードか番組ページ（HTML）かを判定し、フィードURLとボディを返す。
// フィードを直接指している場合はそのボディを返し、HTMLの場合はheadタグの
// 最初のフィードリンクを取得し直す。
func detectFeedURL(ctx context.Context, client *platform.Client, inputURL string) (string, []byte, *model.SyncError) {
	body, contentType, serr := client.Get(ctx, inputURL)
	if serr != nil {
		return "", nil, serr
	}

	if isDirectFeed(contentType, body) {
		return inputURL, body, nil
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.Contains(strings.ToLower(mediaType), "html") {
		return "", nil, model.NewFetchError("No podcast feed found at the given URL", nil)
	}

	candidates := parseFeedLinksFromHTML(body, inputURL)
	if len(candidates) == 0 {
		return "", nil, model.NewFetchError("No podcast feed link found in the page", nil)
	}

	feedURL := candidates[0].url
	feedBody, _, serr := client.Get(ctx, feedURL)
	if serr != nil {
		return "", nil, serr
	}
	return feedURL, feedBody, nil
}
