// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はプラットフォームから取得したキャプションや
// プロフィール文をサニタイズし、埋め込みHTMLによるXSSリスクを除去する。
// MastodonのようにHTML断片を返すAPIがあるため、保存前に必ず通す。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はテキストサニタイズ機能のインターフェースを定義する。
// 投稿キャプション・プロフィール文の保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize は入力からHTMLタグを全て除去し、プレーンテキストを返す。
	// キャプションはプレーンテキストとして保存する方針のため、
	// 許可タグは一切ない（StrictPolicy）。
	// HTMLエンティティはデコードして元の文字に戻す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// bluemondayのStrictPolicyを使用し、全てのタグと属性を除去する。
// scriptタグの中身やon*イベント属性も含めて除去される。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグを除去し、プレーンテキストを返す。
// bluemondayはタグ除去後のテキストをエンティティエスケープするため、
// 保存用にhtml.UnescapeStringでデコードしてから返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
