// Package platform はプラットフォームアダプタの契約とレジストリを提供する。
// 各アダプタは外部APIの差異を吸収し、正規化済みのプロフィール・投稿をシンクに渡す。
package platform

import (
	"context"

	"github.com/hitoshi/socialsync/internal/model"
)

// Sink はアダプタが正規化済みデータを書き込む永続化境界。
// recordパッケージのUpsertServiceが本番実装で、テストではフェイクに差し替える。
// UpsertPostsは空リストで呼ばれてはならない（呼び出し側が空チェックを行う）。
type Sink interface {
	UpsertProfile(ctx context.Context, account model.Account, profile model.ParsedProfile) error
	UpsertPosts(ctx context.Context, account model.Account, posts []model.ParsedPost) (int, error)
}

// Adapter はプラットフォームごとの同期実装の契約。
// 実装は以下の流れに従う:
//  1. 自身のスキームに応じた資格情報を抽出する（不足時は資格情報エラーの失敗結果を返す）
//  2. 必要ならトークンをリフレッシュする
//  3. 外部APIからプロフィールと投稿を取得する
//  4. 正規化してシンクへupsertする（投稿が空ならUpsertPostsを呼ばない）
//  5. SyncResultを返す
//
// Syncのエラー戻り値は呼び出し元（ディスパッチャ）が失敗結果へ変換するため、
// アダプタ内でのpanicや想定外エラーも他アカウントの同期を阻害しない。
type Adapter interface {
	// Platform はアダプタの識別子（小文字）を返す。
	Platform() string
	// Scheme はアダプタが要求する認証スキームを返す。
	Scheme() model.AuthScheme
	// Sync は1アカウントの同期を実行する。
	Sync(ctx context.Context, account model.Account, sink Sink) (model.SyncResult, error)
}
