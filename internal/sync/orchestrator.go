package sync

import (
	"context"
	stdsync "sync"

	"github.com/hitoshi/socialsync/internal/model"
)

// defaultMaxConcurrent は同時実行数のデフォルト値。
const defaultMaxConcurrent = 5

// Pair はバッチ同期の1要素（プラットフォーム名とアカウント）。
type Pair struct {
	Platform string
	Account  model.Account
}

// Orchestrator は複数アカウントの同期を有界の並行度で実行する。
type Orchestrator struct {
	dispatcher    *Dispatcher
	maxConcurrent int
}

// NewOrchestrator はOrchestratorの新しいインスタンスを生成する。
// maxConcurrentが0以下の場合はデフォルト値を使用する。
func NewOrchestrator(dispatcher *Dispatcher, maxConcurrent int) *Orchestrator {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Orchestrator{
		dispatcher:    dispatcher,
		maxConcurrent: maxConcurrent,
	}
}

// SyncAccounts は全ペアの同期を実行し、入力と同じ順序で結果を返す。
// セマフォで同時実行数を制限し、結果はインデックスで書き戻すため
// 完了順に関係なく順序が保たれる。
// コンテキストがキャンセルされた場合、実行中の同期は完走させ、
// 未起動のペアにはキャンセル結果を入れる。戻り値の長さは常にlen(pairs)。
func (o *Orchestrator) SyncAccounts(ctx context.Context, pairs []Pair) []model.SyncResult {
	results := make([]model.SyncResult, len(pairs))
	sem := make(chan struct{}, o.maxConcurrent)
	var wg stdsync.WaitGroup

	for i, pair := range pairs {
		if ctx.Err() != nil {
			results[i] = canceledResult(pair.Platform, ctx)
			continue
		}
		select {
		case <-ctx.Done():
			results[i] = canceledResult(pair.Platform, ctx)
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, pair Pair) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = o.dispatcher.Dispatch(ctx, pair.Platform, pair.Account)
		}(i, pair)
	}

	wg.Wait()
	return results
}

// canceledResult は未起動ペアに入れるキャンセル結果を生成する。
func canceledResult(platform string, ctx context.Context) model.SyncResult {
	return model.NewFailureResult(platform,
		model.NewFetchError("Sync canceled", ctx.Err()))
}
