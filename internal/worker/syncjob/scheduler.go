// Package syncjob は連携アカウントのバックグラウンド同期ジョブを提供する。
// スケジューラが同期対象アカウントを定期的に取得してバッチ同期を実行し、
// 結果に応じてリスケジュールまたはバックオフ・退避を行う。
package syncjob

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/socialsync/internal/model"
	"github.com/hitoshi/socialsync/internal/repository"
	syncer "github.com/hitoshi/socialsync/internal/sync"
)

// defaultBatchSize は1サイクルで取得する同期対象アカウントの上限。
const defaultBatchSize = 100

// BatchSyncer はバッチ同期の実行インターフェース。
// sync.Orchestratorが本番実装で、テストではフェイクに差し替える。
type BatchSyncer interface {
	SyncAccounts(ctx context.Context, pairs []syncer.Pair) []model.SyncResult
}

// Scheduler は定期同期のスケジューリングを行う。
// ティッカーで同期対象アカウントを取得し、バッチ同期の結果に応じて
// 各アカウントの同期状態を更新する。
type Scheduler struct {
	accountRepo repository.AccountRepository
	batch       BatchSyncer
	logger      *slog.Logger
	interval    time.Duration
	batchSize   int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// intervalは成功したアカウントの次回同期までの間隔。
// batchSizeが0以下の場合はデフォルト値100を使用する。
func NewScheduler(
	accountRepo repository.AccountRepository,
	batch BatchSyncer,
	logger *slog.Logger,
	interval time.Duration,
	batchSize int,
) *Scheduler {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Scheduler{
		accountRepo: accountRepo,
		batch:       batch,
		logger:      logger,
		interval:    interval,
		batchSize:   batchSize,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, tickInterval time.Duration) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	s.logger.Info("同期スケジューラを開始しました",
		slog.Duration("tick_interval", tickInterval),
		slog.Duration("sync_interval", s.interval),
		slog.Int("batch_size", s.batchSize),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("同期サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("同期スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("同期サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は同期対象アカウントを1回取得してバッチ同期を実行し、
// 結果に応じて各アカウントの同期状態を更新する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	// 同期対象アカウントを取得（FOR UPDATE SKIP LOCKED）
	accounts, err := s.accountRepo.ListDueForSync(ctx, s.batchSize)
	if err != nil {
		return err
	}

	if len(accounts) == 0 {
		s.logger.Info("同期対象のアカウントはありません")
		return nil
	}

	s.logger.Info("同期サイクルを開始します",
		slog.Int("account_count", len(accounts)),
	)

	pairs := make([]syncer.Pair, len(accounts))
	for i, account := range accounts {
		pairs[i] = syncer.Pair{
			Platform: account.Platform,
			Account:  *account,
		}
	}

	results := s.batch.SyncAccounts(ctx, pairs)

	for i, result := range results {
		account := accounts[i]
		s.applyResult(account, result)

		if err := s.accountRepo.UpdateSyncState(ctx, account); err != nil {
			s.logger.Error("同期状態の更新に失敗しました",
				slog.String("account_id", account.ID),
				slog.String("platform", account.Platform),
				slog.String("error", err.Error()),
			)
		}
	}

	duration := time.Since(start)
	s.logger.Info("同期サイクルが完了しました",
		slog.Int("account_count", len(accounts)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// applyResult は同期結果をアカウントのスケジューリング状態に反映する。
// 成功: 状態リセット + 通常間隔でリスケジュール。
// 一時的な失敗: 指数バックオフでリスケジュール。
// 再認証が必要な失敗: needs_reauthに退避。
func (s *Scheduler) applyResult(account *model.Account, result model.SyncResult) {
	if result.Updated {
		ApplySuccess(account, s.interval)
		return
	}
	if IsReauthKind(result.ErrorKind) {
		ApplyNeedsReauth(account, result.Error)
		return
	}
	ApplyBackoff(account, result.Error)
}
