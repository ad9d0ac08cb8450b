package syncjob

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/socialsync/internal/model"
	syncer "github.com/hitoshi/socialsync/internal/sync"
)

// fakeAccountRepo はテスト用のアカウントリポジトリ実装。
type fakeAccountRepo struct {
	due       []*model.Account
	listErr   error
	updated   []*model.Account
	updateErr error
}

func (f *fakeAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	return nil, nil
}

func (f *fakeAccountRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Account, error) {
	return nil, nil
}

func (f *fakeAccountRepo) ListDueForSync(ctx context.Context, limit int) ([]*model.Account, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.due) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeAccountRepo) UpdateSyncState(ctx context.Context, account *model.Account) error {
	f.updated = append(f.updated, account)
	return f.updateErr
}

func (f *fakeAccountRepo) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error {
	return nil
}

// fakeBatchSyncer はテスト用のバッチ同期実装。
type fakeBatchSyncer struct {
	pairs   []syncer.Pair
	results []model.SyncResult
	calls   int
}

func (f *fakeBatchSyncer) SyncAccounts(ctx context.Context, pairs []syncer.Pair) []model.SyncResult {
	f.calls++
	f.pairs = pairs
	return f.results
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestRunOnce_Success は成功アカウントのリスケジュールを検証する。
func TestRunOnce_Success(t *testing.T) {
	repo := &fakeAccountRepo{due: []*model.Account{
		{ID: "acc-1", Platform: "instagram", Status: model.AccountStatusActive, ConsecutiveErrors: 2},
	}}
	batch := &fakeBatchSyncer{results: []model.SyncResult{
		model.NewSuccessResult("instagram", 5),
	}}
	s := NewScheduler(repo, batch, testLogger(), time.Hour, 100)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if len(repo.updated) != 1 {
		t.Fatalf("updated = %d, want 1", len(repo.updated))
	}
	account := repo.updated[0]
	if account.ConsecutiveErrors != 0 {
		t.Errorf("ConsecutiveErrors = %d, want 0", account.ConsecutiveErrors)
	}
	if account.LastSyncedAt == nil {
		t.Error("LastSyncedAt = nil, want set")
	}
	if account.NextSyncAt.Before(time.Now().Add(59 * time.Minute)) {
		t.Errorf("NextSyncAt = %v, want ~1h later", account.NextSyncAt)
	}
}

// TestRunOnce_FetchFailureBackoff は一時的な失敗のバックオフを検証する。
func TestRunOnce_FetchFailureBackoff(t *testing.T) {
	repo := &fakeAccountRepo{due: []*model.Account{
		{ID: "acc-1", Platform: "instagram", Status: model.AccountStatusActive},
	}}
	batch := &fakeBatchSyncer{results: []model.SyncResult{
		model.NewFailureResult("instagram", model.NewFetchError("platform API returned status 503", nil)),
	}}
	s := NewScheduler(repo, batch, testLogger(), time.Hour, 100)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	account := repo.updated[0]
	if account.ConsecutiveErrors != 1 {
		t.Errorf("ConsecutiveErrors = %d, want 1", account.ConsecutiveErrors)
	}
	if account.Status != model.AccountStatusActive {
		t.Errorf("Status = %q, want active", account.Status)
	}
	// 初回エラーは30分バックオフ
	if account.NextSyncAt.Before(time.Now().Add(29 * time.Minute)) {
		t.Errorf("NextSyncAt = %v, want ~30m later", account.NextSyncAt)
	}
}

// TestRunOnce_CredentialFailureParks は資格情報エラーでの退避を検証する。
func TestRunOnce_CredentialFailureParks(t *testing.T) {
	repo := &fakeAccountRepo{due: []*model.Account{
		{ID: "acc-1", Platform: "youtube", Status: model.AccountStatusActive},
	}}
	batch := &fakeBatchSyncer{results: []model.SyncResult{
		model.NewFailureResult("youtube", model.NewMissingCredentialError("access token")),
	}}
	s := NewScheduler(repo, batch, testLogger(), time.Hour, 100)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	account := repo.updated[0]
	if account.Status != model.AccountStatusNeedsReauth {
		t.Errorf("Status = %q, want needs_reauth", account.Status)
	}
	if account.LastSyncError != "Missing access token" {
		t.Errorf("LastSyncError = %q", account.LastSyncError)
	}
}

// TestRunOnce_NoDueAccounts は同期対象0件でバッチ同期が呼ばれないことを検証する。
func TestRunOnce_NoDueAccounts(t *testing.T) {
	repo := &fakeAccountRepo{}
	batch := &fakeBatchSyncer{}
	s := NewScheduler(repo, batch, testLogger(), time.Hour, 100)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if batch.calls != 0 {
		t.Errorf("batch calls = %d, want 0", batch.calls)
	}
}

// TestRunOnce_ListError は対象取得失敗でエラーが返ることを検証する。
func TestRunOnce_ListError(t *testing.T) {
	repo := &fakeAccountRepo{listErr: errors.New("connection refused")}
	s := NewScheduler(repo, &fakeBatchSyncer{}, testLogger(), time.Hour, 100)

	if err := s.RunOnce(context.Background()); err == nil {
		t.Error("RunOnce() error = nil, want error")
	}
}

// TestRunOnce_UpdateErrorContinues は状態更新失敗でも他アカウントの処理が続くことを検証する。
func TestRunOnce_UpdateErrorContinues(t *testing.T) {
	repo := &fakeAccountRepo{
		due: []*model.Account{
			{ID: "acc-1", Platform: "instagram", Status: model.AccountStatusActive},
			{ID: "acc-2", Platform: "steam", Status: model.AccountStatusActive},
		},
		updateErr: errors.New("connection refused"),
	}
	batch := &fakeBatchSyncer{results: []model.SyncResult{
		model.NewSuccessResult("instagram", 1),
		model.NewSuccessResult("steam", 1),
	}}
	s := NewScheduler(repo, batch, testLogger(), time.Hour, 100)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(repo.updated) != 2 {
		t.Errorf("updated = %d, want 2 (failure does not abort the cycle)", len(repo.updated))
	}
}

// TestStart_StopsOnCancel はコンテキストキャンセルでスケジューラが停止することを検証する。
func TestStart_StopsOnCancel(t *testing.T) {
	repo := &fakeAccountRepo{}
	s := NewScheduler(repo, &fakeBatchSyncer{}, testLogger(), time.Hour, 100)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Start did not stop after context cancel")
	}
}
