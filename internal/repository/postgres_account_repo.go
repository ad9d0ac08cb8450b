package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/socialsync/internal/model"
)

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// accountColumns はアカウント取得クエリの共通SELECT列。
const accountColumns = `id, user_id, platform, account_id, username,
        access_token, refresh_token, token_expires_at, instance_url, wallet_address,
        status, consecutive_errors, last_sync_error, next_sync_at, last_synced_at,
        created_at, updated_at`

// scanAccount は1行をmodel.Accountに読み取る。
func scanAccount(scan func(dest ...any) error) (*model.Account, error) {
	acct := &model.Account{}
	var username, accessToken, refreshToken, instanceURL, walletAddress, lastSyncError sql.NullString
	var tokenExpiresAt, lastSyncedAt sql.NullTime

	if err := scan(
		&acct.ID, &acct.UserID, &acct.Platform, &acct.AccountID, &username,
		&accessToken, &refreshToken, &tokenExpiresAt, &instanceURL, &walletAddress,
		&acct.Status, &acct.ConsecutiveErrors, &lastSyncError, &acct.NextSyncAt, &lastSyncedAt,
		&acct.CreatedAt, &acct.UpdatedAt,
	); err != nil {
		return nil, err
	}

	acct.Username = nullStringValue(username)
	acct.AccessToken = nullStringValue(accessToken)
	acct.RefreshToken = nullStringValue(refreshToken)
	acct.InstanceURL = nullStringValue(instanceURL)
	acct.WalletAddress = nullStringValue(walletAddress)
	acct.LastSyncError = nullStringValue(lastSyncError)
	if tokenExpiresAt.Valid {
		t := tokenExpiresAt.Time
		acct.TokenExpiresAt = &t
	}
	if lastSyncedAt.Valid {
		t := lastSyncedAt.Time
		acct.LastSyncedAt = &t
	}

	return acct, nil
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM social_accounts WHERE id = $1`, id)

	acct, err := scanAccount(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	return acct, nil
}

// ListByUserID はユーザーの連携アカウント一覧を返す。
func (r *PostgresAccountRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM social_accounts
		 WHERE user_id = $1 AND status != 'disconnected'
		 ORDER BY platform ASC, account_id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("アカウント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		acct, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("アカウントの読み取りに失敗しました: %w", err)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アカウント一覧の走査に失敗しました: %w", err)
	}

	return accounts, nil
}

// ListDueForSync は同期対象のアカウントを取得する。
// next_sync_at <= now() かつ status = 'active' のアカウントを
// FOR UPDATE SKIP LOCKEDで排他的に取得する。
func (r *PostgresAccountRepo) ListDueForSync(ctx context.Context, limit int) ([]*model.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM social_accounts
		 WHERE next_sync_at <= now()
		   AND status = 'active'
		 ORDER BY next_sync_at ASC
		 LIMIT $1
		 FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("同期対象アカウントの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		acct, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("同期対象アカウントの読み取りに失敗しました: %w", err)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("同期対象アカウントの走査に失敗しました: %w", err)
	}

	return accounts, nil
}

// UpdateSyncState はアカウントの同期状態を更新する。
func (r *PostgresAccountRepo) UpdateSyncState(ctx context.Context, account *model.Account) error {
	var lastSyncedAt sql.NullTime
	if account.LastSyncedAt != nil {
		lastSyncedAt = sql.NullTime{Time: *account.LastSyncedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE social_accounts SET
		    status = $2,
		    consecutive_errors = $3,
		    last_sync_error = $4,
		    next_sync_at = $5,
		    last_synced_at = $6,
		    updated_at = now()
		 WHERE id = $1`,
		account.ID,
		account.Status,
		account.ConsecutiveErrors,
		nullString(account.LastSyncError),
		account.NextSyncAt,
		lastSyncedAt,
	)
	if err != nil {
		return fmt.Errorf("同期状態の更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateTokens はリフレッシュ後のトークンを永続化する。
func (r *PostgresAccountRepo) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error {
	var tokenExpiresAt sql.NullTime
	if expiresAt != nil {
		tokenExpiresAt = sql.NullTime{Time: *expiresAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE social_accounts SET
		    access_token = $2,
		    refresh_token = $3,
		    token_expires_at = $4,
		    updated_at = now()
		 WHERE id = $1`,
		id, nullString(accessToken), nullString(refreshToken), tokenExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("トークンの更新に失敗しました: %w", err)
	}
	return nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
