package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"socialcron/internal/core"
)

// SaveAccount upserts the social account by identity.
func (s *Store) SaveAccount(ctx context.Context, account *core.Account) error {
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	credentials, err := json.Marshal(account.Credentials)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO social_accounts (id, user_id, platform, username, credentials, active, last_used, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			platform = excluded.platform,
			username = excluded.username,
			credentials = excluded.credentials,
			active = excluded.active,
			last_used = excluded.last_used,
			updated_at = excluded.updated_at
	`, account.ID, account.UserID, account.Platform, account.Username, string(credentials),
		boolToInt(account.Active), nullableTime(account.LastUsed),
		formatTime(account.CreatedAt), formatTime(account.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

// GetAccount loads one social account by identity.
func (s *Store) GetAccount(ctx context.Context, id string) (*core.Account, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, user_id, platform, username, credentials, active, last_used, created_at, updated_at
		FROM social_accounts WHERE id = ?
	`, id)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// ListAccounts returns accounts, optionally filtered by owning user,
// newest first.
func (s *Store) ListAccounts(ctx context.Context, userID string) ([]*core.Account, error) {
	var rows *sql.Rows
	var err error
	if userID != "" {
		rows, err = s.DB.QueryContext(ctx, `
			SELECT id, user_id, platform, username, credentials, active, last_used, created_at, updated_at
			FROM social_accounts
			WHERE user_id = ?
			ORDER BY created_at DESC
		`, userID)
	} else {
		rows, err = s.DB.QueryContext(ctx, `
			SELECT id, user_id, platform, username, credentials, active, last_used, created_at, updated_at
			FROM social_accounts
			ORDER BY created_at DESC
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()
	var accounts []*core.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

// DeleteAccount removes the account row.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM social_accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return core.ErrAccountNotFound
	}
	return nil
}

// TouchAccountUsed records a successful login against the account.
func (s *Store) TouchAccountUsed(ctx context.Context, id string, at time.Time) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE social_accounts
		SET last_used = ?, updated_at = ?
		WHERE id = ?
	`, formatTime(at), formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("touch account: %w", err)
	}
	return nil
}

func scanAccount(scanner interface {
	Scan(dest ...any) error
}) (*core.Account, error) {
	var (
		id          string
		userID      string
		platform    string
		username    string
		credentials string
		active      int
		lastUsed    sql.NullString
		createdAt   string
		updatedAt   string
	)
	if err := scanner.Scan(&id, &userID, &platform, &username, &credentials, &active, &lastUsed, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	account := &core.Account{
		ID:       id,
		UserID:   userID,
		Platform: core.Platform(platform),
		Username: username,
		Active:   active != 0,
	}
	if err := json.Unmarshal([]byte(credentials), &account.Credentials); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	account.LastUsed = parseNullableTime(lastUsed)
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		account.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		account.UpdatedAt = t
	}
	return account, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
