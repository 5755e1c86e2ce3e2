package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/nightpass/internal/domain"
)

// withTx runs fn inside a transaction, committing on success and rolling back
// on error or panic. Panics are re-raised.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}

type sqliteAccountRepository struct {
	db *sql.DB
}

// NewSQLiteAccountRepository returns a SQLite-backed AccountRepository.
func NewSQLiteAccountRepository(db *sql.DB) AccountRepository {
	return &sqliteAccountRepository{db: db}
}

const accountCols = `id, name, email, password_hash, status, created_at, updated_at`

func (r *sqliteAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	now := time.Now().UTC()
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, account.Name, account.Email, account.PasswordHash, string(account.Status), now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicate
		}
		return fmt.Errorf("insert account: %w", err)
	}
	account.ID = id
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

func (r *sqliteAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.fetchSingle(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = ?`, id)
}

func (r *sqliteAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.fetchSingle(ctx, `SELECT `+accountCols+` FROM accounts WHERE email = ?`, email)
}

func (r *sqliteAccountRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Account, error) {
	var account domain.Account
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&account.ID,
		&account.Name,
		&account.Email,
		&account.PasswordHash,
		&account.Status,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

type sqlitePoolRepository struct {
	db *sql.DB
}

// NewSQLitePoolRepository returns a SQLite-backed PoolRepository.
func NewSQLitePoolRepository(db *sql.DB) PoolRepository {
	return &sqlitePoolRepository{db: db}
}

const upsertPoolSQLite = `
	INSERT INTO token_pools (account_id, payload, updated_at) VALUES (?, ?, ?)
	ON CONFLICT (account_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`

func (r *sqlitePoolRepository) Get(ctx context.Context, accountID string) (domain.TokenPool, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM token_pools WHERE account_id = ?`, accountID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TokenPool{}, nil
	}
	if err != nil {
		return domain.TokenPool{}, fmt.Errorf("get pool: %w", err)
	}
	return domain.DecodePool([]byte(payload))
}

func (r *sqlitePoolRepository) Save(ctx context.Context, accountID string, pool domain.TokenPool) error {
	payload, err := domain.EncodePool(pool)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, upsertPoolSQLite, accountID, string(payload), time.Now().UTC()); err != nil {
		return fmt.Errorf("save pool: %w", err)
	}
	return nil
}

func (r *sqlitePoolRepository) SaveWithStatus(ctx context.Context, accountID string, status domain.SubscriptionStatus, pool domain.TokenPool) error {
	payload, err := domain.EncodePool(pool)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE accounts SET status = ?, updated_at = ? WHERE id = ?`, string(status), now, accountID)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, upsertPoolSQLite, accountID, string(payload), now); err != nil {
			return fmt.Errorf("save pool: %w", err)
		}
		return nil
	})
}

type sqliteLedgerRepository struct {
	db *sql.DB
}

// NewSQLiteLedgerRepository returns a SQLite-backed LedgerRepository.
func NewSQLiteLedgerRepository(db *sql.DB) LedgerRepository {
	return &sqliteLedgerRepository{db: db}
}

func (r *sqliteLedgerRepository) Append(ctx context.Context, entries []domain.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO token_ledger (id, account_id, token_id, kind, action, venue_id, reason, occurred_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, e.ID, e.AccountID, e.TokenID, string(e.Kind), string(e.Action), e.VenueID, e.Reason, e.OccurredAt.UTC()); err != nil {
				return fmt.Errorf("append ledger entry: %w", err)
			}
		}
		return nil
	})
}

func (r *sqliteLedgerRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, token_id, kind, action, venue_id, reason, occurred_at
		FROM token_ledger WHERE account_id = ?
		ORDER BY occurred_at DESC, id
		LIMIT ?`, accountID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0)
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.TokenID, &e.Kind, &e.Action, &e.VenueID, &e.Reason, &e.OccurredAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
