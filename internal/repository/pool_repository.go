package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/nightpass/internal/domain"
)

// PoolRepository is the load/save boundary for an account's token pool.
// Callers hold the account lock across Get and Save.
type PoolRepository interface {
	// Get returns the stored pool, or an empty pool when none was saved yet.
	Get(ctx context.Context, accountID string) (domain.TokenPool, error)
	Save(ctx context.Context, accountID string, pool domain.TokenPool) error
	// SaveWithStatus writes the account status and the pool in one transaction.
	SaveWithStatus(ctx context.Context, accountID string, status domain.SubscriptionStatus, pool domain.TokenPool) error
}

type poolRepository struct {
	pool *pgxpool.Pool
}

// NewPoolRepository returns a Postgres-backed implementation.
func NewPoolRepository(pool *pgxpool.Pool) PoolRepository {
	return &poolRepository{pool: pool}
}

const upsertPoolPG = `
        INSERT INTO token_pools (account_id, payload, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (account_id) DO UPDATE SET payload=EXCLUDED.payload, updated_at=NOW()`

func (r *poolRepository) Get(ctx context.Context, accountID string) (domain.TokenPool, error) {
	const query = `SELECT payload FROM token_pools WHERE account_id=$1`
	var payload []byte
	if err := r.pool.QueryRow(ctx, query, accountID).Scan(&payload); err != nil {
		if notFound(err) == ErrNotFound {
			return domain.TokenPool{}, nil
		}
		return domain.TokenPool{}, err
	}
	return domain.DecodePool(payload)
}

func (r *poolRepository) Save(ctx context.Context, accountID string, pool domain.TokenPool) error {
	payload, err := domain.EncodePool(pool)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, upsertPoolPG, accountID, payload)
	return err
}

func (r *poolRepository) SaveWithStatus(ctx context.Context, accountID string, status domain.SubscriptionStatus, pool domain.TokenPool) error {
	payload, err := domain.EncodePool(pool)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `UPDATE accounts SET status=$1, updated_at=NOW() WHERE id=$2`, status, accountID)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, upsertPoolPG, accountID, payload); err != nil {
			return fmt.Errorf("save pool: %w", err)
		}
		return nil
	})
}
