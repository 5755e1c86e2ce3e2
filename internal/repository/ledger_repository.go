package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/nightpass/internal/domain"
)

// LedgerRepository stores the append-only token history.
type LedgerRepository interface {
	Append(ctx context.Context, entries []domain.LedgerEntry) error
	ListByAccount(ctx context.Context, accountID string, limit int) ([]domain.LedgerEntry, error)
}

type ledgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository returns a Postgres-backed implementation.
func NewLedgerRepository(pool *pgxpool.Pool) LedgerRepository {
	return &ledgerRepository{pool: pool}
}

func (r *ledgerRepository) Append(ctx context.Context, entries []domain.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	const query = `
        INSERT INTO token_ledger (id, account_id, token_id, kind, action, venue_id, reason, occurred_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(query, e.ID, e.AccountID, e.TokenID, string(e.Kind), string(e.Action), e.VenueID, e.Reason, e.OccurredAt)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *ledgerRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]domain.LedgerEntry, error) {
	const query = `
        SELECT id, account_id, token_id, kind, action, venue_id, reason, occurred_at
        FROM token_ledger WHERE account_id=$1
        ORDER BY occurred_at DESC, id
        LIMIT $2`

	rows, err := r.pool.Query(ctx, query, accountID, normalizeLimit(limit))
	if err != nil {
		return nil, err
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

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
