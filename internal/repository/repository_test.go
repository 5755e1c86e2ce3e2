package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/nightpass/internal/config"
	"github.com/spec-kit/nightpass/internal/domain"
	"github.com/spec-kit/nightpass/internal/persistence"
)

type stores struct {
	accounts AccountRepository
	pools    PoolRepository
	ledger   LedgerRepository
}

func sqliteStores(t *testing.T) stores {
	t.Helper()
	db, err := persistence.NewSQLite(context.Background(), ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return stores{
		accounts: NewSQLiteAccountRepository(db.DB),
		pools:    NewSQLitePoolRepository(db.DB),
		ledger:   NewSQLiteLedgerRepository(db.DB),
	}
}

func postgresStores(t *testing.T) stores {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, config.PostgresConfig{DSN: dsn}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pg.Close)
	require.NoError(t, persistence.RunMigrations(ctx, pg.PoolHandle(), zap.NewNop()))
	return stores{
		accounts: NewAccountRepository(pg.PoolHandle()),
		pools:    NewPoolRepository(pg.PoolHandle()),
		ledger:   NewLedgerRepository(pg.PoolHandle()),
	}
}

func TestSQLiteRepositories(t *testing.T) {
	runContract(t, sqliteStores)
}

func TestPostgresRepositories(t *testing.T) {
	runContract(t, postgresStores)
}

func runContract(t *testing.T, open func(*testing.T) stores) {
	t.Run("accounts", func(t *testing.T) { testAccounts(t, open(t)) })
	t.Run("pools", func(t *testing.T) { testPools(t, open(t)) })
	t.Run("ledger", func(t *testing.T) { testLedger(t, open(t)) })
}

func newAccount(t *testing.T, s stores) *domain.Account {
	t.Helper()
	acc := &domain.Account{
		Name:         "Alice",
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		Status:       domain.SubscriptionFree,
	}
	require.NoError(t, s.accounts.Create(context.Background(), acc))
	require.NotEmpty(t, acc.ID)
	return acc
}

func testAccounts(t *testing.T, s stores) {
	ctx := context.Background()
	acc := newAccount(t, s)

	byID, err := s.accounts.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, acc.Email, byID.Email)
	assert.Equal(t, domain.SubscriptionFree, byID.Status)

	byEmail, err := s.accounts.GetByEmail(ctx, acc.Email)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, byEmail.ID)

	dup := &domain.Account{Name: "Bob", Email: acc.Email, PasswordHash: "x", Status: domain.SubscriptionFree}
	assert.ErrorIs(t, s.accounts.Create(ctx, dup), ErrDuplicate)

	_, err = s.accounts.GetByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func testPools(t *testing.T, s stores) {
	ctx := context.Background()
	acc := newAccount(t, s)

	empty, err := s.pools.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	minted := time.Date(2024, 3, 4, 13, 0, 0, 0, time.UTC)
	tok, err := domain.NewToken("daily_1", domain.TokenKindDaily, minted, minted.Add(23*time.Hour))
	require.NoError(t, err)
	weekly, err := domain.NewToken("weekly_1", domain.TokenKindWeekly, minted, minted.Add(7*24*time.Hour))
	require.NoError(t, err)
	pool := domain.TokenPool{Daily: []domain.Token{tok}, Weekly: []domain.Token{weekly}, LastDailyReset: minted, LastWeeklyReset: minted}

	require.NoError(t, s.pools.SaveWithStatus(ctx, acc.ID, domain.SubscriptionPremium, pool))

	loaded, err := s.pools.Get(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Daily, 1)
	require.Len(t, loaded.Weekly, 1)
	assert.Equal(t, "daily_1", loaded.Daily[0].ID)
	assert.True(t, loaded.LastDailyReset.Equal(minted))

	reloaded, err := s.accounts.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionPremium, reloaded.Status)

	require.NoError(t, s.pools.Save(ctx, acc.ID, domain.TokenPool{}))
	cleared, err := s.pools.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, cleared.IsEmpty())

	err = s.pools.SaveWithStatus(ctx, uuid.NewString(), domain.SubscriptionPremium, pool)
	assert.ErrorIs(t, err, ErrNotFound)
}

func testLedger(t *testing.T, s stores) {
	ctx := context.Background()
	acc := newAccount(t, s)
	venue := "venue-1"
	base := time.Date(2024, 3, 4, 13, 0, 0, 0, time.UTC)

	entries := []domain.LedgerEntry{
		{ID: uuid.NewString(), AccountID: acc.ID, TokenID: "daily_1", Kind: domain.TokenKindDaily, Action: domain.LedgerActionIssued, OccurredAt: base},
		{ID: uuid.NewString(), AccountID: acc.ID, TokenID: "daily_1", Kind: domain.TokenKindDaily, Action: domain.LedgerActionRedeemed, VenueID: &venue, OccurredAt: base.Add(time.Hour)},
		{ID: uuid.NewString(), AccountID: acc.ID, TokenID: "weekly_1", Kind: domain.TokenKindWeekly, Action: domain.LedgerActionForfeited, Reason: "downgrade", OccurredAt: base.Add(2 * time.Hour)},
	}
	require.NoError(t, s.ledger.Append(ctx, entries))
	require.NoError(t, s.ledger.Append(ctx, nil))

	listed, err := s.ledger.ListByAccount(ctx, acc.ID, 10)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, domain.LedgerActionForfeited, listed[0].Action)
	assert.Equal(t, "downgrade", listed[0].Reason)
	assert.Equal(t, domain.LedgerActionRedeemed, listed[1].Action)
	require.NotNil(t, listed[1].VenueID)
	assert.Equal(t, venue, *listed[1].VenueID)
	assert.Nil(t, listed[2].VenueID)
	assert.True(t, listed[2].OccurredAt.Equal(base))

	limited, err := s.ledger.ListByAccount(ctx, acc.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
