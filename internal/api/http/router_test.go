package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/nightpass/internal/api/http/handlers"
	"github.com/spec-kit/nightpass/internal/auth"
	"github.com/spec-kit/nightpass/internal/config"
	"github.com/spec-kit/nightpass/internal/events"
	"github.com/spec-kit/nightpass/internal/lock"
	"github.com/spec-kit/nightpass/internal/observability"
	"github.com/spec-kit/nightpass/internal/persistence"
	"github.com/spec-kit/nightpass/internal/repository"
	"github.com/spec-kit/nightpass/internal/service"
	"github.com/spec-kit/nightpass/internal/tokens"
)

type testServer struct {
	app   *fiber.App
	clock *clockwork.FakeClock
}

func newTestServer(t *testing.T, allowReset bool) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	db, err := persistence.NewSQLite(ctx, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	accounts := repository.NewSQLiteAccountRepository(db.DB)
	pools := repository.NewSQLitePoolRepository(db.DB)
	entries := repository.NewSQLiteLedgerRepository(db.DB)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	dispatcher := events.NewInMemoryDispatcher()
	ledgerService := service.NewLedgerService(dispatcher, entries, logger)
	ledgerService.RegisterHandlers()

	schedule := tokens.NewSchedule(time.UTC, tokens.DefaultResetHour)
	engine := tokens.NewEngine(schedule, tokens.NewIssuer(schedule, tokens.IssuerConfig{}))
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC))

	authService := service.NewAuthService(config.AuthConfig{JWTSecret: "test", BcryptCost: 4}, accounts, logger)
	tokenService := service.NewTokenService(service.TokenDependencies{
		Engine:      engine,
		AccountRepo: accounts,
		PoolRepo:    pools,
		Locker:      lock.NewLocalLocker(),
		Clock:       clock,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("nightpass", "test", map[string]handlers.Pinger{"sqlite": db}),
		Accounts:       handlers.NewAccountsHandler(authService),
		Subscription:   handlers.NewSubscriptionHandler(tokenService),
		Tokens:         handlers.NewTokensHandler(tokenService, ledgerService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), accounts),
		Gatherer:       registry,
		AllowDevReset:  allowReset,
	})
	return &testServer{app: app, clock: clock}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func (s *testServer) register(t *testing.T) string {
	t.Helper()
	status, env := s.do(t, nethttp.MethodPost, "/auth/register", "", map[string]string{
		"name": "Dana", "email": "dana@example.com", "password": "correct-horse",
	})
	require.Equal(t, nethttp.StatusCreated, status)
	var data struct {
		Auth struct {
			Token string `json:"token"`
		} `json:"auth"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Auth.Token)
	return data.Auth.Token
}

type poolBody struct {
	SubscriptionStatus string `json:"subscription_status"`
	Daily              []struct {
		ID string `json:"id"`
	} `json:"daily"`
	Weekly []struct {
		ID string `json:"id"`
	} `json:"weekly"`
	Counts tokens.Counts `json:"counts"`
}

func TestRoutes_Health(t *testing.T) {
	s := newTestServer(t, false)

	status, _ := s.do(t, nethttp.MethodGet, "/health/live", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)

	status, _ = s.do(t, nethttp.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)
}

func TestRoutes_RequireAuth(t *testing.T) {
	s := newTestServer(t, false)

	status, env := s.do(t, nethttp.MethodGet, "/tokens", "", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, _ = s.do(t, nethttp.MethodGet, "/tokens", "garbage", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
}

func TestRoutes_TokenLifecycle(t *testing.T) {
	s := newTestServer(t, false)
	bearer := s.register(t)

	status, env := s.do(t, nethttp.MethodPost, "/tokens/redeem", bearer, map[string]string{"token_id": "x", "venue_id": "v"})
	assert.Equal(t, nethttp.StatusPaymentRequired, status)
	assert.Equal(t, "SUBSCRIPTION_REQUIRED", env.Error.Code)

	status, env = s.do(t, nethttp.MethodPost, "/subscription/upgrade", bearer, nil)
	require.Equal(t, nethttp.StatusOK, status)
	var pool poolBody
	require.NoError(t, json.Unmarshal(env.Data, &pool))
	assert.Equal(t, "premium", pool.SubscriptionStatus)
	require.Len(t, pool.Daily, 4)
	require.Len(t, pool.Weekly, 1)

	status, env = s.do(t, nethttp.MethodPost, "/tokens/redeem", bearer, map[string]string{"token_id": pool.Weekly[0].ID, "venue_id": "club-7"})
	require.Equal(t, nethttp.StatusOK, status)
	var redeemed struct {
		Used        bool   `json:"used"`
		UsedAtVenue string `json:"used_at_venue"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &redeemed))
	assert.True(t, redeemed.Used)
	assert.Equal(t, "club-7", redeemed.UsedAtVenue)

	status, env = s.do(t, nethttp.MethodPost, "/tokens/redeem", bearer, map[string]string{"token_id": pool.Weekly[0].ID, "venue_id": "club-7"})
	assert.Equal(t, nethttp.StatusConflict, status)
	assert.Equal(t, "TOKEN_ALREADY_USED", env.Error.Code)

	status, env = s.do(t, nethttp.MethodPost, "/tokens/redeem", bearer, map[string]string{"token_id": "nope", "venue_id": "club-7"})
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "TOKEN_NOT_FOUND", env.Error.Code)

	status, env = s.do(t, nethttp.MethodGet, "/tokens/counts", bearer, nil)
	require.Equal(t, nethttp.StatusOK, status)
	var counts tokens.Counts
	require.NoError(t, json.Unmarshal(env.Data, &counts))
	assert.Equal(t, tokens.Counts{Daily: 4, Weekly: 0}, counts)

	s.clock.Advance(4 * time.Hour)
	status, env = s.do(t, nethttp.MethodPost, "/tokens/redeem", bearer, map[string]string{"token_id": pool.Daily[0].ID, "venue_id": "club-7"})
	assert.Equal(t, nethttp.StatusGone, status)
	assert.Equal(t, "TOKEN_EXPIRED", env.Error.Code)

	status, env = s.do(t, nethttp.MethodGet, "/tokens", bearer, nil)
	require.Equal(t, nethttp.StatusOK, status)
	var fresh poolBody
	require.NoError(t, json.Unmarshal(env.Data, &fresh))
	assert.Len(t, fresh.Daily, 4)
	assert.NotEqual(t, pool.Daily[0].ID, fresh.Daily[0].ID)

	status, env = s.do(t, nethttp.MethodGet, "/tokens/ledger?limit=500", bearer, nil)
	require.Equal(t, nethttp.StatusOK, status)
	var ledger []struct {
		Action string `json:"action"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &ledger))
	// 5 issued on upgrade, 1 redeemed, 4 forfeited and 4 issued at noon
	assert.Len(t, ledger, 14)

	status, env = s.do(t, nethttp.MethodPost, "/subscription/cancel", bearer, nil)
	require.Equal(t, nethttp.StatusOK, status)
	var cancelled struct {
		SubscriptionStatus string            `json:"subscription_status"`
		Forfeited          []json.RawMessage `json:"forfeited"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &cancelled))
	assert.Equal(t, "free", cancelled.SubscriptionStatus)
	assert.Len(t, cancelled.Forfeited, 4)
}

func TestRoutes_DevResetGated(t *testing.T) {
	s := newTestServer(t, false)
	bearer := s.register(t)
	status, env := s.do(t, nethttp.MethodPost, "/tokens/reset", bearer, nil)
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	s = newTestServer(t, true)
	bearer = s.register(t)
	_, _ = s.do(t, nethttp.MethodPost, "/subscription/upgrade", bearer, nil)
	status, _ = s.do(t, nethttp.MethodPost, "/tokens/reset", bearer, nil)
	assert.Equal(t, nethttp.StatusOK, status)
}

func TestRoutes_RegisterValidation(t *testing.T) {
	s := newTestServer(t, false)
	s.register(t)

	status, env := s.do(t, nethttp.MethodPost, "/auth/register", "", map[string]string{
		"name": "Dana", "email": "dana@example.com", "password": "correct-horse",
	})
	assert.Equal(t, nethttp.StatusConflict, status)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	status, _ = s.do(t, nethttp.MethodPost, "/auth/login", "", map[string]string{
		"email": "dana@example.com", "password": "wrong-password",
	})
	assert.Equal(t, nethttp.StatusUnauthorized, status)

	status, _ = s.do(t, nethttp.MethodPost, "/auth/register", "", map[string]string{"email": "x@example.com"})
	assert.Equal(t, nethttp.StatusBadRequest, status)
}

func TestRoutes_Metrics(t *testing.T) {
	s := newTestServer(t, false)
	s.register(t)

	req := httptest.NewRequest(nethttp.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "nightpass_http_requests_total")
}
