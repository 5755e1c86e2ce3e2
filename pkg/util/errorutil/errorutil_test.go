package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errCause = errors.New("cause")

func TestWrap_KeepsCause(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewTokenExpired(errCause, "tok-1"))

	assert.True(t, errors.Is(err, errCause))
	de := ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, "TOKEN_EXPIRED", de.Code)
	assert.Equal(t, http.StatusGone, de.HTTPStatus)
	assert.Equal(t, "tok-1", de.Details["token_id"])
}

func TestTokenConstructors(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{NewTokenNotFound(errCause, "x"), "TOKEN_NOT_FOUND", http.StatusNotFound},
		{NewTokenAlreadyUsed(errCause, "x"), "TOKEN_ALREADY_USED", http.StatusConflict},
		{NewTokenExpired(errCause, "x"), "TOKEN_EXPIRED", http.StatusGone},
		{NewSubscriptionRequired(errCause), "SUBSCRIPTION_REQUIRED", http.StatusPaymentRequired},
	}
	for _, tc := range cases {
		de := ToDomainError(tc.err)
		assert.Equal(t, tc.code, de.Code)
		assert.Equal(t, tc.status, de.HTTPStatus)
	}
}

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	de := ToDomainError(fiber.NewError(http.StatusMethodNotAllowed, "nope"))
	assert.Equal(t, "HTTP_ERROR", de.Code)
	assert.Equal(t, http.StatusMethodNotAllowed, de.HTTPStatus)
	assert.Equal(t, "nope", de.Message)

	assert.Equal(t, "NOT_FOUND", ToDomainError(sql.ErrNoRows).Code)
	assert.Equal(t, "NOT_FOUND", ToDomainError(pgx.ErrNoRows).Code)

	de = ToDomainError(errCause)
	assert.Equal(t, "INTERNAL_ERROR", de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.True(t, errors.Is(de, errCause))
}

func TestDomainError_Message(t *testing.T) {
	assert.Equal(t, "account not found", NewNotFound("account", nil).Error())
	assert.Equal(t, "internal server error: cause", NewInternalError(errCause).Error())
}
