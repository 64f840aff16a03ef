package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jobmatch/credits/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func serveWithAuth(auth *Auth, token string) (*httptest.ResponseRecorder, *models.Account) {
	var seen *models.Account
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if account, ok := AccountFromContext(r.Context()); ok {
			seen = &account
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/credits/balance", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seen
}

func TestAuth_Middleware(t *testing.T) {
	auth := NewAuth(testSecret, nil, nil)

	t.Run("personal account from numeric user id", func(t *testing.T) {
		rec, account := serveWithAuth(auth, signToken(t, jwt.MapClaims{"user_id": 42}))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, account)
		assert.Equal(t, "usr_42", account.ID)
		assert.Equal(t, models.AccountPersonal, account.Type)
	})

	t.Run("business account", func(t *testing.T) {
		rec, account := serveWithAuth(auth, signToken(t, jwt.MapClaims{
			"user_id":      "42",
			"account_type": "business",
			"org_id":       "acme",
		}))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, account)
		assert.Equal(t, "org_acme", account.ID)
	})

	t.Run("business account without org", func(t *testing.T) {
		rec, _ := serveWithAuth(auth, signToken(t, jwt.MapClaims{"user_id": "42", "account_type": "business"}))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		rec, _ := serveWithAuth(auth, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		rec, _ := serveWithAuth(auth, signToken(t, jwt.MapClaims{
			"user_id": "42",
			"exp":     time.Now().Add(-time.Minute).Unix(),
		}))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "42"}).SignedString([]byte("other"))
		require.NoError(t, err)

		rec, _ := serveWithAuth(auth, token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuth_RevokedTokens(t *testing.T) {
	client, mock := redismock.NewClientMock()
	auth := NewAuth(testSecret, client, nil)

	t.Run("revoked", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{"user_id": "7"})
		mock.ExpectExists("blacklist:" + token).SetVal(1)

		rec, account := serveWithAuth(auth, token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, account)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not revoked", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{"user_id": "8"})
		mock.ExpectExists("blacklist:" + token).SetVal(0)

		rec, _ := serveWithAuth(auth, token)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis outage does not lock users out", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{"user_id": "9"})
		mock.ExpectExists("blacklist:" + token).SetErr(errors.New("connection refused"))

		rec, _ := serveWithAuth(auth, token)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
