package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jobmatch/credits/internal/models"
	"github.com/jobmatch/credits/internal/services"
	"go.uber.org/zap"
)

type contextKey string

const accountKey contextKey = "account"

var errRevokedToken = errors.New("token has been revoked")

// Auth resolves the bearer token into the credit account the request acts
// for. Tokens carry user_id, and optionally account_type=business with
// org_id when the user acts for an organization.
type Auth struct {
	secret []byte
	redis  *redis.Client // optional revoked-token list
	logger *zap.Logger
}

func NewAuth(secret string, redisClient *redis.Client, logger *zap.Logger) *Auth {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auth{
		secret: []byte(secret),
		redis:  redisClient,
		logger: logger,
	}
}

func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			services.SendErrorResponse(w, "Authorization header required", http.StatusUnauthorized, nil)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			services.SendErrorResponse(w, "Invalid authorization header format", http.StatusUnauthorized, nil)
			return
		}

		account, err := a.authenticate(r.Context(), parts[1])
		if err != nil {
			a.logger.Debug("Rejected token", zap.Error(err))
			services.SendErrorResponse(w, "Invalid token", http.StatusUnauthorized, nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
	})
}

func (a *Auth) authenticate(ctx context.Context, tokenString string) (models.Account, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Account{}, err
	}
	if !token.Valid {
		return models.Account{}, jwt.ErrTokenInvalidClaims
	}

	if err := a.checkRevoked(ctx, tokenString); err != nil {
		return models.Account{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Account{}, jwt.ErrTokenInvalidClaims
	}
	return accountFromClaims(claims)
}

// checkRevoked looks the token up in the blacklist written at logout. A Redis
// outage is logged and does not reject the request.
func (a *Auth) checkRevoked(ctx context.Context, tokenString string) error {
	if a.redis == nil {
		return nil
	}
	n, err := a.redis.Exists(ctx, "blacklist:"+tokenString).Result()
	if err != nil {
		a.logger.Warn("Revoked-token check unavailable", zap.Error(err))
		return nil
	}
	if n > 0 {
		return errRevokedToken
	}
	return nil
}

func accountFromClaims(claims jwt.MapClaims) (models.Account, error) {
	userID := claimString(claims, "user_id")
	if userID == "" {
		return models.Account{}, fmt.Errorf("%w: missing user_id", models.ErrInvalidAccount)
	}

	accountType := models.AccountType(claimString(claims, "account_type"))
	if accountType == models.AccountBusiness {
		return models.NewAccount(accountType, claimString(claims, "org_id"))
	}
	return models.NewAccount(accountType, userID)
}

func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func WithAccount(ctx context.Context, account models.Account) context.Context {
	return context.WithValue(ctx, accountKey, account)
}

func AccountFromContext(ctx context.Context) (models.Account, bool) {
	account, ok := ctx.Value(accountKey).(models.Account)
	return account, ok && account.ID != ""
}
