// Package auth guards the administrative API with HS256 bearer tokens.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "storefront/internal/common/errors"
	"storefront/internal/common/logging"
)

const (
	RoleAdmin = "admin"
	issuer    = "storefront"

	// RevokedKeyPrefix prefixes revoked tokens in the token store.
	RevokedKeyPrefix = "jwt:revoked:"
)

// Claims are the JWT claims issued and accepted by Auth.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenStore records revoked tokens. The Redis client satisfies it.
type TokenStore interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration) bool
}

type Auth struct {
	secret []byte
	tokens TokenStore
	ttl    time.Duration
}

// New returns an Auth signing with secret. tokens may be nil, in which case
// revocation is unavailable.
func New(secret string, tokens TokenStore) (*Auth, error) {
	if secret == "" {
		return nil, apperrors.ConfigError("JWT secret is required")
	}
	return &Auth{secret: []byte(secret), tokens: tokens, ttl: 24 * time.Hour}, nil
}

// GenerateJWT issues a token valid for 24 hours.
func (a *Auth) GenerateJWT(userID, username, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", apperrors.InternalError("failed to sign token", err)
	}
	return token, nil
}

func (a *Auth) ValidateJWT(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, apperrors.AuthError("missing token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.AuthError("invalid token")
	}

	if a.tokens != nil {
		if _, revoked := a.tokens.Get(ctx, RevokedKeyPrefix+tokenString); revoked {
			return nil, apperrors.AuthError("token has been revoked")
		}
	}
	return claims, nil
}

// Revoke blocks tokenString until it would have expired anyway.
func (a *Auth) Revoke(ctx context.Context, tokenString string) error {
	if a.tokens == nil {
		return apperrors.ConfigError("token revocation requires Redis")
	}
	claims, err := a.ValidateJWT(ctx, tokenString)
	if err != nil {
		return err
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if !a.tokens.Set(ctx, RevokedKeyPrefix+tokenString, "1", ttl) {
		return apperrors.InternalError("failed to record revoked token", nil)
	}
	return nil
}

// RequireUser rejects requests without a valid bearer token.
func (a *Auth) RequireUser(next http.Handler) http.Handler {
	return a.require(false, next)
}

// RequireAdmin rejects requests without a valid bearer token carrying the
// admin role.
func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return a.require(true, next)
}

func (a *Auth) require(adminOnly bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		claims, err := a.ValidateJWT(r.Context(), tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if adminOnly && claims.Role != RoleAdmin {
			logging.WithContext(r.Context()).Warn("Non-admin token rejected",
				logging.String("user_id", claims.UserID),
				logging.String("path", r.URL.Path),
			)
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}

		r.Header.Set("X-User-ID", claims.UserID)
		r.Header.Set("X-Username", claims.Username)
		next.ServeHTTP(w, r)
	})
}

// Logout revokes the bearer token the request was made with.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	err := a.Revoke(r.Context(), bearerToken(r))
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Token revoked"})
	case apperrors.IsType(err, apperrors.ErrTypeAuth):
		writeError(w, http.StatusUnauthorized, "Authentication required")
	case apperrors.IsType(err, apperrors.ErrTypeConfig):
		writeError(w, http.StatusServiceUnavailable, "Token revocation is unavailable")
	default:
		logging.WithContext(r.Context()).Error("Token revocation failed", err)
		writeError(w, http.StatusInternalServerError, "Failed to revoke token")
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
