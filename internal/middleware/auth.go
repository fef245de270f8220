package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/soaringjerry/Vitals/internal/utils"
)

type authCtxKey int

const (
	claimsKey authCtxKey = 7
	tokenKey  authCtxKey = 8
)

const issuer = "vitals"

// Claims identify one session. The token id is the session id.
type Claims struct {
	UID  string `json:"uid"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) SessionID() string { return c.ID }

func secret() []byte {
	return []byte(utils.SafeEnv("VITALS_JWT_SECRET", "vitals-dev-secret"))
}

func SignToken(sessionID, uid, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{UID: uid, Role: role, RegisteredClaims: jwt.RegisteredClaims{
		ID:        sessionID,
		Issuer:    issuer,
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret())
}

func ParseToken(tok string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tok, &Claims{}, func(token *jwt.Token) (interface{}, error) { return secret(), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid && c.ID != "" {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

// WithAuth attaches claims and the raw token to the request context when a
// valid bearer token is present.
func WithAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := bearer(r); tok != "" {
			if c, err := ParseToken(tok); err == nil {
				ctx := context.WithValue(r.Context(), claimsKey, c)
				ctx = context.WithValue(ctx, tokenKey, tok)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Value(claimsKey).(*Claims); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized","code":"unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

func TokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey).(string)
	return t, ok && t != ""
}
