package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenCookie carries the access token when no Authorization header is sent.
const AccessTokenCookie = "access_token"

type ctxKey struct{}

// Claims is the access token payload issued by the wallet auth service.
type Claims struct {
	PlayerID string `json:"playerId"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 access tokens.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an Authenticator for the shared secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// IssueToken signs an access token for playerID, valid for ttl.
func (a *Authenticator) IssueToken(playerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify returns the player id carried by a valid token.
func (a *Authenticator) Verify(raw string) (string, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: access token expired", ErrUnauthorized)
		}
		return "", fmt.Errorf("%w: access token invalid", ErrUnauthorized)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.PlayerID == "" {
		return "", fmt.Errorf("%w: access token invalid", ErrUnauthorized)
	}
	return claims.PlayerID, nil
}

// Require rejects requests without a valid access token and stores the
// caller's player id in the request context.
func (a *Authenticator) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := bearer(r)
		if raw == "" {
			writeError(w, fmt.Errorf("%w: access token missing", ErrUnauthorized))
			return
		}
		playerID, err := a.Verify(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, playerID)))
	}
}

// PlayerID returns the authenticated caller stored by Require.
func PlayerID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}
