package daemon

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mediafactory/internal/config"
)

const tokenIssuer = "mediafactory"

// Claims are the JWT claims accepted by the API.
type Claims struct {
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for subject that expires after ttl.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret is not configured")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ValidateToken parses tokenString and verifies its signature and expiry.
func ValidateToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

type authenticator struct {
	token  string
	secret string
}

func newAuthenticator(cfg config.API) authenticator {
	return authenticator{
		token:  strings.TrimSpace(cfg.Token),
		secret: strings.TrimSpace(cfg.JWTSecret),
	}
}

func (a authenticator) enabled() bool {
	return a.token != "" || a.secret != ""
}

// allow accepts the static token from either header, or a JWT signed with the
// configured secret.
func (a authenticator) allow(r *http.Request) bool {
	credential := strings.TrimSpace(r.Header.Get("X-API-Key"))
	if credential == "" {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			return false
		}
		credential = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if credential == "" {
		return false
	}
	if a.token != "" && subtle.ConstantTimeCompare([]byte(credential), []byte(a.token)) == 1 {
		return true
	}
	if a.secret != "" {
		if _, err := ValidateToken(a.secret, credential); err == nil {
			return true
		}
	}
	return false
}

// authMiddleware returns a middleware that validates API credentials.
// If neither a token nor a JWT secret is configured, all requests pass through.
func authMiddleware(auth authenticator, next http.HandlerFunc) http.HandlerFunc {
	if !auth.enabled() {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !auth.allow(r) {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
