// Package auth issues and verifies the bearer tokens that carry a user scope.
// Anonymous sign-in mints a fresh random scope.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"saldo/internal/log"
)

const (
	CookieName = "saldo_token"
	defaultTTL = 30 * 24 * time.Hour
	minSecret  = 32
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrWeakSecret      = fmt.Errorf("auth secret must be at least %d bytes", minSecret)
)

// Claims carries the user scope in the subject.
type Claims struct {
	Anonymous bool `json:"anon,omitempty"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret, issuer string, ttl time.Duration) (*Issuer, error) {
	if len(secret) < minSecret {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Token is what sign-in returns to the client.
type Token struct {
	Token     string    `json:"token"`
	Scope     string    `json:"scope"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueAnonymous creates a new user scope and a token for it.
func (i *Issuer) IssueAnonymous() (Token, error) {
	return i.issue(uuid.NewString(), true)
}

// Issue signs a token for an existing scope.
func (i *Issuer) Issue(scope string) (Token, error) {
	if strings.TrimSpace(scope) == "" {
		return Token{}, ErrUnauthenticated
	}
	return i.issue(scope, false)
}

func (i *Issuer) issue(scope string, anonymous bool) (Token, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := &Claims{
		Anonymous: anonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   scope,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Token: signed, Scope: scope, ExpiresAt: exp.UTC()}, nil
}

// Verify returns the scope of a valid token.
func (i *Issuer) Verify(token string) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", ErrUnauthenticated
	}
	return claims.Subject, nil
}

type ctxKey struct{}

func WithScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, ctxKey{}, scope)
}

// ScopeFromContext returns the authenticated user scope.
func ScopeFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(ctxKey{}).(string)
	return s, ok && s != ""
}

// TokenFromRequest reads the Authorization bearer token, then the token
// query parameter (for EventSource and downloads), then the cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// Middleware rejects requests without a valid token and puts the scope on
// the request context. onFail writes the rejection.
func (i *Issuer) Middleware(onFail func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := TokenFromRequest(r)
			if raw == "" {
				onFail(w, r, ErrUnauthenticated)
				return
			}
			scope, err := i.Verify(raw)
			if err != nil {
				log.FromContext(r.Context()).WithComponent(log.ComponentAuth).WarnContext(r.Context(), "Token rejected",
					log.NewFields().WithErrorType(log.ErrorTypeAuth).WithError(err).ToSlice()...)
				onFail(w, r, err)
				return
			}
			ctx := WithScope(r.Context(), scope)
			ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldScope, scope))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
