package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cleared-dev/envelopes/internal/id"
)

// ErrNoSecret is returned when an Authenticator is built without a key.
var ErrNoSecret = errors.New("jwt secret is required")

// Authenticator validates HS256 bearer tokens. The token subject is the
// owner id every request is scoped by.
type Authenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewAuthenticator creates an Authenticator. An empty issuer accepts any
// issuer.
func NewAuthenticator(secret, issuer string) (*Authenticator, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Authenticator{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// IssueToken signs a token for ownerID valid for ttl.
func (a *Authenticator) IssueToken(ownerID string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Issuer:    a.issuer,
		Subject:   ownerID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        id.New(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Owner validates token and returns its subject.
func (a *Authenticator) Owner(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...); err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

type ownerKey struct{}

// OwnerFromContext returns the authenticated owner id.
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerKey{}).(string)
	return owner, ok && owner != ""
}

// RequireOwner rejects requests without a valid bearer token.
func (a *Authenticator) RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		owner, err := a.Owner(token)
		if err != nil {
			logFrom(r).Debug().Err(err).Msg("rejected bearer token")
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey{}, owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
