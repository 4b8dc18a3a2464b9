// Package identity supplies the authenticated user id that every operation
// is scoped to. An absent identity refuses the operation.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	werrors "github.com/hpungsan/willow/internal/errors"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

type ctxKey struct{}

// WithUser returns a context carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserFrom returns the user id carried by ctx, or "".
func UserFrom(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}

// Require returns the user id carried by ctx or an UNAUTHENTICATED error.
func Require(ctx context.Context) (string, error) {
	u := strings.TrimSpace(UserFrom(ctx))
	if u == "" {
		return "", werrors.NewUnauthenticated()
	}
	return u, nil
}

// Authenticator turns a bearer credential into a user id.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

// Static authenticates every caller as one configured user. It backs the
// single-user CLI and MCP modes. An empty user authenticates nobody.
type Static string

func (s Static) Authenticate(string) (string, error) {
	if s == "" {
		return "", ErrInvalidToken
	}
	return string(s), nil
}

// Claims are the JWT claims Willow reads. The user id is the subject.
type Claims struct {
	jwt.RegisteredClaims
}

// JWT verifies HS256 tokens signed with a shared secret.
type JWT struct {
	secret []byte
	issuer string
}

// NewJWT creates a JWT authenticator. An empty issuer accepts any issuer.
func NewJWT(secret []byte, issuer string) *JWT {
	return &JWT{secret: secret, issuer: issuer}
}

func (j *JWT) Authenticate(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	claims := new(Claims)
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Sign issues a token for userID valid for ttl.
func (j *JWT) Sign(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    j.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}
