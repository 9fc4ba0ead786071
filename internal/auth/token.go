package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	pkgerrors "github.com/pkg/errors"

	"roulette/internal/models"
)

const issuer = "roulette"

// ErrInvalidToken is returned for tokens that fail signature, expiry or
// subject checks.
var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer mints and checks HS256 bearer tokens whose subject is the
// caller identity.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer signing with secret.
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, ttl: ttl, now: time.Now}
}

// Issue returns a signed token for identity.
func (ti *TokenIssuer) Issue(identity models.Identity) (string, error) {
	if identity == "" {
		return "", pkgerrors.Wrap(ErrInvalidToken, "empty identity")
	}

	now := ti.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   string(identity),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
	})

	signed, err := tok.SignedString(ti.secret)
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to sign token")
	}
	return signed, nil
}

// Parse checks token and returns the identity it was issued for.
func (ti *TokenIssuer) Parse(token string) (models.Identity, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return ti.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return "", pkgerrors.Wrap(ErrInvalidToken, err.Error())
	}
	if claims.Subject == "" {
		return "", pkgerrors.Wrap(ErrInvalidToken, "missing subject")
	}
	return models.Identity(claims.Subject), nil
}
