package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/expensetracker/internal/domain/identity"
	"github.com/golang-jwt/jwt/v5"
)

const issuerPrefix = "https://securetoken.google.com/"

// KeyResolver maps a signing key id to its RSA public key.
type KeyResolver interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

type idTokenClaims struct {
	Email    string `json:"email"`
	AuthTime int64  `json:"auth_time"`
	jwt.RegisteredClaims
}

// IDTokenVerifier checks ID tokens minted by the hosted identity service for
// one project. Results are never cached; every call re-validates.
type IDTokenVerifier struct {
	projectID string
	keys      KeyResolver
	now       func() time.Time
}

func NewIDTokenVerifier(projectID string, keys KeyResolver) *IDTokenVerifier {
	return &IDTokenVerifier{projectID: projectID, keys: keys, now: time.Now}
}

// Verified is a valid token's identity plus the moment the user signed in,
// which the revocation check compares against.
type Verified struct {
	identity.Identity
	AuthTime time.Time
}

func (v *IDTokenVerifier) Verify(ctx context.Context, raw string) (Verified, error) {
	if raw == "" {
		return Verified{}, fmt.Errorf("%w: empty token", identity.ErrInvalidCredential)
	}

	claims := &idTokenClaims{}

	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		return v.keys.Key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.projectID),
		jwt.WithIssuer(issuerPrefix+v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)

	if err != nil {
		// key fetch outages must not look like a bad token
		if errors.Is(err, identity.ErrUnavailable) {
			return Verified{}, err
		}
		return Verified{}, fmt.Errorf("%w: %w", identity.ErrInvalidCredential, err)
	}

	if claims.Subject == "" || len(claims.Subject) > 128 {
		return Verified{}, fmt.Errorf("%w: bad subject", identity.ErrInvalidCredential)
	}

	out := Verified{
		Identity: identity.Identity{SubjectID: claims.Subject, Email: claims.Email},
	}

	switch {
	case claims.AuthTime > 0:
		out.AuthTime = time.Unix(claims.AuthTime, 0)
	case claims.IssuedAt != nil:
		out.AuthTime = claims.IssuedAt.Time
	}

	return out, nil
}
