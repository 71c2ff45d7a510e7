package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/classbeam/liveclass-server-go/internal/errors"
	"github.com/classbeam/liveclass-server-go/internal/model"
)

// Identity is the resolved caller of a connection or request. TenantID may
// be empty on older tokens and is then lazily resolved from storage.
type Identity struct {
	UserID   string
	Name     string
	Role     model.Role
	TenantID string
}

// IsSuperUser reports whether the identity is exempt from tenant scoping.
func (i Identity) IsSuperUser() bool {
	return i.Role == model.RoleSuperAdmin
}

type accessClaims struct {
	Role     string `json:"role"`
	Name     string `json:"name,omitempty"`
	TenantID string `json:"institutionId,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates bearer access tokens issued by the auth service.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(token string) (*Identity, error) {
	var claims accessClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, apperrors.Unauthorized("Invalid token").WithCause(err)
	}
	if claims.Subject == "" {
		return nil, apperrors.Unauthorized("Token missing subject")
	}

	return &Identity{
		UserID:   claims.Subject,
		Name:     claims.Name,
		Role:     model.Role(claims.Role),
		TenantID: claims.TenantID,
	}, nil
}

// Sign issues a token for the given identity. Token issuance belongs to the
// auth service; this is exported for tests and local tooling only.
func (v *Verifier) Sign(identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := accessClaims{
		Role:     string(identity.Role),
		Name:     identity.Name,
		TenantID: identity.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
