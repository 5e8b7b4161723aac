// Package token issues and validates the HS256 access tokens of the API.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	authmw "rcaflow/pkg/platform/middleware/auth"
)

// Claims carries the identity snapshot taken at login. Role and permission
// level are informative only: the middleware reloads the profile on every
// request.
type Claims struct {
	CompanyID  string `json:"company_id"`
	Role       string `json:"role"`
	Permission string `json:"permission_level"`
	jwt.RegisteredClaims
}

// Subject is the identity a token is issued for.
type Subject struct {
	UserID     id.UserID
	CompanyID  id.CompanyID
	Role       id.Role
	Permission id.PermissionLevel
}

type Service struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

func NewService(signingKey, issuer string, ttl time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
	}
}

// Issue signs a token for sub valid from now for the configured TTL. It
// returns the token with its jti and expiry.
func (s *Service) Issue(sub Subject, now time.Time) (string, *Claims, error) {
	claims := &Claims{
		CompanyID:  sub.CompanyID.String(),
		Role:       string(sub.Role),
		Permission: string(sub.Permission),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.UserID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, claims, nil
}

func (s *Service) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// ValidateToken adapts Parse to the auth middleware.
func (s *Service) ValidateToken(tokenString string) (*authmw.Claims, error) {
	claims, err := s.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	companyID, err := id.ParseCompanyID(claims.CompanyID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token company")
	}
	return &authmw.Claims{
		UserID:    userID,
		CompanyID: companyID,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
