// Package auth authenticates bearer tokens and installs the request Principal.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/platform/httputil"
	"rcaflow/pkg/requestcontext"
)

// Claims is what the middleware needs from a validated token.
type Claims struct {
	UserID    id.UserID
	CompanyID id.CompanyID
	JTI       string
	ExpiresAt time.Time
}

type TokenValidator interface {
	ValidateToken(token string) (*Claims, error)
}

type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// PrincipalResolver reloads the profile behind a token. It returns an
// unauthorized domain error when the user or its company is no longer active.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, claims *Claims) (requestcontext.Principal, error)
}

var (
	errMissingToken = dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header")
	errInvalidToken = dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token")
	errRevokedToken = dErrors.New(dErrors.CodeUnauthorized, "Token has been revoked")
)

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

func RequireAuth(validator TokenValidator, revocations RevocationChecker, resolver PrincipalResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := BearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, errMissingToken)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, errInvalidToken)
				return
			}

			if revocations != nil {
				if claims.JTI == "" {
					logger.WarnContext(ctx, "unauthorized access - missing token jti",
						"request_id", requestID,
					)
					httputil.WriteError(w, errInvalidToken)
					return
				}
				revoked, err := revocations.IsTokenRevoked(ctx, claims.JTI)
				if err != nil {
					logger.ErrorContext(ctx, "failed to check token revocation",
						"error", err,
						"request_id", requestID,
					)
					httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to validate token"))
					return
				}
				if revoked {
					logger.WarnContext(ctx, "unauthorized access - token revoked",
						"jti", claims.JTI,
						"request_id", requestID,
					)
					httputil.WriteError(w, errRevokedToken)
					return
				}
			}

			principal, err := resolver.ResolvePrincipal(ctx, claims)
			if err != nil {
				if dErrors.CodeOf(err) == dErrors.CodeInternal {
					logger.ErrorContext(ctx, "failed to load principal",
						"error", err,
						"user_id", claims.UserID.String(),
						"request_id", requestID,
					)
				} else {
					logger.WarnContext(ctx, "unauthorized access - principal rejected",
						"error", err,
						"user_id", claims.UserID.String(),
						"request_id", requestID,
					)
				}
				httputil.WriteError(w, err)
				return
			}
			principal.TokenID = claims.JTI
			principal.ExpiresAt = claims.ExpiresAt

			next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(ctx, principal)))
		})
	}
}
