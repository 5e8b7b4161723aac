// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets the values; services read them without importing net/http.
//
//	principal, ok := requestcontext.PrincipalFrom(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithPrincipal(ctx, principal)
package requestcontext

import (
	"context"
	"slices"
	"time"

	id "rcaflow/pkg/domain"
)

type (
	principalKey   struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	deviceKey      struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Principal is the authenticated actor of a request, reloaded from the user
// store on every request so access changes apply immediately.
type Principal struct {
	UserID     id.UserID
	CompanyID  id.CompanyID
	Email      string
	Name       string
	Role       id.Role
	Permission id.PermissionLevel
	// SiteIDs restricts the principal to specific sites. Empty means every
	// site of the company.
	SiteIDs []id.SiteID
	// TokenID is the jti of the bearer token, needed for logout.
	TokenID   string
	ExpiresAt time.Time
}

// CoversSite reports whether the principal's site restriction includes site.
func (p Principal) CoversSite(site id.SiteID) bool {
	return len(p.SiteIDs) == 0 || slices.Contains(p.SiteIDs, site)
}

// -----------------------------------------------------------------------------
// Auth context
// -----------------------------------------------------------------------------

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the authenticated principal, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// UserID returns the authenticated user ID or the nil ID.
func UserID(ctx context.Context) id.UserID {
	if p, ok := PrincipalFrom(ctx); ok {
		return p.UserID
	}
	return id.UserID{}
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent, device label)
// -----------------------------------------------------------------------------

func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey{}).(string); ok {
		return ua
	}
	return ""
}

// Device returns a human readable "Browser on OS" label derived from the User-Agent.
func Device(ctx context.Context) string {
	if d, ok := ctx.Value(deviceKey{}).(string); ok {
		return d
	}
	return ""
}

// WithClientMetadata injects client IP, User-Agent and device label into a context.
func WithClientMetadata(ctx context.Context, clientIP, userAgent, device string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	ctx = context.WithValue(ctx, userAgentKey{}, userAgent)
	ctx = context.WithValue(ctx, deviceKey{}, device)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() outside HTTP requests (workers, CLI).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
