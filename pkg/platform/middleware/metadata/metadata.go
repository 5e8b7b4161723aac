// Package metadata stores client IP, User-Agent and a readable device label in
// the request context. Audit events and access logs read them from there.
package metadata

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"rcaflow/pkg/requestcontext"
)

const unknownDevice = "Unknown Device"

// ClientMetadata should run before anything that logs or audits.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), ua, DeviceLabel(ua))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DeviceLabel renders a User-Agent as "Browser on OS".
func DeviceLabel(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return unknownDevice
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	platform := ua.OSInfo().Name
	if platform == "" {
		platform = ua.Platform()
	}
	if platform == "" {
		platform = "Unknown OS"
	}
	label := browser + " on " + platform
	if ua.Bot() {
		label += " (bot)"
	}
	return label
}

// ClientIPFromRequest prefers the first X-Forwarded-For hop, then X-Real-IP,
// then the connection address without its port.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
