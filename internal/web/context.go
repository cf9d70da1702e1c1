package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/decisio/internal/core"
)

// WithRequestMetadata tags the context with the client address and origin
// so recorded runs show where they came from.
func WithRequestMetadata(ctx context.Context, r *http.Request, origin string) context.Context {
	ctx = core.ContextWithClientIP(ctx, clientIP(r))
	ctx = core.ContextWithOrigin(ctx, origin)
	return ctx
}

// clientIP returns the host part of RemoteAddr, already rewritten by
// TrustedRealIP for trusted proxies.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
