package core

import "context"

type contextKey string

const (
	ctxKeyClientIP contextKey = "run_client_ip"
	ctxKeyOrigin   contextKey = "run_origin"
)

// Origins recorded on runs.
const (
	OriginConsole = "console"
	OriginAPI     = "api"
	OriginCLI     = "cli"
)

// ContextWithClientIP adds the caller's address to ctx for run history.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// ContextWithOrigin tags ctx with the surface that started the action.
func ContextWithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, ctxKeyOrigin, origin)
}

// ClientIPFromContext extracts the caller's address from ctx.
func ClientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyClientIP).(string); ok {
		return v
	}
	return ""
}

// OriginFromContext extracts the origin tag from ctx.
func OriginFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyOrigin).(string); ok {
		return v
	}
	return ""
}
