package util

import "context"

type sessionKey struct{}

// WithUser attaches the signed-in identity to ctx.
func WithUser(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, sessionKey{}, claims)
}

// CurrentUser returns the identity attached by WithUser, or ErrUnauthenticated.
func CurrentUser(ctx context.Context) (*Claims, error) {
	claims, ok := ctx.Value(sessionKey{}).(*Claims)
	if !ok || claims == nil || claims.UID == "" {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}
