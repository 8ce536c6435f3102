package user

import "context"

type ctxKey struct{}

// NewContext stores the authenticated user's record in the context.
func NewContext(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// CurrentFromContext returns the authenticated user's record, or nil on
// unauthenticated requests.
func CurrentFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(ctxKey{}).(*User)
	return u
}
